package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	pkgconfig "tesscpm/pkg/config"
	"tesscpm/pkg/export"
	"tesscpm/pkg/logging"
	"tesscpm/pkg/metrics"
	"tesscpm/pkg/tesscpm"
)

// app carries flag values shared by the subcommands.
type app struct {
	configPath  string
	keepBad     bool
	quiet       bool
	strict      bool
	metricsFile string
	out         string

	stdout io.Writer
}

func main() {
	a := &app{stdout: os.Stdout}
	if err := a.command().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) command() *cli.Command {
	ingestFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.BoolFlag{Name: "keep-bad", Usage: "Keep samples with a nonzero QUALITY flag", Destination: &a.keepBad},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Suppress load diagnostics", Destination: &a.quiet},
			&cli.BoolFlag{Name: "strict", Usage: "Fail on zero or non-finite pixel medians", Destination: &a.strict},
			&cli.StringFlag{Name: "metrics-file", Usage: "Write Prometheus textfile metrics to this path", Destination: &a.metricsFile},
		}
	}

	return &cli.Command{
		Name:  "tesscpm",
		Usage: "Load TESS FFI cutouts and precompute per-pixel normalization",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "tesscpm.yaml",
				Value:       "tesscpm.yaml",
				Sources:     cli.EnvVars("TESSCPM_CONFIG"),
				Destination: &a.configPath,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "Print a summary of a cutout",
				ArgsUsage: "<cutout.fits>",
				Flags:     ingestFlags(),
				Action:    a.inspect,
			},
			{
				Name:      "export",
				Usage:     "Write the normalized cutout to an Arrow IPC file",
				ArgsUsage: "<cutout.fits>",
				Flags: append(ingestFlags(), &cli.StringFlag{
					Name:        "out",
					Aliases:     []string{"o"},
					Usage:       "Output path",
					Required:    true,
					Destination: &a.out,
				}),
				Action: a.export,
			},
		},
	}
}

func (a *app) inspect(ctx context.Context, cmd *cli.Command) error {
	td, err := a.load(ctx, cmd)
	if err != nil {
		return err
	}
	printSummary(a.stdout, tesscpm.Summarize(td))
	return nil
}

func (a *app) export(ctx context.Context, cmd *cli.Command) error {
	td, err := a.load(ctx, cmd)
	if err != nil {
		return err
	}

	f, err := os.Create(a.out)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	id, err := export.WriteArrow(f, td, export.Options{})
	if err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	fmt.Fprintf(a.stdout, "Wrote %d frames of %s to %s (ingest %s)\n", len(td.Time), td.FileName, a.out, id)
	return nil
}

// load reads the config, applies flag overrides and loads the cutout named
// by the first argument.
func (a *app) load(ctx context.Context, cmd *cli.Command) (*tesscpm.TargetData, error) {
	if cmd.NArg() < 1 {
		return nil, fmt.Errorf("usage: tesscpm %s <cutout.fits>", cmd.Name)
	}
	path := cmd.Args().First()

	cfg := NewDefaultConfig()
	if err := pkgconfig.LoadOptional(a.configPath, cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	a.applyOverrides(cfg)

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	start := time.Now()
	td, err := tesscpm.LoadTargetData(ctx, path,
		tesscpm.WithRemoveBad(cfg.Ingest.RemoveBad),
		tesscpm.WithVerbose(cfg.Ingest.Verbose),
		tesscpm.WithStrictNormalization(cfg.Ingest.StrictNormalization),
		tesscpm.WithWorkers(cfg.Ingest.Workers),
		tesscpm.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	elapsed := time.Since(start)
	logger.Debug("load finished", zap.Duration("elapsed", elapsed))

	if cfg.Metrics.Textfile != "" {
		m := metrics.NewIngestMetrics()
		m.Observe(td, elapsed)
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return nil, err
		}
	}
	return td, nil
}

func (a *app) applyOverrides(cfg *Config) {
	if a.keepBad {
		cfg.Ingest.RemoveBad = false
	}
	if a.quiet {
		cfg.Ingest.Verbose = false
	}
	if a.strict {
		cfg.Ingest.StrictNormalization = true
	}
	if a.metricsFile != "" {
		cfg.Metrics.Textfile = a.metricsFile
	}
}

func printSummary(w io.Writer, s tesscpm.Summary) {
	fmt.Fprintf(w, "=== %s ===\n", s.FileName)
	fmt.Fprintf(w, "  Sector/Camera/CCD:  %s / %s / %s\n", s.Sector, s.Camera, s.CCD)
	fmt.Fprintf(w, "  Frames:             %d (%d removed, %d flagged)\n", s.Frames, s.Removed, s.Flagged)
	fmt.Fprintf(w, "  Cutout size:        %d x %d\n", s.Side, s.Side)
	fmt.Fprintf(w, "  Median flux:        %.3f\n", s.MedianFlux)
	fmt.Fprintf(w, "  Scaled flux:        %.5f +/- %.5f\n", s.ScatterLevel, s.ScatterMAD)
	if s.Degenerate > 0 {
		fmt.Fprintf(w, "  Degenerate pixels:  %d\n", s.Degenerate)
	}
	switch {
	case s.WCSPresent && (math.IsNaN(s.CenterRA) || math.IsNaN(s.CenterDec)):
		fmt.Fprintln(w, "  Center (RA, Dec):   outside the WCS projection")
	case s.WCSPresent:
		fmt.Fprintf(w, "  Center (RA, Dec):   %.6f, %.6f\n", s.CenterRA, s.CenterDec)
	default:
		fmt.Fprintf(w, "  WCS:                unavailable (%s)\n", s.WCSReason)
	}
	fmt.Fprintln(w, "==============================")
}
