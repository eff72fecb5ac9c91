package tesscpm

import (
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var sectorSegmentRe = regexp.MustCompile(`^s?[0-9]+$`)

// CutoutID holds the observation identifiers encoded in a TESScut file name,
// e.g. "tess-s0005-1-3_82.207_-79.434_64x64_astrocut.fits".
type CutoutID struct {
	Prefix string
	Sector string
	Camera string
	CCD    string
}

func (id CutoutID) String() string {
	return fmt.Sprintf("{Sector=%s, Camera=%s, CCD=%s}", id.Sector, id.Camera, id.CCD)
}

// ParseCutoutName parses the dash-delimited base name of a cutout file.
// The sector segment loses its leading "s" and leading zeros; only the first
// character of the fourth segment is kept as the CCD.
func ParseCutoutName(fileName string) (CutoutID, error) {
	s := strings.Split(fileName, "-")
	if len(s) < 4 {
		return CutoutID{}, fmt.Errorf("%w: %q has %d dash-delimited segments, need at least 4",
			ErrMalformedIdentifier, fileName, len(s))
	}

	if err := validation.Validate(s[1],
		validation.Required,
		validation.Match(sectorSegmentRe).Error("must look like s0042"),
	); err != nil {
		return CutoutID{}, fmt.Errorf("%w: %q sector segment %q: %v", ErrMalformedIdentifier, fileName, s[1], err)
	}
	if err := validation.Validate(s[2], validation.Required); err != nil {
		return CutoutID{}, fmt.Errorf("%w: %q camera segment: %v", ErrMalformedIdentifier, fileName, err)
	}
	if err := validation.Validate(s[3], validation.Required); err != nil {
		return CutoutID{}, fmt.Errorf("%w: %q ccd segment: %v", ErrMalformedIdentifier, fileName, err)
	}

	return CutoutID{
		Prefix: s[0],
		Sector: strings.TrimLeft(strings.TrimPrefix(s[1], "s"), "0"),
		Camera: s[2],
		CCD:    s[3][:1],
	}, nil
}
