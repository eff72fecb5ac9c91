//go:build js && wasm

package main

import (
	"context"
	"syscall/js"

	"tesscpm/pkg/tesscpm"
)

func main() {
	js.Global().Set("loadCutout", js.FuncOf(loadCutout))
	select {} // block forever
}

func loadCutout(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("usage: loadCutout(fileBytes, fileName, options)")
	}

	jsBytes := args[0]
	length := jsBytes.Get("length").Int()
	fileBytes := make([]byte, length)
	js.CopyBytesToGo(fileBytes, jsBytes)

	fileName := args[1].String()

	removeBad := true
	strict := false
	if len(args) >= 3 && args[2].Type() == js.TypeObject {
		if v := args[2].Get("removeBad"); v.Type() == js.TypeBoolean {
			removeBad = v.Bool()
		}
		if v := args[2].Get("strict"); v.Type() == js.TypeBoolean {
			strict = v.Bool()
		}
	}

	td, err := tesscpm.LoadTargetData(context.Background(), fileName,
		tesscpm.WithReader(tesscpm.BytesReader(fileBytes)),
		tesscpm.WithRemoveBad(removeBad),
		tesscpm.WithStrictNormalization(strict),
		tesscpm.WithVerbose(false),
		tesscpm.WithWorkers(1),
	)
	if err != nil {
		return errorResult("Load error: " + err.Error())
	}
	s := tesscpm.Summarize(td)

	jsResult := map[string]interface{}{
		"fileName":         s.FileName,
		"sector":           s.Sector,
		"camera":           s.Camera,
		"ccd":              s.CCD,
		"frames":           s.Frames,
		"side":             s.Side,
		"removed":          s.Removed,
		"flagged":          s.Flagged,
		"degeneratePixels": s.Degenerate,
		"medianFlux":       s.MedianFlux,
		"scatterLevel":     s.ScatterLevel,
		"scatterMAD":       s.ScatterMAD,
		"wcs":              s.WCSPresent,
	}
	if s.WCSPresent {
		jsResult["centerRA"] = s.CenterRA
		jsResult["centerDec"] = s.CenterDec
	} else {
		jsResult["wcsReason"] = s.WCSReason
	}

	medians := td.FlattenedFluxMedians.RawVector().Data
	jsMedians := make([]interface{}, len(medians))
	for i, m := range medians {
		jsMedians[i] = m
	}
	jsResult["fluxMedians"] = jsMedians

	return js.ValueOf(jsResult)
}

func errorResult(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{
		"error": msg,
	})
}
