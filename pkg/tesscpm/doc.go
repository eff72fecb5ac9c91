// Package tesscpm loads TESS full-frame-image cutouts into a TargetData
// ready for Causal Pixel Model light-curve extraction.
//
// A cutout is read from one local FITS file: the TIME, FLUX, FLUX_ERR and
// QUALITY columns of the binary table in HDU 1, and an optional TAN/SIP world
// coordinate system from the header of HDU 2. Samples with a nonzero QUALITY
// flag are dropped by default, per-pixel NaN-aware medians are computed over
// the remaining frames, and every frame is scaled by them.
//
// Frame arithmetic runs on OpenCV through gocv by default. Build with the
// purego tag (or for js/wasm) to use the pure Go backend.
package tesscpm
