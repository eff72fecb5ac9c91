package tesscpm

import "errors"

var (
	ErrMalformedIdentifier     = errors.New("malformed cutout identifier")
	ErrMissingColumn           = errors.New("missing table column")
	ErrShapeMismatch           = errors.New("cutout shape mismatch")
	ErrEmptyCutout             = errors.New("cutout has no frames")
	ErrDegenerateNormalization = errors.New("degenerate normalization")
	ErrNoWCSHeader             = errors.New("no WCS header")
	ErrUnsupportedProjection   = errors.New("unsupported projection")
)
