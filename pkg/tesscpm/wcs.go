package tesscpm

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/image/math/f64"
)

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

// WCS is a gnomonic (TAN) world coordinate system with optional SIP
// distortion, as written by TESScut into the aperture HDU.
type WCS struct {
	CType  [2]string
	CRVal  [2]float64 // degrees
	CRPix  [2]float64 // 1-based FITS pixel
	Linear f64.Aff3   // CD matrix, no translation

	sipA, sipB   *sipPoly
	sipAP, sipBP *sipPoly
}

// sipPoly holds coefficients c[p][q] of u^p v^q.
type sipPoly struct {
	order int
	c     [][]float64
}

func (p *sipPoly) eval(u, v float64) float64 {
	var sum float64
	for i := 0; i <= p.order; i++ {
		for j := 0; j <= p.order-i; j++ {
			if c := p.c[i][j]; c != 0 {
				sum += c * math.Pow(u, float64(i)) * math.Pow(v, float64(j))
			}
		}
	}
	return sum
}

// PixelToWorld maps 0-based pixel coordinates to (ra, dec) in degrees.
func (w *WCS) PixelToWorld(x, y float64) (float64, float64) {
	u := x + 1 - w.CRPix[0]
	v := y + 1 - w.CRPix[1]
	if w.sipA != nil && w.sipB != nil {
		u, v = u+w.sipA.eval(u, v), v+w.sipB.eval(u, v)
	}
	xi, eta := applyLinear(w.Linear, u, v)
	return deprojectTAN(xi*deg2rad, eta*deg2rad, w.CRVal[0]*deg2rad, w.CRVal[1]*deg2rad)
}

// WorldToPixel maps (ra, dec) in degrees to 0-based pixel coordinates. With
// SIP distortion and no AP/BP inverse polynomials the distortion is ignored.
func (w *WCS) WorldToPixel(ra, dec float64) (float64, float64, error) {
	xi, eta, ok := projectTAN(ra*deg2rad, dec*deg2rad, w.CRVal[0]*deg2rad, w.CRVal[1]*deg2rad)
	if !ok {
		return math.NaN(), math.NaN(), fmt.Errorf("(%f, %f) is on the far hemisphere", ra, dec)
	}
	inv, ok := invertLinear(w.Linear)
	if !ok {
		return math.NaN(), math.NaN(), fmt.Errorf("singular CD matrix")
	}
	u, v := applyLinear(inv, xi*rad2deg, eta*rad2deg)
	if w.sipAP != nil && w.sipBP != nil {
		u, v = u+w.sipAP.eval(u, v), v+w.sipBP.eval(u, v)
	}
	return u + w.CRPix[0] - 1, v + w.CRPix[1] - 1, nil
}

func applyLinear(m f64.Aff3, x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

func invertLinear(m f64.Aff3) (f64.Aff3, bool) {
	det := m[0]*m[4] - m[1]*m[3]
	if det == 0 || math.IsNaN(det) {
		return f64.Aff3{}, false
	}
	return f64.Aff3{m[4] / det, -m[1] / det, 0, -m[3] / det, m[0] / det, 0}, true
}

// deprojectTAN inverts the gnomonic projection about (ra0, dec0); all radians in, degrees out.
func deprojectTAN(xi, eta, ra0, dec0 float64) (float64, float64) {
	den := math.Cos(dec0) - eta*math.Sin(dec0)
	ra := ra0 + math.Atan2(xi, den)
	dec := math.Atan2(math.Sin(dec0)+eta*math.Cos(dec0), math.Hypot(xi, den))
	ra = math.Mod(ra*rad2deg, 360)
	if ra < 0 {
		ra += 360
	}
	return ra, dec * rad2deg
}

func projectTAN(ra, dec, ra0, dec0 float64) (float64, float64, bool) {
	cosc := math.Sin(dec)*math.Sin(dec0) + math.Cos(dec)*math.Cos(dec0)*math.Cos(ra-ra0)
	if cosc <= 0 {
		return 0, 0, false
	}
	xi := math.Cos(dec) * math.Sin(ra-ra0) / cosc
	eta := (math.Sin(dec)*math.Cos(dec0) - math.Cos(dec)*math.Sin(dec0)*math.Cos(ra-ra0)) / cosc
	return xi, eta, true
}

// WCSParser builds a coordinate transform from a header.
type WCSParser interface {
	ParseWCS(h *FitsMetadata) (*WCS, error)
}

// TANParser parses RA---TAN / DEC--TAN headers, with or without -SIP.
type TANParser struct{}

var _ WCSParser = TANParser{}

func (TANParser) ParseWCS(h *FitsMetadata) (*WCS, error) {
	if h == nil {
		return nil, ErrNoWCSHeader
	}
	w := &WCS{CType: [2]string{h.GetString("CTYPE1"), h.GetString("CTYPE2")}}
	if !strings.HasPrefix(w.CType[0], "RA") || !strings.HasPrefix(w.CType[1], "DEC") {
		return nil, fmt.Errorf("%w: CTYPE %q/%q", ErrUnsupportedProjection, w.CType[0], w.CType[1])
	}
	for _, ct := range w.CType {
		if len(ct) < 8 || ct[5:8] != "TAN" {
			return nil, fmt.Errorf("%w: CTYPE %q", ErrUnsupportedProjection, ct)
		}
	}

	for i, axis := range []string{"1", "2"} {
		var ok bool
		if w.CRVal[i], ok = h.GetDouble("CRVAL" + axis); !ok {
			return nil, fmt.Errorf("missing CRVAL%s", axis)
		}
		if w.CRPix[i], ok = h.GetDouble("CRPIX" + axis); !ok {
			return nil, fmt.Errorf("missing CRPIX%s", axis)
		}
	}

	cd, err := parseCD(h)
	if err != nil {
		return nil, err
	}
	w.Linear = cd
	if _, ok := invertLinear(cd); !ok {
		return nil, fmt.Errorf("singular CD matrix %v", cd)
	}

	if strings.HasSuffix(w.CType[0], "-SIP") {
		if w.sipA, err = parseSIP(h, "A"); err != nil {
			return nil, err
		}
		if w.sipB, err = parseSIP(h, "B"); err != nil {
			return nil, err
		}
		// Inverse polynomials are optional.
		w.sipAP, _ = parseSIP(h, "AP")
		w.sipBP, _ = parseSIP(h, "BP")
	}
	return w, nil
}

// parseCD reads CDi_j, falling back to PCi_j * CDELTi.
func parseCD(h *FitsMetadata) (f64.Aff3, error) {
	if h.Has("CD1_1") || h.Has("CD2_2") {
		get := func(k string) float64 { v, _ := h.GetDouble(k); return v }
		return f64.Aff3{get("CD1_1"), get("CD1_2"), 0, get("CD2_1"), get("CD2_2"), 0}, nil
	}

	cdelt1, ok1 := h.GetDouble("CDELT1")
	cdelt2, ok2 := h.GetDouble("CDELT2")
	if !ok1 || !ok2 {
		return f64.Aff3{}, fmt.Errorf("neither CD nor CDELT keywords present")
	}
	pc := func(k string, def float64) float64 {
		if v, ok := h.GetDouble(k); ok {
			return v
		}
		return def
	}
	return f64.Aff3{
		cdelt1 * pc("PC1_1", 1), cdelt1 * pc("PC1_2", 0), 0,
		cdelt2 * pc("PC2_1", 0), cdelt2 * pc("PC2_2", 1), 0,
	}, nil
}

func parseSIP(h *FitsMetadata, name string) (*sipPoly, error) {
	order, ok := h.GetInt(name + "_ORDER")
	if !ok || order < 0 {
		return nil, fmt.Errorf("missing %s_ORDER", name)
	}
	p := &sipPoly{order: order, c: make([][]float64, order+1)}
	for i := range p.c {
		p.c[i] = make([]float64, order+1)
		for j := 0; j <= order-i; j++ {
			p.c[i][j], _ = h.GetDouble(fmt.Sprintf("%s_%d_%d", name, i, j))
		}
	}
	return p, nil
}

// OptionalWCS is a WCS that may be absent; Reason records why it is.
type OptionalWCS struct {
	WCS    *WCS
	Reason error
}

func (o OptionalWCS) Present() bool { return o.WCS != nil }

// Get returns the WCS and whether it is present.
func (o OptionalWCS) Get() (*WCS, bool) { return o.WCS, o.WCS != nil }

func resolveWCS(p WCSParser, h *FitsMetadata) OptionalWCS {
	if h == nil {
		return OptionalWCS{Reason: ErrNoWCSHeader}
	}
	w, err := p.ParseWCS(h)
	if err != nil {
		return OptionalWCS{Reason: err}
	}
	return OptionalWCS{WCS: w}
}
