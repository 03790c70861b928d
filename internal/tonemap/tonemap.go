// Package tonemap implements the per-pixel tone curves used to stretch SDR
// luminance: Linear (gain), Log (logarithmic compression) and PQ (a gamma
// power curve approximating the Perceptual Quantizer). All functions are
// pure and operate on 8-bit code values in [0, 255].
package tonemap

import (
	"fmt"
	"math"
	"strings"
)

// Mode selects the tone curve.
type Mode string

const (
	Linear Mode = "linear" // p * scale
	Log    Mode = "log"    // 255 * ln(1 + p*f) / ln(1 + 255*f)
	PQ     Mode = "pq"     // 255 * (p/255)^gamma
)

// Parameter ranges accepted by [ValidateParam].
const (
	ScaleMin  = 0.1
	ScaleMax  = 5.0
	FactorMin = 0.1
	FactorMax = 10.0
	GammaMin  = 0.1
	GammaMax  = 5.0
)

// ParseMode converts a user-facing name (case-insensitive) into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Linear:
		return Linear, nil
	case Log:
		return Log, nil
	case PQ:
		return PQ, nil
	}
	return "", fmt.Errorf("invalid tone mode %q (use 'linear', 'log' or 'pq')", s)
}

// DefaultParam returns the curve parameter used when none is configured:
// a 1.5x gain, ln(1+p) compression, and gamma 2.2.
func DefaultParam(m Mode) float64 {
	switch m {
	case Log:
		return 1.0
	case PQ:
		return 2.2
	default:
		return 1.5
	}
}

// ValidateParam checks that param lies in the documented range for m.
func ValidateParam(m Mode, param float64) error {
	lo, hi, name := paramRange(m)
	if name == "" {
		return fmt.Errorf("invalid tone mode %q", m)
	}
	if math.IsNaN(param) || param < lo || param > hi {
		return fmt.Errorf("%s tone %s must be in [%.1f, %.1f] (got %g)", m, name, lo, hi, param)
	}
	return nil
}

func paramRange(m Mode) (lo, hi float64, name string) {
	switch m {
	case Linear:
		return ScaleMin, ScaleMax, "scale"
	case Log:
		return FactorMin, FactorMax, "factor"
	case PQ:
		return GammaMin, GammaMax, "gamma"
	}
	return 0, 0, ""
}

// Map applies the tone curve for mode to a single code value. Inputs outside
// [0, 255] are clamped first; the result always lies in [0, 255]. An unknown
// mode returns the clamped input.
func Map(pixel float64, m Mode, param float64) float64 {
	p := clip(pixel)
	switch m {
	case Linear:
		return clip(p * param)
	case Log:
		// ln(1+255f) is zero at f == 0 and the curve degenerates to identity.
		den := math.Log1p(255 * param)
		if param == 0 || den == 0 {
			return p
		}
		return clip(255 * math.Log1p(p*param) / den)
	case PQ:
		return clip(255 * math.Pow(p/255, param))
	}
	return p
}

func clip(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
