package tonemap

import (
	"fmt"
	"math"
)

// LUT is a precomputed 8-bit lookup table for one curve.
type LUT [256]uint8

// NewLUT evaluates [Map] for every code value, rounding to the nearest integer.
func NewLUT(m Mode, param float64) *LUT {
	var l LUT
	for i := range l {
		l[i] = uint8(math.Round(Map(float64(i), m, param)))
	}
	return &l
}

// Apply maps every byte of frame in place. The buffer layout does not
// matter (RGB24, BGR24, gray): each channel sample is mapped independently.
func (l *LUT) Apply(frame []byte) {
	for i, v := range frame {
		frame[i] = l[v]
	}
}

// Apply is a convenience wrapper that builds a LUT for a single frame.
// Callers processing many frames should build the LUT once with [NewLUT].
func Apply(frame []byte, m Mode, param float64) {
	NewLUT(m, param).Apply(frame)
}

// FilterExpr renders the curve as an ffmpeg lutrgb filter so the encoder can
// apply the same mapping that [Map] computes. Each channel expression is
// single-quoted so its commas survive filtergraph parsing.
func FilterExpr(m Mode, param float64) string {
	var e string
	switch m {
	case Linear:
		e = fmt.Sprintf("clip(val*%g,0,255)", param)
	case Log:
		if param == 0 {
			return ""
		}
		e = fmt.Sprintf("clip(255*log(1+val*%g)/log(1+255*%g),0,255)", param, param)
	case PQ:
		e = fmt.Sprintf("clip(255*pow(val/255,%g),0,255)", param)
	default:
		return ""
	}
	return fmt.Sprintf("lutrgb=r='%s':g='%s':b='%s'", e, e, e)
}
