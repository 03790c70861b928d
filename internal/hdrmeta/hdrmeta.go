// Package hdrmeta derives HDR10 static light-level metadata (MaxCLL and
// MaxFALL) from the first frames of a video.
//
// Frames arrive as packed RGB24 buffers from a [FrameSource]. Each pixel is
// reduced to BT.601 luma, the per-frame maximum and mean are recorded, and
// the maxima over all sampled frames become MaxCLL and MaxFALL.
package hdrmeta

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// SampleFrames is the maximum number of frames inspected per video.
const SampleFrames = 30

// MasteringDisplay is the fixed SMPTE ST 2086 description (BT.2020 primaries,
// D65 white point, 0.0001–1000 cd/m²) in x265 master-display syntax.
const MasteringDisplay = "G(13250,34500)B(7500,3000)R(34000,16000)WP(15635,16450)L(10000000,1)"

// ErrEmptyStream is returned when no frame could be decoded. Reporting
// (0, 0) instead would produce a bogus max-cll=0:max-fall=0 encoder option.
var ErrEmptyStream = errors.New("no decodable frames in stream")

// Metadata holds the derived light levels. Frames is the number of frames
// that contributed (0 for user-supplied values).
type Metadata struct {
	MaxCLL  int
	MaxFALL int
	Frames  int
}

// LightLevel formats the x265 content light level options. The CLL field
// repeats FALL after the comma, as x265 expects "max-cll=<CLL>,<FALL>".
func (m Metadata) LightLevel() string {
	return fmt.Sprintf("max-cll=%d,%d:max-fall=%d", m.MaxCLL, m.MaxFALL, m.MaxFALL)
}

// FrameSource yields packed RGB24 frames. Next returns io.EOF after the last
// frame. Implementations must be safe to Close after a partial read.
type FrameSource interface {
	Next() ([]byte, error)
	Close() error
}

// Estimate samples up to [SampleFrames] frames from src and returns the
// derived metadata. src is always closed. A decode error after at least one
// good frame ends sampling early and is not reported. When no frame could
// be decoded the error is [ErrEmptyStream], joined with the decode error
// that ended the stream, if any.
func Estimate(ctx context.Context, src FrameSource) (Metadata, error) {
	defer src.Close()

	var (
		maxCLL  float64
		maxFALL float64
		n       int
	)
	for n < SampleFrames {
		if err := ctx.Err(); err != nil {
			return Metadata{}, err
		}
		frame, err := src.Next()
		if err != nil {
			if n == 0 && !errors.Is(err, io.EOF) {
				return Metadata{}, errors.Join(ErrEmptyStream, fmt.Errorf("decode frame: %w", err))
			}
			break
		}
		peak, mean, ok := FrameLuma(frame)
		if !ok {
			continue
		}
		if peak > maxCLL {
			maxCLL = peak
		}
		if mean > maxFALL {
			maxFALL = mean
		}
		n++
	}
	if n == 0 {
		return Metadata{}, ErrEmptyStream
	}
	return Metadata{MaxCLL: int(maxCLL), MaxFALL: int(maxFALL), Frames: n}, nil
}

// FrameLuma returns the peak and mean BT.601 luma of an RGB24 frame. ok is
// false for a buffer shorter than one pixel.
func FrameLuma(rgb []byte) (peak, mean float64, ok bool) {
	px := len(rgb) / 3
	if px == 0 {
		return 0, 0, false
	}
	var sum float64
	for i := 0; i+2 < len(rgb); i += 3 {
		y := Luma(rgb[i], rgb[i+1], rgb[i+2])
		if y > peak {
			peak = y
		}
		sum += y
	}
	return peak, sum / float64(px), true
}

// Luma is the standard grayscale weighting 0.299R + 0.587G + 0.114B,
// computed in integer thousandths so neutral gray maps exactly to itself.
func Luma(r, g, b byte) float64 {
	return float64(299*int(r)+587*int(g)+114*int(b)) / 1000
}
