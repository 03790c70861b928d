// Package preview runs the tone curve over decoded frames without encoding.
// Frames are handed to a [Sink]; the bundled [SnapshotSink] writes every
// Nth mapped frame as a WebP still so the curve can be judged by eye.
package preview

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/backmassage/sdr2hdr/internal/tonemap"
)

// ErrStop is returned by a Sink to end the preview early. Run treats it as a
// normal finish.
var ErrStop = errors.New("preview stopped")

// Source yields packed RGB24 frames of a fixed geometry.
// ffmpeg.Decoder satisfies it.
type Source interface {
	Next() ([]byte, error)
	Close() error
	Width() int
	Height() int
}

// Frame is one tone-mapped frame. RGB is only valid during the WriteFrame call.
type Frame struct {
	Index  int
	Width  int
	Height int
	RGB    []byte
}

// Sink consumes mapped frames.
type Sink interface {
	WriteFrame(ctx context.Context, f Frame) error
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(ctx context.Context, f Frame) error

func (fn SinkFunc) WriteFrame(ctx context.Context, f Frame) error { return fn(ctx, f) }

// Options selects the curve.
type Options struct {
	Mode  tonemap.Mode
	Param float64
}

// Stats summarises a preview run.
type Stats struct {
	Frames  int
	Stopped bool
}

// Run maps every frame from src and passes it to sink until the stream ends,
// the sink returns ErrStop, or ctx is cancelled (checked before each frame,
// returning ctx.Err()). src is always closed.
func Run(ctx context.Context, src Source, sink Sink, opts Options) (Stats, error) {
	defer src.Close()

	if err := tonemap.ValidateParam(opts.Mode, opts.Param); err != nil {
		return Stats{}, err
	}
	lut := tonemap.NewLUT(opts.Mode, opts.Param)

	var st Stats
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		buf, err := src.Next()
		if errors.Is(err, io.EOF) {
			return st, nil
		}
		if err != nil {
			return st, fmt.Errorf("decode frame %d: %w", st.Frames, err)
		}
		lut.Apply(buf)
		err = sink.WriteFrame(ctx, Frame{Index: st.Frames, Width: src.Width(), Height: src.Height(), RGB: buf})
		st.Frames++
		if errors.Is(err, ErrStop) {
			st.Stopped = true
			return st, nil
		}
		if err != nil {
			return st, err
		}
	}
}
