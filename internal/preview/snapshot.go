package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"

	"github.com/chai2010/webp"

	"github.com/backmassage/sdr2hdr/internal/naming"
)

// SnapshotSink writes every Every-th frame of Input as a WebP file in Dir.
// Quality 0 selects lossless encoding. MaxFrames > 0 stops the preview after
// that many snapshots.
type SnapshotSink struct {
	Dir       string
	Input     string
	Every     int
	Quality   float32
	MaxFrames int

	written []string
}

// Written lists the snapshot paths produced so far.
func (s *SnapshotSink) Written() []string { return s.written }

func (s *SnapshotSink) WriteFrame(_ context.Context, f Frame) error {
	every := s.Every
	if every <= 0 {
		every = 1
	}
	if f.Index%every != 0 {
		return nil
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	img, err := toNRGBA(f)
	if err != nil {
		return err
	}

	opts := &webp.Options{Lossless: true}
	if s.Quality > 0 {
		opts = &webp.Options{Quality: s.Quality}
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, opts); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	path := naming.SnapshotPath(s.Dir, s.Input, f.Index)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	s.written = append(s.written, path)

	if s.MaxFrames > 0 && len(s.written) >= s.MaxFrames {
		return ErrStop
	}
	return nil
}

// toNRGBA expands packed RGB24 to an opaque NRGBA image.
func toNRGBA(f Frame) (*image.NRGBA, error) {
	if f.Width <= 0 || f.Height <= 0 || len(f.RGB) < f.Width*f.Height*3 {
		return nil, fmt.Errorf("frame %d: %d bytes for %dx%d", f.Index, len(f.RGB), f.Width, f.Height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; j < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = f.RGB[i]
		img.Pix[j+1] = f.RGB[i+1]
		img.Pix[j+2] = f.RGB[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}
