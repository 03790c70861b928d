package preview

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/sdr2hdr/internal/tonemap"
)

type fakeSource struct {
	w, h   int
	frames int
	value  byte
	served int
	err    error
	closed bool
}

func (s *fakeSource) Width() int  { return s.w }
func (s *fakeSource) Height() int { return s.h }

func (s *fakeSource) Next() ([]byte, error) {
	if s.served >= s.frames {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	s.served++
	buf := make([]byte, s.w*s.h*3)
	for i := range buf {
		buf[i] = s.value
	}
	return buf, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

func TestRun_MapsEveryFrame(t *testing.T) {
	src := &fakeSource{w: 2, h: 2, frames: 4, value: 100}
	var seen []byte
	sink := SinkFunc(func(_ context.Context, f Frame) error {
		seen = append(seen, f.RGB[0])
		return nil
	})
	st, err := Run(context.Background(), src, sink, Options{Mode: tonemap.Linear, Param: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, st.Frames)
	assert.False(t, st.Stopped)
	assert.Equal(t, []byte{200, 200, 200, 200}, seen)
	assert.True(t, src.closed)
}

func TestRun_SinkStops(t *testing.T) {
	src := &fakeSource{w: 1, h: 1, frames: 10}
	sink := SinkFunc(func(_ context.Context, f Frame) error {
		if f.Index == 2 {
			return ErrStop
		}
		return nil
	})
	st, err := Run(context.Background(), src, sink, Options{Mode: tonemap.PQ, Param: 2.2})
	require.NoError(t, err)
	assert.True(t, st.Stopped)
	assert.Equal(t, 3, st.Frames)
}

func TestRun_CancelBetweenFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{w: 1, h: 1, frames: 10}
	sink := SinkFunc(func(_ context.Context, f Frame) error {
		if f.Index == 1 {
			cancel()
		}
		return nil
	})
	st, err := Run(ctx, src, sink, Options{Mode: tonemap.Linear, Param: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, st.Frames)
	assert.Equal(t, 2, src.served, "no frame is read after cancellation")
	assert.True(t, src.closed)
}

func TestRun_Errors(t *testing.T) {
	_, err := Run(context.Background(), &fakeSource{}, SinkFunc(nil), Options{Mode: tonemap.Linear, Param: 9})
	assert.Error(t, err)

	boom := errors.New("corrupt")
	_, err = Run(context.Background(), &fakeSource{w: 1, h: 1, frames: 1, err: boom},
		SinkFunc(func(context.Context, Frame) error { return nil }),
		Options{Mode: tonemap.Linear, Param: 1})
	assert.ErrorIs(t, err, boom)
}

func TestSnapshotSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	sink := &SnapshotSink{Dir: dir, Input: "/media/clip.mp4", Every: 2, MaxFrames: 2}
	src := &fakeSource{w: 4, h: 3, frames: 10, value: 60}

	st, err := Run(context.Background(), src, sink, Options{Mode: tonemap.Linear, Param: 2})
	require.NoError(t, err)
	assert.True(t, st.Stopped)
	require.Equal(t, []string{
		filepath.Join(dir, "clip_f000000.webp"),
		filepath.Join(dir, "clip_f000002.webp"),
	}, sink.Written())

	f, err := os.Open(sink.Written()[0])
	require.NoError(t, err)
	defer f.Close()
	img, err := webp.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())
	r, g, b, _ := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(120), r>>8)
	assert.Equal(t, uint32(120), g>>8)
	assert.Equal(t, uint32(120), b>>8)
}

func TestToNRGBA_ShortBuffer(t *testing.T) {
	_, err := toNRGBA(Frame{Width: 2, Height: 2, RGB: make([]byte, 5)})
	assert.Error(t, err)
}
