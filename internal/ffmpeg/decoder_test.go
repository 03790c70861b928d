package ffmpeg

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/sdr2hdr/internal/hdrmeta"
)

var _ hdrmeta.FrameSource = (*Decoder)(nil)

func TestDecoder_ReadsFrames(t *testing.T) {
	// 2x1 pixels, 6 bytes per frame.
	d, err := startDecoder(context.Background(), helperCommand("frames", "3", "6"), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Width())
	assert.Equal(t, 1, d.Height())

	for i := 1; i <= 3; i++ {
		f, err := d.Next()
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i), byte(i), byte(i), byte(i), byte(i), byte(i)}, f)
	}
	_, err = d.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, d.Close())
}

func TestDecoder_TruncatedFrameIsEOF(t *testing.T) {
	d, err := startDecoder(context.Background(), helperCommand("frames", "1", "6", "4"), 2, 1)
	require.NoError(t, err)
	_, err = d.Next()
	require.NoError(t, err)
	_, err = d.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoder_ProcessFailure(t *testing.T) {
	d, err := startDecoder(context.Background(), helperCommand("frames", "1", "6", "0", "fail"), 2, 1)
	require.NoError(t, err)
	_, err = d.Next()
	require.NoError(t, err)

	_, err = d.Next()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)
	assert.Equal(t, "input is not a readable video", exitErr.Reason)
}

func TestDecoder_EarlyClose(t *testing.T) {
	d, err := startDecoder(context.Background(), helperCommand("frames", "50", "6"), 2, 1)
	require.NoError(t, err)
	_, err = d.Next()
	require.NoError(t, err)
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())
}

func TestDecoder_FeedsEstimator(t *testing.T) {
	d, err := startDecoder(context.Background(), helperCommand("frames", "5", "6"), 2, 1)
	require.NoError(t, err)
	m, err := hdrmeta.Estimate(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Frames)
	assert.Equal(t, 5, m.MaxCLL)
	assert.Equal(t, 5, m.MaxFALL)
}
