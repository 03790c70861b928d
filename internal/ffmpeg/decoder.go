package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/backmassage/sdr2hdr/internal/probe"
)

// DecodeOptions configures [OpenDecoder].
type DecodeOptions struct {
	FFmpeg    string // "" uses DefaultBinary
	FFprobe   string // "" uses probe.DefaultBinary
	MaxFrames int    // <= 0 decodes every frame
}

// Decoder streams packed RGB24 frames from an ffmpeg rawvideo pipe. It
// satisfies hdrmeta.FrameSource. The slice returned by Next is reused and
// is only valid until the following call.
type Decoder struct {
	ctx    context.Context
	cmd    *exec.Cmd
	out    io.ReadCloser
	r      *bufio.Reader
	stderr *tailBuffer
	frame  []byte
	width  int
	height int
	eof    bool

	closeOnce sync.Once
	closeErr  error
}

// OpenDecoder probes path for its frame geometry and starts an ffmpeg
// process decoding it to raw RGB24. The caller must Close the decoder.
func OpenDecoder(ctx context.Context, path string, opts DecodeOptions) (*Decoder, error) {
	pr, err := probe.Probe(ctx, opts.FFprobe, path)
	if err != nil {
		return nil, err
	}
	w, h, ok := pr.Dimensions()
	if !ok {
		return nil, fmt.Errorf("%s: no video stream", path)
	}

	bin := opts.FFmpeg
	if bin == "" {
		bin = DefaultBinary
	}
	args := decodeArgs(bin, path, opts.MaxFrames)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	return startDecoder(ctx, cmd, w, h)
}

func startDecoder(ctx context.Context, cmd *exec.Cmd, w, h int) (*Decoder, error) {
	d := &Decoder{
		ctx:    ctx,
		cmd:    cmd,
		stderr: newTailBuffer(stderrTail),
		frame:  make([]byte, w*h*3),
		width:  w,
		height: h,
	}
	cmd.Stderr = d.stderr
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Binary: cmd.Path, Err: err}
	}
	d.out = out
	d.r = bufio.NewReaderSize(out, len(d.frame))
	return d, nil
}

// Width returns the frame width in pixels.
func (d *Decoder) Width() int { return d.width }

// Height returns the frame height in pixels.
func (d *Decoder) Height() int { return d.height }

// Next returns the next frame, or io.EOF once the stream is exhausted. A
// truncated trailing frame is treated as the end of the stream.
func (d *Decoder) Next() ([]byte, error) {
	_, err := io.ReadFull(d.r, d.frame)
	switch {
	case err == nil:
		return d.frame, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		d.eof = true
		if werr := d.Close(); werr != nil {
			return nil, werr
		}
		return nil, io.EOF
	default:
		return nil, fmt.Errorf("read frame: %w", err)
	}
}

// Close stops the decoder process. It is safe to call more than once and
// after a partial read. A non-zero exit is reported as an [*ExitError] only
// when the stream was read to its end and the context is still live; an
// early Close always breaks the pipe and that exit is expected.
func (d *Decoder) Close() error {
	d.closeOnce.Do(func() {
		_ = d.out.Close()
		err := d.cmd.Wait()
		var exitErr *exec.ExitError
		if d.eof && d.ctx.Err() == nil && errors.As(err, &exitErr) {
			tail := d.stderr.String()
			d.closeErr = &ExitError{Code: exitErr.ExitCode(), Reason: Classify(tail), Stderr: tail}
		}
	})
	return d.closeErr
}
