package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/sdr2hdr/internal/job"
)

// helperCommand re-executes the test binary as a stand-in encoder; see
// TestHelperProcess for the available modes.
func helperCommand(mode string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", mode}, args...)
	cmd := exec.Command(os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "SDR2HDR_HELPER_PROCESS=1")
	return cmd
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("SDR2HDR_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	args = args[1:]

	switch args[0] {
	case "exit":
		code, _ := strconv.Atoi(args[1])
		if code != 0 {
			fmt.Fprintln(os.Stderr, "Unknown encoder 'libx265'")
		}
		os.Exit(code)
	case "encode":
		// Runs until interrupted, then exits like ffmpeg does on SIGINT.
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		select {
		case <-sig:
			os.Exit(255)
		case <-time.After(30 * time.Second):
			os.Exit(0)
		}
	case "stubborn":
		signal.Ignore(os.Interrupt)
		time.Sleep(30 * time.Second)
		os.Exit(0)
	case "frames":
		// frames <count> <frameBytes> [extra] writes count frames, then
		// extra trailing bytes.
		n, _ := strconv.Atoi(args[1])
		size, _ := strconv.Atoi(args[2])
		for i := 0; i < n; i++ {
			os.Stdout.Write(bytes.Repeat([]byte{byte(i + 1)}, size))
		}
		if len(args) > 3 {
			extra, _ := strconv.Atoi(args[3])
			os.Stdout.Write(make([]byte, extra))
		}
		if len(args) > 4 {
			fmt.Fprintln(os.Stderr, "Invalid data found when processing input")
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(2)
}

// countingTerminator records calls and forwards them to the real terminator.
type countingTerminator struct {
	mu         sync.Mutex
	interrupts int
	kills      int
}

func (c *countingTerminator) Interrupt(pid int) error {
	c.mu.Lock()
	c.interrupts++
	c.mu.Unlock()
	return DefaultTerminator().Interrupt(pid)
}

func (c *countingTerminator) Kill(pid int) error {
	c.mu.Lock()
	c.kills++
	c.mu.Unlock()
	return DefaultTerminator().Kill(pid)
}

func (c *countingTerminator) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interrupts, c.kills
}

func waitResult(t *testing.T, s *Supervisor, h *Handle) Result {
	t.Helper()
	ch := make(chan Result, 1)
	go func() { ch <- s.Wait(h) }()
	select {
	case r := <-ch:
		return r
	case <-time.After(20 * time.Second):
		t.Fatal("Wait did not return")
		return Result{}
	}
}

func TestSupervisor_Completed(t *testing.T) {
	s := NewSupervisor(Options{})
	h, err := s.launch(context.Background(), helperCommand("exit", "0"))
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID())
	assert.Positive(t, h.PID())

	r := waitResult(t, s, h)
	assert.Equal(t, Completed, r.State)
	assert.Zero(t, r.ExitCode)
	assert.NoError(t, r.Err)
	assert.Equal(t, Completed, h.State())
}

func TestSupervisor_Failed(t *testing.T) {
	s := NewSupervisor(Options{})
	h, err := s.launch(context.Background(), helperCommand("exit", "3"))
	require.NoError(t, err)

	r := waitResult(t, s, h)
	assert.Equal(t, Failed, r.State)
	assert.Equal(t, 3, r.ExitCode)

	var exitErr *ExitError
	require.True(t, errors.As(r.Err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "libx265 encoder not available in this ffmpeg build", exitErr.Reason)
	assert.Contains(t, exitErr.Stderr, "Unknown encoder")
}

func TestSupervisor_LaunchError(t *testing.T) {
	s := NewSupervisor(Options{Binary: "/nonexistent/sdr2hdr-ffmpeg"})
	h, err := s.Start(context.Background(), newJob(t, nil), nil)
	assert.Nil(t, h)
	var le *LaunchError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "/nonexistent/sdr2hdr-ffmpeg", le.Binary)

	// A failed launch leaves the supervisor free.
	h, err = s.launch(context.Background(), helperCommand("exit", "0"))
	require.NoError(t, err)
	waitResult(t, s, h)
}

func TestSupervisor_CancelAfterExitIsNoop(t *testing.T) {
	term := &countingTerminator{}
	s := NewSupervisor(Options{Terminator: term})
	h, err := s.launch(context.Background(), helperCommand("exit", "0"))
	require.NoError(t, err)
	require.Equal(t, Completed, waitResult(t, s, h).State)

	s.Cancel(h)
	s.Cancel(h)
	s.Cancel(nil)

	interrupts, _ := term.counts()
	assert.Zero(t, interrupts)
	assert.Equal(t, Completed, h.State())
	assert.Equal(t, Completed, s.Wait(h).State)
}

func TestSupervisor_CancelRunning(t *testing.T) {
	term := &countingTerminator{}
	s := NewSupervisor(Options{Terminator: term})
	h, err := s.launch(context.Background(), helperCommand("encode"))
	require.NoError(t, err)

	s.Cancel(h)
	s.Cancel(h)
	assert.Contains(t, []State{Cancelling, Cancelled}, h.State())

	r := waitResult(t, s, h)
	assert.Equal(t, Cancelled, r.State)
	assert.NoError(t, r.Err)

	interrupts, _ := term.counts()
	assert.Equal(t, 1, interrupts, "repeated Cancel must signal once")
}

// goneTerminator fails every signal the way delivery to a reaped process does.
type goneTerminator struct{ countingTerminator }

func (g *goneTerminator) Interrupt(int) error {
	g.mu.Lock()
	g.interrupts++
	g.mu.Unlock()
	return errors.New("process does not exist")
}

func TestSupervisor_CancelAfterReapKeepsOutcome(t *testing.T) {
	term := &goneTerminator{}
	s := NewSupervisor(Options{Terminator: term})
	h, err := s.launch(context.Background(), helperCommand("encode"))
	require.NoError(t, err)

	s.Cancel(h)
	assert.Equal(t, Running, h.State(), "an undelivered interrupt is not a cancel")
	interrupts, _ := term.counts()
	assert.Equal(t, 1, interrupts)

	// The process now ends on its own with a failure.
	require.NoError(t, h.cmd.Process.Kill())
	r := waitResult(t, s, h)
	assert.Equal(t, Failed, r.State)
	assert.Error(t, r.Err)
}

func TestSupervisor_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSupervisor(Options{})
	h, err := s.launch(ctx, helperCommand("encode"))
	require.NoError(t, err)

	cancel()
	assert.Equal(t, Cancelled, waitResult(t, s, h).State)
}

func TestSupervisor_KillEscalation(t *testing.T) {
	term := &countingTerminator{}
	s := NewSupervisor(Options{Terminator: term, KillAfter: 200 * time.Millisecond})
	h, err := s.launch(context.Background(), helperCommand("stubborn"))
	require.NoError(t, err)

	// Give the helper time to install its signal handler.
	time.Sleep(300 * time.Millisecond)
	s.Cancel(h)

	assert.Equal(t, Cancelled, waitResult(t, s, h).State)
	_, kills := term.counts()
	if runtime.GOOS != "windows" {
		assert.Equal(t, 1, kills)
	}
}

func TestSupervisor_Busy(t *testing.T) {
	s := NewSupervisor(Options{})
	h, err := s.launch(context.Background(), helperCommand("encode"))
	require.NoError(t, err)

	_, err = s.launch(context.Background(), helperCommand("exit", "0"))
	assert.ErrorIs(t, err, ErrSupervisorBusy)

	s.Cancel(h)
	waitResult(t, s, h)

	h2, err := s.launch(context.Background(), helperCommand("exit", "0"))
	require.NoError(t, err)
	assert.NotEqual(t, h.ID(), h2.ID())
	waitResult(t, s, h2)
}

func TestSupervisor_StderrTee(t *testing.T) {
	var buf syncBuffer
	s := NewSupervisor(Options{Stderr: &buf})
	h, err := s.launch(context.Background(), helperCommand("exit", "1"))
	require.NoError(t, err)
	waitResult(t, s, h)
	assert.Contains(t, buf.String(), "Unknown encoder")
}

func TestSupervisor_StartRequiresEstimate(t *testing.T) {
	s := NewSupervisor(Options{})
	j := newJob(t, func(p *job.Params) {
		p.EmbedMetadata = true
		p.Metadata.Mode = job.MetadataEstimated
	})
	h, err := s.Start(context.Background(), j, nil)
	assert.Nil(t, h)
	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "cancelling", Cancelling.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, Failed.Terminal())
	assert.False(t, Cancelling.Terminal())
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ io.Writer = (*syncBuffer)(nil)
