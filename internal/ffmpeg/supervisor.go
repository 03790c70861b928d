package ffmpeg

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/sdr2hdr/internal/hdrmeta"
	"github.com/backmassage/sdr2hdr/internal/job"
)

// DefaultKillAfter is the grace period between the interrupt sent by
// [Supervisor.Cancel] and a hard kill.
const DefaultKillAfter = 10 * time.Second

// stderrTail bounds the diagnostic output kept per handle.
const stderrTail = 8 << 10

// State is the lifecycle position of a [Handle].
type State int32

const (
	Idle State = iota
	Running
	Cancelling
	Completed
	Cancelled
	Failed
)

var stateNames = [...]string{"idle", "running", "cancelling", "completed", "cancelled", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled || s == Failed
}

// Options configures a [Supervisor] and the commands it builds.
type Options struct {
	Binary    string // ffmpeg executable; "" uses DefaultBinary
	Verbose   bool   // -loglevel info and stderr tee
	ShowStats bool   // -stats progress lines

	// KillAfter is how long a cancelled process may take to finalize its
	// output before it is killed. 0 disables the escalation.
	KillAfter time.Duration

	// Stderr, when set, receives a live copy of the encoder's stderr.
	Stderr io.Writer

	Terminator Terminator
	Logger     hclog.Logger
}

func (o Options) binary() string {
	if o.Binary == "" {
		return DefaultBinary
	}
	return o.Binary
}

// Result is the terminal outcome returned by [Supervisor.Wait].
// ExitCode is meaningful for Completed and Failed; Err is an [*ExitError]
// for a non-zero exit, or the wait error when the exit status is unknown.
type Result struct {
	State    State
	ExitCode int
	Err      error
}

// Handle represents one spawned encoder process. Its fields are owned by the
// supervisor; callers observe it through ID, State and PID only.
type Handle struct {
	id     string
	cmd    *exec.Cmd
	stderr *tailBuffer

	mu        sync.Mutex
	state     State
	killTimer *time.Timer

	cancelRequested atomic.Bool
	done            chan struct{}
	result          Result
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() string { return h.id }

// PID returns the operating-system process id.
func (h *Handle) PID() int { return h.cmd.Process.Pid }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done is closed once the process has exited and the result is final.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Supervisor spawns, monitors and cancels encoder processes. At most one
// handle per supervisor is running at a time.
type Supervisor struct {
	opts Options
	log  hclog.Logger
	term Terminator

	mu      sync.Mutex
	current *Handle
}

// NewSupervisor returns a supervisor using opts. A nil Terminator selects
// the platform default and a nil Logger discards output.
func NewSupervisor(opts Options) *Supervisor {
	s := &Supervisor{opts: opts, log: opts.Logger, term: opts.Terminator}
	if s.log == nil {
		s.log = hclog.NewNullLogger()
	}
	if s.term == nil {
		s.term = DefaultTerminator()
	}
	return s
}

// Start builds the encode command for j and spawns it, returning a Running
// handle. meta must be non-nil when the job estimates its metadata so the
// encoder never starts without its light levels. A spawn failure returns a
// [*LaunchError] and no handle.
//
// Cancelling ctx has the same effect as calling [Supervisor.Cancel].
func (s *Supervisor) Start(ctx context.Context, j job.ConversionJob, meta *hdrmeta.Metadata) (*Handle, error) {
	if j.NeedsEstimation() && meta == nil {
		return nil, errors.New("start encoder: estimated metadata is not available")
	}
	args := Build(j, meta, s.opts)
	s.log.Debug("ffmpeg command", "args", args)
	return s.launch(ctx, exec.Command(args[0], args[1:]...))
}

func (s *Supervisor) launch(ctx context.Context, cmd *exec.Cmd) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && !s.current.State().Terminal() {
		return nil, ErrSupervisorBusy
	}

	h := &Handle{
		id:     uuid.NewString(),
		cmd:    cmd,
		stderr: newTailBuffer(stderrTail),
		done:   make(chan struct{}),
	}
	if s.opts.Stderr != nil {
		cmd.Stderr = io.MultiWriter(h.stderr, s.opts.Stderr)
	} else if s.opts.Verbose {
		cmd.Stderr = io.MultiWriter(h.stderr, os.Stderr)
	} else {
		cmd.Stderr = h.stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Binary: cmd.Path, Err: err}
	}
	h.state = Running
	s.current = h
	s.log.Debug("encoder started", "handle", h.id, "pid", h.PID())

	go s.monitor(h)
	go func() {
		select {
		case <-ctx.Done():
			s.Cancel(h)
		case <-h.done:
		}
	}()
	return h, nil
}

// monitor waits for the process and publishes the terminal result.
func (s *Supervisor) monitor(h *Handle) {
	err := h.cmd.Wait()

	h.mu.Lock()
	if h.killTimer != nil {
		h.killTimer.Stop()
	}
	var res Result
	var exitErr *exec.ExitError
	switch {
	case h.cancelRequested.Load():
		res = Result{State: Cancelled, ExitCode: h.cmd.ProcessState.ExitCode()}
	case err == nil:
		res = Result{State: Completed}
	case errors.As(err, &exitErr):
		tail := h.stderr.String()
		res = Result{
			State:    Failed,
			ExitCode: exitErr.ExitCode(),
			Err:      &ExitError{Code: exitErr.ExitCode(), Reason: Classify(tail), Stderr: tail},
		}
	default:
		res = Result{State: Failed, ExitCode: -1, Err: err}
	}
	h.result = res
	h.state = res.State
	h.mu.Unlock()

	s.log.Debug("encoder exited", "handle", h.id, "state", res.State, "code", res.ExitCode)
	close(h.done)
}

// Cancel asks the process behind h to stop and finalize its output. It is
// idempotent and a no-op once h is terminal. The cancel only counts when the
// interrupt reaches a live process; a process already reaped keeps its own
// outcome. When KillAfter is set and the process is still alive after that
// grace period it is killed.
func (s *Supervisor) Cancel(h *Handle) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Running {
		return
	}
	// monitor publishes the exit under h.mu, so a process that Wait has
	// already reaped fails the signal here instead of being marked cancelled.
	pid := h.PID()
	if err := s.term.Interrupt(pid); err != nil {
		s.log.Debug("interrupt failed", "handle", h.id, "pid", pid, "error", err)
		return
	}
	h.state = Cancelling
	h.cancelRequested.Store(true)
	s.log.Info("cancel requested", "handle", h.id, "pid", pid)
	if s.opts.KillAfter > 0 {
		h.killTimer = time.AfterFunc(s.opts.KillAfter, func() {
			select {
			case <-h.done:
				return
			default:
			}
			s.log.Warn("encoder did not stop in time, killing", "handle", h.id, "pid", pid)
			if err := s.term.Kill(pid); err != nil {
				s.log.Debug("kill failed", "pid", pid, "error", err)
			}
		})
	}
}

// Wait blocks until h's process has exited and returns its terminal result.
// A cancel delivered before exit yields Cancelled regardless of exit status.
func (s *Supervisor) Wait(h *Handle) Result {
	<-h.done
	return h.result
}
