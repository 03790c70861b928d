package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/sdr2hdr/internal/config"
	"github.com/backmassage/sdr2hdr/internal/ffmpeg"
	"github.com/backmassage/sdr2hdr/internal/hdrmeta"
	"github.com/backmassage/sdr2hdr/internal/job"
	"github.com/backmassage/sdr2hdr/internal/journal"
	"github.com/backmassage/sdr2hdr/internal/naming"
	"github.com/backmassage/sdr2hdr/internal/preview"
	"github.com/backmassage/sdr2hdr/internal/probe"
)

// FailurePolicy decides whether a batch continues after an encoder failure.
type FailurePolicy int

const (
	// StopOnFailure halts the batch after the first encoder process failure.
	StopOnFailure FailurePolicy = iota
	// ContinueOnFailure records the failure and moves on.
	ContinueOnFailure
)

// Encoder runs one encode to completion.
type Encoder interface {
	Encode(ctx context.Context, j job.ConversionJob, meta *hdrmeta.Metadata) (ffmpeg.Result, error)
}

// Estimator samples a file's light levels.
type Estimator interface {
	Estimate(ctx context.Context, path string) (hdrmeta.Metadata, error)
}

// Previewer tone-maps a file without encoding it.
type Previewer interface {
	Preview(ctx context.Context, j job.ConversionJob) (preview.Stats, error)
}

// Journal records outcomes and answers whether an input is already done.
type Journal interface {
	Done(input string) (bool, error)
	Put(rec journal.Record) error
}

// ProbeFunc inspects a source file. It is only used to warn about inputs
// that already carry HDR signalling.
type ProbeFunc func(ctx context.Context, path string) (*probe.ProbeResult, error)

// Options wires an Orchestrator. Encoder is required unless every request
// previews; Estimator is required for estimated metadata.
type Options struct {
	Encoder   Encoder
	Estimator Estimator
	Previewer Previewer
	Journal   Journal   // optional
	Probe     ProbeFunc // optional
	Logger    hclog.Logger

	// CaseInsensitive makes batch output names that differ only in case
	// collide.
	CaseInsensitive bool
}

// Request is one batch to run.
type Request struct {
	Inputs  []string
	Output  string // file in single mode, directory in batch mode
	Batch   bool
	Resolve DiscoverOptions
	Params  job.Params // paths are filled in per file
	Policy  FailurePolicy
	Preview bool
	Resume  bool // skip inputs the journal marks done
	Status  StatusFunc
}

// Orchestrator runs batches. Output names claimed by one Run stay claimed
// for later runs on the same Orchestrator, so watch mode never reuses a name.
type Orchestrator struct {
	opts     Options
	log      hclog.Logger
	resolver *naming.CollisionResolver
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Orchestrator{
		opts:     opts,
		log:      log,
		resolver: naming.NewCollisionResolver(opts.CaseInsensitive),
	}
}

// Run resolves req and returns the sequence of per-file results. Input and
// option errors are reported here, wrapping config.ErrInvalidInput, before
// any file is touched. The sequence runs files one at a time as it is
// iterated, yields one Result per attempted file and can be iterated only
// once. After a halt under StopOnFailure no further results are yielded.
func (o *Orchestrator) Run(ctx context.Context, req Request) (iter.Seq[Result], error) {
	files, err := Resolve(req.Inputs, ResolveOptions{DiscoverOptions: req.Resolve, Logger: o.log})
	if err != nil {
		return nil, err
	}
	targets, err := planTargets(files, req.Output, req.Batch, o.opts.CaseInsensitive, o.resolver)
	if err != nil {
		return nil, err
	}
	p := req.Params
	p.InputPath, p.OutputPath = targets[0].Input, targets[0].Output
	tmpl, err := job.New(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidInput, err)
	}
	jobs := make([]job.ConversionJob, len(targets))
	jobs[0] = tmpl
	for i, t := range targets[1:] {
		if jobs[i+1], err = tmpl.WithPaths(t.Input, t.Output); err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidInput, err)
		}
	}
	if err := o.checkWiring(req, jobs); err != nil {
		return nil, err
	}

	b := &batch{
		o:     o,
		req:   req,
		jobs:  jobs,
		runID: uuid.NewString(),
	}
	b.log = o.log.With("run", b.runID[:8])
	b.log.Info("resolved inputs", "files", len(jobs), "batch", req.Batch, "preview", req.Preview)

	var used atomic.Bool
	return func(yield func(Result) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}
		b.run(ctx, yield)
	}, nil
}

func (o *Orchestrator) checkWiring(req Request, jobs []job.ConversionJob) error {
	switch {
	case req.Preview && o.opts.Previewer == nil:
		return errors.New("preview requested but no previewer configured")
	case !req.Preview && o.opts.Encoder == nil:
		return errors.New("no encoder configured")
	case !req.Preview && jobs[0].NeedsEstimation() && o.opts.Estimator == nil:
		return errors.New("estimated metadata requested but no estimator configured")
	case req.Resume && o.opts.Journal == nil:
		return errors.New("resume requested but no journal configured")
	}
	return nil
}

// batch is the state of one Run.
type batch struct {
	o     *Orchestrator
	req   Request
	jobs  []job.ConversionJob
	runID string
	log   hclog.Logger

	mu         sync.Mutex
	finished   bool
	cancelOnce sync.Once
}

// emit delivers ev to the observer. Events after the final one are dropped.
func (b *batch) emit(ev StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished || b.req.Status == nil {
		return
	}
	b.req.Status(ev)
	if ev.Kind == EventComplete || ev.Kind == EventCancelled {
		b.finished = true
	}
}

// cancelRequested announces cancellation once, whichever of the context
// callback and the file loop notices it first.
func (b *batch) cancelRequested() {
	b.cancelOnce.Do(func() {
		b.log.Warn("cancel requested")
		b.emit(StatusEvent{Kind: EventCancelRequested})
	})
}

func (b *batch) finish() {
	b.mu.Lock()
	b.finished = true
	b.mu.Unlock()
}

func (b *batch) run(ctx context.Context, yield func(Result) bool) {
	defer b.finish()
	b.emit(StatusEvent{Kind: EventWaiting})
	stop := context.AfterFunc(ctx, b.cancelRequested)
	defer stop()

	for i, j := range b.jobs {
		var (
			res           Result
			encoderFailed bool
		)
		if ctx.Err() != nil {
			b.cancelRequested()
			res = b.result(i, j)
			res.Outcome = Outcome{Status: StatusCancelled}
		} else if b.skip(j) {
			res = b.result(i, j)
			res.Outcome = Outcome{Status: StatusSkipped}
			b.log.Info("already converted, skipping", "file", j.InputPath())
		} else {
			b.emit(StatusEvent{Kind: EventConverting, File: j.InputPath()})
			res, encoderFailed = b.convert(ctx, i, j)
			b.record(res)
		}

		if res.Outcome.Status == StatusFailed {
			b.emit(StatusEvent{Kind: EventFailed, File: res.File, Err: res.Outcome.Err})
		}
		halt := encoderFailed && b.req.Policy == StopOnFailure
		if !yield(res) {
			return
		}
		if halt {
			b.log.Error("stopping batch after encoder failure", "file", res.File)
			return
		}
	}

	if ctx.Err() != nil {
		b.cancelRequested()
		b.emit(StatusEvent{Kind: EventCancelled})
	} else {
		b.emit(StatusEvent{Kind: EventComplete})
	}
}

func (b *batch) result(i int, j job.ConversionJob) Result {
	return Result{Index: i, File: j.InputPath(), Output: j.OutputPath()}
}

func (b *batch) skip(j job.ConversionJob) bool {
	if !b.req.Resume || b.req.Preview {
		return false
	}
	done, err := b.o.opts.Journal.Done(j.InputPath())
	if err != nil {
		b.log.Warn("journal lookup failed", "file", j.InputPath(), "error", err)
		return false
	}
	return done
}

// convert processes one file and classifies the outcome. encoderFailed is
// true only when the encoder process itself ended in the Failed state;
// decode, estimation and preview errors never set it.
func (b *batch) convert(ctx context.Context, i int, j job.ConversionJob) (res Result, encoderFailed bool) {
	start := time.Now()
	res = b.result(i, j)
	fail := func(err error) (Result, bool) {
		res.Outcome = Outcome{Status: StatusFailed, Err: err}
		res.Elapsed = time.Since(start)
		return res, false
	}

	in := j.InputPath()
	fi, err := os.Stat(in)
	if err != nil {
		return fail(err)
	}
	res.InputBytes = fi.Size()
	b.warnIfHDR(ctx, in)

	if b.req.Preview {
		st, err := b.o.opts.Previewer.Preview(ctx, j)
		res.Frames = st.Frames
		res.Elapsed = time.Since(start)
		switch {
		case ctx.Err() != nil:
			res.Outcome = Outcome{Status: StatusCancelled}
		case err != nil:
			return fail(err)
		default:
			res.Outcome = Outcome{Status: StatusSuccess}
		}
		return res, false
	}

	if err := os.MkdirAll(filepath.Dir(j.OutputPath()), 0o755); err != nil {
		return fail(fmt.Errorf("create output directory: %w", err))
	}

	var meta *hdrmeta.Metadata
	if j.NeedsEstimation() {
		m, err := b.o.opts.Estimator.Estimate(ctx, in)
		if ctx.Err() != nil {
			res.Outcome = Outcome{Status: StatusCancelled}
			res.Elapsed = time.Since(start)
			return res, false
		}
		if err != nil {
			return fail(fmt.Errorf("estimate metadata: %w", err))
		}
		meta = &m
		res.Metadata = meta
		b.log.Debug("estimated light levels", "file", in, "max_cll", m.MaxCLL, "max_fall", m.MaxFALL, "frames", m.Frames)
	}

	er, err := b.o.opts.Encoder.Encode(ctx, j, meta)
	if err != nil {
		return fail(err)
	}
	res.Elapsed = time.Since(start)
	switch er.State {
	case ffmpeg.Completed:
		res.Outcome = Outcome{Status: StatusSuccess}
		if oi, err := os.Stat(j.OutputPath()); err == nil {
			res.OutputBytes = oi.Size()
		}
	case ffmpeg.Cancelled:
		// ffmpeg finalizes the container on SIGINT, so the partial output stays.
		res.Outcome = Outcome{Status: StatusCancelled}
	default:
		os.Remove(j.OutputPath())
		err := er.Err
		if err == nil {
			err = fmt.Errorf("encoder ended in state %s", er.State)
		}
		res, _ = fail(err)
		return res, er.State == ffmpeg.Failed
	}
	return res, false
}

func (b *batch) warnIfHDR(ctx context.Context, path string) {
	if b.o.opts.Probe == nil {
		return
	}
	pr, err := b.o.opts.Probe(ctx, path)
	if err != nil {
		b.log.Debug("probe failed", "file", path, "error", err)
		return
	}
	if v := pr.PrimaryVideo; v != nil {
		b.log.Debug("source", "file", path, "width", v.Width, "height", v.Height, "fps", pr.FrameRate(), "frames", v.NbFrames)
	}
	if pr.IsHDR() {
		b.log.Warn("source already carries HDR signalling", "file", path, "type", pr.HDRType())
	}
}

// record stores a finished outcome in the journal.
func (b *batch) record(res Result) {
	if b.o.opts.Journal == nil || b.req.Preview {
		return
	}
	rec := journal.Record{
		Input:      res.File,
		Output:     res.Output,
		RunID:      b.runID,
		InputSize:  res.InputBytes,
		OutputSize: res.OutputBytes,
		FinishedAt: time.Now(),
	}
	if fi, err := os.Stat(res.File); err == nil {
		rec.InputMod = fi.ModTime()
	}
	if res.Metadata != nil {
		rec.MaxCLL, rec.MaxFALL = res.Metadata.MaxCLL, res.Metadata.MaxFALL
	}
	switch res.Outcome.Status {
	case StatusSuccess:
		rec.Status = journal.StatusSuccess
	case StatusCancelled:
		rec.Status = journal.StatusCancelled
	default:
		rec.Status = journal.StatusFailed
	}
	if res.Outcome.Err != nil {
		rec.Error = res.Outcome.Err.Error()
	}
	if err := b.o.opts.Journal.Put(rec); err != nil {
		b.log.Warn("journal write failed", "file", res.File, "error", err)
	}
}
