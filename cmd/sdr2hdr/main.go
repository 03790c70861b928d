// Command sdr2hdr is the CLI entrypoint for the SDR to HDR converter.
//
// It parses flags, validates configuration and either runs system
// diagnostics (--check) or converts the inputs, optionally watching the
// input directories for new files afterwards.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/sdr2hdr/internal/check"
	"github.com/backmassage/sdr2hdr/internal/config"
	"github.com/backmassage/sdr2hdr/internal/display"
	"github.com/backmassage/sdr2hdr/internal/ffmpeg"
	"github.com/backmassage/sdr2hdr/internal/journal"
	"github.com/backmassage/sdr2hdr/internal/logging"
	"github.com/backmassage/sdr2hdr/internal/pipeline"
	"github.com/backmassage/sdr2hdr/internal/watch"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitCancelled = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	// Phase 1: Bootstrap. The logger doesn't exist yet, so errors go
	// directly to stderr via fmt.
	cfg := config.DefaultConfig()
	if err := config.ParseFlags(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "sdr2hdr: %v\n", err)
		return exitFailure
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "sdr2hdr: %v\n", err)
		return exitFailure
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sdr2hdr: %v\n", err)
		return exitFailure
	}
	defer log.Close()

	// Phase 2: Logger available; all output goes through log from here on.
	display.PrintBanner(os.Stdout, config.Version())

	// Phase 3: Signal handling. The first SIGINT/SIGTERM cancels the
	// context, which interrupts the running encoder so it can finalize its
	// output; a second one exits immediately.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("received interrupt, stopping current file (again to force quit)")
		cancel()
		<-sigCh
		os.Exit(exitCancelled)
	}()

	if cfg.CheckOnly {
		check.RunCheck(ctx, &cfg, log)
		return exitOK
	}

	if err := check.CheckDeps(ctx, &cfg); err != nil {
		log.Error("dependency check failed", "error", err)
		return exitFailure
	}

	var store *journal.Store
	if cfg.JournalPath != "" {
		if store, err = journal.Open(cfg.JournalPath); err != nil {
			log.Error("cannot open journal", "error", err)
			return exitFailure
		}
		defer store.Close()
		kept, removed, err := store.Prune()
		if err != nil {
			log.Warn("journal cleanup failed", "error", err)
		}
		log.Debug("journal opened", "path", cfg.JournalPath, "records", kept, "pruned", removed)
	}

	// Phase 4: Run the batch, then keep watching when asked to.
	orch, req, err := newOrchestrator(&cfg, log, store)
	if err != nil {
		log.Error("invalid options", "error", err)
		return exitFailure
	}

	start := time.Now()
	var state pipeline.BatchState

	if !cfg.Watch || hasFiles(&cfg, req) {
		if err := runBatch(ctx, log, orch, req, &state); err != nil {
			log.Error("cannot start conversion", "error", err)
			return exitFailure
		}
	}

	if cfg.Watch && ctx.Err() == nil {
		if err := watchInputs(ctx, &cfg, log, orch, req, &state); err != nil {
			log.Error("watch failed", "error", err)
			return exitFailure
		}
	}

	stats := state.Stats()
	pipeline.LogSummary(log, stats, time.Since(start))

	switch {
	case stats.Failed > 0:
		return exitFailure
	case ctx.Err() != nil && !cfg.Watch:
		return exitCancelled
	}
	return exitOK
}

// newOrchestrator wires the encoder, estimator, previewer and journal from
// cfg and returns the request template for cfg's inputs.
func newOrchestrator(cfg *config.Config, log *logging.Logger, store *journal.Store) (*pipeline.Orchestrator, pipeline.Request, error) {
	params, err := cfg.JobParams()
	if err != nil {
		return nil, pipeline.Request{}, err
	}

	supOpts := ffmpeg.Options{
		Binary:    cfg.FFmpegPath,
		Verbose:   cfg.Verbose,
		ShowStats: cfg.ShowStats,
		KillAfter: cfg.KillTimeout,
		Logger:    log.Named("ffmpeg"),
	}
	if cfg.ShowStats {
		supOpts.Stderr = os.Stderr
	}
	decode := ffmpeg.DecodeOptions{FFmpeg: cfg.FFmpegPath, FFprobe: cfg.FFprobePath}
	previewDecode := decode
	previewDecode.MaxFrames = cfg.PreviewMaxFrames

	opts := pipeline.Options{
		Encoder:   pipeline.SupervisorEncoder{Supervisor: ffmpeg.NewSupervisor(supOpts)},
		Estimator: pipeline.DecoderEstimator{Decode: decode},
		Previewer: pipeline.SnapshotPreviewer{
			Decode: previewDecode,
			Dir:    cfg.PreviewDir,
			Every:  cfg.PreviewInterval,
			Logger: log.Named("preview"),
		},
		Probe:           pipeline.ProbeWith(cfg.FFprobePath),
		Logger:          log.Named("batch"),
		CaseInsensitive: cfg.CaseInsensitive,
	}
	if store != nil {
		opts.Journal = store
	}

	policy := pipeline.StopOnFailure
	if cfg.ContinueOnFailure {
		policy = pipeline.ContinueOnFailure
	}
	req := pipeline.Request{
		Inputs: cfg.Inputs,
		Output: cfg.Output,
		Batch:  cfg.Batch,
		Resolve: pipeline.DiscoverOptions{
			Extensions:      cfg.Extensions,
			Recursive:       cfg.Recursive,
			CaseInsensitive: cfg.CaseInsensitive,
		},
		Params:  params,
		Policy:  policy,
		Preview: cfg.Preview,
		Resume:  cfg.Resume,
		Status:  logStatus(log),
	}
	return pipeline.NewOrchestrator(opts), req, nil
}

// runBatch runs req to the end, logging and recording every result.
func runBatch(ctx context.Context, log hclog.Logger, orch *pipeline.Orchestrator, req pipeline.Request, state *pipeline.BatchState) error {
	seq, err := orch.Run(ctx, req)
	if err != nil {
		return err
	}
	for res := range seq {
		state.Append(res)
		logResult(log, res)
	}
	return nil
}

func logStatus(log hclog.Logger) pipeline.StatusFunc {
	return func(ev pipeline.StatusEvent) {
		switch ev.Kind {
		case pipeline.EventFailed:
			log.Error(ev.Text(), "error", ev.Err)
		case pipeline.EventCancelRequested, pipeline.EventCancelled:
			log.Warn(ev.Text())
		default:
			log.Info(ev.Text())
		}
	}
}

func logResult(log hclog.Logger, res pipeline.Result) {
	name := filepath.Base(res.File)
	switch res.Outcome.Status {
	case pipeline.StatusSuccess:
		if res.Frames > 0 {
			log.Info("previewed", "file", name, "frames", res.Frames, "elapsed", display.FormatDuration(res.Elapsed))
			return
		}
		args := []interface{}{"file", name, "output", res.Output, "elapsed", display.FormatDuration(res.Elapsed)}
		if res.InputBytes > 0 {
			args = append(args, "size", display.FormatBytes(res.OutputBytes),
				"ratio", fmt.Sprintf("%d%%", res.OutputBytes*100/res.InputBytes))
		}
		if res.Metadata != nil {
			args = append(args, "max_cll", res.Metadata.MaxCLL, "max_fall", res.Metadata.MaxFALL)
		}
		log.Info("converted", args...)
	case pipeline.StatusSkipped:
		log.Info("skipped (already converted)", "file", name)
	case pipeline.StatusCancelled:
		log.Warn("cancelled", "file", name)
	case pipeline.StatusFailed:
		var exitErr *ffmpeg.ExitError
		if errors.As(res.Outcome.Err, &exitErr) {
			log.Error("encode failed", "file", name, "code", exitErr.Code, "reason", exitErr.Reason)
			logStderr(log, exitErr.Stderr)
			return
		}
		log.Error("conversion failed", "file", name, "error", res.Outcome.Err)
	}
}

// logStderr prints the last lines of ffmpeg's stderr at debug level.
func logStderr(log hclog.Logger, stderr string) {
	if stderr == "" || !log.IsDebug() {
		return
	}
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) > 20 {
		lines = lines[len(lines)-20:]
	}
	for _, l := range lines {
		log.Debug("  " + l)
	}
}

// hasFiles reports whether the inputs currently resolve to anything. In
// watch mode an empty directory is not an error, the files come later.
func hasFiles(cfg *config.Config, req pipeline.Request) bool {
	_, err := pipeline.Resolve(cfg.Inputs, pipeline.ResolveOptions{DiscoverOptions: req.Resolve})
	return err == nil
}

// watchInputs converts files settling in the input directories until ctx
// is cancelled.
func watchInputs(ctx context.Context, cfg *config.Config, log *logging.Logger, orch *pipeline.Orchestrator, req pipeline.Request, state *pipeline.BatchState) error {
	var dirs []string
	for _, arg := range cfg.Inputs {
		for _, p := range strings.Split(arg, ";") {
			p = strings.TrimSpace(p)
			if fi, err := os.Stat(p); err == nil && fi.IsDir() {
				dirs = append(dirs, p)
			}
		}
	}
	if len(dirs) == 0 {
		return fmt.Errorf("%w: --watch needs at least one input directory", config.ErrInvalidInput)
	}

	// Our own outputs must not be fed back in when the output directory
	// lives inside a watched tree.
	outDir, _ := filepath.Abs(cfg.Output)
	match := func(path string) bool {
		if abs, err := filepath.Abs(path); err == nil && strings.HasPrefix(abs, outDir+string(filepath.Separator)) {
			return false
		}
		return req.Resolve.Match(path)
	}

	w, err := watch.New(watch.Options{
		Dirs:      dirs,
		Recursive: cfg.Recursive,
		Match:     match,
		Settle:    cfg.SettleDelay,
		Logger:    log.Named("watch"),
	})
	if err != nil {
		return err
	}
	log.Info("watching for new files", "dirs", strings.Join(dirs, ", "), "settle", cfg.SettleDelay)

	return w.Run(ctx, func(ctx context.Context, files []string) {
		r := req
		r.Inputs = files
		if err := runBatch(ctx, log, orch, r, state); err != nil {
			log.Error("cannot convert new files", "error", err)
		}
	})
}
