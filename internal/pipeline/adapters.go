package pipeline

import (
	"context"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/sdr2hdr/internal/ffmpeg"
	"github.com/backmassage/sdr2hdr/internal/hdrmeta"
	"github.com/backmassage/sdr2hdr/internal/job"
	"github.com/backmassage/sdr2hdr/internal/preview"
	"github.com/backmassage/sdr2hdr/internal/probe"
)

// SupervisorEncoder runs encodes on an ffmpeg.Supervisor.
type SupervisorEncoder struct {
	Supervisor *ffmpeg.Supervisor
}

// Encode starts j and waits for it. Cancelling ctx interrupts the encoder.
func (e SupervisorEncoder) Encode(ctx context.Context, j job.ConversionJob, meta *hdrmeta.Metadata) (ffmpeg.Result, error) {
	h, err := e.Supervisor.Start(ctx, j, meta)
	if err != nil {
		return ffmpeg.Result{}, err
	}
	return e.Supervisor.Wait(h), nil
}

// DecoderEstimator samples light levels from frames decoded by ffmpeg.
type DecoderEstimator struct {
	Decode ffmpeg.DecodeOptions
}

// Estimate decodes at most hdrmeta.SampleFrames frames of path and waits
// for the asynchronous estimate.
func (e DecoderEstimator) Estimate(ctx context.Context, path string) (hdrmeta.Metadata, error) {
	opts := e.Decode
	opts.MaxFrames = hdrmeta.SampleFrames
	dec, err := ffmpeg.OpenDecoder(ctx, path, opts)
	if err != nil {
		return hdrmeta.Metadata{}, err
	}
	r := <-hdrmeta.EstimateAsync(ctx, dec)
	return r.Metadata, r.Err
}

// SnapshotPreviewer decodes a file, applies the job's tone curve and writes
// WebP snapshots. Dir "" puts them next to the job's output.
type SnapshotPreviewer struct {
	Decode  ffmpeg.DecodeOptions // MaxFrames bounds the decoded frames
	Dir     string
	Every   int
	Quality float32 // 0 = lossless
	Logger  hclog.Logger
}

// Preview runs the preview for j.
func (p SnapshotPreviewer) Preview(ctx context.Context, j job.ConversionJob) (preview.Stats, error) {
	dec, err := ffmpeg.OpenDecoder(ctx, j.InputPath(), p.Decode)
	if err != nil {
		return preview.Stats{}, err
	}
	dir := p.Dir
	if dir == "" {
		dir = filepath.Dir(j.OutputPath())
	}
	sink := &preview.SnapshotSink{Dir: dir, Input: j.InputPath(), Every: p.Every, Quality: p.Quality}
	st, err := preview.Run(ctx, dec, sink, preview.Options{Mode: j.ToneMode(), Param: j.ToneParam()})
	if p.Logger != nil && err == nil {
		p.Logger.Info("preview written", "file", j.InputPath(), "frames", st.Frames, "snapshots", len(sink.Written()), "dir", dir)
	}
	return st, err
}

// ProbeWith returns a ProbeFunc running the given ffprobe binary.
func ProbeWith(bin string) ProbeFunc {
	return func(ctx context.Context, path string) (*probe.ProbeResult, error) {
		return probe.Probe(ctx, bin, path)
	}
}
