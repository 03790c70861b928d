package pipeline

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/sdr2hdr/internal/check"
	"github.com/backmassage/sdr2hdr/internal/config"
	"github.com/backmassage/sdr2hdr/internal/ffmpeg"
	"github.com/backmassage/sdr2hdr/internal/job"
	"github.com/backmassage/sdr2hdr/internal/probe"
	"github.com/backmassage/sdr2hdr/internal/tonemap"
)

// requireFFmpeg skips unless ffmpeg, ffprobe and libx265 are usable.
func requireFFmpeg(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping ffmpeg integration test in short mode")
	}
	cfg := config.DefaultConfig()
	if _, err := exec.LookPath(cfg.FFprobePath); err != nil {
		t.Skip("ffprobe not found")
	}
	if err := check.CheckDeps(context.Background(), &cfg); err != nil {
		t.Skipf("ffmpeg not usable: %v", err)
	}
}

// makeClip renders a one-second 64x48 test pattern.
func makeClip(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	out, err := exec.Command("ffmpeg", "-hide_banner", "-nostdin", "-loglevel", "error", "-y",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=10:duration=1",
		"-c:v", "mpeg4", "-pix_fmt", "yuv420p", path).CombinedOutput()
	require.NoError(t, err, string(out))
}

func TestIntegration_EncodeWithEstimatedMetadata(t *testing.T) {
	requireFFmpeg(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "clip.mp4")
	makeClip(t, src)

	o := NewOrchestrator(Options{
		Encoder:   SupervisorEncoder{Supervisor: ffmpeg.NewSupervisor(ffmpeg.Options{KillAfter: ffmpeg.DefaultKillAfter})},
		Estimator: DecoderEstimator{},
		Probe:     ProbeWith(probe.DefaultBinary),
	})
	req := Request{
		Inputs: []string{filepath.Join(dir, "in")},
		Output: filepath.Join(dir, "out"),
		Batch:  true,
		Params: job.Params{
			ToneMode:          tonemap.PQ,
			ToneParam:         2.2,
			BitDepth:          10,
			CRF:               28,
			Preset:            "ultrafast",
			ConvertColorSpace: true,
			EmbedMetadata:     true,
			Metadata:          job.MetadataSpec{Mode: job.MetadataEstimated},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	results := collect(t, o, ctx, req)
	require.Len(t, results, 1)
	res := results[0]
	require.Equal(t, StatusSuccess, res.Outcome.Status, "%v", res.Outcome.Err)
	require.NotNil(t, res.Metadata)
	assert.Positive(t, res.Metadata.Frames)
	assert.Positive(t, res.Metadata.MaxCLL)
	assert.Positive(t, res.OutputBytes)

	pr, err := probe.Probe(ctx, "", res.Output)
	require.NoError(t, err)
	require.NotNil(t, pr.PrimaryVideo)
	assert.Equal(t, "hevc", pr.PrimaryVideo.Codec)
	assert.True(t, pr.IsHDR())
}

func TestIntegration_Preview(t *testing.T) {
	requireFFmpeg(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	makeClip(t, src)
	shots := filepath.Join(dir, "shots")

	o := NewOrchestrator(Options{
		Previewer: SnapshotPreviewer{Dir: shots, Every: 5},
	})
	req := Request{
		Inputs:  []string{src},
		Output:  filepath.Join(dir, "unused.mp4"),
		Params:  job.Params{ToneMode: tonemap.Log, ToneParam: 1, BitDepth: 10, CRF: 18},
		Preview: true,
	}
	results := collect(t, o, context.Background(), req)
	require.Len(t, results, 1)
	require.Equal(t, StatusSuccess, results[0].Outcome.Status, "%v", results[0].Outcome.Err)
	assert.Equal(t, 10, results[0].Frames)

	matches, err := filepath.Glob(filepath.Join(shots, "clip_f*.webp"))
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	assert.NoFileExists(t, req.Output)
}
