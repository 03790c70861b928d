package ffmpeg

import (
	"strconv"

	"github.com/backmassage/sdr2hdr/internal/hdrmeta"
	"github.com/backmassage/sdr2hdr/internal/job"
	"github.com/backmassage/sdr2hdr/internal/tonemap"
)

// DefaultBinary is the ffmpeg executable looked up on PATH.
const DefaultBinary = "ffmpeg"

// Build constructs the complete ffmpeg argument slice for an encode job;
// args[0] is the binary. meta supplies sampled light levels when the job
// estimates them and is ignored otherwise.
//
// The generated command is:
//
//	ffmpeg -hide_banner -nostdin -y -loglevel <lvl> [-stats] -i <in>
//	  [-vf lutrgb=...] -c:v libx265 -preset <p> -crf <n> -pix_fmt <fmt>
//	  -color_primaries <p> -color_trc <t> -colorspace <m>
//	  [-x265-params <params>] <out>
func Build(j job.ConversionJob, meta *hdrmeta.Metadata, opts Options) []string {
	args := make([]string, 0, 32)

	// --- Preamble ---
	args = append(args, opts.binary(), "-hide_banner", "-nostdin", "-y")

	// Loglevel: info when verbose, otherwise error.
	if opts.Verbose {
		args = append(args, "-loglevel", "info")
	} else {
		args = append(args, "-loglevel", "error")
	}

	if opts.Verbose || opts.ShowStats {
		args = append(args, "-stats")
	}

	// --- Input ---
	args = append(args, "-i", j.InputPath())

	// --- Tone curve (opt-in, identical to the preview transform) ---
	if j.ApplyToneCurve() {
		if vf := tonemap.FilterExpr(j.ToneMode(), j.ToneParam()); vf != "" {
			args = append(args, "-vf", vf)
		}
	}

	// --- Video codec ---
	color := j.Color()
	args = append(args,
		"-c:v", "libx265",
		"-preset", j.Preset(),
		"-crf", strconv.Itoa(j.CRF()),
		"-pix_fmt", j.PixelFormat(),
		"-color_primaries", color.Primaries,
		"-color_trc", color.Transfer,
		"-colorspace", color.Matrix,
	)

	// --- HDR10 static metadata ---
	if params := j.X265Params(meta); params != "" {
		args = append(args, "-x265-params", params)
	}

	// --- Output ---
	args = append(args, j.OutputPath())

	return args
}

// decodeArgs returns the command that streams the first maxFrames frames of
// path to stdout as packed RGB24. maxFrames <= 0 decodes the whole stream.
func decodeArgs(bin, path string, maxFrames int) []string {
	args := []string{bin, "-hide_banner", "-nostdin", "-loglevel", "error", "-i", path}
	if maxFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(maxFrames))
	}
	return append(args, "-an", "-sn", "-f", "rawvideo", "-pix_fmt", "rgb24", "pipe:1")
}
