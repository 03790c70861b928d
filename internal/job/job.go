// Package job defines ConversionJob, the immutable description of one
// SDR→HDR conversion (one input file, one output file), together with the
// encoder-facing values derived from it: pixel format, color triplet and the
// x265 HDR parameter string.
package job

import (
	"errors"
	"fmt"

	"github.com/backmassage/sdr2hdr/internal/tonemap"
)

// MetadataMode selects where MaxCLL/MaxFALL come from when metadata is embedded.
type MetadataMode string

const (
	MetadataNone      MetadataMode = "none"      // Embed hdr-opt=1 only.
	MetadataEstimated MetadataMode = "estimated" // Sample frames (hdrmeta).
	MetadataOverride  MetadataMode = "override"  // User-supplied values.
)

// Override defaults applied when the override fields are left blank.
const (
	DefaultMaxCLL  = 1000
	DefaultMaxFALL = 400
)

// CRF bounds for libx265.
const (
	CRFMin = 0
	CRFMax = 51
)

// MetadataSpec describes the light-level metadata requested for a job.
// MaxCLL and MaxFALL are only meaningful for MetadataOverride.
type MetadataSpec struct {
	Mode    MetadataMode
	MaxCLL  int
	MaxFALL int
}

// Params carries the user-facing options used to construct a job. It is the
// mutable builder input; [New] validates it and returns an immutable job.
type Params struct {
	InputPath         string
	OutputPath        string
	ToneMode          tonemap.Mode
	ToneParam         float64
	BitDepth          int
	CRF               int
	Preset            string
	ConvertColorSpace bool
	EmbedMetadata     bool
	Metadata          MetadataSpec
	ApplyToneCurve    bool
}

// ConversionJob is the validated, immutable description of one conversion.
// Fields are unexported so a job cannot be altered once built; use the
// accessor methods.
type ConversionJob struct {
	p Params
}

// ErrInvalidJob is wrapped by every validation error returned from [New].
var ErrInvalidJob = errors.New("invalid conversion job")

// New validates p and returns the job it describes.
func New(p Params) (ConversionJob, error) {
	if p.InputPath == "" {
		return ConversionJob{}, fmt.Errorf("%w: empty input path", ErrInvalidJob)
	}
	if p.OutputPath == "" {
		return ConversionJob{}, fmt.Errorf("%w: empty output path", ErrInvalidJob)
	}
	if err := tonemap.ValidateParam(p.ToneMode, p.ToneParam); err != nil {
		return ConversionJob{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if p.BitDepth != 8 && p.BitDepth != 10 {
		return ConversionJob{}, fmt.Errorf("%w: bit depth must be 8 or 10 (got %d)", ErrInvalidJob, p.BitDepth)
	}
	if p.CRF < CRFMin || p.CRF > CRFMax {
		return ConversionJob{}, fmt.Errorf("%w: crf must be in [%d, %d] (got %d)", ErrInvalidJob, CRFMin, CRFMax, p.CRF)
	}
	if p.Preset == "" {
		p.Preset = "slow"
	}
	switch p.Metadata.Mode {
	case "":
		p.Metadata.Mode = MetadataNone
	case MetadataNone, MetadataEstimated:
	case MetadataOverride:
		if p.Metadata.MaxCLL < 0 || p.Metadata.MaxFALL < 0 {
			return ConversionJob{}, fmt.Errorf("%w: max-cll and max-fall must be >= 0", ErrInvalidJob)
		}
	default:
		return ConversionJob{}, fmt.Errorf("%w: unknown metadata mode %q", ErrInvalidJob, p.Metadata.Mode)
	}
	return ConversionJob{p: p}, nil
}

// WithPaths returns a copy of j pointed at a different input/output pair.
// The remaining options are shared, which is how a batch reuses one template.
func (j ConversionJob) WithPaths(input, output string) (ConversionJob, error) {
	p := j.p
	p.InputPath, p.OutputPath = input, output
	return New(p)
}

func (j ConversionJob) InputPath() string       { return j.p.InputPath }
func (j ConversionJob) OutputPath() string      { return j.p.OutputPath }
func (j ConversionJob) ToneMode() tonemap.Mode  { return j.p.ToneMode }
func (j ConversionJob) ToneParam() float64      { return j.p.ToneParam }
func (j ConversionJob) BitDepth() int           { return j.p.BitDepth }
func (j ConversionJob) CRF() int                { return j.p.CRF }
func (j ConversionJob) Preset() string          { return j.p.Preset }
func (j ConversionJob) ConvertColorSpace() bool { return j.p.ConvertColorSpace }
func (j ConversionJob) EmbedMetadata() bool     { return j.p.EmbedMetadata }
func (j ConversionJob) Metadata() MetadataSpec  { return j.p.Metadata }
func (j ConversionJob) ApplyToneCurve() bool    { return j.p.ApplyToneCurve }

// Params returns a copy of the options the job was built from.
func (j ConversionJob) Params() Params { return j.p }

// NeedsEstimation reports whether MaxCLL/MaxFALL must be sampled from the
// input before the encoder can be started.
func (j ConversionJob) NeedsEstimation() bool {
	return j.p.EmbedMetadata && j.p.Metadata.Mode == MetadataEstimated
}

func (j ConversionJob) String() string {
	return j.p.InputPath + " -> " + j.p.OutputPath
}
