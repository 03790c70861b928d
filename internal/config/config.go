// Package config holds runtime configuration: defaults, an optional YAML
// config file, CLI flag parsing, and validation. Defaults: libx265 slow,
// CRF 18, linear tone curve, .mp4/.mov/.mkv batch inputs.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/backmassage/sdr2hdr/internal/job"
	"github.com/backmassage/sdr2hdr/internal/tonemap"
)

// ErrInvalidInput is wrapped by every error caused by unusable user input:
// missing paths, no files to convert, out-of-range options.
var ErrInvalidInput = errors.New("invalid input")

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// DefaultExtensions are the video suffixes picked up from input directories.
var DefaultExtensions = []string{".mp4", ".mov", ".mkv"}

// Config holds all runtime settings. It is populated by [DefaultConfig],
// then by an optional config file, then mutated by [ParseFlags] before being
// passed (by pointer) to packages that need it.
type Config struct {
	// Paths (set from positional args). Each input may hold several
	// ';'-separated files or directories.
	Inputs []string `yaml:"inputs"`
	Output string   `yaml:"output"`

	// Tone mapping.
	ToneMode       tonemap.Mode `yaml:"tone_mode"`        // Default: "linear".
	ToneParam      float64      `yaml:"tone_param"`       // 0 selects the mode default.
	ApplyToneCurve bool         `yaml:"apply_tone_curve"` // Bake the curve into the encode (-vf lutrgb).

	// Encoder settings.
	BitDepth          int    `yaml:"bit_depth"`     // Default: 10.
	CRF               int    `yaml:"crf"`           // Default: 18.
	Preset            string `yaml:"preset"`        // Default: "slow".
	ConvertColorSpace bool   `yaml:"convert_color"` // BT.709 → BT.2020 tags.

	// HDR10 metadata.
	EmbedMetadata bool             `yaml:"embed_metadata"`
	MetadataMode  job.MetadataMode `yaml:"metadata_mode"` // Default: "none".
	MaxCLL        string           `yaml:"max_cll"`       // Override value; blank = 1000.
	MaxFALL       string           `yaml:"max_fall"`      // Override value; blank = 400.

	// Batch behavior.
	Batch             bool     `yaml:"batch"`
	Recursive         bool     `yaml:"recursive"`
	CaseInsensitive   bool     `yaml:"case_insensitive"` // Default: true.
	Extensions        []string `yaml:"extensions"`
	ContinueOnFailure bool     `yaml:"continue_on_failure"`

	// Preview mode (tone-mapped snapshots instead of encoding).
	Preview          bool   `yaml:"preview"`
	PreviewDir       string `yaml:"preview_dir"`        // Default: the output directory.
	PreviewInterval  int    `yaml:"preview_interval"`   // Default: 30 (every Nth frame).
	PreviewMaxFrames int    `yaml:"preview_max_frames"` // 0 = whole stream.

	// External processes.
	FFmpegPath  string        `yaml:"ffmpeg"`
	FFprobePath string        `yaml:"ffprobe"`
	KillTimeout time.Duration `yaml:"kill_timeout"` // Default: 10s. 0 disables kill escalation.

	// Journal and watch mode.
	JournalPath string        `yaml:"journal"`
	Resume      bool          `yaml:"resume"`
	Watch       bool          `yaml:"watch"`
	SettleDelay time.Duration `yaml:"settle_delay"` // Default: 2s.

	// Display and logging.
	Verbose    bool      `yaml:"verbose"`
	ShowStats  bool      `yaml:"show_stats"` // Default: true. ffmpeg -stats progress.
	ColorMode  ColorMode `yaml:"color"`      // Default: "auto".
	LogFile    string    `yaml:"log_file"`
	CheckOnly  bool      `yaml:"-"`
	ConfigFile string    `yaml:"-"`
}

// DefaultConfig returns a Config with all defaults. Used as the base before
// the config file and [ParseFlags] apply overrides.
func DefaultConfig() Config {
	return Config{
		ToneMode:        tonemap.Linear,
		BitDepth:        10,
		CRF:             18,
		Preset:          "slow",
		MetadataMode:    job.MetadataNone,
		CaseInsensitive: true,
		Extensions:      append([]string(nil), DefaultExtensions...),
		PreviewInterval: 30,
		FFmpegPath:      "ffmpeg",
		FFprobePath:     "ffprobe",
		KillTimeout:     10 * time.Second,
		SettleDelay:     2 * time.Second,
		ShowStats:       true,
		ColorMode:       ColorAuto,
	}
}

// Validate checks enum and range fields and resolves derived defaults
// (tone parameter, extension spelling). When not in CheckOnly mode it also
// requires at least one input and an output path. Every error wraps
// [ErrInvalidInput].
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (c *Config) validate() error {
	mode, err := tonemap.ParseMode(string(c.ToneMode))
	if err != nil {
		return err
	}
	c.ToneMode = mode
	if c.ToneParam == 0 {
		c.ToneParam = tonemap.DefaultParam(mode)
	}
	if err := tonemap.ValidateParam(mode, c.ToneParam); err != nil {
		return err
	}

	if c.BitDepth != 8 && c.BitDepth != 10 {
		return fmt.Errorf("bit depth must be 8 or 10 (got %d)", c.BitDepth)
	}
	if c.CRF < job.CRFMin || c.CRF > job.CRFMax {
		return fmt.Errorf("crf must be in [%d, %d] (got %d)", job.CRFMin, job.CRFMax, c.CRF)
	}
	if strings.TrimSpace(c.Preset) == "" {
		return errors.New("preset must not be empty")
	}

	switch c.MetadataMode {
	case job.MetadataNone, job.MetadataEstimated, job.MetadataOverride:
		// valid
	default:
		return fmt.Errorf("invalid metadata mode %q (use 'none', 'estimated' or 'override')", c.MetadataMode)
	}
	if _, err := c.MetadataSpec(); err != nil {
		return err
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", c.ColorMode)
	}

	if len(c.Extensions) == 0 {
		return errors.New("extension list must not be empty")
	}
	c.Extensions = normalizeExtensions(c.Extensions, c.CaseInsensitive)

	if c.PreviewInterval < 1 {
		return fmt.Errorf("preview interval must be at least 1 (got %d)", c.PreviewInterval)
	}
	if c.KillTimeout < 0 || c.SettleDelay < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.Resume && c.JournalPath == "" {
		return errors.New("--resume needs --journal")
	}
	if c.Watch && !c.Batch {
		return errors.New("--watch needs --batch")
	}

	if c.CheckOnly {
		return nil
	}
	if len(c.Inputs) == 0 || c.Output == "" {
		return errors.New("need at least one input and an output path")
	}
	return nil
}

// MetadataSpec returns the light-level request for jobs. Blank override
// fields fall back to [job.DefaultMaxCLL] and [job.DefaultMaxFALL].
func (c *Config) MetadataSpec() (job.MetadataSpec, error) {
	spec := job.MetadataSpec{Mode: c.MetadataMode}
	if c.MetadataMode != job.MetadataOverride {
		return spec, nil
	}
	var err error
	if spec.MaxCLL, err = parseLevel(c.MaxCLL, job.DefaultMaxCLL, "max-cll"); err != nil {
		return spec, err
	}
	if spec.MaxFALL, err = parseLevel(c.MaxFALL, job.DefaultMaxFALL, "max-fall"); err != nil {
		return spec, err
	}
	return spec, nil
}

// JobParams returns the per-run job options. Paths are left empty and filled
// in per file by the orchestrator.
func (c *Config) JobParams() (job.Params, error) {
	spec, err := c.MetadataSpec()
	if err != nil {
		return job.Params{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return job.Params{
		ToneMode:          c.ToneMode,
		ToneParam:         c.ToneParam,
		BitDepth:          c.BitDepth,
		CRF:               c.CRF,
		Preset:            c.Preset,
		ConvertColorSpace: c.ConvertColorSpace,
		EmbedMetadata:     c.EmbedMetadata,
		Metadata:          spec,
		ApplyToneCurve:    c.ApplyToneCurve,
	}, nil
}

// parseLevel parses a cd/m² override; blank selects def.
func parseLevel(s string, def int, name string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative whole number (got %q)", name, s)
	}
	return n, nil
}

// normalizeExtensions trims entries, adds the leading dot and, for
// case-insensitive matching, lowercases them.
func normalizeExtensions(exts []string, lower bool) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimSpace(e)
		if lower {
			e = strings.ToLower(e)
		}
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
