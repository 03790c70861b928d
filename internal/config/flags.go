package config

// This file implements CLI flag parsing and help text.
// Flags are grouped into tone mapping, encoding, metadata, batch, preview, display, and utility.
// Negated flags (e.g. --no-stats) are applied after Parse so Config defaults hold unless set.

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/backmassage/sdr2hdr/internal/job"
	"github.com/backmassage/sdr2hdr/internal/tonemap"
)

// version is shown in --version and help; override at build time with -ldflags "-X main.version=...".
var version = "1.0.0-dev"

// Version returns the build version string.
func Version() string { return version }

// ErrVersion is returned by [ParseArgs] when --version was requested.
var ErrVersion = errors.New("version requested")

// ParseFlags parses os.Args into cfg. On --help or --version it prints and exits.
// On error it returns non-nil (e.g. unknown flag, missing positional args).
func ParseFlags(cfg *Config) error {
	err := ParseArgs(cfg, os.Args[1:])
	switch {
	case errors.Is(err, flag.ErrHelp):
		os.Exit(0)
	case errors.Is(err, ErrVersion):
		fmt.Fprintln(os.Stdout, "sdr2hdr v"+version)
		os.Exit(0)
	}
	return err
}

// ParseArgs applies an optional --config file and then args to cfg. Help
// text is printed to stderr and reported as flag.ErrHelp.
func ParseArgs(cfg *Config, args []string) error {
	if path := scanConfigPath(args); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return err
		}
		cfg.ConfigFile = path
	}

	fs := flag.NewFlagSet("sdr2hdr", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() { printUsage(os.Stderr) }

	// Negated/override flags: we capture bools then apply to cfg after Parse,
	// so that defaults from DefaultConfig() hold unless the user passes the flag.
	var negated negatedFlags

	defineToneFlags(fs, cfg)
	defineEncodingFlags(fs, cfg)
	defineMetadataFlags(fs, cfg)
	defineBatchFlags(fs, cfg, &negated)
	definePreviewFlags(fs, cfg)
	defineDisplayFlags(fs, cfg, &negated)
	defineUtilityFlags(fs, cfg, &negated)

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	applyNegatedFlags(cfg, &negated)

	if negated.showHelp {
		printUsage(os.Stderr)
		return flag.ErrHelp
	}
	if negated.showVersion {
		return ErrVersion
	}

	return parsePositionalArgs(fs, cfg)
}

// scanConfigPath finds --config/-config before flag parsing so the file can
// supply the defaults that flags then override.
func scanConfigPath(args []string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// negatedFlags holds boolean flags that are applied after Parse.
// These either invert a default (e.g. noStats -> ShowStats=false) or trigger exit (showHelp, showVersion).
type negatedFlags struct {
	caseSensitive bool
	noStats       bool
	forceColor    bool
	noColor       bool
	showVersion   bool
	showHelp      bool
}

// defineToneFlags registers -t/--tone, --tone-param, --apply-tonemap.
func defineToneFlags(fs *flag.FlagSet, cfg *Config) {
	fs.Var(&toneModeValue{&cfg.ToneMode}, "tone", "Tone curve: linear | log | pq")
	fs.Var(&toneModeValue{&cfg.ToneMode}, "t", "Same as --tone")
	fs.Float64Var(&cfg.ToneParam, "tone-param", cfg.ToneParam, "Curve parameter (0 = mode default)")
	fs.BoolVar(&cfg.ApplyToneCurve, "apply-tonemap", cfg.ApplyToneCurve, "Apply the tone curve in the encode")
}

// defineEncodingFlags registers --bit-depth, --crf, -p/--preset, --bt2020, --ffmpeg, --ffprobe, --kill-timeout.
func defineEncodingFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.BitDepth, "bit-depth", cfg.BitDepth, "Output bit depth: 8 | 10")
	fs.IntVar(&cfg.CRF, "crf", cfg.CRF, "x265 CRF (0-51)")
	fs.StringVar(&cfg.Preset, "preset", cfg.Preset, "x265 preset (e.g. slow, medium)")
	fs.StringVar(&cfg.Preset, "p", cfg.Preset, "Same as --preset")
	fs.BoolVar(&cfg.ConvertColorSpace, "bt2020", cfg.ConvertColorSpace, "Tag output as BT.2020 instead of BT.709")
	fs.StringVar(&cfg.FFmpegPath, "ffmpeg", cfg.FFmpegPath, "ffmpeg executable")
	fs.StringVar(&cfg.FFprobePath, "ffprobe", cfg.FFprobePath, "ffprobe executable")
	fs.DurationVar(&cfg.KillTimeout, "kill-timeout", cfg.KillTimeout, "Kill a cancelled encoder after this long (0 = never)")
}

// defineMetadataFlags registers --embed-metadata, --metadata, --max-cll, --max-fall.
func defineMetadataFlags(fs *flag.FlagSet, cfg *Config) {
	fs.BoolVar(&cfg.EmbedMetadata, "embed-metadata", cfg.EmbedMetadata, "Embed HDR10 metadata (x265 hdr-opt)")
	fs.BoolVar(&cfg.EmbedMetadata, "e", cfg.EmbedMetadata, "Same as --embed-metadata")
	fs.Var(&metadataModeValue{&cfg.MetadataMode}, "metadata", "Light levels: none | estimated | override")
	fs.Var(&metadataModeValue{&cfg.MetadataMode}, "m", "Same as --metadata")
	fs.StringVar(&cfg.MaxCLL, "max-cll", cfg.MaxCLL, "MaxCLL override (default 1000)")
	fs.StringVar(&cfg.MaxFALL, "max-fall", cfg.MaxFALL, "MaxFALL override (default 400)")
}

// defineBatchFlags registers batch, directory matching, failure policy, journal and watch flags.
func defineBatchFlags(fs *flag.FlagSet, cfg *Config, n *negatedFlags) {
	fs.BoolVar(&cfg.Batch, "batch", cfg.Batch, "Treat output as a directory")
	fs.BoolVar(&cfg.Batch, "b", cfg.Batch, "Same as --batch")
	fs.BoolVar(&cfg.Recursive, "recursive", cfg.Recursive, "Descend into subdirectories of input directories")
	fs.BoolVar(&cfg.Recursive, "r", cfg.Recursive, "Same as --recursive")
	fs.BoolVar(&n.caseSensitive, "case-sensitive", false, "Match extensions case-sensitively")
	fs.Var(&extensionsValue{&cfg.Extensions}, "ext", "Comma-separated input extensions (default .mp4,.mov,.mkv)")
	fs.BoolVar(&cfg.ContinueOnFailure, "keep-going", cfg.ContinueOnFailure, "Continue with the next file after a failure")
	fs.BoolVar(&cfg.ContinueOnFailure, "k", cfg.ContinueOnFailure, "Same as --keep-going")
	fs.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "Record per-file outcomes in this directory")
	fs.BoolVar(&cfg.Resume, "resume", cfg.Resume, "Skip files the journal lists as converted")
	fs.BoolVar(&cfg.Watch, "watch", cfg.Watch, "Keep running and convert new files as they appear")
	fs.DurationVar(&cfg.SettleDelay, "settle", cfg.SettleDelay, "Quiet period before a new file is converted")
}

// definePreviewFlags registers --preview, --preview-dir, --preview-every, --preview-frames.
func definePreviewFlags(fs *flag.FlagSet, cfg *Config) {
	fs.BoolVar(&cfg.Preview, "preview", cfg.Preview, "Write tone-mapped WebP snapshots instead of encoding")
	fs.StringVar(&cfg.PreviewDir, "preview-dir", cfg.PreviewDir, "Snapshot directory (default: output)")
	fs.IntVar(&cfg.PreviewInterval, "preview-every", cfg.PreviewInterval, "Snapshot every Nth frame")
	fs.IntVar(&cfg.PreviewMaxFrames, "preview-frames", cfg.PreviewMaxFrames, "Stop after N frames (0 = all)")
}

// defineDisplayFlags registers --color, --no-color, --no-stats, verbose, --check, --log.
func defineDisplayFlags(fs *flag.FlagSet, cfg *Config, n *negatedFlags) {
	fs.BoolVar(&n.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&n.noColor, "no-color", false, "Disable colored logs")
	fs.BoolVar(&n.noStats, "no-stats", false, "Hide ffmpeg progress lines")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Verbose output")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Same as --verbose")
	fs.BoolVar(&cfg.CheckOnly, "check", false, "Run system diagnostics and exit")
	fs.BoolVar(&cfg.CheckOnly, "c", false, "Same as --check")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "Append logs to file")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "Same as --log")
}

// defineUtilityFlags registers --config, --version and --help.
func defineUtilityFlags(fs *flag.FlagSet, cfg *Config, n *negatedFlags) {
	// Already applied by scanConfigPath; registered so Parse accepts it.
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML config file")
	fs.BoolVar(&n.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&n.showVersion, "V", false, "Same as --version")
	fs.BoolVar(&n.showHelp, "help", false, "Show this help and exit")
	fs.BoolVar(&n.showHelp, "h", false, "Same as --help")
}

// applyNegatedFlags copies negated and override flag values into cfg (e.g. noStats -> ShowStats=false).
func applyNegatedFlags(cfg *Config, n *negatedFlags) {
	if n.caseSensitive {
		cfg.CaseInsensitive = false
	}
	if n.noStats {
		cfg.ShowStats = false
	}
	if n.noColor {
		cfg.ColorMode = ColorNever
	} else if n.forceColor {
		cfg.ColorMode = ColorAlways
	}
}

// parsePositionalArgs sets Inputs and Output from `<input>... <output>` when not in CheckOnly mode.
func parsePositionalArgs(fs *flag.FlagSet, cfg *Config) error {
	args := fs.Args()
	if cfg.CheckOnly {
		return nil
	}
	if len(args) == 0 && len(cfg.Inputs) > 0 && cfg.Output != "" {
		// Both paths came from the config file.
		return nil
	}
	if len(args) < 2 {
		return fmt.Errorf("%w: need at least one input and an output path", ErrInvalidInput)
	}
	cfg.Inputs = args[:len(args)-1]
	cfg.Output = args[len(args)-1]
	return nil
}

// printUsage writes the help text. Column-aligned for readability.
func printUsage(w io.Writer) {
	const col1 = 30 // width of "  -x, --long-name <arg>  "
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "sdr2hdr v" + version + " - SDR to HDR10 video converter"},
		{"", ""},
		{"  sdr2hdr [OPTIONS] <input>... <output>", ""},
		{"", ""},
		{"Tone mapping", ""},
		{"  -t, --tone <linear|log|pq>", "Tone curve (default: linear)"},
		{"  --tone-param <value>", "Scale / factor / gamma (default: 1.5 / 1.0 / 2.2)"},
		{"  --apply-tonemap", "Apply the curve to the encoded video"},
		{"", ""},
		{"Encoding", ""},
		{"  --bit-depth <8|10>", "Output bit depth (default: 10)"},
		{"  --crf <0-51>", "x265 CRF (default: 18)"},
		{"  -p, --preset <name>", "x265 preset (default: slow)"},
		{"  --bt2020", "Convert BT.709 color tags to BT.2020"},
		{"  --kill-timeout <dur>", "Kill a cancelled encoder after <dur> (default: 10s)"},
		{"", ""},
		{"HDR10 metadata", ""},
		{"  -e, --embed-metadata", "Embed HDR10 metadata"},
		{"  -m, --metadata <mode>", "none | estimated | override (default: none)"},
		{"  --max-cll <nits>", "MaxCLL for override (default: 1000)"},
		{"  --max-fall <nits>", "MaxFALL for override (default: 400)"},
		{"", ""},
		{"Batch", ""},
		{"  -b, --batch", "Write every input into the output directory"},
		{"  -r, --recursive", "Descend into subdirectories"},
		{"  --case-sensitive", "Match extensions case-sensitively"},
		{"  --ext <list>", "Input extensions (default: .mp4,.mov,.mkv)"},
		{"  -k, --keep-going", "Continue after a failed file"},
		{"  --journal <dir>", "Record per-file outcomes"},
		{"  --resume", "Skip files already converted per the journal"},
		{"  --watch", "Convert new files as they appear"},
		{"  --settle <dur>", "Quiet period before converting a new file (default: 2s)"},
		{"", ""},
		{"Preview", ""},
		{"  --preview", "Write tone-mapped WebP snapshots, do not encode"},
		{"  --preview-dir <dir>", "Snapshot directory (default: output)"},
		{"  --preview-every <n>", "Snapshot every Nth frame (default: 30)"},
		{"  --preview-frames <n>", "Stop after N frames (default: all)"},
		{"", ""},
		{"Display", ""},
		{"  --no-stats", "Hide ffmpeg progress lines"},
		{"  --color", "Force colored logs"},
		{"  --no-color", "Disable colored logs"},
		{"  -v, --verbose", "Verbose output"},
		{"", ""},
		{"Utility", ""},
		{"  --config <path>", "YAML config file (flags override it)"},
		{"  --ffmpeg <path>", "ffmpeg executable (default: ffmpeg)"},
		{"  --ffprobe <path>", "ffprobe executable (default: ffprobe)"},
		{"  -l, --log <path>", "Append logs to file"},
		{"  -c, --check", "System diagnostics (ffmpeg, ffprobe, libx265)"},
		{"  -V, --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
	}

	for _, l := range lines {
		if l.flags == "" && l.desc == "" {
			fmt.Fprintln(w)
			continue
		}
		if l.desc == "" {
			fmt.Fprintln(w, l.flags)
			continue
		}
		if l.flags == "" {
			fmt.Fprintln(w, l.desc)
			continue
		}
		padding := col1 - len(l.flags)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(w, "%s%*s%s\n", l.flags, padding, "", l.desc)
	}
}

// flag.Value adapters so we can use enum types (tonemap.Mode, job.MetadataMode) with flag.Var.

type toneModeValue struct{ p *tonemap.Mode }

func (v *toneModeValue) String() string {
	if v.p == nil {
		return ""
	}
	return string(*v.p)
}
func (v *toneModeValue) Set(s string) error {
	m, err := tonemap.ParseMode(s)
	if err != nil {
		return err
	}
	*v.p = m
	return nil
}

type metadataModeValue struct{ p *job.MetadataMode }

func (v *metadataModeValue) String() string {
	if v.p == nil {
		return ""
	}
	return string(*v.p)
}
func (v *metadataModeValue) Set(s string) error {
	switch m := job.MetadataMode(strings.ToLower(s)); m {
	case job.MetadataNone, job.MetadataEstimated, job.MetadataOverride:
		*v.p = m
	default:
		return fmt.Errorf("invalid metadata mode %q (use 'none', 'estimated' or 'override')", s)
	}
	return nil
}

type extensionsValue struct{ p *[]string }

func (v *extensionsValue) String() string {
	if v.p == nil {
		return ""
	}
	return strings.Join(*v.p, ",")
}
func (v *extensionsValue) Set(s string) error {
	var exts []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			exts = append(exts, e)
		}
	}
	if len(exts) == 0 {
		return errors.New("empty extension list")
	}
	*v.p = exts
	return nil
}
