// Package check provides system diagnostics (--check mode) and pre-run
// dependency validation (CheckDeps) for ffmpeg, ffprobe and libx265.
package check

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/backmassage/sdr2hdr/internal/config"
	"github.com/backmassage/sdr2hdr/internal/job"
)

// Sentinel errors returned by CheckDeps when a required tool or encoder is missing.
var (
	ErrMissingDependency = errors.New("required executable not found")
	ErrEncoderUnusable   = errors.New("libx265 test encode failed")
)

// RunCheck runs the --check flow: prints host resources, availability of
// ffmpeg and ffprobe, the HEVC encoders ffmpeg reports and a libx265 test
// encode. This is informational only; it does not stop on failure.
func RunCheck(ctx context.Context, cfg *config.Config, log hclog.Logger) {
	log.Info("=== System Check ===")

	checkHost(ctx, log)
	if checkBinary(ctx, log, "ffmpeg", cfg.FFmpegPath) {
		checkHEVCEncoders(ctx, log, cfg.FFmpegPath)
		checkX265(ctx, log, cfg.FFmpegPath)
	}
	checkBinary(ctx, log, "ffprobe", cfg.FFprobePath)
}

// checkHost logs OS, CPU and memory figures; x265 encode speed scales with
// them so they belong in bug reports.
func checkHost(ctx context.Context, log hclog.Logger) {
	if info, err := host.InfoWithContext(ctx); err == nil {
		log.Info("host", "os", info.OS, "platform", info.Platform, "version", info.PlatformVersion, "arch", info.KernelArch)
	} else {
		log.Warn("host info unavailable", "error", err)
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		log.Info("cpu", "logical_cores", n)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		log.Info("memory", "total_mib", vm.Total>>20, "available_mib", vm.Available>>20)
	}
}

// checkBinary verifies bin resolves on PATH and logs its version line.
func checkBinary(ctx context.Context, log hclog.Logger, name, bin string) bool {
	path, err := exec.LookPath(bin)
	if err != nil {
		log.Error(name+" not found", "path", bin)
		return false
	}
	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		log.Warn(name+" found but -version failed", "error", err)
		return true
	}
	first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	log.Info(name, "path", path, "version", first)
	return true
}

// checkHEVCEncoders lists all HEVC-related encoders reported by ffmpeg.
func checkHEVCEncoders(ctx context.Context, log hclog.Logger, ffmpeg string) {
	out, err := exec.CommandContext(ctx, ffmpeg, "-hide_banner", "-encoders").Output()
	if err != nil {
		log.Warn("could not list encoders", "error", err)
		return
	}
	for _, line := range hevcEncoderLines(string(out)) {
		log.Info("encoder", "line", line)
	}
}

// hevcEncoderLines filters `ffmpeg -encoders` output down to HEVC entries.
func hevcEncoderLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "hevc") || strings.Contains(lower, "265") {
			lines = append(lines, strings.TrimSpace(line))
		}
	}
	return lines
}

// checkX265 runs a minimal 10-bit libx265 encode.
func checkX265(ctx context.Context, log hclog.Logger, ffmpeg string) {
	start := time.Now()
	if runSilent(ctx, ffmpeg, x265TestArgs()...) {
		log.Info("libx265 works", "elapsed", time.Since(start).Round(time.Millisecond))
	} else {
		log.Error("libx265 test encode failed")
	}
}

// CheckDeps is the pre-run validation: ffmpeg must resolve and encode with
// libx265; ffprobe must resolve when frames are decoded (estimated metadata
// or preview). Failures wrap [ErrMissingDependency] or [ErrEncoderUnusable].
func CheckDeps(ctx context.Context, cfg *config.Config) error {
	if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
		return fmt.Errorf("%w: %s", ErrMissingDependency, cfg.FFmpegPath)
	}
	needsProbe := cfg.Preview || (cfg.EmbedMetadata && cfg.MetadataMode == job.MetadataEstimated)
	if needsProbe {
		if _, err := exec.LookPath(cfg.FFprobePath); err != nil {
			return fmt.Errorf("%w: %s", ErrMissingDependency, cfg.FFprobePath)
		}
	}
	if !cfg.Preview && !runSilent(ctx, cfg.FFmpegPath, x265TestArgs()...) {
		return ErrEncoderUnusable
	}
	return nil
}

// x265TestArgs returns the ffmpeg arguments for a minimal libx265 test encode.
func x265TestArgs() []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=black:s=256x256:d=0.1",
		"-c:v", "libx265", "-pix_fmt", "yuv420p10le",
		"-x265-params", "log-level=error",
		"-f", "null", "-",
	}
}

// runSilent runs a command and returns true if it exits with status 0.
// Both stdout and stderr are discarded.
func runSilent(ctx context.Context, name string, args ...string) bool {
	return exec.CommandContext(ctx, name, args...).Run() == nil
}
