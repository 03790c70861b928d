package ffmpeg

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrSupervisorBusy is returned by [Supervisor.Start] while another handle
// of the same supervisor is still running.
var ErrSupervisorBusy = errors.New("encoder already running")

// LaunchError reports that the encoder process could not be spawned
// (binary missing, not executable). No handle exists for a failed launch.
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExitError reports a non-zero encoder exit. Stderr holds the tail of the
// process's diagnostic output and Reason its classification (may be empty).
type ExitError struct {
	Code   int
	Reason string
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("ffmpeg exited with status %d: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("ffmpeg exited with status %d", e.Code)
}

// Pre-compiled regexes for classifying ffmpeg stderr output. Checked in
// order by [Classify]; the first match wins.
var classifiers = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`(?i)Unknown encoder 'libx265'|Encoder \(codec hevc\) not found`),
		"libx265 encoder not available in this ffmpeg build"},
	{regexp.MustCompile(`(?i)No such file or directory`),
		"input or output path not found"},
	{regexp.MustCompile(`(?i)Permission denied`),
		"permission denied"},
	{regexp.MustCompile(`(?i)No space left on device`),
		"no space left on device"},
	{regexp.MustCompile(`(?i)Invalid data found when processing input|moov atom not found|could not find codec parameters`),
		"input is not a readable video"},
	{regexp.MustCompile(`(?i)Error parsing (option|filterchain)|Error (initializing|reinitializing) filters?|No such filter`),
		"invalid filter graph"},
	{regexp.MustCompile(`(?i)x265 \[error\]|Error setting option x265-params`),
		"x265 rejected the encoder parameters"},
}

// Classify returns a short human-readable reason for an ffmpeg failure
// based on its stderr, or "" when nothing recognizable was logged.
func Classify(stderr string) string {
	for _, c := range classifiers {
		if c.re.MatchString(stderr) {
			return c.reason
		}
	}
	return ""
}
