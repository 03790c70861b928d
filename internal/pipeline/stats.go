package pipeline

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/sdr2hdr/internal/display"
)

// RunStats tracks aggregate counters and byte totals across a batch run.
type RunStats struct {
	Total            int
	Converted        int
	Skipped          int
	Failed           int
	Cancelled        int
	TotalInputBytes  int64
	TotalOutputBytes int64
}

// Add counts r. Byte totals include successful conversions only.
func (s *RunStats) Add(r Result) {
	s.Total++
	switch r.Outcome.Status {
	case StatusSuccess:
		s.Converted++
		s.TotalInputBytes += r.InputBytes
		s.TotalOutputBytes += r.OutputBytes
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	case StatusCancelled:
		s.Cancelled++
	}
}

// SizeChange returns the aggregate byte difference between outputs and
// inputs. Positive means outputs grew.
func (s *RunStats) SizeChange() int64 {
	return s.TotalOutputBytes - s.TotalInputBytes
}

// LogSummary writes the end-of-run summary.
func LogSummary(log hclog.Logger, s RunStats, elapsed time.Duration) {
	log.Info("summary",
		"files", s.Total,
		"converted", s.Converted,
		"skipped", s.Skipped,
		"failed", s.Failed,
		"cancelled", s.Cancelled,
		"elapsed", display.FormatDuration(elapsed))
	if s.Converted > 0 {
		log.Info("output size",
			"input", display.FormatBytes(s.TotalInputBytes),
			"output", display.FormatBytes(s.TotalOutputBytes),
			"change", display.FormatBytesWithSign(s.SizeChange()))
	}
}
