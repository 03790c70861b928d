package pipeline

import (
	"sync"
	"time"

	"github.com/backmassage/sdr2hdr/internal/hdrmeta"
)

// Status is the final state of one file.
type Status int

const (
	StatusSuccess Status = iota
	StatusCancelled
	StatusFailed
	StatusSkipped // already converted, per the journal
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// Outcome is a file's status and, for StatusFailed, the cause.
type Outcome struct {
	Status Status
	Err    error
}

// Result describes one processed file.
type Result struct {
	Index    int // position in the resolved file list
	File     string
	Output   string
	Outcome  Outcome
	Metadata *hdrmeta.Metadata // light levels used, when estimated
	Frames   int               // previewed frames

	Elapsed     time.Duration
	InputBytes  int64
	OutputBytes int64
}

// BatchState accumulates results in arrival order. It is append-only and
// safe for concurrent use.
type BatchState struct {
	mu      sync.Mutex
	results []Result
}

// Append records r.
func (b *BatchState) Append(r Result) {
	b.mu.Lock()
	b.results = append(b.results, r)
	b.mu.Unlock()
}

// Results returns a copy of the recorded results.
func (b *BatchState) Results() []Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Result(nil), b.results...)
}

// Stats aggregates the recorded results.
func (b *BatchState) Stats() RunStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	var s RunStats
	for _, r := range b.results {
		s.Add(r)
	}
	return s
}
