package pipeline

import (
	"fmt"
	"path/filepath"
)

// EventKind identifies a status event.
type EventKind int

const (
	EventWaiting EventKind = iota
	EventConverting
	EventCancelRequested
	EventComplete
	EventCancelled
	EventFailed
)

// StatusEvent is one transition of the batch status line.
type StatusEvent struct {
	Kind EventKind
	File string // set for Converting and Failed
	Err  error  // set for Failed
}

// Text renders the event as the status line shown to users.
func (e StatusEvent) Text() string {
	switch e.Kind {
	case EventWaiting:
		return "Waiting"
	case EventConverting:
		return "Converting: " + filepath.Base(e.File)
	case EventCancelRequested:
		return "Cancel requested"
	case EventComplete:
		return "Conversion complete"
	case EventCancelled:
		return "Conversion cancelled"
	case EventFailed:
		return "Failed on " + e.File
	}
	return fmt.Sprintf("status(%d)", int(e.Kind))
}

// StatusFunc observes status events. Calls are serialized but may come from
// a goroutine other than the one iterating results.
type StatusFunc func(StatusEvent)
