package ffmpeg

import (
	"github.com/shirou/gopsutil/v4/process"
)

// Terminator delivers stop requests to a running process. Interrupt asks the
// process to finish gracefully; Kill ends it unconditionally.
type Terminator interface {
	Interrupt(pid int) error
	Kill(pid int) error
}

// procTerminator implements Terminator with gopsutil. Interrupt is
// platform-specific (see terminate_unix.go and terminate_windows.go).
type procTerminator struct{}

// DefaultTerminator returns the platform terminator.
func DefaultTerminator() Terminator { return procTerminator{} }

func (procTerminator) Kill(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Kill()
}
