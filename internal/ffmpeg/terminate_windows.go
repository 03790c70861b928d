//go:build windows

package ffmpeg

import (
	"github.com/shirou/gopsutil/v4/process"
)

// Interrupt terminates the process. Console control events cannot be aimed
// at a single child on Windows, so the output may be left unfinalized.
func (procTerminator) Interrupt(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Terminate()
}
