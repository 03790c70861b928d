//go:build !windows

package ffmpeg

import (
	"syscall"

	"github.com/shirou/gopsutil/v4/process"
)

// Interrupt sends SIGINT, which ffmpeg handles by flushing the encoder and
// writing a playable trailer before exiting.
func (procTerminator) Interrupt(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.SendSignal(syscall.SIGINT)
}
