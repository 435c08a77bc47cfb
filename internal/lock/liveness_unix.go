//go:build unix

package lock

import (
	"errors"
	"syscall"
)

// processAlive probes the PID with signal 0. EPERM still means the process
// exists, just under another user.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
