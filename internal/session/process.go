package session

import (
	"errors"
	"os"
	"syscall"
)

// processAlive reports whether pid names a running process. Signal 0 checks
// for existence without delivering anything.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, os.ErrPermission)
}
