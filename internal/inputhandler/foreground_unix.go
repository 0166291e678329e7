//go:build unix

package inputhandler

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// isInteractiveForeground reports whether stdin is a terminal and this
// process is in the foreground process group of its controlling terminal
// (spec.md §4.4).
func isInteractiveForeground() bool {
	fd := int(os.Stdin.Fd())
	if _, err := unix.IoctlGetTermios(fd, ioctlGetTermios); err != nil {
		return false
	}
	pgrp, err := unix.IoctlGetInt(fd, unix.TIOCGPGRP)
	if err != nil {
		return false
	}
	return pgrp == syscall.Getpgrp()
}
