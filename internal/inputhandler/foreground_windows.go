//go:build windows

package inputhandler

import (
	"golang.org/x/sys/windows"
)

// isInteractiveForeground reports whether stdin is a console handle.
// Windows-family systems have no foreground-process-group concept, so the
// POSIX half of spec.md §4.4's condition is vacuously true there.
func isInteractiveForeground() bool {
	var mode uint32
	return windows.GetConsoleMode(windows.Handle(windows.Stdin), &mode) == nil
}
