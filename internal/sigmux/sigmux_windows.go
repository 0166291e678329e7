//go:build windows

package sigmux

import (
	"os"
	"syscall"
)

func notifySignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}

func classify(s os.Signal) (Event, bool) {
	switch s {
	case os.Interrupt:
		return Event{Kind: EventShutdown, Shutdown: ShutdownInterrupt}, true
	case syscall.SIGTERM:
		return Event{Kind: EventShutdown, Shutdown: ShutdownTerminate}, true
	default:
		// Job control and console-info signals have no Windows-family
		// equivalent in this multiplexer; they simply never appear in the
		// stream here (spec.md §4.3).
		return Event{}, false
	}
}
