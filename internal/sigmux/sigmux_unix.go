//go:build unix

package sigmux

import (
	"os"
	"syscall"
)

func notifySignals() []os.Signal {
	return []os.Signal{
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
		syscall.SIGQUIT,
		syscall.SIGTSTP,
		syscall.SIGCONT,
		syscall.SIGUSR1,
	}
}

func classify(s os.Signal) (Event, bool) {
	switch s {
	case syscall.SIGINT:
		return Event{Kind: EventShutdown, Shutdown: ShutdownInterrupt}, true
	case syscall.SIGTERM:
		return Event{Kind: EventShutdown, Shutdown: ShutdownTerminate}, true
	case syscall.SIGHUP:
		return Event{Kind: EventShutdown, Shutdown: ShutdownHangup}, true
	case syscall.SIGQUIT:
		return Event{Kind: EventShutdown, Shutdown: ShutdownQuit}, true
	case syscall.SIGTSTP:
		return Event{Kind: EventJobControlStop}, false
	case syscall.SIGCONT:
		return Event{Kind: EventJobControlContinue}, false
	case syscall.SIGUSR1:
		return Event{Kind: EventInfo}, false
	default:
		return Event{Kind: EventInfo}, false
	}
}
