// Package sigmux is the signal multiplexer (C3): it installs OS signal
// handlers once per process and exposes a single channel of classified
// events the dispatcher selects over.
//
// Grounded directly on the teacher's prompt/signal_common.go
// handleExitSignals: a signal.Notify'd channel drained by a goroutine that
// forwards classified events into a consumer channel via a non-blocking
// send, stoppable via a dedicated stop channel. That function handled three
// fixed signals for one purpose (prompt exit); this generalizes it to the
// full shutdown/job-control/info taxonomy spec.md §4.3 requires.
package sigmux

import (
	"os"
	"os/signal"
	"sync/atomic"
)

// EventKind classifies one signal event.
type EventKind int

const (
	EventShutdown EventKind = iota
	EventJobControlStop
	EventJobControlContinue
	EventInfo
)

// ShutdownKind further classifies an EventShutdown event.
type ShutdownKind int

const (
	ShutdownInterrupt ShutdownKind = iota
	ShutdownTerminate
	ShutdownHangup
	ShutdownQuit
)

// Event is one item produced by the multiplexer.
type Event struct {
	Kind     EventKind
	Shutdown ShutdownKind
}

// Mux owns the installed handlers and the event stream. Construct with New;
// handlers are installed once and never uninstalled (spec.md §4.3:
// "single-shot per process") — this matches the teacher's approach of
// never calling signal.Stop except on the multiplexer's own shutdown.
type Mux struct {
	events chan Event
	stop   chan struct{}
	sigCh  chan os.Signal

	shutdownCount atomic.Int32
	panicFn       func()
}

// Option configures a Mux at construction.
type Option func(*Mux)

// WithPanicFunc overrides the function invoked when the third shutdown
// signal arrives. Defaults to calling panic(...); tests substitute a
// recorder so the test process itself doesn't die.
func WithPanicFunc(fn func()) Option {
	return func(m *Mux) { m.panicFn = fn }
}

// New installs signal handlers for the platform's available signal set and
// starts the multiplexing goroutine. Call Close to stop (signals remain
// installed; only the forwarding goroutine is stopped, per the "single-shot"
// design note in spec.md §9).
func New(opts ...Option) *Mux {
	m := &Mux{
		events: make(chan Event, 32),
		stop:   make(chan struct{}),
		sigCh:  make(chan os.Signal, 128),
	}
	for _, o := range opts {
		o(m)
	}
	if m.panicFn == nil {
		m.panicFn = func() { panic("sigmux: third shutdown signal received") }
	}
	signal.Notify(m.sigCh, notifySignals()...)
	go m.run()
	return m
}

// Events returns the receive-only event stream. Closed when Close is
// called.
func (m *Mux) Events() <-chan Event { return m.events }

// Close stops the forwarding goroutine and closes Events(). Does not
// uninstall OS handlers.
func (m *Mux) Close() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
}

func (m *Mux) run() {
	defer close(m.events)
	for {
		select {
		case <-m.stop:
			return
		case s := <-m.sigCh:
			ev, isShutdown := classify(s)
			if isShutdown {
				n := m.shutdownCount.Add(1)
				if n >= 3 {
					m.panicFn()
					return
				}
			}
			select {
			case m.events <- ev:
			case <-m.stop:
				return
			}
		}
	}
}
