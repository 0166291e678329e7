// Package inputhandler implements C4: when stdin is an interactive
// terminal (and, on POSIX, this process is in the foreground process group
// of its controlling terminal), switch it to unbuffered non-echoing mode
// and produce keyboard events (Info on 't', Enter on return); all other
// keys are silently ignored.
//
// The raw-mode-with-injectable-syscalls shape is adapted from the teacher's
// prompt.PosixReader (prompt/reader_posix.go): fd-based open/read/restore
// funcs stored as struct fields, set when the reader is built, so tests can swap in
// fakes without needing a real tty.
package inputhandler

import (
	"sync"
)

// KeyKind classifies one terminal keypress event.
type KeyKind int

const (
	KeyInfo KeyKind = iota // 't'
	KeyEnter                // return
)

// Event is produced for each recognised keypress.
type Event struct {
	Key KeyKind
}

// reader is the minimal surface inputhandler needs from a terminal; the
// POSIX implementation is backed by syscalls, mirroring PosixReader's
// initFuncs pattern.
type reader interface {
	Open() error
	Close() error
	Read(buf []byte) (int, error)
}

// Handler produces keyboard events from an interactive terminal. The zero
// value is not usable; construct with New.
type Handler struct {
	r       reader
	events  chan Event
	stop    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	active  bool
}

// New constructs a Handler. Active() reports whether stdin is actually an
// interactive foreground terminal; if not, Start is a no-op and Events()
// never produces anything, matching spec.md §4.4 ("only active when...").
func New() *Handler {
	return &Handler{
		r:      newPosixOrFallbackReader(),
		events: make(chan Event, 16),
		stop:   make(chan struct{}),
	}
}

// Active reports whether this handler can actually read from an
// interactive terminal.
func (h *Handler) Active() bool {
	return isInteractiveForeground()
}

// Start disables canonical mode and echo, leaving terminal-driver signal
// generation intact, and begins producing events. It registers the handler
// with RecoverAndRestoreAll, which restores terminal settings on a panic
// that unwinds through the goroutine deferring it (spec.md §4.4).
func (h *Handler) Start() error {
	if !h.Active() {
		return nil
	}
	if err := h.r.Open(); err != nil {
		return err
	}
	registerRestoreOnPanic(h)
	h.mu.Lock()
	h.active = true
	h.mu.Unlock()
	h.wg.Add(1)
	go h.loop()
	return nil
}

// Events returns the receive-only event stream.
func (h *Handler) Events() <-chan Event { return h.events }

// Stop restores original terminal settings and stops producing events.
// Safe to call multiple times, and from the panic hook.
func (h *Handler) Stop() {
	h.mu.Lock()
	if !h.active {
		h.mu.Unlock()
		return
	}
	h.active = false
	h.mu.Unlock()

	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
	h.wg.Wait()
	_ = h.r.Close()
	unregisterRestoreOnPanic(h)
}

// SuspendForJobControl temporarily restores terminal settings without
// stopping the event loop's bookkeeping, so a SIGTSTP-suspended run doesn't
// leave the terminal in raw mode if the shell prints over it; ResumeAfterJobControl
// reapplies raw mode (spec.md §4.4).
func (h *Handler) SuspendForJobControl() {
	_ = h.r.Close()
}

// ResumeAfterJobControl reapplies raw, non-echoing mode after a job-control
// continue.
func (h *Handler) ResumeAfterJobControl() error {
	return h.r.Open()
}

func (h *Handler) loop() {
	defer h.wg.Done()
	buf := make([]byte, 64)
	for {
		select {
		case <-h.stop:
			return
		default:
		}
		n, err := h.r.Read(buf)
		if err != nil || n <= 0 {
			continue
		}
		for _, b := range buf[:n] {
			var ev Event
			switch b {
			case 't', 'T':
				ev = Event{Key: KeyInfo}
			case '\r', '\n':
				ev = Event{Key: KeyEnter}
			default:
				continue
			}
			select {
			case h.events <- ev:
			case <-h.stop:
				return
			}
		}
	}
}
