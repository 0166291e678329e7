package pausetime

import "time"

// PausableSleep is a one-shot countdown that completes after a configured
// duration of *running* time. Pausing stops the countdown; resuming
// restarts it from the remaining duration. Timing is best-effort: no error
// kind is defined for missed deadlines (spec.md §4.1).
type PausableSleep struct {
	remaining time.Duration
	paused    bool
	lastStart time.Time
	timer     *time.Timer
	C         <-chan time.Time // fires when the sleep completes; re-armed by reset/resume
	ch        chan time.Time
}

// NewPausableSleep creates a running PausableSleep for the given duration.
func NewPausableSleep(d time.Duration) *PausableSleep {
	s := &PausableSleep{
		remaining: d,
		ch:        make(chan time.Time, 1),
	}
	s.C = s.ch
	s.arm(d)
	return s
}

func (s *PausableSleep) arm(d time.Duration) {
	s.lastStart = time.Now()
	if d <= 0 {
		// Best-effort immediate fire; non-blocking send since C is buffered 1.
		select {
		case s.ch <- time.Now():
		default:
		}
		return
	}
	s.timer = time.AfterFunc(d, func() {
		select {
		case s.ch <- time.Now():
		default:
		}
	})
}

// Pause stops the countdown, capturing the remaining duration. A no-op if
// already paused.
func (s *PausableSleep) Pause() {
	if s.paused {
		return
	}
	s.paused = true
	if s.timer != nil {
		s.timer.Stop()
	}
	elapsed := time.Since(s.lastStart)
	s.remaining -= elapsed
	if s.remaining < 0 {
		s.remaining = 0
	}
}

// Resume restarts the countdown from the remaining duration. A no-op if
// already running.
func (s *PausableSleep) Resume() {
	if !s.paused {
		return
	}
	s.paused = false
	s.arm(s.remaining)
}

// Reset resets the remaining time to newDuration without changing the
// running/paused state: if currently paused, the new remaining duration
// takes effect on the next Resume; if running, the timer is immediately
// rearmed.
func (s *PausableSleep) Reset(newDuration time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.remaining = newDuration
	if !s.paused {
		s.arm(newDuration)
	}
}

// Stop cancels the countdown permanently; no further send on C will occur.
func (s *PausableSleep) Stop() {
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Remaining returns the current remaining duration, valid whether paused or
// running (while running this is a snapshot, not live-updated until Pause).
func (s *PausableSleep) Remaining() time.Duration {
	if s.paused {
		return s.remaining
	}
	r := s.remaining - time.Since(s.lastStart)
	if r < 0 {
		return 0
	}
	return r
}
