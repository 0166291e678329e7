// Package pausetime implements the two timing primitives (C1) the rest of
// the runner depends on: a Stopwatch and a PausableSleep, both of which
// freeze their accounting while paused — required so the "is this test
// slow?" and "has the grace period elapsed?" clocks stop ticking while a
// SIGTSTP-suspended run is stopped.
//
// The accounting approach (accumulate elapsed running duration, recompute a
// deadline on resume rather than trusting a single wall-clock delta) is
// grounded on the teacher eventloop package's timer heap (loop.go tick()),
// which likewise tracks a monotonic "when" per timer and never assumes time
// advances linearly across a suspend/resume boundary.
package pausetime

import "time"

// Stopwatch tracks elapsed running time, excluding any paused intervals.
// The zero value is not usable; construct with NewStopwatch.
type Stopwatch struct {
	wallStart time.Time
	start     time.Time // monotonic
	accrued   time.Duration
	pausedAt  time.Time
	paused    bool
}

// NewStopwatch creates a running Stopwatch, recording the current wall and
// monotonic time.
func NewStopwatch() *Stopwatch {
	now := time.Now()
	return &Stopwatch{wallStart: now, start: now}
}

// WallStart returns the wall-clock time the stopwatch was created.
func (s *Stopwatch) WallStart() time.Time { return s.wallStart }

// Elapsed returns the accumulated running duration, excluding paused
// intervals. Monotonically non-decreasing across any sequence of
// pause/resume calls (spec.md §4.1 invariant).
func (s *Stopwatch) Elapsed() time.Duration {
	if s.paused {
		return s.accrued
	}
	return s.accrued + time.Since(s.start)
}

// Pause freezes elapsed-time accounting. A no-op if already paused.
func (s *Stopwatch) Pause() {
	if s.paused {
		return
	}
	s.accrued += time.Since(s.start)
	s.paused = true
	s.pausedAt = time.Now()
}

// Resume restarts accounting from the current Elapsed(). A no-op if already
// running.
func (s *Stopwatch) Resume() {
	if !s.paused {
		return
	}
	s.paused = false
	s.start = time.Now()
}

// Paused reports whether the stopwatch is currently paused.
func (s *Stopwatch) Paused() bool { return s.paused }
