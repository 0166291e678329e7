package pausetime_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextest-rs/nextest-sub001/internal/pausetime"
)

func TestPausableSleep_FiresAfterDuration(t *testing.T) {
	s := pausetime.NewPausableSleep(10 * time.Millisecond)
	defer s.Stop()
	select {
	case <-s.C:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("sleep did not fire in time")
	}
}

func TestPausableSleep_PauseStopsCountdown(t *testing.T) {
	s := pausetime.NewPausableSleep(30 * time.Millisecond)
	defer s.Stop()

	time.Sleep(5 * time.Millisecond)
	s.Pause()
	remainingAtPause := s.Remaining()
	require.Greater(t, remainingAtPause, time.Duration(0))

	time.Sleep(50 * time.Millisecond) // much longer than remaining, but paused
	select {
	case <-s.C:
		t.Fatal("sleep must not fire while paused")
	case <-time.After(20 * time.Millisecond):
	}

	s.Resume()
	select {
	case <-s.C:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("sleep did not fire after resume")
	}
}

func TestPausableSleep_Reset(t *testing.T) {
	s := pausetime.NewPausableSleep(time.Hour)
	defer s.Stop()
	s.Reset(5 * time.Millisecond)
	select {
	case <-s.C:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("reset sleep did not fire in time")
	}
}

func TestPausableSleep_NonPositiveDuration_FiresImmediately(t *testing.T) {
	s := pausetime.NewPausableSleep(0)
	defer s.Stop()
	select {
	case <-s.C:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("zero-duration sleep should fire immediately")
	}
}
