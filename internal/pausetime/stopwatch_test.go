package pausetime_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nextest-rs/nextest-sub001/internal/pausetime"
)

func TestStopwatch_ElapsedMonotonic(t *testing.T) {
	sw := pausetime.NewStopwatch()
	time.Sleep(10 * time.Millisecond)
	first := sw.Elapsed()
	assert.GreaterOrEqual(t, first, 10*time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	second := sw.Elapsed()
	assert.GreaterOrEqual(t, second, first)
}

func TestStopwatch_PauseFreezesAccounting(t *testing.T) {
	sw := pausetime.NewStopwatch()
	time.Sleep(10 * time.Millisecond)
	sw.Pause()
	assert.True(t, sw.Paused())

	frozen := sw.Elapsed()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, frozen, sw.Elapsed(), "elapsed must not advance while paused")

	sw.Resume()
	assert.False(t, sw.Paused())
	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, sw.Elapsed(), frozen)
}

func TestStopwatch_PauseResume_Idempotent(t *testing.T) {
	sw := pausetime.NewStopwatch()
	sw.Pause()
	frozen := sw.Elapsed()
	sw.Pause() // no-op
	assert.Equal(t, frozen, sw.Elapsed())

	sw.Resume()
	sw.Resume() // no-op, should not reset start twice in a way that loses accrued time
	assert.False(t, sw.Paused())
}
