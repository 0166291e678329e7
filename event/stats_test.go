package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextest-rs/nextest-sub001/event"
)

func TestRunStats_RecordFinished(t *testing.T) {
	var s event.RunStats
	s.RecordFinished(statusesOf(pass()), false)
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 1, s.Finished)

	s.RecordFinished(statusesOf(fail(), pass()), false)
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 1, s.Flaky)

	s.RecordFinished(statusesOf(fail()), false)
	assert.Equal(t, 1, s.Failed)

	s.RecordFinished(statusesOf(timeoutFail()), false)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 1, s.FailedTimedOut)

	s.RecordFinished(statusesOf(event.ExecutionResult{Kind: event.ExecutionResultExecFail}), false)
	assert.Equal(t, 1, s.ExecFailed)

	require.NoError(t, s.CheckInvariants())
}

func TestRunStats_RecordFinished_Leak(t *testing.T) {
	var s event.RunStats
	leakPass := event.ExecutionResult{Kind: event.ExecutionResultLeak}
	leakPass.TimeoutPassed = false // leak itself is distinct from timeout; Label still depends on IsSuccess
	_ = leakPass

	// A leak that is *not* classified fail (ResultIsFail=false upstream)
	// still reports IsSuccess()==false by default unless the unit synthesizes
	// a Pass-shaped result; here we exercise the "leak on top of a failing
	// last attempt" accounting path directly.
	s.RecordFinished(statusesOf(event.ExecutionResult{Kind: event.ExecutionResultLeak}), false)
	assert.Equal(t, 1, s.Leaky)
	assert.Equal(t, 1, s.LeakyFailed)
	assert.Equal(t, 1, s.Failed)
}

func TestRunStats_RecordFinished_PassedSlow(t *testing.T) {
	var s event.RunStats
	s.RecordFinished(statusesOf(pass()), true)
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 1, s.PassedSlow)

	s.RecordFinished(statusesOf(fail(), pass()), true)
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 1, s.Flaky)
	assert.Equal(t, 2, s.PassedSlow)

	s.RecordFinished(statusesOf(pass()), false)
	assert.Equal(t, 3, s.Passed)
	assert.Equal(t, 2, s.PassedSlow)

	require.NoError(t, s.CheckInvariants())
}

func TestRunStats_RecordCancel_MonotonicMax(t *testing.T) {
	var s event.RunStats
	s.RecordCancel(event.CancelReasonTestFailure)
	require.NotNil(t, s.CancelReason)
	assert.Equal(t, event.CancelReasonTestFailure, *s.CancelReason)

	s.RecordCancel(event.CancelReasonGlobalTimeout)
	assert.Equal(t, event.CancelReasonGlobalTimeout, *s.CancelReason)

	// A lower-urgency reason observed afterwards must not downgrade it.
	s.RecordCancel(event.CancelReasonSetupScriptFailure)
	assert.Equal(t, event.CancelReasonGlobalTimeout, *s.CancelReason)
}

func TestRunStats_Clone_DoesNotAliasCancelReason(t *testing.T) {
	var s event.RunStats
	s.RecordCancel(event.CancelReasonSignal)
	clone := s.Clone()
	require.NotNil(t, clone.CancelReason)

	s.RecordCancel(event.CancelReasonSecondSignal)
	assert.Equal(t, event.CancelReasonSignal, *clone.CancelReason, "clone must not observe later mutation")
	assert.Equal(t, event.CancelReasonSecondSignal, *s.CancelReason)
}

func TestRunStats_CheckInvariants(t *testing.T) {
	bad := event.RunStats{InitialCount: 1, Finished: 2}
	assert.Error(t, bad.CheckInvariants())

	bad = event.RunStats{Passed: 1, PassedSlow: 2}
	assert.Error(t, bad.CheckInvariants())

	good := event.RunStats{InitialCount: 5, Finished: 5, Passed: 5}
	assert.NoError(t, good.CheckInvariants())
}
