package reporter

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextest-rs/nextest-sub001/event"
)

func TestJSONSink_Emit_TestFinished(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONSink(&buf)

	s.Emit(event.TestEvent{
		Kind:    event.KindTestFinished,
		Running: 1,
		Unit:    event.UnitRef{BinaryID: "b", TestName: "t1"},
		Stats:   event.RunStats{Passed: 1},
		Test:    &event.TestPayload{Statuses: event.ExecutionStatuses{Attempts: []event.ExecutionResult{{Kind: event.ExecutionResultPass}}}},
	})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "TestFinished", decoded["kind"])
	assert.Equal(t, "b", decoded["binary_id"])
	assert.Equal(t, "t1", decoded["test_name"])
	assert.Equal(t, "success", decoded["label"])
	assert.Equal(t, float64(1), decoded["attempts"])
}

func TestJSONSink_Emit_IncludesCancelReason(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONSink(&buf)

	s.Emit(event.TestEvent{
		Kind:   event.KindRunBeginCancel,
		Cancel: &event.CancelPayload{Reason: event.CancelReasonSignal},
	})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, event.CancelReasonSignal.String(), decoded["cancel_reason"])
}

func TestJSONSink_Emit_OmitsUnitFieldsWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONSink(&buf)

	s.Emit(event.TestEvent{Kind: event.KindRunStarted, Stats: event.RunStats{InitialCount: 3}})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	_, hasBinary := decoded["binary_id"]
	assert.False(t, hasBinary)
}
