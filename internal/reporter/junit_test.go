package reporter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextest-rs/nextest-sub001/event"
)

func TestJUnitSink_FlushWritesAccumulatedSuites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junit.xml")
	j := NewJUnitSink(path)

	j.Emit(event.TestEvent{
		Kind: event.KindTestFinished,
		Unit: event.UnitRef{BinaryID: "pkgA", TestName: "passes"},
		Test: &event.TestPayload{Statuses: event.ExecutionStatuses{Attempts: []event.ExecutionResult{{Kind: event.ExecutionResultPass}}}},
	})
	j.Emit(event.TestEvent{
		Kind: event.KindTestFinished,
		Unit: event.UnitRef{BinaryID: "pkgA", TestName: "fails"},
		Test: &event.TestPayload{
			Statuses: event.ExecutionStatuses{Attempts: []event.ExecutionResult{{Kind: event.ExecutionResultFail, FailKind: event.FailKindExit}}},
			Output:   event.CapturedOutput{Stdout: []byte("trace")},
		},
	})
	// Non-TestFinished events must be ignored.
	j.Emit(event.TestEvent{Kind: event.KindRunStarted})

	require.NoError(t, j.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, `name="pkgA"`)
	assert.Contains(t, body, `tests="2"`)
	assert.Contains(t, body, `failures="1"`)
	assert.Contains(t, body, `name="passes"`)
	assert.Contains(t, body, `name="fails"`)
	assert.Contains(t, body, "trace")
}

func TestJUnitSink_ExecFailIsCountedAsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junit.xml")
	j := NewJUnitSink(path)

	j.Emit(event.TestEvent{
		Kind: event.KindTestFinished,
		Unit: event.UnitRef{BinaryID: "pkgB", TestName: "cant-exec"},
		Test: &event.TestPayload{
			Statuses: event.ExecutionStatuses{Attempts: []event.ExecutionResult{{Kind: event.ExecutionResultExecFail, ExecFailError: os.ErrNotExist}}},
		},
	})
	require.NoError(t, j.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `errors="1"`)
}
