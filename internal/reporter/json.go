package reporter

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/nextest-rs/nextest-sub001/event"
)

// JSONSink writes one newline-delimited JSON object per TestEvent, for
// machine consumption (CI log aggregation, a downstream UI). Built directly
// on zerolog rather than the logiface facade in internal/logging: this
// sink's job is serializing a fixed, already-typed payload as fast as
// possible, not providing the structured-field-builder ergonomics logiface
// exists for, so the lower-level library is the better fit for exactly the
// one call site that needs it.
type JSONSink struct {
	log zerolog.Logger
}

// NewJSONSink wraps w (typically a file or os.Stdout) in a bare zerolog
// writer with no added console formatting.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{log: zerolog.New(w)}
}

func (s *JSONSink) Emit(te event.TestEvent) {
	ev := s.log.Log().
		Str("kind", te.Kind.String()).
		Time("timestamp", te.Timestamp).
		Dur("elapsed", te.Elapsed).
		Int("running", te.Running).
		Int("passed", te.Stats.Passed).
		Int("failed", te.Stats.Failed).
		Int("flaky", te.Stats.Flaky).
		Int("leaky", te.Stats.Leaky)

	if te.Unit.BinaryID != "" || te.Unit.TestName != "" || te.Unit.IsSetup {
		ev = ev.Str("binary_id", te.Unit.BinaryID).
			Str("test_name", te.Unit.TestName).
			Bool("is_setup", te.Unit.IsSetup)
		if te.Unit.HasStress {
			ev = ev.Int("stress_idx", te.Unit.StressIdx)
		}
	}

	if te.Cancel != nil {
		ev = ev.Str("cancel_reason", te.Cancel.Reason.String())
	}
	if te.Test != nil && len(te.Test.Statuses.Attempts) > 0 {
		ev = ev.Str("label", te.Test.Statuses.Label().String()).
			Int("attempts", len(te.Test.Statuses.Attempts))
	}

	ev.Msg("")
}
