// Package reporter is the outward-facing façade (C9): a set of Sink
// implementations the dispatcher's single reactor calls Emit on for every
// TestEvent. None of them interpret cancellation or disclosure policy
// themselves (the dispatcher has already decided what output, if any,
// accompanies each event) — apart from the human sink filtering its lines
// by status level, they only format and write.
package reporter

import "github.com/nextest-rs/nextest-sub001/event"

// Multi fans a single TestEvent stream out to several sinks, in order. A
// panic or slow sink in one does not insulate the others; callers that need
// isolation should wrap a sink themselves.
type Multi struct {
	sinks []Sink
}

// Sink mirrors dispatcher.Sink, redeclared here so this package doesn't
// need to import dispatcher just to spell the interface it implements.
type Sink interface {
	Emit(event.TestEvent)
}

// NewMulti builds a fan-out Sink from the given sinks, skipping any nil
// entries so callers can conditionally include JUnit/JSON output without
// building a slice by hand.
func NewMulti(sinks ...Sink) *Multi {
	out := &Multi{}
	for _, s := range sinks {
		if s != nil {
			out.sinks = append(out.sinks, s)
		}
	}
	return out
}

func (m *Multi) Emit(te event.TestEvent) {
	for _, s := range m.sinks {
		s.Emit(te)
	}
}
