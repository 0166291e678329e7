package event

// RunStats is the running tally of pass/fail/flaky/leak/etc counts that
// accompanies every TestEvent. It is mutated exclusively by the dispatcher
// (internal/dispatcher), one update per event, never concurrently.
type RunStats struct {
	InitialCount int

	Finished int

	Passed     int
	PassedSlow int
	Flaky      int

	Failed         int
	FailedTimedOut int

	Leaky       int
	LeakyFailed int

	ExecFailed int
	Skipped    int

	SetupScriptsInitial  int
	SetupScriptsFinished int
	SetupScriptsFailed   int

	CancelReason *CancelReason
}

// Clone returns a deep copy suitable for embedding in an immutable TestEvent
// snapshot (RunStats on the dispatcher is mutated in place; events must not
// alias it).
func (s RunStats) Clone() RunStats {
	out := s
	if s.CancelReason != nil {
		r := *s.CancelReason
		out.CancelReason = &r
	}
	return out
}

// RecordCancel folds a newly observed cancel reason into the stats using the
// monotonic Max rule (spec.md §3, §8 property 5).
func (s *RunStats) RecordCancel(reason CancelReason) {
	if s.CancelReason == nil {
		r := reason
		s.CancelReason = &r
		return
	}
	merged := Max(*s.CancelReason, reason)
	s.CancelReason = &merged
}

// RecordFinished applies the effect of one TestFinished event (exactly once
// per admitted test instance, per spec.md §8 property 1/3) to the tally.
// wentSlow reports whether the dispatcher observed at least one Slow event
// for this unit before it finished; ExecutionStatuses alone carries no
// slow-event history, so the caller (internal/dispatcher) tracks it
// per-unit and passes it in here.
func (s *RunStats) RecordFinished(statuses ExecutionStatuses, wentSlow bool) {
	s.Finished++

	label := statuses.Label()
	last := statuses.Attempts[len(statuses.Attempts)-1]

	switch label {
	case ExecutionStatusSuccess:
		s.Passed++
		if wentSlow {
			s.PassedSlow++
		}
	case ExecutionStatusFlaky:
		s.Passed++
		s.Flaky++
		if wentSlow {
			s.PassedSlow++
		}
	case ExecutionStatusFailure:
		s.Failed++
		if last.Kind == ExecutionResultTimeout {
			s.FailedTimedOut++
		}
		if last.Kind == ExecutionResultExecFail {
			s.ExecFailed++
		}
	}

	if last.Kind == ExecutionResultLeak {
		s.Leaky++
		if label == ExecutionStatusFailure {
			s.LeakyFailed++
		}
	}
}

// CheckInvariants validates the cross-field invariants from spec.md §3.
// Exposed for property tests; never called on the hot path.
func (s RunStats) CheckInvariants() error {
	switch {
	case s.Finished > s.InitialCount:
		return errInvariant("finished > initial_count")
	case s.PassedSlow > s.Passed:
		return errInvariant("passed_slow > passed")
	case s.Flaky > s.Passed:
		return errInvariant("flaky > passed")
	case s.LeakyFailed > s.Failed:
		return errInvariant("leaky_failed > failed")
	}
	return nil
}

type invariantError string

func (e invariantError) Error() string { return "event: invariant violated: " + string(e) }

func errInvariant(msg string) error { return invariantError(msg) }
