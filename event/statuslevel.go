package event

// StatusLevel controls which events are written as status lines during the
// run. It is an incremental ladder: each level includes all lower ones.
type StatusLevel int

const (
	StatusLevelNone StatusLevel = iota
	StatusLevelFail
	StatusLevelRetry
	StatusLevelSlow
	StatusLevelLeak
	StatusLevelPass
	StatusLevelSkip
	StatusLevelAll
)

// FinalStatusLevel controls which events are written in the end-of-run
// summary. Its ladder order differs from StatusLevel (Flaky/Skip/Leak swap
// positions relative to Slow/Pass), per spec.md §4.8.
type FinalStatusLevel int

const (
	FinalStatusLevelNone FinalStatusLevel = iota
	FinalStatusLevelFail
	FinalStatusLevelFlaky
	FinalStatusLevelSlow
	FinalStatusLevelSkip
	FinalStatusLevelLeak
	FinalStatusLevelPass
	FinalStatusLevelAll
)

// outcomeKind classifies a TestFinished event for the purposes of the
// disclosure truth table, independent of whether it's evaluated against
// StatusLevel or FinalStatusLevel.
type outcomeKind int

const (
	outcomeFail outcomeKind = iota
	outcomeRetry
	outcomeFlaky
	outcomeSlow
	outcomeLeak
	outcomePass
	outcomeSkip
)

// meetsDuringRun reports whether an outcome of the given kind should produce
// a status line under the given during-run StatusLevel.
func meetsDuringRun(level StatusLevel, kind outcomeKind) bool {
	if level == StatusLevelAll {
		return true
	}
	var threshold StatusLevel
	switch kind {
	case outcomeFail:
		threshold = StatusLevelFail
	case outcomeRetry, outcomeFlaky:
		threshold = StatusLevelRetry
	case outcomeSlow:
		threshold = StatusLevelSlow
	case outcomeLeak:
		threshold = StatusLevelLeak
	case outcomePass:
		threshold = StatusLevelPass
	case outcomeSkip:
		threshold = StatusLevelSkip
	default:
		return false
	}
	return level >= threshold
}

// meetsFinal reports whether an outcome of the given kind should be stored
// for / shown in the final summary under the given FinalStatusLevel.
func meetsFinal(level FinalStatusLevel, kind outcomeKind) bool {
	if level == FinalStatusLevelAll {
		return true
	}
	var threshold FinalStatusLevel
	switch kind {
	case outcomeFail:
		threshold = FinalStatusLevelFail
	case outcomeFlaky, outcomeRetry:
		threshold = FinalStatusLevelFlaky
	case outcomeSlow:
		threshold = FinalStatusLevelSlow
	case outcomeSkip:
		threshold = FinalStatusLevelSkip
	case outcomeLeak:
		threshold = FinalStatusLevelLeak
	case outcomePass:
		threshold = FinalStatusLevelPass
	default:
		return false
	}
	return level >= threshold
}

// OutputDisclosure names how much of a test's captured output the profile
// allows to be shown (success-output / failure-output settings in
// testlist.SettingsModel).
type OutputDisclosure int

const (
	OutputDisclosureNever OutputDisclosure = iota
	OutputDisclosureFailing
	OutputDisclosureImmediate
	OutputDisclosureFinal
	OutputDisclosureImmediateFinal
)

// DisclosureDecision is the deterministic output of the decision rule
// described in spec.md §4.8: given a test's output-disclosure setting, the
// run's cancel reason, and the active status level, decide what the
// reporter should do with one TestFinished/SetupScriptFinished event.
type DisclosureDecision struct {
	WriteStatusLine      bool
	ShowOutputImmediate  bool
	StoreOutputForFinal  bool
}

// outcomeKindOf derives the outcomeKind of one finished test from its
// ExecutionStatuses, for use by both Decide and DecideFinal.
func outcomeKindOf(statuses ExecutionStatuses, skipped bool) outcomeKind {
	if skipped {
		return outcomeSkip
	}
	switch statuses.Label() {
	case ExecutionStatusFlaky:
		return outcomeFlaky
	case ExecutionStatusFailure:
		return outcomeFail
	default:
		last := statuses.Attempts[len(statuses.Attempts)-1]
		if last.Kind == ExecutionResultLeak {
			return outcomeLeak
		}
		return outcomePass
	}
}

// Decide implements the during-run half of the truth table: whether to
// write an immediate status line and/or show output immediately.
//
// The rule, in order:
//  1. A cancelled run (cancelReason != None) suppresses ShowOutputImmediate
//     for passing outcomes, since a cancelled run's output is dominated by
//     the cancellation narrative, not individual passes.
//  2. WriteStatusLine is governed purely by StatusLevel against the
//     outcome's kind.
//  3. ShowOutputImmediate requires WriteStatusLine. A failing outcome (fail,
//     flaky, leak) then shows output under any disclosure but Never; any
//     other outcome needs Immediate or ImmediateFinal disclosure and an
//     uncancelled run.
func Decide(disclosure OutputDisclosure, cancelReason CancelReason, level StatusLevel, statuses ExecutionStatuses, skipped bool) DisclosureDecision {
	kind := outcomeKindOf(statuses, skipped)
	var d DisclosureDecision
	d.WriteStatusLine = meetsDuringRun(level, kind)

	failing := kind == outcomeFail || kind == outcomeFlaky || kind == outcomeLeak
	immediateAllowed := disclosure == OutputDisclosureImmediate || disclosure == OutputDisclosureImmediateFinal
	failingAllowed := disclosure != OutputDisclosureNever

	switch {
	case !d.WriteStatusLine:
		// never show output for an outcome the level wouldn't even report.
	case failing && failingAllowed:
		d.ShowOutputImmediate = true
	case !failing && immediateAllowed && cancelReason == CancelReasonNone:
		d.ShowOutputImmediate = true
	}

	return d
}

// DecideFinal implements the end-of-run half: whether to store output for
// inclusion in the final summary.
func DecideFinal(disclosure OutputDisclosure, level FinalStatusLevel, statuses ExecutionStatuses, skipped bool) DisclosureDecision {
	kind := outcomeKindOf(statuses, skipped)
	var d DisclosureDecision
	shouldReport := meetsFinal(level, kind)

	failing := kind == outcomeFail || kind == outcomeFlaky || kind == outcomeLeak
	finalAllowed := disclosure == OutputDisclosureFinal || disclosure == OutputDisclosureImmediateFinal
	failingAllowed := disclosure != OutputDisclosureNever

	d.WriteStatusLine = shouldReport
	switch {
	case !shouldReport:
	case failing && failingAllowed:
		d.StoreOutputForFinal = true
	case !failing && finalAllowed:
		d.StoreOutputForFinal = true
	}
	return d
}
