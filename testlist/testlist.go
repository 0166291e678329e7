// Package testlist defines the data model external collaborators (build
// integration, config/filterset parsing) populate and hand to the runner
// core. None of the parsing itself lives here — only the shapes.
package testlist

import (
	"time"

	"github.com/nextest-rs/nextest-sub001/event"
)

// Platform distinguishes a test instance's build platform.
type Platform int

const (
	PlatformHost Platform = iota
	PlatformTarget
)

// FilterVerdict is the filter decision attached to each discovered test.
type FilterVerdict int

const (
	FilterRun FilterVerdict = iota
	FilterSkipByIgnored
	FilterSkipByFilter
)

// TestInstanceID is the triple identity of a test instance, per spec.md §3.
type TestInstanceID struct {
	BinaryID    string
	TestName    string
	StressIndex int
}

// RetryPolicy configures how many times, and with what delay, a failed
// attempt is retried.
type RetryPolicy struct {
	Count int
	Delay DelayPolicy
	// RetryableKinds restricts which event.ExecutionResultKind values are
	// retried; empty means the default retryable set (event.ExecutionResult.Retryable).
	RetryableKinds []event.ExecutionResultKind
}

// DelayKind selects the retry-delay iterator shape.
type DelayKind int

const (
	DelayFixed DelayKind = iota
	DelayExponential
)

// DelayPolicy parameterizes the retry-delay iterator (spec.md §4.5).
type DelayPolicy struct {
	Kind   DelayKind
	Base   time.Duration
	Max    time.Duration // only meaningful for DelayExponential
	Jitter float64       // in (0.5, 1.0]; 1.0 means no jitter
}

// SlowTimeout configures the Slow/Terminating transitions of the unit state
// machine (spec.md §4.5).
type SlowTimeout struct {
	Period          time.Duration
	TerminateAfter  int // 0 disables slow-termination: stay Slow forever
	GracePeriod     time.Duration
	OnTimeoutPass   bool // true => ExecutionResult{Timeout, passed:true}
}

// LeakTimeout configures how long the state machine waits, after process
// exit, for stdout/stderr pipes to close.
type LeakTimeout struct {
	Period       time.Duration
	ResultIsFail bool // true => a leak is classified Fail, not Leak
}

// CapturePolicy selects how a unit's stdout/stderr are handled.
type CapturePolicy int

const (
	CaptureSplit CapturePolicy = iota // separate stdout/stderr pipes
	CaptureCombined
	CaptureNone // inherit parent's stdout/stderr
)

// SettingsModel is the fully resolved, per-test effective settings record
// (spec.md §3, §6): the result of merging a test's own overrides with the
// profile defaults.
type SettingsModel struct {
	Retry           RetryPolicy
	Slow            SlowTimeout
	Leak            LeakTimeout
	ThreadWeight    int
	TestGroup       string
	Priority        int
	SuccessOutput   event.OutputDisclosure
	FailureOutput   event.OutputDisclosure
	Capture         CapturePolicy
}

// TestInstance is one discovered test, as produced by the build-integration
// collaborator.
type TestInstance struct {
	ID       TestInstanceID
	Platform Platform
	Verdict  FilterVerdict
	Settings SettingsModel

	// Command is the argv used to spawn this test instance as its own
	// process (spec.md §4.2): typically the test binary plus a
	// single-test-selection argument, resolved by the build-integration
	// collaborator, not by the runner core.
	Command []string
	// Env is this instance's own base environment, before any matching
	// setup script's published variables are merged in.
	Env []string
}

// TestList is the ordered, immutable-for-a-run collection of test
// instances.
type TestList struct {
	Instances []TestInstance
}

// Runnable returns the subset of instances with FilterRun, preserving order.
func (l TestList) Runnable() []TestInstance {
	out := make([]TestInstance, 0, len(l.Instances))
	for _, in := range l.Instances {
		if in.Verdict == FilterRun {
			out = append(out, in)
		}
	}
	return out
}

// Len is the total instance count, including skipped ones.
func (l TestList) Len() int { return len(l.Instances) }
