package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nextest-rs/nextest-sub001/event"
	"github.com/nextest-rs/nextest-sub001/testlist"
)

// RawOptions is exactly what cobra binds flags into: unvalidated,
// string-and-primitive-typed input. Call Validate to obtain an Options the
// rest of the program can trust.
type RawOptions struct {
	TestsFile  string
	SetupFile  string

	TestThreads       int
	GlobalTimeout     time.Duration
	FailFastMaxFail   int
	FailFastImmediate bool
	GroupLimits       []string // "group=limit"

	StressCount    int
	StressDuration time.Duration

	StatusLevel      string
	FinalStatusLevel string

	JSONOutput  string
	JUnitOutput string
}

// Options is a validated RawOptions, safe to hand to Run.
type Options struct {
	TestsFile string
	SetupFile string

	Profile testlist.Profile

	StatusLevel      event.StatusLevel
	FinalStatusLevel event.FinalStatusLevel

	JSONOutput  string
	JUnitOutput string
}

// Validate mirrors the Raw/Validate/Complete staging testlist.RawProfile
// itself uses: aggregate every problem before returning, rather than
// failing on the first one.
func (r RawOptions) Validate() (Options, error) {
	var errs []error

	if r.TestsFile == "" {
		errs = append(errs, fmt.Errorf("--tests is required"))
	}

	groupLimits, gerrs := parseGroupLimits(r.GroupLimits)
	errs = append(errs, gerrs...)

	statusLevel, err := parseStatusLevel(r.StatusLevel)
	if err != nil {
		errs = append(errs, err)
	}
	finalLevel, err := parseFinalStatusLevel(r.FinalStatusLevel)
	if err != nil {
		errs = append(errs, err)
	}

	if r.StressCount > 0 && r.StressDuration > 0 {
		errs = append(errs, fmt.Errorf("--stress-count and --stress-duration are mutually exclusive"))
	}
	stress := testlist.StressCondition{}
	switch {
	case r.StressCount > 0:
		stress = testlist.StressCondition{Mode: testlist.StressCount, Count: r.StressCount}
	case r.StressDuration > 0:
		stress = testlist.StressCondition{Mode: testlist.StressDuration, Duration: r.StressDuration}
	}

	maxFail := r.FailFastMaxFail
	if maxFail == 0 {
		maxFail = -1 // "all" per testlist.FailFastPolicy.MaxFail convention
	}
	failFastMode := testlist.FailFastWait
	if r.FailFastImmediate {
		failFastMode = testlist.FailFastImmediate
	}

	raw := testlist.RawProfile{
		TestThreads:   orDefault(r.TestThreads, 1),
		GlobalTimeout: r.GlobalTimeout,
		FailFast:      testlist.FailFastPolicy{Mode: failFastMode, MaxFail: maxFail},
		GroupLimits:   groupLimits,
		Stress:        stress,
	}
	profile, err := raw.Validate()
	if err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		msg := "app: invalid options:"
		for _, e := range errs {
			msg += "\n  - " + e.Error()
		}
		return Options{}, optionsError(msg)
	}

	return Options{
		TestsFile:        r.TestsFile,
		SetupFile:        r.SetupFile,
		Profile:          profile,
		StatusLevel:      statusLevel,
		FinalStatusLevel: finalLevel,
		JSONOutput:       r.JSONOutput,
		JUnitOutput:      r.JUnitOutput,
	}, nil
}

// parseStatusLevel accepts the ladder names in event.StatusLevel's own
// order, case-insensitively; an empty string defaults to "pass" (the
// nextest-like default of showing everything but raw per-test starts).
func parseStatusLevel(s string) (event.StatusLevel, error) {
	switch strings.ToLower(s) {
	case "":
		return event.StatusLevelPass, nil
	case "none":
		return event.StatusLevelNone, nil
	case "fail":
		return event.StatusLevelFail, nil
	case "retry":
		return event.StatusLevelRetry, nil
	case "slow":
		return event.StatusLevelSlow, nil
	case "leak":
		return event.StatusLevelLeak, nil
	case "pass":
		return event.StatusLevelPass, nil
	case "skip":
		return event.StatusLevelSkip, nil
	case "all":
		return event.StatusLevelAll, nil
	default:
		return 0, fmt.Errorf("invalid --status-level %q", s)
	}
}

// parseFinalStatusLevel mirrors parseStatusLevel against the differently
// ordered FinalStatusLevel ladder.
func parseFinalStatusLevel(s string) (event.FinalStatusLevel, error) {
	switch strings.ToLower(s) {
	case "":
		return event.FinalStatusLevelFail, nil
	case "none":
		return event.FinalStatusLevelNone, nil
	case "fail":
		return event.FinalStatusLevelFail, nil
	case "flaky":
		return event.FinalStatusLevelFlaky, nil
	case "slow":
		return event.FinalStatusLevelSlow, nil
	case "skip":
		return event.FinalStatusLevelSkip, nil
	case "leak":
		return event.FinalStatusLevelLeak, nil
	case "pass":
		return event.FinalStatusLevelPass, nil
	case "all":
		return event.FinalStatusLevelAll, nil
	default:
		return 0, fmt.Errorf("invalid --final-status-level %q", s)
	}
}

type optionsError string

func (e optionsError) Error() string { return string(e) }

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func parseGroupLimits(raw []string) ([]testlist.GroupLimit, []error) {
	var out []testlist.GroupLimit
	var errs []error
	for _, s := range raw {
		name, limitStr, ok := strings.Cut(s, "=")
		if !ok {
			errs = append(errs, fmt.Errorf("invalid --group-limit %q, want name=limit", s))
			continue
		}
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid --group-limit %q: %w", s, err))
			continue
		}
		out = append(out, testlist.GroupLimit{Group: name, Limit: limit})
	}
	return out, errs
}
