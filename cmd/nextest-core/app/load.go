package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nextest-rs/nextest-sub001/event"
	"github.com/nextest-rs/nextest-sub001/testlist"
)

// The on-disk shapes below are what a build-integration layer is expected to
// produce (test discovery itself is out of scope). encoding/json is used
// directly: no repo in the pack vendors a standalone third-party JSON
// library — the only "json"-adjacent hits in the pack's go.mod files trace
// back to Kubernetes API-machinery internals (sigs.k8s.io/yaml and similar,
// pulled in transitively by Azure-ARO-HCP/giantswarm-muster/teranos-QNTX),
// not a general-purpose marshal/unmarshal library applicable to a flat CLI
// input file, so there is nothing in the corpus to adopt in its place.

type testFile struct {
	Tests []testFileEntry `json:"tests"`
}

type testFileEntry struct {
	BinaryID string   `json:"binary_id"`
	TestName string   `json:"test_name"`
	Command  []string `json:"command"`
	Env      []string `json:"env,omitempty"`
	Platform string   `json:"platform,omitempty"` // "host" (default) or "target"
	Skip     bool     `json:"skip,omitempty"`

	ThreadWeight  int    `json:"thread_weight,omitempty"`
	TestGroup     string `json:"test_group,omitempty"`
	Priority      int    `json:"priority,omitempty"`
	Capture       string `json:"capture,omitempty"` // "split" (default), "combined", "none"
	SuccessOutput string `json:"success_output,omitempty"`
	FailureOutput string `json:"failure_output,omitempty"`

	SlowPeriodSecs        float64 `json:"slow_period_secs,omitempty"`
	SlowTerminateAfter    int     `json:"slow_terminate_after,omitempty"`
	SlowGracePeriodSecs   float64 `json:"slow_grace_period_secs,omitempty"`
	SlowOnTimeoutPass     bool    `json:"slow_on_timeout_pass,omitempty"`
	LeakPeriodSecs        float64 `json:"leak_period_secs,omitempty"`
	LeakResultIsFail      bool    `json:"leak_result_is_fail,omitempty"`
	RetryCount            int     `json:"retry_count,omitempty"`
	RetryDelaySecs        float64 `json:"retry_delay_secs,omitempty"`
	RetryDelayMaxSecs     float64 `json:"retry_delay_max_secs,omitempty"`
	RetryDelayExponential bool    `json:"retry_delay_exponential,omitempty"`
	RetryJitter           float64 `json:"retry_jitter,omitempty"`
}

type setupScriptFile struct {
	Scripts []setupScriptEntry `json:"setup_scripts"`
}

type setupScriptEntry struct {
	Name    string   `json:"name"`
	Command []string `json:"command"`
	Capture string   `json:"capture,omitempty"`

	SlowPeriodSecs      float64 `json:"slow_period_secs,omitempty"`
	SlowTerminateAfter  int     `json:"slow_terminate_after,omitempty"`
	SlowGracePeriodSecs float64 `json:"slow_grace_period_secs,omitempty"`
	LeakPeriodSecs      float64 `json:"leak_period_secs,omitempty"`
	LeakResultIsFail    bool    `json:"leak_result_is_fail,omitempty"`

	// MatchGroups, if non-empty, restricts this script's published
	// environment to instances whose TestGroup is in the list. An empty
	// list matches every instance (testlist.SetupScript's nil-Filter
	// convention).
	MatchGroups []string `json:"match_groups,omitempty"`
}

// loadTestList reads path and converts it to a testlist.TestList.
func loadTestList(path string) (testlist.TestList, error) {
	var f testFile
	if err := readJSON(path, &f); err != nil {
		return testlist.TestList{}, fmt.Errorf("app: loading tests file %q: %w", path, err)
	}

	list := testlist.TestList{Instances: make([]testlist.TestInstance, 0, len(f.Tests))}
	for _, e := range f.Tests {
		if len(e.Command) == 0 {
			return testlist.TestList{}, fmt.Errorf("app: test %s::%s has no command", e.BinaryID, e.TestName)
		}
		verdict := testlist.FilterRun
		if e.Skip {
			verdict = testlist.FilterSkipByFilter
		}
		list.Instances = append(list.Instances, testlist.TestInstance{
			ID:       testlist.TestInstanceID{BinaryID: e.BinaryID, TestName: e.TestName},
			Platform: parsePlatform(e.Platform),
			Verdict:  verdict,
			Settings: entrySettings(e),
			Command:  e.Command,
			Env:      e.Env,
		})
	}
	return list, nil
}

// loadSetupScripts reads path and converts it to setup scripts. An empty
// path yields no scripts (setup scripts are optional).
func loadSetupScripts(path string) ([]testlist.SetupScript, error) {
	if path == "" {
		return nil, nil
	}
	var f setupScriptFile
	if err := readJSON(path, &f); err != nil {
		return nil, fmt.Errorf("app: loading setup-scripts file %q: %w", path, err)
	}

	out := make([]testlist.SetupScript, 0, len(f.Scripts))
	for _, e := range f.Scripts {
		if len(e.Command) == 0 {
			return nil, fmt.Errorf("app: setup script %q has no command", e.Name)
		}
		out = append(out, testlist.SetupScript{
			Name:    e.Name,
			Command: e.Command,
			Capture: parseCapture(e.Capture),
			Slow: testlist.SlowTimeout{
				Period:         secs(e.SlowPeriodSecs),
				TerminateAfter: e.SlowTerminateAfter,
				GracePeriod:    secs(e.SlowGracePeriodSecs),
			},
			Leak: testlist.LeakTimeout{
				Period:       secs(e.LeakPeriodSecs),
				ResultIsFail: e.LeakResultIsFail,
			},
			Filter: groupFilter(e.MatchGroups),
		})
	}
	return out, nil
}

func groupFilter(groups []string) func(testlist.TestInstance) bool {
	if len(groups) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(groups))
	for _, g := range groups {
		allowed[g] = true
	}
	return func(inst testlist.TestInstance) bool {
		return allowed[inst.Settings.TestGroup]
	}
}

func entrySettings(e testFileEntry) testlist.SettingsModel {
	delayKind := testlist.DelayFixed
	if e.RetryDelayExponential {
		delayKind = testlist.DelayExponential
	}
	jitter := e.RetryJitter
	if jitter <= 0 {
		jitter = 1.0
	}
	return testlist.SettingsModel{
		Retry: testlist.RetryPolicy{
			Count: e.RetryCount,
			Delay: testlist.DelayPolicy{
				Kind:   delayKind,
				Base:   secs(e.RetryDelaySecs),
				Max:    secs(e.RetryDelayMaxSecs),
				Jitter: jitter,
			},
		},
		Slow: testlist.SlowTimeout{
			Period:         secs(e.SlowPeriodSecs),
			TerminateAfter: e.SlowTerminateAfter,
			GracePeriod:    secs(e.SlowGracePeriodSecs),
			OnTimeoutPass:  e.SlowOnTimeoutPass,
		},
		Leak: testlist.LeakTimeout{
			Period:       secs(e.LeakPeriodSecs),
			ResultIsFail: e.LeakResultIsFail,
		},
		ThreadWeight:  orDefault(e.ThreadWeight, 1),
		TestGroup:     e.TestGroup,
		Priority:      e.Priority,
		SuccessOutput: parseDisclosure(e.SuccessOutput, event.OutputDisclosureFinal),
		FailureOutput: parseDisclosure(e.FailureOutput, event.OutputDisclosureImmediateFinal),
		Capture:       parseCapture(e.Capture),
	}
}

func secs(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

func parsePlatform(s string) testlist.Platform {
	if s == "target" {
		return testlist.PlatformTarget
	}
	return testlist.PlatformHost
}

func parseCapture(s string) testlist.CapturePolicy {
	switch s {
	case "combined":
		return testlist.CaptureCombined
	case "none":
		return testlist.CaptureNone
	default:
		return testlist.CaptureSplit
	}
}

func parseDisclosure(s string, def event.OutputDisclosure) event.OutputDisclosure {
	switch s {
	case "never":
		return event.OutputDisclosureNever
	case "failing":
		return event.OutputDisclosureFailing
	case "immediate":
		return event.OutputDisclosureImmediate
	case "final":
		return event.OutputDisclosureFinal
	case "immediate_final":
		return event.OutputDisclosureImmediateFinal
	case "":
		return def
	default:
		return def
	}
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
