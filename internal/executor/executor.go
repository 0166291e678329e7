// Package executor implements the scheduling layer (C6) above individual
// units: running setup scripts serially and publishing their environment,
// admitting tests under a global-plus-per-group weighted concurrency limit,
// and repeating the runnable set for stress profiles.
//
// The weighted-token admission model is grounded on the teacher
// microbatch.Batcher's MaxConcurrency gate and its context-respecting
// run/stop/done goroutine lifecycle, generalized from "one token" to a
// real weighted semaphore (golang.org/x/sync/semaphore, already part of
// the teacher's own dependency surface) since thread-weighted tests need
// more than a binary gate.
package executor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nextest-rs/nextest-sub001/event"
	"github.com/nextest-rs/nextest-sub001/internal/logging"
	"github.com/nextest-rs/nextest-sub001/internal/mailbox"
	"github.com/nextest-rs/nextest-sub001/internal/platform"
	"github.com/nextest-rs/nextest-sub001/internal/unit"
	"github.com/nextest-rs/nextest-sub001/internal/unitmsg"
	"github.com/nextest-rs/nextest-sub001/testlist"
)

// Executor owns admission and repetition; it never inspects a unit's
// outcome via the shared event mailbox (that's the dispatcher's job) except
// for the one case where it needs a synchronous verdict of its own: a
// setup script, whose failure aborts the whole run before any test is ever
// admitted.
type Executor struct {
	responses *mailbox.Unbounded[unitmsg.ExecutorEvent]
	logger    *logging.Logger

	global         *semaphore.Weighted
	globalCapacity int64

	groupsMu sync.Mutex
	groups   map[string]*semaphore.Weighted
	limits   map[string]int64

	nextID atomic.Uint64
}

// New constructs an Executor. responses is the shared mailbox every unit
// and the executor itself report ExecutorEvents onto.
func New(responses *mailbox.Unbounded[unitmsg.ExecutorEvent], logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Executor{
		responses: responses,
		logger:    logger,
		groups:    make(map[string]*semaphore.Weighted),
		limits:    make(map[string]int64),
	}
}

// Run runs scripts serially, then the runnable subset of list once (or
// repeatedly, for a stress profile), honoring profile's concurrency and
// group limits. It returns early with an error if a setup script fails,
// without admitting any test. Run blocks until every admitted unit under
// this invocation has finished; cancelling ctx stops further admission (of
// both scripts and tests) but does not itself terminate already-running
// units — that's the dispatcher's job, issued through each live unit's own
// request mailbox.
func (e *Executor) Run(ctx context.Context, list testlist.TestList, scripts []testlist.SetupScript, profile testlist.Profile) error {
	threads := profile.TestThreads
	if threads <= 0 {
		threads = 1
	}
	e.globalCapacity = int64(threads)
	e.global = semaphore.NewWeighted(e.globalCapacity)
	for group, limit := range profile.GroupLimits {
		if limit > 0 {
			e.limits[group] = int64(limit)
		}
	}

	interceptor := toPlatformInterceptor(profile.Interceptor)

	envs, err := e.runSetupScripts(ctx, scripts)
	if err != nil {
		return err
	}

	runnable := list.Runnable()
	hasStress := profile.Stress.Mode != testlist.StressNone
	deadline := stressDeadline(profile.Stress)

	for idx := 0; ; idx++ {
		if ctx.Err() != nil {
			return nil
		}
		if hasStress && profile.Stress.Mode == testlist.StressCount && idx >= profile.Stress.Count {
			return nil
		}
		if deadline != nil && time.Now().After(*deadline) {
			return nil
		}

		e.responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventStressSubRunStarted, StressIndex: idx})
		e.runIteration(ctx, runnable, envs, interceptor, idx, hasStress)
		e.responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventStressSubRunFinished, StressIndex: idx})

		if !hasStress {
			return nil
		}
	}
}

func (e *Executor) runIteration(ctx context.Context, instances []testlist.TestInstance, envs []scriptEnv, interceptor platform.InterceptorMode, stressIdx int, hasStress bool) {
	var wg sync.WaitGroup
	for _, inst := range instances {
		inst := inst
		if ctx.Err() != nil {
			break
		}
		release, err := e.admit(ctx, int64(inst.Settings.ThreadWeight), inst.Settings.TestGroup)
		if err != nil {
			break // ctx cancelled while waiting for a token; no unit spawned
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer release()
			e.runTestInstance(ctx, inst, envs, interceptor, stressIdx, hasStress)
		}()
	}
	wg.Wait()
}

func (e *Executor) runTestInstance(ctx context.Context, inst testlist.TestInstance, envs []scriptEnv, interceptor platform.InterceptorMode, stressIdx int, hasStress bool) {
	id := unitmsg.ID(e.nextID.Add(1))
	ref := event.UnitRef{
		BinaryID:  inst.ID.BinaryID,
		TestName:  inst.ID.TestName,
		StressIdx: stressIdx,
		HasStress: hasStress,
	}

	reqBox := mailbox.New[unitmsg.RunUnitRequest]()
	defer reqBox.Close()
	e.responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventAdmitted, ID: id, Ref: ref, Admit: reqBox.Send})

	spec := unit.Spec{
		ID:          id,
		Ref:         ref,
		Command:     inst.Command,
		Env:         append(append([]string{}, inst.Env...), envForInstance(envs, inst)...),
		Capture:     inst.Settings.Capture,
		Interceptor: interceptor,
		Slow:        inst.Settings.Slow,
		Leak:        inst.Settings.Leak,
		Retry:       inst.Settings.Retry,
	}
	unit.New(spec, e.responses, reqBox.Out(), e.logger).Run(ctx)
}

// scriptEnv pairs a setup script with the variables it published, so later
// tests can be filtered through the script's own Matches predicate.
type scriptEnv struct {
	script testlist.SetupScript
	vars   testlist.EnvVars
}

func (e *Executor) runSetupScripts(ctx context.Context, scripts []testlist.SetupScript) ([]scriptEnv, error) {
	out := make([]scriptEnv, 0, len(scripts))
	for _, s := range scripts {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		vars, statuses, err := e.runOneSetupScript(ctx, s)
		if err != nil {
			e.logger.Err().Str(`script`, s.Name).Err(err).Log(`setup script errored`)
			return out, err
		}
		if statuses.Label() == event.ExecutionStatusFailure {
			e.logger.Err().Str(`script`, s.Name).Log(`setup script failed`)
			return out, fmt.Errorf("executor: setup script %q failed", s.Name)
		}
		out = append(out, scriptEnv{script: s, vars: vars})
	}
	return out, nil
}

func (e *Executor) runOneSetupScript(ctx context.Context, s testlist.SetupScript) (testlist.EnvVars, event.ExecutionStatuses, error) {
	tmp, err := os.CreateTemp("", "nextest-env-*")
	if err != nil {
		return nil, event.ExecutionStatuses{}, err
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	id := unitmsg.ID(e.nextID.Add(1))
	ref := event.UnitRef{SetupName: s.Name, IsSetup: true}

	reqBox := mailbox.New[unitmsg.RunUnitRequest]()
	defer reqBox.Close()
	e.responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventAdmitted, ID: id, Ref: ref, Admit: reqBox.Send})

	spec := unit.Spec{
		ID:      id,
		Ref:     ref,
		Command: s.Command,
		Env:     append(os.Environ(), "NEXTEST_ENV="+path),
		Capture: s.Capture,
		Slow:    s.Slow,
		Leak:    s.Leak,
	}
	statuses := unit.New(spec, e.responses, reqBox.Out(), e.logger).Run(ctx)

	vars, err := parseEnvFile(path)
	if err != nil {
		return nil, statuses, err
	}
	return vars, statuses, nil
}

func envForInstance(envs []scriptEnv, inst testlist.TestInstance) []string {
	merged := make(map[string]string)
	for _, se := range envs {
		if !se.script.Matches(inst) {
			continue
		}
		for k, v := range se.vars {
			merged[k] = v
		}
	}
	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	return out
}

func parseEnvFile(path string) (testlist.EnvVars, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return testlist.EnvVars{}, nil
		}
		return nil, err
	}
	out := make(testlist.EnvVars)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out, nil
}

func (e *Executor) groupSemaphore(group string) *semaphore.Weighted {
	if group == "" {
		return nil
	}
	limit, ok := e.limits[group]
	if !ok {
		return nil
	}
	e.groupsMu.Lock()
	defer e.groupsMu.Unlock()
	if s, ok := e.groups[group]; ok {
		return s
	}
	s := semaphore.NewWeighted(limit)
	e.groups[group] = s
	return s
}

// admit acquires a weighted slot on the global semaphore and, if the test
// belongs to a limited group, on that group's semaphore too. A weight
// greater than a semaphore's capacity would otherwise never be satisfiable
// (Acquire blocks forever) so it is clamped per-dimension to that
// semaphore's own capacity: an oversized test occupies the whole dimension
// by itself instead of admission hanging until ctx is cancelled (spec.md
// §4.6).
func (e *Executor) admit(ctx context.Context, weight int64, group string) (func(), error) {
	if weight <= 0 {
		weight = 1
	}
	groupSem := e.groupSemaphore(group)
	groupWeight := weight
	if groupSem != nil {
		if limit := e.limits[group]; limit > 0 && groupWeight > limit {
			groupWeight = limit
		}
		if err := groupSem.Acquire(ctx, groupWeight); err != nil {
			return nil, err
		}
	}
	globalWeight := weight
	if e.globalCapacity > 0 && globalWeight > e.globalCapacity {
		globalWeight = e.globalCapacity
	}
	if err := e.global.Acquire(ctx, globalWeight); err != nil {
		if groupSem != nil {
			groupSem.Release(groupWeight)
		}
		return nil, err
	}
	return func() {
		e.global.Release(globalWeight)
		if groupSem != nil {
			groupSem.Release(groupWeight)
		}
	}, nil
}

func toPlatformInterceptor(k testlist.InterceptorKind) platform.InterceptorMode {
	switch k {
	case testlist.InterceptorDebugger:
		return platform.InterceptorDebugger
	case testlist.InterceptorTracer:
		return platform.InterceptorTracer
	default:
		return platform.InterceptorNone
	}
}

func stressDeadline(c testlist.StressCondition) *time.Time {
	if c.Mode != testlist.StressDuration || c.Duration <= 0 {
		return nil
	}
	t := time.Now().Add(c.Duration)
	return &t
}
