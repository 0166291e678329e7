// Package unit implements the per-test-instance (and per-setup-script)
// state machine (C5): Spawning -> Running -> (Slow)* -> [Terminating ->
// Killing] -> Exiting -> Finished, plus the retry loop that wraps repeated
// attempts of the same unit around that per-attempt machine.
//
// The explicit-state, one-step-per-select-iteration shape is grounded on
// the teacher eventloop package's loop.go tick()/shutdown() pair: a single
// goroutine owns all mutable state for the unit and advances it strictly in
// response to one of a small number of channel sources becoming ready,
// rather than splitting the logic across callback closures. The
// spawn/wait/finish goroutine triad (one goroutine runs the blocking
// cmd.Wait, the state machine goroutine only ever selects on its result
// channel) mirrors microbatch's run()/stop()/done lifecycle.
package unit

import (
	"context"
	"time"

	"github.com/nextest-rs/nextest-sub001/event"
	"github.com/nextest-rs/nextest-sub001/internal/logging"
	"github.com/nextest-rs/nextest-sub001/internal/mailbox"
	"github.com/nextest-rs/nextest-sub001/internal/pausetime"
	"github.com/nextest-rs/nextest-sub001/internal/platform"
	"github.com/nextest-rs/nextest-sub001/internal/unitmsg"
	"github.com/nextest-rs/nextest-sub001/testlist"
)

// Spec is everything a Runner needs to drive one unit (test instance or
// setup script) to completion, resolved ahead of time by the executor from
// testlist.SettingsModel / testlist.SetupScript plus profile defaults.
type Spec struct {
	ID          unitmsg.ID
	Ref         event.UnitRef
	Command     []string
	Env         []string
	Dir         string
	Capture     testlist.CapturePolicy
	Interceptor platform.InterceptorMode
	Slow        testlist.SlowTimeout
	Leak        testlist.LeakTimeout
	Retry       testlist.RetryPolicy
}

// Runner drives one Spec's full retry loop. It is not reused across units.
type Runner struct {
	spec      Spec
	responses *mailbox.Unbounded[unitmsg.ExecutorEvent]
	requests  <-chan unitmsg.RunUnitRequest
	logger    *logging.Logger
}

// New constructs a Runner. responses is the shared mailbox every unit
// multiplexes ExecutorEvents onto; requests is this unit's own receiver,
// whose sender half the executor has already registered with the
// dispatcher's live-unit map.
func New(spec Spec, responses *mailbox.Unbounded[unitmsg.ExecutorEvent], requests <-chan unitmsg.RunUnitRequest, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{spec: spec, responses: responses, requests: requests, logger: logger}
}

// Run drives the unit to completion: one or more attempts, retried
// according to spec.Retry, finishing with a single EventFinished carrying
// the complete event.ExecutionStatuses. Run blocks until the unit is
// finished or ctx is cancelled, and returns the same statuses it reported,
// so a caller that needs the outcome synchronously (the executor deciding
// whether a setup script failure should abort the run) doesn't have to
// shadow-consume the dispatcher's event stream to get it.
func (r *Runner) Run(ctx context.Context) event.ExecutionStatuses {
	var attempts []event.ExecutionResult
	var lastOutput event.CapturedOutput
	delay := newDelayIter(r.spec.Retry.Delay)

	for attemptNum := 1; ; attemptNum++ {
		result, output := r.runAttempt(ctx, attemptNum)
		attempts = append(attempts, result)
		lastOutput = output

		if ctx.Err() != nil || !r.shouldRetry(result, attemptNum) {
			break
		}

		d := delay.Next()
		r.responses.Send(unitmsg.ExecutorEvent{
			Kind:       unitmsg.EventAttemptFailedWillRetry,
			ID:         r.spec.ID,
			Ref:        r.spec.Ref,
			RetryDelay: d,
		})
		if !r.sleepRetryDelay(ctx, d, attemptNum) {
			break
		}
		r.responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventRetryStarted, ID: r.spec.ID, Ref: r.spec.Ref})
	}

	statuses := event.ExecutionStatuses{Attempts: attempts}
	r.responses.Send(unitmsg.ExecutorEvent{
		Kind:     unitmsg.EventFinished,
		ID:       r.spec.ID,
		Ref:      r.spec.Ref,
		Statuses: statuses,
		Output:   lastOutput,
	})
	return statuses
}

func (r *Runner) shouldRetry(result event.ExecutionResult, attemptNum int) bool {
	if attemptNum > r.spec.Retry.Count {
		return false
	}
	if !result.Retryable() {
		return false
	}
	if kinds := r.spec.Retry.RetryableKinds; len(kinds) > 0 {
		for _, k := range kinds {
			if k == result.Kind {
				return true
			}
		}
		return false
	}
	return true
}

// sleepRetryDelay waits out d between attempts while still answering
// GetInfo requests. Returns false if a shutdown request arrives during the
// wait, in which case the caller abandons further retries (a cancelled run
// never schedules a new attempt, per spec.md §4.5).
func (r *Runner) sleepRetryDelay(ctx context.Context, d time.Duration, attemptNum int) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case req := <-r.requests:
			switch req.Kind {
			case unitmsg.RequestShutdown:
				return false
			case unitmsg.RequestGetInfo:
				if req.InfoReply != nil {
					req.InfoReply <- event.UnitSnapshot{
						State:       "RetryWaiting",
						TimeInState: time.Since(start),
						AttemptNum:  attemptNum,
					}
				}
			}
		}
	}
}

// runAttempt drives a single Spawning->...->Finished traversal and reports
// its outcome; it does not itself emit EventFinished (that's Run's job,
// once all attempts are known).
func (r *Runner) runAttempt(ctx context.Context, attemptNum int) (event.ExecutionResult, event.CapturedOutput) {
	child, err := platform.SpawnUnit(ctx, r.spec.Command, r.spec.Env, r.spec.Dir, toPlatformCapture(r.spec.Capture), r.spec.Interceptor)
	if err != nil {
		return event.ExecutionResult{Kind: event.ExecutionResultExecFail, ExecFailError: err}, event.CapturedOutput{Errors: []error{err}}
	}

	ack := make(chan struct{})
	r.responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventStarted, ID: r.spec.ID, Ref: r.spec.Ref, StartAck: ack})
	<-ack // run clock starts only once the dispatcher has registered this unit

	phaseStart := time.Now()
	phase := "Running"
	r.logger.Debug().Str(`test`, r.spec.Ref.TestName).Int(`attempt`, attemptNum).Log(`unit running`)

	exited := make(chan struct{})
	var waitErr error
	go func() {
		waitErr = child.Cmd.Wait()
		close(exited)
	}()

	out := newOutputCollector(child.Stdout, child.Stderr)

	var slowTimer *pausetime.PausableSleep
	if r.spec.Slow.Period > 0 {
		slowTimer = pausetime.NewPausableSleep(r.spec.Slow.Period)
		defer slowTimer.Stop()
	}
	slowCount := 0
	terminating := false
	timedOut := false

	for {
		var slowC <-chan time.Time
		if slowTimer != nil && !terminating {
			slowC = slowTimer.C
		}

		select {
		case <-exited:
			return r.finishAfterExit(waitErr, terminating, timedOut, out)

		case <-slowC:
			slowCount++
			becomingTerminating := r.spec.Slow.TerminateAfter > 0 && slowCount >= r.spec.Slow.TerminateAfter
			r.responses.Send(unitmsg.ExecutorEvent{
				Kind:            unitmsg.EventSlow,
				ID:              r.spec.ID,
				Ref:             r.spec.Ref,
				SlowFirst:       slowCount == 1,
				SlowTerminating: becomingTerminating,
			})
			if becomingTerminating {
				terminating = true
				timedOut = true
				phase, phaseStart = "Terminating", time.Now()
				r.logger.Debug().Str(`test`, r.spec.Ref.TestName).Int(`attempt`, attemptNum).Log(`unit terminating: slow timeout`)
				go platform.Terminate(child, r.spec.Slow.GracePeriod, exited)
			} else {
				slowTimer.Reset(r.spec.Slow.Period)
			}

		case req := <-r.requests:
			switch req.Kind {
			case unitmsg.RequestShutdown:
				if !terminating {
					terminating = true
					phase, phaseStart = "Terminating", time.Now()
					grace := r.spec.Slow.GracePeriod
					if req.Escalated {
						grace = 0
					}
					r.logger.Debug().Str(`test`, r.spec.Ref.TestName).Int(`attempt`, attemptNum).Log(`unit terminating: shutdown requested`)
					go platform.Terminate(child, grace, exited)
				}

			case unitmsg.RequestGetInfo:
				if req.InfoReply != nil {
					req.InfoReply <- r.snapshot(child, attemptNum, phase, phaseStart, out)
				}

			case unitmsg.RequestJobControlStop:
				_ = platform.ForwardSignal(child, platform.SignalStop)
				if slowTimer != nil {
					slowTimer.Pause()
				}

			case unitmsg.RequestJobControlContinue:
				_ = platform.ForwardSignal(child, platform.SignalContinue)
				if slowTimer != nil {
					slowTimer.Resume()
				}
			}
		}
	}
}

// finishAfterExit implements the Exiting state: wait up to the leak
// timeout for every output pipe to report EOF before classifying the
// result, since a lingering grandchild holding a pipe open must not hang
// the unit forever (spec.md §4.5).
func (r *Runner) finishAfterExit(waitErr error, terminating, timedOut bool, out *outputCollector) (event.ExecutionResult, event.CapturedOutput) {
	done := out.Done()
	if r.spec.Leak.Period <= 0 {
		<-done
		return r.classifyExit(waitErr, terminating, timedOut), out.Output()
	}

	timer := time.NewTimer(r.spec.Leak.Period)
	defer timer.Stop()

	for {
		select {
		case <-done:
			return r.classifyExit(waitErr, terminating, timedOut), out.Output()
		case <-timer.C:
			if r.spec.Leak.ResultIsFail {
				return event.ExecutionResult{Kind: event.ExecutionResultFail, FailKind: event.FailKindChildReported}, out.Output()
			}
			return event.ExecutionResult{Kind: event.ExecutionResultLeak, LeakTimeToClose: r.spec.Leak.Period}, out.Output()
		case req := <-r.requests:
			if req.Kind == unitmsg.RequestGetInfo && req.InfoReply != nil {
				req.InfoReply <- event.UnitSnapshot{State: "Exiting"}
			}
		}
	}
}

// classifyExit distinguishes a slow-timeout kill (timedOut, always reported
// as Timeout regardless of how the process actually exited) from a
// shutdown/signal-driven kill (terminating but not timedOut, reported as
// Abort) and an ordinary exit.
func (r *Runner) classifyExit(waitErr error, terminating, timedOut bool) event.ExecutionResult {
	if timedOut {
		return event.ExecutionResult{Kind: event.ExecutionResultTimeout, TimeoutPassed: r.spec.Slow.OnTimeoutPass}
	}

	info := platform.InspectExit(waitErr)
	if info.Signaled {
		if terminating {
			return event.ExecutionResult{Kind: event.ExecutionResultAbort, AbortSignal: info.Signal}
		}
		return event.ExecutionResult{Kind: event.ExecutionResultFail, FailKind: event.FailKindSignal}
	}
	if info.ExitCode == 0 {
		return event.ExecutionResult{Kind: event.ExecutionResultPass}
	}
	if terminating {
		return event.ExecutionResult{Kind: event.ExecutionResultAbort, AbortSignal: info.ExitCode}
	}
	return event.ExecutionResult{Kind: event.ExecutionResultFail, FailKind: event.FailKindExit}
}

func (r *Runner) snapshot(child *platform.Child, attemptNum int, state string, phaseStart time.Time, out *outputCollector) event.UnitSnapshot {
	snap := event.UnitSnapshot{
		State:       state,
		TimeInState: time.Since(phaseStart),
		AttemptNum:  attemptNum,
		StdoutBytes: out.StdoutBytes(),
		StderrBytes: out.StderrBytes(),
	}
	if child != nil && child.Cmd.Process != nil {
		snap.PID = child.Cmd.Process.Pid
		snap.HasPID = true
	}
	return snap
}

func toPlatformCapture(c testlist.CapturePolicy) platform.CapturePolicy {
	switch c {
	case testlist.CaptureCombined:
		return platform.CaptureCombined
	case testlist.CaptureNone:
		return platform.CaptureNone
	default:
		return platform.CaptureSplit
	}
}
