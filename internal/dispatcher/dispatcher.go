// Package dispatcher implements the single-reactor event loop (C7): the
// only goroutine that mutates RunStats and the run's cancel reason. It
// selects over the executor's shared event mailbox, the signal multiplexer,
// the interactive input handler and the global-timeout deadline, and is the
// sole writer of every outbound TestEvent.
//
// The one-goroutine-owns-all-state shape, and the "select over several
// heterogeneous sources, react, repeat" structure, are grounded on the
// teacher eventloop package's own reactor (loop.go run()): a single
// goroutine selecting over task/timer/signal channels, never sharing
// mutable state with its callers except through that channel set.
package dispatcher

import (
	"context"
	"time"

	"github.com/nextest-rs/nextest-sub001/event"
	"github.com/nextest-rs/nextest-sub001/internal/inputhandler"
	"github.com/nextest-rs/nextest-sub001/internal/logging"
	"github.com/nextest-rs/nextest-sub001/internal/mailbox"
	"github.com/nextest-rs/nextest-sub001/internal/pausetime"
	"github.com/nextest-rs/nextest-sub001/internal/platform"
	"github.com/nextest-rs/nextest-sub001/internal/sigmux"
	"github.com/nextest-rs/nextest-sub001/internal/unitmsg"
	"github.com/nextest-rs/nextest-sub001/testlist"
)

// Sink is anything that consumes the canonical TestEvent stream; the
// reporter façade (C9) implements it, possibly fanning out to several
// concrete sinks of its own.
type Sink interface {
	Emit(event.TestEvent)
}

// infoReplyTimeout bounds how long the dispatcher waits for a live unit to
// answer a GetInfo broadcast before reporting it missing.
const infoReplyTimeout = 2 * time.Second

// Config carries everything the dispatcher needs beyond the live channels
// it selects over.
type Config struct {
	Profile          testlist.Profile
	StatusLevel      event.StatusLevel
	FinalStatusLevel event.FinalStatusLevel
	InitialCount     int
	SetupScriptsInitial int

	// Disclosure resolves a unit's configured success/failure output
	// disclosure settings; nil defaults every unit to
	// OutputDisclosureImmediateFinal.
	Disclosure func(ref event.UnitRef) (success, failure event.OutputDisclosure)
}

type liveUnit struct {
	ref      event.UnitRef
	send     unitmsg.RequestSender
	wentSlow bool
}

// Dispatcher is the C7 reactor. Construct with New and call Run once.
type Dispatcher struct {
	responses *mailbox.Unbounded[unitmsg.ExecutorEvent]
	sigs      *sigmux.Mux
	input     *inputhandler.Handler
	sinks     []Sink
	logger    *logging.Logger
	cfg       Config

	stats        event.RunStats
	cancelReason event.CancelReason
	cancelling   bool
	killing      bool
	failedCount  int

	pending map[unitmsg.ID]unitmsg.RequestSender
	live    map[unitmsg.ID]*liveUnit

	stopwatch *pausetime.Stopwatch
}

// New constructs a Dispatcher. sigs and input may be nil (no signal/input
// multiplexing, e.g. in tests), in which case those sources are simply
// never selected.
func New(responses *mailbox.Unbounded[unitmsg.ExecutorEvent], sigs *sigmux.Mux, input *inputhandler.Handler, sinks []Sink, logger *logging.Logger, cfg Config) *Dispatcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Dispatcher{
		responses: responses,
		sigs:      sigs,
		input:     input,
		sinks:     sinks,
		logger:    logger,
		cfg:       cfg,
		pending:   make(map[unitmsg.ID]unitmsg.RequestSender),
		live:      make(map[unitmsg.ID]*liveUnit),
	}
}

// Run drives the reactor loop until executorDone closes and every
// admitted-or-live unit has reported EventFinished, then emits RunFinished
// and returns the final stats. ctx cancellation is a cooperative signal
// only (SpawnUnit's exec.CommandContext already guarantees child processes
// die); Run itself keeps draining the mailbox until the executor side is
// fully quiescent, so a partially-drained event stream never desyncs
// RunStats.
func (d *Dispatcher) Run(ctx context.Context, executorDone <-chan struct{}) event.RunStats {
	d.stats.InitialCount = d.cfg.InitialCount
	d.stats.SetupScriptsInitial = d.cfg.SetupScriptsInitial
	d.stopwatch = pausetime.NewStopwatch()
	d.logger.Info().Int(`initial_count`, d.cfg.InitialCount).Log(`run started`)
	d.dispatch(d.baseEvent(event.KindRunStarted, event.UnitRef{}))

	var globalTimeoutC <-chan time.Time
	if d.cfg.Profile.GlobalTimeout > 0 {
		timer := time.NewTimer(d.cfg.Profile.GlobalTimeout)
		defer timer.Stop()
		globalTimeoutC = timer.C
	}

	done := executorDone
	for done != nil || len(d.live) > 0 || len(d.pending) > 0 {
		var respCh <-chan unitmsg.ExecutorEvent
		if d.responses != nil {
			respCh = d.responses.Out()
		}
		var sigCh <-chan sigmux.Event
		if d.sigs != nil {
			sigCh = d.sigs.Events()
		}
		var inCh <-chan inputhandler.Event
		if d.input != nil && d.input.Active() {
			inCh = d.input.Events()
		}

		select {
		case <-done:
			done = nil

		case ev, ok := <-respCh:
			if !ok {
				d.responses = nil
				continue
			}
			d.handleExecutorEvent(ev)

		case sev, ok := <-sigCh:
			if ok {
				d.handleSignal(sev)
			}

		case iev, ok := <-inCh:
			if ok {
				d.handleInput(iev)
			}

		case <-globalTimeoutC:
			globalTimeoutC = nil
			d.beginCancel(event.CancelReasonGlobalTimeout)

		case <-ctx.Done():
			d.beginCancel(event.CancelReasonSignal)
		}
	}

	final := d.stats.Clone()
	d.logger.Info().Int(`finished`, final.Finished).Int(`passed`, final.Passed).Int(`failed`, final.Failed).Log(`run finished`)
	te := d.baseEvent(event.KindRunFinished, event.UnitRef{})
	te.Stats = final
	d.dispatch(te)
	return final
}

func (d *Dispatcher) handleExecutorEvent(ev unitmsg.ExecutorEvent) {
	switch ev.Kind {
	case unitmsg.EventAdmitted:
		d.pending[ev.ID] = ev.Admit

	case unitmsg.EventStarted:
		// A retry's EventStarted reuses the entry registered by the first
		// attempt, keeping its request sender and wentSlow flag.
		u, ok := d.live[ev.ID]
		if !ok {
			u = &liveUnit{ref: ev.Ref, send: d.pending[ev.ID]}
			delete(d.pending, ev.ID)
			d.live[ev.ID] = u
		}
		if ev.StartAck != nil {
			close(ev.StartAck)
		}
		if d.cancelling {
			d.sendShutdown(u, d.killing)
		}
		d.dispatch(d.baseEvent(startedKind(ev.Ref), ev.Ref))

	case unitmsg.EventSlow:
		if u, ok := d.live[ev.ID]; ok {
			u.wentSlow = true
		}
		te := d.baseEvent(slowKind(ev.Ref), ev.Ref)
		te.Test = &event.TestPayload{First: ev.SlowFirst, Terminating: ev.SlowTerminating}
		d.dispatch(te)

	case unitmsg.EventAttemptFailedWillRetry:
		te := d.baseEvent(event.KindTestAttemptFailedWillRetry, ev.Ref)
		te.Test = &event.TestPayload{Delay: ev.RetryDelay}
		d.dispatch(te)

	case unitmsg.EventRetryStarted:
		d.dispatch(d.baseEvent(event.KindTestRetryStarted, ev.Ref))

	case unitmsg.EventFinished:
		wentSlow := false
		if u, ok := d.live[ev.ID]; ok {
			wentSlow = u.wentSlow
		}
		delete(d.live, ev.ID)
		d.recordFinished(ev, wentSlow)
		d.dispatch(d.finishedEvent(ev))
		d.checkFailFast(ev)

	case unitmsg.EventStressSubRunStarted:
		d.dispatch(d.stressEvent(event.KindStressSubRunStarted, ev.StressIndex))

	case unitmsg.EventStressSubRunFinished:
		d.dispatch(d.stressEvent(event.KindStressSubRunFinished, ev.StressIndex))
	}
}

func (d *Dispatcher) handleSignal(ev sigmux.Event) {
	switch ev.Kind {
	case sigmux.EventShutdown:
		reason := event.CancelReasonSignal
		if ev.Shutdown == sigmux.ShutdownInterrupt {
			reason = event.CancelReasonInterrupt
		}
		if d.cancelReason >= event.CancelReasonSignal {
			reason = event.CancelReasonSecondSignal
		}
		d.beginCancel(reason)

	case sigmux.EventJobControlStop:
		d.stopwatch.Pause()
		d.broadcastJobControl(unitmsg.RequestJobControlStop)
		d.dispatch(d.baseEvent(event.KindRunPaused, event.UnitRef{}))

	case sigmux.EventJobControlContinue:
		d.stopwatch.Resume()
		d.broadcastJobControl(unitmsg.RequestJobControlContinue)
		d.dispatch(d.baseEvent(event.KindRunContinued, event.UnitRef{}))

	case sigmux.EventInfo:
		d.handleInfoRequest()
	}
}

func (d *Dispatcher) handleInput(ev inputhandler.Event) {
	switch ev.Key {
	case inputhandler.KeyInfo:
		d.handleInfoRequest()
	case inputhandler.KeyEnter:
		d.dispatch(d.baseEvent(event.KindInputEnter, event.UnitRef{}))
	}
}

// handleInfoRequest implements the info-snapshot protocol (spec.md §4.5,
// §4.9): broadcast GetInfo to every live unit, collect replies (each on its
// own one-shot channel) up to infoReplyTimeout, and report whichever units
// never answered as missing.
func (d *Dispatcher) handleInfoRequest() {
	n := len(d.live)
	d.dispatch(d.infoEvent(event.KindInfoStarted, &event.InfoPayload{Count: n}))

	type reply struct {
		ref  event.UnitRef
		snap event.UnitSnapshot
	}
	replies := make(chan reply, n)
	for _, u := range d.live {
		u := u
		if u.send == nil {
			continue
		}
		respCh := make(chan event.UnitSnapshot, 1)
		u.send(unitmsg.RunUnitRequest{Kind: unitmsg.RequestGetInfo, InfoReply: respCh})
		go func() {
			select {
			case snap := <-respCh:
				replies <- reply{ref: u.ref, snap: snap}
			case <-time.After(infoReplyTimeout):
			}
		}()
	}

	received := 0
	deadline := time.After(infoReplyTimeout + 200*time.Millisecond)
collect:
	for received < n {
		select {
		case r := <-replies:
			received++
			snap := r.snap
			d.dispatch(d.infoEvent(event.KindInfoResponse, &event.InfoPayload{Unit: r.ref, Snap: &snap}))
		case <-deadline:
			break collect
		}
	}
	d.dispatch(d.infoEvent(event.KindInfoFinished, &event.InfoPayload{Missing: n - received}))
}

func (d *Dispatcher) recordFinished(ev unitmsg.ExecutorEvent, wentSlow bool) {
	if ev.Ref.IsSetup {
		d.stats.SetupScriptsFinished++
		if ev.Statuses.Label() == event.ExecutionStatusFailure {
			d.stats.SetupScriptsFailed++
		}
		return
	}
	d.stats.RecordFinished(ev.Statuses, wentSlow)
}

func (d *Dispatcher) checkFailFast(ev unitmsg.ExecutorEvent) {
	if ev.Statuses.Label() != event.ExecutionStatusFailure {
		return
	}
	if ev.Ref.IsSetup {
		d.beginCancel(event.CancelReasonSetupScriptFailure)
		return
	}
	d.failedCount++
	policy := d.cfg.Profile.FailFast
	if !policy.Triggered(d.failedCount) {
		return
	}
	if policy.Mode == testlist.FailFastImmediate {
		d.beginCancel(event.CancelReasonTestFailureImmediate)
	} else {
		d.beginCancel(event.CancelReasonTestFailure)
	}
}

// beginCancel folds reason into the run's cancel state and broadcasts a
// shutdown request to every live unit the first time it's reached, on
// escalation to CancelReasonSecondSignal, and whenever the folded reason
// rises (spec.md §4.7).
func (d *Dispatcher) beginCancel(reason event.CancelReason) {
	prior := d.cancelReason
	d.cancelReason = event.Max(d.cancelReason, reason)
	d.stats.RecordCancel(reason)

	firstCancel := !d.cancelling
	if firstCancel {
		d.cancelling = true
		d.logger.Warning().Int(`reason`, int(d.cancelReason)).Log(`run cancelling`)
		d.dispatch(d.cancelEvent(event.KindRunBeginCancel, d.cancelReason))
	}

	escalating := reason == event.CancelReasonSecondSignal && !d.killing
	if escalating {
		d.killing = true
		d.logger.Warning().Log(`run escalating to kill`)
		d.dispatch(d.cancelEvent(event.KindRunBeginKill, d.cancelReason))
	}

	if firstCancel || escalating || d.cancelReason != prior {
		for _, u := range d.live {
			d.sendShutdown(u, d.killing)
		}
	}
}

func (d *Dispatcher) broadcastJobControl(kind unitmsg.RequestKind) {
	for _, u := range d.live {
		if u.send != nil {
			u.send(unitmsg.RunUnitRequest{Kind: kind})
		}
	}
}

func (d *Dispatcher) sendShutdown(u *liveUnit, escalated bool) {
	if u.send == nil {
		return
	}
	u.send(unitmsg.RunUnitRequest{
		Kind:      unitmsg.RequestShutdown,
		Reason:    d.cancelReason,
		Signal:    platform.SignalInterrupt,
		Escalated: escalated,
	})
}

func (d *Dispatcher) outputDisclosure(ref event.UnitRef, statuses event.ExecutionStatuses) event.OutputDisclosure {
	success, failure := event.OutputDisclosureImmediateFinal, event.OutputDisclosureImmediateFinal
	if d.cfg.Disclosure != nil {
		success, failure = d.cfg.Disclosure(ref)
	}
	if statuses.Label() == event.ExecutionStatusFailure {
		return failure
	}
	return success
}

func (d *Dispatcher) finishedEvent(ev unitmsg.ExecutorEvent) event.TestEvent {
	kind := event.KindTestFinished
	if ev.Ref.IsSetup {
		kind = event.KindSetupScriptFinished
	}
	te := d.baseEvent(kind, ev.Ref)

	disclosure := d.outputDisclosure(ev.Ref, ev.Statuses)
	decision := event.Decide(disclosure, d.cancelReason, d.cfg.StatusLevel, ev.Statuses, false)
	output := event.CapturedOutput{}
	if decision.ShowOutputImmediate {
		output = ev.Output
	}

	if ev.Ref.IsSetup {
		last := ev.Statuses.Attempts[len(ev.Statuses.Attempts)-1]
		te.SetupScript = &event.SetupScriptPayload{Result: &last, Output: output}
	} else {
		te.Test = &event.TestPayload{Statuses: ev.Statuses, Output: output}
	}
	return te
}

func (d *Dispatcher) baseEvent(kind event.Kind, ref event.UnitRef) event.TestEvent {
	return event.TestEvent{
		Kind:      kind,
		Timestamp: time.Now(),
		Elapsed:   d.stopwatch.Elapsed(),
		Unit:      ref,
		Running:   len(d.live),
		Stats:     d.stats.Clone(),
	}
}

func (d *Dispatcher) cancelEvent(kind event.Kind, reason event.CancelReason) event.TestEvent {
	te := d.baseEvent(kind, event.UnitRef{})
	te.Cancel = &event.CancelPayload{Reason: reason}
	return te
}

func (d *Dispatcher) infoEvent(kind event.Kind, payload *event.InfoPayload) event.TestEvent {
	te := d.baseEvent(kind, event.UnitRef{})
	te.Info = payload
	return te
}

func (d *Dispatcher) stressEvent(kind event.Kind, idx int) event.TestEvent {
	stats := d.stats.Clone()
	te := d.baseEvent(kind, event.UnitRef{})
	te.Stress = &event.StressPayload{Index: idx, Stats: &stats}
	return te
}

func (d *Dispatcher) dispatch(te event.TestEvent) {
	for _, s := range d.sinks {
		s.Emit(te)
	}
}

func startedKind(ref event.UnitRef) event.Kind {
	if ref.IsSetup {
		return event.KindSetupScriptStarted
	}
	return event.KindTestStarted
}

func slowKind(ref event.UnitRef) event.Kind {
	if ref.IsSetup {
		return event.KindSetupScriptSlow
	}
	return event.KindTestSlow
}
