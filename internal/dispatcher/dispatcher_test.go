package dispatcher_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextest-rs/nextest-sub001/event"
	"github.com/nextest-rs/nextest-sub001/internal/dispatcher"
	"github.com/nextest-rs/nextest-sub001/internal/mailbox"
	"github.com/nextest-rs/nextest-sub001/internal/unitmsg"
	"github.com/nextest-rs/nextest-sub001/testlist"
)

type recordingSink struct {
	mu     sync.Mutex
	events []event.TestEvent
}

func (s *recordingSink) Emit(te event.TestEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, te)
}

func (s *recordingSink) kinds() []event.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Kind, len(s.events))
	for i, e := range s.events {
		out[i] = e.Kind
	}
	return out
}

func containsKind(kinds []event.Kind, k event.Kind) bool {
	for _, got := range kinds {
		if got == k {
			return true
		}
	}
	return false
}

func TestDispatcher_Run_SingleTestLifecycle(t *testing.T) {
	responses := mailbox.New[unitmsg.ExecutorEvent]()
	sink := &recordingSink{}
	d := dispatcher.New(responses, nil, nil, []dispatcher.Sink{sink}, nil, dispatcher.Config{
		InitialCount: 1,
	})

	executorDone := make(chan struct{})
	go func() {
		ref := event.UnitRef{BinaryID: "b", TestName: "t1"}
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventAdmitted, ID: 1, Ref: ref, Admit: func(unitmsg.RunUnitRequest) {}})
		ack := make(chan struct{})
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventStarted, ID: 1, Ref: ref, StartAck: ack})
		<-ack
		statuses := event.ExecutionStatuses{Attempts: []event.ExecutionResult{{Kind: event.ExecutionResultPass}}}
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventFinished, ID: 1, Ref: ref, Statuses: statuses})
		close(executorDone)
	}()

	stats := d.Run(context.Background(), executorDone)
	assert.Equal(t, 1, stats.Passed)

	kinds := sink.kinds()
	assert.Equal(t, event.KindRunStarted, kinds[0])
	assert.True(t, containsKind(kinds, event.KindTestStarted))
	assert.True(t, containsKind(kinds, event.KindTestFinished))
	assert.Equal(t, event.KindRunFinished, kinds[len(kinds)-1])
}

func TestDispatcher_Run_PassingUnitThatWentSlowCountsPassedSlow(t *testing.T) {
	responses := mailbox.New[unitmsg.ExecutorEvent]()
	sink := &recordingSink{}
	d := dispatcher.New(responses, nil, nil, []dispatcher.Sink{sink}, nil, dispatcher.Config{
		InitialCount: 2,
	})

	executorDone := make(chan struct{})
	go func() {
		slowRef := event.UnitRef{BinaryID: "b", TestName: "slow-but-passes"}
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventAdmitted, ID: 1, Ref: slowRef, Admit: func(unitmsg.RunUnitRequest) {}})
		ack := make(chan struct{})
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventStarted, ID: 1, Ref: slowRef, StartAck: ack})
		<-ack
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventSlow, ID: 1, Ref: slowRef, SlowFirst: true})
		slowStatuses := event.ExecutionStatuses{Attempts: []event.ExecutionResult{{Kind: event.ExecutionResultPass}}}
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventFinished, ID: 1, Ref: slowRef, Statuses: slowStatuses})

		fastRef := event.UnitRef{BinaryID: "b", TestName: "fast-passes"}
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventAdmitted, ID: 2, Ref: fastRef, Admit: func(unitmsg.RunUnitRequest) {}})
		ack2 := make(chan struct{})
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventStarted, ID: 2, Ref: fastRef, StartAck: ack2})
		<-ack2
		fastStatuses := event.ExecutionStatuses{Attempts: []event.ExecutionResult{{Kind: event.ExecutionResultPass}}}
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventFinished, ID: 2, Ref: fastRef, Statuses: fastStatuses})

		close(executorDone)
	}()

	stats := d.Run(context.Background(), executorDone)
	assert.Equal(t, 2, stats.Passed)
	assert.Equal(t, 1, stats.PassedSlow)
}

func TestDispatcher_Run_FailFastTriggersCancel(t *testing.T) {
	responses := mailbox.New[unitmsg.ExecutorEvent]()
	sink := &recordingSink{}
	d := dispatcher.New(responses, nil, nil, []dispatcher.Sink{sink}, nil, dispatcher.Config{
		InitialCount: 2,
		Profile:      testlist.Profile{FailFast: testlist.FailFastPolicy{Mode: testlist.FailFastWait, MaxFail: 1}},
	})

	executorDone := make(chan struct{})
	go func() {
		ref := event.UnitRef{BinaryID: "b", TestName: "fails"}
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventAdmitted, ID: 1, Ref: ref, Admit: func(unitmsg.RunUnitRequest) {}})
		ack := make(chan struct{})
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventStarted, ID: 1, Ref: ref, StartAck: ack})
		<-ack
		statuses := event.ExecutionStatuses{Attempts: []event.ExecutionResult{{Kind: event.ExecutionResultFail, FailKind: event.FailKindExit}}}
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventFinished, ID: 1, Ref: ref, Statuses: statuses})
		close(executorDone)
	}()

	stats := d.Run(context.Background(), executorDone)
	assert.Equal(t, 1, stats.Failed)
	require.NotNil(t, stats.CancelReason)
	assert.Equal(t, event.CancelReasonTestFailure, *stats.CancelReason)

	kinds := sink.kinds()
	assert.True(t, containsKind(kinds, event.KindRunBeginCancel))
}

func TestDispatcher_Run_SetupScriptFailureCancelsImmediately(t *testing.T) {
	responses := mailbox.New[unitmsg.ExecutorEvent]()
	sink := &recordingSink{}
	d := dispatcher.New(responses, nil, nil, []dispatcher.Sink{sink}, nil, dispatcher.Config{
		SetupScriptsInitial: 1,
	})

	executorDone := make(chan struct{})
	go func() {
		ref := event.UnitRef{SetupName: "setup", IsSetup: true}
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventAdmitted, ID: 1, Ref: ref, Admit: func(unitmsg.RunUnitRequest) {}})
		ack := make(chan struct{})
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventStarted, ID: 1, Ref: ref, StartAck: ack})
		<-ack
		statuses := event.ExecutionStatuses{Attempts: []event.ExecutionResult{{Kind: event.ExecutionResultFail, FailKind: event.FailKindExit}}}
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventFinished, ID: 1, Ref: ref, Statuses: statuses})
		close(executorDone)
	}()

	stats := d.Run(context.Background(), executorDone)
	assert.Equal(t, 1, stats.SetupScriptsFailed)
	require.NotNil(t, stats.CancelReason)
	assert.Equal(t, event.CancelReasonSetupScriptFailure, *stats.CancelReason)
}

func TestDispatcher_Run_LiveUnitWithRequestSenderFinishesCleanly(t *testing.T) {
	responses := mailbox.New[unitmsg.ExecutorEvent]()
	sink := &recordingSink{}
	d := dispatcher.New(responses, nil, nil, []dispatcher.Sink{sink}, nil, dispatcher.Config{InitialCount: 1})

	requests := make(chan unitmsg.RunUnitRequest, 4)
	executorDone := make(chan struct{})
	finish := make(chan struct{})
	go func() {
		ref := event.UnitRef{BinaryID: "b", TestName: "slow"}
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventAdmitted, ID: 1, Ref: ref, Admit: func(req unitmsg.RunUnitRequest) { requests <- req }})
		ack := make(chan struct{})
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventStarted, ID: 1, Ref: ref, StartAck: ack})
		<-ack

		go func() {
			for req := range requests {
				if req.Kind == unitmsg.RequestGetInfo && req.InfoReply != nil {
					req.InfoReply <- event.UnitSnapshot{State: "Running"}
				}
			}
		}()

		<-finish
		statuses := event.ExecutionStatuses{Attempts: []event.ExecutionResult{{Kind: event.ExecutionResultPass}}}
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventFinished, ID: 1, Ref: ref, Statuses: statuses})
		close(executorDone)
	}()

	go func() {
		time.Sleep(20 * time.Millisecond)
		// Drive an info request directly through the signal path isn't
		// exercised here (sigs is nil); instead confirm baseline lifecycle
		// completes cleanly, then let the run finish.
		close(finish)
	}()

	stats := d.Run(context.Background(), executorDone)
	assert.Equal(t, 1, stats.Passed)
	close(requests)
}

func TestDispatcher_Run_GlobalTimeoutCancelsRun(t *testing.T) {
	responses := mailbox.New[unitmsg.ExecutorEvent]()
	sink := &recordingSink{}
	requests := make(chan unitmsg.RunUnitRequest, 4)
	d := dispatcher.New(responses, nil, nil, []dispatcher.Sink{sink}, nil, dispatcher.Config{
		InitialCount: 1,
		Profile:      testlist.Profile{GlobalTimeout: 30 * time.Millisecond},
	})

	executorDone := make(chan struct{})
	go func() {
		ref := event.UnitRef{BinaryID: "b", TestName: "still-running"}
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventAdmitted, ID: 1, Ref: ref, Admit: func(req unitmsg.RunUnitRequest) { requests <- req }})
		ack := make(chan struct{})
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventStarted, ID: 1, Ref: ref, StartAck: ack})
		<-ack

		// Wait for the shutdown request the global timeout triggers, then
		// report an aborted attempt, mirroring what a real unit would do.
		req := <-requests
		require.Equal(t, unitmsg.RequestShutdown, req.Kind)
		statuses := event.ExecutionStatuses{Attempts: []event.ExecutionResult{{Kind: event.ExecutionResultAbort}}}
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventFinished, ID: 1, Ref: ref, Statuses: statuses})
		close(executorDone)
	}()

	stats := d.Run(context.Background(), executorDone)
	require.NotNil(t, stats.CancelReason)
	assert.Equal(t, event.CancelReasonGlobalTimeout, *stats.CancelReason)
}

func TestDispatcher_Run_StressEventsCarryIndex(t *testing.T) {
	responses := mailbox.New[unitmsg.ExecutorEvent]()
	sink := &recordingSink{}
	d := dispatcher.New(responses, nil, nil, []dispatcher.Sink{sink}, nil, dispatcher.Config{})

	executorDone := make(chan struct{})
	go func() {
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventStressSubRunStarted, StressIndex: 0})
		responses.Send(unitmsg.ExecutorEvent{Kind: unitmsg.EventStressSubRunFinished, StressIndex: 0})
		close(executorDone)
	}()

	d.Run(context.Background(), executorDone)

	var sawIndex bool
	sink.mu.Lock()
	for _, te := range sink.events {
		if te.Kind == event.KindStressSubRunStarted && te.Stress != nil && te.Stress.Index == 0 {
			sawIndex = true
		}
	}
	sink.mu.Unlock()
	assert.True(t, sawIndex)
}
