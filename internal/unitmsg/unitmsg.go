// Package unitmsg defines the wire types exchanged between a unit (C5) and
// the dispatcher (C7) it reports to: the per-unit request stream (owned by
// the dispatcher's live-unit map, consumed by the unit) and the shared
// executor-event stream every unit multiplexes onto (consumed by the
// dispatcher's reactor loop). It exists as its own package so internal/unit,
// internal/executor and internal/dispatcher can all depend on the message
// shapes without importing one another.
package unitmsg

import (
	"time"

	"github.com/nextest-rs/nextest-sub001/event"
	"github.com/nextest-rs/nextest-sub001/internal/platform"
)

// ID is a dense, monotonically assigned admission sequence number; the
// executor hands one out per scheduled unit, used as the live-unit map key
// instead of the richer, potentially-repeating event.UnitRef (a retried
// test instance reuses the same Ref across attempts but gets a fresh ID
// each admission).
type ID uint64

// RequestSender is how the dispatcher's live-unit map holds onto a unit's
// request mailbox without depending on the mailbox package's concrete type.
type RequestSender func(RunUnitRequest)

// RequestKind discriminates RunUnitRequest payloads.
type RequestKind int

const (
	RequestShutdown RequestKind = iota
	RequestGetInfo
	RequestJobControlStop
	RequestJobControlContinue
)

// RunUnitRequest is a message sent to a single running unit.
type RunUnitRequest struct {
	Kind RequestKind

	// Shutdown fields.
	Reason    event.CancelReason
	Signal    platform.SignalKind
	Escalated bool // true once the run has escalated to kill (CancelReasonSecondSignal)

	// GetInfo fields.
	InfoReply chan<- event.UnitSnapshot
}

// EventKind discriminates ExecutorEvent payloads a unit reports to the
// dispatcher.
type EventKind int

const (
	// EventAdmitted is sent by the executor the moment it hands a unit its
	// concurrency token, before the child is even spawned: it is how the
	// dispatcher learns a unit's RequestSender ahead of that unit's own
	// EventStarted, since the unit itself never holds the send side of its
	// own request mailbox.
	EventAdmitted EventKind = iota
	EventStarted
	EventSlow
	EventAttemptFailedWillRetry
	EventRetryStarted
	EventFinished

	// EventStressSubRunStarted/Finished bracket one repetition of the full
	// runnable set under a stress profile; sent directly by the executor,
	// not by any unit.
	EventStressSubRunStarted
	EventStressSubRunFinished
)

// ExecutorEvent is a message a unit sends the dispatcher over the shared
// response mailbox.
type ExecutorEvent struct {
	Kind EventKind
	ID   ID
	Ref  event.UnitRef

	// Admitted.
	Admit RequestSender

	// StressSubRunStarted/Finished.
	StressIndex int

	// Started: ack is a one-shot signal the dispatcher closes once the unit
	// is registered in its live-unit map, unblocking the unit's run clock.
	// This stands in for the literal request-receiver handoff spec prose
	// describes; functionally equivalent, since the property under test is
	// "a unit is not considered live until the dispatcher has acknowledged
	// it", not the particular Go value used to signal that.
	StartAck chan<- struct{}

	// Slow.
	SlowFirst       bool
	SlowTerminating bool

	// AttemptFailedWillRetry.
	RetryDelay time.Duration

	// Finished.
	Statuses event.ExecutionStatuses
	Output   event.CapturedOutput
}
