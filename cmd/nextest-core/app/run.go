package app

import (
	"context"
	"fmt"
	"os"

	"github.com/nextest-rs/nextest-sub001/event"
	"github.com/nextest-rs/nextest-sub001/internal/dispatcher"
	"github.com/nextest-rs/nextest-sub001/internal/executor"
	"github.com/nextest-rs/nextest-sub001/internal/inputhandler"
	"github.com/nextest-rs/nextest-sub001/internal/logging"
	"github.com/nextest-rs/nextest-sub001/internal/mailbox"
	"github.com/nextest-rs/nextest-sub001/internal/reporter"
	"github.com/nextest-rs/nextest-sub001/internal/sigmux"
	"github.com/nextest-rs/nextest-sub001/internal/unitmsg"
	"github.com/nextest-rs/nextest-sub001/testlist"
)

// Run wires up C6 (executor) and C7 (dispatcher) around a loaded test list
// and profile, and drives them to completion. It owns construction of every
// collaborator the dispatcher/executor need but don't construct themselves:
// the shared mailbox, the signal multiplexer, the interactive input
// handler, and the reporter sinks.
func Run(ctx context.Context, opts Options) error {
	logger := logging.New(os.Stderr, logging.LevelInfo)

	list, err := loadTestList(opts.TestsFile)
	if err != nil {
		return err
	}
	scripts, err := loadSetupScripts(opts.SetupFile)
	if err != nil {
		return err
	}

	sinks, flush, err := buildSinks(opts)
	if err != nil {
		return err
	}

	responses := mailbox.New[unitmsg.ExecutorEvent]()
	defer responses.Close()

	sigs := sigmux.New()
	defer sigs.Close()

	input := inputhandler.New()
	if err := input.Start(); err != nil {
		return fmt.Errorf("app: starting input handler: %w", err)
	}
	defer input.Stop()

	exec := executor.New(responses, logger)

	disp := dispatcher.New(responses, sigs, input, sinks, logger, dispatcher.Config{
		Profile:             opts.Profile,
		StatusLevel:         opts.StatusLevel,
		FinalStatusLevel:    opts.FinalStatusLevel,
		InitialCount:        len(list.Runnable()),
		SetupScriptsInitial: len(scripts),
		Disclosure:          disclosureForList(list),
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		runErr = exec.Run(runCtx, list, scripts, opts.Profile)
	}()

	stats := disp.Run(runCtx, done)

	if runErr != nil {
		return fmt.Errorf("app: executor: %w", runErr)
	}
	if flush != nil {
		if err := flush(); err != nil {
			return fmt.Errorf("app: flushing report: %w", err)
		}
	}
	if stats.Failed > 0 || stats.CancelReason != nil {
		return fmt.Errorf("app: run did not pass cleanly: %d failed", stats.Failed)
	}
	return nil
}

// disclosureForList builds the dispatcher's per-unit disclosure resolver
// from each test instance's own SuccessOutput/FailureOutput settings,
// falling back to ImmediateFinal for refs it has no record of (setup
// scripts, which carry no per-instance disclosure setting of their own).
func disclosureForList(list testlist.TestList) func(event.UnitRef) (success, failure event.OutputDisclosure) {
	type key struct {
		binary string
		name   string
	}
	settings := make(map[key]struct{ success, failure event.OutputDisclosure })
	for _, inst := range list.Instances {
		settings[key{inst.ID.BinaryID, inst.ID.TestName}] = struct {
			success, failure event.OutputDisclosure
		}{inst.Settings.SuccessOutput, inst.Settings.FailureOutput}
	}
	return func(ref event.UnitRef) (event.OutputDisclosure, event.OutputDisclosure) {
		if s, ok := settings[key{ref.BinaryID, ref.TestName}]; ok {
			return s.success, s.failure
		}
		return event.OutputDisclosureImmediateFinal, event.OutputDisclosureImmediateFinal
	}
}

func buildSinks(opts Options) (sinks []dispatcher.Sink, flush func() error, err error) {
	human := reporter.NewHumanSink(os.Stdout, opts.StatusLevel, opts.FinalStatusLevel)
	sinks = append(sinks, human)

	var flushers []func() error

	if opts.JSONOutput != "" {
		f, err := os.Create(opts.JSONOutput)
		if err != nil {
			return nil, nil, fmt.Errorf("app: creating json output %q: %w", opts.JSONOutput, err)
		}
		sinks = append(sinks, reporter.NewJSONSink(f))
		flushers = append(flushers, f.Close)
	}

	if opts.JUnitOutput != "" {
		j := reporter.NewJUnitSink(opts.JUnitOutput)
		sinks = append(sinks, j)
		flushers = append(flushers, j.Flush)
	}

	if len(flushers) == 0 {
		return sinks, nil, nil
	}
	return sinks, func() error {
		for _, f := range flushers {
			if err := f(); err != nil {
				return err
			}
		}
		return nil
	}, nil
}
