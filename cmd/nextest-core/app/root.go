package app

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the single cobra command this binary exposes. Flag
// wiring follows the teacher's own cobra usage: bind directly into a raw
// options struct, validate once in RunE, never reach back into package
// globals.
func NewRootCommand() *cobra.Command {
	raw := RawOptions{}

	cmd := &cobra.Command{
		Use:   "nextest-core",
		Short: "Run a discovered test list with process-per-test isolation",
		Long: "nextest-core schedules an already-discovered list of test binaries,\n" +
			"running each as its own process with retry, timeout, and\n" +
			"concurrency-limiting policies, and reports results as they complete.\n" +
			"It does not discover or build tests itself; point it at the JSON\n" +
			"files a build-integration layer produces.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := raw.Validate()
			if err != nil {
				return err
			}
			return Run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&raw.TestsFile, "tests", "", "path to a JSON file listing discovered test instances (required)")
	flags.StringVar(&raw.SetupFile, "setup-scripts", "", "path to a JSON file listing setup scripts to run before tests")

	flags.IntVar(&raw.TestThreads, "test-threads", 1, "maximum number of tests running concurrently")
	flags.DurationVar(&raw.GlobalTimeout, "global-timeout", 0, "cancel the run if it runs longer than this (0 disables)")
	flags.IntVar(&raw.FailFastMaxFail, "fail-fast-max-fail", 0, "cancel the run after this many test failures (0 means never)")
	flags.BoolVar(&raw.FailFastImmediate, "fail-fast-immediate", false, "kill running tests immediately on fail-fast, rather than waiting for them")
	flags.StringSliceVar(&raw.GroupLimits, "group-limit", nil, "per-group concurrency cap as group=limit, may be repeated")

	flags.IntVar(&raw.StressCount, "stress-count", 0, "repeat the test list this many times (mutually exclusive with --stress-duration)")
	flags.DurationVar(&raw.StressDuration, "stress-duration", 0, "repeat the test list for this long")

	flags.StringVar(&raw.StatusLevel, "status-level", "pass", "during-run status verbosity: none|fail|retry|slow|leak|pass|skip|all")
	flags.StringVar(&raw.FinalStatusLevel, "final-status-level", "fail", "end-of-run summary verbosity: none|fail|flaky|slow|skip|leak|pass|all")

	flags.StringVar(&raw.JSONOutput, "message-format-json", "", "also write newline-delimited JSON events to this path")
	flags.StringVar(&raw.JUnitOutput, "junit", "", "also write a JUnit XML report to this path")

	return cmd
}
