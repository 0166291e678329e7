// Command nextest-core is the thin CLI wiring shim around the runner core:
// it parses a discovered test list and profile, builds the executor and
// dispatcher, wires up signal/input handling and the reporter sinks, and
// runs them to completion. Test discovery and build integration are out of
// scope for this binary (spec.md's Non-goals) — tests and setup scripts are
// read from simple JSON files a build-integration layer would produce.
//
// Flag and command wiring follows the teacher's own cobra usage pattern
// (one root command, flags bound via a RawOptions struct that's validated
// before use, matching the Raw/Validate/Complete staging testlist.RawProfile
// itself uses), rather than inventing a new CLI shape.
package main

import (
	"fmt"
	"os"

	"github.com/nextest-rs/nextest-sub001/cmd/nextest-core/app"
	"github.com/nextest-rs/nextest-sub001/internal/inputhandler"
)

func main() {
	defer inputhandler.RecoverAndRestoreAll()
	if err := app.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
