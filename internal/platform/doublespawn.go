//go:build unix

package platform

// DoubleSpawnSubcommand is the hidden sub-command name a binary built with
// this package should dispatch to from its main(), before any normal
// argument parsing, in order to implement the double-spawn helper (spec.md
// §4.2): the parent blocks SIGTSTP, execs a copy of itself with this
// sub-command plus the real command to run, and the helper clears the mask
// immediately after taking over, closing the spawn/stop race window.
const DoubleSpawnSubcommand = "__nextest_double_spawn_helper__"

// IsDoubleSpawnHelperInvocation reports whether args (as passed to main,
// excluding argv[0]) requests the double-spawn helper behavior, and if so
// returns the real command to exec.
func IsDoubleSpawnHelperInvocation(args []string) (cmd []string, ok bool) {
	if len(args) == 0 || args[0] != DoubleSpawnSubcommand {
		return nil, false
	}
	return args[1:], true
}
