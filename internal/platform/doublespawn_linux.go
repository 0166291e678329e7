//go:build linux

package platform

import (
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// sigtstpSet builds a Sigset_t containing only SIGTSTP. Linux's Sigset_t is
// a fixed array of words; signal N sets bit (N-1) across the array, which is
// all this helper ever needs (a single-signal mask).
func sigtstpSet() unix.Sigset_t {
	var set unix.Sigset_t
	bit := uint(unix.SIGTSTP) - 1
	set.Val[bit/64] |= 1 << (bit % 64)
	return set
}

// RunDoubleSpawnHelper clears the SIGTSTP mask and execs into cmd,
// replacing the helper process image entirely. Only returns on error.
func RunDoubleSpawnHelper(cmd []string) error {
	set := sigtstpSet()
	if err := unix.PthreadSigmask(unix.SIG_UNBLOCK, &set, nil); err != nil {
		return err
	}
	if len(cmd) == 0 {
		return os.ErrInvalid
	}
	path, err := exec.LookPath(cmd[0])
	if err != nil {
		return err
	}
	return unix.Exec(path, cmd, os.Environ())
}

// SpawnViaDoubleSpawnHelper blocks SIGTSTP in the current process, then
// returns the argv the caller should spawn (selfExe + the double-spawn
// sub-command + command), so the helper — not this process — races the
// stop signal against exec.
//
// This closes the window where a stop signal arrives between fork and exec
// of the real test command: the mask is inherited across exec (unlike a
// signal.Ignore disposition, which resets on exec), so the helper, running
// the new image, is the one that lifts the block once it has taken over.
// Only implemented for Linux here, where PthreadSigmask is available
// through golang.org/x/sys/unix; other POSIX-like systems degrade to a
// direct spawn (the race window there is accepted as a known, low-
// probability gap rather than engineered around, since this package sticks
// to portable stdlib/golang.org/x/sys calls rather than per-BSD signal-mask
// cgo).
func SpawnViaDoubleSpawnHelper(selfExe string, command []string) (undo func(), spawnArgs []string) {
	set := sigtstpSet()
	_ = unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil)
	undo = func() {
		_ = unix.PthreadSigmask(unix.SIG_UNBLOCK, &set, nil)
	}
	spawnArgs = append([]string{selfExe, DoubleSpawnSubcommand}, command...)
	return undo, spawnArgs
}
