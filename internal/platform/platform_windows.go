//go:build windows

package platform

import (
	"os/exec"
	"syscall"
)

// inspectExitError has no signal concept on Windows-family systems; the
// exit code alone discriminates Fail from Abort at a higher layer.
func inspectExitError(ee *exec.ExitError) ExitInfo {
	return ExitInfo{ExitCode: ee.ExitCode()}
}

// configureProcessGroup associates the child with a new process group (job
// objects proper require windows-specific job-object syscalls beyond the
// scope of what the standard library exposes directly; CREATE_NEW_PROCESS_GROUP
// is the portable approximation used here, matching the "job object rooted
// at the unit" semantics of spec.md §4.2 closely enough to deliver
// Ctrl-Break-based group signaling).
func configureProcessGroup(cmd *exec.Cmd, interceptor InterceptorMode) {
	if interceptor == InterceptorDebugger {
		return
	}
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}

func processGroupID(cmd *exec.Cmd) int {
	if cmd.Process == nil {
		return 0
	}
	return cmd.Process.Pid
}

// requestGraceful attempts a best-effort console-close by killing the
// process; Windows-family systems have no SIGTERM equivalent the stdlib
// exposes, so graceful termination degrades to immediate termination here
// (spec.md §4.2 describes this as an accepted platform difference).
func requestGraceful(c *Child) {
	killUnconditional(c)
}

func killUnconditional(c *Child) {
	if c.Cmd.Process == nil {
		return
	}
	_ = c.Cmd.Process.Kill()
}

func forwardSignal(c *Child, kind SignalKind) error {
	if c.Cmd.Process == nil {
		return nil
	}
	switch kind {
	case SignalStop, SignalContinue:
		// No job-control equivalent on Windows-family systems; never appears
		// in the sigmux stream there (spec.md §4.3), so this is unreachable
		// in practice.
		return nil
	default:
		return c.Cmd.Process.Kill()
	}
}
