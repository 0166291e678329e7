package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"

	"github.com/nextest-rs/nextest-sub001/event"
)

// maxNameWidth bounds how much of a long test name a status line shows
// before truncating, so a pathologically long test/binary name can't wrap a
// terminal-width status line across lines mid-run.
const maxNameWidth = 64

// HumanSink renders a colored, one-line-per-event progress stream plus a
// final summary block, in the idiom of a terminal test runner.
//
// Grounded on mattn/go-colorable (ANSI passthrough on Windows-family
// consoles, a no-op elsewhere) wrapping whatever writer is given, combined
// with mattn/go-isatty to decide whether color/progress framing should be
// emitted at all (piped output gets plain, uncolored lines); long test
// names are truncated with mattn/go-runewidth (display-width aware, so
// wide/CJK runes don't blow the column budget) after first measuring with
// rivo/uniseg's grapheme-cluster counting, so a combining-mark-heavy name
// isn't double-truncated by two different notions of "character".
type HumanSink struct {
	w           io.Writer
	color       bool
	statusLevel event.StatusLevel
	finalLevel  event.FinalStatusLevel

	mu    sync.Mutex
	final []finalRecord
}

type finalRecord struct {
	ref    event.UnitRef
	label  string
	output event.CapturedOutput
}

// NewHumanSink wraps w (typically os.Stdout) with colorable passthrough and
// isatty-gated color decisions.
func NewHumanSink(w io.Writer, statusLevel event.StatusLevel, finalLevel event.FinalStatusLevel) *HumanSink {
	color := false
	if f, ok := w.(*os.File); ok {
		w = colorable.NewColorable(f)
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &HumanSink{w: w, color: color, statusLevel: statusLevel, finalLevel: finalLevel}
}

func (h *HumanSink) Emit(te event.TestEvent) {
	switch te.Kind {
	case event.KindRunStarted:
		fmt.Fprintf(h.w, "%s %d tests\n", h.tag("running", colorCyan), te.Stats.InitialCount)

	case event.KindRunBeginCancel:
		fmt.Fprintf(h.w, "%s reason=%s\n", h.tag("cancelling", colorYellow), te.Cancel.Reason)

	case event.KindRunBeginKill:
		fmt.Fprintf(h.w, "%s reason=%s\n", h.tag("killing", colorRed), te.Cancel.Reason)

	case event.KindRunPaused:
		fmt.Fprintln(h.w, h.tag("paused", colorYellow))

	case event.KindRunContinued:
		fmt.Fprintln(h.w, h.tag("continued", colorCyan))

	case event.KindSetupScriptStarted:
		fmt.Fprintf(h.w, "%s %s\n", h.tag("setup", colorCyan), te.Unit.SetupName)

	case event.KindSetupScriptSlow:
		fmt.Fprintf(h.w, "%s %s\n", h.tag("slow", colorYellow), te.Unit.SetupName)

	case event.KindSetupScriptFinished:
		h.emitFinished(te, te.Unit.SetupName, te.SetupScript.Result.IsSuccess())

	case event.KindTestStarted:
		if h.statusLevelShowsStart() {
			fmt.Fprintf(h.w, "%s %s\n", h.tag("start", colorCyan), h.name(te.Unit))
		}

	case event.KindTestSlow:
		label := "slow"
		if te.Test.Terminating {
			label = "terminating"
		}
		fmt.Fprintf(h.w, "%s %s\n", h.tag(label, colorYellow), h.name(te.Unit))

	case event.KindTestAttemptFailedWillRetry:
		fmt.Fprintf(h.w, "%s %s (retry in %s)\n", h.tag("retry", colorYellow), h.name(te.Unit), te.Test.Delay)

	case event.KindTestFinished:
		h.emitFinished(te, h.name(te.Unit), te.Test.Statuses.Label() != event.ExecutionStatusFailure)

	case event.KindInfoResponse:
		fmt.Fprintf(h.w, "%s %s state=%s pid=%d\n", h.tag("info", colorCyan), h.name(te.Info.Unit), te.Info.Snap.State, te.Info.Snap.PID)

	case event.KindInfoFinished:
		if te.Info.Missing > 0 {
			fmt.Fprintf(h.w, "%s %d units did not respond\n", h.tag("info", colorYellow), te.Info.Missing)
		}

	case event.KindRunFinished:
		h.emitSummary(te.Stats)
	}
}

func (h *HumanSink) statusLevelShowsStart() bool {
	return h.statusLevel >= event.StatusLevelAll
}

// emitFinished writes a test's status line only when statusLevel reports its
// outcome, and keeps its output for the final summary only when finalLevel
// does. Setup-script results are always written and kept.
func (h *HumanSink) emitFinished(te event.TestEvent, label string, passed bool) {
	showLine, keepForFinal := true, true
	if te.Test != nil && len(te.Test.Statuses.Attempts) > 0 {
		showLine = event.Decide(event.OutputDisclosureNever, event.CancelReasonNone, h.statusLevel, te.Test.Statuses, false).WriteStatusLine
		keepForFinal = event.DecideFinal(event.OutputDisclosureNever, h.finalLevel, te.Test.Statuses, false).WriteStatusLine
	}
	tagName, color := "PASS", colorGreen
	if !passed {
		tagName, color = "FAIL", colorRed
	}
	if showLine {
		fmt.Fprintf(h.w, "%s %s\n", h.tag(tagName, color), label)
	}

	var out event.CapturedOutput
	if te.Test != nil {
		out = te.Test.Output
	} else if te.SetupScript != nil {
		out = te.SetupScript.Output
	}
	if len(out.Stdout) > 0 || len(out.Stderr) > 0 {
		if keepForFinal {
			h.mu.Lock()
			h.final = append(h.final, finalRecord{ref: te.Unit, label: label, output: out})
			h.mu.Unlock()
		}
		if showLine {
			h.writeOutput(out)
		}
	}
}

func (h *HumanSink) writeOutput(out event.CapturedOutput) {
	if len(out.Stdout) > 0 {
		fmt.Fprintf(h.w, "--- stdout ---\n%s\n", out.Stdout)
	}
	if len(out.Stderr) > 0 {
		fmt.Fprintf(h.w, "--- stderr ---\n%s\n", out.Stderr)
	}
}

func (h *HumanSink) emitSummary(stats event.RunStats) {
	fmt.Fprintf(h.w, "%s %d passed, %d failed, %d flaky, %d leaky, %d skipped\n",
		h.tag("summary", colorCyan), stats.Passed, stats.Failed, stats.Flaky, stats.Leaky, stats.Skipped)
	if stats.CancelReason != nil {
		fmt.Fprintf(h.w, "%s %s\n", h.tag("cancelled", colorYellow), stats.CancelReason)
	}

	h.mu.Lock()
	final := h.final
	h.mu.Unlock()
	for _, r := range final {
		fmt.Fprintf(h.w, "\n%s %s\n", h.tag("final", colorRed), r.label)
		h.writeOutput(r.output)
	}
}

// name renders a unit's display label, truncated to maxNameWidth display
// columns. Grapheme-cluster counting via uniseg decides *whether* to
// truncate at all (a short but combining-mark-heavy string shouldn't be cut
// just because len() looks large); runewidth.Truncate does the actual,
// display-width-aware cut.
func (h *HumanSink) name(ref event.UnitRef) string {
	var b strings.Builder
	b.WriteString(ref.BinaryID)
	b.WriteString("::")
	b.WriteString(ref.TestName)
	if ref.HasStress {
		fmt.Fprintf(&b, "#%d", ref.StressIdx)
	}
	s := b.String()
	if uniseg.GraphemeClusterCount(s) <= maxNameWidth {
		return s
	}
	return runewidth.Truncate(s, maxNameWidth, "...")
}

type ansiColor string

const (
	colorReset  ansiColor = "\x1b[0m"
	colorCyan   ansiColor = "\x1b[36m"
	colorYellow ansiColor = "\x1b[33m"
	colorRed    ansiColor = "\x1b[31m"
	colorGreen  ansiColor = "\x1b[32m"
)

func (h *HumanSink) tag(label string, color ansiColor) string {
	if !h.color {
		return strings.ToUpper(label)
	}
	return string(color) + strings.ToUpper(label) + string(colorReset)
}
