package unit

import (
	"bytes"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/nextest-rs/nextest-sub001/event"
)

// countingBuffer is a bytes.Buffer with a live, concurrently-readable byte
// count, so a GetInfo snapshot can report StdoutBytes/StderrBytes while the
// drain goroutine is still appending.
type countingBuffer struct {
	buf bytes.Buffer
	n   atomic.Int64
}

func (c *countingBuffer) Write(p []byte) (int, error) {
	n, err := c.buf.Write(p)
	c.n.Add(int64(n))
	return n, err
}

// outputCollector drains a unit's stdout/stderr pipes concurrently with the
// state machine's own select loop. Its done channel is the "has every pipe
// seen EOF" signal the Exiting state waits on for leak detection (spec.md
// §4.5's leak timeout exists precisely because a child can exit while a
// grandchild still holds the write end of a pipe open).
type outputCollector struct {
	stdout, stderr *countingBuffer
	combined       bool
	done           chan struct{}

	mu   sync.Mutex
	errs []error
}

func newOutputCollector(stdoutR, stderrR *os.File) *outputCollector {
	oc := &outputCollector{done: make(chan struct{})}
	var wg sync.WaitGroup

	switch {
	case stdoutR == nil && stderrR == nil:
		close(oc.done)
		return oc
	case stdoutR != nil && stdoutR == stderrR:
		oc.combined = true
		oc.stdout = &countingBuffer{}
		wg.Add(1)
		go oc.drain(&wg, stdoutR, oc.stdout)
	default:
		if stdoutR != nil {
			oc.stdout = &countingBuffer{}
			wg.Add(1)
			go oc.drain(&wg, stdoutR, oc.stdout)
		}
		if stderrR != nil {
			oc.stderr = &countingBuffer{}
			wg.Add(1)
			go oc.drain(&wg, stderrR, oc.stderr)
		}
	}

	go func() {
		wg.Wait()
		close(oc.done)
	}()
	return oc
}

func (oc *outputCollector) drain(wg *sync.WaitGroup, f *os.File, buf *countingBuffer) {
	defer wg.Done()
	defer f.Close()
	if _, err := io.Copy(buf, f); err != nil {
		oc.mu.Lock()
		oc.errs = append(oc.errs, err)
		oc.mu.Unlock()
	}
}

// Done closes once every pipe this collector owns has hit EOF.
func (oc *outputCollector) Done() <-chan struct{} { return oc.done }

func (oc *outputCollector) StdoutBytes() int64 {
	if oc.stdout == nil {
		return 0
	}
	return oc.stdout.n.Load()
}

func (oc *outputCollector) StderrBytes() int64 {
	if oc.combined || oc.stderr == nil {
		return 0
	}
	return oc.stderr.n.Load()
}

// Output snapshots the final captured bytes. Only safe to call once Done
// has fired, since the underlying buffers are written by the drain
// goroutines up until that point.
func (oc *outputCollector) Output() event.CapturedOutput {
	out := event.CapturedOutput{}
	if oc.stdout != nil {
		out.Stdout = oc.stdout.buf.Bytes()
	}
	if oc.stderr != nil && !oc.combined {
		out.Stderr = oc.stderr.buf.Bytes()
	}
	oc.mu.Lock()
	out.Errors = oc.errs
	oc.mu.Unlock()
	return out
}
