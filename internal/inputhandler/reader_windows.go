//go:build windows

package inputhandler

import (
	"github.com/mattn/go-tty"
)

// ttyReader is the Windows-family fallback, backed by mattn/go-tty (the
// same dependency the teacher prompt package uses for its non-POSIX
// reader), since there is no termios/ioctl surface to hand-roll here.
type ttyReader struct {
	t *tty.TTY
}

func newPosixOrFallbackReader() reader {
	return &ttyReader{}
}

func (r *ttyReader) Open() error {
	t, err := tty.Open()
	if err != nil {
		return err
	}
	r.t = t
	return nil
}

func (r *ttyReader) Close() error {
	if r.t == nil {
		return nil
	}
	return r.t.Close()
}

func (r *ttyReader) Read(buf []byte) (int, error) {
	if r.t == nil {
		return 0, nil
	}
	n, err := r.t.Input().Read(buf)
	return n, err
}
