//go:build unix

package inputhandler

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// posixReader is the raw-mode terminal reader, grounded on
// prompt.PosixReader's dependency-injected syscall fields.
type posixReader struct {
	fd int

	open        func(string, int, uint32) (int, error)
	close       func(int) error
	read        func(int, []byte) (int, error)
	setNonblock func(int, bool) error

	orig *unix.Termios
}

func newPosixOrFallbackReader() reader {
	return &posixReader{
		open:        syscall.Open,
		close:       syscall.Close,
		read:        syscall.Read,
		setNonblock: syscall.SetNonblock,
	}
}

func (p *posixReader) Open() error {
	fd, err := p.open("/dev/tty", syscall.O_RDONLY, 0)
	if err != nil {
		fd = syscall.Stdin
	}
	p.fd = fd

	if err := p.setNonblock(p.fd, true); err != nil {
		return err
	}

	orig, err := unix.IoctlGetTermios(p.fd, ioctlGetTermios)
	if err != nil {
		return err
	}
	p.orig = orig

	raw := *orig
	// Disable canonical mode and echo; leave ISIG set so the terminal
	// driver still generates SIGINT/SIGTSTP on Ctrl-C/Ctrl-Z (spec.md §4.4:
	// "leaves signal generation by the terminal driver intact").
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	return unix.IoctlSetTermios(p.fd, ioctlSetTermios, &raw)
}

func (p *posixReader) Close() error {
	if p.orig != nil {
		_ = unix.IoctlSetTermios(p.fd, ioctlSetTermios, p.orig)
	}
	if p.fd != syscall.Stdin {
		return p.close(p.fd)
	}
	return nil
}

func (p *posixReader) Read(buf []byte) (int, error) {
	return p.read(p.fd, buf)
}
