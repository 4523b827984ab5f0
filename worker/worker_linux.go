//go:build linux

package worker

import (
	"io"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// pending returns the number of bytes that can be read from f without
// blocking.
func pending(f *os.File) (int, error) {
	return unix.IoctlGetInt(int(f.Fd()), unix.TIOCINQ)
}

// Serve runs a worker until it is terminated. Stop signals keep their
// default action, so the worker is stopped by the OS while suspended.
func Serve(name string, in *os.File, out io.Writer) error {
	conts := make(chan os.Signal, 1)
	terms := make(chan os.Signal, 1)

	signal.Notify(conts, unix.SIGCONT)
	signal.Notify(terms, unix.SIGTERM)

	defer signal.Stop(conts)
	defer signal.Stop(terms)

	s := NewSession(name, in, out)
	if err := s.Start(); err != nil {
		return err
	}

	for {
		select {
		case <-conts:
			if err := s.Continue(); err != nil {
				return err
			}
		case <-terms:
			return s.Terminate()
		}
	}
}
