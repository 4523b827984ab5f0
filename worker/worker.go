// Package worker implements the surrogate side of the surrogate protocol.
//
// A worker reads the time values sent by the manager from its input. It
// acknowledges the first time value and every continue signal with the least
// significant byte of the last time value received. When asked to terminate
// it writes the hex SHA-256 digest of its name followed by every byte it
// received.
package worker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/sarchlab/procsim/surrogate"
	"github.com/sarchlab/procsim/timing"
)

// Digest returns the digest a worker called name answers with after
// receiving the given bytes.
func Digest(name string, received []byte) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write(received)

	return hex.EncodeToString(h.Sum(nil))
}

// A Session is the state of one worker.
type Session struct {
	in  *os.File
	out io.Writer

	hash hash.Hash
	last timing.VTimeInCycle
}

// NewSession creates a session for the worker called name, reading from in
// and answering on out.
func NewSession(name string, in *os.File, out io.Writer) *Session {
	s := &Session{
		in:   in,
		out:  out,
		hash: sha256.New(),
	}
	s.hash.Write([]byte(name))

	return s
}

// Start reads the first time value and acknowledges it.
func (s *Session) Start() error {
	if err := s.receive(surrogate.TimeLength); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	return s.ack()
}

// Continue reads every pending time value and acknowledges the last one.
func (s *Session) Continue() error {
	n, err := pending(s.in)
	if err != nil {
		return fmt.Errorf("continue: %w", err)
	}

	n -= n % surrogate.TimeLength
	if n < surrogate.TimeLength {
		n = surrogate.TimeLength
	}

	if err := s.receive(n); err != nil {
		return fmt.Errorf("continue: %w", err)
	}

	return s.ack()
}

// Terminate reads the input to its end and writes the digest.
func (s *Session) Terminate() error {
	rest, err := io.ReadAll(s.in)
	if err != nil {
		return fmt.Errorf("terminate: %w", err)
	}

	s.hash.Write(rest)

	digest := hex.EncodeToString(s.hash.Sum(nil))
	if _, err := io.WriteString(s.out, digest); err != nil {
		return fmt.Errorf("terminate: %w", err)
	}

	return nil
}

func (s *Session) receive(n int) error {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.in, buf); err != nil {
		return err
	}

	s.hash.Write(buf)

	// Only the most recent time value is acknowledged.
	latest := [surrogate.TimeLength]byte(buf[n-surrogate.TimeLength:])
	s.last = surrogate.DecodeTime(latest)

	return nil
}

func (s *Session) ack() error {
	_, err := s.out.Write([]byte{surrogate.AckByte(s.last)})
	return err
}
