// Package surrogate drives the real OS processes that stand in for simulated
// processes.
//
// Every lifecycle event sends the current simulated time to the surrogate as
// four bytes, most significant byte first. Spawning and resuming a surrogate
// is acknowledged with a single byte that must equal the least significant
// byte sent. Termination is answered with a fixed-length digest.
package surrogate

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sarchlab/procsim/timing"
)

// TimeLength is the number of bytes used to send a time value.
const TimeLength = 4

// DigestLength is the number of bytes in the digest a surrogate answers
// with when terminated.
const DigestLength = 64

// EncodeTime encodes a time value in its wire form.
func EncodeTime(t timing.VTimeInCycle) [TimeLength]byte {
	var b [TimeLength]byte
	binary.BigEndian.PutUint32(b[:], uint32(t))

	return b
}

// DecodeTime decodes a time value from its wire form.
func DecodeTime(b [TimeLength]byte) timing.VTimeInCycle {
	return timing.VTimeInCycle(binary.BigEndian.Uint32(b[:]))
}

// AckByte returns the acknowledgment expected after sending t.
func AckByte(t timing.VTimeInCycle) byte {
	return byte(t)
}

var (
	// ErrProtocol is returned when a surrogate answers out of protocol.
	ErrProtocol = errors.New("surrogate protocol violation")

	// ErrInvalidTransition is returned when an operation is issued to a
	// surrogate that is not in a state that allows it.
	ErrInvalidTransition = errors.New("invalid surrogate transition")

	// ErrSurrogateExited is returned when the surrogate exits while the
	// manager waits for it to stop.
	ErrSurrogateExited = errors.New("surrogate exited unexpectedly")
)

// A ProtocolError describes an acknowledgment that did not match what was
// sent.
type ProtocolError struct {
	Op       string
	Sent     []byte
	Received []byte
	Err      error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("surrogate %s: sent %x, received %x",
		e.Op, e.Sent, e.Received)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Is makes every ProtocolError match ErrProtocol.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
