package surrogate

import (
	"time"

	"github.com/sarchlab/procsim/timing"
)

// A Surrogate is the handle of the OS process standing in for one simulated
// process. All the calls are synchronous. A call returns only after the
// acknowledgment of the surrogate has been observed.
type Surrogate interface {
	// Spawn starts the surrogate and sends it the current time.
	Spawn(now timing.VTimeInCycle) error

	// Suspend sends the current time and stops the surrogate.
	Suspend(now timing.VTimeInCycle) error

	// Resume sends the current time and continues the surrogate.
	Resume(now timing.VTimeInCycle) error

	// Terminate sends the current time, ends the surrogate, and collects
	// its digest.
	Terminate(now timing.VTimeInCycle) (Exit, error)

	// Abort kills the surrogate without any handshake. It is safe to call
	// in any state.
	Abort() error

	// PID returns the OS process ID, or 0 if not spawned.
	PID() int
}

// Usage is the resource usage of a surrogate sampled just before it is
// terminated.
type Usage struct {
	CPUTime time.Duration
	RSS     uint64
}

// Exit is what a terminated surrogate leaves behind.
type Exit struct {
	Digest string
	Usage  Usage
}

// A Launcher creates surrogates.
type Launcher interface {
	Launch(name string) Surrogate
}
