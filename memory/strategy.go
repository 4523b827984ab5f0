// Package memory models the main memory that processes must be admitted to
// before they can run.
package memory

import (
	"errors"
	"fmt"
)

// DefaultCapacity is the size of the simulated address space, in MB.
const DefaultCapacity = 2048

// ErrUnknownStrategy is returned when a memory strategy name is not
// recognized.
var ErrUnknownStrategy = errors.New("unknown memory strategy")

// The names of the memory strategies.
const (
	StrategyInfinite = "infinite"
	StrategyBestFit  = "best-fit"
)

// An Allocation is a non-owning reference to the region a process occupies.
type Allocation struct {
	handle   Handle
	start    int
	length   int
	released bool
}

// Start returns the first address of the allocated region.
func (a *Allocation) Start() int {
	return a.start
}

// Length returns the size of the allocated region.
func (a *Allocation) Length() int {
	return a.length
}

// A Strategy decides whether a process can be admitted to memory.
type Strategy interface {
	// Name returns the name the strategy is selected by.
	Name() string

	// Allocate reserves size units. It returns false when the request cannot
	// be served now; the caller is expected to retry later. A strategy that
	// does not track addresses returns a nil allocation with true.
	Allocate(size int) (*Allocation, bool)

	// Release returns an allocation. Releasing nil is a no-op.
	Release(a *Allocation)
}

// An AddressSpace is a Strategy that tracks where each allocation lives.
type AddressSpace interface {
	Strategy

	Capacity() int
	Regions() []Region
}

// NewStrategy creates the strategy with the given name.
func NewStrategy(name string, capacity int) (Strategy, error) {
	switch name {
	case StrategyInfinite:
		return NewInfinite(), nil
	case StrategyBestFit:
		return NewBestFit(capacity), nil
	default:
		return nil, fmt.Errorf("%w %q (want %q or %q)",
			ErrUnknownStrategy, name, StrategyInfinite, StrategyBestFit)
	}
}
