package memory

// Infinite admits every process without tracking addresses.
type Infinite struct{}

// NewInfinite creates an Infinite strategy.
func NewInfinite() *Infinite {
	return &Infinite{}
}

// Name returns "infinite".
func (Infinite) Name() string {
	return StrategyInfinite
}

// Allocate always succeeds with a nil allocation.
func (Infinite) Allocate(int) (*Allocation, bool) {
	return nil, true
}

// Release does nothing.
func (Infinite) Release(*Allocation) {}

var _ Strategy = (*Infinite)(nil)
