package memory

// BestFit admits a process into the smallest hole that can hold it.
type BestFit struct {
	list *FreeList
}

// NewBestFit creates a best-fit strategy over an empty address space.
func NewBestFit(capacity int) *BestFit {
	return &BestFit{list: NewFreeList(capacity)}
}

// Name returns "best-fit".
func (b *BestFit) Name() string {
	return StrategyBestFit
}

// Capacity returns the size of the address space.
func (b *BestFit) Capacity() int {
	return b.list.Capacity()
}

// Regions returns the regions in address order.
func (b *BestFit) Regions() []Region {
	return b.list.Regions()
}

// Allocate reserves size units in the best fitting hole.
func (b *BestFit) Allocate(size int) (*Allocation, bool) {
	if size <= 0 {
		panic("memory: allocation size must be positive")
	}

	h, found := b.list.BestFit(size)
	if !found {
		return nil, false
	}

	b.list.Occupy(h, size)
	r := b.list.Region(h)

	return &Allocation{handle: h, start: r.Start, length: r.Length}, true
}

// Release frees the region of a and merges it with neighbouring holes.
func (b *BestFit) Release(a *Allocation) {
	if a == nil {
		return
	}

	if a.released {
		panic("memory: allocation released twice")
	}

	b.list.Free(a.handle)
	a.released = true
}

var _ AddressSpace = (*BestFit)(nil)
