package memory

import (
	"errors"
	"fmt"
)

// RegionKind tells if a region is free or in use.
type RegionKind int

// The kinds of regions.
const (
	Hole RegionKind = iota
	Occupied
)

func (k RegionKind) String() string {
	switch k {
	case Hole:
		return "hole"
	case Occupied:
		return "occupied"
	default:
		return fmt.Sprintf("RegionKind(%d)", int(k))
	}
}

// A Region is a contiguous segment of the simulated address space.
type Region struct {
	Kind   RegionKind
	Start  int
	Length int
}

// End returns the first address after the region.
func (r Region) End() int {
	return r.Start + r.Length
}

// Handle identifies a region slot in a FreeList.
type Handle int

const noSlot Handle = -1

type slot struct {
	region Region
	prev   Handle
	next   Handle
	active bool
}

// A FreeList partitions the address space [0, capacity) into regions kept in
// address order. Regions live in an arena of slots linked by index; slots of
// regions that are merged away are recycled.
type FreeList struct {
	capacity int
	slots    []slot
	head     Handle
	numLive  int
	recycled []Handle
}

// NewFreeList creates a free list holding one hole that covers the whole
// address space.
func NewFreeList(capacity int) *FreeList {
	if capacity <= 0 {
		panic("memory: capacity must be positive")
	}

	l := &FreeList{capacity: capacity, head: noSlot}
	l.head = l.newSlot(Region{Kind: Hole, Start: 0, Length: capacity})

	return l
}

// Capacity returns the size of the address space.
func (l *FreeList) Capacity() int {
	return l.capacity
}

// Len returns the number of regions.
func (l *FreeList) Len() int {
	return l.numLive
}

// Region returns the region held by the slot h.
func (l *FreeList) Region(h Handle) Region {
	return l.live(h).region
}

// Regions returns a copy of all the regions in address order.
func (l *FreeList) Regions() []Region {
	regions := make([]Region, 0, l.numLive)
	for h := l.head; h != noSlot; h = l.slots[h].next {
		regions = append(regions, l.slots[h].region)
	}

	return regions
}

// BestFit finds the smallest hole that can hold size units. Among equally
// small holes, the one with the lowest address wins.
func (l *FreeList) BestFit(size int) (Handle, bool) {
	best := noSlot
	bestLength := l.capacity + 1

	for h := l.head; h != noSlot; h = l.slots[h].next {
		r := l.slots[h].region
		if r.Kind == Hole && r.Length >= size && r.Length < bestLength {
			best = h
			bestLength = r.Length
		}
	}

	return best, best != noSlot
}

// Occupy turns the hole h into an occupied region of exactly size units. The
// unused tail becomes a new hole right after it.
func (l *FreeList) Occupy(h Handle, size int) {
	s := l.live(h)
	if s.region.Kind != Hole {
		panic("memory: occupying a region that is not a hole")
	}

	remainder := s.region.Length - size
	if remainder < 0 {
		panic("memory: region too small")
	}

	s.region.Kind = Occupied
	if remainder == 0 {
		return
	}

	s.region.Length = size
	l.insertAfter(h, Region{
		Kind:   Hole,
		Start:  s.region.Start + size,
		Length: remainder,
	})
}

// Free turns the occupied region h back into a hole and merges it with the
// neighbouring holes. The slot h survives and holds the merged hole.
func (l *FreeList) Free(h Handle) {
	s := l.live(h)
	if s.region.Kind != Occupied {
		panic("memory: freeing a region that is not occupied")
	}

	start := s.region.Start
	length := s.region.Length

	if prev := s.prev; prev != noSlot && l.slots[prev].region.Kind == Hole {
		start = l.slots[prev].region.Start
		length += l.slots[prev].region.Length
		l.remove(prev)
	}

	if next := s.next; next != noSlot && l.slots[next].region.Kind == Hole {
		length += l.slots[next].region.Length
		l.remove(next)
	}

	s.region = Region{Kind: Hole, Start: start, Length: length}
}

// Validate checks that the regions partition the address space without gaps
// or overlaps and that no two holes are adjacent.
func (l *FreeList) Validate() error {
	if l.head == noSlot {
		return errors.New("memory: free list is empty")
	}

	expectedStart := 0
	count := 0
	prev := noSlot
	prevKind := Occupied

	for h := l.head; h != noSlot; h = l.slots[h].next {
		s := l.slots[h]
		count++

		switch {
		case !s.active:
			return fmt.Errorf("memory: slot %d is linked but inactive", h)
		case s.prev != prev:
			return fmt.Errorf("memory: slot %d has a broken back link", h)
		case s.region.Start != expectedStart:
			return fmt.Errorf("memory: region at %d, expected %d",
				s.region.Start, expectedStart)
		case s.region.Length <= 0:
			return fmt.Errorf("memory: region at %d has length %d",
				s.region.Start, s.region.Length)
		case s.region.Kind == Hole && prevKind == Hole && prev != noSlot:
			return fmt.Errorf("memory: adjacent holes at %d", s.region.Start)
		}

		expectedStart = s.region.End()
		prevKind = s.region.Kind
		prev = h
	}

	if expectedStart != l.capacity {
		return fmt.Errorf("memory: regions end at %d, capacity is %d",
			expectedStart, l.capacity)
	}

	if count != l.numLive {
		return fmt.Errorf("memory: %d regions linked, %d live", count, l.numLive)
	}

	return nil
}

func (l *FreeList) live(h Handle) *slot {
	if h < 0 || int(h) >= len(l.slots) || !l.slots[h].active {
		panic(fmt.Sprintf("memory: invalid region handle %d", h))
	}

	return &l.slots[h]
}

func (l *FreeList) newSlot(r Region) Handle {
	s := slot{region: r, prev: noSlot, next: noSlot, active: true}
	l.numLive++

	if n := len(l.recycled); n > 0 {
		h := l.recycled[n-1]
		l.recycled = l.recycled[:n-1]
		l.slots[h] = s

		return h
	}

	l.slots = append(l.slots, s)

	return Handle(len(l.slots) - 1)
}

func (l *FreeList) insertAfter(h Handle, r Region) Handle {
	n := l.newSlot(r)

	next := l.slots[h].next
	l.slots[n].prev = h
	l.slots[n].next = next
	l.slots[h].next = n

	if next != noSlot {
		l.slots[next].prev = n
	}

	return n
}

func (l *FreeList) remove(h Handle) {
	s := l.slots[h]

	if s.prev == noSlot {
		l.head = s.next
	} else {
		l.slots[s.prev].next = s.next
	}

	if s.next != noSlot {
		l.slots[s.next].prev = s.prev
	}

	l.slots[h] = slot{prev: noSlot, next: noSlot}
	l.recycled = append(l.recycled, h)
	l.numLive--
}
