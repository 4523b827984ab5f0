package timing

import (
	"container/heap"
	"sync"
)

type eventQueue interface {
	Push(*ScheduledEvent)
	Pop() *ScheduledEvent
	Len() int
}

type scheduledEventQueue struct {
	sync.Mutex
	events scheduledEventHeap
	pushed uint64
}

func newScheduledEventQueue() *scheduledEventQueue {
	q := &scheduledEventQueue{}
	q.events = make([]queuedEvent, 0)
	heap.Init(&q.events)

	return q
}

func (q *scheduledEventQueue) Push(evt *ScheduledEvent) {
	q.Lock()
	heap.Push(&q.events, queuedEvent{evt: evt, seq: q.pushed})
	q.pushed++
	q.Unlock()
}

func (q *scheduledEventQueue) Pop() *ScheduledEvent {
	q.Lock()
	defer q.Unlock()

	if q.events.Len() == 0 {
		return nil
	}

	return heap.Pop(&q.events).(queuedEvent).evt
}

func (q *scheduledEventQueue) Len() int {
	q.Lock()
	defer q.Unlock()

	return q.events.Len()
}

// queuedEvent remembers the push order so that same-time events are handled
// first-in first-out.
type queuedEvent struct {
	evt *ScheduledEvent
	seq uint64
}

type scheduledEventHeap []queuedEvent

func (h scheduledEventHeap) Len() int { return len(h) }

func (h scheduledEventHeap) Less(i, j int) bool {
	if h[i].evt.Time != h[j].evt.Time {
		return h[i].evt.Time < h[j].evt.Time
	}

	return h[i].seq < h[j].seq
}

func (h scheduledEventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *scheduledEventHeap) Push(x any) {
	*h = append(*h, x.(queuedEvent))
}

func (h *scheduledEventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	*h = old[:n-1]

	return evt
}
