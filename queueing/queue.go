// Package queueing provides the ordered containers the process manager keeps
// its processes in.
package queueing

import "iter"

// An Element is a node of a Queue.
type Element[T any] struct {
	Value T

	next *Element[T]
}

// Next returns the element after e, or nil if e is the foot.
func (e *Element[T]) Next() *Element[T] {
	return e.next
}

// A Queue is a singly linked FIFO sequence. Pushing at the foot, popping at
// the head, and removing the element that follows a known element are all
// O(1).
type Queue[T any] struct {
	head *Element[T]
	foot *Element[T]
	size int
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Size returns the number of elements in the queue.
func (q *Queue[T]) Size() int {
	return q.size
}

// IsEmpty tells if the queue holds no element.
func (q *Queue[T]) IsEmpty() bool {
	return q.size == 0
}

// Front returns the head element, or nil if the queue is empty.
func (q *Queue[T]) Front() *Element[T] {
	return q.head
}

// Push appends v at the foot of the queue.
func (q *Queue[T]) Push(v T) {
	e := &Element[T]{Value: v}

	if q.foot == nil {
		q.head = e
	} else {
		q.foot.next = e
	}

	q.foot = e
	q.size++
}

// Peek returns the head value without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	if q.head == nil {
		var zero T
		return zero, false
	}

	return q.head.Value, true
}

// Pop removes and returns the head value.
func (q *Queue[T]) Pop() (T, bool) {
	if q.head == nil {
		var zero T
		return zero, false
	}

	return q.RemoveAfter(nil), true
}

// RemoveAfter removes the element that follows prev and returns its value. A
// nil prev removes the head. It panics if there is nothing to remove.
func (q *Queue[T]) RemoveAfter(prev *Element[T]) T {
	var target *Element[T]
	if prev == nil {
		target = q.head
	} else {
		target = prev.next
	}

	if target == nil {
		panic("queueing: no element to remove")
	}

	if prev == nil {
		q.head = target.next
	} else {
		prev.next = target.next
	}

	if q.foot == target {
		q.foot = prev
	}

	target.next = nil
	q.size--

	return target.Value
}

// All iterates over the values from head to foot. The queue must not be
// modified during the iteration.
func (q *Queue[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for e := q.head; e != nil; e = e.next {
			if !yield(e.Value) {
				return
			}
		}
	}
}
