// Package scheduling decides which process runs next.
package scheduling

import (
	"errors"
	"fmt"

	"github.com/sarchlab/procsim/process"
	"github.com/sarchlab/procsim/queueing"
)

// ErrUnknownScheduler is returned when a scheduler name is not recognized.
var ErrUnknownScheduler = errors.New("unknown scheduler")

// Names of the schedulers.
const (
	NameSJF = "SJF"
	NameRR  = "RR"
)

// A Scheduler selects the process to run next.
type Scheduler interface {
	Name() string

	// Next returns the process to run during the coming quantum, or nil if
	// there is none. The returned process is no longer in ready. If the
	// running process is switched out before it finishes, it is returned as
	// preempted after being put back into ready.
	Next(
		ready *queueing.Queue[*process.Process],
		running *process.Process,
	) (next, preempted *process.Process)
}

// ByName returns the scheduler with the given name.
func ByName(name string) (Scheduler, error) {
	switch name {
	case NameSJF:
		return ShortestJobFirst{}, nil
	case NameRR:
		return RoundRobin{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheduler, name)
	}
}

func isUnfinished(p *process.Process) bool {
	return p != nil && p.RemainingTime > 0
}

// ShortestJobFirst runs the ready process with the least service time and
// never preempts it.
type ShortestJobFirst struct{}

// Name returns "SJF".
func (ShortestJobFirst) Name() string { return NameSJF }

// Next keeps an unfinished running process. Otherwise it removes the ready
// process that orders first by service time, arrival time and name.
func (ShortestJobFirst) Next(
	ready *queueing.Queue[*process.Process],
	running *process.Process,
) (next, preempted *process.Process) {
	if isUnfinished(running) {
		return running, nil
	}

	if ready.IsEmpty() {
		return nil, nil
	}

	var bestPrev, prev *queueing.Element[*process.Process]

	best := ready.Front()
	for e := ready.Front(); e != nil; prev, e = e, e.Next() {
		if process.CompareShortestJob(e.Value, best.Value) < 0 {
			best, bestPrev = e, prev
		}
	}

	return ready.RemoveAfter(bestPrev), nil
}

// RoundRobin gives every ready process one quantum in turn.
type RoundRobin struct{}

// Name returns "RR".
func (RoundRobin) Name() string { return NameRR }

// Next keeps the running process when no other process is ready. Otherwise
// it switches to the head of ready and puts an unfinished running process at
// the tail.
func (RoundRobin) Next(
	ready *queueing.Queue[*process.Process],
	running *process.Process,
) (next, preempted *process.Process) {
	if ready.IsEmpty() {
		return running, nil
	}

	next, _ = ready.Pop()

	if isUnfinished(running) {
		running.MarkReady()
		ready.Push(running)
		preempted = running
	}

	return next, preempted
}
