// Package process defines the simulated process and its lifecycle.
package process

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/sarchlab/procsim/memory"
	"github.com/sarchlab/procsim/surrogate"
	"github.com/sarchlab/procsim/timing"
)

// MaxNameLen is the longest process name accepted.
const MaxNameLen = 8

// State is where a process is in its lifecycle.
type State int

// The states a process goes through.
const (
	NotSubmitted State = iota
	Ready
	Running
	Finished
)

func (s State) String() string {
	switch s {
	case NotSubmitted:
		return "NOT-SUBMITTED"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Finished:
		return "FINISHED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// A Process is a simulated process. Its execution is carried out by a
// surrogate OS process.
type Process struct {
	Name              string
	ArrivalTime       timing.VTimeInCycle
	ServiceTime       timing.VTimeInCycle
	RemainingTime     timing.VTimeInCycle
	MemoryRequirement int

	State      State
	Allocation *memory.Allocation
	FinishTime timing.VTimeInCycle

	Surrogate surrogate.Surrogate
	Digest    string
}

// New creates a process that has not been submitted yet.
func New(
	name string,
	arrival, service timing.VTimeInCycle,
	memoryRequirement int,
) *Process {
	return &Process{
		Name:              name,
		ArrivalTime:       arrival,
		ServiceTime:       service,
		RemainingTime:     service,
		MemoryRequirement: memoryRequirement,
		State:             NotSubmitted,
	}
}

func (p *Process) String() string {
	return fmt.Sprintf("%s(arrival=%d service=%d remaining=%d memory=%d %s)",
		p.Name, p.ArrivalTime, p.ServiceTime, p.RemainingTime,
		p.MemoryRequirement, p.State)
}

// HasArrived tells if the process has arrived by now.
func (p *Process) HasArrived(now timing.VTimeInCycle) bool {
	return p.ArrivalTime <= now
}

// IsFirstRun tells if the process has never run.
func (p *Process) IsFirstRun() bool {
	return p.RemainingTime == p.ServiceTime
}

// MarkReady moves a process that has been admitted to memory, or that has
// been preempted, to the ready state.
func (p *Process) MarkReady() {
	p.mustBeIn("mark ready", NotSubmitted, Running)
	p.State = Ready
}

// MarkRunning moves a ready process to the running state.
func (p *Process) MarkRunning() {
	p.mustBeIn("mark running", Ready)
	p.State = Running
}

// MarkFinished records that the process completed at now.
func (p *Process) MarkFinished(now timing.VTimeInCycle) {
	p.mustBeIn("mark finished", Running)
	p.State = Finished
	p.RemainingTime = 0
	p.FinishTime = now
	p.Allocation = nil
}

func (p *Process) mustBeIn(action string, allowed ...State) {
	for _, s := range allowed {
		if p.State == s {
			return
		}
	}

	panic(fmt.Sprintf("process %s: cannot %s in state %s",
		p.Name, action, p.State))
}

// Run accounts for the process running for one quantum. The remaining time
// never goes below zero.
func (p *Process) Run(quantum timing.VTimeInCycle) {
	if p.RemainingTime < quantum {
		p.RemainingTime = 0
		return
	}

	p.RemainingTime -= quantum
}

// TurnaroundTime returns the time from arrival to completion.
func (p *Process) TurnaroundTime() timing.VTimeInCycle {
	return p.FinishTime - p.ArrivalTime
}

// TimeOverhead returns the turnaround time relative to the service time.
func (p *Process) TimeOverhead() float64 {
	return float64(p.TurnaroundTime()) / float64(p.ServiceTime)
}

// CompareShortestJob orders processes by service time, then arrival time,
// then name.
func CompareShortestJob(a, b *Process) int {
	if c := cmp.Compare(a.ServiceTime, b.ServiceTime); c != 0 {
		return c
	}

	if c := cmp.Compare(a.ArrivalTime, b.ArrivalTime); c != 0 {
		return c
	}

	return strings.Compare(a.Name, b.Name)
}
