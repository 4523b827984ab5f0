package manager

import (
	"github.com/sarchlab/procsim/hooking"
	"github.com/sarchlab/procsim/memory"
	"github.com/sarchlab/procsim/surrogate"
	"github.com/sarchlab/procsim/timing"
)

// HookPosProcessReady marks a process admitted to memory.
var HookPosProcessReady = &hooking.HookPos{Name: "ProcessReady"}

// HookPosProcessRunning marks a process switched onto the CPU.
var HookPosProcessRunning = &hooking.HookPos{Name: "ProcessRunning"}

// HookPosProcessFinished marks a process that has used up its service time.
var HookPosProcessFinished = &hooking.HookPos{Name: "ProcessFinished"}

// HookPosSurrogateFinished marks a surrogate that has been terminated and has
// reported its digest.
var HookPosSurrogateFinished = &hooking.HookPos{Name: "SurrogateFinished"}

// HookPosSimulationEnd marks the end of the simulation. The hook item is a
// Summary.
var HookPosSimulationEnd = &hooking.HookPos{Name: "SimulationEnd"}

// EventKind tells what happened to a process.
type EventKind int

// The kinds of events the manager reports.
const (
	EventReady EventKind = iota
	EventRunning
	EventFinished
	EventFinishedProcess
)

// Event is the item of the process hooks. Only the field that belongs to the
// kind is set.
type Event struct {
	Time    timing.VTimeInCycle
	Kind    EventKind
	Process string

	// AssignedAt is the start address of the memory of a ready process.
	AssignedAt int

	// RemainingTime is the time a running process still needs.
	RemainingTime timing.VTimeInCycle

	// Waiting is the number of processes waiting for memory or the CPU when
	// a process finishes.
	Waiting int

	// Digest and Usage are reported by a terminated surrogate.
	Digest string
	Usage  surrogate.Usage
}

// Summary holds the statistics of a finished simulation.
type Summary struct {
	NumProcesses int

	// AverageTurnaround is rounded up to a whole time unit.
	AverageTurnaround uint64

	// The overheads are rounded to two decimal places.
	MaxOverhead     float64
	AverageOverhead float64

	Makespan timing.VTimeInCycle
}

// Snapshot is a copy of the state of the manager, taken while it runs.
type Snapshot struct {
	Time        timing.VTimeInCycle `json:"time"`
	Scheduler   string              `json:"scheduler"`
	Memory      string              `json:"memory"`
	Quantum     timing.VTimeInCycle `json:"quantum"`
	Unsubmitted []string            `json:"unsubmitted"`
	Input       []string            `json:"input"`
	Ready       []string            `json:"ready"`
	Running     string              `json:"running"`
	Finished    int                 `json:"finished"`
	Regions     []memory.Region     `json:"regions,omitempty"`
}
