// Package tracing records what happens in a simulation into a DataRecorder.
package tracing

import (
	"strconv"
	"sync"

	"github.com/rs/xid"

	"github.com/sarchlab/procsim/datarecording"
	"github.com/sarchlab/procsim/hooking"
	"github.com/sarchlab/procsim/manager"
	"github.com/sarchlab/procsim/transcript"
)

// The tables a DBTracer writes.
const (
	TranscriptTable = "transcript"
	UsageTable      = "surrogate_usage"
	SummaryTable    = "summary"
)

type transcriptEntry struct {
	RunID   string
	Time    uint32
	Event   string
	Process string
	Field   string
	Value   string
}

type usageEntry struct {
	RunID      string
	Process    string
	Time       uint32
	CPUSeconds float64
	RSS        uint64
	Digest     string
}

type summaryEntry struct {
	RunID             string
	Processes         int
	AverageTurnaround uint64
	MaxOverhead       float64
	AverageOverhead   float64
	Makespan          uint32
}

// DBTracer is a hook that writes the events and the summary of a simulation
// into a DataRecorder.
type DBTracer struct {
	mu      sync.Mutex
	backend datarecording.DataRecorder
	runID   string
}

// NewDBTracer creates the tables of the tracer in backend.
func NewDBTracer(backend datarecording.DataRecorder) *DBTracer {
	t := &DBTracer{
		backend: backend,
		runID:   xid.New().String(),
	}

	backend.CreateTable(TranscriptTable, transcriptEntry{})
	backend.CreateTable(UsageTable, usageEntry{})
	backend.CreateTable(SummaryTable, summaryEntry{})

	return t
}

// RunID identifies the rows written by this tracer.
func (t *DBTracer) RunID() string {
	return t.runID
}

// Func records the event or summary carried by the hook.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch item := ctx.Item.(type) {
	case manager.Event:
		t.recordEvent(item)
	case manager.Summary:
		t.recordSummary(item)
	}
}

func (t *DBTracer) recordEvent(e manager.Event) {
	field, value := eventField(e)

	t.backend.InsertData(TranscriptTable, transcriptEntry{
		RunID:   t.runID,
		Time:    uint32(e.Time),
		Event:   transcript.EventName(e.Kind),
		Process: e.Process,
		Field:   field,
		Value:   value,
	})

	if e.Kind == manager.EventFinishedProcess {
		t.backend.InsertData(UsageTable, usageEntry{
			RunID:      t.runID,
			Process:    e.Process,
			Time:       uint32(e.Time),
			CPUSeconds: e.Usage.CPUTime.Seconds(),
			RSS:        e.Usage.RSS,
			Digest:     e.Digest,
		})
	}
}

func eventField(e manager.Event) (string, string) {
	switch e.Kind {
	case manager.EventReady:
		return "assigned_at", strconv.Itoa(e.AssignedAt)
	case manager.EventRunning:
		return "remaining_time", strconv.FormatUint(uint64(e.RemainingTime), 10)
	case manager.EventFinished:
		return "proc_remaining", strconv.Itoa(e.Waiting)
	default:
		return "sha", e.Digest
	}
}

func (t *DBTracer) recordSummary(s manager.Summary) {
	t.backend.InsertData(SummaryTable, summaryEntry{
		RunID:             t.runID,
		Processes:         s.NumProcesses,
		AverageTurnaround: s.AverageTurnaround,
		MaxOverhead:       s.MaxOverhead,
		AverageOverhead:   s.AverageOverhead,
		Makespan:          uint32(s.Makespan),
	})

	t.backend.Flush()
}
