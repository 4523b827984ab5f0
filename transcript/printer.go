// Package transcript prints what happens in a simulation as text.
//
// Each process event is printed on one line:
//
//	<time>,<EVENT>,process_name=<name>,<field>=<value>
//
// At the end of the simulation, the statistics are printed as:
//
//	Turnaround time <average, rounded up>
//	Time overhead <max> <average>
//	Makespan <time>
package transcript

import (
	"fmt"
	"io"

	"github.com/sarchlab/procsim/hooking"
	"github.com/sarchlab/procsim/manager"
)

// Printer is a hook that writes the transcript of a simulation.
type Printer struct {
	w   io.Writer
	err error
}

// NewPrinter creates a Printer that writes to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Err returns the first error met while writing.
func (p *Printer) Err() error {
	return p.err
}

// Func prints the event or summary carried by the hook.
func (p *Printer) Func(ctx hooking.HookCtx) {
	if p.err != nil {
		return
	}

	switch item := ctx.Item.(type) {
	case manager.Event:
		_, p.err = io.WriteString(p.w, FormatEvent(item))
	case manager.Summary:
		_, p.err = io.WriteString(p.w, FormatSummary(item))
	}
}

// EventName returns the tag of an event kind.
func EventName(k manager.EventKind) string {
	switch k {
	case manager.EventReady:
		return "READY"
	case manager.EventRunning:
		return "RUNNING"
	case manager.EventFinished:
		return "FINISHED"
	case manager.EventFinishedProcess:
		return "FINISHED-PROCESS"
	default:
		panic(fmt.Sprintf("transcript: unknown event kind %d", int(k)))
	}
}

// FormatEvent returns the transcript line of an event.
func FormatEvent(e manager.Event) string {
	line := fmt.Sprintf("%d,%s,process_name=%s,",
		e.Time, EventName(e.Kind), e.Process)

	switch e.Kind {
	case manager.EventReady:
		line += fmt.Sprintf("assigned_at=%d", e.AssignedAt)
	case manager.EventRunning:
		line += fmt.Sprintf("remaining_time=%d", e.RemainingTime)
	case manager.EventFinished:
		line += fmt.Sprintf("proc_remaining=%d", e.Waiting)
	case manager.EventFinishedProcess:
		line += fmt.Sprintf("sha=%s", e.Digest)
	}

	return line + "\n"
}

// FormatSummary returns the statistics lines.
func FormatSummary(s manager.Summary) string {
	return fmt.Sprintf("Turnaround time %d\nTime overhead %.2f %.2f\nMakespan %d\n",
		s.AverageTurnaround, s.MaxOverhead, s.AverageOverhead, s.Makespan)
}
