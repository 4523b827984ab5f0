// Package manager runs the simulated processes through memory admission,
// scheduling and execution, one quantum at a time.
package manager

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sarchlab/procsim/hooking"
	"github.com/sarchlab/procsim/memory"
	"github.com/sarchlab/procsim/process"
	"github.com/sarchlab/procsim/queueing"
	"github.com/sarchlab/procsim/scheduling"
	"github.com/sarchlab/procsim/surrogate"
	"github.com/sarchlab/procsim/timing"
)

// Manager is the process manager. Every tick it runs one cycle: it finishes
// the running process if it is done, submits the processes that have
// arrived, admits them to memory, picks the process to run, and lets it run
// for one quantum.
type Manager struct {
	*hooking.HookableBase

	lock sync.Mutex

	engine    timing.Engine
	ticker    *timing.TickScheduler
	quantum   timing.VTimeInCycle
	scheduler scheduling.Scheduler
	memory    memory.Strategy
	launcher  surrogate.Launcher
	logger    *zap.Logger

	unsubmitted *queueing.Queue[*process.Process]
	input       *queueing.Queue[*process.Process]
	ready       *queueing.Queue[*process.Process]
	running     *process.Process

	// live holds the surrogates spawned and not yet terminated.
	live map[string]surrogate.Surrogate

	stats   statistics
	summary *Summary
}

// Handle runs a cycle for each tick event.
func (m *Manager) Handle(e any) error {
	switch e := e.(type) {
	case *timing.TickEvent:
		return m.tick(e.Time)
	default:
		panic(fmt.Sprintf("manager: cannot handle event of type %T", e))
	}
}

// Run runs the simulation to its end. On failure, every surrogate still alive
// is killed and the error is returned. Simulated time stays at the cycle that
// failed.
func (m *Manager) Run() error {
	m.ticker.TickNow()

	err := m.engine.Run()
	if err != nil {
		if abortErr := m.abort(); abortErr != nil {
			m.logger.Warn("cannot abort surrogates", zap.Error(abortErr))
		}

		return err
	}

	return nil
}

// Summary returns the statistics of the simulation. It returns false if the
// simulation has not ended.
func (m *Manager) Summary() (Summary, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.summary == nil {
		return Summary{}, false
	}

	return *m.summary, true
}

// Engine returns the engine that drives the manager.
func (m *Manager) Engine() timing.Engine {
	return m.engine
}

func (m *Manager) tick(now timing.VTimeInCycle) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.finishRunning(now); err != nil {
		return err
	}

	m.submitArrived(now)
	m.admit(now)

	if err := m.schedule(now); err != nil {
		return err
	}

	if m.isIdle() {
		m.end(now)
		return nil
	}

	if m.running != nil {
		m.running.Run(m.quantum)
	}

	return m.ticker.TickLater()
}

func (m *Manager) finishRunning(now timing.VTimeInCycle) error {
	p := m.running
	if p == nil || p.RemainingTime > 0 {
		return nil
	}

	m.memory.Release(p.Allocation)
	p.MarkFinished(now)
	m.running = nil

	m.invoke(HookPosProcessFinished, Event{
		Time:    now,
		Kind:    EventFinished,
		Process: p.Name,
		Waiting: m.input.Size() + m.ready.Size(),
	})

	exit, err := p.Surrogate.Terminate(now)
	if err != nil {
		return fmt.Errorf("terminating %s: %w", p.Name, err)
	}

	delete(m.live, p.Name)
	p.Digest = exit.Digest

	m.invoke(HookPosSurrogateFinished, Event{
		Time:    now,
		Kind:    EventFinishedProcess,
		Process: p.Name,
		Digest:  exit.Digest,
		Usage:   exit.Usage,
	})

	m.stats.fold(p)
	m.logger.Debug("process finished",
		zap.String("process", p.Name),
		zap.Uint32("time", uint32(now)),
		zap.Uint32("turnaround", uint32(p.TurnaroundTime())))

	return nil
}

func (m *Manager) submitArrived(now timing.VTimeInCycle) {
	for {
		p, ok := m.unsubmitted.Peek()
		if !ok || !p.HasArrived(now) {
			return
		}

		m.unsubmitted.Pop()
		m.input.Push(p)

		m.logger.Debug("process submitted",
			zap.String("process", p.Name), zap.Uint32("time", uint32(now)))
	}
}

func (m *Manager) admit(now timing.VTimeInCycle) {
	var prev *queueing.Element[*process.Process]

	e := m.input.Front()
	for e != nil {
		p := e.Value
		next := e.Next()

		alloc, ok := m.memory.Allocate(p.MemoryRequirement)
		if !ok {
			prev, e = e, next
			continue
		}

		m.input.RemoveAfter(prev)
		p.Allocation = alloc
		p.MarkReady()
		m.ready.Push(p)

		if alloc != nil {
			m.invoke(HookPosProcessReady, Event{
				Time:       now,
				Kind:       EventReady,
				Process:    p.Name,
				AssignedAt: alloc.Start(),
			})
		}

		e = next
	}
}

func (m *Manager) schedule(now timing.VTimeInCycle) error {
	next, preempted := m.scheduler.Next(m.ready, m.running)

	if preempted != nil {
		if err := preempted.Surrogate.Suspend(now); err != nil {
			return fmt.Errorf("suspending %s: %w", preempted.Name, err)
		}
	}

	if next == nil {
		return nil
	}

	if next == m.running {
		if err := next.Surrogate.Resume(now); err != nil {
			return fmt.Errorf("resuming %s: %w", next.Name, err)
		}

		return nil
	}

	next.MarkRunning()
	m.running = next

	m.invoke(HookPosProcessRunning, Event{
		Time:          now,
		Kind:          EventRunning,
		Process:       next.Name,
		RemainingTime: next.RemainingTime,
	})

	if next.IsFirstRun() {
		return m.spawn(next, now)
	}

	if err := next.Surrogate.Resume(now); err != nil {
		return fmt.Errorf("resuming %s: %w", next.Name, err)
	}

	return nil
}

func (m *Manager) spawn(p *process.Process, now timing.VTimeInCycle) error {
	p.Surrogate = m.launcher.Launch(p.Name)
	m.live[p.Name] = p.Surrogate

	if err := p.Surrogate.Spawn(now); err != nil {
		return fmt.Errorf("spawning %s: %w", p.Name, err)
	}

	m.logger.Debug("surrogate spawned",
		zap.String("process", p.Name),
		zap.Int("pid", p.Surrogate.PID()),
		zap.Uint32("time", uint32(now)))

	return nil
}

func (m *Manager) isIdle() bool {
	return m.unsubmitted.IsEmpty() &&
		m.input.IsEmpty() &&
		m.ready.IsEmpty() &&
		m.running == nil
}

func (m *Manager) end(now timing.VTimeInCycle) {
	summary := m.stats.summarize(now)
	m.summary = &summary

	m.logger.Debug("simulation ended",
		zap.Uint32("makespan", uint32(now)),
		zap.Int("processes", summary.NumProcesses))

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    HookPosSimulationEnd,
		Item:   summary,
	})
}

func (m *Manager) invoke(pos *hooking.HookPos, evt Event) {
	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    pos,
		Item:   evt,
	})
}

func (m *Manager) abort() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	var errs []error
	for name, s := range m.live {
		m.logger.Debug("aborting surrogate", zap.String("process", name))

		if err := s.Abort(); err != nil {
			errs = append(errs, fmt.Errorf("aborting %s: %w", name, err))
		}

		delete(m.live, name)
	}

	return errors.Join(errs...)
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.lock.Lock()
	defer m.lock.Unlock()

	s := Snapshot{
		Time:        m.engine.CurrentTime(),
		Scheduler:   m.scheduler.Name(),
		Memory:      m.memory.Name(),
		Quantum:     m.quantum,
		Unsubmitted: namesOf(m.unsubmitted),
		Input:       namesOf(m.input),
		Ready:       namesOf(m.ready),
		Finished:    m.stats.numFinished,
	}

	if m.running != nil {
		s.Running = m.running.Name
	}

	if space, ok := m.memory.(memory.AddressSpace); ok {
		s.Regions = space.Regions()
	}

	return s
}

func namesOf(q *queueing.Queue[*process.Process]) []string {
	names := make([]string, 0, q.Size())
	for p := range q.All() {
		names = append(names, p.Name)
	}

	return names
}
