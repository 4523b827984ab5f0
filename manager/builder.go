package manager

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sarchlab/procsim/hooking"
	"github.com/sarchlab/procsim/memory"
	"github.com/sarchlab/procsim/process"
	"github.com/sarchlab/procsim/queueing"
	"github.com/sarchlab/procsim/scheduling"
	"github.com/sarchlab/procsim/surrogate"
	"github.com/sarchlab/procsim/timing"
)

// ErrProcessTooLarge is returned when a process needs more memory than the
// address space has, so that it could never be admitted.
var ErrProcessTooLarge = errors.New("process larger than memory")

// Builder can build process managers.
type Builder struct {
	engine    timing.Engine
	quantum   timing.VTimeInCycle
	scheduler scheduling.Scheduler
	memory    memory.Strategy
	launcher  surrogate.Launcher
	logger    *zap.Logger
}

// MakeBuilder returns a Builder with a quantum of 1.
func MakeBuilder() Builder {
	return Builder{
		quantum: 1,
	}
}

// WithEngine sets the engine that drives the manager. A new serial engine is
// used if not set.
func (b Builder) WithEngine(engine timing.Engine) Builder {
	b.engine = engine
	return b
}

// WithQuantum sets the length of a scheduling cycle.
func (b Builder) WithQuantum(quantum timing.VTimeInCycle) Builder {
	b.quantum = quantum
	return b
}

// WithScheduler sets the scheduler.
func (b Builder) WithScheduler(s scheduling.Scheduler) Builder {
	b.scheduler = s
	return b
}

// WithMemoryStrategy sets how processes are admitted to memory.
func (b Builder) WithMemoryStrategy(s memory.Strategy) Builder {
	b.memory = s
	return b
}

// WithLauncher sets what creates the surrogates. Surrogates are launched as
// OS processes if not set.
func (b Builder) WithLauncher(l surrogate.Launcher) Builder {
	b.launcher = l
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger *zap.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates a manager that will run the given processes. The processes
// must be in arrival order and not submitted yet.
func (b Builder) Build(procs []*process.Process) (*Manager, error) {
	if err := b.validate(procs); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := b.engine
	if engine == nil {
		engine = timing.NewSerialEngine()
	}

	launcher := b.launcher
	if launcher == nil {
		launcher = &surrogate.OSLauncher{Logger: logger}
	}

	m := &Manager{
		HookableBase: hooking.NewHookableBase(),
		engine:       engine,
		quantum:      b.quantum,
		scheduler:    b.scheduler,
		memory:       b.memory,
		launcher:     launcher,
		logger:       logger,
		unsubmitted:  queueing.NewQueue[*process.Process](),
		input:        queueing.NewQueue[*process.Process](),
		ready:        queueing.NewQueue[*process.Process](),
		live:         make(map[string]surrogate.Surrogate),
	}
	m.ticker = timing.NewTickScheduler(m, engine, b.quantum)

	for _, p := range procs {
		m.unsubmitted.Push(p)
	}

	logger.Debug("manager built",
		zap.String("scheduler", b.scheduler.Name()),
		zap.String("memory", b.memory.Name()),
		zap.Uint32("quantum", uint32(b.quantum)),
		zap.Int("processes", len(procs)))

	return m, nil
}

func (b Builder) validate(procs []*process.Process) error {
	if b.quantum == 0 {
		return errors.New("quantum must be positive")
	}

	if b.scheduler == nil {
		return errors.New("scheduler is not set")
	}

	if b.memory == nil {
		return errors.New("memory strategy is not set")
	}

	space, tracksAddresses := b.memory.(memory.AddressSpace)

	for i, p := range procs {
		if p.State != process.NotSubmitted {
			return fmt.Errorf("process %s is already %s", p.Name, p.State)
		}

		if i > 0 && p.ArrivalTime < procs[i-1].ArrivalTime {
			return fmt.Errorf("process %s arrives before %s",
				p.Name, procs[i-1].Name)
		}

		if tracksAddresses && p.MemoryRequirement > space.Capacity() {
			return fmt.Errorf("%w: %s needs %d, capacity is %d",
				ErrProcessTooLarge, p.Name,
				p.MemoryRequirement, space.Capacity())
		}
	}

	return nil
}
