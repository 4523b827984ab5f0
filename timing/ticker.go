package timing

import (
	"errors"
	"sync"
)

// ErrTimeOverflow is returned when the next tick would not fit on the
// 32-bit timeline.
var ErrTimeOverflow = errors.New("timing: simulated time overflow")

// TickEvent is a generic event that a ticking handler uses to update its
// state once per period.
type TickEvent struct {
	Time VTimeInCycle
}

// TickScheduler helps a handler schedule its own tick events with a fixed
// period.
type TickScheduler struct {
	lock    sync.Mutex
	handler Handler
	Engine  EventScheduler
	Period  VTimeInCycle

	scheduled    bool
	nextTickTime VTimeInCycle
}

// NewTickScheduler creates a scheduler for tick events.
func NewTickScheduler(
	handler Handler,
	engine EventScheduler,
	period VTimeInCycle,
) *TickScheduler {
	if period == 0 {
		panic("timing: tick period cannot be 0")
	}

	return &TickScheduler{
		handler: handler,
		Engine:  engine,
		Period:  period,
	}
}

// TickNow schedules a tick at the current time.
func (t *TickScheduler) TickNow() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.schedule(t.Engine.CurrentTime())
}

// TickLater schedules a tick one period after the current time.
func (t *TickScheduler) TickLater() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	now := t.Engine.CurrentTime()
	if now > MaxTime-t.Period {
		return ErrTimeOverflow
	}

	t.schedule(now + t.Period)

	return nil
}

func (t *TickScheduler) schedule(time VTimeInCycle) {
	if t.scheduled && t.nextTickTime >= time {
		return
	}

	t.scheduled = true
	t.nextTickTime = time
	t.Engine.Schedule(ScheduledEvent{
		Event:   &TickEvent{Time: time},
		Time:    time,
		Handler: t.handler,
	})
}
