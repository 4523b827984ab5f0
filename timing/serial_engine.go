package timing

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/sarchlab/procsim/hooking"
)

// SerialEngine processes scheduled events sequentially in time order.
type SerialEngine struct {
	*hooking.HookableBase

	timeLock sync.RWMutex
	now      VTimeInCycle

	queue eventQueue

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

// NewSerialEngine creates a SerialEngine.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		HookableBase: hooking.NewHookableBase(),
		queue:        newScheduledEventQueue(),
	}
}

// Schedule registers an event to be handled in the future.
func (e *SerialEngine) Schedule(evt ScheduledEvent) {
	now := e.readNow()
	if evt.Time < now {
		panic(fmt.Sprintf(
			"timing: cannot schedule event in the past, evt %s @ %d, now %d",
			reflect.TypeOf(evt.Event), evt.Time, now,
		))
	}

	eventCopy := evt
	e.queue.Push(&eventCopy)
}

func (e *SerialEngine) readNow() VTimeInCycle {
	e.timeLock.RLock()
	t := e.now
	e.timeLock.RUnlock()

	return t
}

func (e *SerialEngine) writeNow(t VTimeInCycle) {
	e.timeLock.Lock()
	e.now = t
	e.timeLock.Unlock()
}

// Run processes all scheduled events until completion. If a handler returns
// an error, the remaining events are left in the queue and the error is
// returned. The current time stays at the failed event.
func (e *SerialEngine) Run() error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for {
		if e.noMoreEvent() {
			return nil
		}

		if err := e.runOne(); err != nil {
			return err
		}
	}
}

func (e *SerialEngine) runOne() error {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	evt := e.queue.Pop()
	now := e.readNow()
	if evt.Time < now {
		panic(fmt.Sprintf(
			"timing: cannot run event in the past, evt %s @ %d, now %d",
			reflect.TypeOf(evt.Event), evt.Time, now,
		))
	}

	e.writeNow(evt.Time)

	hookCtx := hooking.HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	if evt.Handler != nil {
		if err := evt.Handler.Handle(evt.Event); err != nil {
			return fmt.Errorf("timing: handling %s @ %d: %w",
				reflect.TypeOf(evt.Event), evt.Time, err)
		}
	}

	hookCtx.Pos = HookPosAfterEvent
	e.InvokeHook(hookCtx)

	return nil
}

func (e *SerialEngine) noMoreEvent() bool {
	return e.queue.Len() == 0
}

// Pending returns the number of events that have not been handled yet.
func (e *SerialEngine) Pending() int {
	return e.queue.Len()
}

// Pause prevents the engine from dispatching more events until Continue is
// called.
func (e *SerialEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue resumes event processing after a Pause.
func (e *SerialEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// CurrentTime returns the time of the most recently executed event.
func (e *SerialEngine) CurrentTime() VTimeInCycle {
	return e.readNow()
}

var _ Engine = (*SerialEngine)(nil)
