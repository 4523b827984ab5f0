// Package timing provides the virtual clock that drives a simulation.
package timing

import "github.com/sarchlab/procsim/hooking"

// VTimeInCycle is a point on the simulated timeline. The clock is 32 bits
// wide because surrogate processes receive it as four bytes.
type VTimeInCycle uint32

// MaxTime is the latest representable simulated time.
const MaxTime = VTimeInCycle(^uint32(0))

// Handler processes events of various types.
// Events are plain data structs (no interface required).
// Handlers use type switching to handle different event types:
//
//	func (h *MyHandler) Handle(event any) error {
//	    switch e := event.(type) {
//	    case *MyEvent:
//	        // handle MyEvent
//	    default:
//	        return fmt.Errorf("unknown event type: %T", event)
//	    }
//	    return nil
//	}
//
// A non-nil error stops the engine.
type Handler interface {
	Handle(event any) error
}

// TimeTeller exposes the current simulation time.
type TimeTeller interface {
	CurrentTime() VTimeInCycle
}

// EventScheduler schedules events in the simulation timeline.
type EventScheduler interface {
	TimeTeller
	Schedule(event ScheduledEvent)
}

// Engine keeps the discrete event simulation running.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Run processes events until none is left or a handler fails.
	Run() error

	// Pause blocks event dispatching until Continue is called.
	Pause()

	// Continue resumes event dispatching after a Pause.
	Continue()
}

// ScheduledEvent is the engine-facing wrapper for user-defined events.
type ScheduledEvent struct {
	// Event is the data payload to be delivered to the handler.
	Event any

	// Time is when the event should be processed.
	Time VTimeInCycle

	// Handler is the component that will process this event.
	Handler Handler
}

// HookPosBeforeEvent is a hook position that triggers before handling an
// event.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}
