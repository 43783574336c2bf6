package ransim

// evtq.go holds the discrete event queue that sequences all simulated
// activity.  Events are bucketed by event time; buckets are processed in
// ascending time order and events within a bucket in insertion order.

import (
	"fmt"
)

// EventTime is simulated time, a monotone nonnegative count of nanoseconds.
type EventTime int64

// EventHandlerFunction is the signature of every scheduled callback.
// The context argument identifies the object the event concerns, and
// data carries whatever payload the scheduler attached.
type EventHandlerFunction func(evtQ *EventQueue, context any, data any) any

// an event remembers a handler and the arguments to present to it
type event struct {
	hdlr    EventHandlerFunction
	context any
	data    any
}

// An EventList gathers all the events scheduled for one event time,
// in the order they were scheduled
type EventList struct {
	time   EventTime
	events []event
}

// EventQueue holds the time-ordered list of event lists and the
// simulation clock.  There is exactly one mutator, the driver loop.
type EventQueue struct {
	currentTime EventTime
	eventLists  []*EventList
}

// CreateEventQueue is a constructor.  The clock starts at zero.
func CreateEventQueue() *EventQueue {
	evtQ := new(EventQueue)
	evtQ.currentTime = 0
	evtQ.eventLists = make([]*EventList, 0)
	return evtQ
}

// CurrentTime reports the time the queue last advanced to
func (evtQ *EventQueue) CurrentTime() EventTime {
	return evtQ.currentTime
}

// Finished tells the caller whether any events remain to be processed
func (evtQ *EventQueue) Finished() bool {
	return len(evtQ.eventLists) == 0
}

// Schedule inserts an event at the given absolute event time.  Scheduling
// into the past is a programmer error.  Two events scheduled at the same
// time are invoked in the order they were scheduled.
func (evtQ *EventQueue) Schedule(context any, data any, hdlr EventHandlerFunction, at EventTime) {
	if hdlr == nil {
		panic("schedule called with nil event handler")
	}
	if at < evtQ.currentTime {
		panic(fmt.Errorf("schedule into the past: event time %d, current time %d", at, evtQ.currentTime))
	}

	evt := event{hdlr: hdlr, context: context, data: data}

	// walk forward to the event list for this time, or the position
	// where one should be created.  Event density is modest so a linear
	// scan serves.
	idx := 0
	for idx < len(evtQ.eventLists) && evtQ.eventLists[idx].time < at {
		idx++
	}

	if idx < len(evtQ.eventLists) && evtQ.eventLists[idx].time == at {
		evtQ.eventLists[idx].events = append(evtQ.eventLists[idx].events, evt)
		return
	}

	evtList := &EventList{time: at, events: []event{evt}}
	evtQ.eventLists = append(evtQ.eventLists, nil)
	copy(evtQ.eventLists[idx+1:], evtQ.eventLists[idx:])
	evtQ.eventLists[idx] = evtList
}

// Proceed pops the earliest event list, advances the clock to its time,
// and invokes its events in insertion order.  The popped list is a
// snapshot: a callback that schedules at the current time lands in a
// fresh list processed by a later Proceed.
func (evtQ *EventQueue) Proceed() {
	if evtQ.Finished() {
		panic("proceed called on an empty event queue")
	}

	evtList := evtQ.eventLists[0]
	evtQ.eventLists = evtQ.eventLists[1:]

	if evtList.time < evtQ.currentTime {
		panic(fmt.Errorf("event time %d behind current time %d", evtList.time, evtQ.currentTime))
	}
	evtQ.currentTime = evtList.time

	for _, evt := range evtList.events {
		evt.hdlr(evtQ, evt.context, evt.data)
	}
}

// RunToCompletion drives the queue until no events remain, and reports
// the time of the last one processed
func (evtQ *EventQueue) RunToCompletion() EventTime {
	for !evtQ.Finished() {
		evtQ.Proceed()
	}
	return evtQ.currentTime
}
