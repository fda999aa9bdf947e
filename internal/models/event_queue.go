package models

import (
	"container/heap"
	"context"
	"errors"
	"time"
)

const (
	EventCreate  = "create"
	EventLeave   = "leave"
	EventExpire  = "expire"
	EventArrive  = "arrive"
	EventDeliver = "deliver"
)

// ErrEmptyTimeline is returned when an event is requested from an empty queue.
var ErrEmptyTimeline = errors.New("timeline is empty")

// EventContext is threaded through the actions of one event. Each action
// receives the context returned by the previous one.
type EventContext struct {
	TrackingNo string
	Order      *Order
	LegIndex   int
	Leg        *Leg
	// Arrival is the actual arrival time once a delay has been applied.
	Arrival    time.Time
	Delay      time.Duration
	Conditions string
	// Halt stops the remaining actions of the pipeline.
	Halt bool
}

// Action is one step of an event's pipeline.
type Action interface {
	Name() string
	Run(ctx context.Context, ec EventContext) (EventContext, error)
}

// Event represents a simulation event
type Event struct {
	Time        time.Time
	Type        string
	Description string
	Actions     []Action
	Context     EventContext

	seq uint64
}

// EventQueue is a priority queue of events ordered by time. Events scheduled
// for the same instant are dequeued most recently enqueued first.
type EventQueue struct {
	events eventHeap
	next   uint64
}

// eventHeap implements heap.Interface and holds Events
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].Time.Equal(h[j].Time) {
		return h[i].seq > h[j].seq
	}
	return h[i].Time.Before(h[j].Time)
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(*Event))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// NewEventQueue creates a new EventQueue
func NewEventQueue() *EventQueue {
	return &EventQueue{events: make(eventHeap, 0)}
}

// Enqueue adds an event to the queue
func (eq *EventQueue) Enqueue(event *Event) {
	eq.next++
	event.seq = eq.next
	heap.Push(&eq.events, event)
}

// Dequeue removes and returns the earliest event from the queue
func (eq *EventQueue) Dequeue() (*Event, error) {
	if len(eq.events) == 0 {
		return nil, ErrEmptyTimeline
	}
	return heap.Pop(&eq.events).(*Event), nil
}

// Peek returns the earliest event without removing it
func (eq *EventQueue) Peek() *Event {
	if len(eq.events) == 0 {
		return nil
	}
	return eq.events[0]
}

// IsEmpty returns true if the queue is empty
func (eq *EventQueue) IsEmpty() bool {
	return len(eq.events) == 0
}

// Len returns the number of events in the queue
func (eq *EventQueue) Len() int {
	return len(eq.events)
}
