package agent

import (
	"sync"
	"time"
)

// EventKind identifies the type of controller event.
type EventKind string

const (
	EventInvokeStart      EventKind = "invoke_start"
	EventInvokeEnd        EventKind = "invoke_end"
	EventTurnStart        EventKind = "turn_start"
	EventTurnEnd          EventKind = "turn_end"
	EventAttemptFailed    EventKind = "attempt_failed"
	EventActivityAppended EventKind = "activity_appended"
	EventLoopDetected     EventKind = "loop_detected"
)

// Event is a typed event emitted by a Controller.
type Event struct {
	Kind         EventKind      `json:"kind"`
	Timestamp    time.Time      `json:"timestamp"`
	ControllerID string         `json:"controller_id"`
	Turn         int            `json:"turn"`
	Data         map[string]any `json:"data,omitempty"`
}

// EventEmitter delivers events to the host application via a channel.
type EventEmitter struct {
	controllerID string
	ch           chan Event
	closed       bool
	mu           sync.Mutex
}

// NewEventEmitter creates an EventEmitter with a buffered channel.
func NewEventEmitter(controllerID string, bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBuffer
	}
	return &EventEmitter{
		controllerID: controllerID,
		ch:           make(chan Event, bufferSize),
	}
}

// Emit sends an event without blocking. Events are dropped when the buffer
// is full or the emitter is closed.
func (e *EventEmitter) Emit(kind EventKind, turn int, data map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event := Event{
		Kind:         kind,
		Timestamp:    time.Now(),
		ControllerID: e.controllerID,
		Turn:         turn,
		Data:         data,
	}
	select {
	case e.ch <- event:
	default:
	}
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan Event {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
