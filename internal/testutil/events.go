package testutil

import (
	"context"
	"sync"

	"github.com/vk/artiflow/internal/event"
)

// EventLog is a Recorder that keeps every event in memory.
type EventLog struct {
	mu     sync.Mutex
	events []event.Event
}

// Record implements event.Recorder.
func (l *EventLog) Record(_ context.Context, e event.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

// Events returns a copy of everything recorded so far.
func (l *EventLog) Events() []event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]event.Event(nil), l.events...)
}

// OfKind returns the recorded events of the given kind, in order.
func (l *EventLog) OfKind(kind event.Kind) []event.Event {
	var out []event.Event
	for _, e := range l.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Tasks returns the Task field of every event of the given kind.
func (l *EventLog) Tasks(kind event.Kind) []string {
	var out []string
	for _, e := range l.OfKind(kind) {
		out = append(out, e.Task)
	}
	return out
}

// Locations returns the Location field of every event of the given kind.
func (l *EventLog) Locations(kind event.Kind) []string {
	var out []string
	for _, e := range l.OfKind(kind) {
		out = append(out, e.Location)
	}
	return out
}
