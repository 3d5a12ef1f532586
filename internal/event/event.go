package event

import (
	"context"
	"time"
)

// Kind identifies what happened.
type Kind string

const (
	RunStarted      Kind = "run_started"
	Closure         Kind = "closure"
	State           Kind = "state"
	TaskStarted     Kind = "task_started"
	TaskFinished    Kind = "task_finished"
	TaskFailed      Kind = "task_failed"
	TaskSkipped     Kind = "task_skipped"
	ResourceLoaded  Kind = "resource_loaded"
	ResourceSaved   Kind = "resource_saved"
	ResourceDeleted Kind = "resource_deleted"
	RunFinished     Kind = "run_finished"
	UndoStarted     Kind = "undo_started"
	UndoFinished    Kind = "undo_finished"
)

// Event is a single record emitted by the engine.
type Event struct {
	Kind     Kind
	Time     time.Time
	RunID    string
	Task     string
	Resource string
	Location string
	Message  string
	Tasks    []string
	Fields   map[string]any
	Err      error
}

// Payload flattens the event into a map suitable for JSON-like transports.
func (e Event) Payload() map[string]any {
	p := map[string]any{
		"kind": string(e.Kind),
		"time": e.Time.UTC().Format(time.RFC3339Nano),
	}
	if e.RunID != "" {
		p["run_id"] = e.RunID
	}
	if e.Task != "" {
		p["task"] = e.Task
	}
	if e.Resource != "" {
		p["resource"] = e.Resource
	}
	if e.Location != "" {
		p["location"] = e.Location
	}
	if e.Message != "" {
		p["message"] = e.Message
	}
	if e.Tasks != nil {
		p["tasks"] = e.Tasks
	}
	for k, v := range e.Fields {
		p[k] = v
	}
	if e.Err != nil {
		p["error"] = e.Err.Error()
	}
	return p
}

// Recorder receives engine events. Implementations must be safe for
// concurrent use; parallel runs record from several goroutines.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, e Event)

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, e Event) { f(ctx, e) }

// Discard drops every event.
var Discard Recorder = RecorderFunc(func(context.Context, Event) {})

// Multi fans an event out to every non-nil recorder in order.
func Multi(recorders ...Recorder) Recorder {
	var rs []Recorder
	for _, r := range recorders {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return RecorderFunc(func(ctx context.Context, e Event) {
		for _, r := range rs {
			r.Record(ctx, e)
		}
	})
}

type runIDKey struct{}

// WithRunID attaches a run identifier that Emit stamps onto every event.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run identifier attached to ctx, if any.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Emit fills in Time and RunID and hands the event to r. A nil recorder is
// treated as Discard.
func Emit(ctx context.Context, r Recorder, e Event) {
	if r == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.RunID == "" {
		e.RunID = RunID(ctx)
	}
	r.Record(ctx, e)
}
