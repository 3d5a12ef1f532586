package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/artiflow/internal/event"
	"github.com/vk/artiflow/internal/resource"
	"github.com/vk/artiflow/internal/runctx"
	"github.com/vk/artiflow/internal/table"
)

var (
	// ErrAlreadyDeclared is returned when inputs or outputs are declared twice.
	ErrAlreadyDeclared = errors.New("already declared")
	// ErrOutputArity is returned when a function's result does not match the
	// number of declared outputs.
	ErrOutputArity = errors.New("output arity mismatch")
)

// Inputs maps input resource names to their loaded data.
type Inputs map[string]any

// Table returns the named input as a table.
func (in Inputs) Table(name string) (*table.Table, error) {
	data, ok := in[name]
	if !ok {
		return nil, fmt.Errorf("no input named %q", name)
	}
	t, err := resource.AsTable(data)
	if err != nil {
		return nil, table.WithResource(err, name)
	}
	return t, nil
}

// Tuple carries one value per declared output, in declaration order.
type Tuple []any

// Return packs values into a Tuple.
func Return(values ...any) Tuple { return Tuple(values) }

// Func is the user computation wrapped by a Task. Its result is either a
// single value (when the task has exactly one output), a Tuple with one
// element per output, or anything at all for tasks without outputs.
type Func func(ctx context.Context, in Inputs, rc *runctx.Context) (any, error)

// Task is a named unit of work with declared inputs and outputs.
type Task struct {
	name    string
	fn      Func
	inputs  []resource.Resource
	outputs []resource.Resource

	inputsDeclared  bool
	outputsDeclared bool

	rec event.Recorder
}

// Option configures a Task.
type Option func(*Task)

// WithRecorder sets where resource events are reported.
func WithRecorder(r event.Recorder) Option {
	return func(t *Task) { t.rec = r }
}

// New wraps fn as a task without inputs or outputs.
func New(name string, fn Func, opts ...Option) *Task {
	t := &Task{name: name, fn: fn, rec: event.Discard}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Inputs returns the declared input resources.
func (t *Task) Inputs() []resource.Resource { return append([]resource.Resource(nil), t.inputs...) }

// Outputs returns the declared output resources in declaration order.
func (t *Task) Outputs() []resource.Resource { return append([]resource.Resource(nil), t.outputs...) }

// AddInputs declares the resources the task consumes. It may be called once.
func (t *Task) AddInputs(rs ...resource.Resource) error {
	if t.inputsDeclared {
		return fmt.Errorf("task <%s>: inputs %w", t.name, ErrAlreadyDeclared)
	}
	t.inputs = dedupe(rs)
	t.inputsDeclared = true
	return nil
}

// AddOutputs declares the resources the task produces. It may be called once.
func (t *Task) AddOutputs(rs ...resource.Resource) error {
	if t.outputsDeclared {
		return fmt.Errorf("task <%s>: outputs %w", t.name, ErrAlreadyDeclared)
	}
	t.outputs = dedupe(rs)
	t.outputsDeclared = true
	return nil
}

func dedupe(rs []resource.Resource) []resource.Resource {
	seen := make(map[string]bool, len(rs))
	out := make([]resource.Resource, 0, len(rs))
	for _, r := range rs {
		if seen[r.Name()] {
			continue
		}
		seen[r.Name()] = true
		out = append(out, r)
	}
	return out
}

// IsComplete reports whether every output currently exists. A task without
// outputs is always complete.
func (t *Task) IsComplete(ctx context.Context, rc *runctx.Context) (bool, error) {
	return allExist(ctx, rc, t.outputs)
}

// IsReady reports whether every input currently exists.
func (t *Task) IsReady(ctx context.Context, rc *runctx.Context) (bool, error) {
	return allExist(ctx, rc, t.inputs)
}

func allExist(ctx context.Context, rc *runctx.Context, rs []resource.Resource) (bool, error) {
	for _, r := range rs {
		ok, err := r.Check(ctx, rc)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Run loads the inputs, calls the function and saves its result. Every
// output is validated before the first one is written, so a validation
// failure leaves no new artifact behind.
func (t *Task) Run(ctx context.Context, rc *runctx.Context) error {
	in := make(Inputs, len(t.inputs))
	for _, r := range t.inputs {
		data, err := r.Load(ctx, rc)
		if err != nil {
			return fmt.Errorf("task <%s>: loading input: %w", t.name, err)
		}
		in[r.Name()] = data
		loc, _ := r.Resolve(rc)
		event.Emit(ctx, t.rec, event.Event{Kind: event.ResourceLoaded, Task: t.name, Resource: r.Name(), Location: loc})
	}

	result, err := t.fn(ctx, in, rc)
	if err != nil {
		return fmt.Errorf("task <%s>: %w", t.name, err)
	}

	values, err := t.normalize(result)
	if err != nil {
		return err
	}

	var errs []error
	for i, r := range t.outputs {
		if err := r.Validate(values[i]); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("task <%s>: %w", t.name, err)
	}

	for i, r := range t.outputs {
		if err := r.Save(ctx, rc, values[i]); err != nil {
			return fmt.Errorf("task <%s>: saving output: %w", t.name, err)
		}
		loc, _ := r.Resolve(rc)
		event.Emit(ctx, t.rec, event.Event{Kind: event.ResourceSaved, Task: t.name, Resource: r.Name(), Location: loc})
	}
	return nil
}

func (t *Task) normalize(result any) ([]any, error) {
	n := len(t.outputs)
	if n == 0 {
		return nil, nil
	}
	if tuple, ok := result.(Tuple); ok {
		if len(tuple) != n {
			return nil, fmt.Errorf("task <%s>: %w: function returned %d values for %d outputs", t.name, ErrOutputArity, len(tuple), n)
		}
		return tuple, nil
	}
	if n == 1 {
		return []any{result}, nil
	}
	return nil, fmt.Errorf("task <%s>: %w: function returned a single %T for %d outputs", t.name, ErrOutputArity, result, n)
}

// Undo deletes every output that currently exists and returns the resolved
// locations it removed.
func (t *Task) Undo(ctx context.Context, rc *runctx.Context) ([]string, error) {
	var deleted []string
	for _, r := range t.outputs {
		ok, err := r.Check(ctx, rc)
		if err != nil {
			return deleted, fmt.Errorf("task <%s>: %w", t.name, err)
		}
		if !ok {
			continue
		}
		loc, err := r.Resolve(rc)
		if err != nil {
			return deleted, fmt.Errorf("task <%s>: %w", t.name, err)
		}
		if err := r.Delete(ctx, rc); err != nil {
			return deleted, fmt.Errorf("task <%s>: %w", t.name, err)
		}
		deleted = append(deleted, loc)
		event.Emit(ctx, t.rec, event.Event{Kind: event.ResourceDeleted, Task: t.name, Resource: r.Name(), Location: loc})
	}
	return deleted, nil
}
