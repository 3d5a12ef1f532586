// Package pipeline is the registry binding tasks to the resources they
// consume and produce. It owns the resource to producer index and answers
// graph questions (upstream, downstream, topological order) for the
// scheduler.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vk/artiflow/internal/dag"
	"github.com/vk/artiflow/internal/event"
	"github.com/vk/artiflow/internal/resource"
	"github.com/vk/artiflow/internal/task"
)

// Configuration errors. They are returned while the pipeline is defined or
// validated and are never retried.
var (
	ErrDuplicateTask      = errors.New("duplicate task")
	ErrDuplicateResource  = errors.New("duplicate resource")
	ErrDuplicateProducer  = errors.New("resource already has a producer")
	ErrUnresolvedProducer = errors.New("no task produces resource")
	ErrUnknownTask        = errors.New("unknown task")
	ErrUnknownResource    = errors.New("unknown resource")
	ErrCycle              = dag.ErrCycle
)

// Pipeline holds tasks, resources and the producer index. Definition
// methods are safe for concurrent use; a pipeline must not be modified while
// it is being run.
type Pipeline struct {
	mu        sync.RWMutex
	resources map[string]resource.Resource
	tasks     map[string]*task.Task
	order     []string
	producers map[string]string
	rec       event.Recorder
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder sets the recorder handed to every registered task.
func WithRecorder(r event.Recorder) Option {
	return func(p *Pipeline) { p.rec = r }
}

// New creates an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		resources: make(map[string]resource.Resource),
		tasks:     make(map[string]*task.Task),
		producers: make(map[string]string),
		rec:       event.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddResource makes r available to task declarations. Adding the same
// object twice is a no-op; a different resource under a taken name is an
// error.
func (p *Pipeline) AddResource(r resource.Resource) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.resources[r.Name()]; ok {
		if existing == r {
			return nil
		}
		return fmt.Errorf("%w: <%s>", ErrDuplicateResource, r.Name())
	}
	p.resources[r.Name()] = r
	return nil
}

// Register creates the task stub for fn. Inputs and outputs are attached
// afterwards with DeclareInputs and DeclareOutputs.
func (p *Pipeline) Register(name string, fn task.Func) (*task.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.tasks[name]; ok {
		return nil, fmt.Errorf("%w: <%s>", ErrDuplicateTask, name)
	}
	t := task.New(name, fn, task.WithRecorder(p.rec))
	p.tasks[name] = t
	p.order = append(p.order, name)
	return t, nil
}

// DeclareInputs attaches the named resources as the task's inputs.
func (p *Pipeline) DeclareInputs(taskName string, resourceNames ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, rs, err := p.lookupDeclaration(taskName, resourceNames)
	if err != nil {
		return err
	}
	return t.AddInputs(rs...)
}

// DeclareOutputs attaches the named resources as the task's outputs and
// records the task as their producer. Nothing is changed when any of the
// resources already has a producer.
func (p *Pipeline) DeclareOutputs(taskName string, resourceNames ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, rs, err := p.lookupDeclaration(taskName, resourceNames)
	if err != nil {
		return err
	}
	for _, r := range rs {
		if producer, ok := p.producers[r.Name()]; ok && producer != taskName {
			return fmt.Errorf("%w: <%s> is produced by <%s>, cannot also be produced by <%s>",
				ErrDuplicateProducer, r.Name(), producer, taskName)
		}
	}
	if err := t.AddOutputs(rs...); err != nil {
		return err
	}
	for _, r := range rs {
		p.producers[r.Name()] = taskName
	}
	return nil
}

func (p *Pipeline) lookupDeclaration(taskName string, resourceNames []string) (*task.Task, []resource.Resource, error) {
	t, ok := p.tasks[taskName]
	if !ok {
		return nil, nil, fmt.Errorf("%w: <%s>", ErrUnknownTask, taskName)
	}
	rs := make([]resource.Resource, 0, len(resourceNames))
	for _, name := range resourceNames {
		r, ok := p.resources[name]
		if !ok {
			return nil, nil, fmt.Errorf("task <%s>: %w: <%s>", taskName, ErrUnknownResource, name)
		}
		rs = append(rs, r)
	}
	return t, rs, nil
}

// Task returns the named task.
func (p *Pipeline) Task(name string) (*task.Task, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	t, ok := p.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: <%s>", ErrUnknownTask, name)
	}
	return t, nil
}

// Tasks returns every task in registration order.
func (p *Pipeline) Tasks() []*task.Task {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*task.Task, len(p.order))
	for i, name := range p.order {
		out[i] = p.tasks[name]
	}
	return out
}

// Resource returns the named resource.
func (p *Pipeline) Resource(name string) (resource.Resource, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	r, ok := p.resources[name]
	if !ok {
		return nil, fmt.Errorf("%w: <%s>", ErrUnknownResource, name)
	}
	return r, nil
}

// Producer returns the task that produces the named resource.
func (p *Pipeline) Producer(resourceName string) (*task.Task, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	name, ok := p.producers[resourceName]
	if !ok {
		return nil, fmt.Errorf("%w: <%s>", ErrUnresolvedProducer, resourceName)
	}
	return p.tasks[name], nil
}

// Consumers returns the tasks that declare the named resource as an input,
// in registration order.
func (p *Pipeline) Consumers(resourceName string) []*task.Task {
	var out []*task.Task
	for _, t := range p.Tasks() {
		for _, r := range t.Inputs() {
			if r.Name() == resourceName {
				out = append(out, t)
				break
			}
		}
	}
	return out
}
