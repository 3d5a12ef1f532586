package pipeline

import (
	"errors"
	"fmt"

	"github.com/vk/artiflow/internal/dag"
	"github.com/vk/artiflow/internal/task"
)

// graph builds the task dependency graph: an edge runs from the producer of
// each input to the consumer. Inputs without a producer add no edge.
func (p *Pipeline) graph() *dag.Graph {
	p.mu.RLock()
	defer p.mu.RUnlock()

	g := dag.New()
	for _, name := range p.order {
		g.AddNode(name)
	}
	for _, name := range p.order {
		for _, r := range p.tasks[name].Inputs() {
			if producer, ok := p.producers[r.Name()]; ok {
				// Both nodes were added above.
				_ = g.AddEdge(producer, name)
			}
		}
	}
	return g
}

// Upstream returns every task the named task transitively depends on,
// excluding itself, in registration order.
func (p *Pipeline) Upstream(name string) ([]*task.Task, error) {
	if _, err := p.Task(name); err != nil {
		return nil, err
	}
	ids, err := p.graph().Ancestors(name)
	if err != nil {
		return nil, err
	}
	return p.resolve(ids), nil
}

// Downstream returns every task that transitively depends on the named
// task, excluding itself, in registration order.
func (p *Pipeline) Downstream(name string) ([]*task.Task, error) {
	if _, err := p.Task(name); err != nil {
		return nil, err
	}
	ids, err := p.graph().Descendants(name)
	if err != nil {
		return nil, err
	}
	return p.resolve(ids), nil
}

// Order returns every task so that producers precede their consumers.
func (p *Pipeline) Order() ([]*task.Task, error) {
	ids, err := p.graph().TopologicalOrder()
	if err != nil {
		return nil, err
	}
	return p.resolve(ids), nil
}

// Validate reports every consumed resource without a producer and any
// dependency cycle.
func (p *Pipeline) Validate() error {
	var errs []error
	for _, t := range p.Tasks() {
		errs = append(errs, p.unresolved(t)...)
	}
	if err := p.graph().DetectCycles(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CheckProducers reports consumed resources without a producer for the
// given tasks only.
func (p *Pipeline) CheckProducers(tasks []*task.Task) error {
	var errs []error
	for _, t := range tasks {
		errs = append(errs, p.unresolved(t)...)
	}
	return errors.Join(errs...)
}

func (p *Pipeline) unresolved(t *task.Task) []error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var errs []error
	for _, r := range t.Inputs() {
		if _, ok := p.producers[r.Name()]; !ok {
			errs = append(errs, fmt.Errorf("task <%s> consumes <%s>: %w", t.Name(), r.Name(), ErrUnresolvedProducer))
		}
	}
	return errs
}

func (p *Pipeline) resolve(ids []string) []*task.Task {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*task.Task, len(ids))
	for i, id := range ids {
		out[i] = p.tasks[id]
	}
	return out
}
