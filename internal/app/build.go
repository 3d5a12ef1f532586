package app

import (
	"fmt"
	"time"

	"github.com/vk/artiflow/internal/config"
	"github.com/vk/artiflow/internal/inmemorystore"
	"github.com/vk/artiflow/internal/pipeline"
	"github.com/vk/artiflow/internal/resource"
	"github.com/vk/artiflow/internal/resource/pgstore"
	"github.com/vk/artiflow/internal/runctx"
	"github.com/vk/artiflow/internal/validate"
)

// Store names accepted by a resource's store attribute.
const (
	storeLocal    = "local"
	storeMemory   = "memory"
	storePostgres = "postgres"
)

// storeConnectWait bounds the retries of the initial database ping.
const storeConnectWait = 30 * time.Second

// buildPipeline turns the loaded model into a pipeline: one artifact per
// resource, one task per task block wrapped in its check decorators.
func (a *App) buildPipeline() (*pipeline.Pipeline, error) {
	p := pipeline.New(pipeline.WithRecorder(a.recorder))
	stores := map[string]resource.Store{}

	for _, r := range a.model.Resources {
		store, err := a.store(stores, r.Store)
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", r.Name, err)
		}
		codec, err := resource.CodecByName(r.Codec)
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", r.Name, err)
		}
		if err := p.AddResource(resource.New(r.Name, r.Location, store, codec, artifactOptions(r)...)); err != nil {
			return nil, err
		}
	}

	for _, t := range a.model.Tasks {
		h, ok := a.registry.Handler(t.HandlerName())
		if !ok {
			return nil, fmt.Errorf("task %q: handler %q is not registered", t.Name, t.HandlerName())
		}
		decorators, err := checkDecorators(t)
		if err != nil {
			return nil, err
		}
		if _, err := p.Register(t.Name, validate.Wrap(h.Fn, decorators...)); err != nil {
			return nil, err
		}
		if len(t.Inputs) > 0 {
			if err := p.DeclareInputs(t.Name, t.Inputs...); err != nil {
				return nil, err
			}
		}
		if len(t.Outputs) > 0 {
			if err := p.DeclareOutputs(t.Name, t.Outputs...); err != nil {
				return nil, err
			}
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func artifactOptions(r *config.Resource) []resource.Option {
	var opts []resource.Option
	rest := r.Contract
	if len(rest.Columns) > 0 {
		opts = append(opts, resource.WithColumns(rest.Columns...))
		rest.Columns = nil
	}
	if checks := rest.TableChecks(); len(checks) > 0 {
		opts = append(opts, resource.WithTableChecks(checks...))
	}
	if r.ReadOnly {
		opts = append(opts, resource.ReadOnly())
	}
	return opts
}

// checkDecorators converts a task's check blocks into validation decorators,
// in declaration order.
func checkDecorators(t *config.Task) ([]validate.Decorator, error) {
	var decorators []validate.Decorator
	for _, c := range t.Checks {
		checks := c.TableChecks()
		switch c.Side {
		case config.SideInput:
			decorators = append(decorators, validate.Input(c.Resource, checks...))
		case config.SideOutput:
			index := indexOf(t.Outputs, c.Resource)
			if index < 0 {
				return nil, fmt.Errorf("task %q: check on %q which is not an output", t.Name, c.Resource)
			}
			decorators = append(decorators, validate.OutputAt(index, c.Resource, checks...))
		default:
			return nil, fmt.Errorf("task %q: unknown check side %q", t.Name, c.Side)
		}
	}
	return decorators, nil
}

// store returns the named artifact store, connecting to postgres on first use.
func (a *App) store(stores map[string]resource.Store, name string) (resource.Store, error) {
	if name == "" {
		name = storeLocal
	}
	if s, ok := stores[name]; ok {
		return s, nil
	}

	var s resource.Store
	switch name {
	case storeLocal:
		s = resource.LocalStore{Root: a.config.DataDir}
	case storeMemory:
		if a.config.Parallelism == runctx.ModeProcesses {
			return nil, fmt.Errorf("store %q cannot be shared with worker processes", name)
		}
		s = inmemorystore.New()
	case storePostgres:
		if a.config.StoreDSN == "" {
			return nil, fmt.Errorf("store %q requires a database DSN", name)
		}
		pool, err := pgstore.Connect(a.ctx, a.config.StoreDSN, storeConnectWait)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		pg := pgstore.New(pool, pgstore.DefaultTable)
		if err := pg.EnsureSchema(a.ctx); err != nil {
			return nil, err
		}
		a.logger.Info("Connected to postgres artifact store.", "table", pgstore.DefaultTable)
		s = pg
	default:
		return nil, fmt.Errorf("unknown store %q: must be one of %s, %s, %s", name, storeLocal, storeMemory, storePostgres)
	}
	stores[name] = s
	return s, nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
