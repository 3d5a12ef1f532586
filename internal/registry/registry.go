package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/vk/artiflow/internal/config"
	"github.com/vk/artiflow/internal/ctxlog"
	"github.com/vk/artiflow/internal/task"
	"github.com/vk/artiflow/internal/validate"
)

// Module is the interface that all task modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Handler is a registered task function.
type Handler struct {
	Name string
	Fn   task.Func
}

// Registry holds the task handlers of a single application instance.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]*Handler
}

// New creates an empty registry and registers every module into it.
func New(modules ...Module) *Registry {
	r := &Registry{handlers: make(map[string]*Handler)}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// RegisterTask registers fn under name, wrapped with the given validation
// decorators. Registering a name twice is a programming error and panics.
func (r *Registry) RegisterTask(name string, fn task.Func, decorators ...validate.Decorator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("task handler with name '%s' already registered", name))
	}
	slog.Debug("Registering task handler.", "name", name)
	r.handlers[name] = &Handler{Name: name, Fn: validate.Wrap(fn, decorators...)}
}

// Handler returns the handler registered under name.
func (r *Registry) Handler(name string) (*Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns every registered handler name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate performs a parity check between the definition and the Go code:
// every task must name a registered handler. Handlers that no task uses are
// only logged.
func (r *Registry) Validate(ctx context.Context, m *config.Model) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string
	used := map[string]bool{}
	for _, t := range m.Tasks {
		name := t.HandlerName()
		used[name] = true
		if _, ok := r.Handler(name); !ok {
			errs = append(errs, fmt.Sprintf("task '%s': handler '%s' is not registered", t.Name, name))
		}
	}
	for _, name := range r.Names() {
		if !used[name] {
			logger.Debug("Registered handler is not used by any task.", "handler", name)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
