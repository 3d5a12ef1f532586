// Package env_vars snapshots the process environment into a resource, so a
// run records the configuration it was executed with.
package env_vars

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/vk/artiflow/internal/registry"
	"github.com/vk/artiflow/internal/runctx"
	"github.com/vk/artiflow/internal/task"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// PrefixParam names the optional context parameter restricting the snapshot
// to variables with that prefix.
const PrefixParam = "env_prefix"

// Snapshot is the data written by the env_vars task.
type Snapshot struct {
	All map[string]string `yaml:"all" json:"all" msgpack:"all"`
}

// OnRunEnvVars is the handler for the 'env_vars' task.
func OnRunEnvVars(_ context.Context, _ task.Inputs, rc *runctx.Context) (any, error) {
	prefix, err := rc.String(PrefixParam)
	if err != nil && !errors.Is(err, runctx.ErrMissingParam) {
		return nil, err
	}

	envMap := make(map[string]string)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 && strings.HasPrefix(pair[0], prefix) {
			envMap[pair[0]] = pair[1]
		}
	}
	return &Snapshot{All: envMap}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("env_vars", OnRunEnvVars)
}
