package integration_tests

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vk/artiflow/internal/registry"
	"github.com/vk/artiflow/internal/runctx"
	"github.com/vk/artiflow/internal/table"
	"github.com/vk/artiflow/internal/task"
	"github.com/vk/artiflow/internal/testutil"
)

// trackedModule registers one handler per name. Each handler is tracked,
// sleeps while holding its slot and returns a one-row table naming itself.
type trackedModule struct {
	names   []string
	tracker *testutil.Tracker
}

func (m *trackedModule) Register(r *registry.Registry) {
	for _, name := range m.names {
		name := name
		r.RegisterTask(name, func(context.Context, task.Inputs, *runctx.Context) (any, error) {
			done := m.tracker.Enter(name)
			defer done()
			t := table.New("id")
			if err := t.Append(name); err != nil {
				return nil, err
			}
			return t, nil
		})
	}
}

func writePipeline(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.hcl")
	if err := os.WriteFile(path, []byte(src), 0600); err != nil {
		t.Fatalf("failed to write hcl file: %v", err)
	}
	return path
}
