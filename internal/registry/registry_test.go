package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/artiflow/internal/config"
	"github.com/vk/artiflow/internal/runctx"
	"github.com/vk/artiflow/internal/table"
	"github.com/vk/artiflow/internal/task"
	"github.com/vk/artiflow/internal/validate"
)

type fakeModule struct{}

func (fakeModule) Register(r *Registry) {
	r.RegisterTask("noop", func(context.Context, task.Inputs, *runctx.Context) (any, error) { return nil, nil })
	r.RegisterTask("wide", func(context.Context, task.Inputs, *runctx.Context) (any, error) {
		return table.New("a"), nil
	}, validate.Output("wide", table.Columns("a", "b")))
}

func TestNew_RegistersModules(t *testing.T) {
	r := New(fakeModule{})
	assert.Equal(t, []string{"noop", "wide"}, r.Names())

	h, ok := r.Handler("wide")
	require.True(t, ok)
	_, err := h.Fn(context.Background(), nil, runctx.New(nil))
	assert.ErrorContains(t, err, "column set mismatch", "decorators are applied on registration")
}

func TestRegisterTask_DuplicatePanics(t *testing.T) {
	r := New(fakeModule{})
	assert.PanicsWithValue(t, "task handler with name 'noop' already registered", func() {
		r.RegisterTask("noop", nil)
	})
}

func TestValidate(t *testing.T) {
	r := New(fakeModule{})
	ok := &config.Model{Tasks: []*config.Task{{Name: "noop"}, {Name: "other", Handler: "wide"}}}
	require.NoError(t, r.Validate(context.Background(), ok))

	bad := &config.Model{Tasks: []*config.Task{{Name: "train"}, {Name: "x", Handler: "ghost"}}}
	err := r.Validate(context.Background(), bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task 'train': handler 'train' is not registered")
	assert.Contains(t, err.Error(), "task 'x': handler 'ghost' is not registered")
}
