package env_vars

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/artiflow/internal/registry"
	"github.com/vk/artiflow/internal/runctx"
	"github.com/zclconf/go-cty/cty"
)

func TestOnRunEnvVars_FiltersByPrefix(t *testing.T) {
	t.Setenv("ARTIFLOW_TEST_A", "1")
	t.Setenv("ARTIFLOW_TEST_B", "two=2")
	t.Setenv("OTHER_ARTIFLOW_TEST", "x")

	rc := runctx.New(map[string]cty.Value{PrefixParam: cty.StringVal("ARTIFLOW_TEST_")})
	out, err := OnRunEnvVars(context.Background(), nil, rc)
	require.NoError(t, err)

	snap := out.(*Snapshot)
	assert.Equal(t, map[string]string{"ARTIFLOW_TEST_A": "1", "ARTIFLOW_TEST_B": "two=2"}, snap.All)
}

func TestOnRunEnvVars_NoPrefixTakesEverything(t *testing.T) {
	t.Setenv("ARTIFLOW_TEST_C", "3")

	out, err := OnRunEnvVars(context.Background(), nil, runctx.New(nil))
	require.NoError(t, err)
	assert.Equal(t, "3", out.(*Snapshot).All["ARTIFLOW_TEST_C"])
}

func TestModule_Register(t *testing.T) {
	r := registry.New(&Module{})
	_, ok := r.Handler("env_vars")
	assert.True(t, ok)
}
