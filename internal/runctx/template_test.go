package runctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestRender(t *testing.T) {
	c := New(map[string]cty.Value{
		"clusters": cty.NumberIntVal(3),
		"date":     cty.StringVal("2024-03-01"),
	})

	testCases := []struct {
		name     string
		template string
		want     string
		wantErr  string
	}{
		{name: "no placeholders", template: "data/raw.csv", want: "data/raw.csv"},
		{name: "single", template: "data/clusters={clusters}/model.bin", want: "data/clusters=3/model.bin"},
		{name: "multiple", template: "{date}/{clusters}/{date}.csv", want: "2024-03-01/3/2024-03-01.csv"},
		{name: "escaped braces", template: "literal/{{x}}/{clusters}", want: "literal/{x}/3"},
		{name: "missing key", template: "data/{nope}.csv", wantErr: "missing context parameter"},
		{name: "positional empty", template: "data/{}.csv", wantErr: "positional placeholders are not supported"},
		{name: "positional index", template: "data/{0}.csv", wantErr: "positional placeholder {0}"},
		{name: "unclosed", template: "data/{clusters", wantErr: "unclosed placeholder"},
		{name: "stray close", template: "data/}x", wantErr: "single '}'"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Render(tc.template)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRender_MissingParamIsSentinel(t *testing.T) {
	_, err := New(nil).Render("{date}")
	require.ErrorIs(t, err, ErrMissingParam)
}

func TestPlaceholders(t *testing.T) {
	names, err := Placeholders("{date}/x={clusters}/{date}/{{lit}}")
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "clusters"}, names)

	_, err = Placeholders("{1}")
	assert.Error(t, err)
}
