package app

import (
	"fmt"
	"os"
	"sort"

	"github.com/vk/artiflow/internal/runctx"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"gopkg.in/yaml.v3"
)

// Context assembles the run context from the configured run options and the
// parameters. Later sources override earlier ones: param defaults, then the
// params file, then --var overrides.
func (a *App) Context() (*runctx.Context, error) {
	params := a.model.Defaults()

	if a.config.ParamsFile != "" {
		fromFile, err := a.readParamsFile(a.config.ParamsFile)
		if err != nil {
			return nil, err
		}
		for k, v := range fromFile {
			params[k] = v
		}
	}

	names := make([]string, 0, len(a.config.Vars))
	for name := range a.config.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, err := a.converter.ParseVar(a.config.Vars[name], a.paramType(name))
		if err != nil {
			return nil, fmt.Errorf("var %q: %w", name, err)
		}
		params[name] = v
	}

	rc := runctx.New(params)
	rc.Target = a.config.Task
	rc.Parallelism = a.config.Parallelism
	rc.Workers = a.config.Workers
	rc.Downstream = a.config.Downstream
	return rc, nil
}

// readParamsFile decodes a yaml mapping of parameter values and converts each
// one to its declared type.
func (a *App) readParamsFile(path string) (map[string]cty.Value, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("failed to parse params file %s: %w", path, err)
	}
	params, err := runctx.FromGo(values)
	if err != nil {
		return nil, fmt.Errorf("params file %s: %w", path, err)
	}
	for name, v := range params {
		ty := a.paramType(name)
		if ty.Equals(cty.DynamicPseudoType) {
			continue
		}
		converted, err := convert.Convert(v, ty)
		if err != nil {
			return nil, fmt.Errorf("params file %s: parameter %q does not match type %s: %w", path, name, ty.FriendlyName(), err)
		}
		params[name] = converted
	}
	return params, nil
}

// paramType returns the declared type of a parameter, or any for parameters
// the definition does not declare.
func (a *App) paramType(name string) cty.Type {
	if p := a.model.Param(name); p != nil {
		return p.Type
	}
	return cty.DynamicPseudoType
}
