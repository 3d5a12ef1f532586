package config

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// Loader is the interface for a format-specific definition loader.
type Loader interface {
	// Load reads definitions from the given files or directories, translates
	// them into the format-agnostic model, and returns a matching Converter.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter interprets user-supplied parameter values in the loader's
// expression syntax.
type Converter interface {
	// ParseVar converts a raw command-line value to ty. cty.DynamicPseudoType
	// means the parameter is undeclared or untyped.
	ParseVar(raw string, ty cty.Type) (cty.Value, error)
}
