package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Converter is the HCL implementation of config.Converter.
type Converter struct{}

// NewConverter creates a new Converter.
func NewConverter() *Converter {
	return &Converter{}
}

// ParseVar interprets raw for a parameter of type ty. String and untyped
// parameters take raw verbatim, primitive numbers and bools are converted
// from the string, and collection types are parsed as HCL expressions, e.g.
// ["a", "b"] or { k = 1 }.
func (c *Converter) ParseVar(raw string, ty cty.Type) (cty.Value, error) {
	switch {
	case ty.Equals(cty.String) || ty.Equals(cty.DynamicPseudoType):
		return cty.StringVal(raw), nil
	case ty.IsPrimitiveType():
		v, err := convert.Convert(cty.StringVal(raw), ty)
		if err != nil {
			return cty.NilVal, fmt.Errorf("%q is not a valid %s", raw, ty.FriendlyName())
		}
		return v, nil
	}

	expr, diags := hclsyntax.ParseExpression([]byte(raw), "<var>", hcl.InitialPos)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("parsing %q: %w", raw, diags)
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("evaluating %q: %w", raw, diags)
	}
	converted, err := convert.Convert(v, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("%q does not match type %s: %w", raw, ty.FriendlyName(), err)
	}
	return converted, nil
}
