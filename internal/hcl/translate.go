// This file contains the logic for translating the HCL schema structs into
// the format-agnostic configuration model defined in the config package.

package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/artiflow/internal/config"
	"github.com/vk/artiflow/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// translateParam resolves the declared type and evaluates the default.
func translateParam(ctx context.Context, p *paramBlock) (*config.Param, error) {
	logger := ctxlog.FromContext(ctx).With("param", p.Name)
	ctx = ctxlog.WithLogger(ctx, logger)

	ty := cty.DynamicPseudoType
	if isExprDefined(ctx, p.Type, "type") {
		parsed, err := typeExprToCtyType(ctx, p.Type)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", p.Name, err)
		}
		ty = parsed
	}

	param := &config.Param{Name: p.Name, Type: ty, Description: p.Description, Default: cty.NullVal(ty)}
	if !isExprDefined(ctx, p.Default, "default") {
		return param, nil
	}

	val, diags := p.Default.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("param %q: default: %w", p.Name, diags)
	}
	if !ty.Equals(cty.DynamicPseudoType) {
		converted, err := convert.Convert(val, ty)
		if err != nil {
			return nil, fmt.Errorf("param %q: default does not match type %s: %w", p.Name, ty.FriendlyName(), err)
		}
		val = converted
	}
	param.Default = val
	logger.Debug("Translated param.", "type", ty.FriendlyName(), "has_default", param.HasDefault())
	return param, nil
}

func translateRanges(in []*rangeBlock) []*config.Range {
	out := make([]*config.Range, 0, len(in))
	for _, r := range in {
		out = append(out, &config.Range{Column: r.Column, Min: r.Min, Max: r.Max})
	}
	return out
}

func translateResource(r *resourceBlock) *config.Resource {
	return &config.Resource{
		Name:        r.Name,
		Description: r.Description,
		Location:    r.Location,
		Codec:       r.Codec,
		Store:       r.Store,
		ReadOnly:    r.ReadOnly,
		Contract: config.Contract{
			Columns: r.Columns,
			NotNull: r.NotNull,
			Unique:  r.Unique,
			Ranges:  translateRanges(r.Ranges),
		},
	}
}

func translateTask(t *taskBlock) *config.Task {
	task := &config.Task{
		Name:        t.Name,
		Description: t.Description,
		Handler:     t.Handler,
		Inputs:      t.Inputs,
		Outputs:     t.Outputs,
	}
	for _, c := range t.Checks {
		task.Checks = append(task.Checks, &config.Check{
			Side:     c.Side,
			Resource: c.Resource,
			Contract: config.Contract{
				Columns: c.Columns,
				NotNull: c.NotNull,
				Unique:  c.Unique,
				Ranges:  translateRanges(c.Ranges),
			},
		})
	}
	return task
}

// isExprDefined reports whether an optional attribute was written in the
// file. gohcl fills omitted expression fields with a synthetic null
// expression whose source range is zero-width.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	logger := ctxlog.FromContext(ctx)

	if expr == nil {
		logger.Debug("Expression is nil, considering it undefined.", "attribute", attrName)
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}
