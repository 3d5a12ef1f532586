// Package numbers is a small demonstration module: it creates a table of
// integers, squares them, splits them by parity and summarizes the squares.
package numbers

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/vk/artiflow/internal/ctxlog"
	"github.com/vk/artiflow/internal/registry"
	"github.com/vk/artiflow/internal/runctx"
	"github.com/vk/artiflow/internal/table"
	"github.com/vk/artiflow/internal/task"
	"github.com/vk/artiflow/internal/validate"
)

// DefaultCount is used when the context has no count parameter.
const DefaultCount = 11

// Module implements the registry.Module interface for this package.
type Module struct{}

// Summary is the output of SummarizeSquares.
type Summary struct {
	Count int     `msgpack:"count" json:"count" yaml:"count"`
	Sum   float64 `msgpack:"sum" json:"sum" yaml:"sum"`
	Max   float64 `msgpack:"max" json:"max" yaml:"max"`
	Mean  float64 `msgpack:"mean" json:"mean" yaml:"mean"`
}

// CreateNumbers produces a single-column table holding 0..count-1.
func CreateNumbers(ctx context.Context, _ task.Inputs, rc *runctx.Context) (any, error) {
	count, err := rc.Int("count")
	if errors.Is(err, runctx.ErrMissingParam) {
		count = DefaultCount
	} else if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("count must not be negative, got %d", count)
	}

	t := table.New("number")
	for i := 0; i < count; i++ {
		if err := t.Append(i); err != nil {
			return nil, err
		}
	}
	ctxlog.FromContext(ctx).Debug("Created numbers.", "count", count)
	return t, nil
}

// SquareNumbers adds a square column to the numbers table.
func SquareNumbers(_ context.Context, in task.Inputs, _ *runctx.Context) (any, error) {
	numbers, err := in.Table("numbers")
	if err != nil {
		return nil, err
	}
	out := numbers.Clone()
	err = out.AddColumn("square", func(row int) (any, error) {
		n, err := out.Float(row, "number")
		if err != nil {
			return nil, err
		}
		return n * n, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SplitNumbers partitions the numbers into even and odd tables.
func SplitNumbers(_ context.Context, in task.Inputs, _ *runctx.Context) (any, error) {
	numbers, err := in.Table("numbers")
	if err != nil {
		return nil, err
	}
	even, odd := table.New("number"), table.New("number")
	for i := 0; i < numbers.Len(); i++ {
		n, err := numbers.Float(i, "number")
		if err != nil {
			return nil, err
		}
		dst := odd
		if math.Mod(n, 2) == 0 {
			dst = even
		}
		if err := dst.Append(n); err != nil {
			return nil, err
		}
	}
	return task.Return(even, odd), nil
}

// SummarizeSquares reduces the squares table to a Summary.
func SummarizeSquares(_ context.Context, in task.Inputs, _ *runctx.Context) (any, error) {
	squares, err := in.Table("squares")
	if err != nil {
		return nil, err
	}
	s := Summary{Count: squares.Len()}
	for i := 0; i < squares.Len(); i++ {
		v, err := squares.Float(i, "square")
		if err != nil {
			return nil, err
		}
		s.Sum += v
		if i == 0 || v > s.Max {
			s.Max = v
		}
	}
	if s.Count > 0 {
		s.Mean = s.Sum / float64(s.Count)
	}
	return s, nil
}

// Register registers the handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("create_numbers", CreateNumbers,
		validate.Output("numbers", table.Columns("number"), table.Unique("number")),
	)
	r.RegisterTask("square_numbers", SquareNumbers,
		validate.Input("numbers", table.Columns("number"), table.NotNull("number")),
		validate.Output("squares", table.Columns("number", "square"), table.AtLeast("square", 0)),
	)
	r.RegisterTask("split_numbers", SplitNumbers,
		validate.Input("numbers", table.Columns("number")),
		validate.OutputAt(0, "even", table.Columns("number")),
		validate.OutputAt(1, "odd", table.Columns("number")),
	)
	r.RegisterTask("summarize_squares", SummarizeSquares,
		validate.Input("squares", table.Columns("number", "square")),
	)
}
