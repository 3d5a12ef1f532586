// Package validate provides decorators that check the tabular data flowing
// into and out of a task function. They work on the function's arguments and
// return values only, so they compose freely with the integrity assertions
// attached to resources.
package validate

import (
	"context"
	"fmt"

	"github.com/vk/artiflow/internal/resource"
	"github.com/vk/artiflow/internal/runctx"
	"github.com/vk/artiflow/internal/table"
	"github.com/vk/artiflow/internal/task"
)

// Decorator wraps a task function with additional behaviour.
type Decorator func(task.Func) task.Func

// Wrap applies decorators to fn. The first decorator is the outermost.
func Wrap(fn task.Func, decorators ...Decorator) task.Func {
	for i := len(decorators) - 1; i >= 0; i-- {
		fn = decorators[i](fn)
	}
	return fn
}

// Input checks the named input before the function is called.
func Input(name string, checks ...table.Check) Decorator {
	return func(next task.Func) task.Func {
		return func(ctx context.Context, in task.Inputs, rc *runctx.Context) (any, error) {
			data, ok := in[name]
			if !ok {
				return nil, &table.ValidationError{Resource: name, Reason: "input is missing"}
			}
			if err := run(name, data, checks); err != nil {
				return nil, err
			}
			return next(ctx, in, rc)
		}
	}
}

// Output checks the function's single return value, or the first element of
// a returned tuple. name labels the data in error messages.
func Output(name string, checks ...table.Check) Decorator {
	return OutputAt(0, name, checks...)
}

// OutputAt checks element index of a returned tuple. Index 0 also matches a
// plain, non-tuple return value.
func OutputAt(index int, name string, checks ...table.Check) Decorator {
	return func(next task.Func) task.Func {
		return func(ctx context.Context, in task.Inputs, rc *runctx.Context) (any, error) {
			result, err := next(ctx, in, rc)
			if err != nil {
				return result, err
			}
			data, err := pick(result, index, name)
			if err != nil {
				return nil, err
			}
			if err := run(name, data, checks); err != nil {
				return nil, err
			}
			return result, nil
		}
	}
}

func pick(result any, index int, name string) (any, error) {
	if tuple, ok := result.(task.Tuple); ok {
		if index < 0 || index >= len(tuple) {
			return nil, &table.ValidationError{Resource: name, Reason: fmt.Sprintf(
				"no return value at position %d (function returned %d)", index, len(tuple))}
		}
		return tuple[index], nil
	}
	if index != 0 {
		return nil, &table.ValidationError{Resource: name, Reason: fmt.Sprintf(
			"no return value at position %d (function returned a single value)", index)}
	}
	return result, nil
}

func run(name string, data any, checks []table.Check) error {
	t, err := resource.AsTable(data)
	if err != nil {
		return table.WithResource(err, name)
	}
	return table.WithResource(table.Run(t, checks...), name)
}
