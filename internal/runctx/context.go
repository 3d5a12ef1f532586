package runctx

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Reserved parameter names under which the run-control options are exposed
// to templates and task functions.
const (
	KeyTask        = "task"
	KeyParallelism = "parallelism"
	KeyWorkers     = "workers"
	KeyDownstream  = "downstream"
)

// DateLayout is the layout used by Date to parse date parameters.
const DateLayout = "2006-01-02"

// ErrMissingParam is returned when a parameter is looked up (directly or
// through a location template) but is not present in the context.
var ErrMissingParam = errors.New("missing context parameter")

// Context is the immutable-per-run mapping of parameters plus run options.
type Context struct {
	params map[string]cty.Value

	// Target is the name of the task to run or undo; empty means all tasks.
	Target string
	// Parallelism selects sequential or pooled execution.
	Parallelism Mode
	// Workers is the worker pool size for parallel modes.
	Workers int
	// Downstream extends an undo to every task downstream of Target.
	Downstream bool
}

// New creates a context holding a copy of params.
func New(params map[string]cty.Value) *Context {
	c := &Context{params: make(map[string]cty.Value, len(params)), Parallelism: ModeNone}
	for k, v := range params {
		c.params[k] = v
	}
	return c
}

// With returns a copy of the context with one parameter set.
func (c *Context) With(name string, v cty.Value) *Context {
	next := c.clone()
	next.params[name] = v
	return next
}

func (c *Context) clone() *Context {
	next := *c
	next.params = make(map[string]cty.Value, len(c.params))
	for k, v := range c.params {
		next.params[k] = v
	}
	return &next
}

// Params returns a copy of the user parameters, without run-control keys.
func (c *Context) Params() map[string]cty.Value {
	out := make(map[string]cty.Value, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

// Values returns the user parameters merged with the run-control keys.
// Run-control keys take precedence over user parameters of the same name.
func (c *Context) Values() map[string]cty.Value {
	out := c.Params()
	target := cty.NullVal(cty.String)
	if c.Target != "" {
		target = cty.StringVal(c.Target)
	}
	out[KeyTask] = target
	out[KeyParallelism] = cty.StringVal(string(c.Parallelism.orNone()))
	out[KeyWorkers] = cty.NumberIntVal(int64(c.Workers))
	out[KeyDownstream] = cty.BoolVal(c.Downstream)
	return out
}

// Names returns the sorted names of all values, run-control keys included.
func (c *Context) Names() []string {
	vals := c.Values()
	names := make([]string, 0, len(vals))
	for k := range vals {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Value looks up a parameter or run-control key.
func (c *Context) Value(name string) (cty.Value, bool) {
	v, ok := c.Values()[name]
	return v, ok
}

func (c *Context) lookup(name string) (cty.Value, error) {
	v, ok := c.Value(name)
	if !ok {
		return cty.NilVal, fmt.Errorf("%w %q", ErrMissingParam, name)
	}
	if v.IsNull() {
		return cty.NilVal, fmt.Errorf("%w %q (value is null)", ErrMissingParam, name)
	}
	if !v.IsWhollyKnown() {
		return cty.NilVal, fmt.Errorf("context parameter %q is not known", name)
	}
	return v, nil
}

// String returns the named parameter converted to a string.
func (c *Context) String(name string) (string, error) {
	v, err := c.lookup(name)
	if err != nil {
		return "", err
	}
	return valueString(v)
}

// Int returns the named parameter as an int.
func (c *Context) Int(name string) (int, error) {
	var out int
	err := c.Decode(name, &out)
	return out, err
}

// Float returns the named parameter as a float64.
func (c *Context) Float(name string) (float64, error) {
	var out float64
	err := c.Decode(name, &out)
	return out, err
}

// Bool returns the named parameter as a bool.
func (c *Context) Bool(name string) (bool, error) {
	var out bool
	err := c.Decode(name, &out)
	return out, err
}

// Date parses the named parameter using DateLayout.
func (c *Context) Date(name string) (time.Time, error) {
	s, err := c.String(name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("context parameter %q is not a date: %w", name, err)
	}
	return t, nil
}

// Decode converts the named parameter into target, which must be a pointer
// to a Go value compatible with the parameter's type.
func (c *Context) Decode(name string, target any) error {
	v, err := c.lookup(name)
	if err != nil {
		return err
	}
	if ty, err := gocty.ImpliedType(target); err == nil {
		converted, convErr := convert.Convert(v, ty)
		if convErr != nil {
			return fmt.Errorf("context parameter %q: cannot convert %s to %s: %w", name, v.Type().FriendlyName(), ty.FriendlyName(), convErr)
		}
		v = converted
	}
	if err := gocty.FromCtyValue(v, target); err != nil {
		return fmt.Errorf("context parameter %q: %w", name, err)
	}
	return nil
}

// Display renders every value as a string, for logging and event payloads.
func (c *Context) Display() map[string]string {
	vals := c.Values()
	out := make(map[string]string, len(vals))
	for k, v := range vals {
		if v.IsNull() {
			out[k] = "null"
			continue
		}
		s, err := valueString(v)
		if err != nil {
			raw, jerr := ctyjson.SimpleJSONValue{Value: v}.MarshalJSON()
			if jerr != nil {
				s = v.GoString()
			} else {
				s = string(raw)
			}
		}
		out[k] = s
	}
	return out
}

func valueString(v cty.Value) (string, error) {
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("cannot render %s as a string: %w", v.Type().FriendlyName(), err)
	}
	return s.AsString(), nil
}

// wireContext is the serialized form used to hand a context to worker processes.
type wireContext struct {
	Params      json.RawMessage `json:"params"`
	Target      string          `json:"target,omitempty"`
	Parallelism Mode            `json:"parallelism,omitempty"`
	Workers     int             `json:"workers,omitempty"`
	Downstream  bool            `json:"downstream,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c *Context) MarshalJSON() ([]byte, error) {
	obj := cty.EmptyObjectVal
	if len(c.params) > 0 {
		obj = cty.ObjectVal(c.params)
	}
	params, err := ctyjson.SimpleJSONValue{Value: obj}.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode context parameters: %w", err)
	}
	return json.Marshal(wireContext{
		Params:      params,
		Target:      c.Target,
		Parallelism: c.Parallelism,
		Workers:     c.Workers,
		Downstream:  c.Downstream,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Context) UnmarshalJSON(data []byte) error {
	var w wireContext
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("failed to decode context: %w", err)
	}
	var params ctyjson.SimpleJSONValue
	if len(w.Params) > 0 {
		if err := params.UnmarshalJSON(w.Params); err != nil {
			return fmt.Errorf("failed to decode context parameters: %w", err)
		}
	}
	c.params = make(map[string]cty.Value)
	if !params.Value.IsNull() && params.Value.Type().IsObjectType() {
		for k, v := range params.Value.AsValueMap() {
			c.params[k] = v
		}
	}
	c.Target = w.Target
	c.Parallelism = w.Parallelism.orNone()
	c.Workers = w.Workers
	c.Downstream = w.Downstream
	return nil
}
