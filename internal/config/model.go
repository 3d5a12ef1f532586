package config

import (
	"fmt"
	"math"

	"github.com/vk/artiflow/internal/table"
	"github.com/zclconf/go-cty/cty"
)

// Check sides.
const (
	SideInput  = "input"
	SideOutput = "output"
)

// Model is the unified representation of a pipeline definition.
type Model struct {
	Params    []*Param
	Resources []*Resource
	Tasks     []*Task
}

// Param declares a context parameter with an optional typed default.
type Param struct {
	Name        string
	Type        cty.Type
	Default     cty.Value
	Description string
}

// HasDefault reports whether the parameter carries a default value.
func (p *Param) HasDefault() bool {
	return !p.Default.IsNull()
}

// Contract is a set of table expectations shared by resources and task
// checks.
type Contract struct {
	Columns []string
	NotNull bool
	Unique  []string
	Ranges  []*Range
}

// Range bounds the numeric values of a column. Nil bounds are open.
type Range struct {
	Column string
	Min    *float64
	Max    *float64
}

// Empty reports whether the contract has no expectations.
func (c Contract) Empty() bool {
	return len(c.Columns) == 0 && !c.NotNull && len(c.Unique) == 0 && len(c.Ranges) == 0
}

// TableChecks converts the contract to table checks, column set first.
func (c Contract) TableChecks() []table.Check {
	var checks []table.Check
	if len(c.Columns) > 0 {
		checks = append(checks, table.Columns(c.Columns...))
	}
	if c.NotNull {
		checks = append(checks, table.NotNull())
	}
	if len(c.Unique) > 0 {
		checks = append(checks, table.Unique(c.Unique...))
	}
	for _, r := range c.Ranges {
		min, max := math.Inf(-1), math.Inf(1)
		if r.Min != nil {
			min = *r.Min
		}
		if r.Max != nil {
			max = *r.Max
		}
		checks = append(checks, table.Range(r.Column, min, max))
	}
	return checks
}

// Resource declares an artifact.
type Resource struct {
	Name        string
	Description string
	Location    string
	// Codec is one of csv, msgpack, yaml, json. Empty means csv.
	Codec string
	// Store is local or postgres. Empty means local.
	Store    string
	ReadOnly bool
	Contract
}

// Task binds a registered handler to resources.
type Task struct {
	Name        string
	Description string
	// Handler is the registry name of the Go function. Empty means Name.
	Handler string
	Inputs  []string
	Outputs []string
	Checks  []*Check
}

// HandlerName returns the registry key of the task's function.
func (t *Task) HandlerName() string {
	if t.Handler != "" {
		return t.Handler
	}
	return t.Name
}

// Check attaches a validation contract to one of a task's inputs or outputs.
type Check struct {
	Side     string
	Resource string
	Contract
}

// Param returns the named parameter, or nil.
func (m *Model) Param(name string) *Param {
	for _, p := range m.Params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Defaults returns the default value of every parameter that has one.
func (m *Model) Defaults() map[string]cty.Value {
	out := make(map[string]cty.Value)
	for _, p := range m.Params {
		if p.HasDefault() {
			out[p.Name] = p.Default
		}
	}
	return out
}

// Validate checks the model for internal consistency: unique names and task
// checks that refer to a declared input or output of their task.
func (m *Model) Validate() error {
	seen := map[string]string{}
	claim := func(kind, name string) error {
		key := kind + "/" + name
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate %s %q", kind, name)
		}
		seen[key] = name
		return nil
	}
	for _, p := range m.Params {
		if err := claim("param", p.Name); err != nil {
			return err
		}
	}
	for _, r := range m.Resources {
		if err := claim("resource", r.Name); err != nil {
			return err
		}
		if r.Location == "" {
			return fmt.Errorf("resource %q: location is required", r.Name)
		}
	}
	for _, t := range m.Tasks {
		if err := claim("task", t.Name); err != nil {
			return err
		}
		for _, c := range t.Checks {
			var pool []string
			switch c.Side {
			case SideInput:
				pool = t.Inputs
			case SideOutput:
				pool = t.Outputs
			default:
				return fmt.Errorf("task %q: check side must be %q or %q, got %q", t.Name, SideInput, SideOutput, c.Side)
			}
			if !contains(pool, c.Resource) {
				return fmt.Errorf("task %q: %s check refers to %q which is not one of its %ss", t.Name, c.Side, c.Resource, c.Side)
			}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
