package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot is used to decode all top-level blocks from any file.
type fileRoot struct {
	Params    []*paramBlock    `hcl:"param,block"`
	Resources []*resourceBlock `hcl:"resource,block"`
	Tasks     []*taskBlock     `hcl:"task,block"`
	Remain    hcl.Body         `hcl:",remain"`
}

// paramBlock is a `param "name" { ... }` block.
type paramBlock struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type,optional"`
	Default     hcl.Expression `hcl:"default,optional"`
	Description string         `hcl:"description,optional"`
}

// rangeBlock is a `range "column" { min = ..., max = ... }` block.
type rangeBlock struct {
	Column string   `hcl:"column,label"`
	Min    *float64 `hcl:"min,optional"`
	Max    *float64 `hcl:"max,optional"`
}

// resourceBlock is a `resource "name" { ... }` block.
type resourceBlock struct {
	Name        string        `hcl:"name,label"`
	Description string        `hcl:"description,optional"`
	Location    string        `hcl:"location"`
	Codec       string        `hcl:"codec,optional"`
	Store       string        `hcl:"store,optional"`
	ReadOnly    bool          `hcl:"read_only,optional"`
	Columns     []string      `hcl:"columns,optional"`
	NotNull     bool          `hcl:"not_null,optional"`
	Unique      []string      `hcl:"unique,optional"`
	Ranges      []*rangeBlock `hcl:"range,block"`
}

// checkBlock is a `check "input|output" "resource" { ... }` block inside a task.
type checkBlock struct {
	Side     string        `hcl:"side,label"`
	Resource string        `hcl:"resource,label"`
	Columns  []string      `hcl:"columns,optional"`
	NotNull  bool          `hcl:"not_null,optional"`
	Unique   []string      `hcl:"unique,optional"`
	Ranges   []*rangeBlock `hcl:"range,block"`
}

// taskBlock is a `task "name" { ... }` block.
type taskBlock struct {
	Name        string        `hcl:"name,label"`
	Description string        `hcl:"description,optional"`
	Handler     string        `hcl:"handler,optional"`
	Inputs      []string      `hcl:"inputs,optional"`
	Outputs     []string      `hcl:"outputs,optional"`
	Checks      []*checkBlock `hcl:"check,block"`
}
