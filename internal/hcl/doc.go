// Package hcl provides the concrete HCL implementation of the definition
// loading and value conversion interfaces of the `config` package. It is
// responsible for file discovery, parsing, translation of `param`,
// `resource` and `task` blocks into the config model, and for parsing
// command-line parameter overrides as HCL expressions.
package hcl
