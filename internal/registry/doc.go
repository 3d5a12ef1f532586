// Package registry provides the central "glue" for the module system.
//
// The Registry stores the mapping between the handler names used in pipeline
// definition files (e.g. "square_numbers") and the compiled Go task functions
// that implement them. Modules add their functions through the Module
// interface at startup.
//
// Before a pipeline is assembled the registry is validated against the
// loaded definition, so a task that names a missing handler is reported
// before anything runs.
package registry
