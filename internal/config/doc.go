// Package config defines the format-agnostic model of a pipeline definition
// (parameters, resources and tasks), along with the Loader and Converter
// interfaces implemented by concrete formats such as HCL.
//
// The Model is the single source of truth the app uses to assemble a
// pipeline.Pipeline; nothing downstream of it knows which file format the
// definition came from.
package config
