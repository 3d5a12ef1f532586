// Package runctx holds the run-scoped parameter mapping that every pipeline
// run is executed against.
//
// A Context carries user parameters (dates, counts, flags, strings) as
// cty.Values together with the run-control options of the invocation (target
// task, parallelism mode, worker count and the downstream flag). It is built
// once per invocation and treated as read-only while tasks execute: resource
// locations are rendered from it and every task function receives it.
package runctx
