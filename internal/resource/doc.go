// Package resource implements named, context-templated artifacts.
//
// A Resource is identified by a unique name and a location template such as
// "data/clusters={clusters}/model.bin". For every run the template is
// rendered against the run context to find the concrete artifact. The
// Resource contract exposes existence checks, loading, saving and deletion,
// and guarantees that data is validated against the resource's integrity
// assertions before it is written and after it is read.
//
// The provided implementation, Artifact, is composed rather than derived: a
// Store decides where bytes live (local files, a Postgres table, ...), a
// Codec decides how data is encoded (CSV tables, msgpack objects, YAML
// documents), and a list of assertions decides what valid data looks like.
package resource
