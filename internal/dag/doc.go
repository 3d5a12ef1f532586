// Package dag is a small directed-graph utility used to reason about task
// dependencies: cycle detection, reachability and a deterministic topological
// order. Node insertion order is remembered so every traversal is stable.
package dag
