// Package inmemorystore provides a thread-safe, in-memory implementation
// of the resource.Store interface. It is suitable for development, testing,
// or any pipeline whose artifacts do not need to outlive the process.
package inmemorystore
