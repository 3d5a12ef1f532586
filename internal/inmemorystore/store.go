// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the resource.Store interface.
//
// # Characteristics
//
//   - Ephemeral: artifacts live as long as the Store value
//   - Thread-safe: keyed by resolved location in a sync.Map, so tasks
//     writing different artifacts never contend
//   - Atomic: a write is buffered and published only when encoding succeeds
//
// Artifacts written here are invisible to worker processes, so a pipeline
// using this store cannot run in processes mode.
package inmemorystore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/vk/artiflow/internal/resource"
)

// Store is an in-memory artifact store. The zero value is ready to use.
type Store struct {
	artifacts sync.Map // Key: resolved location, Value: []byte
}

// New creates a new, empty in-memory store.
func New() *Store {
	return &Store{}
}

// Exists reports whether an artifact has been published at location.
func (s *Store) Exists(_ context.Context, location string) (bool, error) {
	_, ok := s.artifacts.Load(location)
	return ok, nil
}

// Open returns a reader over a copy of the artifact's bytes.
func (s *Store) Open(_ context.Context, location string) (io.ReadCloser, error) {
	data, ok := s.artifacts.Load(location)
	if !ok {
		return nil, fmt.Errorf("%w: %s", resource.ErrNotFound, location)
	}
	return io.NopCloser(bytes.NewReader(data.([]byte))), nil
}

// Write buffers everything fn writes and publishes it only if fn succeeds.
func (s *Store) Write(_ context.Context, location string, fn func(w io.Writer) error) error {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return err
	}
	s.artifacts.Store(location, buf.Bytes())
	return nil
}

// Remove deletes the artifact at location.
func (s *Store) Remove(_ context.Context, location string) error {
	if _, ok := s.artifacts.LoadAndDelete(location); !ok {
		return fmt.Errorf("%w: %s", resource.ErrNotFound, location)
	}
	return nil
}

// Locations returns every published location, sorted.
func (s *Store) Locations() []string {
	var out []string
	s.artifacts.Range(func(key, _ any) bool {
		out = append(out, key.(string))
		return true
	})
	sort.Strings(out)
	return out
}

var _ resource.Store = (*Store)(nil)
