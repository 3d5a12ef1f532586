package resource

import (
	"context"
	"errors"
	"io"

	"github.com/vk/artiflow/internal/runctx"
)

var (
	// ErrNotFound is returned when loading an artifact that does not exist.
	ErrNotFound = errors.New("artifact not found")
	// ErrDeleteUnsupported is returned by resources that cannot be deleted.
	ErrDeleteUnsupported = errors.New("resource does not support deletion")
)

// Resource is the capability set every artifact offers to the engine.
type Resource interface {
	// Name is the unique identifier of the resource within a pipeline.
	Name() string
	// Location is the unrendered location template.
	Location() string
	// Resolve renders the location template against rc.
	Resolve(rc *runctx.Context) (string, error)
	// Check reports whether the artifact currently exists.
	Check(ctx context.Context, rc *runctx.Context) (bool, error)
	// Load reads and validates the artifact. Missing artifacts yield ErrNotFound.
	Load(ctx context.Context, rc *runctx.Context) (any, error)
	// Save validates data and writes it atomically.
	Save(ctx context.Context, rc *runctx.Context, data any) error
	// Delete removes the artifact.
	Delete(ctx context.Context, rc *runctx.Context) error
	// Validate runs the integrity assertions on in-memory data.
	Validate(data any) error
}

// Store persists encoded artifacts by resolved location.
type Store interface {
	// Exists reports whether an artifact is published at location.
	Exists(ctx context.Context, location string) (bool, error)
	// Open returns a reader for the artifact or ErrNotFound.
	Open(ctx context.Context, location string) (io.ReadCloser, error)
	// Write publishes the bytes produced by fn at location. Implementations
	// must never expose a partially written artifact: if fn or the write
	// fails, the location is left as it was.
	Write(ctx context.Context, location string, fn func(w io.Writer) error) error
	// Remove deletes the artifact at location.
	Remove(ctx context.Context, location string) error
}

// Codec converts between in-memory data and bytes.
type Codec interface {
	Name() string
	Encode(w io.Writer, data any) error
	Decode(r io.Reader) (any, error)
}

// Assertion is an integrity predicate over in-memory data.
type Assertion func(data any) error
