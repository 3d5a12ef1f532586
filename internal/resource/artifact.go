package resource

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vk/artiflow/internal/runctx"
	"github.com/vk/artiflow/internal/table"
)

// Artifact is the standard Resource implementation.
type Artifact struct {
	name       string
	location   string
	store      Store
	codec      Codec
	assertions []Assertion
	readOnly   bool
}

// Option configures an Artifact.
type Option func(*Artifact)

// WithAssertions appends custom integrity assertions.
func WithAssertions(assertions ...Assertion) Option {
	return func(a *Artifact) {
		a.assertions = append(a.assertions, assertions...)
	}
}

// WithTableChecks appends table checks. Non-table data fails them.
func WithTableChecks(checks ...table.Check) Option {
	return func(a *Artifact) {
		for _, check := range checks {
			a.assertions = append(a.assertions, TableAssertion(check))
		}
	}
}

// WithColumns declares the exact column set of a table resource.
func WithColumns(columns ...string) Option {
	return func(a *Artifact) {
		a.assertions = append(a.assertions, TableAssertion(table.Columns(columns...)))
	}
}

// ReadOnly makes Delete fail with ErrDeleteUnsupported.
func ReadOnly() Option {
	return func(a *Artifact) { a.readOnly = true }
}

// New composes an artifact from a store and a codec.
func New(name, location string, store Store, codec Codec, opts ...Option) *Artifact {
	a := &Artifact{name: name, location: location, store: store, codec: codec}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CSV is a local-file table resource.
func CSV(name, location string, opts ...Option) *Artifact {
	return New(name, location, LocalStore{}, CSVCodec{}, opts...)
}

// Name implements Resource.
func (a *Artifact) Name() string { return a.name }

// Location implements Resource.
func (a *Artifact) Location() string { return a.location }

// Resolve implements Resource.
func (a *Artifact) Resolve(rc *runctx.Context) (string, error) {
	loc, err := rc.Render(a.location)
	if err != nil {
		return "", fmt.Errorf("resource <%s>: %w", a.name, err)
	}
	return loc, nil
}

// Check implements Resource.
func (a *Artifact) Check(ctx context.Context, rc *runctx.Context) (bool, error) {
	loc, err := a.Resolve(rc)
	if err != nil {
		return false, err
	}
	ok, err := a.store.Exists(ctx, loc)
	if err != nil {
		return false, fmt.Errorf("resource <%s>: checking %q: %w", a.name, loc, err)
	}
	return ok, nil
}

// Load implements Resource.
func (a *Artifact) Load(ctx context.Context, rc *runctx.Context) (any, error) {
	loc, err := a.Resolve(rc)
	if err != nil {
		return nil, err
	}
	r, err := a.store.Open(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("resource <%s>: opening %q: %w", a.name, loc, err)
	}
	defer r.Close()

	data, err := a.codec.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("resource <%s>: decoding %s from %q: %w", a.name, a.codec.Name(), loc, err)
	}
	if err := a.Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Save implements Resource.
func (a *Artifact) Save(ctx context.Context, rc *runctx.Context, data any) error {
	if err := a.Validate(data); err != nil {
		return err
	}
	loc, err := a.Resolve(rc)
	if err != nil {
		return err
	}
	err = a.store.Write(ctx, loc, func(w io.Writer) error {
		return a.codec.Encode(w, data)
	})
	if err != nil {
		return fmt.Errorf("resource <%s>: writing %q: %w", a.name, loc, err)
	}
	return nil
}

// Delete implements Resource.
func (a *Artifact) Delete(ctx context.Context, rc *runctx.Context) error {
	if a.readOnly {
		return fmt.Errorf("could not delete resource <%s>: %w", a.name, ErrDeleteUnsupported)
	}
	loc, err := a.Resolve(rc)
	if err != nil {
		return err
	}
	if err := a.store.Remove(ctx, loc); err != nil {
		return fmt.Errorf("resource <%s>: removing %q: %w", a.name, loc, err)
	}
	return nil
}

// Validate implements Resource.
func (a *Artifact) Validate(data any) error {
	var errs []error
	for _, assertion := range a.assertions {
		if err := assertion(data); err != nil {
			errs = append(errs, table.WithResource(err, a.name))
		}
	}
	return errors.Join(errs...)
}

// TableAssertion adapts a table check into an assertion over arbitrary data.
func TableAssertion(check table.Check) Assertion {
	return func(data any) error {
		t, err := AsTable(data)
		if err != nil {
			return err
		}
		return check(t)
	}
}

// AsTable returns data as a table or a validation error naming its type.
func AsTable(data any) (*table.Table, error) {
	switch t := data.(type) {
	case *table.Table:
		if t == nil {
			return nil, &table.ValidationError{Reason: "table is nil"}
		}
		return t, nil
	case table.Table:
		return &t, nil
	default:
		return nil, &table.ValidationError{Reason: fmt.Sprintf("expected tabular data, got %T", data)}
	}
}
