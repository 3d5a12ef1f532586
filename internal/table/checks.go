package table

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ValidationError describes a violated data expectation. Resource and Column
// are empty when not applicable or not yet known.
type ValidationError struct {
	Resource string
	Column   string
	Reason   string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Resource != "" {
		fmt.Fprintf(&b, "resource <%s>: ", e.Resource)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, "column %q: ", e.Column)
	}
	b.WriteString(e.Reason)
	return b.String()
}

// WithResource stamps a resource name onto every ValidationError in err that
// does not carry one yet. Other errors are wrapped with the resource name.
func WithResource(err error, resource string) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		if verr.Resource == "" {
			verr.Resource = resource
		}
		return err
	}
	return fmt.Errorf("resource <%s>: %w", resource, err)
}

// Check is a predicate over a table returning a *ValidationError on violation.
type Check func(t *Table) error

// Run applies checks in order and returns the first failure.
func Run(t *Table, checks ...Check) error {
	for _, check := range checks {
		if err := check(t); err != nil {
			return err
		}
	}
	return nil
}

// Columns requires the table's column set to equal the given set exactly.
// Column order is not significant.
func Columns(expected ...string) Check {
	want := sortedUnique(expected)
	return func(t *Table) error {
		got := sortedUnique(t.Columns)
		if strings.Join(got, "\x00") == strings.Join(want, "\x00") {
			return nil
		}
		return &ValidationError{Reason: fmt.Sprintf(
			"column set mismatch: columns do not match expected. Present: %v. Expected: %v.", got, want)}
	}
}

// NotNull rejects missing values in the given columns, or in every column
// when none are named.
func NotNull(columns ...string) Check {
	return func(t *Table) error {
		cols := columns
		if len(cols) == 0 {
			cols = t.Columns
		}
		for _, col := range cols {
			idx := t.Index(col)
			if idx < 0 {
				return &ValidationError{Column: col, Reason: "column is missing"}
			}
			for r, row := range t.Rows {
				if IsNull(cell(row, idx)) {
					return &ValidationError{Column: col, Reason: fmt.Sprintf("null values present (first at row %d)", r)}
				}
			}
		}
		return nil
	}
}

// Unique requires every combination of the key columns to occur at most once.
func Unique(keys ...string) Check {
	return func(t *Table) error {
		if len(keys) == 0 {
			return nil
		}
		idxs := make([]int, len(keys))
		for i, k := range keys {
			idxs[i] = t.Index(k)
			if idxs[i] < 0 {
				return &ValidationError{Column: k, Reason: "key column is missing"}
			}
		}
		seen := make(map[string]int, len(t.Rows))
		for r, row := range t.Rows {
			parts := make([]string, len(idxs))
			for i, idx := range idxs {
				parts[i] = cell(row, idx)
			}
			key := strings.Join(parts, "\x1f")
			if first, dup := seen[key]; dup {
				return &ValidationError{
					Column: strings.Join(keys, ","),
					Reason: fmt.Sprintf("duplicate key %v at rows %d and %d", parts, first, r),
				}
			}
			seen[key] = r
		}
		return nil
	}
}

// Range requires every value in column to lie within [min, max]. Use
// math.Inf for an open bound. Null cells are ignored; combine with NotNull to
// reject them.
func Range(column string, min, max float64) Check {
	return func(t *Table) error {
		idx := t.Index(column)
		if idx < 0 {
			return &ValidationError{Column: column, Reason: "column is missing"}
		}
		for r, row := range t.Rows {
			if IsNull(cell(row, idx)) {
				continue
			}
			v, err := t.Float(r, column)
			if err != nil {
				return &ValidationError{Column: column, Reason: err.Error()}
			}
			if v < min || v > max {
				return &ValidationError{Column: column, Reason: fmt.Sprintf(
					"value out of range: %v at row %d not in [%s, %s]", v, r, bound(min), bound(max))}
			}
		}
		return nil
	}
}

// AtLeast is Range with an open upper bound.
func AtLeast(column string, min float64) Check {
	return Range(column, min, math.Inf(1))
}

// AtMost is Range with an open lower bound.
func AtMost(column string, max float64) Check {
	return Range(column, math.Inf(-1), max)
}

func bound(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "+inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return fmt.Sprint(f)
}

func sortedUnique(in []string) []string {
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
