// Package table provides the in-memory tabular representation shared by the
// CSV codec and the validation layer, plus the integrity checks that can be
// attached to table-valued resources and task functions.
package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Table is a rectangular set of string cells with named columns.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New creates an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Append adds a row. Values are formatted with Format and the row must have
// one value per column.
func (t *Table) Append(values ...any) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.Columns))
	}
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = Format(v)
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Column returns a copy of every cell in the named column.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("no column %q", name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = cell(row, idx)
	}
	return out, nil
}

// Float parses the cell at row/column as a float64.
func (t *Table) Float(row int, column string) (float64, error) {
	idx := t.Index(column)
	if idx < 0 {
		return 0, fmt.Errorf("no column %q", column)
	}
	if row < 0 || row >= len(t.Rows) {
		return 0, fmt.Errorf("row %d out of bounds", row)
	}
	raw := cell(t.Rows[row], idx)
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("row %d, column %q: %q is not numeric", row, column, raw)
	}
	return f, nil
}

// AddColumn appends a column whose cells are produced by fn for every row.
func (t *Table) AddColumn(name string, fn func(row int) (any, error)) error {
	if t.Index(name) >= 0 {
		return fmt.Errorf("column %q already exists", name)
	}
	for i := range t.Rows {
		v, err := fn(i)
		if err != nil {
			return fmt.Errorf("column %q, row %d: %w", name, i, err)
		}
		t.Rows[i] = append(t.Rows[i], Format(v))
	}
	t.Columns = append(t.Columns, name)
	return nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := New(t.Columns...)
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Format renders a cell value the way the CSV codec writes it.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// IsNull reports whether a cell holds a missing value.
func IsNull(cell string) bool {
	switch strings.TrimSpace(cell) {
	case "", "NA", "NaN", "nan", "null", "NULL":
		return true
	}
	return false
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}
