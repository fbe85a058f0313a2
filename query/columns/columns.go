// Package columns holds the table mapper registry: the ordered column list
// of every table a handle may address.
package columns

import (
	"slices"
	"sort"

	qerrors "github.com/restomatic/restomatic-go/query/errors"
)

// Registry maps table names to their ordered column names.
// It is immutable after construction.
type Registry struct {
	tables map[string][]string
	index  map[string]map[string]int
}

// NewRegistry builds a registry from a table → columns map.
// Duplicate column names keep their first position.
func NewRegistry(tables map[string][]string) (*Registry, error) {
	if len(tables) == 0 {
		return nil, qerrors.BadInput("table mappers must contain at least one table")
	}

	r := &Registry{
		tables: make(map[string][]string, len(tables)),
		index:  make(map[string]map[string]int, len(tables)),
	}
	for table, cols := range tables {
		if table == "" {
			return nil, qerrors.BadInput("table mapper has an empty table name")
		}
		if len(cols) == 0 {
			return nil, qerrors.BadInput("table %q has no columns", table)
		}

		ordered := make([]string, 0, len(cols))
		idx := make(map[string]int, len(cols))
		for _, c := range cols {
			if c == "" {
				return nil, qerrors.BadInput("table %q has an empty column name", table)
			}
			if _, dup := idx[c]; dup {
				continue
			}
			idx[c] = len(ordered)
			ordered = append(ordered, c)
		}
		r.tables[table] = ordered
		r.index[table] = idx
	}
	return r, nil
}

// Tables returns the registered table names, sorted.
func (r *Registry) Tables() []string {
	out := make([]string, 0, len(r.tables))
	for t := range r.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Has reports whether table is registered.
func (r *Registry) Has(table string) bool {
	_, ok := r.tables[table]
	return ok
}

// Columns returns a copy of the table's column list.
func (r *Registry) Columns(table string) ([]string, error) {
	cols, ok := r.tables[table]
	if !ok {
		return nil, unknownTable(table)
	}
	return slices.Clone(cols), nil
}

// Contains reports whether column belongs to table.
func (r *Registry) Contains(table, column string) bool {
	_, ok := r.index[table][column]
	return ok
}

// Position returns the column's index in the table's column list.
func (r *Registry) Position(table, column string) (int, bool) {
	i, ok := r.index[table][column]
	return i, ok
}

// Check validates table and every column against the registry.
func (r *Registry) Check(table string, cols ...string) error {
	if !r.Has(table) {
		return unknownTable(table)
	}
	for _, c := range cols {
		if !r.Contains(table, c) {
			return qerrors.BadInput("column %q is not in table %q", c, table).
				WithDetail("table", table).
				WithDetail("column", c)
		}
	}
	return nil
}

// Order sorts cols into the table's column order. Columns must be validated first.
func (r *Registry) Order(table string, cols []string) []string {
	idx := r.index[table]
	out := slices.Clone(cols)
	sort.SliceStable(out, func(i, j int) bool { return idx[out[i]] < idx[out[j]] })
	return out
}

// Zip pairs names with row values positionally.
func Zip(names []string, row []any) map[string]any {
	out := make(map[string]any, len(names))
	for i, n := range names {
		if i < len(row) {
			out[n] = row[i]
		}
	}
	return out
}

func unknownTable(table string) *qerrors.Error {
	return qerrors.BadInput("table %q is not in the table mappers", table).WithDetail("table", table)
}
