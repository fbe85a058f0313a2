package client

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/restomatic/restomatic-go/query/ast"
	qerrors "github.com/restomatic/restomatic-go/query/errors"
	"github.com/restomatic/restomatic-go/query/sqlgen"
	"github.com/restomatic/restomatic-go/query/validate"
)

// Verb is the statement kind a Query builds.
type Verb string

const (
	VerbSelect Verb = "SELECT"
	VerbInsert Verb = "INSERT INTO"
	VerbUpdate Verb = "UPDATE"
	VerbDelete Verb = "DELETE"
	// VerbRaw marks statements passed through Execute.
	VerbRaw Verb = "RAW"
)

type insertRow struct {
	columns []string
	values  []interface{}
}

// Query is the staged state of one statement. Fluent calls record the first
// validation failure; every later call is then a no-op and the terminal call
// returns that error. A Query executes at most once.
type Query struct {
	db    *DB
	ctx   context.Context
	verb  Verb
	table string

	columns  []string
	wildcard bool
	count    bool

	where   *sqlgen.Clause
	orderBy []ast.Order
	limit   *int
	offset  *int
	// once holds the clauses that may be set a single time.
	once map[string]any

	inserts   []insertRow
	setCols   []string
	setValues []interface{}
	autorun   bool

	result *Result
	err    error
}

func (db *DB) newQuery(verb Verb, table string) *Query {
	q := &Query{
		db:      db,
		ctx:     context.Background(),
		verb:    verb,
		table:   table,
		autorun: true,
	}
	if db.closed {
		return q.fail(ErrClosed)
	}
	if err := db.registry.Check(table); err != nil {
		return q.fail(err)
	}
	return q
}

func (q *Query) fail(err error) *Query {
	if q.err == nil {
		q.err = err
	}
	return q
}

// Err returns the first error recorded by the builder.
func (q *Query) Err() error { return q.err }

// Table returns the target table.
func (q *Query) Table() string { return q.table }

// Verb returns the statement kind.
func (q *Query) Verb() Verb { return q.verb }

func (q *Query) badInput(format string, args ...any) *Query {
	return q.fail(qerrors.BadInput(format, args...).WithDetail("table", q.table))
}

// claim marks clause as set. A second claim records message as BadInput.
func (q *Query) claim(clause, message string) bool {
	if q.once == nil {
		q.once = map[string]any{}
	}
	if err := validate.SetOnce(q.once, []string{clause}, true, clause); err != nil {
		q.fail(qerrors.BadInput("%s", message).WithDetail("table", q.table).Wrap(err))
		return false
	}
	return true
}

func (q *Query) requireVerb(call string, verbs ...Verb) bool {
	if q.err != nil {
		return false
	}
	if !slices.Contains(verbs, q.verb) {
		q.badInput("%s is not valid for %s statements", call, q.verb)
		return false
	}
	return true
}

func (q *Query) selectAll() *Query {
	if q.err != nil {
		return q
	}
	cols, err := q.db.registry.Columns(q.table)
	if err != nil {
		return q.fail(err)
	}
	q.columns = cols
	q.wildcard = true
	return q
}

func (q *Query) selectColumns(cols []string) *Query {
	if q.err != nil {
		return q
	}
	if err := q.db.registry.Check(q.table, cols...); err != nil {
		return q.fail(err)
	}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c] {
			return q.badInput("column %q is listed more than once", c)
		}
		seen[c] = true
	}
	q.columns = slices.Clone(cols)
	return q
}

// WithContext sets the context passed to the driver.
func (q *Query) WithContext(ctx context.Context) *Query {
	if ctx != nil {
		q.ctx = ctx
	}
	return q
}

// AutoRun controls whether Values and ValuesMapped execute the insert
// immediately. It defaults to true.
func (q *Query) AutoRun(enabled bool) *Query {
	q.autorun = enabled
	return q
}

// Where filters the statement by a predicate tree: an ast.Predicate or its
// JSON-shaped form. It may be called once per statement.
func (q *Query) Where(predicate any) *Query {
	if !q.requireVerb("where", VerbSelect, VerbUpdate, VerbDelete) {
		return q
	}
	if !q.claim("where", "where may only be set once; combine conditions with and/or") {
		return q
	}

	p, err := ast.Parse(predicate)
	if err != nil {
		return q.fail(err)
	}
	clause, err := q.db.gen.CompileWhere(p, q.table, q.db.registry, q.db.whereHook(q.table))
	if err != nil {
		return q.fail(err)
	}
	q.where = clause
	return q
}

// ByID filters by the handle's id column.
func (q *Query) ByID(id any) *Query {
	return q.Where(ast.Eq(q.db.idColumn, id))
}

// OrderBy adds a sort key: a column name or {"column": name, "direction": "asc"|"desc"}.
// Repeated calls add keys in call order.
func (q *Query) OrderBy(spec any) *Query {
	if !q.requireVerb("order_by", VerbSelect) {
		return q
	}
	o, err := ast.ParseOrder(spec)
	if err != nil {
		return q.fail(err)
	}
	if err := q.db.registry.Check(q.table, o.Column); err != nil {
		return q.fail(err)
	}
	q.orderBy = append(q.orderBy, o)
	return q
}

// Limit caps the number of rows. n must coerce to an integer of 1 or greater.
func (q *Query) Limit(n any) *Query {
	if !q.requireVerb("limit", VerbSelect) {
		return q
	}
	if !q.claim("limit", "limit may only be set once") {
		return q
	}
	v, err := validate.TypePosInt(n)
	if err != nil {
		return q.fail(qerrors.BadInput("limit must be a positive integer, 1 or greater").Wrap(err))
	}
	q.limit = &v
	return q
}

// Offset skips rows. n must coerce to an integer of 0 or greater.
func (q *Query) Offset(n any) *Query {
	if !q.requireVerb("offset", VerbSelect) {
		return q
	}
	if !q.claim("offset", "offset may only be set once") {
		return q
	}
	v, err := validate.TypeNonNegInt(n)
	if err != nil {
		return q.fail(qerrors.BadInput("offset must be a non-negative integer").Wrap(err))
	}
	q.offset = &v
	return q
}

// Count selects COUNT(*) instead of columns.
func (q *Query) Count() *Query {
	if !q.requireVerb("count", VerbSelect) {
		return q
	}
	if !q.claim("count", "count may only be set once") {
		return q
	}
	q.count = true
	return q
}

// Values sets positional insert rows: one row matching the declared
// columns, or a sequence of such rows.
func (q *Query) Values(rows any) *Query {
	if !q.requireVerb("values", VerbInsert) {
		return q
	}
	if !q.claim("values", "values may only be set once") {
		return q
	}

	items, ok := ast.Sequence(rows)
	if !ok || len(items) == 0 {
		return q.badInput("values must be a row or a non-empty list of rows")
	}

	nested := 0
	for _, item := range items {
		if _, ok := ast.Sequence(item); ok {
			nested++
		}
	}
	switch nested {
	case 0:
		items = []any{items}
	case len(items):
	default:
		return q.badInput("values must not mix rows and scalar values")
	}

	inserts := make([]insertRow, 0, len(items))
	for i, item := range items {
		row, _ := ast.Sequence(item)
		if err := validate.ExpectLen(row, len(q.columns), fmt.Sprintf("row %d", i)); err != nil {
			return q.fail(qerrors.BadInput("row %d has %d values, expected %d", i, len(row), len(q.columns)).
				WithDetail("table", q.table).
				Wrap(err))
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			pv, err := q.db.preprocess(q.table, q.columns[j], ModeInsert, v)
			if err != nil {
				return q.fail(err)
			}
			values[j] = pv
		}
		inserts = append(inserts, insertRow{columns: q.columns, values: values})
	}
	return q.setInserts(inserts)
}

// ValuesMapped sets insert rows keyed by column name: one mapping or a
// sequence of mappings. Omitted columns take the store default.
func (q *Query) ValuesMapped(rows any) *Query {
	if !q.requireVerb("values_mapped", VerbInsert) {
		return q
	}
	if !q.claim("values", "values may only be set once") {
		return q
	}

	var records []map[string]any
	if m, ok := ast.Mapping(rows); ok {
		records = []map[string]any{m}
	} else if items, ok := ast.Sequence(rows); ok && len(items) > 0 {
		for i, item := range items {
			m, ok := ast.Mapping(item)
			if !ok {
				return q.badInput("row %d must be a dictionary of columns", i)
			}
			records = append(records, m)
		}
	} else {
		return q.badInput("values_mapped must be a dictionary or a non-empty list of dictionaries")
	}

	inserts := make([]insertRow, 0, len(records))
	for _, rec := range records {
		cols := make([]string, 0, len(rec))
		for c := range rec {
			if !slices.Contains(q.columns, c) {
				return q.fail(qerrors.BadInput("column %q is not in table %q", c, q.table).
					WithDetail("table", q.table).
					WithDetail("column", c))
			}
			cols = append(cols, c)
		}
		cols = q.db.registry.Order(q.table, cols)

		values := make([]interface{}, len(cols))
		for j, c := range cols {
			pv, err := q.db.preprocess(q.table, c, ModeInsert, rec[c])
			if err != nil {
				return q.fail(err)
			}
			values[j] = pv
		}
		inserts = append(inserts, insertRow{columns: cols, values: values})
	}
	return q.setInserts(inserts)
}

func (q *Query) setInserts(inserts []insertRow) *Query {
	q.inserts = inserts
	if q.autorun {
		if _, err := q.Run(); err != nil {
			return q.fail(err)
		}
	}
	return q
}

// SetValues sets the UPDATE assignments, a map of column to new value.
func (q *Query) SetValues(values any) *Query {
	if !q.requireVerb("set_values", VerbUpdate) {
		return q
	}
	if !q.claim("set", "set values may only be set once") {
		return q
	}

	m, ok := ast.Mapping(values)
	if !ok {
		return q.badInput("set values must be a dictionary of columns")
	}
	if len(m) == 0 {
		return q.badInput("set values must contain at least one column")
	}

	cols := make([]string, 0, len(m))
	for c := range m {
		cols = append(cols, c)
	}
	if err := q.db.registry.Check(q.table, cols...); err != nil {
		return q.fail(err)
	}
	cols = q.db.registry.Order(q.table, cols)

	vals := make([]interface{}, len(cols))
	for i, c := range cols {
		pv, err := q.db.preprocess(q.table, c, ModeUpdate, m[c])
		if err != nil {
			return q.fail(err)
		}
		vals[i] = pv
	}
	q.setCols = cols
	q.setValues = vals
	return q
}

// Run executes the statement. A Query executes once; later calls return the same Result.
func (q *Query) Run() (*Result, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.result != nil {
		return q.result, nil
	}

	var res *Result
	var err error
	switch q.verb {
	case VerbSelect:
		res, err = q.runSelect()
	case VerbInsert:
		res, err = q.runInsert()
	case VerbUpdate:
		res, err = q.runUpdate()
	case VerbDelete:
		res, err = q.runDelete()
	default:
		err = qerrors.BadInput("unknown statement verb %q", q.verb)
	}
	if err != nil {
		q.fail(err)
		return nil, err
	}
	q.result = res
	return res, nil
}

// Statement renders the SQL the query would run. For inserts it renders the first row.
func (q *Query) Statement() (*sqlgen.Query, error) {
	if q.err != nil {
		return nil, q.err
	}
	switch q.verb {
	case VerbSelect:
		return q.db.gen.GenerateSelect(q.selectSpec()), nil
	case VerbInsert:
		if len(q.inserts) == 0 {
			return nil, qerrors.BadInput("insert requires values")
		}
		return q.insertStatement(q.inserts[0]), nil
	case VerbUpdate:
		if q.setCols == nil {
			return nil, qerrors.BadInput("update requires set values")
		}
		return q.db.gen.GenerateUpdate(q.table, q.setCols, q.setValues, q.where), nil
	case VerbDelete:
		return q.db.gen.GenerateDelete(q.table, q.where), nil
	}
	return nil, qerrors.BadInput("unknown statement verb %q", q.verb)
}

func (q *Query) selectSpec() sqlgen.Select {
	return sqlgen.Select{
		Table:   q.table,
		Columns: q.columns,
		Count:   q.count,
		Where:   q.where,
		OrderBy: q.orderBy,
		Limit:   q.limit,
		Offset:  q.offset,
	}
}

// resultColumns names the fetched columns in order.
func (q *Query) resultColumns() []string {
	if q.count {
		return []string{"count"}
	}
	return q.columns
}

func (q *Query) runSelect() (*Result, error) {
	stmt := q.db.gen.GenerateSelect(q.selectSpec())
	rows, err := q.db.query(q.ctx, q.verb, q.table, stmt.SQL, stmt.Args)
	if err != nil {
		return nil, err
	}
	// COUNT(*) is not a table column and gets no postprocessing.
	table := q.table
	if q.count {
		table = ""
	}
	cursor, err := q.db.newCursor(table, q.resultColumns(), rows)
	if err != nil {
		return nil, err
	}
	return &Result{query: q, cursor: cursor}, nil
}

func (q *Query) returningColumn() string {
	if q.db.gen.Returning() && q.db.registry.Contains(q.table, q.db.idColumn) {
		return q.db.idColumn
	}
	return ""
}

func (q *Query) insertStatement(row insertRow) *sqlgen.Query {
	return q.db.gen.GenerateInsert(q.table, row.columns, row.values, q.returningColumn())
}

func (q *Query) runInsert() (*Result, error) {
	if len(q.inserts) == 0 {
		return nil, qerrors.BadInput("insert requires values").WithDetail("table", q.table)
	}
	if err := q.db.begin(q.ctx); err != nil {
		return nil, err
	}

	res := &Result{query: q, ids: make([]int64, 0, len(q.inserts))}
	returning := q.returningColumn() != ""
	for _, row := range q.inserts {
		stmt := q.insertStatement(row)
		var id int64
		if returning {
			var err error
			id, err = q.insertReturning(stmt)
			if err != nil {
				return nil, err
			}
		} else {
			r, err := q.db.exec(q.ctx, q.verb, q.table, stmt.SQL, stmt.Args)
			if err != nil {
				return nil, err
			}
			// drivers without LastInsertId support report 0
			id, _ = r.LastInsertId()
		}
		res.ids = append(res.ids, id)
		res.affected++
	}
	return res, nil
}

func (q *Query) insertReturning(stmt *sqlgen.Query) (int64, error) {
	rows, err := q.db.query(q.ctx, q.verb, q.table, stmt.SQL, stmt.Args)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var id sql.NullInt64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to read inserted id: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return id.Int64, nil
}

func (q *Query) runUpdate() (*Result, error) {
	if q.setCols == nil {
		return nil, qerrors.BadInput("update requires set values").WithDetail("table", q.table)
	}
	stmt := q.db.gen.GenerateUpdate(q.table, q.setCols, q.setValues, q.where)
	return q.runWrite(stmt)
}

func (q *Query) runDelete() (*Result, error) {
	return q.runWrite(q.db.gen.GenerateDelete(q.table, q.where))
}

func (q *Query) runWrite(stmt *sqlgen.Query) (*Result, error) {
	if err := q.db.begin(q.ctx); err != nil {
		return nil, err
	}
	r, err := q.db.exec(q.ctx, q.verb, q.table, stmt.SQL, stmt.Args)
	if err != nil {
		return nil, err
	}
	affected, err := r.RowsAffected()
	if err != nil {
		return nil, err
	}
	return &Result{query: q, affected: affected}, nil
}
