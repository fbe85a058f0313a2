package client

import (
	"github.com/restomatic/restomatic-go/query/columns"
	qerrors "github.com/restomatic/restomatic-go/query/errors"
)

// Row is one fetched row in column order.
type Row []any

// Record is one fetched row keyed by column name.
type Record map[string]any

// Result is an executed statement. Reads hold a cursor; writes hold the
// generated ids and the affected row count.
type Result struct {
	query    *Query
	cursor   *Cursor
	consumed bool
	ids      []int64
	affected int64
}

// LastRowID returns the id generated by the last inserted row, or 0.
func (r *Result) LastRowID() int64 {
	if len(r.ids) == 0 {
		return 0
	}
	return r.ids[len(r.ids)-1]
}

// RowIDs returns the generated ids of every inserted row, in insertion order.
func (r *Result) RowIDs() []int64 {
	out := make([]int64, len(r.ids))
	copy(out, r.ids)
	return out
}

// RowsAffected returns the number of rows written.
func (r *Result) RowsAffected() int64 { return r.affected }

// Columns returns the fetched column names.
func (r *Result) Columns() []string {
	if r.cursor == nil {
		return nil
	}
	return r.cursor.Columns()
}

// take hands the cursor to exactly one accessor.
func (r *Result) take() (*Cursor, error) {
	if r.cursor == nil {
		return nil, qerrors.BadInput("%s statements return no rows", r.query.verb)
	}
	if r.consumed {
		return nil, qerrors.BadInput("query already consumed")
	}
	r.consumed = true
	return r.cursor, nil
}

func (q *Query) cursor() (*Cursor, error) {
	res, err := q.Run()
	if err != nil {
		return nil, err
	}
	return res.take()
}

// fetch reads at most limit postprocessed rows; limit < 0 reads all.
func (q *Query) fetch(limit int) ([]Row, error) {
	c, err := q.cursor()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var rows []Row
	for limit < 0 || len(rows) < limit {
		row, err := c.FetchOne()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		if err := c.postprocess(row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Raw returns the statement's cursor. Rows fetched from it bypass postprocessors.
func (q *Query) Raw() (*Cursor, error) {
	return q.cursor()
}

// One returns the only matching row. Zero or several rows is a bad result.
func (q *Query) One() (Row, error) {
	rows, err := q.fetch(2)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, cardinality("exactly one row", len(rows))
	}
	return rows[0], nil
}

// OneOrNone returns the only matching row, or nil when none match.
func (q *Query) OneOrNone() (Row, error) {
	rows, err := q.fetch(2)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return rows[0], nil
	}
	return nil, cardinality("at most one row", len(rows))
}

// All returns every matching row, or nil when none match.
func (q *Query) All() ([]Row, error) {
	return q.fetch(-1)
}

// Scalar returns the single value of a one-row, one-column result.
func (q *Query) Scalar() (any, error) {
	row, err := q.One()
	if err != nil {
		return nil, err
	}
	if len(row) != 1 {
		return nil, qerrors.BadResult("expected exactly one column, got %d", len(row)).
			WithDetail("columns", len(row))
	}
	return row[0], nil
}

// OneMapped is One keyed by column name.
func (q *Query) OneMapped() (Record, error) {
	row, err := q.One()
	if err != nil {
		return nil, err
	}
	return q.mapRow(row), nil
}

// OneOrNoneMapped is OneOrNone keyed by column name.
func (q *Query) OneOrNoneMapped() (Record, error) {
	row, err := q.OneOrNone()
	if err != nil || row == nil {
		return nil, err
	}
	return q.mapRow(row), nil
}

// AllMapped is All keyed by column name.
func (q *Query) AllMapped() ([]Record, error) {
	rows, err := q.All()
	if err != nil || rows == nil {
		return nil, err
	}
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = q.mapRow(row)
	}
	return out, nil
}

func (q *Query) mapRow(row Row) Record {
	return Record(columns.Zip(q.resultColumns(), row))
}

func cardinality(want string, got int) *qerrors.Error {
	desc := "none"
	if got > 1 {
		desc = "more than one"
	}
	return qerrors.BadResult("expected %s, found %s", want, desc).WithDetail("rows", got)
}
