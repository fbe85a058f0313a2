package client

import (
	"database/sql"
	"iter"
	"slices"
)

// Cursor iterates the rows of an executed SELECT. Its fetch methods return
// rows exactly as the store produced them; Rows applies postprocessors.
// A cursor is closed when exhausted, by Close, or when the handle commits,
// rolls back or closes.
type Cursor struct {
	db      *DB
	table   string
	columns []string
	rows    *sql.Rows
	scanner *rowScanner
	closed  bool
	err     error
}

func (db *DB) newCursor(table string, cols []string, rows *sql.Rows) (*Cursor, error) {
	scanner, err := newRowScanner(rows)
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	c := &Cursor{
		db:      db,
		table:   table,
		columns: cols,
		rows:    rows,
		scanner: scanner,
	}
	db.cursors[c] = struct{}{}
	return c, nil
}

// Columns returns the fetched column names.
func (c *Cursor) Columns() []string {
	return slices.Clone(c.columns)
}

// FetchOne returns the next row, or nil when the cursor is exhausted.
func (c *Cursor) FetchOne() (Row, error) {
	if c.closed {
		return nil, c.err
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		_ = c.Close()
		return nil, c.err
	}
	row, err := c.scanner.scan(c.rows)
	if err != nil {
		c.err = err
		_ = c.Close()
		return nil, err
	}
	return row, nil
}

// FetchMany returns up to n rows. n < 1 fetches one row.
func (c *Cursor) FetchMany(n int) ([]Row, error) {
	if n < 1 {
		n = 1
	}
	var out []Row
	for len(out) < n {
		row, err := c.FetchOne()
		if err != nil {
			return out, err
		}
		if row == nil {
			break
		}
		out = append(out, row)
	}
	return out, nil
}

// FetchAll returns every remaining row.
func (c *Cursor) FetchAll() ([]Row, error) {
	var out []Row
	for {
		row, err := c.FetchOne()
		if err != nil {
			return out, err
		}
		if row == nil {
			return out, nil
		}
		out = append(out, row)
	}
}

// Rows iterates the remaining rows with postprocessors applied.
func (c *Cursor) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		defer c.Close()
		for {
			row, err := c.FetchOne()
			if err != nil {
				yield(nil, err)
				return
			}
			if row == nil {
				return
			}
			if err := c.postprocess(row); err != nil {
				yield(nil, err)
				return
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// Close releases the cursor. It is safe to call repeatedly.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	delete(c.db.cursors, c)
	return c.rows.Close()
}

// postprocess applies the table's postprocessors to row in place.
func (c *Cursor) postprocess(row Row) error {
	for i, col := range c.columns {
		if i >= len(row) {
			break
		}
		fn := c.db.postprocessor(c.table, col)
		if fn == nil {
			continue
		}
		v, err := fn(row[i], ProcessorContext{DB: c.db, Mode: ModeSelect, Table: c.table, Column: col})
		if err != nil {
			return err
		}
		row[i] = v
	}
	return nil
}
