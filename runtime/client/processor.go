package client

import (
	"github.com/restomatic/restomatic-go/query/sqlgen"
)

// Mode names the clause a processor is invoked for.
type Mode string

const (
	ModeWhere  Mode = "WHERE"
	ModeUpdate Mode = "UPDATE"
	ModeInsert Mode = "INSERT INTO"
	// ModeSelect is passed to postprocessors.
	ModeSelect Mode = "SELECT"
)

// ProcessorContext describes where a processor is being applied.
type ProcessorContext struct {
	DB     *DB
	Mode   Mode
	Table  string
	Column string
}

// Processor transforms a single column value. Preprocessors see values on
// their way to the store; postprocessors see fetched values.
type Processor func(value any, pc ProcessorContext) (any, error)

type processorKey struct {
	table  string
	column string
}

func (db *DB) preprocess(table, column string, mode Mode, v any) (any, error) {
	fn, ok := db.pre[processorKey{table, column}]
	if !ok {
		return v, nil
	}
	return fn(v, ProcessorContext{DB: db, Mode: mode, Table: table, Column: column})
}

func (db *DB) postprocessor(table, column string) Processor {
	return db.post[processorKey{table, column}]
}

// whereHook adapts the table's preprocessors to the where compiler.
func (db *DB) whereHook(table string) sqlgen.ValueHook {
	return func(column string, v any) (any, error) {
		return db.preprocess(table, column, ModeWhere, v)
	}
}
