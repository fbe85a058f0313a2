package client

import (
	"database/sql"
	"log/slog"

	"github.com/restomatic/restomatic-go/query/columns"
)

// Option configures a DB at Open.
type Option func(*options)

type options struct {
	pre         map[processorKey]Processor
	post        map[processorKey]Processor
	foreignKeys *bool
	idColumn    string
	middlewares []Middleware
	logger      *slog.Logger
	isolation   *IsolationLevel
}

func defaultOptions() *options {
	return &options{
		pre:      map[processorKey]Processor{},
		post:     map[processorKey]Processor{},
		idColumn: "id",
	}
}

func (o *options) validate(registry *columns.Registry) error {
	for _, set := range []map[processorKey]Processor{o.pre, o.post} {
		for key := range set {
			if err := registry.Check(key.table, key.column); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *options) txOptions() *sql.TxOptions {
	if o.isolation == nil {
		return nil
	}
	return NewTxOptions(*o.isolation, false)
}

// WithPreprocessor registers fn for values bound against table.column.
func WithPreprocessor(table, column string, fn Processor) Option {
	return func(o *options) {
		o.pre[processorKey{table, column}] = fn
	}
}

// WithPostprocessor registers fn for values fetched from table.column.
func WithPostprocessor(table, column string, fn Processor) Option {
	return func(o *options) {
		o.post[processorKey{table, column}] = fn
	}
}

// WithPreprocessors registers a table → column → processor map of preprocessors.
func WithPreprocessors(procs map[string]map[string]Processor) Option {
	return func(o *options) {
		for table, cols := range procs {
			for col, fn := range cols {
				o.pre[processorKey{table, col}] = fn
			}
		}
	}
}

// WithPostprocessors registers a table → column → processor map of postprocessors.
func WithPostprocessors(procs map[string]map[string]Processor) Option {
	return func(o *options) {
		for table, cols := range procs {
			for col, fn := range cols {
				o.post[processorKey{table, col}] = fn
			}
		}
	}
}

// WithForeignKeys turns referential integrity enforcement on or off for the connection.
func WithForeignKeys(enable bool) Option {
	return func(o *options) {
		o.foreignKeys = &enable
	}
}

// WithIDColumn sets the primary key column used by ByID and insert id
// reporting. An empty name keeps the default "id".
func WithIDColumn(column string) Option {
	return func(o *options) {
		if column != "" {
			o.idColumn = column
		}
	}
}

// WithMiddleware appends statement middlewares after the built-in logger.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, mw...)
	}
}

// WithLogger sets the logger used for statement and transaction logs.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithIsolation sets the isolation level of implicit transactions.
func WithIsolation(level IsolationLevel) Option {
	return func(o *options) {
		o.isolation = &level
	}
}
