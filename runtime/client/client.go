// Package client provides the database handle and the fluent query builder.
package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/restomatic/restomatic-go/internal/debug"
	"github.com/restomatic/restomatic-go/query/columns"
	qerrors "github.com/restomatic/restomatic-go/query/errors"
	"github.com/restomatic/restomatic-go/query/sqlgen"
)

var (
	// ErrNoTransaction is returned by Commit when nothing is pending.
	ErrNoTransaction = errors.New("no transaction in progress")

	// ErrClosed is returned when a closed handle is used.
	ErrClosed = errors.New("database handle is closed")
)

// DB is a handle on one logical connection to a relational store. It owns
// the table mappers, the processors and the implicit transaction.
// A DB is not safe for concurrent use.
type DB struct {
	provider string
	gen      sqlgen.Generator
	sqlDB    *sql.DB
	conn     *sql.Conn
	tx       *sql.Tx
	txOpts   *sql.TxOptions

	registry *columns.Registry
	pre      map[processorKey]Processor
	post     map[processorKey]Processor
	idColumn string

	middlewares []Middleware
	logger      *slog.Logger
	cursors     map[*Cursor]struct{}
	closed      bool
}

// Open connects to the store and returns a handle bound to tables, a map of
// table name to ordered column names.
func Open(provider, dsn string, tables map[string][]string, opts ...Option) (*DB, error) {
	return OpenContext(context.Background(), provider, dsn, tables, opts...)
}

// OpenContext is Open with a context for connection setup.
func OpenContext(ctx context.Context, provider, dsn string, tables map[string][]string, opts ...Option) (*DB, error) {
	registry, err := columns.NewRegistry(tables)
	if err != nil {
		return nil, err
	}

	gen, err := sqlgen.NewGenerator(provider)
	if err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.validate(registry); err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(getDriverName(provider), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", provider, err)
	}

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", provider, err)
	}

	logger := o.logger
	if logger == nil {
		logger = debug.Logger()
	}

	db := &DB{
		provider:    provider,
		gen:         gen,
		sqlDB:       sqlDB,
		conn:        conn,
		txOpts:      o.txOptions(),
		registry:    registry,
		pre:         o.pre,
		post:        o.post,
		idColumn:    o.idColumn,
		middlewares: append([]Middleware{LoggingMiddleware(o.logger)}, o.middlewares...),
		logger:      logger.With("provider", provider),
		cursors:     map[*Cursor]struct{}{},
	}

	if o.foreignKeys != nil {
		if stmt := gen.ForeignKeys(*o.foreignKeys); stmt != "" {
			if _, err := db.ExecuteContext(ctx, stmt); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to configure foreign keys: %w", err)
			}
		}
	}

	db.logger.Debug("database handle opened", "tables", registry.Tables())
	return db, nil
}

// WithDB opens a handle, passes it to fn and closes it on every exit path,
// including a panic in fn.
func WithDB(provider, dsn string, tables map[string][]string, fn func(db *DB) error, opts ...Option) (err error) {
	db, err := Open(provider, dsn, tables, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(db)
}

// getDriverName maps provider names to Go database driver names
func getDriverName(provider string) string {
	switch provider {
	case "postgresql", "postgres":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return ""
	}
}

// Provider returns the provider name the handle was opened with.
func (db *DB) Provider() string { return db.provider }

// Generator returns the SQL generator for the handle's dialect.
func (db *DB) Generator() sqlgen.Generator { return db.gen }

// Registry returns the table mapper registry.
func (db *DB) Registry() *columns.Registry { return db.registry }

// IDColumn returns the column used by ByID.
func (db *DB) IDColumn() string { return db.idColumn }

// InTransaction reports whether a transaction is open.
func (db *DB) InTransaction() bool { return db.tx != nil }

// Select starts a SELECT of the named columns. A single "*" selects every
// column in table mapper order.
func (db *DB) Select(table string, cols ...string) *Query {
	q := db.newQuery(VerbSelect, table)
	if len(cols) == 1 && cols[0] == "*" {
		return q.selectAll()
	}
	if len(cols) == 0 {
		return q.fail(qerrors.BadInput("select requires at least one column"))
	}
	return q.selectColumns(cols)
}

// SelectAll starts a SELECT of every column in table mapper order.
func (db *DB) SelectAll(table string) *Query {
	return db.newQuery(VerbSelect, table).selectAll()
}

// Insert starts an INSERT of the named columns, or of every mapped column when none are given.
func (db *DB) Insert(table string, cols ...string) *Query {
	q := db.newQuery(VerbInsert, table)
	if len(cols) == 0 {
		return q.selectAll()
	}
	return q.selectColumns(cols)
}

// InsertMapped inserts one record or a sequence of records keyed by column name.
// With autorun enabled (the default) the statement executes immediately.
func (db *DB) InsertMapped(table string, rows any) *Query {
	return db.Insert(table).ValuesMapped(rows)
}

// Update starts an UPDATE.
func (db *DB) Update(table string) *Query {
	return db.newQuery(VerbUpdate, table).selectAll()
}

// UpdateMapped starts an UPDATE setting values, a map of column to new value.
func (db *DB) UpdateMapped(table string, values any) *Query {
	return db.Update(table).SetValues(values)
}

// Delete starts a DELETE.
func (db *DB) Delete(table string) *Query {
	return db.newQuery(VerbDelete, table).selectAll()
}

// Execute runs a raw statement. It never opens a transaction but runs inside
// the open one if there is one.
func (db *DB) Execute(query string, args ...interface{}) (sql.Result, error) {
	return db.ExecuteContext(context.Background(), query, args...)
}

// ExecuteContext is Execute with a context.
func (db *DB) ExecuteContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if db.closed {
		return nil, ErrClosed
	}
	return db.exec(ctx, VerbRaw, "", query, args)
}

func (db *DB) target() interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
} {
	if db.tx != nil {
		return db.tx
	}
	return db.conn
}

func (db *DB) exec(ctx context.Context, verb Verb, table, query string, args []interface{}) (sql.Result, error) {
	var res sql.Result
	err := db.runWithMiddleware(ctx, verb, table, query, args, func() error {
		var err error
		res, err = db.target().ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

func (db *DB) query(ctx context.Context, verb Verb, table, query string, args []interface{}) (*sql.Rows, error) {
	var rows *sql.Rows
	err := db.runWithMiddleware(ctx, verb, table, query, args, func() error {
		var err error
		rows, err = db.target().QueryContext(ctx, query, args...)
		return err
	})
	return rows, err
}

// Close rolls back any open transaction and releases the connection.
// Calling it again is a no-op.
func (db *DB) Close() error {
	if db.closed {
		return nil
	}
	db.closed = true
	db.closeCursors()

	var errs []error
	if db.tx != nil {
		if err := db.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
		db.tx = nil
	}
	if err := db.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		errs = append(errs, err)
	}
	if err := db.sqlDB.Close(); err != nil {
		errs = append(errs, err)
	}

	db.logger.Debug("database handle closed")
	return errors.Join(errs...)
}

func (db *DB) closeCursors() {
	for c := range db.cursors {
		_ = c.Close()
	}
}
