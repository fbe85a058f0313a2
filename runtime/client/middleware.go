// Package client provides middleware support for statement hooks.
package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/restomatic/restomatic-go/internal/debug"
)

// StatementEvent represents a statement execution event
type StatementEvent struct {
	Verb     Verb
	Table    string
	SQL      string
	Args     []interface{}
	Duration time.Duration
	Error    error
	Start    time.Time
	End      time.Time
}

// Middleware is a function that intercepts statements
type Middleware func(ctx context.Context, event *StatementEvent, next func() error) error

// runWithMiddleware executes a statement through the middleware chain
func (db *DB) runWithMiddleware(ctx context.Context, verb Verb, table, sql string, args []interface{}, exec func() error) error {
	event := &StatementEvent{
		Verb:  verb,
		Table: table,
		SQL:   sql,
		Args:  args,
		Start: time.Now(),
	}

	var next func() error
	index := 0

	next = func() error {
		if index >= len(db.middlewares) {
			err := exec()
			event.End = time.Now()
			event.Duration = event.End.Sub(event.Start)
			event.Error = err
			return err
		}

		middleware := db.middlewares[index]
		index++
		return middleware(ctx, event, next)
	}

	return next()
}

// LoggingMiddleware logs every statement at debug level. A nil logger
// resolves to the process-wide debug logger on each call.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(ctx context.Context, event *StatementEvent, next func() error) error {
		l := logger
		if l == nil {
			l = debug.Logger()
		}
		err := next()
		if err != nil {
			l.DebugContext(ctx, "statement failed",
				"verb", event.Verb, "table", event.Table, "sql", event.SQL, "args", event.Args, "error", err)
		} else {
			l.DebugContext(ctx, "statement executed",
				"verb", event.Verb, "table", event.Table, "sql", event.SQL, "args", event.Args, "duration", event.Duration)
		}
		return err
	}
}

// TimingMiddleware creates a middleware that measures statement execution time
func TimingMiddleware(onTiming func(sql string, duration time.Duration)) Middleware {
	return func(ctx context.Context, event *StatementEvent, next func() error) error {
		err := next()
		if onTiming != nil {
			onTiming(event.SQL, event.Duration)
		}
		return err
	}
}

// ErrorMiddleware creates a middleware that observes failed statements
func ErrorMiddleware(onError func(sql string, err error)) Middleware {
	return func(ctx context.Context, event *StatementEvent, next func() error) error {
		err := next()
		if err != nil && onError != nil {
			onError(event.SQL, err)
		}
		return err
	}
}
