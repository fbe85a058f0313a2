// Package sqlgen generates SQL for different database providers.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/restomatic/restomatic-go/query/ast"
	"github.com/restomatic/restomatic-go/query/columns"
	qerrors "github.com/restomatic/restomatic-go/query/errors"
)

// Query represents a SQL query with arguments
type Query struct {
	SQL  string
	Args []interface{}
}

// Select describes a SELECT statement.
type Select struct {
	Table   string
	Columns []string // empty selects every column
	Count   bool
	Where   *Clause
	OrderBy []ast.Order
	Limit   *int
	Offset  *int
}

// Generator generates SQL for a specific provider
type Generator interface {
	Provider() string
	Placeholder(n int) string
	Quote(ident string) string
	CompileWhere(p ast.Predicate, table string, registry *columns.Registry, hook ValueHook) (*Clause, error)
	GenerateSelect(s Select) *Query
	GenerateInsert(table string, columns []string, values []interface{}, returning string) *Query
	GenerateUpdate(table string, columns []string, values []interface{}, where *Clause) *Query
	GenerateDelete(table string, where *Clause) *Query
	// ForeignKeys returns the session statement toggling referential
	// integrity, or "" when the provider always enforces it.
	ForeignKeys(enable bool) string
	// Returning reports whether inserts report ids through RETURNING.
	Returning() bool
}

type dialect struct {
	provider    string
	placeholder func(int) string
	quoteChar   string
	// numbered placeholders may appear in any textual order
	numbered  bool
	returning bool
	// unboundedLimit precedes OFFSET when no LIMIT is set; empty when OFFSET may stand alone
	unboundedLimit string
	foreignKeys    func(bool) string
}

var (
	sqliteDialect = dialect{
		provider:       "sqlite",
		placeholder:    func(int) string { return "?" },
		quoteChar:      `"`,
		unboundedLimit: "-1",
		foreignKeys: func(enable bool) string {
			if enable {
				return "PRAGMA foreign_keys = ON"
			}
			return "PRAGMA foreign_keys = OFF"
		},
	}

	postgresDialect = dialect{
		provider:    "postgresql",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		quoteChar:   `"`,
		numbered:    true,
		returning:   true,
		foreignKeys: func(bool) string { return "" },
	}

	mysqlDialect = dialect{
		provider:       "mysql",
		placeholder:    func(int) string { return "?" },
		quoteChar:      "`",
		unboundedLimit: "18446744073709551615",
		foreignKeys: func(enable bool) string {
			if enable {
				return "SET FOREIGN_KEY_CHECKS = 1"
			}
			return "SET FOREIGN_KEY_CHECKS = 0"
		},
	}
)

// NewGenerator creates a new SQL generator for the given provider
func NewGenerator(provider string) (Generator, error) {
	switch provider {
	case "postgresql", "postgres":
		return &PostgresGenerator{generator{postgresDialect}}, nil
	case "mysql":
		return &MySQLGenerator{generator{mysqlDialect}}, nil
	case "sqlite", "sqlite3":
		return &SQLiteGenerator{generator{sqliteDialect}}, nil
	default:
		return nil, qerrors.BadInput("unsupported provider: %s", provider)
	}
}

// PostgresGenerator generates PostgreSQL SQL
type PostgresGenerator struct{ generator }

// MySQLGenerator generates MySQL SQL
type MySQLGenerator struct{ generator }

// SQLiteGenerator generates SQLite SQL
type SQLiteGenerator struct{ generator }

type generator struct {
	d dialect
}

func (g *generator) Provider() string         { return g.d.provider }
func (g *generator) Placeholder(n int) string { return g.d.placeholder(n) }
func (g *generator) Returning() bool          { return g.d.returning }

func (g *generator) ForeignKeys(enable bool) string {
	return g.d.foreignKeys(enable)
}

// Quote quotes an identifier, doubling any embedded quote character.
func (g *generator) Quote(ident string) string {
	q := g.d.quoteChar
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

func (g *generator) quoteAll(idents []string) []string {
	out := make([]string, len(idents))
	for i, id := range idents {
		out[i] = g.Quote(id)
	}
	return out
}

// CompileWhere compiles p against table. Placeholders are numbered from 1.
func (g *generator) CompileWhere(p ast.Predicate, table string, registry *columns.Registry, hook ValueHook) (*Clause, error) {
	argIndex := 1
	c := &whereCompiler{
		table:       table,
		registry:    registry,
		hook:        hook,
		argIndex:    &argIndex,
		placeholder: g.d.placeholder,
		quoter:      g.Quote,
	}
	sql, args, err := buildWhereRecursive(p, c)
	if err != nil {
		return nil, err
	}
	return &Clause{SQL: sql, Args: args}, nil
}

func (g *generator) GenerateSelect(s Select) *Query {
	var parts []string
	var args []interface{}
	argIndex := 1

	// SELECT columns
	switch {
	case s.Count:
		parts = append(parts, "SELECT COUNT(*)")
	case len(s.Columns) == 0:
		parts = append(parts, "SELECT *")
	default:
		parts = append(parts, fmt.Sprintf("SELECT %s", strings.Join(g.quoteAll(s.Columns), ", ")))
	}

	parts = append(parts, fmt.Sprintf("FROM %s", g.Quote(s.Table)))

	if s.Where != nil && s.Where.SQL != "" {
		parts = append(parts, "WHERE "+s.Where.SQL)
		args = append(args, s.Where.Args...)
		argIndex += len(s.Where.Args)
	}

	if len(s.OrderBy) > 0 {
		orderParts := make([]string, len(s.OrderBy))
		for i, ob := range s.OrderBy {
			direction := "ASC"
			if ob.Direction == ast.Desc {
				direction = "DESC"
			}
			orderParts[i] = fmt.Sprintf("%s %s", g.Quote(ob.Column), direction)
		}
		parts = append(parts, "ORDER BY "+strings.Join(orderParts, ", "))
	}

	if s.Limit != nil {
		parts = append(parts, "LIMIT "+g.d.placeholder(argIndex))
		args = append(args, *s.Limit)
		argIndex++
	} else if s.Offset != nil && g.d.unboundedLimit != "" {
		parts = append(parts, "LIMIT "+g.d.unboundedLimit)
	}

	if s.Offset != nil {
		parts = append(parts, "OFFSET "+g.d.placeholder(argIndex))
		args = append(args, *s.Offset)
	}

	return &Query{
		SQL:  strings.Join(parts, " "),
		Args: args,
	}
}

func (g *generator) GenerateInsert(table string, columns []string, values []interface{}, returning string) *Query {
	var parts []string
	var args []interface{}

	parts = append(parts, fmt.Sprintf("INSERT INTO %s", g.Quote(table)))

	switch {
	case len(columns) > 0:
		placeholders := make([]string, len(values))
		for i := range values {
			placeholders[i] = g.d.placeholder(i + 1)
			args = append(args, values[i])
		}
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(g.quoteAll(columns), ", ")))
		parts = append(parts, fmt.Sprintf("VALUES (%s)", strings.Join(placeholders, ", ")))
	case g.d.provider == "mysql":
		parts = append(parts, "() VALUES ()")
	default:
		parts = append(parts, "DEFAULT VALUES")
	}

	if g.d.returning && returning != "" {
		parts = append(parts, "RETURNING "+g.Quote(returning))
	}

	return &Query{
		SQL:  strings.Join(parts, " "),
		Args: args,
	}
}

// GenerateUpdate renders an UPDATE. A nil where updates every row.
func (g *generator) GenerateUpdate(table string, columns []string, values []interface{}, where *Clause) *Query {
	var parts []string

	hasWhere := where != nil && where.SQL != ""

	// numbered dialects keep the where clause's own numbering and place SET after it
	argIndex := 1
	if g.d.numbered && hasWhere {
		argIndex += len(where.Args)
	}

	setParts := make([]string, len(columns))
	setArgs := make([]interface{}, len(columns))
	for i, col := range columns {
		setParts[i] = fmt.Sprintf("%s = %s", g.Quote(col), g.d.placeholder(argIndex))
		setArgs[i] = values[i]
		argIndex++
	}

	parts = append(parts, fmt.Sprintf("UPDATE %s", g.Quote(table)))
	parts = append(parts, "SET "+strings.Join(setParts, ", "))

	var args []interface{}
	switch {
	case !hasWhere:
		args = setArgs
	case g.d.numbered:
		parts = append(parts, "WHERE "+where.SQL)
		args = append(append(args, where.Args...), setArgs...)
	default:
		parts = append(parts, "WHERE "+where.SQL)
		args = append(append(args, setArgs...), where.Args...)
	}

	return &Query{
		SQL:  strings.Join(parts, " "),
		Args: args,
	}
}

// GenerateDelete renders a DELETE. A nil where deletes every row.
func (g *generator) GenerateDelete(table string, where *Clause) *Query {
	parts := []string{fmt.Sprintf("DELETE FROM %s", g.Quote(table))}
	var args []interface{}

	if where != nil && where.SQL != "" {
		parts = append(parts, "WHERE "+where.SQL)
		args = append(args, where.Args...)
	}

	return &Query{
		SQL:  strings.Join(parts, " "),
		Args: args,
	}
}
