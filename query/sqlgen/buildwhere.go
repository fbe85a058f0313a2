// Package sqlgen provides WHERE clause building logic.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/restomatic/restomatic-go/query/ast"
	"github.com/restomatic/restomatic-go/query/columns"
	qerrors "github.com/restomatic/restomatic-go/query/errors"
)

// ValueHook transforms a value bound against column before it is sent to the store.
type ValueHook func(column string, value any) (any, error)

// Clause is a compiled SQL fragment and its ordered parameters.
type Clause struct {
	SQL  string
	Args []interface{}
}

type whereCompiler struct {
	table       string
	registry    *columns.Registry
	hook        ValueHook
	argIndex    *int
	placeholder func(int) string
	quoter      func(string) string
}

// buildWhereRecursive compiles a predicate tree. Boolean children are each
// wrapped in parentheses so precedence holds at any depth.
func buildWhereRecursive(p ast.Predicate, c *whereCompiler) (string, []interface{}, error) {
	switch node := p.(type) {
	case ast.Comparison:
		return buildCondition(node, c)

	case ast.Boolean:
		if node.Kind != ast.And && node.Kind != ast.Or {
			return "", nil, qerrors.BadInput("unknown boolean operator %q", node.Kind)
		}
		if len(node.Children) == 0 {
			return "", nil, qerrors.BadInput("%s clause must contain at least one condition", strings.ToLower(string(node.Kind)))
		}

		parts := make([]string, 0, len(node.Children))
		var args []interface{}
		for _, child := range node.Children {
			childSQL, childArgs, err := buildWhereRecursive(child, c)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, fmt.Sprintf("(%s)", childSQL))
			args = append(args, childArgs...)
		}
		return strings.Join(parts, " "+string(node.Kind)+" "), args, nil

	case nil:
		return "", nil, qerrors.BadInput("where clause must not be empty")
	}
	return "", nil, qerrors.BadInput("unsupported predicate node %T", p)
}

// buildCondition builds a single condition
func buildCondition(cond ast.Comparison, c *whereCompiler) (string, []interface{}, error) {
	if !c.registry.Contains(c.table, cond.Column) {
		return "", nil, qerrors.BadInput("column %q is not in table %q", cond.Column, c.table).
			WithDetail("table", c.table).
			WithDetail("column", cond.Column)
	}
	if cond.Op.SQL() == "" {
		return "", nil, qerrors.BadInput("unknown operator %q", cond.Op)
	}

	field := c.quoter(cond.Column)

	switch {
	case cond.Op.Unary():
		return fmt.Sprintf("%s %s", field, cond.Op.SQL()), nil, nil

	case cond.Op.List():
		values, ok := ast.Sequence(cond.Value)
		if !ok || len(values) == 0 {
			return "", nil, qerrors.BadInput("operator %s requires a non-empty list of values", cond.Op)
		}
		placeholders := make([]string, len(values))
		args := make([]interface{}, len(values))
		for i, v := range values {
			bound, err := c.bind(cond.Column, v)
			if err != nil {
				return "", nil, err
			}
			placeholders[i] = c.placeholder(*c.argIndex)
			args[i] = bound
			(*c.argIndex)++
		}
		return fmt.Sprintf("%s %s (%s)", field, cond.Op.SQL(), strings.Join(placeholders, ", ")), args, nil

	default:
		if !ast.Scalar(cond.Value) {
			return "", nil, qerrors.BadInput("operator %s requires a scalar value", cond.Op)
		}
		bound, err := c.bind(cond.Column, cond.Value)
		if err != nil {
			return "", nil, err
		}
		sql := fmt.Sprintf("%s %s %s", field, cond.Op.SQL(), c.placeholder(*c.argIndex))
		(*c.argIndex)++
		return sql, []interface{}{bound}, nil
	}
}

func (c *whereCompiler) bind(column string, v any) (any, error) {
	if c.hook == nil {
		return v, nil
	}
	return c.hook(column, v)
}
