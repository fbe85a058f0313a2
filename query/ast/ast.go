// Package ast defines the predicate tree accepted by where clauses and the
// parser that turns loosely typed JSON-shaped input into it.
package ast

import (
	"fmt"
	"reflect"
	"strings"

	qerrors "github.com/restomatic/restomatic-go/query/errors"
	"github.com/restomatic/restomatic-go/query/validate"
)

// Operator is a comparison operator.
type Operator string

const (
	OpEq        Operator = "eq"
	OpNe        Operator = "ne"
	OpGt        Operator = "gt"
	OpGte       Operator = "gte"
	OpLt        Operator = "lt"
	OpLte       Operator = "lte"
	OpLike      Operator = "like"
	OpIn        Operator = "in"
	OpNotIn     Operator = "not_in"
	OpIsNull    Operator = "isnull"
	OpIsNotNull Operator = "isnotnull"
)

var operatorSQL = map[Operator]string{
	OpEq:        "=",
	OpNe:        "!=",
	OpGt:        ">",
	OpGte:       ">=",
	OpLt:        "<",
	OpLte:       "<=",
	OpLike:      "LIKE",
	OpIn:        "IN",
	OpNotIn:     "NOT IN",
	OpIsNull:    "IS NULL",
	OpIsNotNull: "IS NOT NULL",
}

var operatorAliases = map[string]Operator{
	"=":  OpEq,
	"==": OpEq,
	"!=": OpNe,
	"<>": OpNe,
	">":  OpGt,
	">=": OpGte,
	"<":  OpLt,
	"<=": OpLte,
}

// ParseOperator resolves a name or symbolic alias to an Operator.
func ParseOperator(name string) (Operator, error) {
	if op, ok := operatorAliases[name]; ok {
		return op, nil
	}
	op := Operator(strings.ToLower(name))
	if _, ok := operatorSQL[op]; !ok {
		return "", qerrors.BadInput("unknown operator %q", name).WithDetail("operator", name)
	}
	return op, nil
}

// SQL returns the operator's SQL keyword.
func (o Operator) SQL() string { return operatorSQL[o] }

// Unary reports whether the operator takes no value.
func (o Operator) Unary() bool { return o == OpIsNull || o == OpIsNotNull }

// List reports whether the operator takes a sequence of values.
func (o Operator) List() bool { return o == OpIn || o == OpNotIn }

// Predicate is a node of a predicate tree: a Comparison or a Boolean.
type Predicate interface {
	predicate()
}

// Comparison tests one column against a value.
type Comparison struct {
	Column string
	Op     Operator
	// Value is nil for unary operators and a []any for list operators.
	Value any
}

// BooleanKind joins the children of a Boolean node.
type BooleanKind string

const (
	And BooleanKind = "AND"
	Or  BooleanKind = "OR"
)

// Boolean joins child predicates with AND or OR.
type Boolean struct {
	Kind     BooleanKind
	Children []Predicate
}

func (Comparison) predicate() {}
func (Boolean) predicate()    {}

// Eq builds an equality comparison.
func Eq(column string, value any) Comparison {
	return Comparison{Column: column, Op: OpEq, Value: value}
}

// AllOf joins children with AND.
func AllOf(children ...Predicate) Boolean {
	return Boolean{Kind: And, Children: children}
}

// AnyOf joins children with OR.
func AnyOf(children ...Predicate) Boolean {
	return Boolean{Kind: Or, Children: children}
}

// Parse converts v into a predicate tree. Accepted shapes are a sequence
// [column, operator] or [column, operator, value], and a single-key mapping
// {"and"|"or": [node, ...]}. A Predicate value is returned as is.
func Parse(v any) (Predicate, error) {
	switch p := v.(type) {
	case Comparison, Boolean:
		return p.(Predicate), nil
	case *Comparison:
		return *p, nil
	case *Boolean:
		return *p, nil
	case nil:
		return nil, qerrors.BadInput("where clause must not be empty")
	}

	if items, ok := Sequence(v); ok {
		return parseComparison(items)
	}
	if m, ok := Mapping(v); ok {
		return parseBoolean(m)
	}
	return nil, qerrors.BadInput("where clause must be a list or a dictionary, got %T", v)
}

func parseComparison(items []any) (Predicate, error) {
	if err := validate.ExpectLenRange(items, 2, 3, "where comparison"); err != nil {
		return nil, qerrors.BadInput("where comparison must have 2 or 3 elements, got %d", len(items)).Wrap(err)
	}
	if err := validate.ExpectType[string](items[0], "where column"); err != nil {
		return nil, qerrors.BadInput("where comparison column must be a string").Wrap(err)
	}
	column := items[0].(string)
	if column == "" {
		return nil, qerrors.BadInput("where comparison column must be a string")
	}
	if err := validate.ExpectType[string](items[1], "where operator"); err != nil {
		return nil, qerrors.BadInput("where comparison operator must be a string").Wrap(err)
	}
	name := items[1].(string)
	op, err := ParseOperator(name)
	if err != nil {
		return nil, err
	}

	if op.Unary() {
		if len(items) == 3 && items[2] != nil {
			return nil, qerrors.BadInput("operator %s takes no value", op)
		}
		return Comparison{Column: column, Op: op}, nil
	}

	if len(items) != 3 {
		return nil, qerrors.BadInput("operator %s requires a value", op)
	}
	value := items[2]

	if op.List() {
		values, ok := Sequence(value)
		if !ok {
			return nil, qerrors.BadInput("operator %s requires a list of values", op)
		}
		if len(values) == 0 {
			return nil, qerrors.BadInput("operator %s requires at least one value", op)
		}
		for _, e := range values {
			if !Scalar(e) {
				return nil, qerrors.BadInput("operator %s values must be scalars", op)
			}
		}
		return Comparison{Column: column, Op: op, Value: values}, nil
	}

	if !Scalar(value) {
		return nil, qerrors.BadInput("operator %s requires a scalar value", op)
	}
	return Comparison{Column: column, Op: op, Value: value}, nil
}

func parseBoolean(m map[string]any) (Predicate, error) {
	andChildren, orChildren := m["and"], m["or"]
	err := validate.ExpectOnlyOneOf([]any{andChildren, orChildren}, "and, or")
	if err != nil || len(m) != 1 {
		return nil, qerrors.BadInput("where dictionary must contain exactly one of the keys and, or").Wrap(err)
	}

	kind, raw := And, andChildren
	if orChildren != nil {
		kind, raw = Or, orChildren
	}

	items, ok := Sequence(raw)
	if !ok {
		return nil, qerrors.BadInput("%s clause must be a list of conditions", strings.ToLower(string(kind)))
	}
	if len(items) == 0 {
		return nil, qerrors.BadInput("%s clause must contain at least one condition", strings.ToLower(string(kind)))
	}

	children := make([]Predicate, 0, len(items))
	for _, item := range items {
		child, err := Parse(item)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return Boolean{Kind: kind, Children: children}, nil
}

// Sequence returns v's elements when v is a slice or array other than []byte.
func Sequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []byte, nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Mapping returns v as a map[string]any when v is a map keyed by strings.
func Mapping(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// Scalar reports whether v can be bound as a single statement parameter.
func Scalar(v any) bool {
	if _, ok := v.([]byte); ok {
		return true
	}
	if _, ok := Sequence(v); ok {
		return false
	}
	if _, ok := Mapping(v); ok {
		return false
	}
	return true
}

// String renders a predicate for logs.
func String(p Predicate) string {
	switch n := p.(type) {
	case Comparison:
		if n.Op.Unary() {
			return fmt.Sprintf("%s %s", n.Column, n.Op.SQL())
		}
		return fmt.Sprintf("%s %s %v", n.Column, n.Op.SQL(), n.Value)
	case Boolean:
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = "(" + String(c) + ")"
		}
		return strings.Join(parts, " "+string(n.Kind)+" ")
	}
	return ""
}
