package ast

import (
	"strings"

	qerrors "github.com/restomatic/restomatic-go/query/errors"
	"github.com/restomatic/restomatic-go/query/validate"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Order is one ORDER BY key.
type Order struct {
	Column    string
	Direction Direction
}

const complexOrderMessage = "Complex order_by request must contain a column key and an optional direction key in the input dictionary"

// ParseOrder converts v into an Order. Accepted shapes are a bare column
// name (ascending) and a mapping {"column": name, "direction"?: "asc"|"desc"}.
func ParseOrder(v any) (Order, error) {
	switch o := v.(type) {
	case Order:
		return normalizeOrder(o)
	case string:
		if o == "" {
			return Order{}, qerrors.BadInput("order_by column must not be empty")
		}
		return Order{Column: o, Direction: Asc}, nil
	}

	m, ok := Mapping(v)
	if !ok {
		return Order{}, qerrors.BadInput("order_by must be a column name or a dictionary, got %T", v)
	}

	column, ok := m["column"].(string)
	if !ok || column == "" {
		return Order{}, qerrors.BadInput(complexOrderMessage)
	}
	for k := range m {
		if k != "column" && k != "direction" {
			return Order{}, qerrors.BadInput(complexOrderMessage)
		}
	}

	o := Order{Column: column, Direction: Asc}
	if raw, ok := m["direction"]; ok && raw != nil {
		if err := validate.ExpectType[string](raw, "order_by direction"); err != nil {
			return Order{}, qerrors.BadInput("order_by direction must be asc or desc").Wrap(err)
		}
		o.Direction = Direction(raw.(string))
	}
	return normalizeOrder(o)
}

func normalizeOrder(o Order) (Order, error) {
	if o.Column == "" {
		return Order{}, qerrors.BadInput(complexOrderMessage)
	}
	dir := Direction(strings.ToUpper(string(o.Direction)))
	if dir == "" {
		dir = Asc
	}
	if err := validate.ExpectIn(dir, []Direction{Asc, Desc}, "order_by direction"); err != nil {
		return Order{}, qerrors.BadInput("order_by direction must be asc or desc, got %q", o.Direction).Wrap(err)
	}
	o.Direction = dir
	return o, nil
}
