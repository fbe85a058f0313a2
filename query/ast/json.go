package ast

import (
	"bytes"
	"encoding/json"
	"fmt"

	qerrors "github.com/restomatic/restomatic-go/query/errors"
)

// DecodeJSON decodes data into plain Go values. Integral numbers become
// int64 and the rest float64, so they bind to integer columns unchanged.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, qerrors.BadInput("invalid JSON: %v", err).Wrap(err)
	}
	if dec.More() {
		return nil, qerrors.BadInput("invalid JSON: trailing data")
	}
	return Normalize(v), nil
}

// Normalize converts json.Number values nested in v to int64 or float64.
func Normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		for i := range t {
			t[i] = Normalize(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = Normalize(t[k])
		}
		return t
	}
	return v
}

// ParseJSON decodes and parses a JSON predicate.
func ParseJSON(data []byte) (Predicate, error) {
	v, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	p, err := Parse(v)
	if err != nil {
		return nil, fmt.Errorf("parse where: %w", err)
	}
	return p, nil
}
