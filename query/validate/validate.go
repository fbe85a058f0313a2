// Package validate provides assertion and coercion helpers shared by the
// query builder and the endpoint layer.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

var (
	// ErrInvalidType is returned when a value has the wrong type.
	ErrInvalidType = errors.New("invalid type")

	// ErrInvalidValue is returned when a value has the right type but is out of range.
	ErrInvalidValue = errors.New("invalid value")
)

// toInt coerces v to an integer. Strings must parse as base-10 integers and
// floats must have no fractional part; booleans are rejected even though cast
// accepts them.
func toInt(v any) (int, error) {
	switch x := v.(type) {
	case bool:
		return 0, fmt.Errorf("%w: bool is not an integer", ErrInvalidValue)
	case string:
		return atoi(strings.TrimSpace(x))
	case json.Number:
		return atoi(x.String())
	case float32:
		if err := integral(float64(x)); err != nil {
			return 0, err
		}
	case float64:
		if err := integral(x); err != nil {
			return 0, err
		}
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return n, nil
}

func atoi(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, s)
	}
	return n, nil
}

func integral(f float64) error {
	if math.IsInf(f, 0) || math.Trunc(f) != f {
		return fmt.Errorf("%w: %v is not an integer", ErrInvalidValue, f)
	}
	return nil
}

// TypePosInt coerces v to an integer of 1 or greater.
func TypePosInt(v any) (int, error) {
	n, err := toInt(v)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: %d is not a positive integer", ErrInvalidValue, n)
	}
	return n, nil
}

// TypeNonNegInt coerces v to an integer of 0 or greater.
func TypeNonNegInt(v any) (int, error) {
	n, err := toInt(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrInvalidValue, n)
	}
	return n, nil
}

// ExpectType reports ErrInvalidType unless v holds a T.
func ExpectType[T any](v any, name string) error {
	if _, ok := v.(T); !ok {
		var zero T
		return fmt.Errorf("%w: %s must be of type %T, got %T", ErrInvalidType, name, zero, v)
	}
	return nil
}

// ExpectIn reports ErrInvalidValue unless v is one of allowed.
func ExpectIn[T comparable](v T, allowed []T, name string) error {
	for _, a := range allowed {
		if a == v {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %v, got %v", ErrInvalidValue, name, allowed, v)
}

func length(v any, name string) (int, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String, reflect.Chan:
		return rv.Len(), nil
	}
	return 0, fmt.Errorf("%w: %s has no length (%T)", ErrInvalidType, name, v)
}

// ExpectLen reports ErrInvalidValue unless v has exactly n elements.
func ExpectLen(v any, n int, name string) error {
	l, err := length(v, name)
	if err != nil {
		return err
	}
	if l != n {
		return fmt.Errorf("%w: %s must have length %d, got %d", ErrInvalidValue, name, n, l)
	}
	return nil
}

// ExpectLenRange reports ErrInvalidValue unless lo <= len(v) <= hi.
func ExpectLenRange(v any, lo, hi int, name string) error {
	l, err := length(v, name)
	if err != nil {
		return err
	}
	if l < lo || l > hi {
		return fmt.Errorf("%w: %s must have length between %d and %d, got %d", ErrInvalidValue, name, lo, hi, l)
	}
	return nil
}

// ExpectOnlyOneOf reports ErrInvalidValue unless exactly one of values is non-nil.
func ExpectOnlyOneOf(values []any, name string) error {
	found := 0
	for _, v := range values {
		if v != nil {
			found++
		}
	}
	if found != 1 {
		return fmt.Errorf("%w: exactly one of %s must be set, found %d", ErrInvalidValue, name, found)
	}
	return nil
}

// SetOnce stores value at the nested key path in data, creating intermediate
// maps as needed. Setting a path that already holds a value is an error.
func SetOnce(data map[string]any, keys []string, value any, name string) error {
	if len(keys) == 0 {
		return fmt.Errorf("%w: %s: empty key path", ErrInvalidValue, name)
	}

	cur := data
	for _, k := range keys[:len(keys)-1] {
		next, ok := cur[k]
		if !ok {
			m := map[string]any{}
			cur[k] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s: %q is already set", ErrInvalidValue, name, k)
		}
		cur = m
	}

	last := keys[len(keys)-1]
	if _, ok := cur[last]; ok {
		return fmt.Errorf("%w: %s: %s is already set", ErrInvalidValue, name, strings.Join(keys, "."))
	}
	cur[last] = value
	return nil
}
