// Package client provides result mapping utilities.
package client

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"
)

// rowScanner scans rows into Row values, turning text returned as bytes into strings.
type rowScanner struct {
	binary []bool
}

func newRowScanner(rows *sql.Rows) (*rowScanner, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	s := &rowScanner{binary: make([]bool, len(types))}
	for i, t := range types {
		name := strings.ToUpper(t.DatabaseTypeName())
		s.binary[i] = strings.Contains(name, "BLOB") ||
			strings.Contains(name, "BYTEA") ||
			strings.Contains(name, "BINARY")
	}
	return s, nil
}

func (s *rowScanner) scan(rows *sql.Rows) (Row, error) {
	values := make([]interface{}, len(s.binary))
	valuePtrs := make([]interface{}, len(s.binary))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, err
	}

	for i, v := range values {
		if b, ok := v.([]byte); ok && !s.binary[i] {
			values[i] = string(b)
		}
	}
	return Row(values), nil
}

// Decode copies a record into a struct, matching columns to fields by db
// tag, then field name, then case-insensitive field name.
func Decode[T any](rec Record) (T, error) {
	var result T
	val := reflect.ValueOf(&result).Elem()
	if val.Kind() != reflect.Struct {
		return result, fmt.Errorf("decode target must be a struct, got %T", result)
	}
	typ := val.Type()

	for colName, v := range rec {
		field := findFieldByName(typ, colName)
		if field.Name == "" || v == nil {
			continue
		}
		fieldVal := val.FieldByIndex(field.Index)
		if !fieldVal.CanSet() {
			continue
		}
		if err := assign(fieldVal, v); err != nil {
			return result, fmt.Errorf("decode column %s into %s: %w", colName, field.Name, err)
		}
	}
	return result, nil
}

// DecodeAll decodes every record.
func DecodeAll[T any](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := Decode[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func assign(dst reflect.Value, v any) error {
	src := reflect.ValueOf(v)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}

	var (
		out any
		err error
	)
	switch dst.Kind() {
	case reflect.String:
		out, err = cast.ToStringE(v)
	case reflect.Bool:
		out, err = cast.ToBoolE(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out, err = cast.ToInt64E(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		out, err = cast.ToUint64E(v)
	case reflect.Float32, reflect.Float64:
		out, err = cast.ToFloat64E(v)
	default:
		if src.Type().ConvertibleTo(dst.Type()) {
			dst.Set(src.Convert(dst.Type()))
			return nil
		}
		return fmt.Errorf("cannot assign %T to %s", v, dst.Type())
	}
	if err != nil {
		return err
	}
	dst.Set(reflect.ValueOf(out).Convert(dst.Type()))
	return nil
}

// findFieldByName finds a struct field by database column name (db tag or field name)
func findFieldByName(typ reflect.Type, colName string) reflect.StructField {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		dbTag := field.Tag.Get("db")
		if dbTag != "" {
			tagParts := strings.Split(dbTag, ",")
			if tagParts[0] == colName {
				return field
			}
			continue
		}
		if field.Name == colName || strings.EqualFold(field.Name, colName) {
			return field
		}
	}
	return reflect.StructField{}
}
