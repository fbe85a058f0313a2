package ast

import (
	"testing"

	qerrors "github.com/restomatic/restomatic-go/query/errors"
	"github.com/restomatic/restomatic-go/query/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseComparison(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Predicate
	}{
		{
			name: "binary",
			in:   []any{"id", "eq", 1},
			want: Comparison{Column: "id", Op: OpEq, Value: 1},
		},
		{
			name: "symbolic alias",
			in:   []any{"id", ">=", 2},
			want: Comparison{Column: "id", Op: OpGte, Value: 2},
		},
		{
			name: "unary",
			in:   []string{"id", "isnotnull"},
			want: Comparison{Column: "id", Op: OpIsNotNull},
		},
		{
			name: "unary with explicit null",
			in:   []any{"value", "isnull", nil},
			want: Comparison{Column: "value", Op: OpIsNull},
		},
		{
			name: "list operator takes typed slices",
			in:   []any{"description", "in", []string{"test 1", "test 5"}},
			want: Comparison{Column: "description", Op: OpIn, Value: []any{"test 1", "test 5"}},
		},
		{
			name: "bytes are a scalar",
			in:   []any{"blob", "eq", []byte("x")},
			want: Comparison{Column: "blob", Op: OpEq, Value: []byte("x")},
		},
		{
			name: "already parsed",
			in:   Eq("id", 3),
			want: Comparison{Column: "id", Op: OpEq, Value: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBoolean(t *testing.T) {
	got, err := Parse(map[string]any{
		"and": []any{
			[]any{"id", "gte", 2},
			map[string]any{"or": []any{
				[]any{"id", "lt", 3},
				[]any{"value", "isnull"},
			}},
		},
	})
	require.NoError(t, err)

	want := AllOf(
		Comparison{Column: "id", Op: OpGte, Value: 2},
		AnyOf(
			Comparison{Column: "id", Op: OpLt, Value: 3},
			Comparison{Column: "value", Op: OpIsNull},
		),
	)
	assert.Equal(t, want, got)
	assert.Equal(t, "(id >= 2) AND ((id < 3) OR (value IS NULL))", String(got))
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{name: "nil", in: nil},
		{name: "scalar", in: 5},
		{name: "missing value", in: []any{"id", "eq"}},
		{name: "too long", in: []any{"id", "eq", 1, 2}},
		{name: "too short", in: []any{"id"}},
		{name: "unknown operator", in: []any{"id", "is_bogus"}},
		{name: "non-string column", in: []any{5, "eq", 1}},
		{name: "non-string operator", in: []any{"id", 5, 1}},
		{name: "unary with value", in: []any{"id", "isnull", 1}},
		{name: "list needs sequence", in: []any{"id", "in", 1}},
		{name: "empty list", in: []any{"id", "in", []any{}}},
		{name: "nested list element", in: []any{"id", "in", []any{[]any{1}}}},
		{name: "scalar op with list", in: []any{"id", "eq", []any{1}}},
		{name: "both and and or", in: map[string]any{"and": []any{[]any{"id", "eq", 1}}, "or": []any{[]any{"id", "eq", 2}}}},
		{name: "neither and nor or", in: map[string]any{"xor": []any{[]any{"id", "eq", 1}}}},
		{name: "extra key", in: map[string]any{"and": []any{[]any{"id", "eq", 1}}, "limit": 1}},
		{name: "empty children", in: map[string]any{"or": []any{}}},
		{name: "children not a list", in: map[string]any{"and": "id"}},
		{name: "null children", in: map[string]any{"and": nil}},
		{name: "bad child", in: map[string]any{"and": []any{[]any{"id", "eq"}}}},
		{name: "bytes", in: []byte(`["id","eq",1]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			assert.True(t, qerrors.IsBadInput(err), "got %v", err)
		})
	}
}

func TestParseKeepsValidationCause(t *testing.T) {
	tests := []struct {
		name  string
		parse func() error
		cause error
	}{
		{"arity", func() error { _, err := Parse([]any{"id", "eq", 1, 2}); return err }, validate.ErrInvalidValue},
		{"column type", func() error { _, err := Parse([]any{5, "eq", 1}); return err }, validate.ErrInvalidType},
		{"operator type", func() error { _, err := Parse([]any{"id", true}); return err }, validate.ErrInvalidType},
		{"and with or", func() error {
			_, err := Parse(map[string]any{"and": []any{[]any{"id", "eq", 1}}, "or": []any{[]any{"id", "eq", 2}}})
			return err
		}, validate.ErrInvalidValue},
		{"direction value", func() error {
			_, err := ParseOrder(map[string]any{"column": "id", "direction": "up"})
			return err
		}, validate.ErrInvalidValue},
		{"direction type", func() error {
			_, err := ParseOrder(map[string]any{"column": "id", "direction": 1})
			return err
		}, validate.ErrInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.parse()
			assert.True(t, qerrors.IsBadInput(err), "got %v", err)
			assert.ErrorIs(t, err, tt.cause)
		})
	}
}

func TestParseJSON(t *testing.T) {
	got, err := ParseJSON([]byte(`{"or": [["id", "eq", 1], ["value", "lt", 1.5], ["description", "in", ["a", "b"]]]}`))
	require.NoError(t, err)
	assert.Equal(t, AnyOf(
		Comparison{Column: "id", Op: OpEq, Value: int64(1)},
		Comparison{Column: "value", Op: OpLt, Value: 1.5},
		Comparison{Column: "description", Op: OpIn, Value: []any{"a", "b"}},
	), got)

	_, err = ParseJSON([]byte(`["id", "eq"`))
	assert.True(t, qerrors.IsBadInput(err))

	_, err = ParseJSON([]byte(`["id", "eq", 1] []`))
	assert.True(t, qerrors.IsBadInput(err))
}

func TestParseOrder(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    Order
		wantErr bool
	}{
		{name: "bare column", in: "value", want: Order{Column: "value", Direction: Asc}},
		{name: "mapping", in: map[string]any{"column": "id", "direction": "desc"}, want: Order{Column: "id", Direction: Desc}},
		{name: "mapping without direction", in: map[string]string{"column": "id"}, want: Order{Column: "id", Direction: Asc}},
		{name: "struct", in: Order{Column: "id", Direction: "desc"}, want: Order{Column: "id", Direction: Desc}},
		{name: "direction only", in: map[string]any{"direction": "desc"}, wantErr: true},
		{name: "bad direction", in: map[string]any{"column": "id", "direction": "sideways"}, wantErr: true},
		{name: "extra key", in: map[string]any{"column": "id", "nulls": "first"}, wantErr: true},
		{name: "empty list", in: []any{}, wantErr: true},
		{name: "empty string", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOrder(tt.in)
			if tt.wantErr {
				assert.True(t, qerrors.IsBadInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseOrder(map[string]any{"direction": "desc"})
	e, ok := qerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "Complex order_by request must contain a column key and an optional direction key in the input dictionary", e.Message)
}
