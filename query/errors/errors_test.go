package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorToMap(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		is   error
	}{
		{
			name: "bad input",
			err:  New(KindBadInput, "message", 401, map[string]any{"found exception": "here"}),
			is:   ErrBadInput,
		},
		{
			name: "bad result",
			err:  New(KindBadResult, "message", 401, map[string]any{"found exception": "here"}),
			is:   ErrBadResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 401, tt.err.StatusCode)
			assert.Equal(t, map[string]any{"found exception": "here", "message": "message"}, tt.err.ToMap())
			assert.True(t, stderrors.Is(tt.err, tt.is))
		})
	}
}

func TestConstructorsDefaults(t *testing.T) {
	in := BadInput("unknown column %q", "bogus")
	assert.Equal(t, http.StatusBadRequest, in.StatusCode)
	assert.Equal(t, `unknown column "bogus"`, in.Error())
	assert.True(t, IsBadInput(in))
	assert.False(t, IsBadResult(in))
	assert.Equal(t, map[string]any{"message": `unknown column "bogus"`}, in.ToMap())

	res := BadResult("expected one row, got %d", 2)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.True(t, IsBadResult(res))
	assert.False(t, IsBadInput(res))
}

func TestWrapAndAs(t *testing.T) {
	cause := stderrors.New("boom")
	err := fmt.Errorf("select: %w", BadInput("bad limit").Wrap(cause).WithDetail("limit", -1).WithStatus(422))

	assert.True(t, IsBadInput(err))
	assert.ErrorIs(t, err, cause)

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, 422, e.StatusCode)
	assert.Equal(t, -1, e.Details["limit"])
	assert.Equal(t, "bad limit: boom", e.Error())

	_, ok = As(cause)
	assert.False(t, ok)
}
