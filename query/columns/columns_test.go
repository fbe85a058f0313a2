package columns

import (
	"testing"

	qerrors "github.com/restomatic/restomatic-go/query/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	t.Run("nil mapper", func(t *testing.T) {
		_, err := NewRegistry(nil)
		assert.True(t, qerrors.IsBadInput(err))
	})

	t.Run("table without columns", func(t *testing.T) {
		_, err := NewRegistry(map[string][]string{"test": {}})
		assert.True(t, qerrors.IsBadInput(err))
	})

	t.Run("duplicates keep first position", func(t *testing.T) {
		r, err := NewRegistry(map[string][]string{"test": {"id", "description", "id", "value"}})
		require.NoError(t, err)

		cols, err := r.Columns("test")
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "description", "value"}, cols)

		pos, ok := r.Position("test", "value")
		assert.True(t, ok)
		assert.Equal(t, 2, pos)
	})
}

func TestRegistryLookups(t *testing.T) {
	r, err := NewRegistry(map[string][]string{
		"test":  {"id", "description", "value"},
		"other": {"id"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"other", "test"}, r.Tables())
	assert.True(t, r.Has("test"))
	assert.False(t, r.Has("bogus"))
	assert.True(t, r.Contains("test", "value"))
	assert.False(t, r.Contains("test", "bogus"))
	assert.False(t, r.Contains("bogus", "id"))

	_, err = r.Columns("bogus")
	assert.True(t, qerrors.IsBadInput(err))

	assert.NoError(t, r.Check("test", "id", "value"))
	assert.True(t, qerrors.IsBadInput(r.Check("test", "bogus")))
	assert.True(t, qerrors.IsBadInput(r.Check("bogus")))

	assert.Equal(t, []string{"id", "description", "value"}, r.Order("test", []string{"value", "id", "description"}))

	cols, _ := r.Columns("test")
	cols[0] = "mutated"
	again, _ := r.Columns("test")
	assert.Equal(t, "id", again[0])
}

func TestZip(t *testing.T) {
	got := Zip([]string{"id", "description", "value"}, []any{int64(1), "test 1", 0.5})
	assert.Equal(t, map[string]any{"id": int64(1), "description": "test 1", "value": 0.5}, got)
}
