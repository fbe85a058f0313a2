package debug

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabledDiscards(t *testing.T) {
	Init(false)
	assert.False(t, Enabled())
	// must not panic on a discarded logger
	Debug("ignored", "k", "v")
	Error("ignored")
}

func TestConfigureJSON(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(false) })

	assert.True(t, Enabled())
	With("table", "test").Debug("statement", "sql", "SELECT 1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "statement", entry["msg"])
	assert.Equal(t, "test", entry["table"])
	assert.Equal(t, "SELECT 1", entry["sql"])
}

func TestConfigureLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "WARN", Output: &buf})
	t.Cleanup(func() { Init(false) })

	assert.False(t, Enabled())
	Info("hidden")
	assert.Empty(t, buf.String())
	Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}
