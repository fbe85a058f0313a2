package commands

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/restomatic/restomatic-go/query/errors"
	"github.com/restomatic/restomatic-go/runtime/client"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "restomatic.yaml")
	content := fmt.Sprintf("provider: sqlite\ndsn: %s\ntables:\n  notes: [id, body]\n", filepath.Join(dir, "test.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestCommandsEndToEnd(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "exec", "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
	require.NoError(t, err)
	assert.Contains(t, out, "statement executed")

	out, err = run(t, "--config", cfg, "insert", "notes", `[{"body": "a"}, {"body": "b"}]`)
	require.NoError(t, err)
	assert.Contains(t, out, "ids [1 2]")

	out, err = run(t, "--config", cfg, "query", "notes", "--json", "--where", `["id", "eq", 2]`)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": 2, "body": "b"}]`, out)

	out, err = run(t, "--config", cfg, "query", "notes", "--json", "--order-by", "id:desc", "--limit", "1")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": 2, "body": "b"}]`, out)

	out, err = run(t, "--config", cfg, "query", "notes", "--count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = run(t, "--config", cfg, "query", "notes", "--columns", "body")
	require.NoError(t, err)
	assert.Contains(t, out, "body")
	assert.Contains(t, out, "2 row(s)")

	_, err = run(t, "--config", cfg, "query", "bogus")
	assert.True(t, qerrors.IsBadInput(err))

	_, err = run(t, "--config", cfg, "query", "notes", "--where", `["id", "eq"`)
	assert.Error(t, err)

	prev := confirm
	t.Cleanup(func() { confirm = prev })
	var asked string
	confirm = func(message string) (bool, error) {
		asked = message
		return false, nil
	}

	out, err = run(t, "--config", cfg, "delete", "notes")
	require.NoError(t, err)
	assert.Equal(t, "Delete every row in notes?", asked)
	assert.Contains(t, out, "cancelled")

	out, err = run(t, "--config", cfg, "delete", "notes", "--where", `["id", "eq", 1]`)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 1 row(s)")

	asked = ""
	out, err = run(t, "--config", cfg, "delete", "notes", "--yes")
	require.NoError(t, err)
	assert.Empty(t, asked)
	assert.Contains(t, out, "deleted 1 row(s)")

	out, err = run(t, "--config", cfg, "query", "notes", "--count")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestExecFromFile(t *testing.T) {
	cfg := writeConfig(t)
	sqlFile := filepath.Join(t.TempDir(), "schema.sql")
	require.NoError(t, os.WriteFile(sqlFile, []byte("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)"), 0644))

	_, err := run(t, "--config", cfg, "exec", "--file", sqlFile)
	require.NoError(t, err)

	_, err = run(t, "--config", cfg, "exec", "INSERT INTO notes (body) VALUES (?)", "bound")
	require.NoError(t, err)

	out, err := run(t, "--config", cfg, "query", "notes", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": 1, "body": "bound"}]`, out)

	_, err = run(t, "--config", cfg, "exec")
	assert.Error(t, err)
}

func TestMissingDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	path := filepath.Join(t.TempDir(), "restomatic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tables:\n  notes: [id]\n"), 0644))

	_, err := run(t, "--config", path, "query", "notes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dsn configured")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:")
	assert.Contains(t, out, "Go Version:")
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := client.Open("sqlite", ":memory:", map[string][]string{"notes": {"id", "body"}})
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Execute("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
	require.NoError(t, err)

	router, err := newRouter(db, map[string][]string{"notes": {"GET", "POST"}})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader(`{"body": "x"}`)))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/notes/1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, err = newRouter(db, map[string][]string{"missing": nil})
	assert.Error(t, err)
}

func TestParseOrderFlag(t *testing.T) {
	assert.Equal(t, "id", parseOrderFlag("id"))
	assert.Equal(t, map[string]any{"column": "id", "direction": "desc"}, parseOrderFlag("id:desc"))
}
