package endpoint

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restomatic/restomatic-go/runtime/client"
)

var tableMappers = map[string][]string{
	"test": {"id", "description", "value"},
}

func setupRouter(t *testing.T) (*gin.Engine, *client.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := client.Open("sqlite", ":memory:", tableMappers)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Execute("CREATE TABLE test (id INTEGER PRIMARY KEY, description TEXT, value REAL)")
	require.NoError(t, err)
	require.NoError(t, db.InsertMapped("test", map[string]any{"description": "test 1", "value": 0.5}).Err())
	require.NoError(t, db.Commit())

	router := gin.New()
	_, err = Register(router, db, "test", "GET", "PUT", "POST", "PATCH", "DELETE")
	require.NoError(t, err)
	return router, db
}

func perform(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func assertJSON(t *testing.T, w *httptest.ResponseRecorder, status int, want string) {
	t.Helper()
	assert.Equal(t, status, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, want, w.Body.String())
}

func TestRegisterRejects(t *testing.T) {
	router, db := setupRouter(t)

	_, err := Register(router, db, "test", "BOGUS")
	assert.Error(t, err)

	_, err = Register(router, db, "bogus", "GET")
	assert.Error(t, err)

	s := New(db)
	assert.NoError(t, s.Register(gin.New(), "test", "get", "GET"))
}

func TestEndpointOperations(t *testing.T) {
	router, db := setupRouter(t)

	steps := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		want   string
	}{
		{"get by id", "GET", "/test/1", "", 200, `{"id": 1, "description": "test 1", "value": 0.5}`},
		{"get bad id", "GET", "/test/a", "", 400, `{"message": "Invalid ID, must be a positive integer, 1 or greater"}`},
		{"get zero id", "GET", "/test/0", "", 400, `{"message": "Invalid ID, must be a positive integer, 1 or greater"}`},
		{"get without id", "GET", "/test", "", 400, `{"message": "Must specify an ID for this GET request"}`},
		{"get missing id", "GET", "/test/42", "", 404, `{"message": "Requested ID not found"}`},
		{"patch by id", "PATCH", "/test/1", `{"value": 1.5}`, 200, `{"success": true}`},
		{"get patched", "GET", "/test/1", "", 200, `{"id": 1, "description": "test 1", "value": 1.5}`},
		{"patch without id", "PATCH", "/test", "", 400, `{"message": "Must specify an ID for a PATCH request"}`},
		{"patch without body", "PATCH", "/test/1", "", 400,
			`{"message": "Must specify a valid JSON object (dictionary) of columns to set for this ID"}`},
		{"post object", "POST", "/test", `{"description": "test 2", "value": 2.5}`, 201, `{"success": true, "id": 2}`},
		{"get posted", "GET", "/test/2", "", 200, `{"id": 2, "description": "test 2", "value": 2.5}`},
		{"post with id", "POST", "/test/2", "", 400, `{"message": "Cannot specify an ID for a POST request"}`},
		{"post without body", "POST", "/test", "", 400,
			`{"message": "Must specify a valid JSON object (dictionary) of columns to set for the new row"}`},
		{"post list of scalars", "POST", "/test", `["a"]`, 400,
			`{"message": "Must specify a valid JSON object (dictionary) of columns to set for the new row"}`},
		{"post list", "POST", "/test",
			`[{"description": "test 3", "value": 3.0}, {"description": "test 4", "value": 4.4}]`,
			201, `{"success": true, "ids": [3, 4]}`},
		{"search", "POST", "/test/search", `{"where": ["id", "lte", 3]}`, 200, `{"results": [
			{"id": 1, "description": "test 1", "value": 1.5},
			{"id": 2, "description": "test 2", "value": 2.5},
			{"id": 3, "description": "test 3", "value": 3.0}]}`},
		{"search and", "POST", "/test/search", `{"where": {"and": [["id", "lte", 3], ["id", ">", 1]]}}`, 200,
			`{"results": [
			{"id": 2, "description": "test 2", "value": 2.5},
			{"id": 3, "description": "test 3", "value": 3.0}]}`},
		{"search limit offset", "POST", "/test/search", `{"where": ["id", "lte", 3], "limit": 1, "offset": 1}`, 200,
			`{"results": [{"id": 2, "description": "test 2", "value": 2.5}]}`},
		{"search order", "POST", "/test/search",
			`{"where": ["id", "lte", 3], "limit": 2, "order_by": {"column": "id", "direction": "desc"}}`, 200,
			`{"results": [
			{"id": 3, "description": "test 3", "value": 3.0},
			{"id": 2, "description": "test 2", "value": 2.5}]}`},
		{"search order list", "POST", "/test/search",
			`{"where": ["id", "lte", 3], "order_by": [{"column": "value", "direction": "desc"}, "id"], "limit": 1}`, 200,
			`{"results": [{"id": 3, "description": "test 3", "value": 3.0}]}`},
		{"search bad order", "POST", "/test/search",
			`{"where": ["id", "lte", 3], "limit": 2, "order_by": {"direction": "desc"}}`, 400,
			`{"message": "Complex order_by request must contain a column key and an optional direction key in the input dictionary"}`},
		{"search fractional limit", "POST", "/test/search", `{"where": ["id", "lte", 3], "limit": 1.5}`, 400,
			`{"message": "limit must be a positive integer, 1 or greater"}`},
		{"search unknown key", "POST", "/test/search", `{"where": ["id", "lte", 3], "bogus": 1}`, 400,
			`{"message": "Unknown search parameter \"bogus\""}`},
		{"search no results", "POST", "/test/search", `{"where": ["id", "gte", 10]}`, 200, `{"results": null}`},
		{"search with set", "POST", "/test/search", `{"where": ["id", "gte", 10], "set": {"value": 11}}`, 400,
			`{"message": "The set JSON object is not valid for this request (did you mean PATCH?)"}`},
		{"search without body", "POST", "/test/search", "", 400,
			`{"message": "Must specify a valid JSON object (dictionary) with a valid where parameter list"}`},
		{"put object", "PUT", "/test", `{"id": 3, "description": "test 3", "value": -3.3}`, 200, `{"success": true}`},
		{"put with id", "PUT", "/test/1", "", 400,
			`{"message": "Cannot specify an ID for a PUT request - all IDs must be specified in the provided JSON objects, or use PATCH to update one object by ID"}`},
		{"put empty list", "PUT", "/test", `[]`, 400,
			`{"message": "Must specify a valid JSON object (dictionary) of columns to set or update"}`},
		{"put list of scalars", "PUT", "/test", `["a"]`, 400,
			`{"message": "Must specify a valid JSON object (dictionary) of columns to set or update"}`},
		{"put mixed list", "PUT", "/test",
			`[{"id": 3, "description": "test 3", "value": -3.0}, {"description": "test 5", "value": 55}]`,
			200, `{"success": true}`},
		{"get put", "GET", "/test/3", "", 200, `{"id": 3, "description": "test 3", "value": -3.0}`},
		{"delete", "DELETE", "/test/2", "", 200, `{"success": true}`},
		{"get deleted", "GET", "/test/2", "", 404, `{"message": "Requested ID not found"}`},
		{"delete without id", "DELETE", "/test", "", 400, `{"message": "Must specify an ID for a DELETE request"}`},
		{"patch where", "PATCH", "/test/where", `{"where": ["id", "eq", 5], "set": {"value": 55.5}}`, 200,
			`{"success": true}`},
		{"patch where without set", "PATCH", "/test/where", `{"where": ["id", "eq", 5]}`, 400,
			`{"message": "Must specify a set JSON object (dictionary) with the columns to be set"}`},
		{"patch where with set list", "PATCH", "/test/where", `{"where": ["id", "eq", 5], "set": ["value", 1]}`, 400,
			`{"message": "Must specify a set JSON object (dictionary) with the columns to be set"}`},
		{"get patched where", "GET", "/test/5", "", 200, `{"id": 5, "description": "test 5", "value": 55.5}`},
	}

	for _, step := range steps {
		w := perform(router, step.method, step.path, step.body)
		t.Run(step.name, func(t *testing.T) {
			assertJSON(t, w, step.status, step.want)
		})
	}

	assert.False(t, db.InTransaction())
}

func TestFailedWriteRollsBack(t *testing.T) {
	router, db := setupRouter(t)

	w := perform(router, "PUT", "/test", `[{"description": "kept?"}, {"bogus": 1}]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, db.InTransaction())

	w = perform(router, "POST", "/test/search", `{"where": ["description", "eq", "kept?"]}`)
	assertJSON(t, w, http.StatusOK, `{"results": null}`)

	w = perform(router, "PATCH", "/test/where", `{"where": ["id", "eq", 1], "set": {"value": 1}, "extra": true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(router, "POST", "/test", `{"description": `)
	assertJSON(t, w, http.StatusBadRequest,
		`{"message": "Must specify a valid JSON object (dictionary) of columns to set for the new row"}`)
}

func TestIntegrityViolationIsConflict(t *testing.T) {
	router, _ := setupRouter(t)

	w := perform(router, "POST", "/test", `{"id": 1, "description": "duplicate"}`)
	assertJSON(t, w, http.StatusConflict, `{"message": "The request violates a database constraint"}`)
}
