// Package endpoint exposes compositor tables as JSON REST resources on a gin router.
//
// Each registered table gets:
//
//	GET    /<table>/:id      fetch one row by id
//	POST   /<table>          insert one object or a list of objects
//	POST   /<table>/search   select with where, order_by, limit and offset
//	PATCH  /<table>/:id      update one row by id
//	PATCH  /<table>/where    update every row matching where
//	PUT    /<table>          update rows carrying an id, insert the rest
//	DELETE /<table>/:id      delete one row by id
//
// Writes commit on success and roll back on failure.
package endpoint

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/restomatic/restomatic-go/internal/debug"
	"github.com/restomatic/restomatic-go/query/ast"
	qerrors "github.com/restomatic/restomatic-go/query/errors"
	"github.com/restomatic/restomatic-go/query/validate"
	"github.com/restomatic/restomatic-go/runtime/client"
)

// Methods lists the HTTP methods Register accepts.
var Methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPatch,
	http.MethodPut,
	http.MethodDelete,
}

const (
	msgInvalidID      = "Invalid ID, must be a positive integer, 1 or greater"
	msgNotFound       = "Requested ID not found"
	msgGetNoID        = "Must specify an ID for this GET request"
	msgPatchNoID      = "Must specify an ID for a PATCH request"
	msgDeleteNoID     = "Must specify an ID for a DELETE request"
	msgPostID         = "Cannot specify an ID for a POST request"
	msgPutID          = "Cannot specify an ID for a PUT request - all IDs must be specified in the provided JSON objects, or use PATCH to update one object by ID"
	msgPatchBody      = "Must specify a valid JSON object (dictionary) of columns to set for this ID"
	msgPatchSet       = "Must specify a set JSON object (dictionary) with the columns to be set"
	msgPostBody       = "Must specify a valid JSON object (dictionary) of columns to set for the new row"
	msgPutBody        = "Must specify a valid JSON object (dictionary) of columns to set or update"
	msgWhereBody      = "Must specify a valid JSON object (dictionary) with a valid where parameter list"
	msgSearchSet      = "The set JSON object is not valid for this request (did you mean PATCH?)"
	msgInternalError  = "Internal server error"
	msgIntegrityError = "The request violates a database constraint"
)

// Server serves tables of one database handle. Requests are serialized
// because a handle carries a single implicit transaction.
type Server struct {
	db *client.DB
	mu sync.Mutex
}

// New creates a Server for db.
func New(db *client.DB) *Server {
	return &Server{db: db}
}

// Register mounts the routes of table for the given methods on router.
// No methods means all of them.
func (s *Server) Register(router gin.IRouter, table string, methods ...string) error {
	if !s.db.Registry().Has(table) {
		return fmt.Errorf("cannot register endpoint for unknown table %q", table)
	}
	if len(methods) == 0 {
		methods = Methods
	}

	var normalized []string
	for _, m := range methods {
		upper := strings.ToUpper(m)
		if !slices.Contains(Methods, upper) {
			return fmt.Errorf("cannot register endpoint for %q: unsupported method %q", table, m)
		}
		if !slices.Contains(normalized, upper) {
			normalized = append(normalized, upper)
		}
	}

	h := &tableHandler{server: s, table: table}
	base := "/" + table
	for _, m := range normalized {
		switch m {
		case http.MethodGet:
			router.GET(base, s.handle(h.getNoID))
			router.GET(base+"/:id", s.handle(h.get))
		case http.MethodPost:
			router.POST(base, s.handle(h.post))
			router.POST(base+"/search", s.handle(h.search))
			router.POST(base+"/:id", s.handle(h.postWithID))
		case http.MethodPatch:
			router.PATCH(base, s.handle(h.patchNoID))
			router.PATCH(base+"/where", s.handle(h.patchWhere))
			router.PATCH(base+"/:id", s.handle(h.patch))
		case http.MethodPut:
			router.PUT(base, s.handle(h.put))
			router.PUT(base+"/:id", s.handle(h.putWithID))
		case http.MethodDelete:
			router.DELETE(base, s.handle(h.deleteNoID))
			router.DELETE(base+"/:id", s.handle(h.delete))
		}
	}
	debug.Debug("endpoint registered", "table", table, "methods", normalized)
	return nil
}

// Register mounts table on router through a new Server for db.
func Register(router gin.IRouter, db *client.DB, table string, methods ...string) (*Server, error) {
	s := New(db)
	if err := s.Register(router, table, methods...); err != nil {
		return nil, err
	}
	return s, nil
}

type handlerFunc func(c *gin.Context) error

// handle serializes access to the handle and renders errors. Any pending
// transaction is rolled back when the handler fails.
func (s *Server) handle(fn handlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if err := fn(c); err != nil {
			if rbErr := s.db.Rollback(); rbErr != nil {
				debug.Error("rollback failed", "error", rbErr)
			}
			renderError(c, err)
		}
	}
}

func renderError(c *gin.Context, err error) {
	if e, ok := qerrors.As(err); ok {
		c.JSON(e.StatusCode, e.ToMap())
		return
	}
	if client.IsIntegrityViolation(err) {
		c.JSON(http.StatusConflict, gin.H{"message": msgIntegrityError})
		return
	}
	debug.Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": msgInternalError})
}

func badRequest(msg string) error {
	return qerrors.New(qerrors.KindBadInput, msg, http.StatusBadRequest, nil)
}

type tableHandler struct {
	server *Server
	table  string
}

func (h *tableHandler) db() *client.DB { return h.server.db }

// commit commits the pending writes, if any.
func (h *tableHandler) commit() error {
	return h.db().Commit(client.NoChangesOK())
}

func parseID(c *gin.Context) (int, error) {
	id, err := validate.TypePosInt(c.Param("id"))
	if err != nil {
		return 0, badRequest(msgInvalidID)
	}
	return id, nil
}

// readBody decodes the JSON request body. An empty body decodes to nil.
func readBody(c *gin.Context, invalidMsg string) (any, error) {
	data, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	v, err := ast.DecodeJSON(data)
	if err != nil {
		return nil, badRequest(invalidMsg)
	}
	return v, nil
}

// objectBody requires a JSON object body.
func objectBody(c *gin.Context, invalidMsg string) (map[string]any, error) {
	v, err := readBody(c, invalidMsg)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, badRequest(invalidMsg)
	}
	return m, nil
}

// objectsBody accepts one JSON object or a non-empty array of objects.
func objectsBody(c *gin.Context, invalidMsg string) (objs []map[string]any, list bool, err error) {
	v, err := readBody(c, invalidMsg)
	if err != nil {
		return nil, false, err
	}
	switch body := v.(type) {
	case map[string]any:
		return []map[string]any{body}, false, nil
	case []any:
		if len(body) == 0 {
			return nil, true, badRequest(invalidMsg)
		}
		for _, item := range body {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, true, badRequest(invalidMsg)
			}
			objs = append(objs, m)
		}
		return objs, true, nil
	}
	return nil, false, badRequest(invalidMsg)
}

func (h *tableHandler) getNoID(*gin.Context) error    { return badRequest(msgGetNoID) }
func (h *tableHandler) patchNoID(*gin.Context) error  { return badRequest(msgPatchNoID) }
func (h *tableHandler) deleteNoID(*gin.Context) error { return badRequest(msgDeleteNoID) }
func (h *tableHandler) postWithID(*gin.Context) error { return badRequest(msgPostID) }
func (h *tableHandler) putWithID(*gin.Context) error  { return badRequest(msgPutID) }

func (h *tableHandler) get(c *gin.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	rec, err := h.db().SelectAll(h.table).ByID(id).WithContext(c.Request.Context()).OneOrNoneMapped()
	if err != nil {
		return err
	}
	if rec == nil {
		return qerrors.New(qerrors.KindBadInput, msgNotFound, http.StatusNotFound, nil)
	}
	c.JSON(http.StatusOK, rec)
	return nil
}

func (h *tableHandler) post(c *gin.Context) error {
	objs, list, err := objectsBody(c, msgPostBody)
	if err != nil {
		return err
	}
	res, err := h.db().Insert(h.table).WithContext(c.Request.Context()).ValuesMapped(objs).Run()
	if err != nil {
		return err
	}
	if err := h.commit(); err != nil {
		return err
	}
	if list {
		c.JSON(http.StatusCreated, gin.H{"success": true, "ids": res.RowIDs()})
		return nil
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": res.LastRowID()})
	return nil
}

var searchKeys = []string{"where", "order_by", "limit", "offset"}

func (h *tableHandler) search(c *gin.Context) error {
	body, err := objectBody(c, msgWhereBody)
	if err != nil {
		return err
	}
	if _, ok := body["set"]; ok {
		return badRequest(msgSearchSet)
	}
	for k := range body {
		if err := validate.ExpectIn(k, searchKeys, "search parameter"); err != nil {
			return qerrors.BadInput("Unknown search parameter %q", k).Wrap(err)
		}
	}
	where, ok := body["where"]
	if !ok {
		return badRequest(msgWhereBody)
	}

	q := h.db().SelectAll(h.table).WithContext(c.Request.Context()).Where(where)
	if orderBy, ok := body["order_by"]; ok {
		if specs, isList := ast.Sequence(orderBy); isList {
			for _, spec := range specs {
				q = q.OrderBy(spec)
			}
		} else {
			q = q.OrderBy(orderBy)
		}
	}
	if limit, ok := body["limit"]; ok {
		q = q.Limit(limit)
	}
	if offset, ok := body["offset"]; ok {
		q = q.Offset(offset)
	}

	results, err := q.AllMapped()
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
	return nil
}

func (h *tableHandler) patch(c *gin.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	set, err := objectBody(c, msgPatchBody)
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return badRequest(msgPatchBody)
	}
	if _, err := h.db().UpdateMapped(h.table, set).ByID(id).WithContext(c.Request.Context()).Run(); err != nil {
		return err
	}
	if err := h.commit(); err != nil {
		return err
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
	return nil
}

func (h *tableHandler) patchWhere(c *gin.Context) error {
	body, err := objectBody(c, msgWhereBody)
	if err != nil {
		return err
	}
	where, ok := body["where"]
	if !ok {
		return badRequest(msgWhereBody)
	}
	if err := validate.ExpectType[map[string]any](body["set"], "set"); err != nil {
		return badRequest(msgPatchSet)
	}
	set := body["set"].(map[string]any)
	if len(set) == 0 {
		return badRequest(msgPatchSet)
	}
	for k := range body {
		if err := validate.ExpectIn(k, []string{"where", "set"}, "update parameter"); err != nil {
			return qerrors.BadInput("Unknown update parameter %q", k).Wrap(err)
		}
	}

	if _, err := h.db().UpdateMapped(h.table, set).Where(where).WithContext(c.Request.Context()).Run(); err != nil {
		return err
	}
	if err := h.commit(); err != nil {
		return err
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
	return nil
}

func (h *tableHandler) put(c *gin.Context) error {
	objs, _, err := objectsBody(c, msgPutBody)
	if err != nil {
		return err
	}

	idColumn := h.db().IDColumn()
	for _, obj := range objs {
		id, hasID := obj[idColumn]
		if !hasID || id == nil {
			if _, err := h.db().InsertMapped(h.table, obj).Run(); err != nil {
				return err
			}
			continue
		}
		if _, err := validate.TypePosInt(id); err != nil {
			return badRequest(msgInvalidID)
		}
		if _, err := h.db().UpdateMapped(h.table, obj).ByID(id).Run(); err != nil {
			return err
		}
	}
	if err := h.commit(); err != nil {
		return err
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
	return nil
}

func (h *tableHandler) delete(c *gin.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if _, err := h.db().Delete(h.table).ByID(id).WithContext(c.Request.Context()).Run(); err != nil {
		return err
	}
	if err := h.commit(); err != nil {
		return err
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
	return nil
}
