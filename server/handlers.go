package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arthur-debert/cookbook/odm"
	"github.com/arthur-debert/cookbook/storage"
)

// Query parameters with a meaning of their own; every other parameter of a
// list or count request is an equality filter
const (
	paramSearch   = "q"
	paramSort     = "sort"
	paramLimit    = "limit"
	paramSkip     = "skip"
	paramPopulate = "populate"
	paramDraft    = "draft"
)

var reserved = map[string]bool{
	paramSearch: true, paramSort: true, paramLimit: true,
	paramSkip: true, paramPopulate: true, paramDraft: true,
}

type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func invalid(format string, args ...interface{}) error {
	return badRequest{fmt.Errorf(format, args...)}
}

// fail writes err with the status it maps to
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := gin.H{"error": err.Error()}

	var verrs odm.ValidationErrors
	var bad badRequest
	switch {
	case errors.As(err, &bad):
		status = http.StatusBadRequest
	case errors.As(err, &verrs):
		status = http.StatusUnprocessableEntity
		body["fields"] = verrs
	case errors.Is(err, odm.ErrNotFound), errors.Is(err, odm.ErrUnknownModel):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrVersionConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}

func (s *Server) model(c *gin.Context) (*odm.Model, bool) {
	m, err := s.registry.Lookup(c.Param("collection"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return m, true
}

// filter collects the non-reserved query parameters
func filter(c *gin.Context, m *odm.Model) (odm.Filter, error) {
	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if reserved[key] || len(values) == 0 {
			continue
		}
		params[key] = values[0]
	}
	f, err := m.Schema().ParseFilter(params)
	if err != nil {
		return nil, badRequest{err}
	}
	return f, nil
}

func populatePaths(c *gin.Context) []string {
	var paths []string
	for _, p := range strings.Split(c.Query(paramPopulate), ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func intParam(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, invalid("%s must be a non-negative integer, got %q", name, raw)
	}
	return n, nil
}

func draftParam(c *gin.Context) (bool, error) {
	raw := c.Query(paramDraft)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalid("draft must be a boolean, got %q", raw)
	}
	return b, nil
}

// listQuery builds the Find or Search query a list request describes
func listQuery(c *gin.Context, m *odm.Model) (*odm.Query, error) {
	f, err := filter(c, m)
	if err != nil {
		return nil, err
	}

	var q *odm.Query
	if text := c.Query(paramSearch); text != "" {
		q = m.Search(text, f)
	} else {
		q = m.Find(f)
	}

	if spec := c.Query(paramSort); spec != "" {
		keys, err := odm.ParseSort(spec)
		if err != nil {
			return nil, badRequest{err}
		}
		q.Sort(keys...)
	}
	limit, err := intParam(c, paramLimit, -1)
	if err != nil {
		return nil, err
	}
	skip, err := intParam(c, paramSkip, 0)
	if err != nil {
		return nil, err
	}
	return q.Limit(limit).Skip(skip).Populate(populatePaths(c)...), nil
}

func render(docs []*odm.Document) []map[string]interface{} {
	out := make([]map[string]interface{}, len(docs))
	for i, d := range docs {
		out[i] = d.Expanded()
	}
	return out
}

func (s *Server) list(c *gin.Context) {
	m, ok := s.model(c)
	if !ok {
		return
	}
	q, err := listQuery(c, m)
	if err != nil {
		s.fail(c, err)
		return
	}
	docs, err := q.ExecAll(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, render(docs))
}

func (s *Server) count(c *gin.Context) {
	m, ok := s.model(c)
	if !ok {
		return
	}
	f, err := filter(c, m)
	if err != nil {
		s.fail(c, err)
		return
	}

	q := m.Count(f)
	if text := c.Query(paramSearch); text != "" {
		q = m.Search(text, f)
	}
	n, err := q.ExecCount(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// find loads the :id document or writes a 404
func (s *Server) find(c *gin.Context, m *odm.Model, populate ...string) (*odm.Document, bool) {
	id := c.Param("id")
	d, err := m.FindByID(id).Populate(populate...).ExecOne(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	if d == nil {
		s.fail(c, fmt.Errorf("%s %s: %w", m.Name(), id, odm.ErrNotFound))
		return nil, false
	}
	return d, true
}

func (s *Server) get(c *gin.Context) {
	m, ok := s.model(c)
	if !ok {
		return
	}
	d, ok := s.find(c, m, populatePaths(c)...)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, d.Expanded())
}

// body decodes the JSON object of a create or update request
func body(c *gin.Context) (map[string]interface{}, error) {
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		return nil, badRequest{err}
	}
	return fields, nil
}

// save validates d before persisting it
func save(c *gin.Context, d *odm.Document) error {
	asDraft, err := draftParam(c)
	if err != nil {
		return err
	}
	if errs := d.Validate(); errs != nil {
		return errs
	}
	return d.Save(c.Request.Context(), odm.SaveOptions{AsDraft: asDraft})
}

func (s *Server) create(c *gin.Context) {
	m, ok := s.model(c)
	if !ok {
		return
	}
	fields, err := body(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	d := m.New(fields)
	if err := save(c, d); err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("created", "collection", m.Name(), "id", d.ID(), "draft", d.IsDraft())
	c.JSON(http.StatusCreated, d.Expanded())
}

func (s *Server) update(c *gin.Context) {
	m, ok := s.model(c)
	if !ok {
		return
	}
	fields, err := body(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if id, ok := fields["id"]; ok && id != c.Param("id") {
		s.fail(c, invalid("id cannot be changed"))
		return
	}

	d, ok := s.find(c, m)
	if !ok {
		return
	}
	d.Assign(fields)
	if err := save(c, d); err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("updated", "collection", m.Name(), "id", d.ID(), "draft", d.IsDraft())
	c.JSON(http.StatusOK, d.Expanded())
}

func (s *Server) remove(c *gin.Context) {
	m, ok := s.model(c)
	if !ok {
		return
	}
	d, ok := s.find(c, m)
	if !ok {
		return
	}
	if err := d.Delete(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("deleted", "collection", m.Name(), "id", d.ID(), "draft", d.IsDraft())
	c.Status(http.StatusNoContent)
}
