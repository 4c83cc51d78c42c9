package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/errs"
	"github.com/koustreak/minorm/internal/logger"
	"github.com/koustreak/minorm/internal/orm"
)

const (
	healthTimeout    = 5 * time.Second
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

type fieldInfo struct {
	Attribute  string `json:"attribute"`
	Column     string `json:"column"`
	Kind       string `json:"kind"`
	ColumnType string `json:"column_type"`
	PrimaryKey bool   `json:"primary_key"`
}

type modelInfo struct {
	Model  string      `json:"model"`
	Table  string      `json:"table"`
	Fields []fieldInfo `json:"fields"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	stats := s.pool.Stats()
	resp := map[string]any{
		"status": "healthy",
		"pool": map[string]any{
			"capacity": stats.Capacity,
			"in_use":   stats.InUse,
			"waiting":  stats.Waiting,
		},
	}

	if err := s.pool.Ping(ctx); err != nil {
		logger.FromContext(r.Context()).With().Err(err).Logger().Error("database health check failed")
		resp["status"] = "unhealthy"
		resp["error"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	tables := s.registry.Tables()
	out := make([]modelInfo, 0, len(tables))
	for _, t := range tables {
		info := modelInfo{Model: t.Model, Table: t.Name}
		for _, attr := range t.Attributes() {
			f, _ := t.Field(attr)
			info.Fields = append(info.Fields, fieldInfo{
				Attribute:  attr,
				Column:     f.Name,
				Kind:       f.Kind.String(),
				ColumnType: f.ColumnType,
				PrimaryKey: f.PrimaryKey,
			})
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}

	rec, err := t.Find(r.Context(), s.pool, s.pathKey(t, r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rec == nil {
		writeError(w, r, errs.Newf(errs.ErrKindNotFound, "%s %s not found", t.Model, chi.URLParam(r, "id")))
		return
	}
	writeJSON(w, http.StatusOK, rec.Values())
}

// handleFindAll lists rows in primary key order, paged by the limit and
// offset query parameters.
func (s *Server) handleFindAll(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}

	limit, err := intParam(r, "limit", defaultPageLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filter := database.NewFilter().
		OrderBy(t.Column(t.PrimaryKey), database.Asc).
		Limit(min(limit, maxPageLimit)).
		Offset(offset)

	recs, err := t.FindAll(r.Context(), s.pool, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]map[string]any, len(recs))
	for i, rec := range recs {
		out[i] = rec.Values()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}

	values, err := decodeValues(r, t)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec := orm.NewRecord(t, values)
	if err := rec.Save(r.Context(), s.pool); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec.Values())
}

// handleUpdate replaces the row; attributes missing from the body take
// their defaults.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}

	values, err := decodeValues(r, t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	values[t.PrimaryKey] = s.pathKey(t, r)

	rec := orm.NewRecord(t, values)
	if err := rec.Update(r.Context(), s.pool); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec.Values())
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}

	rec := orm.NewRecord(t, map[string]any{t.PrimaryKey: s.pathKey(t, r)})
	if err := rec.Remove(r.Context(), s.pool); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// table resolves the {model} URL parameter, writing a 404 when unknown.
func (s *Server) table(w http.ResponseWriter, r *http.Request) (*orm.Table, bool) {
	name := chi.URLParam(r, "model")
	t, ok := s.registry.Lookup(name)
	if !ok {
		writeError(w, r, errs.Newf(errs.ErrKindNotFound, "unknown model %q", name))
		return nil, false
	}
	return t, true
}

func (s *Server) pathKey(t *orm.Table, r *http.Request) any {
	return t.Coerce(t.PrimaryKey, chi.URLParam(r, "id"))
}

// decodeValues reads a JSON object of attribute -> value. Unknown
// attributes are rejected.
func decodeValues(r *http.Request, t *orm.Table) (map[string]any, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid JSON body", err)
	}

	values := make(map[string]any, len(body))
	for attr, v := range body {
		if _, ok := t.Field(attr); !ok {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "%s has no attribute %q", t.Model, attr)
		}
		if n, ok := v.(json.Number); ok {
			v = n.String()
		}
		values[attr] = t.Coerce(attr, v)
	}
	return values, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errs.Newf(errs.ErrKindInvalidInput, "invalid %s: %q", name, raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).With().Err(err).Logger().Error("request failed")
	}
	writeJSON(w, status, map[string]string{
		"error":   errs.KindOf(err).String(),
		"message": err.Error(),
	})
}

func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindNotFound, errs.ErrKindRowCount:
		return http.StatusNotFound
	case errs.ErrKindConflict:
		return http.StatusConflict
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindTimeout, errs.ErrKindBusy, errs.ErrKindPoolClosed, errs.ErrKindConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
