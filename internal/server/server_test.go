package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koustreak/minorm/internal/config"
	"github.com/koustreak/minorm/internal/connect"
	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/errs"
	"github.com/koustreak/minorm/internal/logger"
	"github.com/koustreak/minorm/internal/orm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv  *httptest.Server
	pool *database.Pool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	pool, err := connect.CreatePool(ctx, &database.Config{
		Driver: database.DriverSQLite,
		DSN:    "file:" + t.Name() + "?mode=memory&cache=shared",
	}, database.WithLogger(logger.Nop()), database.WithMetrics(database.NewMetrics("minorm", reg)))
	require.NoError(t, err)

	_, err = pool.Execute(ctx, "create table `users` (`id` bigint primary key, `username` varchar(100), `email` varchar(100), `admin` boolean)", nil)
	require.NoError(t, err)

	models := orm.NewRegistry(logger.Nop())
	models.MustRegister(orm.Declaration{Model: "User", Table: "users", Attrs: []orm.Attr{
		{Name: "id", Value: orm.IntegerField("id", orm.PrimaryKey())},
		{Name: "name", Value: orm.StringField("username")},
		{Name: "email", Value: orm.StringField("email")},
		{Name: "admin", Value: orm.BooleanField("admin")},
	}})

	s := New(config.ServerConfig{Addr: ":0"}, pool, models, reg, logger.Nop())
	srv := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		srv.Close()
		_ = pool.Close(context.Background())
	})
	return &fixture{srv: srv, pool: pool}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func TestCRUD(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/models/User", `{"id": 1, "name": "fengxi", "email": "a@b.com"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "fengxi", body["name"])
	assert.Equal(t, false, body["admin"])

	resp, body = f.do(t, http.MethodGet, "/models/User/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "fengxi", body["name"])
	assert.Equal(t, "a@b.com", body["email"])
	assert.Equal(t, float64(1), body["id"])
	assert.Equal(t, false, body["admin"])

	resp, _ = f.do(t, http.MethodPost, "/models/User", `{"id": 1, "name": "dup"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPut, "/models/User/1", `{"name": "renamed", "email": "c@d.com", "admin": true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, body = f.do(t, http.MethodGet, "/models/User/1", "")
	assert.Equal(t, "renamed", body["name"])
	assert.Equal(t, true, body["admin"])

	resp, _ = f.do(t, http.MethodPut, "/models/User/2", `{"name": "ghost"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/models/User/1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/models/User/1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["error"])

	resp, _ = f.do(t, http.MethodDelete, "/models/User/1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFindAll(t *testing.T) {
	f := newFixture(t)
	for _, b := range []string{`{"id": 3, "name": "c"}`, `{"id": 1, "name": "a"}`, `{"id": 2, "name": "b"}`} {
		resp, _ := f.do(t, http.MethodPost, "/models/User", b)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, err := http.Get(f.srv.URL + "/models/User?limit=2&offset=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rows []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0]["name"])
	assert.Equal(t, "c", rows[1]["name"])

	bad, _ := f.do(t, http.MethodGet, "/models/User?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/models/Nope/1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["message"], "unknown model")

	resp, _ = f.do(t, http.MethodPost, "/models/User", `{"id": 1, "shoe_size": 44}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/models/User", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListModels(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/models")
	require.NoError(t, err)
	defer resp.Body.Close()

	var models []modelInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&models))
	require.Len(t, models, 1)
	assert.Equal(t, "User", models[0].Model)
	assert.Equal(t, "users", models[0].Table)
	require.Len(t, models[0].Fields, 4)
	assert.Equal(t, fieldInfo{Attribute: "id", Column: "id", Kind: "IntegerField", ColumnType: "bigint", PrimaryKey: true}, models[0].Fields[0])
	assert.Equal(t, "username", models[0].Fields[1].Column)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	metrics, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	raw, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "minorm_db_operations_total")

	require.NoError(t, f.pool.Close(context.Background()))
	resp, body = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(errs.New(errs.ErrKindInvalidInput, "x")))
	assert.Equal(t, http.StatusConflict, statusFor(errs.New(errs.ErrKindConflict, "x")))
	assert.Equal(t, http.StatusForbidden, statusFor(errs.New(errs.ErrKindPermissionDenied, "x")))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(errs.New(errs.ErrKindBusy, "x")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errs.New(errs.ErrKindQueryFailed, "x")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(context.Canceled))
}
