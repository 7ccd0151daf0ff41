package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/scapslice/internal/api"
	"github.com/gyaneshwarpardhi/scapslice/internal/config"
	"github.com/gyaneshwarpardhi/scapslice/internal/engine"
)

func newHandler(t *testing.T) (*api.Handler, *engine.Engine, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scapslice.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  workers: 2\n"), 0o644))
	loader, err := config.NewLoader(path)
	require.NoError(t, err)
	eng := engine.New(loader.Config())
	return api.New(eng, loader), eng, path
}

func do(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthzAndMetrics(t *testing.T) {
	h, _, _ := newHandler(t)

	rec := do(h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "scapslice_batches_run_total")
}

func TestReport(t *testing.T) {
	h, _, _ := newHandler(t)

	rec := do(h, http.MethodGet, "/v1/report")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h.SetReport(&engine.Report{RunID: "run-7", Items: []*engine.Item{{Key: "r", Status: engine.StatusOK}}})
	rec = do(h, http.MethodGet, "/v1/report")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-7", body["run_id"])
}

func TestReloadConfig(t *testing.T) {
	h, eng, path := newHandler(t)
	assert.Equal(t, 2, eng.Config().Engine.Workers)

	require.NoError(t, os.WriteFile(path, []byte("engine:\n  workers: 5\n"), 0o644))
	rec := do(h, http.MethodPost, "/v1/config/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, eng.Config().Engine.Workers)

	rec = do(h, http.MethodGet, "/v1/config")
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, os.WriteFile(path, []byte("graph:\n  conflict_policy: newest\n"), 0o644))
	rec = do(h, http.MethodPost, "/v1/config/reload")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, 5, eng.Config().Engine.Workers)
}
