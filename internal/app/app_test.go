package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerage/internal/config"
	"ledgerage/pkg/contracts/domain"
)

func newTestApp(t *testing.T) *Application {
	t.Helper()
	base := t.TempDir()
	cfg := &config.Config{
		Server:  config.ServerConfig{Port: 0},
		Logging: config.LoggingConfig{Level: "error", Format: "json", Output: "stdout"},
		Paths: config.PathsConfig{
			UploadsDir:   filepath.Join(base, "uploads"),
			OutputsDir:   filepath.Join(base, "outputs"),
			DatabasePath: filepath.Join(base, "data", "app.db"),
		},
		Upload:          config.UploadConfig{MaxBytes: 1 << 20},
		RequiredColumns: domain.RequiredColumns(),
	}

	app, err := NewWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { app.Store.Close() })
	return app
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, Version, body["version"])
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ledgerage_jobs_processed_total")
}

func TestAPIMounted(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "jobs")
	assert.Contains(t, body, "pagination")
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
