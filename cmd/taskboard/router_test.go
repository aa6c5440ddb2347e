package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/taskboard/internal/common/config"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/events/bus"
)

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Logging:  config.LoggingConfig{Level: "debug"},
		Board: config.BoardConfig{
			DefaultName: "Team",
			SeedUsers:   []config.SeedUser{{ID: "u1", Name: "Alice", Email: "alice@example.com"}},
		},
		Events: config.EventsConfig{Namespace: "staging"},
	}
}

func newTestBus(t *testing.T) *bus.MemoryEventBus {
	t.Helper()
	b := bus.NewMemoryEventBus(logger.NewNop())
	t.Cleanup(b.Close)
	return b
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := newRouter(testConfig(), logger.NewNop(), prometheus.NewRegistry(), newTestBus(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, config.DriverMemory, body["storage"])
	assert.Equal(t, "connected", body["events"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRouter_HealthReportsClosedBus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	eventBus := bus.NewMemoryEventBus(logger.NewNop())
	router := newRouter(testConfig(), logger.NewNop(), prometheus.NewRegistry(), eventBus)
	eventBus.Close()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "disconnected", body["events"])
}

func TestRouter_Preflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := newRouter(testConfig(), logger.NewNop(), prometheus.NewRegistry(), newTestBus(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/boards", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServiceOptions(t *testing.T) {
	opts := serviceOptions(testConfig())
	assert.Equal(t, "Team", opts.DefaultName)
	assert.Equal(t, "staging", opts.Namespace)
	require.Len(t, opts.SeedUsers, 1)
	assert.Equal(t, "alice@example.com", opts.SeedUsers[0].Email)
}
