package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/weddingdesk/internal/monitoring"
)

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	manager := monitoring.NewHealthManager(time.Second)
	manager.RegisterLiveness(monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("database", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "connection refused"}
	}))

	handler := NewHealthHandler(manager)
	r := gin.New()
	r.GET("/health", handler.Summary)
	r.GET("/health/live", handler.Live)
	r.GET("/health/ready", handler.Ready)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var payload struct {
		Success bool                     `json:"success"`
		Status  string                   `json:"status"`
		Checks  []monitoring.ProbeResult `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.False(t, payload.Success)
	require.Equal(t, "down", payload.Status)
	require.Len(t, payload.Checks, 1)
	require.Equal(t, "database", payload.Checks[0].Component)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotContains(t, w.Body.String(), "connection refused")
}
