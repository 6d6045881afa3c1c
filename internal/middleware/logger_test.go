package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/weddingdesk/pkg/logger"
)

func TestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.DebugLevel)
	restore := logger.ReplaceGlobal(zap.New(core))
	t.Cleanup(restore)

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/accept", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/missing", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/accept?token=secret-token", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NotEmpty(t, w.Header().Get(RequestIDHeader))

	entries := recorded.FilterMessage("request").All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	require.Equal(t, "/accept", first["path"])
	require.Equal(t, "req-123", first["request_id"])
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	for _, value := range first {
		if s, ok := value.(string); ok {
			require.NotContains(t, s, "secret-token")
		}
	}

	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
}
