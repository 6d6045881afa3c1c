package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/weddingdesk/pkg/metrics"
)

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/metrics-sample", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics-sample?token=abc", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	matched := metrics.APILatency.WithLabelValues(http.MethodGet, "/metrics-sample", "200")
	require.Equal(t, 1, testutil.CollectAndCount(matched.(prometheus.Histogram)))
	unmatched := metrics.APILatency.WithLabelValues(http.MethodGet, "unmatched", "404")
	require.Equal(t, 1, testutil.CollectAndCount(unmatched.(prometheus.Histogram)))
}
