package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scahts-api/internal/service"
)

func requestCounts(t *testing.T, metrics *service.MetricsService) map[string]float64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			var path string
			for _, label := range metric.GetLabel() {
				if label.GetName() == "path" {
					path = label.GetValue()
				}
			}
			counts[path] += metric.GetCounter().GetValue()
		}
	}
	return counts
}

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics, "/health"))
	r.GET("/leave/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/leave/a", "/leave/b", "/health", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	counts := requestCounts(t, metrics)
	assert.Equal(t, float64(2), counts["/leave/:id"])
	assert.Equal(t, float64(1), counts[unmatchedRoute])
	assert.NotContains(t, counts, "/health")
}
