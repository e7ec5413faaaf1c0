package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue sums a counter family in the registry
func counterValue(t *testing.T, m *Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestNew_IndependentRegistries(t *testing.T) {
	first := New()
	second := New()

	first.GatePassesIssued.Inc()

	assert.Equal(t, float64(1), counterValue(t, first, "society_gate_passes_issued_total"))
	assert.Equal(t, float64(0), counterValue(t, second, "society_gate_passes_issued_total"))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/api/v1/ping/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping/42", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, float64(1), counterValue(t, m, "society_http_requests_total"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `society_http_requests_total{method="GET",route="/api/v1/ping/:id",status="204"} 1`)
}
