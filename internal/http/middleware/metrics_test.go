package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func metricsRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/v1/users/:id/status/:kind", func(c *gin.Context) {
		if c.GetHeader("Upgrade") != "" {
			c.Status(http.StatusBadRequest) // upgrade refused
			return
		}
		c.JSON(http.StatusOK, []string{})
	})
	return r
}

func TestMetrics_LabelsByRouteNotRawPath(t *testing.T) {
	r := metricsRouter()
	const route = "/api/v1/users/:id/status/:kind"
	before := testutil.ToFloat64(reqTotal.WithLabelValues("GET", route, "200"))
	missBefore := testutil.ToFloat64(reqTotal.WithLabelValues("GET", "/nowhere", "404"))

	for _, uid := range []string{"alice", "bob", "carol"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users/"+uid+"/status/played", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if got := testutil.ToFloat64(reqTotal.WithLabelValues("GET", route, "200")); got != before+3 {
		t.Fatalf("route counter = %v; want %v", got, before+3)
	}
	if got := testutil.ToFloat64(reqTotal.WithLabelValues("GET", "/nowhere", "404")); got != missBefore+1 {
		t.Fatalf("unmatched counter = %v; want %v", got, missBefore+1)
	}
	if got := testutil.ToFloat64(inflight); got != 0 {
		t.Fatalf("inflight after requests = %v", got)
	}
}

func TestMetrics_CountsWebsocketUpgradesOnly(t *testing.T) {
	r := metricsRouter()
	label := []string{"/api/v1/users/:id/status/:kind", "400"}
	before := testutil.ToFloat64(wsUpgrades.WithLabelValues(label...))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/alice/status/played", nil)
	req.Header.Set("Upgrade", "websocket")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users/alice/status/played", nil))

	if got := testutil.ToFloat64(wsUpgrades.WithLabelValues(label...)); got != before+1 {
		t.Fatalf("ws upgrades = %v; want %v", got, before+1)
	}
}
