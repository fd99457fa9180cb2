package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Route labels come from c.FullPath so ids never become label values.
var (
	reqTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})

	reqSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency. Websocket routes measure session length.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	inflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_inflight",
		Help: "Requests currently being served.",
	})

	respBytes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_response_size_bytes",
		Help:    "HTTP response body size.",
		Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B..4MiB
	}, []string{"method", "path"})

	wsUpgrades = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_websocket_upgrades_total",
		Help: "Websocket upgrade attempts by route and status; 101 is success.",
	}, []string{"path", "status"})
)

func init() {
	prometheus.MustRegister(reqTotal, reqSeconds, inflight, respBytes, wsUpgrades)
}

// Metrics records the http_* series for every request.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		inflight.Inc()
		defer inflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path // unmatched
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		reqTotal.WithLabelValues(method, path, status).Inc()
		reqSeconds.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if n := c.Writer.Size(); n >= 0 { // hijacked sockets report -1
			respBytes.WithLabelValues(method, path).Observe(float64(n))
		}
		if isWebsocketUpgrade(c) {
			wsUpgrades.WithLabelValues(path, status).Inc()
		}
	}
}
