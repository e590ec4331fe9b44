package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhub_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskhub_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhub_chat_messages_sent_total",
			Help: "Total chat messages accepted by the ingestion gate",
		},
		[]string{"message_type"},
	)

	MessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhub_chat_messages_rejected_total",
			Help: "Total chat messages rejected before persistence",
		},
		[]string{"reason"},
	)

	ConversationListings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskhub_chat_conversation_listings_total",
			Help: "Total conversation list computations",
		},
	)

	IntegrityViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskhub_chat_integrity_violations_total",
			Help: "Chat rooms excluded because they grouped more than one counterparty",
		},
	)

	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskhub_ws_connections",
			Help: "Currently connected websocket clients",
		},
	)
)

// Middleware records request counts and latencies per route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the Prometheus scrape endpoint
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
