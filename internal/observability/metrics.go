package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the local chat API.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "Local chat API latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	restRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rest_requests_total",
			Help: "Total number of REST calls made to the chat backend.",
		},
		[]string{"endpoint", "outcome"},
	)
	restRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_rest_request_duration_seconds",
			Help:    "Chat backend REST latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	wsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_connected",
			Help: "1 while the chat socket is connected.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"event"},
	)
	inboundMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_inbound_messages_total",
			Help: "Inbound pushes by outcome.",
		},
		[]string{"outcome"},
	)
	outboundMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_outbound_messages_total",
			Help: "Outbound sends by outcome.",
		},
		[]string{"outcome"},
	)
	historyResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_history_responses_total",
			Help: "History responses by outcome.",
		},
		[]string{"outcome"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		restRequestsTotal,
		restRequestDuration,
		wsConnected,
		wsEventsTotal,
		inboundMessagesTotal,
		outboundMessagesTotal,
		historyResponsesTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func ObserveREST(endpoint, outcome string, started time.Time) {
	restRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	restRequestDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}

func SetWSConnected(connected bool) {
	if connected {
		wsConnected.Set(1)
		return
	}
	wsConnected.Set(0)
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncInbound(outcome string) {
	inboundMessagesTotal.WithLabelValues(outcome).Inc()
}

func IncOutbound(outcome string) {
	outboundMessagesTotal.WithLabelValues(outcome).Inc()
}

func IncHistory(outcome string) {
	historyResponsesTotal.WithLabelValues(outcome).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
