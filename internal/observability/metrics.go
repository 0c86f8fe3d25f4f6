package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Message outcomes.
const (
	OutcomeDispatched      = "dispatched"
	OutcomeFramingError    = "framing_error"
	OutcomeValidationError = "validation_error"
	OutcomePanic           = "panic"
)

// Sink write results.
const (
	SinkWritten = "written"
	SinkDropped = "dropped"
	SinkFailed  = "failed"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tcpapi",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tcpapi",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	connectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tcpapi",
			Subsystem: "stream",
			Name:      "connections_active",
			Help:      "Currently open stream connections.",
		},
	)
	connectionsAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tcpapi",
			Subsystem: "stream",
			Name:      "connections_total",
			Help:      "Accepted stream connections by admission result.",
		},
		[]string{"admitted"},
	)
	connectionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tcpapi",
			Subsystem: "stream",
			Name:      "connections_closed_total",
			Help:      "Closed stream connections by terminal liveness.",
		},
		[]string{"liveness"},
	)
	messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tcpapi",
			Subsystem: "stream",
			Name:      "messages_total",
			Help:      "Framed stream values by outcome.",
		},
		[]string{"outcome"},
	)
	dispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tcpapi",
			Subsystem: "stream",
			Name:      "dispatch_duration_seconds",
			Help:      "Time from framed value to processor return.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	sinkWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tcpapi",
			Subsystem: "stream",
			Name:      "sink_writes_total",
			Help:      "Reply writes by result.",
		},
		[]string{"result"},
	)
	configRefreshErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tcpapi",
			Subsystem: "plugins",
			Name:      "config_refresh_errors_total",
			Help:      "Failed per-message configuration refreshes.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			connectionsActive,
			connectionsAccepted,
			connectionsClosed,
			messages,
			dispatchDuration,
			sinkWrites,
			configRefreshErrors,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordConnectionAdmitted(admitted bool) {
	RegisterMetrics()
	connectionsAccepted.WithLabelValues(strconv.FormatBool(admitted)).Inc()
	if admitted {
		connectionsActive.Inc()
	}
}

func RecordConnectionClosed(liveness string) {
	RegisterMetrics()
	connectionsActive.Dec()
	connectionsClosed.WithLabelValues(liveness).Inc()
}

func RecordMessage(outcome string) {
	RegisterMetrics()
	messages.WithLabelValues(outcome).Inc()
}

func RecordDispatch(duration time.Duration) {
	RegisterMetrics()
	messages.WithLabelValues(OutcomeDispatched).Inc()
	dispatchDuration.Observe(duration.Seconds())
}

func RecordSinkWrite(result string) {
	RegisterMetrics()
	sinkWrites.WithLabelValues(result).Inc()
}

func RecordConfigRefreshError() {
	RegisterMetrics()
	configRefreshErrors.Inc()
}
