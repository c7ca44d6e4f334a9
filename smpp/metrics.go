package smpp

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "smppd",
			Name:      "sessions_active",
			Help:      "Sessions with an open transport.",
		},
	)
	pdusTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smppd",
			Name:      "pdus_total",
			Help:      "PDUs read and written, by direction and command.",
		},
		[]string{"direction", "command"},
	)
	responsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smppd",
			Name:      "responses_total",
			Help:      "Responses sent to clients, by command and status.",
		},
		[]string{"command", "status"},
	)
	outboundTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smppd",
			Name:      "outbound_requests_total",
			Help:      "Server originated requests, by command and result.",
		},
		[]string{"command", "result"},
	)
	outboundDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "smppd",
			Name:      "outbound_request_duration_seconds",
			Help:      "Time from writing a server originated request to its resolution.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command"},
	)
)

// RegisterMetrics registers the engine collectors with the default registry.
// It is safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(sessionsActive, pdusTotal, responsesTotal, outboundTotal, outboundDuration)
	})
}

func recordPDU(direction string, id CommandID) {
	pdusTotal.WithLabelValues(direction, id.String()).Inc()
}

func recordResponse(id CommandID, status CommandStatus) {
	responsesTotal.WithLabelValues(id.String(), status.String()).Inc()
}

func recordOutbound(id CommandID, started time.Time, resp *Packet, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrTimeout):
		result = "timeout"
	case errors.Is(err, ErrClosed):
		result = "closed"
	case err != nil:
		result = "error"
	case resp != nil && !resp.Status.Ok():
		result = "rejected"
	}
	outboundTotal.WithLabelValues(id.String(), result).Inc()
	outboundDuration.WithLabelValues(id.String()).Observe(time.Since(started).Seconds())
}
