package bouncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	outcomeBounced     = "bounced"
	outcomeHandled     = "handled"
	outcomeDeferred    = "deferred"
	outcomeNotFound    = "not_found"
	outcomeParseError  = "parse_error"
	outcomeHandlerFail = "handler_error"
	outcomeLimited     = "rate_limited"
)

// metrics holds the bouncer's collectors on a registry owned by one server,
// so several servers can live in one process.
type metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	forwards        *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "abstractbot",
			Subsystem: "bouncer",
			Name:      "requests_total",
			Help:      "Requests by outcome.",
		}, []string{"outcome"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "abstractbot",
			Subsystem: "bouncer",
			Name:      "handler_duration_seconds",
			Help:      "Endpoint handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "abstractbot",
			Subsystem: "bouncer",
			Name:      "forwards_total",
			Help:      "Deferred forwards by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.handlerDuration,
		m.forwards,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
