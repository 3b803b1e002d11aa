package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the operator-facing counters. A nil *Metrics is valid and
// turns every increment into a no-op, so tests can skip registration.
type Metrics struct {
	sessionsAccepted prometheus.Counter
	sessionsRejected prometheus.Counter
	recordsCreated   prometheus.Counter
	jobsRetried      prometheus.Counter
	verdicts         *prometheus.CounterVec
	blocked          prometheus.Counter
	forwarded        prometheus.Counter
	alerts           prometheus.Counter

	server *http.Server
	logger *zap.Logger
}

// New creates and registers the metric set on its own registry
func New(logger *zap.Logger) *Metrics {
	m := &Metrics{
		sessionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phishgate_sessions_accepted_total",
			Help: "Inbound SMTP sessions admitted by rate limiting",
		}),
		sessionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phishgate_sessions_rejected_total",
			Help: "Inbound SMTP sessions silently dropped by rate limiting",
		}),
		recordsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phishgate_delivery_records_total",
			Help: "Delivery records created by the gateway",
		}),
		jobsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phishgate_jobs_retried_total",
			Help: "Detection jobs requeued after a worker failure",
		}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishgate_final_verdicts_total",
			Help: "Final decisions by risk level",
		}, []string{"level"}),
		blocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phishgate_messages_blocked_total",
			Help: "Messages intercepted by policy",
		}),
		forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phishgate_messages_forwarded_total",
			Help: "Messages forwarded through the outbound relay",
		}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phishgate_alerts_sent_total",
			Help: "Security alert notifications sent",
		}),
		logger: logger,
	}

	prometheus.MustRegister(
		m.sessionsAccepted, m.sessionsRejected, m.recordsCreated,
		m.jobsRetried, m.verdicts, m.blocked, m.forwarded, m.alerts,
	)
	return m
}

// Serve exposes /metrics on the given address until Stop is called
func (m *Metrics) Serve(addr string) {
	if m == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	m.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server error", zap.Error(err))
		}
	}()
}

// Stop shuts the metrics listener down
func (m *Metrics) Stop() {
	if m == nil || m.server == nil {
		return
	}
	m.server.Close()
}

func (m *Metrics) SessionAccepted() {
	if m != nil {
		m.sessionsAccepted.Inc()
	}
}

func (m *Metrics) SessionRejected() {
	if m != nil {
		m.sessionsRejected.Inc()
	}
}

func (m *Metrics) RecordCreated() {
	if m != nil {
		m.recordsCreated.Inc()
	}
}

func (m *Metrics) JobRetried() {
	if m != nil {
		m.jobsRetried.Inc()
	}
}

func (m *Metrics) FinalVerdict(level string) {
	if m != nil {
		m.verdicts.WithLabelValues(level).Inc()
	}
}

func (m *Metrics) MessageBlocked() {
	if m != nil {
		m.blocked.Inc()
	}
}

func (m *Metrics) MessageForwarded() {
	if m != nil {
		m.forwarded.Inc()
	}
}

func (m *Metrics) AlertSent() {
	if m != nil {
		m.alerts.Inc()
	}
}
