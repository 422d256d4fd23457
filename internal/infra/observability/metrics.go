package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the assistant.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	turnsTotal        *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	externalErrors    *prometheus.CounterVec
	documentsTotal    *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	sessionCache      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "srbot_turns_total",
				Help: "Dialogue turns processed, by stage at entry.",
			},
			[]string{"stage"},
		),
		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "srbot_stage_transitions_total",
				Help: "Stage transitions, by destination stage.",
			},
			[]string{"to"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "srbot_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		documentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "srbot_documents_total",
				Help: "Documents generated, by kind and result.",
			},
			[]string{"kind", "result"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "srbot_operation_duration_seconds",
				Help:    "Duration of operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		sessionCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "srbot_session_cache_total",
				Help: "Session cache lookups, by result.",
			},
			[]string{"result"},
		),
	}
}

// IncrTurn counts a processed turn.
func (m *Metrics) IncrTurn(stage string) {
	m.turnsTotal.WithLabelValues(stage).Inc()
}

// IncrTransition counts a stage change.
func (m *Metrics) IncrTransition(to string) {
	m.transitionsTotal.WithLabelValues(to).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrDocument counts a document generation attempt.
func (m *Metrics) IncrDocument(kind string, ok bool) {
	result := "success"
	if !ok {
		result = "error"
	}
	m.documentsTotal.WithLabelValues(kind, result).Inc()
}

// RecordDuration records the duration of an operation.
func (m *Metrics) RecordDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrCacheHit increments the session cache hit counter.
func (m *Metrics) IncrCacheHit() {
	m.sessionCache.WithLabelValues("hit").Inc()
}

// IncrCacheMiss increments the session cache miss counter.
func (m *Metrics) IncrCacheMiss() {
	m.sessionCache.WithLabelValues("miss").Inc()
}

// Snapshot is a point-in-time summary served by /v1/stats.
type Snapshot struct {
	Turns             float64 `json:"turns"`
	DocumentsOK       float64 `json:"documentsOk"`
	DocumentsFailed   float64 `json:"documentsFailed"`
	ExternalErrors    float64 `json:"externalErrors"`
	SessionCacheHitRt float64 `json:"sessionCacheHitRate"`
}

// Snapshot gathers the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	var s Snapshot
	s.Turns = sumCounterVec(m.turnsTotal)
	s.ExternalErrors = sumCounterVec(m.externalErrors)
	for _, kind := range []string{"single", "multi", "contract_report"} {
		s.DocumentsOK += getCounterValue(m.documentsTotal, kind, "success")
		s.DocumentsFailed += getCounterValue(m.documentsTotal, kind, "error")
	}
	hits := getCounterValue(m.sessionCache, "hit")
	misses := getCounterValue(m.sessionCache, "miss")
	if hits+misses > 0 {
		s.SessionCacheHitRt = hits / (hits + misses)
	}
	return s
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()
	var total float64
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if m.Counter != nil && m.Counter.Value != nil {
			total += *m.Counter.Value
		}
	}
	return total
}
