package reactionrole

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records reaction handling outcomes.
type Metrics interface {
	EventHandled(direction Direction, outcome Outcome)
	RoleMutation(op string, err error)
	QueueDepth(n int)
	TaskPanicked()
}

// PrometheusMetrics exports Metrics as Prometheus collectors.
type PrometheusMetrics struct {
	events    *prometheus.CounterVec
	mutations *prometheus.CounterVec
	queue     prometheus.Gauge
	panics    prometheus.Counter
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rulesbot",
			Subsystem: "reaction",
			Name:      "events_total",
			Help:      "Reaction events handled, by direction and outcome.",
		}, []string{"direction", "outcome"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rulesbot",
			Subsystem: "role",
			Name:      "mutations_total",
			Help:      "Role grant and revoke calls made to Discord, by result.",
		}, []string{"op", "result"}),
		queue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rulesbot",
			Subsystem: "reaction",
			Name:      "queue_depth",
			Help:      "Reaction events waiting for a worker.",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rulesbot",
			Subsystem: "reaction",
			Name:      "task_panics_total",
			Help:      "Worker tasks that panicked and were recovered.",
		}),
	}
	reg.MustRegister(m.events, m.mutations, m.queue, m.panics)
	return m
}

func (m *PrometheusMetrics) EventHandled(direction Direction, outcome Outcome) {
	m.events.WithLabelValues(direction.String(), string(outcome)).Inc()
}

func (m *PrometheusMetrics) RoleMutation(op string, err error) {
	m.mutations.WithLabelValues(op, FailureReason(err)).Inc()
}

func (m *PrometheusMetrics) QueueDepth(n int) {
	m.queue.Set(float64(n))
}

func (m *PrometheusMetrics) TaskPanicked() {
	m.panics.Inc()
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) EventHandled(Direction, Outcome) {}
func (NoopMetrics) RoleMutation(string, error)      {}
func (NoopMetrics) QueueDepth(int)                  {}
func (NoopMetrics) TaskPanicked()                   {}

var (
	_ Metrics = (*PrometheusMetrics)(nil)
	_ Metrics = NoopMetrics{}
)
