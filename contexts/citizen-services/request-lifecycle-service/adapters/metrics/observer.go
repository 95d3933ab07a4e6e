package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
)

// Observer exports lifecycle telemetry to Prometheus.
type Observer struct {
	transitions *prometheus.CounterVec
	drops       prometheus.Counter
	overdue     prometheus.Gauge
}

// NewObserver registers collectors on reg; nil uses the default registerer.
func NewObserver(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Observer{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pqrsd",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Lifecycle transitions broken down by event and result.",
		}, []string{"event", "result"}),
		drops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pqrsd",
			Subsystem: "notifications",
			Name:      "dropped_total",
			Help:      "Lifecycle notifications dropped for slow subscribers.",
		}),
		overdue: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "pqrsd",
			Subsystem: "deadlines",
			Name:      "overdue_requests",
			Help:      "Open requests past their due date at the last sweep.",
		}),
	}
}

func (o *Observer) ObserveTransition(event entities.EventType, result string) {
	o.transitions.With(prometheus.Labels{
		"event":  string(event),
		"result": result,
	}).Inc()
}

func (o *Observer) ObserveDrop() {
	o.drops.Inc()
}

func (o *Observer) ObserveOverdue(count int) {
	o.overdue.Set(float64(count))
}
