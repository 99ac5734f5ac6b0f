package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Intents             *prometheus.CounterVec
	Actions             *prometheus.CounterVec
	CollaboratorSeconds *prometheus.HistogramVec
	ResolverMatches     *prometheus.CounterVec
}

// New registers the service collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Intents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scbackend_intents_total",
				Help: "Classified messages by intent and classifier source",
			},
			[]string{"intent", "source"},
		),
		Actions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scbackend_actions_total",
				Help: "Dispatched actions by intent and outcome",
			},
			[]string{"intent", "outcome"},
		),
		CollaboratorSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scbackend_collaborator_duration_seconds",
				Help:    "Duration of outbound collaborator calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collaborator"},
		),
		ResolverMatches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scbackend_resolver_matches_total",
				Help: "Event resolution attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) Intent(intent, source string) {
	m.Intents.WithLabelValues(intent, source).Inc()
}

func (m *Metrics) Action(intent, outcome string) {
	m.Actions.WithLabelValues(intent, outcome).Inc()
}

func (m *Metrics) Observe(collaborator string, d time.Duration) {
	m.CollaboratorSeconds.WithLabelValues(collaborator).Observe(d.Seconds())
}

func (m *Metrics) Resolution(outcome string) {
	m.ResolverMatches.WithLabelValues(outcome).Inc()
}
