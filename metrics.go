package auth

import "github.com/prometheus/client_golang/prometheus"

// Metrics records session, guard and profile activity. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	evaluations  *prometheus.CounterVec
	purges       prometheus.Counter
	decisions    *prometheus.CounterVec
	fetches      *prometheus.CounterVec
	publications prometheus.Counter
}

// NewMetrics registers the auth client metrics on the provided registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	evaluations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth_client",
		Name:      "session_evaluations_total",
		Help:      "Session evaluations by resulting state.",
	}, []string{"state"})
	purges := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "auth_client",
		Name:      "token_purges_total",
		Help:      "Stored tokens cleared because they were malformed or expired.",
	})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth_client",
		Name:      "guard_decisions_total",
		Help:      "Route guard decisions by guard and outcome.",
	}, []string{"guard", "decision"})
	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth_client",
		Name:      "profile_fetches_total",
		Help:      "Profile fetches by result.",
	}, []string{"result"})
	publications := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "auth_client",
		Name:      "state_publications_total",
		Help:      "Auth states published to subscribers.",
	})
	reg.MustRegister(evaluations, purges, decisions, fetches, publications)
	return &Metrics{
		evaluations:  evaluations,
		purges:       purges,
		decisions:    decisions,
		fetches:      fetches,
		publications: publications,
	}
}

func (m *Metrics) observeSession(s Session) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(string(s.State)).Inc()
}

func (m *Metrics) incPurge() {
	if m == nil {
		return
	}
	m.purges.Inc()
}

func (m *Metrics) observeDecision(guard string, d Decision) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(guard, d.Kind.String()).Inc()
}

func (m *Metrics) observeFetch(result string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result).Inc()
}

func (m *Metrics) incPublication() {
	if m == nil {
		return
	}
	m.publications.Inc()
}
