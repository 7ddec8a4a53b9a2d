package poly

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts reference traffic. A nil *Metrics records nothing.
type Metrics struct {
	lookups *prometheus.CounterVec
	hits    *prometheus.CounterVec
	rejects *prometheus.CounterVec
	appends *prometheus.CounterVec
}

// NewMetrics creates the poly collectors and registers them on reg.
// Collectors that are already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poly",
			Name:      "reference_lookups_total",
			Help:      "Referent lookups that went to a Finder.",
		}, []string{"attribute"}),
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poly",
			Name:      "reference_cache_hits_total",
			Help:      "Referent reads served from the instance cache.",
		}, []string{"attribute"}),
		rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poly",
			Name:      "assign_rejections_total",
			Help:      "Assignments dropped because of a type mismatch.",
		}, []string{"attribute"}),
		appends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poly",
			Name:      "collection_appends_total",
			Help:      "Children appended to owner collections.",
		}, []string{"collection"}),
	}
	for _, c := range []**prometheus.CounterVec{&m.lookups, &m.hits, &m.rejects, &m.appends} {
		if err := reg.Register(*c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err //nolint:wrapcheck // pass through
			}
			existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				return nil, err //nolint:wrapcheck // pass through
			}
			*c = existing
		}
	}
	return m, nil
}

func (m *Metrics) lookup(attr string) {
	if m != nil {
		m.lookups.WithLabelValues(attr).Inc()
	}
}

func (m *Metrics) hit(attr string) {
	if m != nil {
		m.hits.WithLabelValues(attr).Inc()
	}
}

func (m *Metrics) reject(attr string) {
	if m != nil {
		m.rejects.WithLabelValues(attr).Inc()
	}
}

func (m *Metrics) appended(collection string) {
	if m != nil {
		m.appends.WithLabelValues(collection).Inc()
	}
}
