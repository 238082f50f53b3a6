package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors fed by designer hooks.
type Metrics struct {
	registry  *prometheus.Registry
	mutations *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	drags     *prometheus.CounterVec
	version   *prometheus.GaugeVec
	dropIndex prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_mutations_total",
				Help: "Committed tree mutations",
			},
			[]string{"kind"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_mutations_rejected_total",
				Help: "Tree mutations rejected by validation",
			},
			[]string{"kind"},
		),
		drags: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_drag_events_total",
				Help: "Drag gesture steps by phase",
			},
			[]string{"phase"},
		),
		version: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "arbor_document_version",
				Help: "Latest committed version per document",
			},
			[]string{"document_id"},
		),
		dropIndex: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "arbor_drop_index",
				Help:    "Insertion index of committed drops",
				Buckets: prometheus.LinearBuckets(0, 1, 10),
			},
		),
	}
	m.registry.MustRegister(m.mutations, m.rejected, m.drags, m.version, m.dropIndex)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMutation: func(ctx context.Context, e *domain.MutationEvent) {
			m.mutations.WithLabelValues(string(e.Kind)).Inc()
			if e.DocumentID != "" {
				m.version.WithLabelValues(e.DocumentID).Set(float64(e.Version))
			}
		},
		OnMutationRejected: func(ctx context.Context, e *domain.MutationEvent) {
			m.rejected.WithLabelValues(string(e.Kind)).Inc()
		},
		OnDrag: func(ctx context.Context, e *domain.DragEvent) {
			m.drags.WithLabelValues(string(e.Phase)).Inc()
			if e.Phase == domain.DragDrop && e.Target != nil {
				m.dropIndex.Observe(float64(e.Target.Index))
			}
		},
	}
}
