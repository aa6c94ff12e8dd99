// Package metrics exposes the per-record and per-topic observables the
// ingest pipeline needs (decode-error counts, degraded topics, rows
// inserted) as prometheus counters/gauges.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every metric the ingest pipeline updates, scoped to its
// own prometheus.Registry so tests don't collide with the default global
// registry.
type Registry struct {
	reg *prometheus.Registry

	DecodeErrors  *prometheus.CounterVec
	RowErrors     *prometheus.CounterVec
	RowsInserted  *prometheus.CounterVec
	TopicDegraded *prometheus.GaugeVec
}

// New constructs and registers every metric.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kawai_decode_errors_total",
			Help: "Records dropped due to a decode failure, by topic.",
		}, []string{"topic"}),
		RowErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kawai_row_errors_total",
			Help: "Records dropped because the decoded value didn't fit the column shape, by topic.",
		}, []string{"topic"}),
		RowsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kawai_rows_inserted_total",
			Help: "Rows successfully inserted into the analytic engine, by topic.",
		}, []string{"topic"}),
		TopicDegraded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kawai_topic_degraded",
			Help: "1 if the topic's ingest loop has been halted due to a fatal condition, else 0.",
		}, []string{"topic"}),
	}
	reg.MustRegister(r.DecodeErrors, r.RowErrors, r.RowsInserted, r.TopicDegraded)
	return r
}

// Registerer exposes the underlying registry as a prometheus.Gatherer for
// an HTTP handler to serve (the "metrics.listen" configuration key, when set).
func (r *Registry) Registerer() prometheus.Gatherer { return r.reg }

// MarkDegraded flips a topic's gauge to 1, latching it degraded.
func (r *Registry) MarkDegraded(topic string) {
	r.TopicDegraded.WithLabelValues(topic).Set(1)
}
