// Package metrics counts the traffic passing through each worker pool.
// Counters are grouped on a private prometheus.Registry rather than the
// global default one, so a process embedding quadrelay as a library never
// collides with its own metric names; nothing in this repo renders the
// registry over HTTP (out of scope), but Gather lets a caller or test read
// the numbers back directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Registry holds every counter and gauge the pools report against. All
// fields are safe for concurrent use: prometheus.Counter/Gauge are
// themselves lock-free, so Registry never needs a mutex of its own, which
// is the fix DESIGN NOTES asks for in place of a shared-mutex labelled map.
type Registry struct {
	reg *prometheus.Registry

	EventsAccepted  *prometheus.CounterVec
	EventsRejected  *prometheus.CounterVec
	WriterCommits   prometheus.Counter
	WriterErrors    prometheus.Counter
	ReqQueries      prometheus.Counter
	ReqCancelled    prometheus.Counter
	DeliveryOK      prometheus.Counter
	DeliveryDropped prometheus.Counter
	NegSessions     prometheus.Counter
	NegExceeded     prometheus.Counter
	RateLimited     *prometheus.CounterVec
	QueueDepth      *prometheus.GaugeVec
}

// New builds a Registry with every collector registered. Labelled
// counters (EventsRejected's "reason", RateLimited's "scope") are
// pre-populated with their known label values via WithLabelValues the
// first time a pool touches them; prometheus.CounterVec itself shards
// internally on the label set, so no separate sharding layer is needed.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		EventsAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quadrelay_events_accepted_total",
			Help: "Events that passed validation and were handed to the writer.",
		}, []string{"kind_class"}),
		EventsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quadrelay_events_rejected_total",
			Help: "Events rejected before being written, by reason.",
		}, []string{"reason"}),
		WriterCommits: factory.NewCounter(prometheus.CounterOpts{
			Name: "quadrelay_writer_commits_total",
			Help: "Transactional batches committed by the writer.",
		}),
		WriterErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "quadrelay_writer_errors_total",
			Help: "Batches that failed to commit.",
		}),
		ReqQueries: factory.NewCounter(prometheus.CounterOpts{
			Name: "quadrelay_req_queries_total",
			Help: "REQ filters resolved against the store by reqworker.",
		}),
		ReqCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "quadrelay_req_cancelled_total",
			Help: "Historical scans abandoned because their subscription was closed or replaced.",
		}),
		DeliveryOK: factory.NewCounter(prometheus.CounterOpts{
			Name: "quadrelay_delivery_total",
			Help: "Live events matched and written to a subscriber's connection.",
		}),
		DeliveryDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "quadrelay_delivery_dropped_total",
			Help: "Live events dropped because a connection's fan-out queue was full.",
		}),
		NegSessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "quadrelay_negentropy_sessions_total",
			Help: "NEG-OPEN sessions started.",
		}),
		NegExceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "quadrelay_negentropy_exceeded_total",
			Help: "Reconciliation sessions aborted for exceeding their event bound.",
		}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quadrelay_rate_limited_total",
			Help: "Requests rejected by a rate limiter, by scope.",
		}, []string{"scope"}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "quadrelay_queue_depth",
			Help: "Current depth of a pool's job queue.",
		}, []string{"pool"}),
	}
}

// Gather returns the current state of every collector, for a caller that
// wants to inspect or export the numbers without a promhttp handler.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.reg.Gather()
}
