package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/outofforest/replica/store"
	"github.com/outofforest/replica/types"
)

// Roles used to label store metrics.
const (
	RoleProducer = "producer"
	RoleConsumer = "consumer"
)

// Results used to label cycles and updates.
const (
	ResultSuccess = "success"
	ResultPartial = "partial"
	ResultSkipped = "skipped"
	ResultFailure = "failure"
)

// New creates metrics registered in the registerer.
// If registerer is nil, new registry is created.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	factory := promauto.With(registerer)

	return &Metrics{
		Records: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "replica_store_records",
				Help: "Number of records kept in the store",
			},
			[]string{"role"},
		),
		AllocatedBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "replica_slab_allocated_bytes",
				Help: "Number of bytes taken by allocated slab chunks",
			},
			[]string{"role"},
		),
		ReservedBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "replica_slab_reserved_bytes",
				Help: "Number of bytes taken by slab pages",
			},
			[]string{"role"},
		),
		Version: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "replica_version",
				Help: "Currently visible version",
			},
			[]string{"role"},
		),
		Updates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replica_consumer_updates_total",
				Help: "Total number of consumer updates",
			},
			[]string{"result"},
		),
		UpdateDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "replica_consumer_update_duration_seconds",
				Help:    "Duration of consumer updates in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		Transitions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "replica_consumer_transitions_total",
				Help: "Total number of applied version transitions",
			},
		),
		Cycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replica_producer_cycles_total",
				Help: "Total number of producer cycles",
			},
			[]string{"result"},
		),
		PublishedBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replica_producer_published_bytes_total",
				Help: "Total number of published bytes",
			},
			[]string{"kind"},
		),
	}
}

// Metrics stores metrics of producers and consumers.
type Metrics struct {
	Records        *prometheus.GaugeVec
	AllocatedBytes *prometheus.GaugeVec
	ReservedBytes  *prometheus.GaugeVec
	Version        *prometheus.GaugeVec
	Updates        *prometheus.CounterVec
	UpdateDuration prometheus.Histogram
	Transitions    prometheus.Counter
	Cycles         *prometheus.CounterVec
	PublishedBytes *prometheus.CounterVec
}

// ObserveStore records stats of the store.
func (m *Metrics) ObserveStore(role string, version types.Version, stats store.Stats) {
	m.Records.WithLabelValues(role).Set(float64(stats.Records))
	m.AllocatedBytes.WithLabelValues(role).Set(float64(stats.AllocatedBytes))
	m.ReservedBytes.WithLabelValues(role).Set(float64(stats.ReservedBytes))
	m.Version.WithLabelValues(role).Set(float64(version))
}

// RecordUpdate records consumer update.
func (m *Metrics) RecordUpdate(result string, transitions int, duration time.Duration) {
	m.Updates.WithLabelValues(result).Inc()
	m.UpdateDuration.Observe(duration.Seconds())
	m.Transitions.Add(float64(transitions))
}

// RecordCycle records producer cycle.
func (m *Metrics) RecordCycle(result string) {
	m.Cycles.WithLabelValues(result).Inc()
}

// RecordPublish records published artifact.
func (m *Metrics) RecordPublish(kind string, size int) {
	m.PublishedBytes.WithLabelValues(kind).Add(float64(size))
}
