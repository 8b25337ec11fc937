package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/replica/store"
)

func TestObserveStore(t *testing.T) {
	requireT := require.New(t)

	m := New(prometheus.NewRegistry())
	m.ObserveStore(RoleConsumer, 7, store.Stats{
		Records:        3,
		AllocatedBytes: 96,
		ReservedBytes:  4096,
	})

	requireT.InDelta(3, testutil.ToFloat64(m.Records.WithLabelValues(RoleConsumer)), 0)
	requireT.InDelta(96, testutil.ToFloat64(m.AllocatedBytes.WithLabelValues(RoleConsumer)), 0)
	requireT.InDelta(4096, testutil.ToFloat64(m.ReservedBytes.WithLabelValues(RoleConsumer)), 0)
	requireT.InDelta(7, testutil.ToFloat64(m.Version.WithLabelValues(RoleConsumer)), 0)
	requireT.InDelta(0, testutil.ToFloat64(m.Version.WithLabelValues(RoleProducer)), 0)
}

func TestRecordUpdateAndCycle(t *testing.T) {
	requireT := require.New(t)

	m := New(nil)
	m.RecordUpdate(ResultSuccess, 3, time.Second)
	m.RecordUpdate(ResultPartial, 1, time.Second)
	m.RecordCycle(ResultSkipped)
	m.RecordPublish("delta", 100)
	m.RecordPublish("delta", 50)

	requireT.InDelta(1, testutil.ToFloat64(m.Updates.WithLabelValues(ResultSuccess)), 0)
	requireT.InDelta(4, testutil.ToFloat64(m.Transitions), 0)
	requireT.InDelta(1, testutil.ToFloat64(m.Cycles.WithLabelValues(ResultSkipped)), 0)
	requireT.InDelta(150, testutil.ToFloat64(m.PublishedBytes.WithLabelValues("delta")), 0)
}

func TestSeparateRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
