package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsUpdaterSamplesOnStart(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	sampled := make(chan struct{}, 1)
	updater := NewMetricsUpdater(m, time.Hour, func(metrics *Metrics) {
		metrics.WriteQueueDepth.Set(7)
		select {
		case sampled <- struct{}{}:
		default:
		}
	})

	require.NoError(t, updater.Start(context.Background()))
	defer updater.Stop(context.Background())

	select {
	case <-sampled:
	case <-time.After(time.Second):
		t.Fatal("expected an immediate sample on Start")
	}

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() == "orchestrator_write_queue_depth" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, float64(7), mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found, "expected orchestrator_write_queue_depth to be registered")
}

func TestMetricsUpdaterStartStop(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	updater := NewMetricsUpdater(m, time.Hour)
	require.NoError(t, updater.Start(context.Background()))
	require.NoError(t, updater.Stop(context.Background()))
}
