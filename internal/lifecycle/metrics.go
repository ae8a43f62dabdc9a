package lifecycle

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors scraped from /metrics via
// promhttp.Handler() (wired by the caller, following the teacher's
// infrastructure/metrics.New / infrastructure/service/runner.go pattern of
// registering collectors once and mounting promhttp separately).
type Metrics struct {
	WriteQueueDepth  prometheus.Gauge
	RAGCycleAgeSecs  prometheus.Gauge
	Subscribers      *prometheus.GaugeVec
	ServiceUp        *prometheus.GaugeVec
	StaleAgentsTotal prometheus.Counter
}

// NewMetrics constructs and registers every collector against registerer.
// Pass prometheus.DefaultRegisterer in production; tests use a private
// prometheus.NewRegistry() to avoid collisions across cases.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		WriteQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_write_queue_depth",
			Help: "Number of durable write jobs buffered and awaiting execution.",
		}),
		RAGCycleAgeSecs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_rag_cycle_age_seconds",
			Help: "Seconds since the RAG indexer last completed a cycle.",
		}),
		Subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orchestrator_realtime_subscribers",
			Help: "Current WebSocket subscriber count per channel.",
		}, []string{"channel"}),
		ServiceUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orchestrator_service_up",
			Help: "Set to 1 for each service registered with the lifecycle manager.",
		}, []string{"service"}),
		StaleAgentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_stale_agents_total",
			Help: "Total agents terminated by the session monitor for exceeding the idle timeout.",
		}),
	}
	registerer.MustRegister(m.WriteQueueDepth, m.RAGCycleAgeSecs, m.Subscribers, m.ServiceUp, m.StaleAgentsTotal)
	return m
}

// Sampler is one metric-refreshing closure run on every updater tick.
type Sampler func(m *Metrics)

// MetricsUpdater is a lifecycle.Service that periodically runs a set of
// Samplers against Metrics, so gauges reflect live state (queue depth,
// subscriber counts, RAG staleness) without every collaborator needing to
// know about Prometheus directly.
type MetricsUpdater struct {
	metrics  *Metrics
	samplers []Sampler
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewMetricsUpdater builds an updater sampling every interval.
func NewMetricsUpdater(metrics *Metrics, interval time.Duration, samplers ...Sampler) *MetricsUpdater {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &MetricsUpdater{metrics: metrics, samplers: samplers, interval: interval}
}

func (u *MetricsUpdater) Name() string { return "metrics-updater" }

func (u *MetricsUpdater) Start(ctx context.Context) error {
	u.stop = make(chan struct{})
	u.done = make(chan struct{})
	go u.run()
	return nil
}

func (u *MetricsUpdater) run() {
	defer close(u.done)
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()
	u.sample()
	for {
		select {
		case <-ticker.C:
			u.sample()
		case <-u.stop:
			return
		}
	}
}

func (u *MetricsUpdater) sample() {
	for _, s := range u.samplers {
		s(u.metrics)
	}
}

func (u *MetricsUpdater) Stop(ctx context.Context) error {
	if u.stop == nil {
		return nil
	}
	close(u.stop)
	select {
	case <-u.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
