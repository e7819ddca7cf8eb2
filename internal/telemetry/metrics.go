package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evalPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowgraph_eval_passes_total",
		Help: "Total evaluation passes run by the engine",
	})

	evalPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flowgraph_eval_pass_duration_seconds",
		Help:    "Duration of one evaluation pass",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	blockErrors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowgraph_block_errors",
		Help: "Blocks with errors after the last evaluation pass",
	})

	pendingConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowgraph_pending_connections",
		Help: "Connections deferred until both blocks are ready",
	})

	topologyFailure = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowgraph_topology_failure",
		Help: "1 when the last topology commit failed",
	})

	remoteCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowgraph_remote_calls_total",
		Help: "Remote proxy calls by method and result",
	}, []string{"method", "result"})
)

// PassStats — итоги одного прохода вычисления.
type PassStats struct {
	Duration           time.Duration
	BlockErrors        int
	PendingConnections int
	TopologyFailure    bool
}

// ObservePass записывает метрики прохода вычисления.
func ObservePass(s PassStats) {
	evalPasses.Inc()
	evalPassDuration.Observe(s.Duration.Seconds())
	blockErrors.Set(float64(s.BlockErrors))
	pendingConnections.Set(float64(s.PendingConnections))
	if s.TopologyFailure {
		topologyFailure.Set(1)
	} else {
		topologyFailure.Set(0)
	}
}

// ObserveRemoteCall учитывает удалённый вызов.
func ObserveRemoteCall(method string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	remoteCalls.WithLabelValues(method, result).Inc()
}
