package responder

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-bonjour/pkg/types"
)

// Metrics 响应器指标
type Metrics struct {
	processCalls    prometheus.Counter
	processDuration prometheus.Histogram
	readySockets    prometheus.Counter
	initFailures    prometheus.Counter
	natActive       prometheus.Gauge
	natResults      *prometheus.CounterVec
}

// NewMetrics 创建指标并注册到 reg
//
// reg 为 nil 时只创建不注册。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		processCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bonjour",
			Subsystem: "responder",
			Name:      "process_calls_total",
			Help:      "Process calls while running",
		}),
		processDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bonjour",
			Subsystem: "responder",
			Name:      "process_duration_seconds",
			Help:      "Time spent inside Process",
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		readySockets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bonjour",
			Subsystem: "responder",
			Name:      "ready_sockets_total",
			Help:      "Sockets reported ready by the select driver",
		}),
		initFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bonjour",
			Subsystem: "responder",
			Name:      "init_failures_total",
			Help:      "Failed Init attempts",
		}),
		natActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bonjour",
			Subsystem: "nat",
			Name:      "operations_active",
			Help:      "Registered NAT port mapping operations",
		}),
		natResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bonjour",
			Subsystem: "nat",
			Name:      "results_total",
			Help:      "NAT results delivered to callers",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.processCalls,
			m.processDuration,
			m.readySockets,
			m.initFailures,
			m.natActive,
			m.natResults,
		)
	}
	return m
}

func (m *Metrics) observeProcess(d time.Duration, ready int) {
	m.processCalls.Inc()
	m.processDuration.Observe(d.Seconds())
	if ready > 0 {
		m.readySockets.Add(float64(ready))
	}
}

func (m *Metrics) natResult(code types.ErrorCode) {
	label := "ok"
	if code != types.CodeNoError {
		label = code.Name()
	}
	m.natResults.WithLabelValues(label).Inc()
}
