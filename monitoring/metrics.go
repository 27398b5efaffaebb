package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"iotdetect/detection"
)

const namespace = "iotdetect"

// Metrics Prometheus指标
type Metrics struct {
	registry    *prometheus.Registry
	predictions *prometheus.CounterVec
	errors      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	reloads     *prometheus.CounterVec
}

// NewMetrics 创建并注册所有指标。clients 为 nil 时不导出连接数。
func NewMetrics(clients func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Pipeline results by stage and outcome category.",
		}, []string{"mode", "stage", "category"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_errors_total",
			Help:      "Failed pipeline calls.",
		}, []string{"mode", "stage"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Pipeline latency, all model stages included.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		}, []string{"mode", "stage"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_reloads_total",
			Help:      "Model artifact reload attempts.",
		}, []string{"model", "result"}),
	}

	m.registry.MustRegister(m.predictions, m.errors, m.duration, m.reloads)
	m.registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	if clients != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket clients.",
		}, func() float64 { return float64(clients()) }))
	}
	return m
}

// Observe 实现 detection.Observer
func (m *Metrics) Observe(result detection.Result) {
	category := "benign"
	switch {
	case result.Classified:
		category = result.Category
	case result.AttackDetected:
		category = "attack"
	}
	m.predictions.WithLabelValues(result.Mode, result.Stage, category).Inc()
	m.duration.WithLabelValues(result.Mode, result.Stage).Observe(result.Latency.Seconds())
}

func (m *Metrics) ObserveError(mode, stage string, err error) {
	m.errors.WithLabelValues(mode, stage).Inc()
}

// ModelReloaded 记录一次模型重载
func (m *Metrics) ModelReloaded(model string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.reloads.WithLabelValues(model, result).Inc()
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
