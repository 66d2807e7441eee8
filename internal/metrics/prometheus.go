package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trafficjam"

// PrometheusRecorder implementa Recorder com coletores Prometheus
type PrometheusRecorder struct {
	decisions     *prometheus.CounterVec
	scriptLatency *prometheus.HistogramVec
	scriptMisses  *prometheus.CounterVec
	compensations *prometheus.CounterVec
}

// NewPrometheusRecorder cria os coletores e os registra em reg.
// Os labels usam apenas action e kind; o valor alvo nunca vira label.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Incrementos avaliados, por algoritmo, ação e resultado.",
		}, []string{"kind", "action", "allowed"}),
		scriptLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "script_duration_seconds",
			Help:      "Latência das execuções de script no Redis.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"script"}),
		scriptMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "script_cache_misses_total",
			Help:      "Respostas NOSCRIPT que exigiram reenvio do corpo do script.",
		}, []string{"script"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_compensations_total",
			Help:      "Decrementos de compensação executados por grupos de limites.",
		}, []string{"action", "ok"}),
	}

	for _, c := range []prometheus.Collector{r.decisions, r.scriptLatency, r.scriptMisses, r.compensations} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("erro ao registrar coletor: %w", err)
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveDecision(kind, action string, allowed bool) {
	r.decisions.WithLabelValues(kind, action, strconv.FormatBool(allowed)).Inc()
}

func (r *PrometheusRecorder) ObserveScript(script string, elapsed time.Duration) {
	r.scriptLatency.WithLabelValues(script).Observe(elapsed.Seconds())
}

func (r *PrometheusRecorder) ObserveScriptMiss(script string) {
	r.scriptMisses.WithLabelValues(script).Inc()
}

func (r *PrometheusRecorder) ObserveCompensation(action string, ok bool) {
	r.compensations.WithLabelValues(action, strconv.FormatBool(ok)).Inc()
}

var _ Recorder = (*PrometheusRecorder)(nil)
