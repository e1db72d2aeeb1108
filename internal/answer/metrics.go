package answer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 回退链的计数器
type Metrics struct {
	attempts *prometheus.CounterVec
	answers  *prometheus.CounterVec
	trips    *prometheus.CounterVec
}

// NewMetrics reg 为 nil 时只计数不注册
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantcare",
			Name:      "generation_attempts_total",
			Help:      "Answer strategy attempts by outcome.",
		}, []string{"strategy", "outcome"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantcare",
			Name:      "answers_total",
			Help:      "Answers delivered by the strategy that produced them.",
		}, []string{"strategy"}),
		trips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantcare",
			Name:      "breaker_trips_total",
			Help:      "Circuit breaker trips.",
		}, []string{"breaker"}),
	}
	// 熔断计数从 0 开始导出
	m.trips.WithLabelValues(BreakerRemote)
	m.trips.WithLabelValues(BreakerImageAnalysis)
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.attempts, m.answers, m.trips} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) attempt(a Attempt) {
	if m == nil {
		return
	}
	outcome := "success"
	if !a.Success {
		outcome = a.Kind
	}
	m.attempts.WithLabelValues(a.Strategy, outcome).Inc()
}

func (m *Metrics) answered(strategy string) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(strategy).Inc()
}

func (m *Metrics) tripped(breaker string) {
	if m == nil {
		return
	}
	m.trips.WithLabelValues(breaker).Inc()
}
