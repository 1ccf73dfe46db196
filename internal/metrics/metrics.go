// Package metrics exports engine counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/visioninhope/BetM3/internal/domain"
)

const namespace = "betm3"

// Metrics owns a private Prometheus registry so tests and multiple engines
// in one process never collide on the default one.
type Metrics struct {
	reg         *prometheus.Registry
	ops         *prometheus.CounterVec
	settlements *prometheus.CounterVec
	yield       prometheus.Counter
}

// New creates the collectors. betCounter, when non-nil, is exported as a
// gauge of bets ever created.
func New(betCounter func() uint64) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Registry operations by name and result kind.",
		}, []string{"op", "result"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Settled bets by how they were settled.",
		}, []string{"how"}),
		yield: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulated_yield_minted",
			Help:      "Simulated yield minted at settlement, in token base units (float approximation).",
		}),
	}
	m.reg.MustRegister(m.ops, m.settlements, m.yield, collectors.NewGoCollector())
	if betCounter != nil {
		m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bets_created",
			Help:      "Number of bets ever created.",
		}, func() float64 { return float64(betCounter()) }))
	}
	return m
}

// ObserveOp counts one operation. A nil err is recorded as "ok", any other
// error by its kind.
func (m *Metrics) ObserveOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(domain.KindOf(err))
	}
	m.ops.WithLabelValues(op, result).Inc()
}

// ObserveSettlement counts a settlement and the yield it minted.
func (m *Metrics) ObserveSettlement(st domain.Settlement, forced bool) {
	how := "consensus"
	switch {
	case st.Cancelled:
		how = "cancelled"
	case forced:
		how = "admin"
	}
	m.settlements.WithLabelValues(how).Inc()
	if st.SimulatedYield != nil && st.SimulatedYield.Sign() > 0 {
		f, _ := st.SimulatedYield.Float64()
		m.yield.Add(f)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.reg
}
