package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "breakbot"

// Metrics держит собственный реестр, чтобы не зависеть от глобального DefaultRegisterer.
// Все методы безопасны для nil-получателя.
type Metrics struct {
	registry *prometheus.Registry

	equity         prometheus.Gauge
	peakEquity     prometheus.Gauge
	drawdownPct    prometheus.Gauge
	realizedPnL    prometheus.Gauge
	openPositions  prometheus.Gauge
	tradingEnabled prometheus.Gauge

	ticks       prometheus.Counter
	assetErrors *prometheus.CounterVec
	trades      *prometheus.CounterVec
}

type Snapshot struct {
	Equity        float64
	PeakEquity    float64
	DrawdownPct   float64
	RealizedPnL   float64
	OpenPositions int
}

func New() *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	m := &Metrics{
		registry:       prometheus.NewRegistry(),
		equity:         gauge("equity", "Current paper/live equity."),
		peakEquity:     gauge("peak_equity", "Running maximum of equity, updated on close."),
		drawdownPct:    gauge("drawdown_pct", "Drawdown from peak equity, percent."),
		realizedPnL:    gauge("realized_pnl", "Realized PnL net of fees."),
		openPositions:  gauge("open_positions", "Number of open positions across assets."),
		tradingEnabled: gauge("trading_enabled", "1 when trading is enabled, 0 when paused."),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_total", Help: "Scheduler ticks.",
		}),
		assetErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "asset_errors_total", Help: "Per-asset cycle failures by kind.",
		}, []string{"asset", "kind"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "trades_total", Help: "Trade events by asset and event.",
		}, []string{"asset", "event"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.equity, m.peakEquity, m.drawdownPct, m.realizedPnL, m.openPositions, m.tradingEnabled,
		m.ticks, m.assetErrors, m.trades,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Observe(s Snapshot) {
	if m == nil {
		return
	}
	m.equity.Set(s.Equity)
	m.peakEquity.Set(s.PeakEquity)
	m.drawdownPct.Set(s.DrawdownPct)
	m.realizedPnL.Set(s.RealizedPnL)
	m.openPositions.Set(float64(s.OpenPositions))
}

func (m *Metrics) SetTrading(enabled bool) {
	if m == nil {
		return
	}
	if enabled {
		m.tradingEnabled.Set(1)
		return
	}
	m.tradingEnabled.Set(0)
}

func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

func (m *Metrics) AssetError(asset, kind string) {
	if m == nil {
		return
	}
	m.assetErrors.WithLabelValues(asset, kind).Inc()
}

func (m *Metrics) Trade(asset, event string) {
	if m == nil {
		return
	}
	m.trades.WithLabelValues(asset, event).Inc()
}
