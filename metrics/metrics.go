// Package metrics exposes lifecycle counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dumbCodesOnly/SigV0.01/risk"
)

// Sink counts lifecycle events and closed trades. Each Sink registers its
// collectors on its own registry so tests and parallel runs stay isolated.
type Sink struct {
	Registry *prometheus.Registry

	events  *prometheus.CounterVec
	trades  *prometheus.CounterVec
	tradeR  *prometheus.HistogramVec
	totalR  *prometheus.GaugeVec
	openPos *prometheus.GaugeVec
}

func NewSink() *Sink {
	s := &Sink{
		Registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sigbot_events_total", Help: "Lifecycle events emitted"},
			[]string{"instrument", "kind"},
		),
		trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sigbot_trades_total", Help: "Trades closed"},
			[]string{"instrument", "reason"},
		),
		tradeR: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sigbot_trade_r",
				Help:    "R-multiple of closed trades",
				Buckets: []float64{-1, -0.5, 0, 0.5, 1, 1.5, 2, 3},
			},
			[]string{"instrument"},
		),
		totalR: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "sigbot_total_r", Help: "Cumulative realized R"},
			[]string{"instrument"},
		),
		openPos: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "sigbot_open_positions", Help: "Positions accepted and not yet closed"},
			[]string{"instrument"},
		),
	}
	s.Registry.MustRegister(s.events, s.trades, s.tradeR, s.totalR, s.openPos)
	return s
}

func (s *Sink) Emit(e risk.Event) error {
	s.events.WithLabelValues(e.Instrument, string(e.Kind)).Inc()
	switch {
	case e.Kind == risk.EventAccepted:
		s.openPos.WithLabelValues(e.Instrument).Inc()
	case e.Kind.Terminal():
		s.openPos.WithLabelValues(e.Instrument).Dec()
	}
	return nil
}

func (s *Sink) RecordTrade(t risk.Trade) error {
	s.trades.WithLabelValues(t.Instrument, string(t.CloseReason)).Inc()
	if t.Filled {
		s.tradeR.WithLabelValues(t.Instrument).Observe(t.R)
		s.totalR.WithLabelValues(t.Instrument).Add(t.R)
	}
	return nil
}

func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})
}

// Serve starts a /metrics endpoint in the background.
func Serve(addr string, s *Sink) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
