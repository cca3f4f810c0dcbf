// Package metrics exposes Prometheus instruments for backtest runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_runs_total", Help: "Completed backtest runs"},
		[]string{"strategy", "status"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_trades_total", Help: "Closed simulated trades"},
		[]string{"strategy", "reason"},
	)
	BarsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "backtest_bars_total", Help: "Bars replayed across all runs"},
	)
	RunSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backtest_run_seconds",
			Help:    "Wall time of a single backtest run",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)
	KlineRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "kline_requests_total", Help: "Kline download requests by outcome"},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(RunsTotal, TradesTotal, BarsTotal, RunSeconds, KlineRequests)
}

// Serve exposes /metrics on addr in the background. An empty addr disables it.
func Serve(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
