package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestServeRegistersMetrics(t *testing.T) {
	srv := Serve(":0")
	defer srv.Close()

	RunsTotal.WithLabelValues("reversal", "ok").Inc()
	TradesTotal.WithLabelValues("reversal", "trailing_stop").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	want := map[string]bool{"backtest_runs_total": false, "backtest_trades_total": false}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("%s metric not found", name)
		}
	}
}

func barsValue(t *testing.T) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "backtest_bars_total" {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("backtest_bars_total metric not found")
	return 0
}

func TestBarsCounter(t *testing.T) {
	before := barsValue(t)
	BarsTotal.Add(42)
	if got := barsValue(t) - before; got != 42 {
		t.Fatalf("expected 42 bars, got %v", got)
	}
}

func TestServeDisabled(t *testing.T) {
	if Serve("") != nil {
		t.Fatalf("expected nil server for empty addr")
	}
}
