package report

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"longbtc-go/internal/backtest"
	"longbtc-go/internal/features"
	"longbtc-go/internal/ledger"
	"longbtc-go/internal/market"
	"longbtc-go/internal/performance"
	"longbtc-go/internal/sweep"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func sampleTrade() ledger.Trade {
	return ledger.Trade{
		EntryTime:   t0,
		EntryPrice:  100,
		ExitTime:    t0.Add(90 * time.Minute),
		ExitPrice:   110,
		Notional:    9975,
		PnL:         997.5,
		PnLPct:      0.1,
		EntryFee:    25,
		ExitFee:     43.89,
		NetPnL:      928.61,
		Holding:     90 * time.Minute,
		Bars:        6,
		Reason:      ledger.ReasonTrailingStop,
		EquityAfter: 10931.1,
	}
}

func readCSV(t *testing.T, b *bytes.Buffer) [][]string {
	t.Helper()
	rows, err := csv.NewReader(b).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteTrades(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTrades(&buf, []ledger.Trade{sampleTrade()}))
	rows := readCSV(t, &buf)
	require.Len(t, rows, 2)
	assert.Equal(t, tradeHeader, rows[0])
	assert.Equal(t, []string{
		"2024-01-01 00:00:00", "100.00", "2024-01-01 01:30:00", "110.00", "trailing_stop",
		"9975.00", "997.50", "0.100000", "25.00", "43.89", "928.61", "90", "6", "10931.10",
	}, rows[1])
}

func TestWriteOutcomes(t *testing.T) {
	sharpe := 1.23456
	outcomes := []sweep.Outcome{
		{
			Case:    sweep.Case{Name: "a", Values: map[string]float64{"stop_loss_pct": 0.02, "momentum_threshold": -0.01}},
			Status:  backtest.StatusOK,
			Summary: performance.Summary{Trades: 3, WinRate: 2.0 / 3, TotalReturn: 0.05, FinalEquity: 10500, Sharpe: &sharpe, TotalFees: 12.345},
		},
		{
			Case:   sweep.Case{Name: "b", Values: map[string]float64{"stop_loss_pct": 0.03}},
			Status: backtest.StatusInsufficientData,
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteOutcomes(&buf, outcomes))
	rows := readCSV(t, &buf)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"name", "momentum_threshold", "stop_loss_pct", "status", "trades", "win_rate",
		"total_return", "final_equity", "sharpe", "max_drawdown", "total_fees"}, rows[0])
	assert.Equal(t, []string{"a", "-0.01", "0.02", "ok", "3", "0.6667", "0.050000", "10500.00", "1.2346", "", "12.35"}, rows[1])
	assert.Equal(t, "", rows[2][1])
	assert.Equal(t, "insufficient_data", rows[2][3])
}

func TestWriteSignals(t *testing.T) {
	v := func(x float64) features.Value { return features.Value{V: x, Valid: true} }
	points := []backtest.Point{
		{Time: t0},
		{Time: t0.Add(time.Minute), Forecast: v(0.002)},
		{Time: t0.Add(2 * time.Minute), Forecast: v(0.003), Threshold: v(0.0025)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSignals(&buf, points, true))
	assert.Equal(t, "Datetime,forecast_vol,adaptive_thresh\n2024-01-01 00:02:00,0.003,0.0025\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteSignals(&buf, points, false))
	rows := readCSV(t, &buf)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"2024-01-01 00:01:00", "0.002", ""}, rows[1])
}

func TestWriteSummary(t *testing.T) {
	tr := sampleTrade()
	dd := -0.02
	bh := 0.1
	res := backtest.Result{
		Strategy: "reversal",
		Status:   backtest.StatusOK,
		Bars:     2,
		Start:    t0,
		End:      t0.Add(time.Hour),
		Trades:   []ledger.Trade{tr},
		Summary: performance.Summary{
			FinalEquity: 10931.1, TotalReturn: 0.09311, Trades: 1, Wins: 1, WinRate: 1,
			MaxDrawdown: &dd, GrossPnL: 997.5, EntryFees: 25, ExitFees: 43.89, TotalFees: 68.89,
			FeeImpact: 68.89 / (997.5 + 68.89), AvgHolding: 90 * time.Minute,
			Reasons: map[ledger.Reason]int{ledger.ReasonTrailingStop: 1}, Benchmark: &bh,
		},
	}
	series := market.NewSeries([]market.Bar{
		{Time: t0, Open: 100, High: 100, Low: 100, Close: 100},
		{Time: t0.Add(time.Hour), Open: 110, High: 110, Low: 110, Close: 110},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, res, series))
	out := buf.String()
	for _, want := range []string{
		"--- reversal Results ---",
		"Final Balance: $10931.10",
		"Total Return: 9.31%",
		"Sharpe Ratio: n/a",
		"Max Drawdown: -2.00%",
		"trailing_stop: 1",
		"Buy-and-Hold Return: 10.00%",
		"End Price: $110.00",
		"Total Fees Paid: $68.89",
		"Fees Consumed: 6.46% of Total Movement",
		"End Date: 2024-01-01 01:00:00",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Open Position")

	buf.Reset()
	require.NoError(t, WriteSummary(&buf, backtest.Result{Strategy: "x", Status: backtest.StatusInsufficientData, Missing: []string{"momentum_15"}}, nil))
	assert.True(t, strings.HasPrefix(buf.String(), "--- x Results ---\nStatus: insufficient_data"))
	assert.Contains(t, buf.String(), "No trades to calculate fee impact.")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	require.NoError(t, WriteFile(path, func(w io.Writer) error { return WriteTrades(w, nil) }))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(tradeHeader, ",")+"\n", string(data))

	nested := filepath.Join(t.TempDir(), "out", "nested", "x.csv")
	require.NoError(t, WriteFile(nested, func(w io.Writer) error { return WriteTrades(w, nil) }))
	assert.Error(t, WriteFile(filepath.Join(path, "x.csv"), func(io.Writer) error { return nil }), "parent is a file")
}
