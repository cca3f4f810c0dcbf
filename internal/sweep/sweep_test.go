package sweep

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"longbtc-go/internal/backtest"
	"longbtc-go/internal/errs"
	"longbtc-go/internal/ledger"
	"longbtc-go/internal/market"
	"longbtc-go/internal/performance"
	"longbtc-go/internal/strategy"
)

func baseParams() strategy.Params {
	return strategy.Params{
		Entry: strategy.EntryRules{Momentum: &strategy.MomentumGate{Window: 5, Direction: strategy.Below}},
		Exit:  strategy.ExitRules{TrailingStopPct: 0.01},
	}
}

func waves(n int) *market.Series {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	for i := range bars {
		c := 100 + 5*math.Sin(float64(i)/15) + 2*math.Sin(float64(i)/4)
		bars[i] = market.Bar{Time: t0.Add(time.Duration(i) * time.Minute), Open: c, High: c + 0.2, Low: c - 0.2, Close: c}
	}
	return market.NewSeries(bars)
}

func baseConfig() backtest.Config {
	return backtest.Config{
		Account: ledger.Config{
			StartingBalance: 10000,
			EntryFeeRate:    0.001,
			ExitFeeRate:     0.001,
			Sizing:          ledger.SizingAllIn,
		},
		Reference:       market.PriceClose,
		ForceCloseAtEnd: true,
		Annualization:   performance.DefaultAnnualization,
	}
}

func TestExpandOrder(t *testing.T) {
	cases, err := Expand("rev", baseParams(), map[string][]float64{
		AxisTrailingStopPct:   {0.01, 0.02},
		AxisMomentumThreshold: {0, -0.01, -0.02},
	})
	require.NoError(t, err)
	require.Len(t, cases, 6)

	assert.Equal(t, "rev momentum_threshold=0 trailing_stop_pct=0.01", cases[0].Name)
	assert.Equal(t, "rev momentum_threshold=0 trailing_stop_pct=0.02", cases[1].Name)
	assert.Equal(t, "rev momentum_threshold=-0.02 trailing_stop_pct=0.02", cases[5].Name)
	assert.Equal(t, -0.01, cases[2].Params.Entry.Momentum.Threshold)
	assert.Equal(t, "rev", cases[2].Strategy)
	assert.Equal(t, map[string]float64{AxisMomentumThreshold: -0.01, AxisTrailingStopPct: 0.01}, cases[2].Values)

	// cases do not share gates
	cases[0].Params.Entry.Momentum.Threshold = 42
	assert.Equal(t, 0.0, cases[1].Params.Entry.Momentum.Threshold)
}

func TestExpandAxes(t *testing.T) {
	cases, err := Expand("x", baseParams(), map[string][]float64{
		AxisStopLossPct:       {0.03},
		AxisMaxHoldingMinutes: {90},
		AxisProfitTargetPct:   {0.02},
	})
	require.NoError(t, err)
	require.Len(t, cases, 1)
	exit := cases[0].Params.Exit
	assert.Equal(t, 0.03, exit.StopLossPct)
	assert.Equal(t, strategy.TriggerClose, exit.StopTrigger)
	assert.Equal(t, 90*time.Minute, exit.MaxHolding)
	require.NotNil(t, exit.ProfitTargetPct)
	assert.Equal(t, 0.02, *exit.ProfitTargetPct)

	vol, _ := strategy.LookupPreset("adaptive_vol")
	cases, err = Expand("adaptive_vol", vol.Params, map[string][]float64{AxisPercentile: {50, 70}})
	require.NoError(t, err)
	assert.Equal(t, 70.0, cases[1].Params.Entry.Volatility.Percentile)
}

func TestExpandEmptyGridIsBase(t *testing.T) {
	cases, err := Expand("base", baseParams(), nil)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "base", cases[0].Name)
	assert.Empty(t, cases[0].Values)
}

func TestExpandRejects(t *testing.T) {
	cases := map[string]map[string][]float64{
		"unknown axis":   {"leverage": {2}},
		"empty axis":     {AxisStopLossPct: {}},
		"nan":            {AxisStopLossPct: {math.NaN()}},
		"missing gate":   {AxisVolThreshold: {0.001}},
		"invalid params": {AxisTrailingStopPct: {-0.5}},
		"wrong vol mode": {AxisPercentile: {50}},
	}
	for name, grid := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Expand("x", baseParams(), grid)
			require.Error(t, err)
			assert.True(t, errs.IsConfiguration(err), "got %v", err)
		})
	}
}

func TestRunIsOrderedAndDeterministic(t *testing.T) {
	cases, err := Expand("rev", baseParams(), map[string][]float64{
		AxisTrailingStopPct:   {0.005, 0.01, 0.02},
		AxisMomentumThreshold: {0, -0.005},
	})
	require.NoError(t, err)
	series := waves(1500)

	serial, err := Runner{Base: baseConfig(), Workers: 1, Log: zerolog.Nop()}.Run(context.Background(), series, cases)
	require.NoError(t, err)
	parallel, err := Runner{Base: baseConfig(), Workers: 4, Log: zerolog.Nop()}.Run(context.Background(), series, cases)
	require.NoError(t, err)

	require.Len(t, parallel, len(cases))
	assert.Equal(t, serial, parallel)
	for i, o := range parallel {
		assert.Equal(t, cases[i].Name, o.Case.Name)
		assert.Equal(t, backtest.StatusOK, o.Status)
	}
	assert.Positive(t, parallel[0].Summary.Trades)
}

func TestRunCancelled(t *testing.T) {
	cases, err := Expand("rev", baseParams(), map[string][]float64{AxisTrailingStopPct: {0.005, 0.01}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Runner{Base: baseConfig(), Workers: 2}.Run(ctx, waves(200), cases)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunBadSeries(t *testing.T) {
	cases, _ := Expand("rev", baseParams(), nil)
	bars := waves(3).Bars()
	bars[2].Time = bars[0].Time
	_, err := Runner{Base: baseConfig()}.Run(context.Background(), market.NewSeries(bars), cases)
	assert.True(t, errs.IsData(err))
}

func TestRank(t *testing.T) {
	mk := func(name string, trades int, ret float64, status backtest.Status) Outcome {
		return Outcome{Case: Case{Name: name}, Status: status, Summary: performance.Summary{Trades: trades, TotalReturn: ret}}
	}
	outcomes := []Outcome{
		mk("a", 5, 0.10, backtest.StatusOK),
		mk("b", 2, 0.50, backtest.StatusOK), // not more than min trades
		mk("c", 9, 0.30, backtest.StatusOK),
		mk("d", 9, 0.90, backtest.StatusInsufficientData),
		mk("e", 3, 0.30, backtest.StatusOK),
		mk("f", 4, -0.20, backtest.StatusOK),
	}

	top := Rank(outcomes, 2, 0.5)
	require.Len(t, top, 2)
	assert.Equal(t, "c", top[0].Case.Name)
	assert.Equal(t, "e", top[1].Case.Name)

	all := Rank(outcomes, 2, 1)
	require.Len(t, all, 4)
	assert.Equal(t, "f", all[3].Case.Name)

	assert.Len(t, Rank(outcomes, 2, 0.01), 1)
	assert.Empty(t, Rank(outcomes, 100, 0.5))
}
