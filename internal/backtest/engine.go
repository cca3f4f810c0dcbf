// Package backtest replays a bar series through an evaluator and a ledger.
package backtest

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"longbtc-go/internal/errs"
	"longbtc-go/internal/features"
	"longbtc-go/internal/forecast"
	"longbtc-go/internal/ledger"
	"longbtc-go/internal/market"
	"longbtc-go/internal/metrics"
	"longbtc-go/internal/performance"
	"longbtc-go/internal/strategy"
)

// VolatilityConfig configures the forecaster fed to volatility-gated evaluators.
type VolatilityConfig struct {
	Windows map[string]int
	Weights map[string]float64
	Policy  forecast.Policy
}

// Config is the immutable setup of an engine.
type Config struct {
	Account         ledger.Config
	Reference       market.PriceRef
	ForceCloseAtEnd bool
	Volatility      *VolatilityConfig
	Annualization   float64
}

// Status tells whether a run had enough data to trade.
type Status string

const (
	StatusOK               Status = "ok"
	StatusInsufficientData Status = "insufficient_data"
)

// Observer is called after every bar with the post-bar state.
type Observer func(i int, bar market.Bar, pos ledger.Position, equity float64)

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the logger; entries and exits are logged at debug level.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithObserver installs a per-bar hook.
func WithObserver(obs Observer) Option {
	return func(e *Engine) { e.observer = obs }
}

// WithRecorder forwards every closed trade to rec.
func WithRecorder(rec ledger.Recorder) Option {
	return func(e *Engine) { e.recorder = rec }
}

// Engine runs one evaluator over series. It holds no per-run state, so Run
// may be called repeatedly and yields identical results for identical input.
type Engine struct {
	cfg        Config
	eval       strategy.Evaluator
	inputs     strategy.Inputs
	specs      []features.Spec
	forecaster *forecast.Forecaster
	log        zerolog.Logger
	observer   Observer
	recorder   ledger.Recorder
}

// New validates the whole setup eagerly so that Run has no configuration failures.
func New(cfg Config, eval strategy.Evaluator, opts ...Option) (*Engine, error) {
	if eval == nil {
		return nil, errs.Config("strategy", "evaluator is required")
	}
	if err := cfg.Account.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Reference.Valid() {
		return nil, errs.Config("account.reference_price", "must be %q or %q, got %q", market.PriceOpen, market.PriceClose, cfg.Reference)
	}
	if !(cfg.Annualization > 0) {
		return nil, errs.Config("annualization", "must be positive, got %v", cfg.Annualization)
	}

	e := &Engine{cfg: cfg, eval: eval, inputs: eval.Inputs(), log: zerolog.Nop()}
	lists := [][]features.Spec{e.inputs.Entry, e.inputs.Exit}
	if e.inputs.Forecast {
		if cfg.Volatility == nil {
			return nil, errs.Config("volatility", "strategy %s needs a volatility forecast but no windows are configured", eval.Name())
		}
		f, err := forecast.New(cfg.Volatility.Windows, cfg.Volatility.Weights, cfg.Volatility.Policy)
		if err != nil {
			return nil, err
		}
		e.forecaster = f
		lists = append(lists, f.Specs())
	}
	if a := e.inputs.Threshold; a != nil {
		if _, err := forecast.AdaptiveThreshold(nil, a.Lookback, a.Percentile); err != nil {
			return nil, err
		}
	}
	specs, err := features.Merge(lists...)
	if err != nil {
		return nil, err
	}
	e.specs = specs
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine setup.
func (e *Engine) Config() Config { return e.cfg }

// Evaluator returns the strategy being simulated.
func (e *Engine) Evaluator() strategy.Evaluator { return e.eval }

// Result is everything one run produced.
type Result struct {
	Strategy    string               `json:"strategy"`
	Status      Status               `json:"status"`
	Missing     []string             `json:"missing,omitempty"`
	Bars        int                  `json:"bars"`
	Start       time.Time            `json:"start"`
	End         time.Time            `json:"end"`
	Trades      []ledger.Trade       `json:"trades"`
	Curve       []ledger.EquityPoint `json:"curve"`
	FinalEquity float64              `json:"final_equity"`
	// Open is the position still held after the last bar, marked at its close.
	Open       *ledger.Open        `json:"open,omitempty"`
	Unrealized float64             `json:"unrealized"`
	Summary    performance.Summary `json:"summary"`
}

type prepared struct {
	frame      *features.Frame
	forecasts  []features.Value
	thresholds []features.Value
	missing    []string
}

func (e *Engine) prepare(series *market.Series) (*prepared, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}
	frame, err := features.Compute(series, e.specs)
	if err != nil {
		return nil, err
	}
	p := &prepared{frame: frame}
	n := series.Len()
	p.forecasts = make([]features.Value, n)
	p.thresholds = make([]features.Value, n)
	if e.forecaster != nil {
		p.forecasts = e.forecaster.Series(frame)
	}
	if a := e.inputs.Threshold; a != nil {
		if p.thresholds, err = forecast.AdaptiveThreshold(p.forecasts, a.Lookback, a.Percentile); err != nil {
			return nil, err
		}
	}

	if n == 0 {
		p.missing = append(p.missing, "bars")
	}
	for _, s := range e.inputs.Entry {
		if frame.FirstValid(s.Label) < 0 {
			p.missing = append(p.missing, s.Label)
		}
	}
	if e.forecaster != nil {
		for label, w := range e.forecaster.Weights() {
			if w > 0 && frame.FirstValid(label) < 0 {
				p.missing = append(p.missing, label)
			}
		}
		if !anyValid(p.forecasts) {
			p.missing = append(p.missing, "forecast")
		}
	}
	if e.inputs.Threshold != nil && !anyValid(p.thresholds) {
		p.missing = append(p.missing, "threshold")
	}
	sort.Strings(p.missing)
	return p, nil
}

func anyValid(vs []features.Value) bool {
	for _, v := range vs {
		if v.Valid {
			return true
		}
	}
	return false
}

// Run validates the series and simulates it bar by bar. A run whose entry
// inputs never become available does not trade and reports
// StatusInsufficientData; that is a result, not an error.
func (e *Engine) Run(series *market.Series) (Result, error) {
	started := time.Now()
	p, err := e.prepare(series)
	if err != nil {
		return Result{}, err
	}
	l, err := ledger.New(e.cfg.Account, ledger.WithRecorder(e.recorder))
	if err != nil {
		return Result{}, err
	}

	res := Result{Strategy: e.eval.Name(), Status: StatusOK, Bars: series.Len()}
	if n := series.Len(); n > 0 {
		res.Start, res.End = series.At(0).Time, series.At(n-1).Time
	}
	if len(p.missing) > 0 {
		res.Status = StatusInsufficientData
		res.Missing = p.missing
		e.log.Warn().Str("strategy", res.Strategy).Strs("missing", p.missing).Int("bars", res.Bars).
			Msg(errs.ErrInsufficientData.Error())
	} else if err := e.replay(series, p, l); err != nil {
		return Result{}, err
	}

	if o, ok := l.Position().Open(); ok {
		last := series.At(series.Len() - 1)
		if e.cfg.ForceCloseAtEnd {
			if _, err := l.ForceClose(last.Time, last.Close); err != nil {
				return Result{}, fmt.Errorf("force close: %w", err)
			}
		} else {
			res.Open = &o
			res.Unrealized = o.Unrealized(last.Close)
		}
	}

	res.Trades = l.Trades()
	res.Curve = l.Curve()
	res.FinalEquity = l.Equity()
	in := performance.Input{
		StartingBalance: e.cfg.Account.StartingBalance,
		FinalEquity:     res.FinalEquity,
		Trades:          res.Trades,
		Curve:           res.Curve,
		Annualization:   e.cfg.Annualization,
	}
	if bh, ok := series.BuyAndHold(); ok {
		in.Benchmark = &bh
	}
	res.Summary = performance.Summarize(in)

	metrics.RunsTotal.WithLabelValues(res.Strategy, string(res.Status)).Inc()
	metrics.BarsTotal.Add(float64(res.Bars))
	for _, tr := range res.Trades {
		metrics.TradesTotal.WithLabelValues(res.Strategy, string(tr.Reason)).Inc()
	}
	metrics.RunSeconds.Observe(time.Since(started).Seconds())
	e.log.Info().Str("strategy", res.Strategy).Str("status", string(res.Status)).
		Int("bars", res.Bars).Int("trades", len(res.Trades)).
		Float64("final_equity", res.FinalEquity).Float64("total_return", res.Summary.TotalReturn).
		Msg("backtest finished")
	return res, nil
}

func (e *Engine) replay(series *market.Series, p *prepared, l *ledger.Ledger) error {
	for i := 0; i < series.Len(); i++ {
		bar := series.At(i)
		c := strategy.Context{
			Bar:       bar,
			Features:  p.frame.At(i),
			Forecast:  p.forecasts[i],
			Threshold: p.thresholds[i],
		}
		if l.Position().IsOpen() {
			if err := l.Mark(bar.Close); err != nil {
				return fmt.Errorf("bar %d: %w", i, err)
			}
			pos, _ := l.Position().Open()
			if exit, ok := e.eval.ShouldExit(c, pos); ok {
				tr, err := l.Close(bar.Time, exit.Price, exit.Reason)
				if err != nil {
					return fmt.Errorf("bar %d: %w", i, err)
				}
				e.log.Debug().Time("at", bar.Time).Str("reason", string(tr.Reason)).
					Float64("price", tr.ExitPrice).Float64("pnl", tr.PnL).Float64("equity", tr.EquityAfter).
					Msg("exit")
			}
		} else if e.eval.ShouldEnter(c) {
			o, err := l.Open(bar.Time, bar.Price(e.cfg.Reference))
			if err != nil {
				return fmt.Errorf("bar %d: %w", i, err)
			}
			e.log.Debug().Time("at", bar.Time).Float64("price", o.EntryPrice).
				Float64("notional", o.Notional).Float64("fee", o.EntryFee).Msg("entry")
		}
		if e.observer != nil {
			e.observer(i, bar, l.Position(), l.Equity())
		}
	}
	return nil
}
