package strategy

import (
	"longbtc-go/internal/features"
	"longbtc-go/internal/ledger"
)

// Rules is the parameterised evaluator behind every preset.
type Rules struct {
	name   string
	params Params
	inputs Inputs
}

// NewRules validates params and resolves the feature labels they read.
func NewRules(name string, params Params) (*Rules, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	r := &Rules{name: name, params: params}
	r.inputs = r.resolveInputs()
	return r, nil
}

// Name returns the configured identifier for logging.
func (r *Rules) Name() string { return r.name }

// Params returns the rule set.
func (r *Rules) Params() Params { return r.params }

// Inputs lists the features, forecast and threshold the rules read.
func (r *Rules) Inputs() Inputs { return r.inputs }

func (r *Rules) resolveInputs() Inputs {
	var in Inputs
	e := r.params.Entry
	if m := e.Momentum; m != nil {
		in.Entry = append(in.Entry, spec(features.KindMomentum, m.Window))
	}
	if v := e.Volatility; v != nil {
		in.Forecast = true
		if v.Mode == VolAdaptive {
			in.Threshold = &Adaptive{Lookback: v.Lookback, Percentile: v.Percentile}
		}
	}
	f := e.Filters
	if f.Chop != nil {
		in.Entry = append(in.Entry, spec(features.KindVolatility, f.Chop.Window))
	}
	if f.Improving != nil {
		in.Entry = append(in.Entry, spec(features.KindMomentum, f.Improving.Window))
	}
	if f.NoNewLow != nil {
		in.Entry = append(in.Entry, spec(features.KindLowest, f.NoNewLow.Window))
	}
	if f.ExtremeMomentum != nil {
		in.Entry = append(in.Entry, spec(features.KindMomentum, f.ExtremeMomentum.Window))
	}
	if f.Trend != nil {
		in.Entry = append(in.Entry, spec(features.KindSMA, f.Trend.Window))
	}
	if d := r.params.Exit.RapidDrop; d != nil {
		in.Exit = append(in.Exit, spec(features.KindChange, d.Window))
	}
	return in
}

// ShouldEnter is false whenever a feature it depends on is unavailable.
func (r *Rules) ShouldEnter(c Context) bool {
	e := r.params.Entry
	if e.Cadence > 0 && !c.Bar.Time.Truncate(e.Cadence).Equal(c.Bar.Time) {
		return false
	}

	var entryMomentum float64
	if m := e.Momentum; m != nil {
		v := c.Features.Get(label(features.KindMomentum, m.Window))
		if !v.Valid {
			return false
		}
		entryMomentum = v.V
		switch m.Direction {
		case Below:
			if !(v.V < m.Threshold) {
				return false
			}
		case Above:
			if !(v.V >= m.Threshold) {
				return false
			}
		}
	}

	if g := e.Volatility; g != nil {
		if !c.Forecast.Valid {
			return false
		}
		threshold := g.Threshold
		if g.Mode == VolAdaptive {
			if !c.Threshold.Valid {
				return false
			}
			threshold = c.Threshold.V
		}
		if !(c.Forecast.V > threshold) {
			return false
		}
	}

	return r.filtersPass(c, entryMomentum)
}

func (r *Rules) filtersPass(c Context, entryMomentum float64) bool {
	f := r.params.Entry.Filters
	if f.enabled() == 0 {
		return true
	}
	passed := 0
	check := func(ok, available bool) bool {
		if !available {
			return false
		}
		if ok {
			passed++
		}
		return true
	}
	get := func(kind features.Kind, window int) features.Value {
		return c.Features.Get(label(kind, window))
	}

	if f.Chop != nil {
		v := get(features.KindVolatility, f.Chop.Window)
		if !check(v.V < f.Chop.Max, v.Valid) {
			return false
		}
	}
	if f.Improving != nil {
		v := get(features.KindMomentum, f.Improving.Window)
		floor := 0.0
		if f.Improving.AboveEntry {
			floor = entryMomentum
		}
		if !check(v.V > floor, v.Valid) {
			return false
		}
	}
	if f.NoNewLow != nil {
		v := get(features.KindLowest, f.NoNewLow.Window)
		if !check(c.Bar.Low > v.V, v.Valid) {
			return false
		}
	}
	if f.ExtremeMomentum != nil {
		v := get(features.KindMomentum, f.ExtremeMomentum.Window)
		if !check(v.V > f.ExtremeMomentum.Min, v.Valid) {
			return false
		}
	}
	if f.Trend != nil {
		v := get(features.KindSMA, f.Trend.Window)
		if !check(c.Bar.Close > v.V, v.Valid) {
			return false
		}
	}
	return passed >= f.Required
}

// ShouldExit checks stop-loss, trailing stop, rapid drop, max holding and
// profit target in that order and reports the first that holds. The peak in
// pos must already include the current bar.
func (r *Rules) ShouldExit(c Context, pos ledger.Open) (Exit, bool) {
	x := r.params.Exit
	bar := c.Bar

	if x.StopLossPct > 0 {
		stop := pos.EntryPrice * (1 - x.StopLossPct)
		switch x.StopTrigger {
		case TriggerLow:
			if bar.Low <= stop {
				return Exit{Reason: ledger.ReasonStopLoss, Price: stop}, true
			}
		default:
			if bar.Close <= stop {
				return Exit{Reason: ledger.ReasonStopLoss, Price: bar.Close}, true
			}
		}
	}
	if x.TrailingStopPct > 0 && pos.Peak > 0 {
		if (bar.Close-pos.Peak)/pos.Peak <= -x.TrailingStopPct {
			return Exit{Reason: ledger.ReasonTrailingStop, Price: bar.Close}, true
		}
	}
	if d := x.RapidDrop; d != nil {
		if v := c.Features.Get(label(features.KindChange, d.Window)); v.Valid && v.V <= -d.Pct {
			return Exit{Reason: ledger.ReasonRapidDrop, Price: bar.Close}, true
		}
	}
	if x.MaxHolding > 0 && pos.Holding(bar.Time) >= x.MaxHolding {
		return Exit{Reason: ledger.ReasonMaxHolding, Price: bar.Close}, true
	}
	if t := x.ProfitTargetPct; t != nil && pos.Return(bar.Close) > *t {
		return Exit{Reason: ledger.ReasonProfitTarget, Price: bar.Close}, true
	}
	return Exit{}, false
}

var _ Evaluator = (*Rules)(nil)
