package strategy

import (
	"fmt"
	"math"
	"time"

	"longbtc-go/internal/errs"
	"longbtc-go/internal/features"
)

// Params configures the rule evaluator. Every gate is optional; a nil gate is skipped.
type Params struct {
	Entry EntryRules `yaml:"entry" json:"entry"`
	Exit  ExitRules  `yaml:"exit" json:"exit"`
}

// EntryRules gate opening a position. All enabled gates must pass.
type EntryRules struct {
	// Cadence restricts entries to bars whose timestamp is a multiple of it.
	Cadence    time.Duration   `yaml:"cadence,omitempty" json:"cadence,omitempty"`
	Momentum   *MomentumGate   `yaml:"momentum,omitempty" json:"momentum,omitempty"`
	Volatility *VolatilityGate `yaml:"volatility,omitempty" json:"volatility,omitempty"`
	Filters    Filters         `yaml:"filters,omitempty" json:"filters,omitempty"`
}

// Direction of a momentum gate.
type Direction string

const (
	// Below enters when momentum is strictly under the threshold (mean reversion).
	Below Direction = "below"
	// Above enters when momentum is at or over the threshold (breakout).
	Above Direction = "above"
)

// MomentumGate compares summed returns over Window bars to Threshold.
type MomentumGate struct {
	Window    int       `yaml:"window" json:"window"`
	Direction Direction `yaml:"direction" json:"direction"`
	Threshold float64   `yaml:"threshold" json:"threshold"`
}

// VolMode picks the threshold a volatility forecast is compared against.
type VolMode string

const (
	VolFixed    VolMode = "fixed"
	VolAdaptive VolMode = "adaptive"
)

// VolatilityGate enters when the forecast is strictly above its threshold.
type VolatilityGate struct {
	Mode      VolMode `yaml:"mode" json:"mode"`
	Threshold float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	// Lookback and Percentile define the adaptive threshold.
	Lookback   int     `yaml:"lookback,omitempty" json:"lookback,omitempty"`
	Percentile float64 `yaml:"percentile,omitempty" json:"percentile,omitempty"`
}

// Filters are extra entry conditions of which at least Required must pass.
type Filters struct {
	Required        int              `yaml:"required,omitempty" json:"required,omitempty"`
	Chop            *ChopFilter      `yaml:"chop,omitempty" json:"chop,omitempty"`
	Improving       *ImprovingFilter `yaml:"improving,omitempty" json:"improving,omitempty"`
	NoNewLow        *WindowFilter    `yaml:"no_new_low,omitempty" json:"no_new_low,omitempty"`
	ExtremeMomentum *ExtremeFilter   `yaml:"extreme_momentum,omitempty" json:"extreme_momentum,omitempty"`
	Trend           *WindowFilter    `yaml:"trend,omitempty" json:"trend,omitempty"`
}

// ChopFilter passes when realized volatility over Window is below Max.
type ChopFilter struct {
	Window int     `yaml:"window" json:"window"`
	Max    float64 `yaml:"max" json:"max"`
}

// ImprovingFilter passes when short momentum is positive, or, with
// AboveEntry, when it exceeds the entry momentum gate's reading.
type ImprovingFilter struct {
	Window     int  `yaml:"window" json:"window"`
	AboveEntry bool `yaml:"above_entry,omitempty" json:"above_entry,omitempty"`
}

// WindowFilter is a filter parameterised by a window only.
// As no_new_low it passes when the bar's low is above the lowest low of the
// window; as trend it passes when the close is above the SMA of the window.
type WindowFilter struct {
	Window int `yaml:"window" json:"window"`
}

// ExtremeFilter passes when momentum over Window is above Min.
type ExtremeFilter struct {
	Window int     `yaml:"window" json:"window"`
	Min    float64 `yaml:"min" json:"min"`
}

// StopTrigger selects the price that arms the hard stop.
type StopTrigger string

const (
	// TriggerClose stops out when the close is at or below the stop; exit at the close.
	TriggerClose StopTrigger = "close"
	// TriggerLow stops out when the low touches the stop; exit at the stop price.
	TriggerLow StopTrigger = "low"
)

// ExitRules close an open position. Zero values disable a rule.
type ExitRules struct {
	StopLossPct     float64       `yaml:"stop_loss_pct,omitempty" json:"stop_loss_pct,omitempty"`
	StopTrigger     StopTrigger   `yaml:"stop_trigger,omitempty" json:"stop_trigger,omitempty"`
	TrailingStopPct float64       `yaml:"trailing_stop_pct,omitempty" json:"trailing_stop_pct,omitempty"`
	RapidDrop       *RapidDrop    `yaml:"rapid_drop,omitempty" json:"rapid_drop,omitempty"`
	MaxHolding      time.Duration `yaml:"max_holding,omitempty" json:"max_holding,omitempty"`
	// ProfitTargetPct closes once the return from entry exceeds it; nil disables.
	ProfitTargetPct *float64 `yaml:"profit_target_pct,omitempty" json:"profit_target_pct,omitempty"`
}

// RapidDrop closes when the close has fallen by Pct or more over Window bars.
type RapidDrop struct {
	Window int     `yaml:"window" json:"window"`
	Pct    float64 `yaml:"pct" json:"pct"`
}

func label(kind features.Kind, window int) string {
	return fmt.Sprintf("%s_%d", kind, window)
}

func spec(kind features.Kind, window int) features.Spec {
	return features.Spec{Label: label(kind, window), Kind: kind, Window: window}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func fraction(v float64) bool { return finite(v) && v >= 0 && v < 1 }

// Validate reports the first parameter that cannot be evaluated.
func (p Params) Validate() error {
	e := p.Entry
	if e.Cadence < 0 {
		return errs.Config("strategy.entry.cadence", "must not be negative, got %s", e.Cadence)
	}
	if m := e.Momentum; m != nil {
		if m.Window < 1 {
			return errs.Config("strategy.entry.momentum.window", "must be positive, got %d", m.Window)
		}
		if m.Direction != Below && m.Direction != Above {
			return errs.Config("strategy.entry.momentum.direction", "must be %q or %q, got %q", Below, Above, m.Direction)
		}
		if !finite(m.Threshold) {
			return errs.Config("strategy.entry.momentum.threshold", "must be finite")
		}
	}
	if v := e.Volatility; v != nil {
		switch v.Mode {
		case VolFixed:
			if !finite(v.Threshold) || v.Threshold < 0 {
				return errs.Config("strategy.entry.volatility.threshold", "must be a non-negative number, got %v", v.Threshold)
			}
		case VolAdaptive:
			if v.Lookback < 1 {
				return errs.Config("strategy.entry.volatility.lookback", "must be positive, got %d", v.Lookback)
			}
			if !finite(v.Percentile) || v.Percentile < 0 || v.Percentile > 100 {
				return errs.Config("strategy.entry.volatility.percentile", "must be within [0,100], got %v", v.Percentile)
			}
		default:
			return errs.Config("strategy.entry.volatility.mode", "must be %q or %q, got %q", VolFixed, VolAdaptive, v.Mode)
		}
	}
	if err := e.Filters.validate(e.Momentum != nil); err != nil {
		return err
	}

	x := p.Exit
	if !fraction(x.StopLossPct) {
		return errs.Config("strategy.exit.stop_loss_pct", "must be in [0,1), got %v", x.StopLossPct)
	}
	if x.StopLossPct > 0 && x.StopTrigger != TriggerClose && x.StopTrigger != TriggerLow {
		return errs.Config("strategy.exit.stop_trigger", "must be %q or %q, got %q", TriggerClose, TriggerLow, x.StopTrigger)
	}
	if !fraction(x.TrailingStopPct) {
		return errs.Config("strategy.exit.trailing_stop_pct", "must be in [0,1), got %v", x.TrailingStopPct)
	}
	if r := x.RapidDrop; r != nil {
		if r.Window < 1 {
			return errs.Config("strategy.exit.rapid_drop.window", "must be positive, got %d", r.Window)
		}
		if !fraction(r.Pct) || r.Pct == 0 {
			return errs.Config("strategy.exit.rapid_drop.pct", "must be in (0,1), got %v", r.Pct)
		}
	}
	if x.MaxHolding < 0 {
		return errs.Config("strategy.exit.max_holding", "must not be negative, got %s", x.MaxHolding)
	}
	if t := x.ProfitTargetPct; t != nil && (!finite(*t) || *t < 0) {
		return errs.Config("strategy.exit.profit_target_pct", "must be a non-negative number, got %v", *t)
	}
	return nil
}

func (f Filters) enabled() int {
	n := 0
	for _, on := range []bool{f.Chop != nil, f.Improving != nil, f.NoNewLow != nil, f.ExtremeMomentum != nil, f.Trend != nil} {
		if on {
			n++
		}
	}
	return n
}

func (f Filters) validate(hasMomentum bool) error {
	n := f.enabled()
	if n == 0 {
		if f.Required != 0 {
			return errs.Config("strategy.entry.filters.required", "%d required but no filter is enabled", f.Required)
		}
		return nil
	}
	if f.Required < 1 || f.Required > n {
		return errs.Config("strategy.entry.filters.required", "must be within [1,%d], got %d", n, f.Required)
	}
	if c := f.Chop; c != nil && (c.Window < 2 || !finite(c.Max) || c.Max <= 0) {
		return errs.Config("strategy.entry.filters.chop", "needs window >= 2 and a positive max")
	}
	if i := f.Improving; i != nil {
		if i.Window < 1 {
			return errs.Config("strategy.entry.filters.improving.window", "must be positive, got %d", i.Window)
		}
		if i.AboveEntry && !hasMomentum {
			return errs.Config("strategy.entry.filters.improving.above_entry", "requires an entry momentum gate")
		}
	}
	if l := f.NoNewLow; l != nil && l.Window < 1 {
		return errs.Config("strategy.entry.filters.no_new_low.window", "must be positive, got %d", l.Window)
	}
	if x := f.ExtremeMomentum; x != nil && (x.Window < 1 || !finite(x.Min)) {
		return errs.Config("strategy.entry.filters.extreme_momentum", "needs a positive window and a finite min")
	}
	if tr := f.Trend; tr != nil && tr.Window < 1 {
		return errs.Config("strategy.entry.filters.trend.window", "must be positive, got %d", tr.Window)
	}
	return nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Clone returns a deep copy that shares no gates with p.
func (p Params) Clone() Params {
	out := p
	out.Entry.Momentum = clonePtr(p.Entry.Momentum)
	out.Entry.Volatility = clonePtr(p.Entry.Volatility)
	out.Entry.Filters.Chop = clonePtr(p.Entry.Filters.Chop)
	out.Entry.Filters.Improving = clonePtr(p.Entry.Filters.Improving)
	out.Entry.Filters.NoNewLow = clonePtr(p.Entry.Filters.NoNewLow)
	out.Entry.Filters.ExtremeMomentum = clonePtr(p.Entry.Filters.ExtremeMomentum)
	out.Entry.Filters.Trend = clonePtr(p.Entry.Filters.Trend)
	out.Exit.RapidDrop = clonePtr(p.Exit.RapidDrop)
	out.Exit.ProfitTargetPct = clonePtr(p.Exit.ProfitTargetPct)
	return out
}
