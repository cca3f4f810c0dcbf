package strategy

import (
	"sort"
	"time"

	"longbtc-go/internal/market"
)

// Preset bundles a rule set with the bar interval, entry price and
// volatility windows it was tuned for.
type Preset struct {
	Name        string
	Description string
	Params      Params
	Reference   market.PriceRef
	// Interval is the bar size the preset expects; 0 means raw one-minute bars.
	Interval time.Duration
	// Windows and Weights configure the volatility forecaster, if the preset uses one.
	Windows map[string]int
	Weights map[string]float64
}

func pct(v float64) *float64 { return &v }

// Volatility windows in 15-minute bars: 1, 3, 9 and 14 days.
func volWindows() map[string]int {
	return map[string]int{"vol_1d": 96, "vol_3d": 288, "vol_9d": 864, "vol_14d": 1344}
}

func equalWeights(windows map[string]int) map[string]float64 {
	out := make(map[string]float64, len(windows))
	for k := range windows {
		out[k] = 1 / float64(len(windows))
	}
	return out
}

var presets = map[string]func() Preset{
	"reversal": func() Preset {
		return Preset{
			Name:        "reversal",
			Description: "buy 15-minute dips (negative 15-bar momentum), exit on 3% trailing stop or 3% five-bar drop",
			Reference:   market.PriceOpen,
			Params: Params{
				Entry: EntryRules{
					Cadence:  15 * time.Minute,
					Momentum: &MomentumGate{Window: 15, Direction: Below, Threshold: 0},
				},
				Exit: ExitRules{
					TrailingStopPct: 0.03,
					RapidDrop:       &RapidDrop{Window: 5, Pct: 0.03},
				},
			},
		}
	},
	"filtered_reversal": func() Preset {
		return Preset{
			Name:        "filtered_reversal",
			Description: "deep 15-minute dips confirmed by 4 of 5 filters (chop, improving, no new low, not extreme, trend)",
			Reference:   market.PriceOpen,
			Params: Params{
				Entry: EntryRules{
					Cadence:  15 * time.Minute,
					Momentum: &MomentumGate{Window: 15, Direction: Below, Threshold: -0.0082},
					Filters: Filters{
						Required:        4,
						Chop:            &ChopFilter{Window: 60, Max: 0.0015},
						Improving:       &ImprovingFilter{Window: 5},
						NoNewLow:        &WindowFilter{Window: 60},
						ExtremeMomentum: &ExtremeFilter{Window: 60, Min: -0.01},
						Trend:           &WindowFilter{Window: 240},
					},
				},
				Exit: ExitRules{
					TrailingStopPct: 0.0347,
					RapidDrop:       &RapidDrop{Window: 5, Pct: 0.03},
				},
			},
		}
	},
	"filtered_reversal_modular": func() Preset {
		return Preset{
			Name:        "filtered_reversal_modular",
			Description: "deep 15-minute dips confirmed by 2 of 3 filters (chop, momentum improving on the dip, trend)",
			Reference:   market.PriceOpen,
			Params: Params{
				Entry: EntryRules{
					Cadence:  15 * time.Minute,
					Momentum: &MomentumGate{Window: 15, Direction: Below, Threshold: -0.0082},
					Filters: Filters{
						Required:  2,
						Chop:      &ChopFilter{Window: 60, Max: 0.0015},
						Improving: &ImprovingFilter{Window: 5, AboveEntry: true},
						Trend:     &WindowFilter{Window: 240},
					},
				},
				Exit: ExitRules{
					TrailingStopPct: 0.0347,
					RapidDrop:       &RapidDrop{Window: 5, Pct: 0.03},
				},
			},
		}
	},
	"momentum_breakout": func() Preset {
		return Preset{
			Name:        "momentum_breakout",
			Description: "enter when 15-bar momentum reaches 0.5%, 3% intrabar stop, 12 hour max hold",
			Reference:   market.PriceOpen,
			Params: Params{
				Entry: EntryRules{
					Momentum: &MomentumGate{Window: 15, Direction: Above, Threshold: 0.005},
				},
				Exit: ExitRules{
					StopLossPct: 0.03,
					StopTrigger: TriggerLow,
					MaxHolding:  12 * time.Hour,
				},
			},
		}
	},
	"vol_forecast": func() Preset {
		w := volWindows()
		return Preset{
			Name:        "vol_forecast",
			Description: "15-minute bars, enter when the blended volatility forecast exceeds 0.0005, take any profit above 0.05%",
			Reference:   market.PriceClose,
			Interval:    15 * time.Minute,
			Windows:     w,
			Weights:     equalWeights(w),
			Params: Params{
				Entry: EntryRules{
					Volatility: &VolatilityGate{Mode: VolFixed, Threshold: 0.0005},
				},
				Exit: ExitRules{
					ProfitTargetPct: pct(0.0005),
				},
			},
		}
	},
	"adaptive_vol": func() Preset {
		w := volWindows()
		return Preset{
			Name:        "adaptive_vol",
			Description: "15-minute bars, enter when the forecast exceeds its rolling 60th percentile over 500 bars, 2% stop",
			Reference:   market.PriceClose,
			Interval:    15 * time.Minute,
			Windows:     w,
			Weights:     equalWeights(w),
			Params: Params{
				Entry: EntryRules{
					Volatility: &VolatilityGate{Mode: VolAdaptive, Lookback: 500, Percentile: 60},
				},
				Exit: ExitRules{
					StopLossPct: 0.02,
					StopTrigger: TriggerClose,
				},
			},
		}
	},
}

// LookupPreset returns a fresh copy of the named preset.
func LookupPreset(name string) (Preset, bool) {
	build, ok := presets[name]
	if !ok {
		return Preset{}, false
	}
	return build(), true
}

// PresetNames lists the available presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
