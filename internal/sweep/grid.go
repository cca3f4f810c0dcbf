// Package sweep runs many parameter sets over one series and ranks them.
package sweep

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"longbtc-go/internal/errs"
	"longbtc-go/internal/strategy"
)

// Axis names accepted in a grid.
const (
	AxisMomentumThreshold = "momentum_threshold"
	AxisStopLossPct       = "stop_loss_pct"
	AxisTrailingStopPct   = "trailing_stop_pct"
	AxisMaxHoldingMinutes = "max_holding_minutes"
	AxisProfitTargetPct   = "profit_target_pct"
	AxisVolThreshold      = "vol_threshold"
	AxisPercentile        = "percentile"
)

type setter func(p *strategy.Params, v float64) error

var axes = map[string]setter{
	AxisMomentumThreshold: func(p *strategy.Params, v float64) error {
		if p.Entry.Momentum == nil {
			return fmt.Errorf("base strategy has no momentum gate")
		}
		p.Entry.Momentum.Threshold = v
		return nil
	},
	AxisStopLossPct: func(p *strategy.Params, v float64) error {
		p.Exit.StopLossPct = v
		if v > 0 && p.Exit.StopTrigger == "" {
			p.Exit.StopTrigger = strategy.TriggerClose
		}
		return nil
	},
	AxisTrailingStopPct: func(p *strategy.Params, v float64) error {
		p.Exit.TrailingStopPct = v
		return nil
	},
	AxisMaxHoldingMinutes: func(p *strategy.Params, v float64) error {
		p.Exit.MaxHolding = time.Duration(v * float64(time.Minute))
		return nil
	},
	AxisProfitTargetPct: func(p *strategy.Params, v float64) error {
		p.Exit.ProfitTargetPct = &v
		return nil
	},
	AxisVolThreshold: func(p *strategy.Params, v float64) error {
		if p.Entry.Volatility == nil || p.Entry.Volatility.Mode != strategy.VolFixed {
			return fmt.Errorf("base strategy has no fixed volatility gate")
		}
		p.Entry.Volatility.Threshold = v
		return nil
	},
	AxisPercentile: func(p *strategy.Params, v float64) error {
		if p.Entry.Volatility == nil || p.Entry.Volatility.Mode != strategy.VolAdaptive {
			return fmt.Errorf("base strategy has no adaptive volatility gate")
		}
		p.Entry.Volatility.Percentile = v
		return nil
	},
}

// Axes lists the supported axis names in sorted order.
func Axes() []string {
	names := make([]string, 0, len(axes))
	for name := range axes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Case is one point of a grid.
type Case struct {
	Name     string             `json:"name"`
	Strategy string             `json:"strategy"`
	Values   map[string]float64 `json:"values"`
	Params   strategy.Params    `json:"params"`
}

// Expand builds the cartesian product of grid over base. Axes vary in sorted
// name order with the last axis fastest, so the case list is deterministic.
// An empty grid yields the base alone.
func Expand(prefix string, base strategy.Params, grid map[string][]float64) ([]Case, error) {
	names := make([]string, 0, len(grid))
	for name, values := range grid {
		if _, ok := axes[name]; !ok {
			return nil, errs.Config("sweep.grid."+name, "unknown axis (have %s)", strings.Join(Axes(), ", "))
		}
		if len(values) == 0 {
			return nil, errs.Config("sweep.grid."+name, "no values")
		}
		for _, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errs.Config("sweep.grid."+name, "non-finite value %v", v)
			}
		}
		names = append(names, name)
	}
	sort.Strings(names)

	total := 1
	for _, name := range names {
		total *= len(grid[name])
	}
	cases := make([]Case, 0, total)
	idx := make([]int, len(names))
	for n := 0; n < total; n++ {
		c := Case{Strategy: prefix, Values: make(map[string]float64, len(names)), Params: base.Clone()}
		parts := []string{prefix}
		for i, name := range names {
			v := grid[name][idx[i]]
			if err := axes[name](&c.Params, v); err != nil {
				return nil, errs.Config("sweep.grid."+name, "%v", err)
			}
			c.Values[name] = v
			parts = append(parts, name+"="+strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := c.Params.Validate(); err != nil {
			return nil, fmt.Errorf("case %s: %w", strings.Join(parts, " "), err)
		}
		c.Name = strings.Join(parts, " ")
		cases = append(cases, c)

		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(grid[names[i]]) {
				break
			}
			idx[i] = 0
		}
	}
	return cases, nil
}
