// Package forecast blends several realized-volatility windows into one
// forecast and derives an adaptive entry threshold from its recent history.
package forecast

import (
	"math"
	"sort"

	"longbtc-go/internal/errs"
	"longbtc-go/internal/features"
)

// Policy decides how a window that is still warming up enters the blend.
type Policy string

const (
	// PolicyZero substitutes 0 for an unavailable window, so the blend is always
	// defined but under-forecasts while the longer windows warm up.
	PolicyZero Policy = "zero"
	// PolicyPropagate leaves the forecast unavailable until every weighted window is valid.
	PolicyPropagate Policy = "propagate"
)

type component struct {
	label  string
	window int
	weight float64
}

// Forecaster computes a weighted sum of volatility features. It is immutable after New.
type Forecaster struct {
	components []component
	policy     Policy
}

// New validates windows and weights. Every weight must be non-negative and name a
// declared window; windows without a weight contribute nothing.
func New(windows map[string]int, weights map[string]float64, policy Policy) (*Forecaster, error) {
	if policy == "" {
		return nil, errs.Config("volatility.warmup_policy", "policy is required")
	}
	if policy != PolicyZero && policy != PolicyPropagate {
		return nil, errs.Config("volatility.warmup_policy", "unknown policy %q", policy)
	}
	if len(windows) == 0 {
		return nil, errs.Config("volatility.windows", "at least one window is required")
	}
	for label, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, errs.Config("volatility.weights."+label, "weight %v must be a non-negative number", w)
		}
		if _, ok := windows[label]; !ok {
			return nil, errs.Config("volatility.weights."+label, "no window declared for weight")
		}
	}

	comps := make([]component, 0, len(windows))
	for label, window := range windows {
		if window < 2 {
			return nil, errs.Config("volatility.windows."+label, "window %d must be at least 2", window)
		}
		comps = append(comps, component{label: label, window: window, weight: weights[label]})
	}
	// fixed order keeps the floating point sum reproducible
	sort.Slice(comps, func(i, j int) bool { return comps[i].label < comps[j].label })
	return &Forecaster{components: comps, policy: policy}, nil
}

// Specs lists the volatility features the forecaster reads.
func (f *Forecaster) Specs() []features.Spec {
	out := make([]features.Spec, len(f.components))
	for i, c := range f.components {
		out[i] = features.Spec{Label: c.label, Kind: features.KindVolatility, Window: c.window}
	}
	return out
}

// Weights returns a copy of the configured weights.
func (f *Forecaster) Weights() map[string]float64 {
	out := make(map[string]float64, len(f.components))
	for _, c := range f.components {
		out[c.label] = c.weight
	}
	return out
}

// Forecast blends the volatility windows at one bar.
func (f *Forecaster) Forecast(v features.Vector) features.Value {
	var sum float64
	for _, c := range f.components {
		val := v.Get(c.label)
		if !val.Valid {
			if f.policy == PolicyPropagate && c.weight > 0 {
				return features.Value{}
			}
			continue
		}
		sum += c.weight * val.V
	}
	return features.Value{V: sum, Valid: true}
}

// Series evaluates the forecast at every bar of the frame.
func (f *Forecaster) Series(frame *features.Frame) []features.Value {
	out := make([]features.Value, frame.Len())
	for i := range out {
		out[i] = f.Forecast(frame.At(i))
	}
	return out
}

// AdaptiveThreshold returns, for each bar, the percentile of the forecasts in
// [i-lookback+1, i]. A bar is unavailable until lookback forecasts exist or
// while any forecast in its window is unavailable.
func AdaptiveThreshold(forecasts []features.Value, lookback int, percentile float64) ([]features.Value, error) {
	if lookback < 1 {
		return nil, errs.Config("volatility.adaptive.lookback", "lookback %d must be positive", lookback)
	}
	if math.IsNaN(percentile) || percentile < 0 || percentile > 100 {
		return nil, errs.Config("volatility.adaptive.percentile", "percentile %v must be within [0,100]", percentile)
	}

	out := make([]features.Value, len(forecasts))
	window := make([]float64, 0, lookback)
	lastInvalid := -1
	for i, fv := range forecasts {
		if !fv.Valid {
			lastInvalid = i
		}
		start := i - lookback + 1
		if start < 0 || lastInvalid >= start {
			continue
		}
		window = window[:0]
		for _, w := range forecasts[start : i+1] {
			window = append(window, w.V)
		}
		sort.Float64s(window)
		out[i] = features.Value{V: Quantile(window, percentile/100), Valid: true}
	}
	return out, nil
}

// Quantile interpolates linearly between the closest ranks of a sorted sample,
// placing rank k at k/(n-1). p is clamped to [0,1].
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := lo + 1
	if hi >= n {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
