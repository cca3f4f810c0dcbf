// Package features computes rolling signals (returns, momentum, realized
// volatility, moving averages) from a bar series without look-ahead.
package features

import (
	"fmt"
	"sort"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"longbtc-go/internal/errs"
	"longbtc-go/internal/market"
)

// Kind selects the rolling statistic a Spec computes.
type Kind string

const (
	// KindReturn is the one-bar percentage return of the close.
	KindReturn Kind = "return"
	// KindMomentum is the sum of returns over the window.
	KindMomentum Kind = "momentum"
	// KindVolatility is the sample standard deviation of returns over the window.
	KindVolatility Kind = "volatility"
	// KindSMA is the mean close over the window.
	KindSMA Kind = "sma"
	// KindLowest is the lowest low over the window.
	KindLowest Kind = "lowest"
	// KindChange is the percentage change of the close against the close Window bars earlier.
	KindChange Kind = "change"
)

// Spec names one rolling feature.
type Spec struct {
	Label  string `yaml:"label" json:"label"`
	Kind   Kind   `yaml:"kind" json:"kind"`
	Window int    `yaml:"window" json:"window"`
}

// Warmup is the index of the first bar at which the feature can be valid.
func (s Spec) Warmup() int {
	switch s.Kind {
	case KindSMA, KindLowest:
		return s.Window - 1
	case KindReturn:
		return 1
	default:
		return s.Window
	}
}

func (s Spec) validate() error {
	field := "features." + s.Label
	if s.Label == "" {
		return errs.Config("features", "feature label is empty")
	}
	switch s.Kind {
	case KindReturn:
		return nil
	case KindVolatility:
		if s.Window < 2 {
			return errs.Config(field, "volatility window %d must be at least 2", s.Window)
		}
	case KindMomentum, KindSMA, KindLowest, KindChange:
		if s.Window < 1 {
			return errs.Config(field, "window %d must be positive", s.Window)
		}
	default:
		return errs.Config(field, "unknown feature kind %q", s.Kind)
	}
	return nil
}

// Merge combines spec lists from several consumers, dropping exact duplicates.
// The same label declared with two different definitions is a configuration error.
func Merge(lists ...[]Spec) ([]Spec, error) {
	seen := make(map[string]Spec)
	var out []Spec
	for _, list := range lists {
		for _, s := range list {
			if prev, ok := seen[s.Label]; ok {
				if prev != s {
					return nil, errs.Config("features."+s.Label, "declared twice with different definitions (%s/%d vs %s/%d)", prev.Kind, prev.Window, s.Kind, s.Window)
				}
				continue
			}
			seen[s.Label] = s
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// Value is a feature reading that is only meaningful when Valid is set.
type Value struct {
	V     float64 `json:"v"`
	Valid bool    `json:"valid"`
}

// Frame holds one column per spec, aligned with the bars of the source series.
type Frame struct {
	n     int
	specs []Spec
	index map[string]int
	cols  [][]Value
}

// Compute evaluates every spec over the series. The value at bar i depends only on bars 0..i.
func Compute(series *market.Series, specs []Spec) (*Frame, error) {
	merged, err := Merge(specs)
	if err != nil {
		return nil, err
	}
	for _, s := range merged {
		if err := s.validate(); err != nil {
			return nil, err
		}
	}

	closes := series.Closes()
	lows := series.Lows()
	returns := pctReturns(closes)

	f := &Frame{
		n:     series.Len(),
		specs: merged,
		index: make(map[string]int, len(merged)),
		cols:  make([][]Value, len(merged)),
	}
	for i, s := range merged {
		col, err := compute(s, closes, lows, returns)
		if err != nil {
			return nil, err
		}
		f.index[s.Label] = i
		f.cols[i] = col
	}
	return f, nil
}

func compute(s Spec, closes, lows, returns []float64) ([]Value, error) {
	n := len(closes)
	col := make([]Value, n)
	switch s.Kind {
	case KindReturn:
		for i := 1; i < n; i++ {
			col[i] = Value{V: returns[i-1], Valid: true}
		}
	case KindMomentum:
		// returns[j] belongs to bar j+1
		if len(returns) >= s.Window {
			sums := talib.Sum(returns, s.Window)
			for j := s.Window - 1; j < len(returns); j++ {
				col[j+1] = Value{V: sums[j], Valid: true}
			}
		}
	case KindVolatility:
		for j := s.Window - 1; j < len(returns); j++ {
			col[j+1] = Value{V: stat.StdDev(returns[j-s.Window+1:j+1], nil), Valid: true}
		}
	case KindSMA:
		if n >= s.Window {
			fill(col, talib.Sma(closes, s.Window), s.Window-1)
		}
	case KindLowest:
		// talib.Min leaves the output zeroed for periods below 2
		if s.Window == 1 {
			fill(col, lows, 0)
		} else if n >= s.Window {
			fill(col, talib.Min(lows, s.Window), s.Window-1)
		}
	case KindChange:
		if n > s.Window {
			fill(col, talib.Rocp(closes, s.Window), s.Window)
		}
	default:
		return nil, fmt.Errorf("feature %s: unsupported kind %q", s.Label, s.Kind)
	}
	return col, nil
}

func fill(col []Value, raw []float64, from int) {
	for i := from; i < len(col); i++ {
		col[i] = Value{V: raw[i], Valid: true}
	}
}

func pctReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out[i-1] = (closes[i] - closes[i-1]) / closes[i-1]
	}
	return out
}

// Len returns the number of bars covered by the frame.
func (f *Frame) Len() int { return f.n }

// Specs returns the computed specs in label order.
func (f *Frame) Specs() []Spec {
	out := make([]Spec, len(f.specs))
	copy(out, f.specs)
	return out
}

// Has reports whether the frame computed the label.
func (f *Frame) Has(label string) bool {
	_, ok := f.index[label]
	return ok
}

// Column returns a copy of one feature column.
func (f *Frame) Column(label string) ([]Value, bool) {
	idx, ok := f.index[label]
	if !ok {
		return nil, false
	}
	out := make([]Value, f.n)
	copy(out, f.cols[idx])
	return out, true
}

// FirstValid returns the first bar index at which label is valid, or -1 if it never is.
func (f *Frame) FirstValid(label string) int {
	idx, ok := f.index[label]
	if !ok {
		return -1
	}
	for i, v := range f.cols[idx] {
		if v.Valid {
			return i
		}
	}
	return -1
}

// At returns the feature vector for bar i.
func (f *Frame) At(i int) Vector { return Vector{frame: f, i: i} }

// Vector is a read-only view of every feature at a single bar.
type Vector struct {
	frame *Frame
	i     int
}

// Index returns the bar index the vector refers to.
func (v Vector) Index() int { return v.i }

// Get returns the feature value; unknown labels are reported as unavailable.
func (v Vector) Get(label string) Value {
	if v.frame == nil {
		return Value{}
	}
	idx, ok := v.frame.index[label]
	if !ok || v.i < 0 || v.i >= v.frame.n {
		return Value{}
	}
	return v.frame.cols[idx][v.i]
}
