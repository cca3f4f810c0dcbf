// Package strategy decides, bar by bar, when to open and when to close the
// single long position.
package strategy

import (
	"longbtc-go/internal/features"
	"longbtc-go/internal/ledger"
	"longbtc-go/internal/market"
)

// Context is everything an evaluator may read at one bar. Nothing in it
// depends on later bars.
type Context struct {
	Bar       market.Bar
	Features  features.Vector
	Forecast  features.Value
	Threshold features.Value
}

// Exit is a close decision: why and at what price.
type Exit struct {
	Reason ledger.Reason
	Price  float64
}

// Inputs lists what an evaluator reads so the driver can compute it up front.
// Entry inputs decide whether a run has enough data; exit inputs that are not
// yet available simply never trigger.
type Inputs struct {
	Entry     []features.Spec
	Exit      []features.Spec
	Forecast  bool
	Threshold *Adaptive
}

// Adaptive describes the rolling percentile threshold a forecast is compared against.
type Adaptive struct {
	Lookback   int
	Percentile float64
}

// Specs merges entry and exit feature specs.
func (in Inputs) Specs() ([]features.Spec, error) {
	return features.Merge(in.Entry, in.Exit)
}

// Evaluator is a pure decision function over the current bar and position.
type Evaluator interface {
	Name() string
	Inputs() Inputs
	ShouldEnter(c Context) bool
	ShouldExit(c Context, pos ledger.Open) (Exit, bool)
}
