// Package performance derives return, risk and fee statistics from a
// finished trade log.
package performance

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"longbtc-go/internal/ledger"
)

// DefaultAnnualization scales per-trade Sharpe as if trades were 15-minute
// periods over a 252-day year.
const DefaultAnnualization = 252 * 24 * 4

// Input is everything Summarize reads. None of it is modified.
type Input struct {
	StartingBalance float64
	FinalEquity     float64
	Trades          []ledger.Trade
	Curve           []ledger.EquityPoint
	Annualization   float64
	// Benchmark is the buy-and-hold return over the same bars, if known.
	Benchmark *float64
}

// Summary is the report of one run. Nil pointers mean "not computable".
type Summary struct {
	StartingBalance float64               `json:"starting_balance"`
	FinalEquity     float64               `json:"final_equity"`
	TotalReturn     float64               `json:"total_return"`
	Trades          int                   `json:"trades"`
	Wins            int                   `json:"wins"`
	WinRate         float64               `json:"win_rate"`
	Sharpe          *float64              `json:"sharpe,omitempty"`
	MaxDrawdown     *float64              `json:"max_drawdown,omitempty"`
	GrossPnL        float64               `json:"gross_pnl"`
	EntryFees       float64               `json:"entry_fees"`
	ExitFees        float64               `json:"exit_fees"`
	TotalFees       float64               `json:"total_fees"`
	FeeImpact       float64               `json:"fee_impact"`
	AvgHolding      time.Duration         `json:"avg_holding"`
	Reasons         map[ledger.Reason]int `json:"reasons,omitempty"`
	Benchmark       *float64              `json:"benchmark,omitempty"`
}

// Summarize computes every statistic for one run.
func Summarize(in Input) Summary {
	s := Summary{
		StartingBalance: in.StartingBalance,
		FinalEquity:     in.FinalEquity,
		Trades:          len(in.Trades),
		Benchmark:       in.Benchmark,
	}
	if in.StartingBalance != 0 {
		s.TotalReturn = (in.FinalEquity - in.StartingBalance) / in.StartingBalance
	}

	returns := make([]float64, 0, len(in.Trades))
	var holding time.Duration
	for _, tr := range in.Trades {
		returns = append(returns, tr.PnLPct)
		s.GrossPnL += tr.PnL
		s.EntryFees += tr.EntryFee
		s.ExitFees += tr.ExitFee
		holding += tr.Holding
		if tr.NetPnL > 0 {
			s.Wins++
		}
		if s.Reasons == nil {
			s.Reasons = make(map[ledger.Reason]int)
		}
		s.Reasons[tr.Reason]++
	}
	s.TotalFees = s.EntryFees + s.ExitFees
	s.FeeImpact = FeeImpact(s.TotalFees, s.GrossPnL)
	if n := len(in.Trades); n > 0 {
		s.WinRate = float64(s.Wins) / float64(n)
		s.AvgHolding = holding / time.Duration(n)
	}

	if v, ok := Sharpe(returns, in.Annualization); ok {
		s.Sharpe = &v
	}
	equity := make([]float64, len(in.Curve))
	for i, p := range in.Curve {
		equity[i] = p.Equity
	}
	if v, ok := MaxDrawdown(equity); ok {
		s.MaxDrawdown = &v
	}
	return s
}

// Sharpe is mean/population-stdev of per-trade returns scaled by
// sqrt(annualization). It is not computable with fewer than two returns or
// when every return is identical.
func Sharpe(returns []float64, annualization float64) (float64, bool) {
	n := len(returns)
	if n < 2 || annualization <= 0 {
		return 0, false
	}
	same := true
	for _, r := range returns[1:] {
		if r != returns[0] {
			same = false
			break
		}
	}
	if same {
		return 0, false
	}
	mean := stat.Mean(returns, nil)
	// population stdev from the unbiased one
	std := stat.StdDev(returns, nil) * math.Sqrt(float64(n-1)/float64(n))
	if std == 0 || math.IsNaN(std) {
		return 0, false
	}
	return mean / std * math.Sqrt(annualization), true
}

// MaxDrawdown is the most negative (e - running max)/running max over the
// equity samples. It is 0 or negative, and not computable for an empty curve.
func MaxDrawdown(equity []float64) (float64, bool) {
	if len(equity) == 0 {
		return 0, false
	}
	peak := equity[0]
	worst := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			if dd := (e - peak) / peak; dd < worst {
				worst = dd
			}
		}
	}
	return worst, true
}

// FeeImpact is the share of total movement consumed by fees,
// fees/(|pnl|+fees), or 0 when nothing moved.
func FeeImpact(fees, grossPnL float64) float64 {
	denom := math.Abs(grossPnL) + fees
	if denom == 0 {
		return 0
	}
	return fees / denom
}

// ReasonCount is one row of a sorted reason breakdown.
type ReasonCount struct {
	Reason ledger.Reason
	Count  int
}

// SortedReasons orders the exit reason breakdown by count, then name.
func (s Summary) SortedReasons() []ReasonCount {
	out := make([]ReasonCount, 0, len(s.Reasons))
	for r, c := range s.Reasons {
		out = append(out, ReasonCount{Reason: r, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}
