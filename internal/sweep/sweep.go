package sweep

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"longbtc-go/internal/backtest"
	"longbtc-go/internal/market"
	"longbtc-go/internal/performance"
	"longbtc-go/internal/strategy"
)

// Outcome is the compact result of one case; curves and trade lists are dropped.
type Outcome struct {
	Case    Case                `json:"case"`
	Status  backtest.Status     `json:"status"`
	Missing []string            `json:"missing,omitempty"`
	Summary performance.Summary `json:"summary"`
}

// Runner replays every case against a shared engine setup.
type Runner struct {
	Base    backtest.Config
	Workers int
	Log     zerolog.Logger
}

// Run simulates cases with at most Workers in flight. Outcomes are returned
// in case order whatever the completion order. The first failing case, or a
// cancelled ctx, stops cases that have not started yet.
func (r Runner) Run(ctx context.Context, series *market.Series, cases []Case) ([]Outcome, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	out := make([]Outcome, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range cases {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c := cases[i]
			ev, err := strategy.NewRules(c.Strategy, c.Params)
			if err != nil {
				return fmt.Errorf("case %s: %w", c.Name, err)
			}
			eng, err := backtest.New(r.Base, ev)
			if err != nil {
				return fmt.Errorf("case %s: %w", c.Name, err)
			}
			res, err := eng.Run(series)
			if err != nil {
				return fmt.Errorf("case %s: %w", c.Name, err)
			}
			out[i] = Outcome{Case: c, Status: res.Status, Missing: res.Missing, Summary: res.Summary}
			r.Log.Debug().Str("case", c.Name).Int("trades", res.Summary.Trades).
				Float64("total_return", res.Summary.TotalReturn).Msg("sweep case done")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.Log.Info().Int("cases", len(cases)).Int("workers", workers).Msg("sweep finished")
	return out, nil
}

// Rank keeps outcomes that ran with more than minTrades trades and returns
// the best topFraction of them by total return, rounded up, best first. Ties
// keep case order.
func Rank(outcomes []Outcome, minTrades int, topFraction float64) []Outcome {
	var kept []Outcome
	for _, o := range outcomes {
		if o.Status == backtest.StatusOK && o.Summary.Trades > minTrades {
			kept = append(kept, o)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Summary.TotalReturn > kept[j].Summary.TotalReturn
	})
	if topFraction <= 0 || len(kept) == 0 {
		return nil
	}
	n := int(math.Ceil(float64(len(kept)) * math.Min(topFraction, 1)))
	return kept[:n]
}
