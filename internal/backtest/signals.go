package backtest

import (
	"time"

	"longbtc-go/internal/features"
	"longbtc-go/internal/market"
)

// Point is the volatility forecast and adaptive threshold at one bar.
type Point struct {
	Time      time.Time      `json:"time"`
	Forecast  features.Value `json:"forecast"`
	Threshold features.Value `json:"threshold"`
}

// Signals computes the forecast series the evaluator would see, without trading.
func (e *Engine) Signals(series *market.Series) ([]Point, error) {
	p, err := e.prepare(series)
	if err != nil {
		return nil, err
	}
	out := make([]Point, series.Len())
	for i := range out {
		out[i] = Point{Time: series.At(i).Time, Forecast: p.forecasts[i], Threshold: p.thresholds[i]}
	}
	return out, nil
}
