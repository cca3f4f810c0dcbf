package marketdata

import (
	"fmt"
	"time"

	"longbtc-go/internal/market"
)

// Resample aggregates bars into interval buckets labelled by their start:
// first open, highest high, lowest low, last close, summed volume. Buckets
// without bars are omitted. Input must be in time order.
func Resample(series *market.Series, interval time.Duration) (*market.Series, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("resample interval must be positive, got %s", interval)
	}
	var (
		out []market.Bar
		cur market.Bar
		has bool
	)
	for i := 0; i < series.Len(); i++ {
		b := series.At(i)
		bucket := b.Time.Truncate(interval)
		if has && bucket.Equal(cur.Time) {
			if b.High > cur.High {
				cur.High = b.High
			}
			if b.Low < cur.Low {
				cur.Low = b.Low
			}
			cur.Close = b.Close
			cur.Volume += b.Volume
			continue
		}
		if has {
			out = append(out, cur)
		}
		cur = market.Bar{Time: bucket, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
		has = true
	}
	if has {
		out = append(out, cur)
	}
	return market.NewSeries(out), nil
}
