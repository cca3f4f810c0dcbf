package market

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"math"

	"longbtc-go/internal/errs"
)

// Series is an ordered, read-only sequence of bars. It is safe to share
// between concurrent backtests because nothing mutates it after construction.
type Series struct {
	bars []Bar
}

// NewSeries copies bars into a Series. It does not validate; call Validate
// before handing the series to the simulation core.
func NewSeries(bars []Bar) *Series {
	out := make([]Bar, len(bars))
	copy(out, bars)
	return &Series{bars: out}
}

// Validate rejects series with non-finite prices or timestamps that are not strictly increasing.
func (s *Series) Validate() error {
	for i, b := range s.bars {
		if b.Time.IsZero() {
			return &errs.DataError{Index: i, Reason: "missing timestamp"}
		}
		if !b.Finite() {
			return &errs.DataError{Index: i, Time: b.Time, Reason: "non-finite or non-positive price"}
		}
		if i == 0 {
			continue
		}
		prev := s.bars[i-1].Time
		switch {
		case b.Time.Equal(prev):
			return &errs.DataError{Index: i, Time: b.Time, Reason: "duplicate timestamp"}
		case b.Time.Before(prev):
			return &errs.DataError{Index: i, Time: b.Time, Reason: fmt.Sprintf("timestamp precedes bar %d", i-1)}
		}
	}
	return nil
}

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.bars) }

// At returns the bar at index i.
func (s *Series) At(i int) Bar { return s.bars[i] }

// Bars returns a copy of the underlying bars.
func (s *Series) Bars() []Bar {
	out := make([]Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Closes returns the close prices in order.
func (s *Series) Closes() []float64 { return s.column(func(b Bar) float64 { return b.Close }) }

// Lows returns the low prices in order.
func (s *Series) Lows() []float64 { return s.column(func(b Bar) float64 { return b.Low }) }

func (s *Series) column(pick func(Bar) float64) []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = pick(b)
	}
	return out
}

// BuyAndHold returns the close-to-close return of holding the asset over the whole series.
func (s *Series) BuyAndHold() (float64, bool) {
	if len(s.bars) < 2 {
		return 0, false
	}
	first, last := s.bars[0].Close, s.bars[len(s.bars)-1].Close
	return (last - first) / first, true
}

// Fingerprint is a stable digest of the series contents, used to key stored runs.
func (s *Series) Fingerprint() string {
	h := sha1.New()
	var buf [8]byte
	for _, b := range s.bars {
		binary.BigEndian.PutUint64(buf[:], uint64(b.Time.UnixNano()))
		h.Write(buf[:])
		for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
