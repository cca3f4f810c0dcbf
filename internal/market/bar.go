// Package market standardizes the bar payloads shared between data loading and the simulation core.
package market

import (
	"math"
	"time"
)

// Bar models one OHLCV observation at a fixed timestamp.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume,omitempty"` // optional, zero when the source has none
}

// Finite reports whether every price on the bar is a finite positive number.
func (b Bar) Finite() bool {
	for _, px := range [...]float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(px) || math.IsInf(px, 0) || px <= 0 {
			return false
		}
	}
	return !math.IsNaN(b.Volume) && !math.IsInf(b.Volume, 0)
}

// Price selects the reference price used when filling an order on this bar.
func (b Bar) Price(ref PriceRef) float64 {
	if ref == PriceOpen {
		return b.Open
	}
	return b.Close
}

// PriceRef names which bar price an entry fills at.
type PriceRef string

const (
	// PriceOpen fills at the bar's open.
	PriceOpen PriceRef = "open"
	// PriceClose fills at the bar's close.
	PriceClose PriceRef = "close"
)

// Valid reports whether the reference is one of the known values.
func (r PriceRef) Valid() bool { return r == PriceOpen || r == PriceClose }
