// Package ledger tracks equity, the single open position and the closed trades
// of one simulated account.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"time"

	"longbtc-go/internal/errs"
)

var (
	// ErrPositionOpen is returned when opening while a position is already held.
	ErrPositionOpen = errors.New("ledger: position already open")
	// ErrFlat is returned when marking or closing without an open position.
	ErrFlat = errors.New("ledger: no open position")
)

// SizingMode controls how much equity a new position commits.
type SizingMode string

const (
	// SizingAllIn commits the whole equity as notional.
	SizingAllIn SizingMode = "all_in"
	// SizingFixedFraction commits Fraction of equity as notional.
	SizingFixedFraction SizingMode = "fixed_fraction"
)

// Config is the immutable account setup.
type Config struct {
	StartingBalance float64    `yaml:"starting_balance" json:"starting_balance"`
	EntryFeeRate    float64    `yaml:"entry_fee_rate" json:"entry_fee_rate"`
	ExitFeeRate     float64    `yaml:"exit_fee_rate" json:"exit_fee_rate"`
	Sizing          SizingMode `yaml:"sizing" json:"sizing"`
	Fraction        float64    `yaml:"fraction,omitempty" json:"fraction,omitempty"`
}

// Validate rejects balances, fee rates and sizing the ledger cannot apply.
func (c Config) Validate() error {
	if !positive(c.StartingBalance) {
		return errs.Config("account.starting_balance", "must be positive, got %v", c.StartingBalance)
	}
	if !rate(c.EntryFeeRate) {
		return errs.Config("account.entry_fee_rate", "must be in [0,1), got %v", c.EntryFeeRate)
	}
	if !rate(c.ExitFeeRate) {
		return errs.Config("account.exit_fee_rate", "must be in [0,1), got %v", c.ExitFeeRate)
	}
	switch c.Sizing {
	case SizingAllIn:
	case SizingFixedFraction:
		if !positive(c.Fraction) || c.Fraction > 1 {
			return errs.Config("account.fraction", "must be in (0,1], got %v", c.Fraction)
		}
	case "":
		return errs.Config("account.sizing", "sizing mode is required")
	default:
		return errs.Config("account.sizing", "unknown sizing mode %q", c.Sizing)
	}
	return nil
}

func positive(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0 }

func rate(v float64) bool { return !math.IsNaN(v) && v >= 0 && v < 1 }

// Open describes the position while it is held.
type Open struct {
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	Notional   float64   `json:"notional"`
	EntryFee   float64   `json:"entry_fee"`
	Peak       float64   `json:"peak"`
	Bars       int       `json:"bars"`
}

// Return is the price return of mark against the entry price.
func (o Open) Return(mark float64) float64 { return (mark - o.EntryPrice) / o.EntryPrice }

// Unrealized is the PnL the position would realize at mark, before the exit fee.
func (o Open) Unrealized(mark float64) float64 { return o.Notional * o.Return(mark) }

// Holding is the time held as of t.
func (o Open) Holding(t time.Time) time.Duration { return t.Sub(o.EntryTime) }

// Position is either flat or holds exactly one Open. A peak only exists while open.
type Position struct {
	open *Open
}

// IsOpen reports whether a position is held.
func (p Position) IsOpen() bool { return p.open != nil }

// Open returns a copy of the held position.
func (p Position) Open() (Open, bool) {
	if p.open == nil {
		return Open{}, false
	}
	return *p.open, true
}

func (p Position) String() string {
	if p.open == nil {
		return "flat"
	}
	return fmt.Sprintf("open@%.2f peak=%.2f", p.open.EntryPrice, p.open.Peak)
}

func errInvalidPrice(p float64) error {
	return fmt.Errorf("ledger: invalid price %v", p)
}
