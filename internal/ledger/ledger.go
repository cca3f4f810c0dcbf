package ledger

import (
	"time"
)

// Reason names why a position was closed.
type Reason string

const (
	ReasonStopLoss     Reason = "stop_loss"
	ReasonTrailingStop Reason = "trailing_stop"
	ReasonRapidDrop    Reason = "rapid_drop"
	ReasonMaxHolding   Reason = "max_holding"
	ReasonProfitTarget Reason = "profit_target"
	ReasonEndOfSeries  Reason = "end_of_series"
)

// Trade is one closed round trip. Trades are never modified after they are appended.
type Trade struct {
	EntryTime   time.Time     `json:"entry_time"`
	EntryPrice  float64       `json:"entry_price"`
	ExitTime    time.Time     `json:"exit_time"`
	ExitPrice   float64       `json:"exit_price"`
	Notional    float64       `json:"notional"`
	PnL         float64       `json:"pnl"`
	PnLPct      float64       `json:"pnl_pct"`
	EntryFee    float64       `json:"entry_fee"`
	ExitFee     float64       `json:"exit_fee"`
	NetPnL      float64       `json:"net_pnl"`
	Holding     time.Duration `json:"holding"`
	Bars        int           `json:"bars"`
	Reason      Reason        `json:"reason"`
	EquityAfter float64       `json:"equity_after"`
}

// Fees is the total fee paid on the trade.
func (t Trade) Fees() float64 { return t.EntryFee + t.ExitFee }

// EquityPoint samples equity right after a trade closes.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// Recorder receives every trade as it is appended.
type Recorder interface {
	Record(Trade)
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithRecorder forwards closed trades to r.
func WithRecorder(r Recorder) Option {
	return func(l *Ledger) { l.recorder = r }
}

// Ledger owns the account equity, the current position and the trade log.
// It is not safe for concurrent use; each simulation owns its own ledger.
type Ledger struct {
	cfg      Config
	equity   float64
	pos      Position
	trades   []Trade
	curve    []EquityPoint
	recorder Recorder
}

// New validates cfg and returns a flat ledger holding the starting balance.
func New(cfg Config, opts ...Option) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Ledger{cfg: cfg, equity: cfg.StartingBalance}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Config returns the account setup.
func (l *Ledger) Config() Config { return l.cfg }

// Equity is the realized account value. The entry fee is already deducted while open.
func (l *Ledger) Equity() float64 { return l.equity }

// Position returns the current position state.
func (l *Ledger) Position() Position {
	if o, ok := l.pos.Open(); ok {
		return Position{open: &o}
	}
	return Position{}
}

// Open enters at price. The notional is sized from equity before the entry
// fee, and the fee is charged immediately.
func (l *Ledger) Open(at time.Time, price float64) (Open, error) {
	if l.pos.IsOpen() {
		return Open{}, ErrPositionOpen
	}
	if !positive(price) {
		return Open{}, errInvalidPrice(price)
	}
	notional := l.equity
	if l.cfg.Sizing == SizingFixedFraction {
		notional = l.equity * l.cfg.Fraction
	}
	fee := notional * l.cfg.EntryFeeRate
	l.equity -= fee
	l.pos = Position{open: &Open{
		EntryTime:  at,
		EntryPrice: price,
		Notional:   notional,
		EntryFee:   fee,
		Peak:       price,
	}}
	return *l.pos.open, nil
}

// Mark advances the open position by one bar and raises the peak to close if higher.
func (l *Ledger) Mark(close float64) error {
	if !l.pos.IsOpen() {
		return ErrFlat
	}
	if !positive(close) {
		return errInvalidPrice(close)
	}
	l.pos.open.Bars++
	if close > l.pos.open.Peak {
		l.pos.open.Peak = close
	}
	return nil
}

// Close realizes the open position at price. PnL is added to equity first and
// the exit fee is charged on the resulting equity.
func (l *Ledger) Close(at time.Time, price float64, reason Reason) (Trade, error) {
	if !l.pos.IsOpen() {
		return Trade{}, ErrFlat
	}
	if !positive(price) {
		return Trade{}, errInvalidPrice(price)
	}
	o := *l.pos.open
	ret := o.Return(price)
	pnl := o.Notional * ret
	l.equity += pnl
	exitFee := l.equity * l.cfg.ExitFeeRate
	l.equity -= exitFee

	tr := Trade{
		EntryTime:   o.EntryTime,
		EntryPrice:  o.EntryPrice,
		ExitTime:    at,
		ExitPrice:   price,
		Notional:    o.Notional,
		PnL:         pnl,
		PnLPct:      ret,
		EntryFee:    o.EntryFee,
		ExitFee:     exitFee,
		NetPnL:      pnl - o.EntryFee - exitFee,
		Holding:     o.Holding(at),
		Bars:        o.Bars,
		Reason:      reason,
		EquityAfter: l.equity,
	}
	l.trades = append(l.trades, tr)
	l.curve = append(l.curve, EquityPoint{Time: at, Equity: l.equity})
	l.pos = Position{}
	if l.recorder != nil {
		l.recorder.Record(tr)
	}
	return tr, nil
}

// ForceClose closes at the final bar's close with ReasonEndOfSeries.
func (l *Ledger) ForceClose(at time.Time, close float64) (Trade, error) {
	return l.Close(at, close, ReasonEndOfSeries)
}

// Trades returns a copy of the closed trades in order.
func (l *Ledger) Trades() []Trade {
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Curve returns a copy of the equity sampled at each trade close.
func (l *Ledger) Curve() []EquityPoint {
	out := make([]EquityPoint, len(l.curve))
	copy(out, l.curve)
	return out
}

// Snapshot is a point-in-time view of the account, marked to a price.
type Snapshot struct {
	Equity     float64 `json:"equity"`
	Realized   float64 `json:"realized"`
	Unrealized float64 `json:"unrealized"`
	Open       *Open   `json:"open,omitempty"`
	Trades     int     `json:"trades"`
}

// Snapshot marks any open position to mark without changing state.
func (l *Ledger) Snapshot(mark float64) Snapshot {
	s := Snapshot{
		Equity:   l.equity,
		Realized: l.equity - l.cfg.StartingBalance,
		Trades:   len(l.trades),
	}
	if o, ok := l.pos.Open(); ok {
		s.Open = &o
		if positive(mark) {
			s.Unrealized = o.Unrealized(mark)
		}
	}
	return s
}
