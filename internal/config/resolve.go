package config

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"longbtc-go/internal/backtest"
	"longbtc-go/internal/errs"
	"longbtc-go/internal/forecast"
	"longbtc-go/internal/market"
	"longbtc-go/internal/strategy"
)

// Custom is the preset name that uses strategy.params as written.
const Custom = "custom"

// DefaultReferencePrice is the entry price of a custom strategy that does not set one.
const DefaultReferencePrice = market.PriceOpen

// ApplyPreset copies the named preset's rules into the config. The entry price
// convention, bar interval, volatility windows and weights are taken from the
// preset only where the config leaves them unset; a custom strategy fills an
// unset entry price with DefaultReferencePrice.
func (c *Config) ApplyPreset() error {
	name := strings.ToLower(strings.TrimSpace(c.Strategy.Preset))
	if name == "" || name == Custom {
		c.Strategy.Preset = Custom
		if c.Account.ReferencePrice == "" {
			c.Account.ReferencePrice = DefaultReferencePrice
		}
		return nil
	}
	p, ok := strategy.LookupPreset(name)
	if !ok {
		return errs.Config("strategy.preset", "unknown preset %q (have %s)", c.Strategy.Preset, strings.Join(strategy.PresetNames(), ", "))
	}
	c.Strategy.Preset = p.Name
	c.Strategy.Params = p.Params
	if c.Account.ReferencePrice == "" {
		c.Account.ReferencePrice = p.Reference
	}
	if c.Data.Resample == 0 {
		c.Data.Resample = p.Interval
	}
	if len(c.Volatility.Windows) == 0 {
		c.Volatility.Windows = p.Windows
	}
	if len(c.Volatility.Weights) == 0 && c.Volatility.WeightsFile == "" {
		c.Volatility.Weights = p.Weights
	}
	return nil
}

// LoadWeightsFile replaces the configured weights with the contents of
// volatility.weights_file, when one is set.
func (c *Config) LoadWeightsFile() error {
	if c.Volatility.WeightsFile == "" {
		return nil
	}
	w, err := forecast.LoadWeights(c.Volatility.WeightsFile)
	if err != nil {
		return err
	}
	c.Volatility.Weights = w
	return nil
}

// Validate reports the first invalid value. Nothing is defaulted afterwards.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.App.LogLevel)); err != nil {
		return errs.Config("app.log_level", "unknown level %q", c.App.LogLevel)
	}
	if c.Data.Resample < 0 {
		return errs.Config("data.resample", "must not be negative, got %s", c.Data.Resample)
	}
	if err := c.Account.Ledger().Validate(); err != nil {
		return err
	}
	if !c.Account.ReferencePrice.Valid() {
		return errs.Config("account.reference_price", "must be open or close, got %q", c.Account.ReferencePrice)
	}
	if math.IsNaN(c.Annualization) || c.Annualization <= 0 {
		return errs.Config("annualization", "must be positive, got %v", c.Annualization)
	}
	if err := c.Strategy.Params.Validate(); err != nil {
		return err
	}
	if len(c.Volatility.Windows) > 0 {
		if _, err := forecast.New(c.Volatility.Windows, c.Volatility.Weights, c.Volatility.Policy); err != nil {
			return err
		}
	}
	if c.Sweep.Workers < 1 {
		return errs.Config("sweep.workers", "must be at least 1, got %d", c.Sweep.Workers)
	}
	if c.Sweep.MinTrades < 0 {
		return errs.Config("sweep.min_trades", "must not be negative, got %d", c.Sweep.MinTrades)
	}
	if !(c.Sweep.TopFraction > 0 && c.Sweep.TopFraction <= 1) {
		return errs.Config("sweep.top_fraction", "must be in (0,1], got %v", c.Sweep.TopFraction)
	}
	if c.Exchange.PageLimit < 1 || c.Exchange.PageLimit > 1000 {
		return errs.Config("exchange.page_limit", "must be within [1,1000], got %d", c.Exchange.PageLimit)
	}
	if !(c.Exchange.RequestsPerSecond > 0) {
		return errs.Config("exchange.requests_per_second", "must be positive, got %v", c.Exchange.RequestsPerSecond)
	}
	return nil
}

// Resolve applies the preset, reads the weights file and validates, in that order.
func (c *Config) Resolve() error {
	if err := c.ApplyPreset(); err != nil {
		return err
	}
	if err := c.LoadWeightsFile(); err != nil {
		return err
	}
	return c.Validate()
}

// Backtest builds the engine setup and evaluator from a resolved config.
func (c *Config) Backtest() (backtest.Config, strategy.Evaluator, error) {
	ev, err := strategy.NewRules(c.Strategy.Preset, c.Strategy.Params)
	if err != nil {
		return backtest.Config{}, nil, err
	}
	bc := backtest.Config{
		Account:         c.Account.Ledger(),
		Reference:       c.Account.ReferencePrice,
		ForceCloseAtEnd: c.Account.ForceCloseAtEnd,
		Annualization:   c.Annualization,
	}
	if len(c.Volatility.Windows) > 0 {
		bc.Volatility = &backtest.VolatilityConfig{
			Windows: c.Volatility.Windows,
			Weights: c.Volatility.Weights,
			Policy:  c.Volatility.Policy,
		}
	}
	return bc, ev, nil
}
