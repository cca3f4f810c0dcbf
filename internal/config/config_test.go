package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"longbtc-go/internal/errs"
	"longbtc-go/internal/forecast"
	"longbtc-go/internal/ledger"
	"longbtc-go/internal/market"
	"longbtc-go/internal/strategy"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "longbtc-test" || cfg.App.LogLevel != "debug" || !cfg.App.PrettyLogs {
		t.Fatalf("unexpected App: %+v", cfg.App)
	}
	if cfg.Account.StartingBalance != 5000 {
		t.Fatalf("expected starting balance 5000, got %.2f", cfg.Account.StartingBalance)
	}
	if cfg.Account.Sizing != ledger.SizingFixedFraction || cfg.Account.Fraction != 0.5 {
		t.Fatalf("unexpected sizing %s/%v", cfg.Account.Sizing, cfg.Account.Fraction)
	}
	if cfg.Account.ReferencePrice != market.PriceClose || !cfg.Account.ForceCloseAtEnd {
		t.Fatalf("unexpected fill conventions %+v", cfg.Account)
	}
	if cfg.Volatility.Windows["vol_slow"] != 16 || cfg.Volatility.Weights["vol_fast"] != 0.6 {
		t.Fatalf("unexpected volatility %+v", cfg.Volatility)
	}
	if cfg.Volatility.Policy != forecast.PolicyPropagate {
		t.Fatalf("unexpected policy %s", cfg.Volatility.Policy)
	}

	p := cfg.Strategy.Params
	if p.Entry.Cadence != 15*time.Minute {
		t.Fatalf("unexpected cadence %s", p.Entry.Cadence)
	}
	if p.Entry.Momentum == nil || p.Entry.Momentum.Direction != strategy.Below || p.Entry.Momentum.Threshold != -0.005 {
		t.Fatalf("unexpected momentum gate %+v", p.Entry.Momentum)
	}
	if p.Entry.Filters.Trend == nil || p.Entry.Filters.Trend.Window != 240 {
		t.Fatalf("unexpected trend filter %+v", p.Entry.Filters.Trend)
	}
	if p.Exit.StopTrigger != strategy.TriggerLow || p.Exit.MaxHolding != 6*time.Hour {
		t.Fatalf("unexpected exit rules %+v", p.Exit)
	}
	if p.Exit.RapidDrop == nil || p.Exit.RapidDrop.Window != 5 {
		t.Fatalf("unexpected rapid drop %+v", p.Exit.RapidDrop)
	}
	if len(cfg.Sweep.Grid["trailing_stop_pct"]) != 2 || cfg.Sweep.Workers != 2 {
		t.Fatalf("unexpected sweep %+v", cfg.Sweep)
	}

	// untouched sections keep their defaults
	if cfg.Exchange.Symbol != "BTCUSDT" || cfg.Annualization != 24192 {
		t.Fatalf("defaults lost: %+v %v", cfg.Exchange, cfg.Annualization)
	}

	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	bc, ev, err := cfg.Backtest()
	if err != nil {
		t.Fatalf("Backtest error: %v", err)
	}
	if ev.Name() != Custom || bc.Volatility == nil || bc.Account.Fraction != 0.5 {
		t.Fatalf("unexpected engine config %+v", bc)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Resolve(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Strategy.Preset != "reversal" || cfg.Strategy.Params.Exit.TrailingStopPct != 0.03 {
		t.Fatalf("preset not applied: %+v", cfg.Strategy)
	}
}

func TestApplyPresetFillsVolatility(t *testing.T) {
	cfg := Default()
	cfg.Strategy.Preset = "Adaptive_Vol"
	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if cfg.Account.ReferencePrice != market.PriceClose || cfg.Data.Resample != 15*time.Minute {
		t.Fatalf("preset conventions not applied: %+v %+v", cfg.Account, cfg.Data)
	}
	if cfg.Volatility.Windows["vol_14d"] != 1344 || cfg.Volatility.Weights["vol_14d"] != 0.25 {
		t.Fatalf("preset volatility not applied: %+v", cfg.Volatility)
	}

	cfg = Default()
	cfg.Strategy.Preset = "nope"
	if err := cfg.Resolve(); !errs.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestApplyPresetKeepsExplicitConventions(t *testing.T) {
	cfg := Default()
	cfg.Strategy.Preset = "adaptive_vol"
	cfg.Account.ReferencePrice = market.PriceOpen
	cfg.Data.Resample = time.Hour
	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if cfg.Account.ReferencePrice != market.PriceOpen {
		t.Fatalf("explicit reference price replaced with %q", cfg.Account.ReferencePrice)
	}
	if cfg.Data.Resample != time.Hour {
		t.Fatalf("explicit resample replaced with %s", cfg.Data.Resample)
	}

	custom := Default()
	custom.Strategy.Preset = Custom
	if err := custom.Resolve(); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if custom.Account.ReferencePrice != DefaultReferencePrice || custom.Data.Resample != 0 {
		t.Fatalf("unexpected custom conventions %q %s", custom.Account.ReferencePrice, custom.Data.Resample)
	}
}

func TestLoadedReferencePriceSurvivesPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := "account:\n  reference_price: open\nstrategy:\n  preset: vol_forecast\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if cfg.Account.ReferencePrice != market.PriceOpen {
		t.Fatalf("yaml reference price replaced with %q", cfg.Account.ReferencePrice)
	}
	if cfg.Data.Resample != 15*time.Minute {
		t.Fatalf("unset resample should come from the preset, got %s", cfg.Data.Resample)
	}
}

func TestWeightsFileOverridesPreset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.csv")
	body := "window,weight\nvol_1d,0.1\nvol_3d,0.2\nvol_9d,0.3\nvol_14d,0.4\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}
	cfg := Default()
	cfg.Strategy.Preset = "vol_forecast"
	cfg.Volatility.WeightsFile = path
	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if cfg.Volatility.Weights["vol_14d"] != 0.4 {
		t.Fatalf("weights file not loaded: %+v", cfg.Volatility.Weights)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"log level":     func(c *Config) { c.App.LogLevel = "loud" },
		"balance":       func(c *Config) { c.Account.StartingBalance = 0 },
		"fee":           func(c *Config) { c.Account.ExitFeeRate = -0.01 },
		"reference":     func(c *Config) { c.Account.ReferencePrice = "vwap" },
		"annualization": func(c *Config) { c.Annualization = 0 },
		"workers":       func(c *Config) { c.Sweep.Workers = 0 },
		"top fraction":  func(c *Config) { c.Sweep.TopFraction = 2 },
		"page limit":    func(c *Config) { c.Exchange.PageLimit = 5000 },
		"weights": func(c *Config) {
			c.Volatility.Windows = map[string]int{"v": 10}
			c.Volatility.Weights = map[string]float64{"v": -0.5}
		},
		"params": func(c *Config) { c.Strategy.Params.Exit.TrailingStopPct = 2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			if err := cfg.ApplyPreset(); err != nil {
				t.Fatalf("ApplyPreset error: %v", err)
			}
			mutate(cfg)
			if err := cfg.Validate(); !errs.IsConfiguration(err) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyPreset(); err != nil {
		t.Fatalf("ApplyPreset error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if loaded.Strategy.Params.Entry.Cadence != 15*time.Minute || loaded.Exchange.Timeout != 10*time.Second {
		t.Fatalf("durations lost in round trip: %+v", loaded.Strategy.Params.Entry)
	}
	if err := Save(path, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvLogLevel:   "debug",
		EnvDataPath:   "/tmp/bars.csv",
		EnvBinanceURL: "http://localhost:9999",
		EnvWorkers:    "eight",
		EnvDatabase:   "runs.db",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })
	if cfg.App.LogLevel != "debug" || cfg.Data.Path != "/tmp/bars.csv" || cfg.Report.Database != "runs.db" {
		t.Fatalf("overrides not applied: %+v %+v %+v", cfg.App, cfg.Data, cfg.Report)
	}
	if cfg.Exchange.BaseURL != "http://localhost:9999" {
		t.Fatalf("unexpected base url %s", cfg.Exchange.BaseURL)
	}
	if cfg.Sweep.Workers != 4 {
		t.Fatalf("unparsable worker override should be ignored, got %d", cfg.Sweep.Workers)
	}
	if cfg.App.MetricsAddr != "" {
		t.Fatalf("unset variable overrode metrics addr: %q", cfg.App.MetricsAddr)
	}
}
