// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"longbtc-go/internal/forecast"
	"longbtc-go/internal/ledger"
	"longbtc-go/internal/market"
	"longbtc-go/internal/performance"
	"longbtc-go/internal/strategy"
)

// App captures process-wide runtime settings such as name, metrics, and logging.
type App struct {
	Name        string `yaml:"name"`
	LogLevel    string `yaml:"log_level"`
	PrettyLogs  bool   `yaml:"pretty_logs"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Data points at the bar file and the interval bars are resampled to before simulation.
type Data struct {
	Path     string        `yaml:"path"`
	Resample time.Duration `yaml:"resample,omitempty"`
}

// Exchange configures the Binance kline downloader.
type Exchange struct {
	BaseURL           string        `yaml:"base_url"`
	Symbol            string        `yaml:"symbol"`
	Interval          string        `yaml:"interval"`
	PageLimit         int           `yaml:"page_limit"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
}

// Account holds balance, fees, sizing and fill conventions.
type Account struct {
	StartingBalance float64           `yaml:"starting_balance"`
	EntryFeeRate    float64           `yaml:"entry_fee_rate"`
	ExitFeeRate     float64           `yaml:"exit_fee_rate"`
	Sizing          ledger.SizingMode `yaml:"sizing"`
	Fraction        float64           `yaml:"fraction,omitempty"`
	ReferencePrice  market.PriceRef   `yaml:"reference_price,omitempty"`
	ForceCloseAtEnd bool              `yaml:"force_close_at_end"`
}

// Ledger converts the account section to the ledger's setup.
func (a Account) Ledger() ledger.Config {
	return ledger.Config{
		StartingBalance: a.StartingBalance,
		EntryFeeRate:    a.EntryFeeRate,
		ExitFeeRate:     a.ExitFeeRate,
		Sizing:          a.Sizing,
		Fraction:        a.Fraction,
	}
}

// Volatility configures the forecaster windows and weights.
type Volatility struct {
	Windows     map[string]int     `yaml:"rolling_windows,omitempty"`
	Weights     map[string]float64 `yaml:"weights,omitempty"`
	WeightsFile string             `yaml:"weights_file,omitempty"`
	Policy      forecast.Policy    `yaml:"warmup_policy"`
}

// Strategy selects a preset or, with preset "custom", the explicit params.
type Strategy struct {
	Preset string          `yaml:"preset"`
	Params strategy.Params `yaml:"params,omitempty"`
}

// Report lists optional output sinks; empty paths are skipped.
type Report struct {
	TradesCSV   string `yaml:"trades_csv,omitempty"`
	TradesJSONL string `yaml:"trades_jsonl,omitempty"`
	Database    string `yaml:"database,omitempty"`
}

// Sweep configures the parameter grid search.
type Sweep struct {
	Workers     int                  `yaml:"workers"`
	MinTrades   int                  `yaml:"min_trades"`
	TopFraction float64              `yaml:"top_fraction"`
	Grid        map[string][]float64 `yaml:"grid,omitempty"`
	ResultsCSV  string               `yaml:"results_csv,omitempty"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App           App        `yaml:"app"`
	Data          Data       `yaml:"data"`
	Exchange      Exchange   `yaml:"exchange"`
	Account       Account    `yaml:"account"`
	Volatility    Volatility `yaml:"volatility"`
	Strategy      Strategy   `yaml:"strategy"`
	Report        Report     `yaml:"report"`
	Sweep         Sweep      `yaml:"sweep"`
	Annualization float64    `yaml:"annualization"`
}

// Default is the documented baseline a YAML file overlays.
func Default() *Config {
	return &Config{
		App: App{Name: "longbtc", LogLevel: "info"},
		Data: Data{Path: "data/btc_1min.csv"},
		Exchange: Exchange{
			BaseURL:           "https://api.binance.com",
			Symbol:            "BTCUSDT",
			Interval:          "1m",
			PageLimit:         1000,
			RequestsPerSecond: 2.5,
			Timeout:           10 * time.Second,
		},
		Account: Account{
			StartingBalance: 10000,
			EntryFeeRate:    0.0025,
			ExitFeeRate:     0.0040,
			Sizing:          ledger.SizingAllIn,
		},
		Volatility:    Volatility{Policy: forecast.PolicyZero},
		Strategy:      Strategy{Preset: "reversal"},
		Sweep:         Sweep{Workers: 4, MinTrades: 2, TopFraction: 0.1},
		Annualization: performance.DefaultAnnualization,
	}
}

// Load reads a YAML file from disk over the defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
