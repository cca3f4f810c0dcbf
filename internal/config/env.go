package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override file values.
const (
	EnvConfig      = "LONGBTC_CONFIG"
	EnvLogLevel    = "LONGBTC_LOG_LEVEL"
	EnvMetricsAddr = "LONGBTC_METRICS_ADDR"
	EnvDataPath    = "LONGBTC_DATA"
	EnvDatabase    = "LONGBTC_DB"
	EnvWorkers     = "LONGBTC_WORKERS"
	EnvBinanceURL  = "BINANCE_BASE_URL"
)

// LoadDotEnv reads .env from the working directory if it exists. Variables
// already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ApplyEnv overlays environment overrides onto c. Unparsable numbers are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.App.LogLevel = v
	}
	if v := getenv(EnvMetricsAddr); v != "" {
		c.App.MetricsAddr = v
	}
	if v := getenv(EnvDataPath); v != "" {
		c.Data.Path = v
	}
	if v := getenv(EnvDatabase); v != "" {
		c.Report.Database = v
	}
	if v := getenv(EnvBinanceURL); v != "" {
		c.Exchange.BaseURL = v
	}
	if v := getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sweep.Workers = n
		}
	}
}
