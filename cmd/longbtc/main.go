// Command longbtc backtests long-only BTC strategies over minute bars.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"longbtc-go/internal/config"
	"longbtc-go/internal/metrics"
	"longbtc-go/internal/util"
)

const defaultConfigPath = "configs/longbtc.yaml"

var (
	configPath  string
	logLevel    string
	prettyLogs  bool
	metricsAddr string

	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "longbtc",
	Short: "Backtest long-only BTC strategies on minute bars",
	Long: `longbtc replays historical BTC/USDT bars through rule-based long-only
strategies, with fee-aware accounting, volatility forecasting and grid sweeps.

Configuration is read from YAML (see 'longbtc config init'), then overridden
by LONGBTC_* environment variables (a .env file is honoured), then by flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv()
		path := configPath
		if !cmd.Flags().Changed("config") {
			if env := os.Getenv(config.EnvConfig); env != "" {
				path = env
			}
		}
		loaded, err := loadConfig(path, cmd.Flags().Changed("config") || os.Getenv(config.EnvConfig) != "")
		if err != nil {
			return err
		}
		loaded.ApplyEnv(os.Getenv)
		if cmd.Flags().Changed("log-level") {
			loaded.App.LogLevel = logLevel
		}
		if cmd.Flags().Changed("pretty") {
			loaded.App.PrettyLogs = prettyLogs
		}
		if cmd.Flags().Changed("metrics-addr") {
			loaded.App.MetricsAddr = metricsAddr
		}
		cfg = loaded
		log = util.NewLoggerTo(os.Stderr, cfg.App.LogLevel, cfg.App.PrettyLogs)
		if srv := metrics.Serve(cfg.App.MetricsAddr); srv != nil {
			log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
		}
		return nil
	},
}

// loadConfig falls back to defaults when the default path is absent and no
// path was asked for explicitly.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		return config.Default(), nil
	}
	return config.Load(path)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", defaultConfigPath, "Path to the YAML configuration file (env "+config.EnvConfig+")")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.BoolVar(&prettyLogs, "pretty", false, "Human-readable console logs")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9100")
}

func main() {
	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
