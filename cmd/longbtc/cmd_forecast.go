package main

import (
	"io"

	"github.com/spf13/cobra"

	"longbtc-go/internal/backtest"
	"longbtc-go/internal/report"
)

var (
	forecastPreset string
	forecastData   string
	forecastOut    string
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Export the volatility forecast and adaptive threshold series",
	Long: `Compute the weighted volatility forecast a volatility-gated strategy sees,
without trading, and write Datetime,forecast_vol,adaptive_thresh rows.

Examples:
  longbtc forecast --preset adaptive_vol --out out/vol_forecast.csv
  longbtc forecast --preset vol_forecast`,
	RunE: runForecast,
}

func init() {
	rootCmd.AddCommand(forecastCmd)
	f := forecastCmd.Flags()
	f.StringVar(&forecastPreset, "preset", "adaptive_vol", "Volatility-gated preset")
	f.StringVar(&forecastData, "data", "", "Bar CSV path (overrides data.path)")
	f.StringVar(&forecastOut, "out", "", "Output CSV (stdout when empty)")
}

func runForecast(cmd *cobra.Command, args []string) error {
	if forecastData != "" {
		cfg.Data.Path = forecastData
	}
	if err := resolve(forecastPreset); err != nil {
		return err
	}
	series, err := loadSeries(cfg.Data.Path)
	if err != nil {
		return err
	}
	bc, ev, err := cfg.Backtest()
	if err != nil {
		return err
	}
	eng, err := backtest.New(bc, ev, backtest.WithLogger(log))
	if err != nil {
		return err
	}
	points, err := eng.Signals(series)
	if err != nil {
		return err
	}
	withThreshold := ev.Inputs().Threshold != nil
	write := func(w io.Writer) error { return report.WriteSignals(w, points, withThreshold) }
	if forecastOut == "" {
		return write(cmd.OutOrStdout())
	}
	if err := report.WriteFile(forecastOut, write); err != nil {
		return err
	}
	log.Info().Str("path", forecastOut).Int("bars", len(points)).Msg("forecast written")
	return nil
}
