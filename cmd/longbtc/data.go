package main

import (
	"fmt"

	"longbtc-go/internal/market"
	"longbtc-go/internal/marketdata"
)

// loadSeries reads the configured bar file and resamples it when the
// strategy runs on a coarser interval.
func loadSeries(path string) (*market.Series, error) {
	series, stats, err := marketdata.LoadCSV(path)
	if err != nil {
		return nil, err
	}
	ev := log.Info().Str("path", path).Int("rows", stats.Rows).Int("kept", stats.Kept)
	if stats.Dropped > 0 || stats.Duplicates > 0 {
		ev = ev.Int("dropped", stats.Dropped).Int("duplicates", stats.Duplicates)
	}
	ev.Msg("bars loaded")

	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Data.Resample > 0 {
		series, err = marketdata.Resample(series, cfg.Data.Resample)
		if err != nil {
			return nil, err
		}
		log.Info().Dur("interval", cfg.Data.Resample).Int("bars", series.Len()).Msg("bars resampled")
	}
	return series, nil
}

// resolve applies --preset and the preset defaults, then validates.
func resolve(preset string) error {
	if preset != "" {
		cfg.Strategy.Preset = preset
	}
	return cfg.Resolve()
}
