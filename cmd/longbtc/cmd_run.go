package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"longbtc-go/internal/backtest"
	"longbtc-go/internal/ledger"
	"longbtc-go/internal/report"
	"longbtc-go/internal/store"
)

var (
	runPreset      string
	runData        string
	runTradesCSV   string
	runTradesJSONL string
	runDatabase    string
	runForceClose  bool
	runJSON        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Backtest one strategy over the configured bars",
	Long: `Run a single backtest and print the results, benchmark and fee analysis.

Examples:
  longbtc run --preset reversal --data data/btc_1min.csv
  longbtc run --preset vol_forecast --trades-csv out/trades.csv
  longbtc run --config configs/custom.yaml --db out/runs.db --json`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(runCmd)
	f := runCmd.Flags()
	f.StringVar(&runPreset, "preset", "", "Strategy preset, or custom to use strategy.params")
	f.StringVar(&runData, "data", "", "Bar CSV path (overrides data.path)")
	f.StringVar(&runTradesCSV, "trades-csv", "", "Write the trade log as CSV")
	f.StringVar(&runTradesJSONL, "trades-jsonl", "", "Stream closed trades as JSON lines")
	f.StringVar(&runDatabase, "db", "", "Record the run in this SQLite database")
	f.BoolVar(&runForceClose, "force-close", false, "Close any open position on the last bar")
	f.BoolVar(&runJSON, "json", false, "Print the full result as JSON instead of text")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	if runData != "" {
		cfg.Data.Path = runData
	}
	if runTradesCSV != "" {
		cfg.Report.TradesCSV = runTradesCSV
	}
	if runTradesJSONL != "" {
		cfg.Report.TradesJSONL = runTradesJSONL
	}
	if runDatabase != "" {
		cfg.Report.Database = runDatabase
	}
	if cmd.Flags().Changed("force-close") {
		cfg.Account.ForceCloseAtEnd = runForceClose
	}
	if err := resolve(runPreset); err != nil {
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
	opts := []backtest.Option{backtest.WithLogger(log)}
	var rec *ledger.JSONLRecorder
	if cfg.Report.TradesJSONL != "" {
		if rec, err = ledger.NewJSONLRecorder(cfg.Report.TradesJSONL); err != nil {
			return err
		}
		opts = append(opts, backtest.WithRecorder(rec))
	}
	eng, err := backtest.New(bc, ev, opts...)
	if err != nil {
		return err
	}
	res, err := eng.Run(series)
	if rec != nil {
		if cerr := rec.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("trade recorder: %w", cerr)
		}
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else if err := report.WriteSummary(out, res, series); err != nil {
		return err
	}

	if cfg.Report.TradesCSV != "" {
		if err := report.WriteFile(cfg.Report.TradesCSV, func(w io.Writer) error { return report.WriteTrades(w, res.Trades) }); err != nil {
			return err
		}
		log.Info().Str("path", cfg.Report.TradesCSV).Int("trades", len(res.Trades)).Msg("trade log written")
	}
	if cfg.Report.Database != "" {
		return saveRun(cmd.Context(), series.Fingerprint(), res)
	}
	return nil
}

type runKey struct {
	Strategy   any     `json:"strategy"`
	Account    any     `json:"account"`
	Volatility any     `json:"volatility"`
	Resample   string  `json:"resample"`
	Annual     float64 `json:"annualization"`
}

func saveRun(ctx context.Context, fingerprint string, res backtest.Result) error {
	key, err := json.Marshal(runKey{
		Strategy:   cfg.Strategy,
		Account:    cfg.Account,
		Volatility: cfg.Volatility,
		Resample:   cfg.Data.Resample.String(),
		Annual:     cfg.Annualization,
	})
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Report.Database)
	if err != nil {
		return err
	}
	defer st.Close()
	id := store.RunID(key, fingerprint)
	if err := st.SaveRun(ctx, id, key, fingerprint, res); err != nil {
		return err
	}
	log.Info().Str("run_id", id.String()).Str("db", cfg.Report.Database).Msg("run recorded")
	return nil
}
