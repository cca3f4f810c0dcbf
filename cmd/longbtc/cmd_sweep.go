package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"longbtc-go/internal/report"
	"longbtc-go/internal/sweep"
)

var (
	sweepPreset     string
	sweepData       string
	sweepGrid       []string
	sweepWorkers    int
	sweepMinTrades  int
	sweepTop        float64
	sweepResultsCSV string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Grid-search strategy parameters and rank the results",
	Long: `Expand a parameter grid over a preset, backtest every combination in
parallel and print the best runs by total return.

Axes: ` + strings.Join(sweep.Axes(), ", ") + `

Examples:
  longbtc sweep --preset reversal --grid momentum_threshold=-0.002,-0.004,-0.008 --grid trailing_stop_pct=0.02,0.03
  longbtc sweep --preset vol_forecast --grid vol_threshold=0.0004,0.0005 --results-csv out/sweep.csv`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	f := sweepCmd.Flags()
	f.StringVar(&sweepPreset, "preset", "", "Base strategy preset")
	f.StringVar(&sweepData, "data", "", "Bar CSV path (overrides data.path)")
	f.StringArrayVar(&sweepGrid, "grid", nil, "Axis values as name=v1,v2,... (repeatable; replaces sweep.grid)")
	f.IntVar(&sweepWorkers, "workers", 0, "Concurrent backtests (overrides sweep.workers)")
	f.IntVar(&sweepMinTrades, "min-trades", -1, "Rank only runs with more trades than this")
	f.Float64Var(&sweepTop, "top", 0, "Fraction of qualifying runs to print")
	f.StringVar(&sweepResultsCSV, "results-csv", "", "Write every case to this CSV")
}

// parseGrid reads name=v1,v2 axis flags.
func parseGrid(flags []string) (map[string][]float64, error) {
	grid := make(map[string][]float64, len(flags))
	for _, raw := range flags {
		name, list, ok := strings.Cut(raw, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("grid %q: want name=v1,v2", raw)
		}
		if _, dup := grid[name]; dup {
			return nil, fmt.Errorf("grid axis %s given twice", name)
		}
		for _, part := range strings.Split(list, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			v, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return nil, fmt.Errorf("grid %s: %w", name, err)
			}
			grid[name] = append(grid[name], v)
		}
		if len(grid[name]) == 0 {
			return nil, fmt.Errorf("grid %s: no values", name)
		}
	}
	return grid, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	if sweepData != "" {
		cfg.Data.Path = sweepData
	}
	if len(sweepGrid) > 0 {
		grid, err := parseGrid(sweepGrid)
		if err != nil {
			return err
		}
		cfg.Sweep.Grid = grid
	}
	if sweepWorkers > 0 {
		cfg.Sweep.Workers = sweepWorkers
	}
	if sweepMinTrades >= 0 {
		cfg.Sweep.MinTrades = sweepMinTrades
	}
	if sweepTop > 0 {
		cfg.Sweep.TopFraction = sweepTop
	}
	if sweepResultsCSV != "" {
		cfg.Sweep.ResultsCSV = sweepResultsCSV
	}
	if err := resolve(sweepPreset); err != nil {
		return err
	}

	cases, err := sweep.Expand(cfg.Strategy.Preset, cfg.Strategy.Params, cfg.Sweep.Grid)
	if err != nil {
		return err
	}
	series, err := loadSeries(cfg.Data.Path)
	if err != nil {
		return err
	}
	base, _, err := cfg.Backtest()
	if err != nil {
		return err
	}
	log.Info().Int("cases", len(cases)).Int("workers", cfg.Sweep.Workers).Msg("sweep started")
	runner := sweep.Runner{Base: base, Workers: cfg.Sweep.Workers, Log: log}
	outcomes, err := runner.Run(cmd.Context(), series, cases)
	if err != nil {
		return err
	}

	if cfg.Sweep.ResultsCSV != "" {
		if err := report.WriteFile(cfg.Sweep.ResultsCSV, func(w io.Writer) error { return report.WriteOutcomes(w, outcomes) }); err != nil {
			return err
		}
		log.Info().Str("path", cfg.Sweep.ResultsCSV).Msg("sweep results written")
	}

	ranked := sweep.Rank(outcomes, cfg.Sweep.MinTrades, cfg.Sweep.TopFraction)
	out := cmd.OutOrStdout()
	if len(ranked) == 0 {
		fmt.Fprintf(out, "No run had more than %d trades.\n", cfg.Sweep.MinTrades)
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tCASE\tTRADES\tWIN RATE\tRETURN\tSHARPE\tMAX DD")
	for i, o := range ranked {
		s := o.Summary
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.1f%%\t%.2f%%\t%s\t%s\n", i+1, o.Case.Name, s.Trades, s.WinRate*100,
			s.TotalReturn*100, orNA(s.Sharpe, "%.2f", 1), orNA(s.MaxDrawdown, "%.2f%%", 100))
	}
	return tw.Flush()
}

func orNA(v *float64, format string, scale float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v*scale)
}
