// Package report renders runs as CSV files and a plain-text summary.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"longbtc-go/internal/backtest"
	"longbtc-go/internal/ledger"
	"longbtc-go/internal/market"
	"longbtc-go/internal/sweep"
)

const timeLayout = "2006-01-02 15:04:05"

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func money(v float64) string { return fixed(v, 2) }

func percent(v float64) string { return decimal.NewFromFloat(v).Shift(2).StringFixed(2) + "%" }

var tradeHeader = []string{
	"entry_time", "entry_price", "exit_time", "exit_price", "reason",
	"notional", "pnl", "pnl_pct", "entry_fee", "exit_fee", "net_pnl",
	"holding_minutes", "bars", "equity_after",
}

// WriteTrades writes one row per closed trade. Money columns are rounded to
// cents and returns to six places.
func WriteTrades(w io.Writer, trades []ledger.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}
	for _, tr := range trades {
		row := []string{
			tr.EntryTime.UTC().Format(timeLayout),
			money(tr.EntryPrice),
			tr.ExitTime.UTC().Format(timeLayout),
			money(tr.ExitPrice),
			string(tr.Reason),
			money(tr.Notional),
			money(tr.PnL),
			fixed(tr.PnLPct, 6),
			money(tr.EntryFee),
			money(tr.ExitFee),
			money(tr.NetPnL),
			strconv.FormatFloat(tr.Holding.Minutes(), 'f', -1, 64),
			strconv.Itoa(tr.Bars),
			money(tr.EquityAfter),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteOutcomes writes one row per sweep case with a column per grid axis.
func WriteOutcomes(w io.Writer, outcomes []sweep.Outcome) error {
	axisSet := map[string]struct{}{}
	for _, o := range outcomes {
		for name := range o.Case.Values {
			axisSet[name] = struct{}{}
		}
	}
	axes := make([]string, 0, len(axisSet))
	for name := range axisSet {
		axes = append(axes, name)
	}
	sort.Strings(axes)

	cw := csv.NewWriter(w)
	header := append([]string{"name"}, axes...)
	header = append(header, "status", "trades", "win_rate", "total_return", "final_equity", "sharpe", "max_drawdown", "total_fees")
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, o := range outcomes {
		row := []string{o.Case.Name}
		for _, name := range axes {
			if v, ok := o.Case.Values[name]; ok {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		s := o.Summary
		row = append(row,
			string(o.Status),
			strconv.Itoa(s.Trades),
			fixed(s.WinRate, 4),
			fixed(s.TotalReturn, 6),
			money(s.FinalEquity),
			optional(s.Sharpe, 4),
			optional(s.MaxDrawdown, 6),
			money(s.TotalFees),
		)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func optional(v *float64, places int32) string {
	if v == nil {
		return ""
	}
	return fixed(*v, places)
}

// WriteSignals writes the forecast series as Datetime,forecast_vol,adaptive_thresh.
// Bars without a forecast are skipped, and so are bars without a threshold
// when withThreshold is set; otherwise the threshold column is left empty.
func WriteSignals(w io.Writer, points []backtest.Point, withThreshold bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Datetime", "forecast_vol", "adaptive_thresh"}); err != nil {
		return err
	}
	for _, p := range points {
		if !p.Forecast.Valid || (withThreshold && !p.Threshold.Valid) {
			continue
		}
		thresh := ""
		if p.Threshold.Valid {
			thresh = strconv.FormatFloat(p.Threshold.V, 'g', -1, 64)
		}
		row := []string{p.Time.UTC().Format(timeLayout), strconv.FormatFloat(p.Forecast.V, 'g', -1, 64), thresh}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile creates path, and its directory when missing, and hands it to write.
func WriteFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

// WriteSummary prints the results, benchmark and fee sections of a run.
func WriteSummary(w io.Writer, res backtest.Result, series *market.Series) error {
	s := res.Summary
	p := &printer{w: w}
	p.line("--- %s Results ---", res.Strategy)
	if res.Status != backtest.StatusOK {
		p.line("Status: %s (missing %v)", res.Status, res.Missing)
	}
	p.line("Final Balance: $%s", money(s.FinalEquity))
	p.line("Total Return: %s", percent(s.TotalReturn))
	p.line("Total Trades: %d", s.Trades)
	p.line("Win Rate: %s", percent(s.WinRate))
	if s.Sharpe != nil {
		p.line("Sharpe Ratio: %s", fixed(*s.Sharpe, 2))
	} else {
		p.line("Sharpe Ratio: n/a")
	}
	if s.MaxDrawdown != nil {
		p.line("Max Drawdown: %s", percent(*s.MaxDrawdown))
	} else {
		p.line("Max Drawdown: n/a")
	}
	if s.Trades > 0 {
		p.line("Average Holding: %s", s.AvgHolding.Round(time.Minute))
	}
	for _, rc := range s.SortedReasons() {
		p.line("  %s: %d", rc.Reason, rc.Count)
	}
	if res.Open != nil {
		p.line("Open Position: entered %s at $%s, unrealized $%s",
			res.Open.EntryTime.UTC().Format(timeLayout), money(res.Open.EntryPrice), money(res.Unrealized))
	}

	if series != nil && series.Len() > 0 {
		first, last := series.At(0), series.At(series.Len()-1)
		p.line("")
		p.line("--- Buy-and-Hold Benchmark ---")
		p.line("Start Price: $%s", money(first.Close))
		p.line("End Price: $%s", money(last.Close))
		if s.Benchmark != nil {
			p.line("Buy-and-Hold Return: %s", percent(*s.Benchmark))
		}
	}

	p.line("")
	p.line("--- Fee Analysis ---")
	p.line("Total Entry Fees Paid: $%s", money(s.EntryFees))
	p.line("Total Exit Fees Paid: $%s", money(s.ExitFees))
	p.line("Total Fees Paid: $%s", money(s.TotalFees))
	p.line("Total Trade PnL (excluding fees): $%s", money(s.GrossPnL))
	if s.Trades > 0 {
		p.line("Fees Consumed: %s of Total Movement", percent(s.FeeImpact))
	} else {
		p.line("No trades to calculate fee impact.")
	}

	if res.Bars > 0 {
		p.line("")
		p.line("--- Dataset Time Range ---")
		p.line("Start Date: %s", res.Start.UTC().Format(timeLayout))
		p.line("End Date: %s", res.End.UTC().Format(timeLayout))
	}
	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}
