package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"longbtc-go/internal/report"
	"longbtc-go/internal/store"
)

var runsDatabase string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Browse backtests recorded with --db",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		runs, err := st.ListRuns(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTRATEGY\tSTATUS\tBARS\tTRADES\tRETURN\tRECORDED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.2f%%\t%s\n", r.ID, r.Strategy, r.Status, r.Bars, r.Trades,
				r.TotalReturn*100, r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

var runsTradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "Print the trade log of a recorded run as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("run id: %w", err)
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if _, err := st.GetRun(cmd.Context(), id); err != nil {
			return err
		}
		trades, err := st.Trades(cmd.Context(), id)
		if err != nil {
			return err
		}
		return report.WriteTrades(cmd.OutOrStdout(), trades)
	},
}

func openStore() (*store.Store, error) {
	path := cfg.Report.Database
	if runsDatabase != "" {
		path = runsDatabase
	}
	if path == "" {
		return nil, fmt.Errorf("no database configured (set report.database or --db)")
	}
	return store.Open(path)
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsTradesCmd)
	runsCmd.PersistentFlags().StringVar(&runsDatabase, "db", "", "SQLite database (overrides report.database)")
}
