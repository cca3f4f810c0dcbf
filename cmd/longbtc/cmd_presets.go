package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"longbtc-go/internal/strategy"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the built-in strategy presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tINTERVAL\tENTRY PRICE\tDESCRIPTION")
		for _, name := range strategy.PresetNames() {
			p, _ := strategy.LookupPreset(name)
			interval := "1m"
			if p.Interval > 0 {
				interval = p.Interval.String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, interval, p.Reference, p.Description)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}
