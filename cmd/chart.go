package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/salasarservices/pulse/internal/chart"
	"github.com/salasarservices/pulse/internal/report"
)

var (
	chartMonth string
	chartWidth  int
	chartHeight int
	chartMax    int
)

var chartCmd = &cobra.Command{
	Use:   "chart <section>",
	Short: "Draw a section as terminal charts",
	Long: `Build one report section and draw it in the terminal: the percentage change
of every card around a zero line, each table as paired bars of the current (█)
and previous (░) period, then a line plot of each daily trend.`,
	Example: `  pulse chart website --month "July 2025"
  pulse chart youtube --width 100 --height 8`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		rep, err := deps.Assembler.Build(cmd.Context(), report.Request{
			Month:    chartMonth,
			Sections: args,
			Today:    time.Now(),
		})
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		opts := chart.Options{Width: chartWidth, MaxBars: chartMax}
		for _, s := range rep.Sections {
			fmt.Fprintf(w, "%s  (%s vs %s)\n\n", s.Title, s.Periods.Current, s.Periods.Previous)
			if len(s.Cards) > 0 {
				if err := chart.Changes(w, "Cards", s.Cards, opts); err != nil {
					return err
				}
				fmt.Fprintln(w)
			}
			for _, t := range s.Tables {
				if len(t.Rows) == 0 {
					fmt.Fprintf(w, "%s\n  No data for this period.\n\n", t.Title)
					continue
				}
				if err := chart.Bars(w, t.Title, t.Rows, opts); err != nil {
					return err
				}
				fmt.Fprintln(w)
			}
			for _, tr := range s.Trends {
				if err := chart.Plot(w, tr, chart.PlotOptions{Width: chartWidth, Height: chartHeight}); err != nil {
					fmt.Fprintf(w, "%s\n  No trend data for %s.\n\n", tr.Title, tr.Period)
					continue
				}
				fmt.Fprintln(w)
			}
		}
		if !globalFlags.Quiet {
			for _, warn := range rep.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠  %s\n", warn)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chartCmd)

	chartCmd.Flags().StringVar(&chartMonth, "month", "", "report month (default: current month)")
	chartCmd.Flags().IntVar(&chartWidth, "width", 0, "chart width in columns (default: $COLUMNS or 80)")
	chartCmd.Flags().IntVar(&chartHeight, "height", 0, "trend plot height in rows (default: 12)")
	chartCmd.Flags().IntVar(&chartMax, "max", 0, "draw at most this many bars per chart")

	chartCmd.ValidArgsFunction = completeSections(true)
	_ = chartCmd.RegisterFlagCompletionFunc("month", completeMonths)
}
