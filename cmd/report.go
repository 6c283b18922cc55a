package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/period"
	"github.com/salasarservices/pulse/internal/report"
)

var reportMonth string

var reportCmd = &cobra.Command{
	Use:   "report [section...]",
	Short: "Build the monthly marketing report",
	Long: `Build the report for a month, comparing it with the month before.

Each section fetches its cards and tables concurrently. A metric that cannot
be fetched is shown as 0 and listed as a warning; an expired or missing
Google authorization aborts the report.

Sections (default: all): website, search, youtube, facebook, instagram, linkedin`,
	Example: `  pulse report
  pulse report --month "July 2025"
  pulse report search youtube --month 2025-07
  pulse report --format json | jq '.data.sections[0].cards'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		rep, err := deps.Assembler.Build(cmd.Context(), report.Request{
			Month:    reportMonth,
			Sections: args,
			Today:    time.Now(),
		})
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), reportResult("report", rep, time.Since(start)), deps.Config.Format)
	},
}

var monthsBack int

var monthsCmd = &cobra.Command{
	Use:   "months",
	Short: "List the months a report can be built for",
	Example: `  pulse months
  pulse months --back 24 --format csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if monthsBack <= 0 {
			return fmt.Errorf("--back must be positive")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts := period.MonthOptions(time.Now(), monthsBack)
		return emit(cmd.OutOrStdout(), &model.Result{
			Kind:        model.KindMonths,
			GeneratedAt: time.Now(),
			Command:     "months",
			Data:        opts,
			Stats:       model.ResultStats{Items: len(opts)},
		}, cfg.Format)
	},
}

// reportResult wraps a report in a Result envelope.
func reportResult(command string, rep *model.Report, elapsed time.Duration) *model.Result {
	return &model.Result{
		Kind:        model.KindReport,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        rep,
		Warnings:    rep.Warnings,
		Stats: model.ResultStats{
			CacheHit:   rep.Fetches > 0 && rep.CacheHits == rep.Fetches,
			CacheHits:  rep.CacheHits,
			DurationMs: elapsed.Milliseconds(),
			Items:      len(rep.Flatten()),
		},
	}
}

func init() {
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(monthsCmd)

	reportCmd.Flags().StringVar(&reportMonth, "month", "",
		`report month, e.g. "July 2025" or 2025-07 (default: current month)`)
	monthsCmd.Flags().IntVar(&monthsBack, "back", 12, "number of months to list, ending with the current one")

	reportCmd.ValidArgsFunction = completeSections(false)
	_ = reportCmd.RegisterFlagCompletionFunc("month", completeMonths)
}
