package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/salasarservices/pulse/internal/leads"
	"github.com/salasarservices/pulse/internal/model"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Read and manage the lead store",
	Long: `Commands for the MongoDB lead store.

Leads are read from every document of the leads collection. Dates are shown
as "Month Year" and each row is colored by its lead status in HTML output.`,
}

// ─── leads list ───────────────────────────────────────────────────────────────

var leadsMonth string

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, optionally for one month",
	Example: `  pulse leads list
  pulse leads list --month "July 2025" --format html --out leads.html`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		deps, err := buildDeps(ctx)
		if err != nil {
			return err
		}
		defer deps.Close()

		ls, err := deps.Leads(ctx)
		if err != nil {
			return err
		}
		start := time.Now()
		all, err := leads.Load(ctx, ls)
		if err != nil {
			return err
		}
		if leadsMonth != "" {
			if all, err = leads.FilterMonth(all, leadsMonth); err != nil {
				return err
			}
		}
		return emit(cmd.OutOrStdout(), &model.Result{
			Kind:        model.KindLeads,
			GeneratedAt: time.Now(),
			Command:     "leads list",
			Data:        all,
			Stats:       model.ResultStats{Items: len(all), DurationMs: time.Since(start).Milliseconds()},
		}, deps.Config.Format)
	},
}

// ─── leads summary ────────────────────────────────────────────────────────────

var leadsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count leads by status and total the brokerage received",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		deps, err := buildDeps(ctx)
		if err != nil {
			return err
		}
		defer deps.Close()

		ls, err := deps.Leads(ctx)
		if err != nil {
			return err
		}
		all, err := leads.Load(ctx, ls)
		if err != nil {
			return err
		}
		if leadsMonth != "" {
			if all, err = leads.FilterMonth(all, leadsMonth); err != nil {
				return err
			}
		}
		return emit(cmd.OutOrStdout(), &model.Result{
			Kind:        model.KindLeadSummary,
			GeneratedAt: time.Now(),
			Command:     "leads summary",
			Data:        leads.Summarize(all),
			Stats:       model.ResultStats{Items: len(all)},
		}, deps.Config.Format)
	},
}

// ─── leads flush ──────────────────────────────────────────────────────────────

var leadsFlushYes bool

var leadsFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Delete every document in every collection of the lead database",
	Long: `Flush deletes every document from every collection in the configured
lead database, not only the leads collection. Collections themselves and
their indexes are kept. This cannot be undone.`,
	Example: `  pulse leads flush --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !leadsFlushYes {
			return fmt.Errorf("flush deletes all lead data; repeat with --yes to confirm")
		}
		ctx := cmd.Context()
		deps, err := buildDeps(ctx)
		if err != nil {
			return err
		}
		defer deps.Close()

		ls, err := deps.Leads(ctx)
		if err != nil {
			return err
		}
		res, err := ls.Flush(ctx)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), &model.Result{
			Kind:        model.KindFlush,
			GeneratedAt: time.Now(),
			Command:     "leads flush",
			Data:        res,
			Stats:       model.ResultStats{Items: int(res.Deleted)},
		}, deps.Config.Format)
	},
}

func init() {
	rootCmd.AddCommand(leadsCmd)
	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsSummaryCmd)
	leadsCmd.AddCommand(leadsFlushCmd)

	leadsCmd.PersistentFlags().StringVar(&leadsMonth, "month", "", `only leads dated in this month, e.g. "July 2025"`)
	leadsFlushCmd.Flags().BoolVar(&leadsFlushYes, "yes", false, "confirm deletion")

	_ = leadsCmd.RegisterFlagCompletionFunc("month", completeMonths)
}
