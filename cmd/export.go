package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/salasarservices/pulse/internal/app"
	"github.com/salasarservices/pulse/internal/export"
	"github.com/salasarservices/pulse/internal/leads"
	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/report"
)

var (
	exportMonth   string
	exportPath    string
	exportUpload  bool
	exportNoLeads bool
)

var exportCmd = &cobra.Command{
	Use:   "export [section...]",
	Short: "Export the monthly report as a PDF",
	Long: `Build the report for a month and write it as a PDF.

The file is named Salasar-Services-Report-<Month Year>.pdf unless --file is
given. When the lead store is configured, the lead summary is appended.
With --upload the document is also archived to the configured S3 bucket.
Every export is recorded in the local database; see 'pulse export history'.`,
	Example: `  pulse export --month "July 2025"
  pulse export --month 2025-07 --file july.pdf
  pulse export --upload`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		deps, err := buildDeps(ctx)
		if err != nil {
			return err
		}
		defer deps.Close()

		exp, err := deps.Exporter(ctx, exportUpload)
		if err != nil {
			return err
		}
		rep, err := deps.Assembler.Build(ctx, report.Request{
			Month:    exportMonth,
			Sections: args,
			Today:    time.Now(),
		})
		if err != nil {
			return err
		}

		var summary *model.LeadSummary
		if !exportNoLeads {
			summary = leadSummary(ctx, deps)
		}

		rec, _, err := exp.Export(ctx, rep, summary, export.Options{Path: exportPath, Upload: exportUpload})
		if err != nil {
			return err
		}
		if !globalFlags.Quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %s (%s)\n", rec.Location, humanBytes(int64(rec.Bytes)))
			for _, w := range rep.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠  %s\n", w)
			}
		}
		return nil
	},
}

var exportHistoryCmd = &cobra.Command{
	Use:     "history",
	Short:   "List recorded exports, newest first",
	Example: `  pulse export history --format csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := deps.RequireStore(); err != nil {
			return err
		}

		recs, err := deps.Store.ListExports()
		if err != nil {
			return fmt.Errorf("listing exports: %w", err)
		}
		return emit(cmd.OutOrStdout(), &model.Result{
			Kind:        model.KindExports,
			GeneratedAt: time.Now(),
			Command:     "export history",
			Data:        recs,
			Stats:       model.ResultStats{Items: len(recs)},
		}, deps.Config.Format)
	},
}

// leadSummary returns the lead summary, or nil when the lead store is not
// configured or cannot be read.
func leadSummary(ctx context.Context, deps *app.Deps) *model.LeadSummary {
	if deps.Config.MongoURI == "" {
		return nil
	}
	ls, err := deps.Leads(ctx)
	if err != nil {
		slog.Warn("lead summary omitted", "err", err)
		return nil
	}
	all, err := leads.Load(ctx, ls)
	if err != nil {
		slog.Warn("lead summary omitted", "err", err)
		return nil
	}
	s := leads.Summarize(all)
	return &s
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportHistoryCmd)

	f := exportCmd.Flags()
	f.StringVar(&exportMonth, "month", "", `report month (default: current month)`)
	f.StringVar(&exportPath, "file", "", "output path (default: Salasar-Services-Report-<month>.pdf)")
	f.BoolVar(&exportUpload, "upload", false, "archive the PDF to the configured S3 bucket")
	f.BoolVar(&exportNoLeads, "no-leads", false, "omit the lead summary")

	exportCmd.ValidArgsFunction = completeSections(false)
	_ = exportCmd.RegisterFlagCompletionFunc("month", completeMonths)
}
