package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/salasarservices/pulse/internal/server"
)

var (
	serveListen  string
	serveOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the report dashboard and JSON API",
	Long: `Serve the report over HTTP until interrupted.

Routes:
  GET  /report                  HTML report (?month=&section=)
  GET  /api/months              selectable months
  GET  /api/report              report as JSON
  GET  /api/report.pdf          report as a PDF download
  POST /api/refresh             invalidate the response cache
  GET  /api/leads               leads (?month=)
  GET  /api/leads/summary       lead counts by status
  POST /api/leads/flush         delete all lead data (?confirm=yes)
  GET  /metrics                 Prometheus metrics
  GET  /healthz                 liveness

Access logs are written to stderr as JSON.`,
	Example: `  pulse serve
  pulse serve --listen 127.0.0.1:9000 --origin https://dash.salasarservices.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		level := slog.LevelInfo
		if globalFlags.Debug {
			level = slog.LevelDebug
		}
		log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(log)

		deps, err := buildDeps(ctx)
		if err != nil {
			return err
		}
		defer deps.Close()

		s := &server.Server{
			Reports:        deps.Assembler,
			Cache:          deps.Cache,
			Metrics:        deps.Metrics,
			Log:            log,
			AllowedOrigins: serveOrigins,
		}
		if deps.Config.MongoURI != "" {
			ls, err := deps.Leads(ctx)
			if err != nil {
				log.Warn("lead store unavailable", "err", err)
			} else {
				s.Leads = ls
			}
		}
		if exp, err := deps.Exporter(ctx, false); err == nil {
			s.Exporter = exp
		}

		addr := deps.Config.Listen
		if serveListen != "" {
			addr = serveListen
		}
		return server.ListenAndServe(ctx, addr, s.Handler(), log)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default: :8080 or PULSE_LISTEN)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "origin", nil, "allowed CORS origin; repeatable (default: *)")
}
