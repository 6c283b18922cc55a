// Package server exposes reports, leads and the PDF export over HTTP for
// `pulse serve`.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/salasarservices/pulse/internal/cache"
	"github.com/salasarservices/pulse/internal/export"
	"github.com/salasarservices/pulse/internal/leads"
	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/period"
	"github.com/salasarservices/pulse/internal/render"
	"github.com/salasarservices/pulse/internal/report"
	"github.com/salasarservices/pulse/internal/source"
	"github.com/salasarservices/pulse/internal/telemetry"
)

// DefaultMonthsBack is how many month options /api/months offers.
const DefaultMonthsBack = 12

// Reporter builds reports.
type Reporter interface {
	Build(ctx context.Context, req report.Request) (*model.Report, error)
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	Reports        Reporter
	Cache          cache.Cache      // optional; /api/refresh is a no-op without it
	Leads          leads.Store      // optional; lead routes answer 503 without it
	Exporter       *export.Exporter // optional; records PDF downloads
	Metrics        *telemetry.Metrics
	Log            *slog.Logger
	MonthsBack     int
	AllowedOrigins []string

	// Now anchors month options and reports; nil means time.Now.
	Now func() time.Time
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	origins := s.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(s.logger()))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderRequestID},
		ExposedHeaders: []string{HeaderRequestID, "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	r.Get("/report", s.reportHTML)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/months", s.months)
		r.Get("/report", s.reportJSON)
		r.Get("/report.pdf", s.reportPDF)
		r.Post("/refresh", s.refresh)
		r.Get("/leads", s.leadList)
		r.Get("/leads/summary", s.leadSummary)
		r.Post("/leads/flush", s.leadFlush)
	})
	return r
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("starting server", slog.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

// ─── Reports ──────────────────────────────────────────────────────────────────

func (s *Server) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) months(w http.ResponseWriter, r *http.Request) {
	n := s.MonthsBack
	if n <= 0 {
		n = DefaultMonthsBack
	}
	opts := period.MonthOptions(s.now(), n)
	writeJSON(w, http.StatusOK, &model.Result{
		Kind:        model.KindMonths,
		GeneratedAt: time.Now(),
		Command:     "GET /api/months",
		Data:        opts,
		Stats:       model.ResultStats{Items: len(opts)},
	})
}

// build runs the assembler for the request's month and sections, writing
// the error response itself when it fails.
func (s *Server) build(w http.ResponseWriter, r *http.Request) (*model.Report, time.Duration, bool) {
	q := r.URL.Query()
	req := report.Request{
		Month:    q.Get("month"),
		Sections: sectionParams(q),
		Today:    s.now(),
	}
	start := time.Now()
	rep, err := s.Reports.Build(r.Context(), req)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case source.IsAuth(err):
			status = http.StatusBadGateway
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err)
		return nil, 0, false
	}
	return rep, time.Since(start), true
}

func (s *Server) reportJSON(w http.ResponseWriter, r *http.Request) {
	rep, elapsed, ok := s.build(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, &model.Result{
		Kind:        model.KindReport,
		GeneratedAt: time.Now(),
		Command:     "GET /api/report",
		Data:        rep,
		Warnings:    rep.Warnings,
		Stats: model.ResultStats{
			CacheHit:   rep.Fetches > 0 && rep.CacheHits == rep.Fetches,
			CacheHits:  rep.CacheHits,
			DurationMs: elapsed.Milliseconds(),
			Items:      len(rep.Flatten()),
		},
	})
}

func (s *Server) reportHTML(w http.ResponseWriter, r *http.Request) {
	rep, _, ok := s.build(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.HTML(w, rep); err != nil {
		s.logger().Error("rendering report page", "rid", RID(r.Context()), "err", err)
	}
}

func (s *Server) reportPDF(w http.ResponseWriter, r *http.Request) {
	rep, _, ok := s.build(w, r)
	if !ok {
		return
	}
	var summary *model.LeadSummary
	if s.Leads != nil {
		if ls, err := leads.Load(r.Context(), s.Leads); err == nil {
			sum := leads.Summarize(ls)
			summary = &sum
		} else {
			s.logger().Debug("lead summary omitted from export", "err", err)
		}
	}

	var doc []byte
	var err error
	if s.Exporter != nil {
		_, doc, err = s.Exporter.Export(r.Context(), rep, summary, export.Options{Path: "-"})
	} else {
		doc, err = export.PDF(rep, summary)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(rep.Month)))
	w.Write(doc)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	name := "none"
	if s.Cache != nil {
		if err := s.Cache.Invalidate(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("invalidating cache: %w", err))
			return
		}
		name = s.Cache.Name()
	}
	writeJSON(w, http.StatusOK, map[string]string{"invalidated": name})
}

// ─── Leads ────────────────────────────────────────────────────────────────────

func (s *Server) loadLeads(w http.ResponseWriter, r *http.Request) ([]model.Lead, bool) {
	if s.Leads == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("lead store is not configured"))
		return nil, false
	}
	ls, err := leads.Load(r.Context(), s.Leads)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return nil, false
	}
	if m := r.URL.Query().Get("month"); m != "" {
		if ls, err = leads.FilterMonth(ls, m); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return nil, false
		}
	}
	return ls, true
}

func (s *Server) leadList(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.loadLeads(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, &model.Result{
		Kind:        model.KindLeads,
		GeneratedAt: time.Now(),
		Command:     "GET /api/leads",
		Data:        ls,
		Stats:       model.ResultStats{Items: len(ls)},
	})
}

func (s *Server) leadSummary(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.loadLeads(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, &model.Result{
		Kind:        model.KindLeadSummary,
		GeneratedAt: time.Now(),
		Command:     "GET /api/leads/summary",
		Data:        leads.Summarize(ls),
		Stats:       model.ResultStats{Items: len(ls)},
	})
}

func (s *Server) leadFlush(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "yes" {
		writeError(w, http.StatusBadRequest, errors.New("flushing deletes every document in every collection; repeat with ?confirm=yes"))
		return
	}
	if s.Leads == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("lead store is not configured"))
		return
	}
	res, err := s.Leads.Flush(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	s.logger().Warn("lead store flushed", "rid", RID(r.Context()), "collections", len(res.Collections), "deleted", res.Deleted)
	writeJSON(w, http.StatusOK, &model.Result{
		Kind:        model.KindFlush,
		GeneratedAt: time.Now(),
		Command:     "POST /api/leads/flush",
		Data:        res,
		Stats:       model.ResultStats{Items: int(res.Deleted)},
	})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// sectionParams accepts repeated and comma-separated section values.
func sectionParams(q url.Values) []string {
	var out []string
	for _, v := range q["section"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
