// Package report assembles the dashboard report: it resolves the period
// pairs for the selected month, fetches every card and table of the
// requested sections concurrently, and turns the results into compared
// cards and reconciled tables. Individual fetch failures degrade to zero
// with a warning; only authentication failures abort a build.
package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/salasarservices/pulse/internal/analyze"
	"github.com/salasarservices/pulse/internal/metric"
	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/period"
	"github.com/salasarservices/pulse/internal/telemetry"
)

const defaultConcurrency = 8

// Request is the per-request context of one build.
type Request struct {
	// Month is a month label ("August 2025"); empty means the current month.
	Month string
	// Sections restricts the build to these section ids; empty means all.
	Sections []string
	// Today anchors the trailing window and the default month; zero means
	// now.
	Today time.Time
}

// Assembler builds reports from a layout.
type Assembler struct {
	defs        *Definitions
	fetcher     *metric.Fetcher
	concurrency int
	metrics     *telemetry.Metrics
}

// NewAssembler creates an Assembler. concurrency bounds in-flight fetches.
func NewAssembler(defs *Definitions, fetcher *metric.Fetcher, concurrency int, m *telemetry.Metrics) *Assembler {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Assembler{defs: defs, fetcher: fetcher, concurrency: concurrency, metrics: m}
}

// Definitions returns the layout the assembler builds from.
func (a *Assembler) Definitions() *Definitions { return a.defs }

type taskKind int

const (
	scalarTask taskKind = iota
	rowsTask
	seriesTask
)

// task is one fetch. Only the result matching kind is set after it runs.
type task struct {
	section int
	kind    taskKind
	query   metric.Query
	period  period.Period

	scalar metric.Result[float64]
	rows   metric.Result[[]model.Row]
	series metric.Result[[]model.Point]
	done   time.Time
}

func (t *task) err() *metric.FetchError {
	switch t.kind {
	case rowsTask:
		return t.rows.Err
	case seriesTask:
		return t.series.Err
	}
	return t.scalar.Err
}

func (t *task) hit() bool {
	switch t.kind {
	case rowsTask:
		return t.rows.Hit
	case seriesTask:
		return t.series.Hit
	}
	return t.scalar.Hit
}

// Build assembles the report for req. The returned error is non-nil only
// for an invalid request or an authentication failure.
func (a *Assembler) Build(ctx context.Context, req Request) (*model.Report, error) {
	today := req.Today
	if today.IsZero() {
		today = time.Now()
	}
	month := req.Month
	if month == "" {
		month = period.DefaultMonth(today)
	}
	set, err := period.NewSet(month, today)
	if err != nil {
		return nil, err
	}
	sections, err := a.selectSections(req.Sections)
	if err != nil {
		return nil, err
	}

	// Two fetches per card and per table (current and previous period) and
	// one per trend.
	var tasks []*task
	for si, s := range sections {
		pair := set.For(s.Granularity)
		for _, c := range s.Cards {
			q := metric.Query{Source: c.Source, Metric: c.Metric}
			tasks = append(tasks,
				&task{section: si, query: q, period: pair.Current},
				&task{section: si, query: q, period: pair.Previous})
		}
		for _, t := range s.Tables {
			cur := metric.Query{Source: t.Source, Metric: t.Metric, Dimension: t.Dimension, Limit: t.TopN}
			prev := cur
			prev.Limit = t.PreviousLimit
			tasks = append(tasks,
				&task{section: si, kind: rowsTask, query: cur, period: pair.Current},
				&task{section: si, kind: rowsTask, query: prev, period: pair.Previous})
		}
		for _, t := range s.Trends {
			tasks = append(tasks, &task{
				section: si,
				kind:    seriesTask,
				query:   metric.Query{Source: t.Source, Metric: t.Metric},
				period:  period.TrendWindow(pair.Current.End, t.Days),
			})
		}
	}

	start := time.Now()
	a.run(ctx, tasks)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep := &model.Report{
		Month:    period.Label(set.Month.Current.Start),
		Periods:  set,
		Sections: make([]model.Section, 0, len(sections)),
		Fetches:  len(tasks),
	}
	for _, t := range tasks {
		if fe := t.err(); fe != nil && fe.Auth() {
			return nil, fmt.Errorf("%s: %w", sections[t.section].Title, fe)
		}
		if t.hit() {
			rep.CacheHits++
		}
	}

	next := 0
	for _, s := range sections {
		out := model.Section{
			ID:          s.ID,
			Title:       s.Title,
			Granularity: s.Granularity,
			Periods:     set.For(s.Granularity),
			Cards:       make([]model.Card, 0, len(s.Cards)),
			Tables:      make([]model.Table, 0, len(s.Tables)),
		}
		if len(s.Trends) > 0 {
			out.Trends = make([]model.Trend, 0, len(s.Trends))
		}
		var finished time.Time
		for _, c := range s.Cards {
			cur, prev := tasks[next], tasks[next+1]
			next += 2
			finished = latest(finished, cur.done, prev.done)

			d := analyze.Compare(cur.scalar.OrZero(), prev.scalar.OrZero())
			out.Cards = append(out.Cards, model.Card{
				ID:         c.ID,
				Title:      c.Title,
				Format:     c.Format,
				Color:      c.Color,
				Tooltip:    c.Tooltip,
				Delta:      d,
				DeltaColor: analyze.Color(d.PctChange),
				Degraded:   cur.err() != nil || prev.err() != nil,
			})
			rep.Warnings = appendWarnings(rep.Warnings, s.Title, c.Title, cur, prev)
		}
		for _, t := range s.Tables {
			cur, prev := tasks[next], tasks[next+1]
			next += 2
			finished = latest(finished, cur.done, prev.done)

			rows := analyze.Reconcile(cur.rows.OrZero(), prev.rows.OrZero(), t.TopN)
			out.Tables = append(out.Tables, model.Table{
				ID:       t.ID,
				Title:    t.Title,
				KeyLabel: t.KeyLabel,
				Metric:   t.Metric,
				Rows:     rows,
				Total:    analyze.Total(rows),
				Degraded: cur.err() != nil || prev.err() != nil,
			})
			rep.Warnings = appendWarnings(rep.Warnings, s.Title, t.Title, cur, prev)
		}
		for _, tr := range s.Trends {
			st := tasks[next]
			next++
			finished = latest(finished, st.done)

			pts := st.series.OrZero()
			if pts == nil {
				pts = []model.Point{}
			}
			out.Trends = append(out.Trends, model.Trend{
				ID:       tr.ID,
				Title:    tr.Title,
				Metric:   tr.Metric,
				Color:    tr.Color,
				Period:   st.period,
				Points:   pts,
				Degraded: st.err() != nil,
			})
			rep.Warnings = appendWarnings(rep.Warnings, s.Title, tr.Title+" trend", st)
		}
		if !finished.IsZero() {
			a.metrics.Section(s.ID, finished.Sub(start))
		}
		rep.Sections = append(rep.Sections, out)
	}
	return rep, nil
}

// run executes tasks with bounded concurrency. Results are written in place,
// so task order is preserved.
func (a *Assembler) run(ctx context.Context, tasks []*task) {
	sem := make(chan struct{}, a.concurrency)
	var wg sync.WaitGroup
	for _, t := range tasks {
		t := t
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			switch t.kind {
			case rowsTask:
				t.rows = a.fetcher.Rows(ctx, t.query, t.period)
			case seriesTask:
				t.series = a.fetcher.Series(ctx, t.query, t.period)
			default:
				t.scalar = a.fetcher.Scalar(ctx, t.query, t.period)
			}
			t.done = time.Now()
		}()
	}
	wg.Wait()
}

// selectSections returns the requested sections in layout order.
func (a *Assembler) selectSections(ids []string) ([]SectionDef, error) {
	if len(ids) == 0 {
		return a.defs.Sections, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := a.defs.Section(id); !ok {
			return nil, fmt.Errorf("unknown section %q (available: %v)", id, a.defs.SectionIDs())
		}
		want[id] = true
	}
	var out []SectionDef
	for _, s := range a.defs.Sections {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func appendWarnings(w []string, section, title string, ts ...*task) []string {
	for _, t := range ts {
		if fe := t.err(); fe != nil {
			w = append(w, fmt.Sprintf("%s / %s: %v (shown as 0)", section, title, fe))
		}
	}
	return w
}

func latest(ts ...time.Time) time.Time {
	var out time.Time
	for _, t := range ts {
		if t.After(out) {
			out = t
		}
	}
	return out
}
