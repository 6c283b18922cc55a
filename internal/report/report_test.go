package report_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salasarservices/pulse/internal/cache"
	"github.com/salasarservices/pulse/internal/metric"
	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/period"
	"github.com/salasarservices/pulse/internal/report"
	"github.com/salasarservices/pulse/internal/source"
)

// ─── Fakes ────────────────────────────────────────────────────────────────────

type call struct {
	metric, dimension string
	period            period.Period
	limit             int
}

// fakeSource answers by (metric, period start) and records every call.
type fakeSource struct {
	name   string
	values map[string]float64     // metric@YYYY-MM-DD
	rows   map[string][]model.Row // metric@YYYY-MM-DD
	errs   map[string]error       // metric
	mu     sync.Mutex
	calls  []call
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeSource) Scalar(_ context.Context, m string, p period.Period) (float64, error) {
	f.record(call{metric: m, period: p})
	if err := f.errs[m]; err != nil {
		return 0, err
	}
	return f.values[m+"@"+p.StartDate()], nil
}

func (f *fakeSource) Rows(_ context.Context, dim, m string, p period.Period, limit int) ([]model.Row, error) {
	f.record(call{metric: m, dimension: dim, period: p, limit: limit})
	if err := f.errs[m]; err != nil {
		return nil, err
	}
	return f.rows[m+"@"+p.StartDate()], nil
}

// seriesFake adds daily data to fakeSource: one point per day valued by
// the metric's entry in daily.
type seriesFake struct {
	*fakeSource
	daily map[string]float64
}

func (f seriesFake) Series(_ context.Context, m string, p period.Period) ([]model.Point, error) {
	f.record(call{metric: m, dimension: "day", period: p})
	if err := f.errs[m]; err != nil {
		return nil, err
	}
	pts := make([]model.Point, 0, p.Days())
	for _, d := range p.Dates() {
		pts = append(pts, model.Point{Date: d, Value: f.daily[m]})
	}
	return pts, nil
}

const layout = `
sections:
  - id: search
    title: Website Performance
    granularity: month
    cards:
      - {id: clicks, title: Total Website Clicks, source: sc, metric: clicks}
      - {id: ctr, title: Average CTR, source: sc, metric: ctr, format: percent}
    tables:
      - {id: top_content, title: Top Content, source: sc, dimension: page, metric: pageClicks, key_label: Page}
  - id: social
    title: Social
    granularity: trailing28
    cards:
      - {id: reach, title: Reach, source: ig, metric: reach}
`

func testAssembler(t *testing.T, srcs ...source.Source) *report.Assembler {
	t.Helper()
	defs, err := report.ParseDefinitions([]byte(layout))
	require.NoError(t, err)
	f := &metric.Fetcher{Registry: source.NewRegistry(srcs...), Cache: cache.NewMemory()}
	return report.NewAssembler(defs, f, 4, nil)
}

var today = time.Date(2025, 8, 28, 15, 0, 0, 0, time.UTC)

// ─── Definitions ──────────────────────────────────────────────────────────────

func TestBuiltinDefinitions(t *testing.T) {
	defs, err := report.LoadDefinitions("")
	require.NoError(t, err)
	assert.Equal(t, []string{"website", "search", "youtube", "facebook", "instagram", "linkedin"}, defs.SectionIDs())

	search, ok := defs.Section("search")
	require.True(t, ok)
	assert.Equal(t, period.Month, search.Granularity)
	require.NotEmpty(t, search.Tables)
	assert.Equal(t, 5, search.Tables[0].TopN)
	assert.Equal(t, 20, search.Tables[0].PreviousLimit)

	ig, _ := defs.Section("instagram")
	assert.Equal(t, period.Trailing, ig.Granularity)
	assert.Len(t, ig.Trends, 3)
	assert.Equal(t, period.TrendDays, ig.Trends[0].Days)

	li, _ := defs.Section("linkedin")
	assert.Equal(t, period.Trailing, li.Granularity)
	require.Len(t, li.Tables, 1)
	assert.Equal(t, "post", li.Tables[0].Dimension)
	assert.Equal(t, "impressions", li.Tables[0].Metric)
	assert.Equal(t, 28, li.Trends[0].Days)

	metrics := map[string]string{}
	for _, s := range defs.Sections {
		for _, c := range s.Cards {
			metrics[s.ID+"."+c.ID] = c.Metric + "/" + c.Format
		}
	}
	assert.Equal(t, "engagementRate/percent", metrics["linkedin.engagement_rate"])
	assert.Equal(t, "netSubscribers/number", metrics["youtube.net_subscribers"])
	assert.Equal(t, "page_follows/number", metrics["facebook.followers"])
	assert.Equal(t, "posts/number", metrics["facebook.posts"])
	assert.Equal(t, "posts/number", metrics["instagram.posts"])

	yt, _ := defs.Section("youtube")
	require.Len(t, yt.Trends, 3)
	assert.Equal(t, "netSubscribers", yt.Trends[2].Metric)
}

func TestLoadDefinitionsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(layout), 0600))
	defs, err := report.LoadDefinitions(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"search", "social"}, defs.SectionIDs())
	assert.Equal(t, "number", defs.Sections[0].Cards[0].Format)

	_, err = report.LoadDefinitions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseDefinitionsErrors(t *testing.T) {
	cases := map[string]string{
		"empty":       `sections: []`,
		"no id":       "sections:\n  - title: x\n",
		"duplicate":   "sections:\n  - id: a\n  - id: a\n",
		"granularity": "sections:\n  - id: a\n    granularity: weekly\n",
		"card":        "sections:\n  - id: a\n    cards:\n      - {title: x}\n",
		"format":      "sections:\n  - id: a\n    cards:\n      - {source: s, metric: m, format: bytes}\n",
		"table":       "sections:\n  - id: a\n    tables:\n      - {source: s, metric: m}\n",
		"limits":      "sections:\n  - id: a\n    tables:\n      - {source: s, metric: m, dimension: d, top_n: 10, previous_limit: 5}\n",
		"trend":       "sections:\n  - id: a\n    trends:\n      - {title: x, metric: m}\n",
		"yaml":        "sections: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := report.ParseDefinitions([]byte(doc))
			assert.Error(t, err)
		})
	}
}

// ─── Build ────────────────────────────────────────────────────────────────────

func TestBuildComparesAndReconciles(t *testing.T) {
	sc := &fakeSource{
		name: "sc",
		values: map[string]float64{
			"clicks@2025-07-01": 100, "clicks@2025-06-01": 80,
			"ctr@2025-07-01": 2.5, "ctr@2025-06-01": 0,
		},
		rows: map[string][]model.Row{
			"pageClicks@2025-07-01": {{Key: "/a", Value: 10}, {Key: "/b", Value: 5}},
			"pageClicks@2025-06-01": {{Key: "/a", Value: 8}},
		},
	}
	ig := &fakeSource{name: "ig"}
	a := testAssembler(t, sc, ig)

	rep, err := a.Build(context.Background(), report.Request{Month: "July 2025", Today: today})
	require.NoError(t, err)
	assert.Equal(t, "July 2025", rep.Month)
	assert.Empty(t, rep.Warnings)
	require.Len(t, rep.Sections, 2)

	search := rep.Sections[0]
	require.Len(t, search.Cards, 2)
	clicks := search.Cards[0]
	assert.Equal(t, 100.0, clicks.Current)
	assert.Equal(t, 80.0, clicks.Previous)
	assert.InDelta(t, 25.0, clicks.PctChange, 1e-9)
	assert.Equal(t, "#2ecc40", clicks.DeltaColor)

	ctr := search.Cards[1]
	assert.Equal(t, 0.0, ctr.PctChange, "growth from zero reports 0%")
	assert.Equal(t, "percent", ctr.Format)

	require.Len(t, search.Tables, 1)
	rows := search.Tables[0].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, model.RowDelta{Key: "/a", Current: 10, Previous: 8, PctChange: 25}, rows[0])
	assert.Equal(t, model.RowDelta{Key: "/b", Current: 5, Previous: 0, PctChange: 0}, rows[1])
	assert.Equal(t, "Page", search.Tables[0].KeyLabel)
	assert.Equal(t, model.Delta{Current: 15, Previous: 8, PctChange: 87.5}, search.Tables[0].Total)
}

func TestBuildUsesBothPeriodSystems(t *testing.T) {
	sc := &fakeSource{name: "sc"}
	ig := &fakeSource{name: "ig"}
	a := testAssembler(t, sc, ig)

	rep, err := a.Build(context.Background(), report.Request{Month: "February 2024", Today: today})
	require.NoError(t, err)

	assert.Equal(t, "2024-02-01..2024-02-29", rep.Sections[0].Periods.Current.String())
	assert.Equal(t, "2024-01-01..2024-01-31", rep.Sections[0].Periods.Previous.String())
	assert.Equal(t, "2025-08-01..2025-08-28", rep.Sections[1].Periods.Current.String())
	assert.Equal(t, "2025-07-04..2025-07-31", rep.Sections[1].Periods.Previous.String())

	for _, c := range ig.calls {
		assert.NotEqual(t, 2024, c.period.Start.Year(), "trailing sections ignore the month")
	}
}

func TestBuildTableLimits(t *testing.T) {
	sc := &fakeSource{name: "sc"}
	a := testAssembler(t, sc, &fakeSource{name: "ig"})
	_, err := a.Build(context.Background(), report.Request{Month: "July 2025", Sections: []string{"search"}, Today: today})
	require.NoError(t, err)

	limits := map[string]int{}
	for _, c := range sc.calls {
		if c.dimension == "page" {
			limits[c.period.StartDate()] = c.limit
		}
	}
	assert.Equal(t, map[string]int{"2025-07-01": 5, "2025-06-01": 20}, limits)
}

func TestBuildDegradesFailures(t *testing.T) {
	sc := &fakeSource{
		name:   "sc",
		values: map[string]float64{"clicks@2025-07-01": 100, "clicks@2025-06-01": 80},
		errs:   map[string]error{"pageClicks": errors.New("HTTP 500: backend error")},
	}
	// ig is not registered at all.
	a := testAssembler(t, sc)

	rep, err := a.Build(context.Background(), report.Request{Month: "July 2025", Today: today})
	require.NoError(t, err)
	require.Len(t, rep.Sections, 2)

	table := rep.Sections[0].Tables[0]
	assert.True(t, table.Degraded)
	assert.NotNil(t, table.Rows)
	assert.Empty(t, table.Rows)

	reach := rep.Sections[1].Cards[0]
	assert.True(t, reach.Degraded)
	assert.Equal(t, 0.0, reach.Current)
	assert.Equal(t, 0.0, reach.PctChange)

	assert.False(t, rep.Sections[0].Cards[0].Degraded)
	assert.Len(t, rep.Warnings, 4, "two failed table fetches and two unconfigured card fetches")
}

func TestBuildAbortsOnAuthFailure(t *testing.T) {
	sc := &fakeSource{name: "sc", errs: map[string]error{"ctr": fmt.Errorf("%w: token revoked", source.ErrAuth)}}
	a := testAssembler(t, sc, &fakeSource{name: "ig"})

	rep, err := a.Build(context.Background(), report.Request{Month: "July 2025", Today: today})
	require.Error(t, err)
	assert.Nil(t, rep)
	assert.True(t, source.IsAuth(err))
	assert.Contains(t, err.Error(), "Website Performance")
}

func TestBuildSectionSelection(t *testing.T) {
	a := testAssembler(t, &fakeSource{name: "sc"}, &fakeSource{name: "ig"})

	rep, err := a.Build(context.Background(), report.Request{Month: "July 2025", Sections: []string{"social"}, Today: today})
	require.NoError(t, err)
	require.Len(t, rep.Sections, 1)
	assert.Equal(t, "social", rep.Sections[0].ID)

	_, err = a.Build(context.Background(), report.Request{Sections: []string{"tiktok"}, Today: today})
	assert.Error(t, err)
}

func TestBuildDefaultsAndInvalidMonth(t *testing.T) {
	a := testAssembler(t, &fakeSource{name: "sc"}, &fakeSource{name: "ig"})

	rep, err := a.Build(context.Background(), report.Request{Today: today})
	require.NoError(t, err)
	assert.Equal(t, "August 2025", rep.Month)

	_, err = a.Build(context.Background(), report.Request{Month: "Smarch 2025", Today: today})
	assert.Error(t, err)
}

func TestBuildCountsCacheHits(t *testing.T) {
	a := testAssembler(t, &fakeSource{name: "sc"}, &fakeSource{name: "ig"})
	req := report.Request{Month: "July 2025", Today: today}

	first, err := a.Build(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, first.CacheHits)
	assert.Equal(t, 8, first.Fetches)

	second, err := a.Build(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 8, second.CacheHits)
}

const trendLayout = `
sections:
  - id: search
    title: Website Performance
    granularity: month
    trends:
      - {id: clicks, title: Clicks, source: sc, metric: clicks, days: 10}
  - id: social
    title: Social
    granularity: trailing28
    cards:
      - {id: reach, title: Reach, source: ig, metric: reach}
    trends:
      - {id: reach, title: Reach, source: ig, metric: reach, color: "#833ab4"}
`

func trendAssembler(t *testing.T, srcs ...source.Source) *report.Assembler {
	t.Helper()
	defs, err := report.ParseDefinitions([]byte(trendLayout))
	require.NoError(t, err)
	f := &metric.Fetcher{Registry: source.NewRegistry(srcs...), Cache: cache.NewMemory()}
	return report.NewAssembler(defs, f, 4, nil)
}

func TestBuildTrends(t *testing.T) {
	ig := seriesFake{fakeSource: &fakeSource{name: "ig"}, daily: map[string]float64{"reach": 7}}
	sc := seriesFake{fakeSource: &fakeSource{name: "sc"}, daily: map[string]float64{"clicks": 2}}
	a := trendAssembler(t, ig, sc)

	rep, err := a.Build(context.Background(), report.Request{Month: "July 2025", Today: today})
	require.NoError(t, err)
	assert.Empty(t, rep.Warnings)
	assert.Equal(t, 4, rep.Fetches)

	search := rep.Sections[0]
	require.Len(t, search.Trends, 1)
	clicks := search.Trends[0]
	assert.Equal(t, "2025-07-22..2025-07-31", clicks.Period.String(), "ends with the selected month")
	require.Len(t, clicks.Points, 10)
	assert.Equal(t, 2.0, clicks.Points[9].Value)

	reach := rep.Sections[1].Trends[0]
	assert.Equal(t, "2025-06-30..2025-08-28", reach.Period.String(), "ends with the trailing window")
	assert.Len(t, reach.Points, period.TrendDays)
	assert.Equal(t, "#833ab4", reach.Color)
	assert.False(t, reach.Degraded)
}

func TestBuildTrendDegrades(t *testing.T) {
	// Plain fakeSource has no daily data.
	a := trendAssembler(t, &fakeSource{name: "sc"}, seriesFake{
		fakeSource: &fakeSource{name: "ig", errs: map[string]error{"reach": errors.New("HTTP 500")}},
	})

	rep, err := a.Build(context.Background(), report.Request{Month: "July 2025", Today: today})
	require.NoError(t, err)

	clicks := rep.Sections[0].Trends[0]
	assert.True(t, clicks.Degraded)
	assert.NotNil(t, clicks.Points)
	assert.Empty(t, clicks.Points)
	assert.True(t, rep.Sections[1].Trends[0].Degraded)
	require.Len(t, rep.Warnings, 4)
	assert.Contains(t, rep.Warnings[0], "Clicks trend")
}

func TestBuildTrendAuthAborts(t *testing.T) {
	a := trendAssembler(t, &fakeSource{name: "sc"}, source.Unauthenticated("ig", "missing token"))
	_, err := a.Build(context.Background(), report.Request{Month: "July 2025", Today: today})
	require.Error(t, err)
	assert.True(t, source.IsAuth(err))
}
