// Package analyze computes period-over-period comparisons: scalar deltas and
// the reconciliation of dimensioned rows between two periods. All functions
// are pure; no I/O.
package analyze

import (
	"math"
	"sort"

	"github.com/salasarservices/pulse/internal/model"
)

// Display colors for the sign of a change.
const (
	ColorUp   = "#2ecc40"
	ColorDown = "#ff4136"
)

// ─── Delta ────────────────────────────────────────────────────────────────────

// PctChange returns the percent change from previous to current.
//
// When previous is 0 the result is 0 whatever current is, so growth from
// nothing reports as 0%. Otherwise (current-previous)/previous*100.
func PctChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// Compare builds the Delta for a current/previous pair.
// NaN inputs are treated as 0 (the degrade-to-zero policy).
func Compare(current, previous float64) model.Delta {
	current, previous = zeroNaN(current), zeroNaN(previous)
	return model.Delta{
		Current:   current,
		Previous:  previous,
		PctChange: PctChange(current, previous),
	}
}

// Color maps the sign of pct to its display color. Zero counts as growth.
func Color(pct float64) string {
	if pct >= 0 {
		return ColorUp
	}
	return ColorDown
}

// Arrow maps the sign of pct to an arrow; no change has no arrow.
func Arrow(pct float64) string {
	switch {
	case pct > 0:
		return "↑"
	case pct < 0:
		return "↓"
	default:
		return ""
	}
}

// ─── Reconcile ────────────────────────────────────────────────────────────────

// Rank returns a copy of rows ordered by value, descending. Ties keep their
// original fetch order. If topN > 0 the result is truncated to topN rows.
func Rank(rows []model.Row, topN int) []model.Row {
	ranked := make([]model.Row, len(rows))
	copy(ranked, rows)
	sort.SliceStable(ranked, func(i, j int) bool {
		return zeroNaN(ranked[i].Value) > zeroNaN(ranked[j].Value)
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// Reconcile joins the top-N current rows to the previous rows by key.
//
// A key missing from previous counts as 0. When previous repeats a key the
// first occurrence wins. The output follows the current ranking order and
// has one entry per ranked current row.
func Reconcile(current, previous []model.Row, topN int) []model.RowDelta {
	prevByKey := make(map[string]float64, len(previous))
	for _, r := range previous {
		if _, seen := prevByKey[r.Key]; seen {
			continue
		}
		prevByKey[r.Key] = zeroNaN(r.Value)
	}

	ranked := Rank(current, topN)
	out := make([]model.RowDelta, 0, len(ranked))
	for _, r := range ranked {
		d := Compare(r.Value, prevByKey[r.Key])
		out = append(out, model.RowDelta{
			Key:       r.Key,
			Label:     r.Label,
			Current:   d.Current,
			Previous:  d.Previous,
			PctChange: d.PctChange,
		})
	}
	return out
}

// Total compares the sums of reconciled rows.
func Total(rows []model.RowDelta) model.Delta {
	var cur, prev float64
	for _, r := range rows {
		cur += r.Current
		prev += r.Previous
	}
	return Compare(cur, prev)
}

// ─── Series ───────────────────────────────────────────────────────────────────

// SeriesSummary describes a daily series.
type SeriesSummary struct {
	Days  int     `json:"days"`
	Total float64 `json:"total"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Last  float64 `json:"last"`
}

// Summarize computes the summary of points. NaN values count as 0.
// An empty series summarizes to zeros.
func Summarize(points []model.Point) SeriesSummary {
	var s SeriesSummary
	if len(points) == 0 {
		return s
	}
	s.Days = len(points)
	s.Min = math.Inf(1)
	s.Max = math.Inf(-1)
	for _, p := range points {
		v := zeroNaN(p.Value)
		s.Total += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = s.Total / float64(s.Days)
	s.Last = zeroNaN(points[len(points)-1].Value)
	return s
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
