// Package model defines the canonical data types used throughout pulse.
// These types are the single source of truth for metric rows, comparisons,
// assembled reports, leads, and the result envelope that every command
// returns.
package model

import (
	"time"

	"github.com/salasarservices/pulse/internal/period"
)

// ─── Metric Types ─────────────────────────────────────────────────────────────

// Row is one entry of a dimensioned breakdown, e.g. (page URL, clicks) or
// (country, active users). Keys are unique within a single fetch only.
type Row struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	// Label is an optional display name when Key is an opaque id
	// (video id, post id).
	Label string `json:"label,omitempty"`
}

// Delta compares a value against its previous-period value.
// It is derived on every request and never persisted.
type Delta struct {
	Current   float64 `json:"current"`
	Previous  float64 `json:"previous"`
	PctChange float64 `json:"pct_change"`
}

// RowDelta is a reconciled row: a current-period row joined to the
// previous-period row with the same key.
type RowDelta struct {
	Key       string  `json:"key"`
	Label     string  `json:"label,omitempty"`
	Current   float64 `json:"current_value"`
	Previous  float64 `json:"previous_value"`
	PctChange float64 `json:"pct_change"`
}

// Point is one day of a daily series.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ─── Report ───────────────────────────────────────────────────────────────────

// ReportTitle heads rendered and exported reports.
const ReportTitle = "Salasar Services Digital Marketing Report"

// Card is one headline metric with its comparison and presentation metadata.
type Card struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Format  string `json:"format"`
	Color   string `json:"color,omitempty"`
	Tooltip string `json:"tooltip,omitempty"`
	Delta
	// DeltaColor is green for growth (or no change) and red for decline.
	DeltaColor string `json:"delta_color"`
	Degraded   bool   `json:"degraded,omitempty"`
}

// Table is a reconciled top-N breakdown. Total compares the sums of the
// reconciled rows.
type Table struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	KeyLabel string     `json:"key_label"`
	Metric   string     `json:"metric"`
	Rows     []RowDelta `json:"rows"`
	Total    Delta      `json:"total"`
	Degraded bool       `json:"degraded,omitempty"`
}

// Trend is a daily series over a window ending with the current period.
type Trend struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Metric   string        `json:"metric"`
	Color    string        `json:"color,omitempty"`
	Period   period.Period `json:"period"`
	Points   []Point       `json:"points"`
	Degraded bool          `json:"degraded,omitempty"`
}

// Section groups the cards and tables of one data source page.
type Section struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Granularity period.Granularity `json:"granularity"`
	Periods     period.Pair        `json:"periods"`
	Cards       []Card             `json:"cards"`
	Tables      []Table            `json:"tables,omitempty"`
	Trends      []Trend            `json:"trends,omitempty"`
}

// Report is the assembled output of one request.
type Report struct {
	Month    string     `json:"month"`
	Periods  period.Set `json:"periods"`
	Sections []Section  `json:"sections"`
	Warnings []string   `json:"warnings,omitempty"`
	// CacheHits counts fetches served from the response cache.
	CacheHits int `json:"-"`
	// Fetches counts every fetch the report needed.
	Fetches int `json:"-"`
}

// Entry is the flat view the rendering layer consumes:
// (title, current value, delta, supplementary rows).
type Entry struct {
	Section string     `json:"section"`
	Title   string     `json:"title"`
	Format  string     `json:"format"`
	Delta   Delta      `json:"delta"`
	Rows    []RowDelta `json:"rows,omitempty"`
}

// Flatten lists every card and table of the report as entries, in section
// order. Table entries carry the table total as the headline value.
func (r *Report) Flatten() []Entry {
	var out []Entry
	for _, s := range r.Sections {
		for _, c := range s.Cards {
			out = append(out, Entry{Section: s.ID, Title: c.Title, Format: c.Format, Delta: c.Delta})
		}
		for _, t := range s.Tables {
			out = append(out, Entry{Section: s.ID, Title: t.Title, Format: "number", Delta: t.Total, Rows: t.Rows})
		}
	}
	return out
}

// ─── Leads ────────────────────────────────────────────────────────────────────

// Lead status classes.
const (
	StatusInterested    = "Interested"
	StatusNotInterested = "Not Interested"
	StatusClosed        = "Closed"
	StatusOther         = "Other"
)

// Field is one display column of a lead, in document order.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Lead is a normalized lead record. Fields holds every displayed column of
// the source document as display strings, in document order; the date
// column shows the month label and the phone number is omitted.
type Lead struct {
	Month       string   `json:"month"`
	DateRaw     string   `json:"date_raw,omitempty"`
	Status      string   `json:"status"`
	StatusClass string   `json:"status_class"`
	Brokerage   *float64 `json:"brokerage"` // nil when absent or not numeric
	Fields      []Field  `json:"fields"`
}

// HasBrokerage reports whether the brokerage amount was present and numeric.
func (l Lead) HasBrokerage() bool {
	return l.Brokerage != nil
}

// Get returns the display value of the named field, or "".
func (l Lead) Get(name string) string {
	for _, f := range l.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// LeadSummary holds the headline lead counts.
type LeadSummary struct {
	Total          int     `json:"total"`
	Interested     int     `json:"interested"`
	NotInterested  int     `json:"not_interested"`
	Closed         int     `json:"closed"`
	TotalBrokerage float64 `json:"total_brokerage"`
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries performance and cache metadata for a command result.
type ResultStats struct {
	CacheHit   bool  `json:"cache_hit"`
	CacheHits  int   `json:"cache_hits,omitempty"`
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindReport      = "report"
	KindLeads       = "leads"
	KindLeadSummary = "lead_summary"
	KindMonths      = "months"
	KindExports     = "exports"
	KindFlush       = "flush"
)
