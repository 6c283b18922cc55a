// Package leads reads sales leads from the lead store and normalizes the
// schemaless documents for display: month labels, status classes, numeric
// brokerage, and the headline summary counts.
package leads

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/period"
	"github.com/salasarservices/pulse/internal/util"
)

// Document field names.
const (
	FieldDate      = "Date"
	FieldStatus    = "Lead Status"
	FieldBrokerage = "Brokerage Received"
	FieldNumber    = "Number"
)

// Status colors.
const (
	ColorInterested    = "#FFD700"
	ColorNotInterested = "#FB4141"
	ColorClosed        = "#B4E50D"
	ColorOther         = "#666"
)

// monthPalette assigns each distinct month a pastel background.
var monthPalette = []string{
	"#f7f1d5", "#fbe4eb", "#d3fbe4", "#e4eaff", "#ffe4f1",
	"#e4fff6", "#f5e4ff", "#f1ffe4", "#ffe4e4", "#e4f1ff",
}

// Field is one key/value of a stored document, in document order.
type Field struct {
	Key   string
	Value interface{}
}

// Record is one stored lead document.
type Record []Field

// Lookup returns the value under key.
func (r Record) Lookup(key string) (interface{}, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// FlushResult reports what a flush deleted.
type FlushResult struct {
	Collections []string `json:"collections"`
	Deleted     int64    `json:"deleted"`
}

// Store is the lead store.
type Store interface {
	// All returns every lead document.
	All(ctx context.Context) ([]Record, error)
	// Flush deletes every document of every collection in the database.
	Flush(ctx context.Context) (FlushResult, error)
}

// ─── Normalization ────────────────────────────────────────────────────────────

// MonthLabel converts a YYYYMMDD value to "January 2006". Malformed values
// yield "".
func MonthLabel(v interface{}) string {
	t, err := util.ParseCompactDate(v)
	if err != nil {
		return ""
	}
	return period.Label(t)
}

// ClassifyStatus maps a trimmed status to one of the model status classes.
func ClassifyStatus(status string) string {
	switch strings.TrimSpace(status) {
	case model.StatusInterested:
		return model.StatusInterested
	case model.StatusNotInterested:
		return model.StatusNotInterested
	case model.StatusClosed:
		return model.StatusClosed
	}
	return model.StatusOther
}

// StatusColor returns the display color of a status.
func StatusColor(status string) string {
	switch ClassifyStatus(status) {
	case model.StatusInterested:
		return ColorInterested
	case model.StatusNotInterested:
		return ColorNotInterested
	case model.StatusClosed:
		return ColorClosed
	}
	return ColorOther
}

// Normalize converts a stored document into a display lead. Missing or
// malformed fields never fail: they normalize to empty values.
func Normalize(r Record) model.Lead {
	var l model.Lead
	if v, ok := r.Lookup(FieldDate); ok {
		l.DateRaw = util.Stringify(v)
		l.Month = MonthLabel(v)
	}
	if v, ok := r.Lookup(FieldStatus); ok {
		l.Status = strings.TrimSpace(util.Stringify(v))
	}
	l.StatusClass = ClassifyStatus(l.Status)
	if v, ok := r.Lookup(FieldBrokerage); ok {
		if n := util.ParseNumber(v); !math.IsNaN(n) && !math.IsInf(n, 0) {
			l.Brokerage = &n
		}
	}

	l.Fields = make([]model.Field, 0, len(r))
	for _, f := range r {
		switch f.Key {
		case "_id", FieldNumber:
			continue
		case FieldDate:
			l.Fields = append(l.Fields, model.Field{Name: f.Key, Value: l.Month})
		case FieldStatus:
			l.Fields = append(l.Fields, model.Field{Name: f.Key, Value: l.Status})
		case FieldBrokerage:
			l.Fields = append(l.Fields, model.Field{Name: f.Key, Value: FormatAmount(l.Brokerage)})
		default:
			l.Fields = append(l.Fields, model.Field{Name: f.Key, Value: util.Stringify(f.Value)})
		}
	}
	return l
}

// NormalizeAll normalizes every record, keeping store order.
func NormalizeAll(rs []Record) []model.Lead {
	out := make([]model.Lead, len(rs))
	for i, r := range rs {
		out[i] = Normalize(r)
	}
	return out
}

// Load reads and normalizes every lead in s.
func Load(ctx context.Context, s Store) ([]model.Lead, error) {
	rs, err := s.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading leads: %w", err)
	}
	return NormalizeAll(rs), nil
}

// ─── Summary ──────────────────────────────────────────────────────────────────

// Summarize counts leads per status and totals the numeric brokerage.
func Summarize(leads []model.Lead) model.LeadSummary {
	s := model.LeadSummary{Total: len(leads)}
	for _, l := range leads {
		switch l.StatusClass {
		case model.StatusInterested:
			s.Interested++
		case model.StatusNotInterested:
			s.NotInterested++
		case model.StatusClosed:
			s.Closed++
		}
		if l.HasBrokerage() {
			s.TotalBrokerage += *l.Brokerage
		}
	}
	return s
}

// FilterMonth returns the leads whose date falls in the month named by
// label.
func FilterMonth(leads []model.Lead, label string) ([]model.Lead, error) {
	t, err := period.ParseMonth(label)
	if err != nil {
		return nil, err
	}
	want := period.Label(t)
	out := make([]model.Lead, 0, len(leads))
	for _, l := range leads {
		if l.Month == want {
			out = append(out, l)
		}
	}
	return out, nil
}

// ─── Display ──────────────────────────────────────────────────────────────────

// Columns returns the union of display columns in first-seen order, with
// the brokerage column moved directly after the status column.
func Columns(leads []model.Lead) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, l := range leads {
		for _, f := range l.Fields {
			if !seen[f.Name] {
				seen[f.Name] = true
				cols = append(cols, f.Name)
			}
		}
	}
	if !seen[FieldStatus] || !seen[FieldBrokerage] {
		return cols
	}
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == FieldBrokerage {
			continue
		}
		out = append(out, c)
		if c == FieldStatus {
			out = append(out, FieldBrokerage)
		}
	}
	return out
}

// MonthColors assigns each distinct non-empty month a palette color,
// chronologically.
func MonthColors(leads []model.Lead) map[string]string {
	var months []string
	seen := make(map[string]bool)
	for _, l := range leads {
		if l.Month != "" && !seen[l.Month] {
			seen[l.Month] = true
			months = append(months, l.Month)
		}
	}
	sort.Slice(months, func(i, j int) bool {
		a, _ := period.ParseMonth(months[i])
		b, _ := period.ParseMonth(months[j])
		return a.Before(b)
	})
	out := make(map[string]string, len(months))
	for i, m := range months {
		out[m] = monthPalette[i%len(monthPalette)]
	}
	return out
}

// FormatAmount formats a brokerage amount for a table cell: "₹ 1234.50", or
// "" when absent.
func FormatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("₹ %.2f", *v)
}

// FormatBrokerage formats a total in Indian units: crore (1e7), lakh
// (1e5), thousand.
func FormatBrokerage(v float64) string {
	switch {
	case v >= 1e7:
		return fmt.Sprintf("₹ %.1fCr", v/1e7)
	case v >= 1e5:
		return fmt.Sprintf("₹ %.1fL", v/1e5)
	case v >= 1e4:
		return fmt.Sprintf("₹ %.0fK", v/1e3)
	case v >= 1e3:
		return fmt.Sprintf("₹ %.1fK", v/1e3)
	}
	return fmt.Sprintf("₹ %.2f", v)
}
