// Package period resolves the reporting windows a report compares.
//
// Two independent period systems exist:
//
//   - Month: the selected calendar month against the calendar month before it.
//     Months of different length are compared as-is.
//   - Trailing: the last N days ending today against the N days before that.
//     Social sources report on trailing 28-day windows.
//
// The two systems are never reconciled with each other.
package period

import (
	"fmt"
	"strings"
	"time"
)

const (
	// LabelLayout is the month label format shown to users ("August 2025").
	LabelLayout = "January 2006"

	// TrailingDays is the window length used by the trailing period system.
	TrailingDays = 28

	// TrendDays is the default length of a daily trend window.
	TrendDays = 60

	dateLayout = "2006-01-02"
)

// labelLayouts lists every accepted month label form, in match order.
var labelLayouts = []string{LabelLayout, "Jan 2006", "2006-01", "01/2006"}

// Period is an inclusive date range. Start and End are UTC midnights.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the number of calendar days covered, inclusive.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

// StartDate formats Start as YYYY-MM-DD.
func (p Period) StartDate() string { return p.Start.Format(dateLayout) }

// EndDate formats End as YYYY-MM-DD.
func (p Period) EndDate() string { return p.End.Format(dateLayout) }

func (p Period) String() string {
	return p.StartDate() + ".." + p.EndDate()
}

// Pair is a current period and the period it is compared against.
type Pair struct {
	Current  Period `json:"current"`
	Previous Period `json:"previous"`
}

// Granularity selects a period system.
type Granularity string

const (
	Month    Granularity = "month"
	Trailing Granularity = "trailing28"
)

// ParseGranularity maps a definitions-file value to a Granularity.
// Empty means Month.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "month", "monthly":
		return Month, nil
	case "trailing28", "trailing", "28d":
		return Trailing, nil
	}
	return "", fmt.Errorf("unknown granularity %q: expected month|trailing28", s)
}

// ─── Month ────────────────────────────────────────────────────────────────────

// ParseMonth parses a month label and returns the first day of that month.
func ParseMonth(label string) (time.Time, error) {
	s := strings.Join(strings.Fields(label), " ")
	for _, layout := range labelLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid month %q: expected \"Month Year\" (e.g. \"August 2025\")", label)
}

// Resolve returns the full calendar month named by label and the calendar
// month immediately before it. There is no lower or upper bound: future
// months resolve normally and simply have no data.
func Resolve(label string) (Pair, error) {
	first, err := ParseMonth(label)
	if err != nil {
		return Pair{}, err
	}
	return MonthOf(first), nil
}

// MonthOf returns the month pair for the calendar month containing t.
func MonthOf(t time.Time) Pair {
	curStart := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	curEnd := curStart.AddDate(0, 1, -1)
	prevEnd := curStart.AddDate(0, 0, -1)
	prevStart := time.Date(prevEnd.Year(), prevEnd.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Pair{
		Current:  Period{Start: curStart, End: curEnd},
		Previous: Period{Start: prevStart, End: prevEnd},
	}
}

// Label formats t as a month label ("August 2025").
func Label(t time.Time) string {
	return t.Format(LabelLayout)
}

// MonthOptions returns the n month labels ending with the month containing
// now, oldest first.
func MonthOptions(now time.Time, n int) []string {
	if n < 1 {
		n = 1
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = Label(first.AddDate(0, -i, 0))
	}
	return out
}

// DefaultMonth is the last entry of MonthOptions: the month containing now.
func DefaultMonth(now time.Time) string {
	return Label(now)
}

// ─── Trailing ─────────────────────────────────────────────────────────────────

// TrailingWindow returns a days-long window ending on today (inclusive) and
// the days-long window that ends the day before it starts.
func TrailingWindow(today time.Time, days int) Pair {
	if days < 1 {
		days = TrailingDays
	}
	end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -(days - 1))
	prevEnd := start.AddDate(0, 0, -1)
	prevStart := prevEnd.AddDate(0, 0, -(days - 1))
	return Pair{
		Current:  Period{Start: start, End: end},
		Previous: Period{Start: prevStart, End: prevEnd},
	}
}

// TrendWindow returns the days-long window ending on end (inclusive).
func TrendWindow(end time.Time, days int) Period {
	if days < 1 {
		days = TrendDays
	}
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return Period{Start: e.AddDate(0, 0, -(days - 1)), End: e}
}

// Dates lists every day of p, oldest first.
func (p Period) Dates() []time.Time {
	out := make([]time.Time, 0, p.Days())
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// ─── Selection ────────────────────────────────────────────────────────────────

// Set holds both period systems for one request.
type Set struct {
	Month    Pair `json:"month"`
	Trailing Pair `json:"trailing"`
}

// NewSet resolves the month pair for label and the trailing pair for today.
func NewSet(label string, today time.Time) (Set, error) {
	m, err := Resolve(label)
	if err != nil {
		return Set{}, err
	}
	return Set{Month: m, Trailing: TrailingWindow(today, TrailingDays)}, nil
}

// For returns the pair for granularity g.
func (s Set) For(g Granularity) Pair {
	if g == Trailing {
		return s.Trailing
	}
	return s.Month
}
