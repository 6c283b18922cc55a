package source

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/period"
)

// Source is one upstream analytics API.
type Source interface {
	// Name is the registry key, e.g. "ga4".
	Name() string
	// Scalar returns the total of metric over p.
	Scalar(ctx context.Context, metric string, p period.Period) (float64, error)
	// Rows returns up to limit rows of metric broken down by dimension,
	// ordered by metric descending as the upstream ranks them.
	Rows(ctx context.Context, dimension, metric string, p period.Period, limit int) ([]model.Row, error)
}

// SeriesSource is a Source that can also report a metric day by day.
type SeriesSource interface {
	Source
	// Series returns one point per day of p, oldest first. Days the
	// upstream omits are zero.
	Series(ctx context.Context, metric string, p period.Period) ([]model.Point, error)
}

// Source names.
const (
	NameGA4           = "ga4"
	NameSearchConsole = "searchconsole"
	NameYouTube       = "youtube"
	NameFacebook      = "facebook"
	NameInstagram     = "instagram"
	NameLinkedIn      = "linkedin"
)

// ─── Registry ─────────────────────────────────────────────────────────────────

// Registry maps source names to configured sources.
type Registry struct {
	sources map[string]Source
}

// NewRegistry returns a Registry holding srcs.
func NewRegistry(srcs ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source)}
	for _, s := range srcs {
		r.Register(s)
	}
	return r
}

// Register adds or replaces s.
func (r *Registry) Register(s Source) {
	r.sources[s.Name()] = s
}

// Get returns the named source, or an ErrNotConfigured error.
func (r *Registry) Get(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, name)
	}
	return s, nil
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ─── Unauthenticated ──────────────────────────────────────────────────────────

// unauthenticated stands in for a source whose required credentials are
// missing. Every call fails with ErrAuth.
type unauthenticated struct {
	name   string
	reason string
}

// Unauthenticated returns a Source named name whose every call fails with
// ErrAuth and reason.
func Unauthenticated(name, reason string) Source {
	return unauthenticated{name: name, reason: reason}
}

func (u unauthenticated) Name() string { return u.name }

func (u unauthenticated) Scalar(context.Context, string, period.Period) (float64, error) {
	return 0, fmt.Errorf("%w: %s", ErrAuth, u.reason)
}

func (u unauthenticated) Rows(context.Context, string, string, period.Period, int) ([]model.Row, error) {
	return nil, fmt.Errorf("%w: %s", ErrAuth, u.reason)
}

func (u unauthenticated) Series(context.Context, string, period.Period) ([]model.Point, error) {
	return nil, fmt.Errorf("%w: %s", ErrAuth, u.reason)
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// parseValue parses an upstream numeric string. Empty means zero.
func parseValue(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed value %q: %w", s, err)
	}
	return v, nil
}

func unknown(source, kind, name string) error {
	return fmt.Errorf("%w: %s %s %q", ErrUnknownMetric, source, kind, name)
}

func clampLimit(rows []model.Row, limit int) []model.Row {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

// daily lays values keyed by day over every day of p. Days outside p are
// dropped and missing days are zero.
func daily(p period.Period, values map[time.Time]float64) []model.Point {
	days := p.Dates()
	out := make([]model.Point, len(days))
	for i, d := range days {
		out[i] = model.Point{Date: d, Value: values[d]}
	}
	return out
}

// day truncates t to its UTC calendar day.
func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
