// Package metric fetches single metric values and dimensioned rows through
// the response cache, degrading every non-authentication failure to a zero
// value plus a recorded error.
package metric

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/salasarservices/pulse/internal/cache"
	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/period"
	"github.com/salasarservices/pulse/internal/source"
	"github.com/salasarservices/pulse/internal/telemetry"
)

// Query names one upstream metric request.
type Query struct {
	Source    string
	Metric    string
	Dimension string // empty for a scalar; DimensionDay for a daily series
	Limit     int    // row limit; ignored for a scalar
}

// DimensionDay marks a daily series query.
const DimensionDay = "day"

// ID is the function identifier used in cache keys.
func (s Query) ID() string {
	if s.Dimension == "" {
		return s.Source + "." + s.Metric
	}
	return s.Source + "." + s.Metric + ".by." + s.Dimension
}

func (s Query) String() string { return s.ID() }

// FetchError records why a fetch degraded.
type FetchError struct {
	Query  Query
	Period period.Period
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Query.ID(), e.Period, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Auth reports whether the failure was an authentication failure, which
// callers must not degrade.
func (e *FetchError) Auth() bool { return source.IsAuth(e.Err) }

// Result is a fetched value or a degraded zero with its error.
type Result[T any] struct {
	Value T
	Err   *FetchError
	Hit   bool // served from the cache
}

// OK returns a successful Result.
func OK[T any](v T) Result[T] { return Result[T]{Value: v} }

// Fail returns a degraded Result holding the zero value of T.
func Fail[T any](err *FetchError) Result[T] { return Result[T]{Err: err} }

// OrZero returns the value, which is the zero value when the fetch failed.
func (r Result[T]) OrZero() T { return r.Value }

// Degraded reports whether the fetch failed.
func (r Result[T]) Degraded() bool { return r.Err != nil }

// ─── Fetcher ──────────────────────────────────────────────────────────────────

// Fetcher resolves queries against the source registry. A nil Cache disables
// caching; a nil Metrics records nothing.
type Fetcher struct {
	Registry *source.Registry
	Cache    cache.Cache
	TTL      time.Duration
	Metrics  *telemetry.Metrics
}

// Scalar fetches the total of s.Metric over p.
func (f *Fetcher) Scalar(ctx context.Context, s Query, p period.Period) Result[float64] {
	src, err := f.Registry.Get(s.Source)
	if err != nil {
		return degrade[float64](f, s, p, err)
	}
	key := cache.Key(s.ID(), p.StartDate(), p.EndDate())
	v, hit, err := cache.Memo(ctx, f.Cache, f.ttl(), key, func(ctx context.Context) (float64, error) {
		return src.Scalar(ctx, s.Metric, p)
	})
	if err != nil {
		return degrade[float64](f, s, p, err)
	}
	f.ok(s, hit)
	return Result[float64]{Value: v, Hit: hit}
}

// Rows fetches up to s.Limit rows of s.Metric by s.Dimension over p.
// A successful fetch always returns a non-nil slice.
func (f *Fetcher) Rows(ctx context.Context, s Query, p period.Period) Result[[]model.Row] {
	src, err := f.Registry.Get(s.Source)
	if err != nil {
		return degrade[[]model.Row](f, s, p, err)
	}
	key := cache.Key(s.ID(), p.StartDate(), p.EndDate(), s.Limit)
	rows, hit, err := cache.Memo(ctx, f.Cache, f.ttl(), key, func(ctx context.Context) ([]model.Row, error) {
		return src.Rows(ctx, s.Dimension, s.Metric, p, s.Limit)
	})
	if err != nil {
		return degrade[[]model.Row](f, s, p, err)
	}
	if rows == nil {
		rows = []model.Row{}
	}
	f.ok(s, hit)
	return Result[[]model.Row]{Value: rows, Hit: hit}
}

// Series fetches s.Metric day by day over p. Sources without daily data
// degrade like any other failure. A successful fetch always returns a
// non-nil slice.
func (f *Fetcher) Series(ctx context.Context, s Query, p period.Period) Result[[]model.Point] {
	s.Dimension, s.Limit = DimensionDay, 0
	src, err := f.Registry.Get(s.Source)
	if err != nil {
		return degrade[[]model.Point](f, s, p, err)
	}
	ss, ok := src.(source.SeriesSource)
	if !ok {
		return degrade[[]model.Point](f, s, p, fmt.Errorf("%w: %s has no daily series", source.ErrUnknownMetric, s.Source))
	}
	key := cache.Key(s.ID(), p.StartDate(), p.EndDate())
	pts, hit, err := cache.Memo(ctx, f.Cache, f.ttl(), key, func(ctx context.Context) ([]model.Point, error) {
		return ss.Series(ctx, s.Metric, p)
	})
	if err != nil {
		return degrade[[]model.Point](f, s, p, err)
	}
	if pts == nil {
		pts = []model.Point{}
	}
	f.ok(s, hit)
	return Result[[]model.Point]{Value: pts, Hit: hit}
}

func (f *Fetcher) ttl() time.Duration {
	if f.TTL <= 0 {
		return cache.DefaultTTL
	}
	return f.TTL
}

func (f *Fetcher) ok(s Query, hit bool) {
	if hit {
		f.Metrics.Cache("hit")
		return
	}
	f.Metrics.Cache("miss")
	f.Metrics.Fetch(s.Source, telemetry.OutcomeOK)
}

// degrade records err and builds the zero-valued result.
func degrade[T any](f *Fetcher, s Query, p period.Period, err error) Result[T] {
	fe := &FetchError{Query: s, Period: p, Err: err}
	if fe.Auth() {
		f.Metrics.Fetch(s.Source, telemetry.OutcomeAuth)
		slog.Warn("authentication failed", "metric", s.ID(), "err", err)
	} else {
		f.Metrics.Fetch(s.Source, telemetry.OutcomeDegraded)
		slog.Warn("metric degraded to zero", "metric", s.ID(), "period", p.String(), "err", err)
	}
	return Fail[T](fe)
}
