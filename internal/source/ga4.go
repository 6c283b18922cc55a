package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/period"
)

// DefaultGA4URL is the Analytics Data API base.
const DefaultGA4URL = "https://analyticsdata.googleapis.com"

// GA4 is the Google Analytics 4 Data API source.
type GA4 struct {
	client   *Client
	baseURL  string
	property string
}

// NewGA4 creates a GA4 source for property. An empty baseURL uses
// DefaultGA4URL.
func NewGA4(c *Client, baseURL, property string) *GA4 {
	if baseURL == "" {
		baseURL = DefaultGA4URL
	}
	return &GA4{client: c, baseURL: strings.TrimRight(baseURL, "/"), property: property}
}

// Name implements Source.
func (g *GA4) Name() string { return NameGA4 }

// ga4Metrics lists the scalar metrics served. returningUsers is derived.
var ga4Metrics = map[string]bool{
	"totalUsers":      true,
	"newUsers":        true,
	"activeUsers":     true,
	"sessions":        true,
	"screenPageViews": true,
	"engagedSessions": true,
}

// ga4Dimensions lists the dimensions rows can be broken down by.
var ga4Dimensions = map[string]bool{
	"sessionDefaultChannelGroup": true,
	"country":                    true,
	"pagePath":                   true,
	"deviceCategory":             true,
}

type ga4Request struct {
	DateRanges []ga4DateRange `json:"dateRanges"`
	Dimensions []ga4Name      `json:"dimensions,omitempty"`
	Metrics    []ga4Name      `json:"metrics"`
	OrderBys   []ga4OrderBy   `json:"orderBys,omitempty"`
	Limit      int            `json:"limit,omitempty"`
}

type ga4DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type ga4Name struct {
	Name string `json:"name"`
}

type ga4OrderBy struct {
	Metric struct {
		MetricName string `json:"metricName"`
	} `json:"metric"`
	Desc bool `json:"desc"`
}

type ga4Response struct {
	Rows []struct {
		DimensionValues []struct {
			Value string `json:"value"`
		} `json:"dimensionValues"`
		MetricValues []struct {
			Value string `json:"value"`
		} `json:"metricValues"`
	} `json:"rows"`
}

// Scalar implements Source. A response without rows is a genuine zero.
func (g *GA4) Scalar(ctx context.Context, metric string, p period.Period) (float64, error) {
	if metric == "returningUsers" {
		vals, err := g.totals(ctx, p, "totalUsers", "newUsers")
		if err != nil {
			return 0, err
		}
		if r := vals[0] - vals[1]; r > 0 {
			return r, nil
		}
		return 0, nil
	}
	if !ga4Metrics[metric] {
		return 0, unknown(NameGA4, "metric", metric)
	}
	vals, err := g.totals(ctx, p, metric)
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

// totals runs one report with metrics and no dimensions.
func (g *GA4) totals(ctx context.Context, p period.Period, metrics ...string) ([]float64, error) {
	req := ga4Request{DateRanges: []ga4DateRange{{p.StartDate(), p.EndDate()}}}
	for _, m := range metrics {
		req.Metrics = append(req.Metrics, ga4Name{m})
	}
	var resp ga4Response
	if err := g.client.Post(ctx, g.reportURL(), req, &resp); err != nil {
		return nil, fmt.Errorf("ga4 runReport: %w", err)
	}
	out := make([]float64, len(metrics))
	if len(resp.Rows) == 0 {
		return out, nil
	}
	row := resp.Rows[0]
	for i := range metrics {
		if i >= len(row.MetricValues) {
			break
		}
		v, err := parseValue(row.MetricValues[i].Value)
		if err != nil {
			return nil, fmt.Errorf("ga4 %s: %w", metrics[i], err)
		}
		out[i] = v
	}
	return out, nil
}

// Rows implements Source.
func (g *GA4) Rows(ctx context.Context, dimension, metric string, p period.Period, limit int) ([]model.Row, error) {
	if !ga4Dimensions[dimension] {
		return nil, unknown(NameGA4, "dimension", dimension)
	}
	if !ga4Metrics[metric] {
		return nil, unknown(NameGA4, "metric", metric)
	}
	order := ga4OrderBy{Desc: true}
	order.Metric.MetricName = metric
	req := ga4Request{
		DateRanges: []ga4DateRange{{p.StartDate(), p.EndDate()}},
		Dimensions: []ga4Name{{dimension}},
		Metrics:    []ga4Name{{metric}},
		OrderBys:   []ga4OrderBy{order},
		Limit:      limit,
	}
	var resp ga4Response
	if err := g.client.Post(ctx, g.reportURL(), req, &resp); err != nil {
		return nil, fmt.Errorf("ga4 runReport: %w", err)
	}
	rows := make([]model.Row, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		if len(r.DimensionValues) == 0 || len(r.MetricValues) == 0 {
			return nil, fmt.Errorf("ga4 %s by %s: malformed row", metric, dimension)
		}
		v, err := parseValue(r.MetricValues[0].Value)
		if err != nil {
			return nil, fmt.Errorf("ga4 %s by %s: %w", metric, dimension, err)
		}
		rows = append(rows, model.Row{Key: r.DimensionValues[0].Value, Value: v})
	}
	return clampLimit(rows, limit), nil
}

func (g *GA4) reportURL() string {
	return fmt.Sprintf("%s/v1beta/properties/%s:runReport", g.baseURL, g.property)
}
