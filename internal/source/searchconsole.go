package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/period"
)

// DefaultSearchConsoleURL is the Search Console API base.
const DefaultSearchConsoleURL = "https://www.googleapis.com"

// SearchConsole is the Google Search Console search analytics source.
type SearchConsole struct {
	client  *Client
	baseURL string
	site    string
}

// NewSearchConsole creates a source for site (e.g.
// "https://www.example.com/").
func NewSearchConsole(c *Client, baseURL, site string) *SearchConsole {
	if baseURL == "" {
		baseURL = DefaultSearchConsoleURL
	}
	return &SearchConsole{client: c, baseURL: strings.TrimRight(baseURL, "/"), site: site}
}

// Name implements Source.
func (s *SearchConsole) Name() string { return NameSearchConsole }

type gscRequest struct {
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Dimensions []string `json:"dimensions,omitempty"`
	RowLimit   int      `json:"rowLimit,omitempty"`
}

type gscRow struct {
	Keys        []string `json:"keys"`
	Clicks      float64  `json:"clicks"`
	Impressions float64  `json:"impressions"`
	CTR         float64  `json:"ctr"`
	Position    float64  `json:"position"`
}

type gscResponse struct {
	Rows []gscRow `json:"rows"`
}

// pick returns the named metric of r. ctr is reported as a percentage.
func (r gscRow) pick(metric string) (float64, bool) {
	switch metric {
	case "clicks":
		return r.Clicks, true
	case "impressions":
		return r.Impressions, true
	case "ctr":
		return r.CTR * 100, true
	case "position":
		return r.Position, true
	}
	return 0, false
}

// Scalar implements Source.
func (s *SearchConsole) Scalar(ctx context.Context, metric string, p period.Period) (float64, error) {
	if _, ok := (gscRow{}).pick(metric); !ok {
		return 0, unknown(NameSearchConsole, "metric", metric)
	}
	resp, err := s.query(ctx, gscRequest{StartDate: p.StartDate(), EndDate: p.EndDate(), RowLimit: 1})
	if err != nil {
		return 0, err
	}
	if len(resp.Rows) == 0 {
		return 0, nil
	}
	v, _ := resp.Rows[0].pick(metric)
	return v, nil
}

// Rows implements Source. Dimensions are page, query, country or device;
// the API ranks rows by clicks.
func (s *SearchConsole) Rows(ctx context.Context, dimension, metric string, p period.Period, limit int) ([]model.Row, error) {
	switch dimension {
	case "page", "query", "country", "device":
	default:
		return nil, unknown(NameSearchConsole, "dimension", dimension)
	}
	if _, ok := (gscRow{}).pick(metric); !ok {
		return nil, unknown(NameSearchConsole, "metric", metric)
	}
	resp, err := s.query(ctx, gscRequest{
		StartDate:  p.StartDate(),
		EndDate:    p.EndDate(),
		Dimensions: []string{dimension},
		RowLimit:   limit,
	})
	if err != nil {
		return nil, err
	}
	rows := make([]model.Row, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		if len(r.Keys) == 0 {
			return nil, fmt.Errorf("searchconsole %s by %s: row without keys", metric, dimension)
		}
		v, _ := r.pick(metric)
		rows = append(rows, model.Row{Key: r.Keys[0], Value: v})
	}
	return clampLimit(rows, limit), nil
}

func (s *SearchConsole) query(ctx context.Context, req gscRequest) (*gscResponse, error) {
	u := fmt.Sprintf("%s/webmasters/v3/sites/%s/searchAnalytics/query", s.baseURL, url.PathEscape(s.site))
	var resp gscResponse
	if err := s.client.Post(ctx, u, req, &resp); err != nil {
		return nil, fmt.Errorf("searchconsole query: %w", err)
	}
	return &resp, nil
}
