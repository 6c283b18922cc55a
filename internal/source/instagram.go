package source

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/period"
)

// Instagram is the Instagram business account source.
type Instagram struct {
	graph
	user string
}

// NewInstagram creates a source for the business account user.
func NewInstagram(c *Client, baseURL, user, token string) *Instagram {
	return &Instagram{graph: newGraph(c, baseURL, token), user: user}
}

// Name implements Source.
func (i *Instagram) Name() string { return NameInstagram }

var igInsights = map[string]bool{
	"impressions":   true,
	"reach":         true,
	"profile_views": true,
}

// Scalar implements Source. followers_count is a lifetime total; posts
// counts the media published in p.
func (i *Instagram) Scalar(ctx context.Context, metric string, p period.Period) (float64, error) {
	switch {
	case metric == "posts":
		media, err := i.media(ctx, p)
		if err != nil {
			return 0, err
		}
		return float64(len(media)), nil
	case metric == "followers_count":
		var resp struct {
			FollowersCount float64 `json:"followers_count"`
		}
		if err := i.get(ctx, i.user, url.Values{"fields": {"followers_count"}}, &resp); err != nil {
			return 0, fmt.Errorf("instagram account: %w", err)
		}
		return resp.FollowersCount, nil
	case igInsights[metric]:
		params := graphRange(p)
		params.Set("metric", metric)
		params.Set("period", "day")
		var resp graphInsights
		if err := i.get(ctx, i.user+"/insights", params, &resp); err != nil {
			return 0, fmt.Errorf("instagram insights: %w", err)
		}
		return resp.sum()
	}
	return 0, unknown(NameInstagram, "metric", metric)
}

// Series implements SeriesSource for the daily account insights.
func (i *Instagram) Series(ctx context.Context, metric string, p period.Period) ([]model.Point, error) {
	if !igInsights[metric] {
		return nil, unknown(NameInstagram, "series", metric)
	}
	pts, err := i.insightSeries(ctx, i.user+"/insights", url.Values{"metric": {metric}}, p)
	if err != nil {
		return nil, fmt.Errorf("instagram insights: %w", err)
	}
	return pts, nil
}

// Rows implements Source. The only dimension is post; metrics are
// like_count and comments_count.
func (i *Instagram) Rows(ctx context.Context, dimension, metric string, p period.Period, limit int) ([]model.Row, error) {
	if dimension != "post" {
		return nil, unknown(NameInstagram, "dimension", dimension)
	}
	if metric != "like_count" && metric != "comments_count" {
		return nil, unknown(NameInstagram, "metric", metric)
	}
	media, err := i.media(ctx, p)
	if err != nil {
		return nil, err
	}
	rows := make([]model.Row, 0, len(media))
	for _, m := range media {
		v := m.LikeCount
		if metric == "comments_count" {
			v = m.CommentsCount
		}
		rows = append(rows, model.Row{Key: m.ID, Label: caption(m.Caption), Value: v})
	}
	return clampLimit(rankRows(rows), limit), nil
}

type igMedia struct {
	ID            string  `json:"id"`
	Caption       string  `json:"caption"`
	Timestamp     string  `json:"timestamp"`
	LikeCount     float64 `json:"like_count"`
	CommentsCount float64 `json:"comments_count"`
}

// media returns the account's media published in p. The media endpoint has
// no date filter, so the most recent 50 posts are filtered to p.
func (i *Instagram) media(ctx context.Context, p period.Period) ([]igMedia, error) {
	params := url.Values{
		"fields": {"id,caption,timestamp,like_count,comments_count"},
		"limit":  {"50"},
	}
	var resp struct {
		Data []igMedia `json:"data"`
	}
	if err := i.get(ctx, i.user+"/media", params, &resp); err != nil {
		return nil, fmt.Errorf("instagram media: %w", err)
	}

	until := p.End.AddDate(0, 0, 1)
	var out []igMedia
	for _, m := range resp.Data {
		ts, err := time.Parse(graphTimestamp, m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("instagram media %s: malformed timestamp %q", m.ID, m.Timestamp)
		}
		if d := day(ts); d.Before(p.Start) || !d.Before(until) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
