package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/period"
)

// YouTube API bases.
const (
	DefaultYouTubeAnalyticsURL = "https://youtubeanalytics.googleapis.com"
	DefaultYouTubeDataURL      = "https://www.googleapis.com"
)

// YouTube combines the YouTube Analytics API (period metrics) and the
// YouTube Data API (subscriber count, video titles).
type YouTube struct {
	client       *Client
	analyticsURL string
	dataURL      string
	channel      string // channel id; empty means the authorized channel
}

// NewYouTube creates a YouTube source. Empty URLs use the defaults.
func NewYouTube(c *Client, analyticsURL, dataURL, channel string) *YouTube {
	if analyticsURL == "" {
		analyticsURL = DefaultYouTubeAnalyticsURL
	}
	if dataURL == "" {
		dataURL = DefaultYouTubeDataURL
	}
	return &YouTube{
		client:       c,
		analyticsURL: strings.TrimRight(analyticsURL, "/"),
		dataURL:      strings.TrimRight(dataURL, "/"),
		channel:      channel,
	}
}

// Name implements Source.
func (y *YouTube) Name() string { return NameYouTube }

var ytMetrics = map[string]bool{
	"views":                   true,
	"estimatedMinutesWatched": true,
	"subscribersGained":       true,
	"subscribersLost":         true,
	"likes":                   true,
	"comments":                true,
	"shares":                  true,
}

type ytReport struct {
	ColumnHeaders []struct {
		Name string `json:"name"`
	} `json:"columnHeaders"`
	Rows [][]json.RawMessage `json:"rows"`
}

// netSubscribers is derived: subscribersGained minus subscribersLost.
const netSubscribers = "netSubscribers"

// reportMetrics returns the Analytics API metrics behind metric.
func reportMetrics(metric string) (string, bool) {
	if metric == netSubscribers {
		return "subscribersGained,subscribersLost", true
	}
	return metric, ytMetrics[metric]
}

// cellValue reads metric from the metric cells of one report row.
func cellValue(metric string, cells []json.RawMessage) (float64, error) {
	if len(cells) == 0 {
		return 0, nil
	}
	v, err := rawNumber(cells[0])
	if err != nil || metric != netSubscribers {
		return v, err
	}
	if len(cells) < 2 {
		return 0, fmt.Errorf("youtube %s: malformed row", metric)
	}
	lost, err := rawNumber(cells[1])
	if err != nil {
		return 0, err
	}
	return v - lost, nil
}

// Scalar implements Source. "subscribers" is the lifetime subscriber count
// and is the same for any period; "netSubscribers" is gains minus losses in
// p.
func (y *YouTube) Scalar(ctx context.Context, metric string, p period.Period) (float64, error) {
	if metric == "subscribers" {
		return y.subscribers(ctx)
	}
	metrics, ok := reportMetrics(metric)
	if !ok {
		return 0, unknown(NameYouTube, "metric", metric)
	}
	rep, err := y.report(ctx, p, metrics, "", "", 0)
	if err != nil {
		return 0, err
	}
	if len(rep.Rows) == 0 {
		return 0, nil
	}
	return cellValue(metric, rep.Rows[0])
}

// Series implements SeriesSource for every report metric, netSubscribers
// included.
func (y *YouTube) Series(ctx context.Context, metric string, p period.Period) ([]model.Point, error) {
	metrics, ok := reportMetrics(metric)
	if !ok {
		return nil, unknown(NameYouTube, "series", metric)
	}
	rep, err := y.report(ctx, p, metrics, "day", "day", 0)
	if err != nil {
		return nil, err
	}
	values := make(map[time.Time]float64, len(rep.Rows))
	for _, r := range rep.Rows {
		if len(r) < 2 {
			return nil, fmt.Errorf("youtube %s by day: malformed row", metric)
		}
		var key string
		if err := json.Unmarshal(r[0], &key); err != nil {
			return nil, fmt.Errorf("youtube %s by day: malformed day: %w", metric, err)
		}
		d, err := time.Parse("2006-01-02", key)
		if err != nil {
			return nil, fmt.Errorf("youtube %s by day: malformed day %q", metric, key)
		}
		v, err := cellValue(metric, r[1:])
		if err != nil {
			return nil, err
		}
		values[d] = v
	}
	return daily(p, values), nil
}

// Rows implements Source. Dimensions are video (keyed by video id and
// labeled with the title when it can be looked up) and
// insightTrafficSourceType.
func (y *YouTube) Rows(ctx context.Context, dimension, metric string, p period.Period, limit int) ([]model.Row, error) {
	if dimension != "video" && dimension != "insightTrafficSourceType" {
		return nil, unknown(NameYouTube, "dimension", dimension)
	}
	if !ytMetrics[metric] {
		return nil, unknown(NameYouTube, "metric", metric)
	}
	maxResults := 0
	if dimension == "video" {
		maxResults = limit
	}
	rep, err := y.report(ctx, p, metric, dimension, "-"+metric, maxResults)
	if err != nil {
		return nil, err
	}
	rows := make([]model.Row, 0, len(rep.Rows))
	for _, r := range rep.Rows {
		if len(r) < 2 {
			return nil, fmt.Errorf("youtube %s by %s: malformed row", metric, dimension)
		}
		var key string
		if err := json.Unmarshal(r[0], &key); err != nil {
			return nil, fmt.Errorf("youtube %s by %s: malformed key: %w", metric, dimension, err)
		}
		v, err := rawNumber(r[1])
		if err != nil {
			return nil, err
		}
		rows = append(rows, model.Row{Key: key, Value: v})
	}
	rows = clampLimit(rows, limit)

	if dimension == "video" && len(rows) > 0 {
		titles, err := y.titles(ctx, rows)
		if err != nil {
			// Titles are cosmetic; ids still identify the rows.
			slog.Debug("youtube title lookup failed", "err", err)
		}
		for i := range rows {
			rows[i].Label = titles[rows[i].Key]
		}
	}
	return rows, nil
}

func (y *YouTube) report(ctx context.Context, p period.Period, metrics, dimension, sort string, maxResults int) (*ytReport, error) {
	ids := "channel==MINE"
	if y.channel != "" {
		ids = "channel==" + y.channel
	}
	params := url.Values{
		"ids":       {ids},
		"startDate": {p.StartDate()},
		"endDate":   {p.EndDate()},
		"metrics":   {metrics},
	}
	if dimension != "" {
		params.Set("dimensions", dimension)
	}
	if sort != "" {
		params.Set("sort", sort)
	}
	if maxResults > 0 {
		params.Set("maxResults", strconv.Itoa(maxResults))
	}
	var rep ytReport
	if err := y.client.Get(ctx, WithQuery(y.analyticsURL+"/v2/reports", params), &rep); err != nil {
		return nil, fmt.Errorf("youtube reports: %w", err)
	}
	return &rep, nil
}

func (y *YouTube) subscribers(ctx context.Context) (float64, error) {
	params := url.Values{"part": {"statistics"}}
	if y.channel != "" {
		params.Set("id", y.channel)
	} else {
		params.Set("mine", "true")
	}
	var resp struct {
		Items []struct {
			Statistics struct {
				SubscriberCount string `json:"subscriberCount"`
			} `json:"statistics"`
		} `json:"items"`
	}
	if err := y.client.Get(ctx, WithQuery(y.dataURL+"/youtube/v3/channels", params), &resp); err != nil {
		return 0, fmt.Errorf("youtube channels: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, nil
	}
	return parseValue(resp.Items[0].Statistics.SubscriberCount)
}

// titles looks up video titles by id. The returned map is never nil.
func (y *YouTube) titles(ctx context.Context, rows []model.Row) (map[string]string, error) {
	out := make(map[string]string, len(rows))
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.Key
	}
	params := url.Values{"part": {"snippet"}, "id": {strings.Join(ids, ",")}}
	var resp struct {
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := y.client.Get(ctx, WithQuery(y.dataURL+"/youtube/v3/videos", params), &resp); err != nil {
		return out, err
	}
	for _, it := range resp.Items {
		out[it.ID] = it.Snippet.Title
	}
	return out, nil
}

// rawNumber decodes a report cell that is either a JSON number or a
// numeric string.
func rawNumber(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("malformed value %s", raw)
	}
	return parseValue(s)
}
