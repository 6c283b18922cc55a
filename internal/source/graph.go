package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/period"
)

// DefaultGraphURL is the versioned Graph API base shared by Facebook and
// Instagram.
const DefaultGraphURL = "https://graph.facebook.com/v19.0"

// maxGraphPages bounds paging.next traversal.
const maxGraphPages = 10

// maxInsightDays is the longest since/until span one insights request may
// cover.
const maxInsightDays = 30

// graphTimestamp is the Graph API end_time and media timestamp layout.
const graphTimestamp = "2006-01-02T15:04:05-0700"

// graph is a Graph API caller bound to one access token.
type graph struct {
	client  *Client
	baseURL string
	token   string
}

func newGraph(c *Client, baseURL, token string) graph {
	if baseURL == "" {
		baseURL = DefaultGraphURL
	}
	return graph{client: c, baseURL: strings.TrimRight(baseURL, "/"), token: token}
}

func (g graph) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", g.token)
	return g.client.Get(ctx, WithQuery(g.baseURL+"/"+strings.TrimLeft(path, "/"), params), out)
}

type graphInsights struct {
	Data []struct {
		Name   string `json:"name"`
		Period string `json:"period"`
		Values []struct {
			Value   json.RawMessage `json:"value"`
			EndTime string          `json:"end_time"`
		} `json:"values"`
	} `json:"data"`
}

// sum adds up every daily value of the first series.
func (gi graphInsights) sum() (float64, error) {
	if len(gi.Data) == 0 {
		return 0, nil
	}
	var total float64
	for _, v := range gi.Data[0].Values {
		n, err := rawNumber(v.Value)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", gi.Data[0].Name, err)
		}
		total += n
	}
	return total, nil
}

// last returns the final daily value of the first series. Cumulative
// insights (page_fans, page_follows) report a running total per day, so the
// value at the end of the window is the period's figure.
func (gi graphInsights) last() (float64, error) {
	if len(gi.Data) == 0 || len(gi.Data[0].Values) == 0 {
		return 0, nil
	}
	vs := gi.Data[0].Values
	n, err := rawNumber(vs[len(vs)-1].Value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", gi.Data[0].Name, err)
	}
	return n, nil
}

// days collects the first series' values by day. A daily end_time marks the
// end of the day it reports on, so the day is the one before end_time.
func (gi graphInsights) days(into map[time.Time]float64) error {
	if len(gi.Data) == 0 {
		return nil
	}
	for _, v := range gi.Data[0].Values {
		end, err := time.Parse(graphTimestamp, v.EndTime)
		if err != nil {
			return fmt.Errorf("%s: malformed end_time %q", gi.Data[0].Name, v.EndTime)
		}
		n, err := rawNumber(v.Value)
		if err != nil {
			return fmt.Errorf("%s: %w", gi.Data[0].Name, err)
		}
		into[day(end).AddDate(0, 0, -1)] += n
	}
	return nil
}

// insightSeries fetches a daily insight over p in spans of at most
// maxInsightDays. params carries the metric selection; since, until and
// period are set here.
func (g graph) insightSeries(ctx context.Context, path string, params url.Values, p period.Period) ([]model.Point, error) {
	values := make(map[time.Time]float64, p.Days())
	for start := p.Start; !start.After(p.End); start = start.AddDate(0, 0, maxInsightDays) {
		end := start.AddDate(0, 0, maxInsightDays-1)
		if end.After(p.End) {
			end = p.End
		}
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		for k, v := range graphRange(period.Period{Start: start, End: end}) {
			q[k] = v
		}
		q.Set("period", "day")
		var resp graphInsights
		if err := g.get(ctx, path, q, &resp); err != nil {
			return nil, err
		}
		if err := resp.days(values); err != nil {
			return nil, err
		}
	}
	return daily(p, values), nil
}

// graphRange returns since/until for p. until is exclusive upstream, so it
// is the day after p.End.
func graphRange(p period.Period) url.Values {
	return url.Values{
		"since": {p.StartDate()},
		"until": {p.End.AddDate(0, 0, 1).Format("2006-01-02")},
	}
}

// rankRows orders rows by value descending, keeping upstream order on ties.
func rankRows(rows []model.Row) []model.Row {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Value > rows[j].Value })
	return rows
}

// caption shortens post text for display.
func caption(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > 60 {
		return string(r[:60]) + "..."
	}
	return s
}
