package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/period"
)

// LinkedIn REST API defaults.
const (
	DefaultLinkedInURL = "https://api.linkedin.com/rest"
	LinkedInVersion    = "202409"
)

// LinkedIn is the LinkedIn organization page source. The Client must carry
// the Authorization, LinkedIn-Version and X-Restli-Protocol-Version
// headers; see LinkedInHeader.
type LinkedIn struct {
	client  *Client
	baseURL string
	org     string // organization URN, urn:li:organization:<id>
}

// LinkedInHeader returns the headers every LinkedIn request needs.
func LinkedInHeader(token string) http.Header {
	return http.Header{
		"Authorization":             {"Bearer " + token},
		"Linkedin-Version":          {LinkedInVersion},
		"X-Restli-Protocol-Version": {"2.0.0"},
	}
}

// NewLinkedIn creates a source for org, given as a URN or a bare numeric id.
func NewLinkedIn(c *Client, baseURL, org string) *LinkedIn {
	if baseURL == "" {
		baseURL = DefaultLinkedInURL
	}
	if !strings.HasPrefix(org, "urn:") {
		org = "urn:li:organization:" + org
	}
	return &LinkedIn{client: c, baseURL: strings.TrimRight(baseURL, "/"), org: org}
}

// Name implements Source.
func (l *LinkedIn) Name() string { return NameLinkedIn }

// Scalar implements Source.
//
//	followers                       lifetime follower count
//	followersGained                 organic + paid follower gains in p
//	pageViews, uniquePageViews      organizationPageStatistics
//	impressions, uniqueImpressions,
//	clicks, likes, comments, shares share statistics
//	engagement                      clicks + likes + comments + shares
//	engagementRate                  engagement / impressions, in percent
func (l *LinkedIn) Scalar(ctx context.Context, metric string, p period.Period) (float64, error) {
	switch metric {
	case "followers":
		return l.followers(ctx)
	case "followersGained":
		return sumGains(l.followerGains(ctx, p))
	case "pageViews", "uniquePageViews":
		return l.pageStats(ctx, metric, p)
	case "engagementRate":
		days, err := l.shareStats(ctx, p)
		if err != nil {
			return 0, err
		}
		var total shareStatistics
		for _, d := range days {
			total.add(d.Total)
		}
		if total.Impressions == 0 {
			return 0, nil
		}
		return total.engagement() / total.Impressions * 100, nil
	}
	if !shareMetrics[metric] {
		return 0, unknown(NameLinkedIn, "metric", metric)
	}
	days, err := l.shareStats(ctx, p)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, d := range days {
		total += d.Total.value(metric)
	}
	return total, nil
}

// Series implements SeriesSource for followersGained and the share
// statistics.
func (l *LinkedIn) Series(ctx context.Context, metric string, p period.Period) ([]model.Point, error) {
	values := make(map[time.Time]float64, p.Days())
	switch {
	case metric == "followersGained":
		days, err := l.followerGains(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, d := range days {
			values[d.day()] += d.FollowerGains.Organic + d.FollowerGains.Paid
		}
	case shareMetrics[metric]:
		days, err := l.shareStats(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, d := range days {
			values[d.day()] += d.Total.value(metric)
		}
	default:
		return nil, unknown(NameLinkedIn, "series", metric)
	}
	return daily(p, values), nil
}

// Rows implements Source. The only dimension is post: the organization's
// posts published in p, valued by impressions, clicks or engagement. The
// 50 most recent posts are considered.
func (l *LinkedIn) Rows(ctx context.Context, dimension, metric string, p period.Period, limit int) ([]model.Row, error) {
	if dimension != "post" {
		return nil, unknown(NameLinkedIn, "dimension", dimension)
	}
	if !shareMetrics[metric] {
		return nil, unknown(NameLinkedIn, "metric", metric)
	}
	posts, err := l.posts(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return []model.Row{}, nil
	}
	stats, err := l.postStats(ctx, posts)
	if err != nil {
		return nil, err
	}
	rows := make([]model.Row, 0, len(posts))
	for _, post := range posts {
		rows = append(rows, model.Row{
			Key:   post.ID,
			Label: caption(post.Commentary),
			Value: stats[post.ID].value(metric),
		})
	}
	return clampLimit(rankRows(rows), limit), nil
}

// ─── Statistics ───────────────────────────────────────────────────────────────

var shareMetrics = map[string]bool{
	"impressions":       true,
	"uniqueImpressions": true,
	"clicks":            true,
	"likes":             true,
	"comments":          true,
	"shares":            true,
	"engagement":        true,
}

type shareStatistics struct {
	Impressions       float64 `json:"impressionCount"`
	UniqueImpressions float64 `json:"uniqueImpressionsCount"`
	Clicks            float64 `json:"clickCount"`
	Likes             float64 `json:"likeCount"`
	Comments          float64 `json:"commentCount"`
	Shares            float64 `json:"shareCount"`
}

func (s *shareStatistics) add(o shareStatistics) {
	s.Impressions += o.Impressions
	s.UniqueImpressions += o.UniqueImpressions
	s.Clicks += o.Clicks
	s.Likes += o.Likes
	s.Comments += o.Comments
	s.Shares += o.Shares
}

func (s shareStatistics) engagement() float64 {
	return s.Clicks + s.Likes + s.Comments + s.Shares
}

func (s shareStatistics) value(metric string) float64 {
	switch metric {
	case "impressions":
		return s.Impressions
	case "uniqueImpressions":
		return s.UniqueImpressions
	case "clicks":
		return s.Clicks
	case "likes":
		return s.Likes
	case "comments":
		return s.Comments
	case "shares":
		return s.Shares
	case "engagement":
		return s.engagement()
	}
	return 0
}

type timeRange struct {
	TimeRange struct {
		Start int64 `json:"start"`
	} `json:"timeRange"`
}

func (t timeRange) day() time.Time {
	return day(time.UnixMilli(t.TimeRange.Start))
}

type shareDay struct {
	timeRange
	Total shareStatistics `json:"totalShareStatistics"`
}

type followerDay struct {
	timeRange
	FollowerGains struct {
		Organic float64 `json:"organicFollowerGain"`
		Paid    float64 `json:"paidFollowerGain"`
	} `json:"followerGains"`
}

func sumGains(days []followerDay, err error) (float64, error) {
	if err != nil {
		return 0, err
	}
	var total float64
	for _, d := range days {
		total += d.FollowerGains.Organic + d.FollowerGains.Paid
	}
	return total, nil
}

func (l *LinkedIn) followers(ctx context.Context) (float64, error) {
	u := fmt.Sprintf("%s/networkSizes/%s?edgeType=COMPANY_FOLLOWED_BY_MEMBER", l.baseURL, url.PathEscape(l.org))
	var resp struct {
		FirstDegreeSize float64 `json:"firstDegreeSize"`
	}
	if err := l.client.Get(ctx, u, &resp); err != nil {
		return 0, fmt.Errorf("linkedin networkSizes: %w", err)
	}
	return resp.FirstDegreeSize, nil
}

func (l *LinkedIn) followerGains(ctx context.Context, p period.Period) ([]followerDay, error) {
	var resp struct {
		Elements []followerDay `json:"elements"`
	}
	if err := l.client.Get(ctx, l.statsURL("organizationalEntityFollowerStatistics", "organizationalEntity", p), &resp); err != nil {
		return nil, fmt.Errorf("linkedin follower statistics: %w", err)
	}
	return resp.Elements, nil
}

func (l *LinkedIn) pageStats(ctx context.Context, metric string, p period.Period) (float64, error) {
	var resp struct {
		Elements []struct {
			Total struct {
				Views struct {
					AllPageViews struct {
						PageViews       float64 `json:"pageViews"`
						UniquePageViews float64 `json:"uniquePageViews"`
					} `json:"allPageViews"`
				} `json:"views"`
			} `json:"totalPageStatistics"`
		} `json:"elements"`
	}
	if err := l.client.Get(ctx, l.statsURL("organizationPageStatistics", "organization", p), &resp); err != nil {
		return 0, fmt.Errorf("linkedin page statistics: %w", err)
	}
	var total float64
	for _, e := range resp.Elements {
		if metric == "uniquePageViews" {
			total += e.Total.Views.AllPageViews.UniquePageViews
		} else {
			total += e.Total.Views.AllPageViews.PageViews
		}
	}
	return total, nil
}

func (l *LinkedIn) shareStats(ctx context.Context, p period.Period) ([]shareDay, error) {
	var resp struct {
		Elements []shareDay `json:"elements"`
	}
	if err := l.client.Get(ctx, l.statsURL("organizationalEntityShareStatistics", "organizationalEntity", p), &resp); err != nil {
		return nil, fmt.Errorf("linkedin share statistics: %w", err)
	}
	return resp.Elements, nil
}

// ─── Posts ────────────────────────────────────────────────────────────────────

type liPost struct {
	ID          string `json:"id"`
	Commentary  string `json:"commentary"`
	CreatedAt   int64  `json:"createdAt"`
	PublishedAt int64  `json:"publishedAt"`
}

func (p liPost) published() time.Time {
	if p.PublishedAt > 0 {
		return time.UnixMilli(p.PublishedAt)
	}
	return time.UnixMilli(p.CreatedAt)
}

// posts returns the organization's posts published in p.
func (l *LinkedIn) posts(ctx context.Context, p period.Period) ([]liPost, error) {
	u := fmt.Sprintf("%s/posts?q=author&author=%s&count=50&sortBy=LAST_MODIFIED",
		l.baseURL, url.QueryEscape(l.org))
	var resp struct {
		Elements []liPost `json:"elements"`
	}
	if err := l.client.Get(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("linkedin posts: %w", err)
	}
	until := p.End.AddDate(0, 0, 1)
	var out []liPost
	for _, post := range resp.Elements {
		if d := day(post.published()); d.Before(p.Start) || !d.Before(until) {
			continue
		}
		out = append(out, post)
	}
	return out, nil
}

// postStats returns lifetime share statistics keyed by post URN. Share and
// ugcPost URNs go in separate Rest.li lists.
func (l *LinkedIn) postStats(ctx context.Context, posts []liPost) (map[string]shareStatistics, error) {
	var shares, ugc []string
	for _, p := range posts {
		if strings.HasPrefix(p.ID, "urn:li:ugcPost:") {
			ugc = append(ugc, url.QueryEscape(p.ID))
		} else {
			shares = append(shares, url.QueryEscape(p.ID))
		}
	}
	u := fmt.Sprintf("%s/organizationalEntityShareStatistics?q=organizationalEntity&organizationalEntity=%s",
		l.baseURL, url.QueryEscape(l.org))
	if len(shares) > 0 {
		u += "&shares=List(" + strings.Join(shares, ",") + ")"
	}
	if len(ugc) > 0 {
		u += "&ugcPosts=List(" + strings.Join(ugc, ",") + ")"
	}
	var resp struct {
		Elements []struct {
			Share   string          `json:"share"`
			UGCPost string          `json:"ugcPost"`
			Total   shareStatistics `json:"totalShareStatistics"`
		} `json:"elements"`
	}
	if err := l.client.Get(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("linkedin post statistics: %w", err)
	}
	out := make(map[string]shareStatistics, len(resp.Elements))
	for _, e := range resp.Elements {
		key := e.Share
		if key == "" {
			key = e.UGCPost
		}
		out[key] = e.Total
	}
	return out, nil
}

// statsURL builds a Rest.li finder URL. The timeIntervals value is Rest.li
// syntax and must not be percent-encoded; the URN must be.
func (l *LinkedIn) statsURL(resource, finder string, p period.Period) string {
	start := p.Start.UnixMilli()
	end := p.End.AddDate(0, 0, 1).UnixMilli()
	return fmt.Sprintf("%s/%s?q=%s&%s=%s&timeIntervals=(timeRange:(start:%d,end:%d),timeGranularityType:DAY)",
		l.baseURL, resource, finder, finder, url.QueryEscape(l.org), start, end)
}
