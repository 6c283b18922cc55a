package source

import (
	"context"
	"fmt"
	"net/url"

	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/period"
)

// Facebook is the Facebook Page Insights source.
type Facebook struct {
	graph
	page string
}

// NewFacebook creates a source for page using a page access token.
func NewFacebook(c *Client, baseURL, page, token string) *Facebook {
	return &Facebook{graph: newGraph(c, baseURL, token), page: page}
}

// Name implements Source.
func (f *Facebook) Name() string { return NameFacebook }

// fbInsights maps the daily page insights to how a period is reduced:
// flows are summed, cumulative totals take the last day of the window.
var fbInsights = map[string]reducer{
	"page_impressions":        sumDays,
	"page_impressions_unique": sumDays,
	"page_post_engagements":   sumDays,
	"page_fan_adds":           sumDays,
	"page_views_total":        sumDays,
	"page_fans":               lastDay,
	"page_follows":            lastDay,
}

type reducer int

const (
	sumDays reducer = iota
	lastDay
)

// Scalar implements Source.
//
//	page_fans, page_follows   running totals at the end of p
//	posts                     posts published in p
//	followers_count           lifetime follower count; ignores p
//	other insights            daily values summed over p
func (f *Facebook) Scalar(ctx context.Context, metric string, p period.Period) (float64, error) {
	if metric == "followers_count" {
		var resp struct {
			FollowersCount float64 `json:"followers_count"`
		}
		if err := f.get(ctx, f.page, url.Values{"fields": {"followers_count"}}, &resp); err != nil {
			return 0, fmt.Errorf("facebook page: %w", err)
		}
		return resp.FollowersCount, nil
	}
	if metric == "posts" {
		posts, err := f.posts(ctx, p, "id")
		if err != nil {
			return 0, err
		}
		return float64(len(posts)), nil
	}
	red, ok := fbInsights[metric]
	if !ok {
		return 0, unknown(NameFacebook, "metric", metric)
	}
	params := graphRange(p)
	params.Set("period", "day")
	var resp graphInsights
	if err := f.get(ctx, f.page+"/insights/"+metric, params, &resp); err != nil {
		return 0, fmt.Errorf("facebook insights: %w", err)
	}
	if red == lastDay {
		return resp.last()
	}
	return resp.sum()
}

// Series implements SeriesSource for every daily insight.
func (f *Facebook) Series(ctx context.Context, metric string, p period.Period) ([]model.Point, error) {
	if _, ok := fbInsights[metric]; !ok {
		return nil, unknown(NameFacebook, "series", metric)
	}
	pts, err := f.insightSeries(ctx, f.page+"/insights/"+metric, nil, p)
	if err != nil {
		return nil, fmt.Errorf("facebook insights: %w", err)
	}
	return pts, nil
}

type fbPost struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Likes   struct {
		Summary struct {
			TotalCount float64 `json:"total_count"`
		} `json:"summary"`
	} `json:"likes"`
	Comments struct {
		Summary struct {
			TotalCount float64 `json:"total_count"`
		} `json:"summary"`
	} `json:"comments"`
	Shares struct {
		Count float64 `json:"count"`
	} `json:"shares"`
}

type fbPosts struct {
	Data   []fbPost `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// Rows implements Source. The only dimension is post; metrics are likes,
// comments and shares.
func (f *Facebook) Rows(ctx context.Context, dimension, metric string, p period.Period, limit int) ([]model.Row, error) {
	if dimension != "post" {
		return nil, unknown(NameFacebook, "dimension", dimension)
	}
	if metric != "likes" && metric != "comments" && metric != "shares" {
		return nil, unknown(NameFacebook, "metric", metric)
	}
	posts, err := f.posts(ctx, p, "id,message,likes.summary(true).limit(0),comments.summary(true).limit(0),shares")
	if err != nil {
		return nil, err
	}
	rows := make([]model.Row, 0, len(posts))
	for _, post := range posts {
		var v float64
		switch metric {
		case "likes":
			v = post.Likes.Summary.TotalCount
		case "comments":
			v = post.Comments.Summary.TotalCount
		case "shares":
			v = post.Shares.Count
		}
		rows = append(rows, model.Row{Key: post.ID, Label: caption(post.Message), Value: v})
	}
	return clampLimit(rankRows(rows), limit), nil
}

// posts lists the page's posts published in p, following paging.next up to
// maxGraphPages pages.
func (f *Facebook) posts(ctx context.Context, p period.Period, fields string) ([]fbPost, error) {
	params := graphRange(p)
	params.Set("limit", "100")
	params.Set("fields", fields)

	var out []fbPost
	var page fbPosts
	if err := f.get(ctx, f.page+"/posts", params, &page); err != nil {
		return nil, fmt.Errorf("facebook posts: %w", err)
	}
	for n := 1; ; n++ {
		out = append(out, page.Data...)
		if page.Paging.Next == "" || n >= maxGraphPages {
			break
		}
		next := page.Paging.Next
		page = fbPosts{}
		if err := f.client.Get(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("facebook posts page %d: %w", n+1, err)
		}
	}
	return out, nil
}
