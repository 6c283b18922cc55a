package source_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salasarservices/pulse/internal/period"
	"github.com/salasarservices/pulse/internal/source"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

func testClient(t *testing.T, opts source.ClientOptions) *source.Client {
	t.Helper()
	if opts.Backoff == 0 {
		opts.Backoff = time.Millisecond
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	return source.NewClient(opts)
}

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

var august = period.MonthOf(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)).Current

// ─── Client ───────────────────────────────────────────────────────────────────

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]int{"n": 7})
	})
	c := testClient(t, source.ClientOptions{Name: "t", Retries: 2})

	var out struct{ N int }
	require.NoError(t, c.Get(context.Background(), srv.URL, &out))
	assert.Equal(t, 7, out.N)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c := testClient(t, source.ClientOptions{Name: "t", Retries: 1})

	err := c.Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.False(t, source.IsAuth(err))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestClientAuthFailureIsNotRetried(t *testing.T) {
	var calls int32
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]interface{}{
			"error": map[string]interface{}{"code": 401, "message": "Request had invalid credentials.", "status": "UNAUTHENTICATED"},
		})
	})
	c := testClient(t, source.ClientOptions{Name: "t", Retries: 3})

	err := c.Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.True(t, source.IsAuth(err))
	assert.True(t, errors.Is(err, source.ErrAuth))
	assert.Contains(t, err.Error(), "invalid credentials")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClientGraphExpiredTokenIsAuth(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]interface{}{
			"error": map[string]interface{}{"message": "Error validating access token", "type": "OAuthException", "code": 190},
		})
	})
	err := testClient(t, source.ClientOptions{}).Get(context.Background(), srv.URL, nil)
	assert.True(t, source.IsAuth(err))
}

func TestClientBadRequestIsNotAuth(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]interface{}{
			"error": map[string]interface{}{"code": 400, "message": "Field foo is not a valid metric.", "status": "INVALID_ARGUMENT"},
		})
	})
	err := testClient(t, source.ClientOptions{}).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.False(t, source.IsAuth(err))
	var se *source.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 400, se.Status)
}

func TestClientRedactsSecrets(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "bad token s3cr3t-token")
	})
	c := testClient(t, source.ClientOptions{Secrets: []string{"s3cr3t-token"}})
	err := c.Get(context.Background(), srv.URL+"?access_token=s3cr3t-token", nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "s3cr3t-token")
	assert.Contains(t, err.Error(), "REDACTED")
}

func TestClientSendsHeaders(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))
		writeJSON(w, map[string]int{})
	})
	c := testClient(t, source.ClientOptions{Header: source.LinkedInHeader("tok")})
	require.NoError(t, c.Get(context.Background(), srv.URL, nil))
}

func TestGoogleRefreshFailureIsAuth(t *testing.T) {
	tokenSrv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`)
	})
	var apiCalls int32
	api := serve(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		writeJSON(w, map[string]int{})
	})

	auth := source.GoogleAuth{ClientID: "id", ClientSecret: "secret", RefreshToken: "rt", TokenURL: tokenSrv.URL}
	c := testClient(t, source.ClientOptions{HTTPClient: auth.HTTPClient(context.Background(), 5*time.Second), Retries: 2})

	err := c.Get(context.Background(), api.URL, nil)
	require.Error(t, err)
	assert.True(t, source.IsAuth(err))
	assert.EqualValues(t, 0, atomic.LoadInt32(&apiCalls))
}

func TestGoogleAccessTokenAttached(t *testing.T) {
	tokenSrv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"access_token": "at-123", "token_type": "Bearer", "expires_in": 3600})
	})
	api := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-123", r.Header.Get("Authorization"))
		writeJSON(w, map[string]int{})
	})
	auth := source.GoogleAuth{ClientID: "id", ClientSecret: "secret", RefreshToken: "rt", TokenURL: tokenSrv.URL}
	c := testClient(t, source.ClientOptions{HTTPClient: auth.HTTPClient(context.Background(), 5*time.Second)})
	require.NoError(t, c.Get(context.Background(), api.URL, nil))
}

// ─── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry(t *testing.T) {
	reg := source.NewRegistry(source.Unauthenticated(source.NameGA4, "missing refresh token"))
	assert.Equal(t, []string{"ga4"}, reg.Names())

	_, err := reg.Get(source.NameFacebook)
	assert.True(t, errors.Is(err, source.ErrNotConfigured))
	assert.False(t, source.IsAuth(err))

	ga4, err := reg.Get(source.NameGA4)
	require.NoError(t, err)
	_, err = ga4.Scalar(context.Background(), "totalUsers", august)
	assert.True(t, source.IsAuth(err))
	_, err = ga4.Rows(context.Background(), "country", "activeUsers", august, 5)
	assert.True(t, source.IsAuth(err))
}

// ─── GA4 ──────────────────────────────────────────────────────────────────────

func TestGA4Scalar(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/properties/123:runReport", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		ranges := body["dateRanges"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "2025-08-01", ranges["startDate"])
		assert.Equal(t, "2025-08-31", ranges["endDate"])
		writeJSON(w, map[string]interface{}{
			"rows": []interface{}{map[string]interface{}{"metricValues": []interface{}{map[string]string{"value": "1520"}}}},
		})
	})
	g := source.NewGA4(testClient(t, source.ClientOptions{}), srv.URL, "123")
	v, err := g.Scalar(context.Background(), "totalUsers", august)
	require.NoError(t, err)
	assert.Equal(t, 1520.0, v)
}

func TestGA4NoRowsIsZero(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"rowCount": 0})
	})
	g := source.NewGA4(testClient(t, source.ClientOptions{}), srv.URL, "123")
	v, err := g.Scalar(context.Background(), "sessions", august)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestGA4ReturningUsersClamped(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"rows": []interface{}{map[string]interface{}{"metricValues": []interface{}{
				map[string]string{"value": "90"}, map[string]string{"value": "100"},
			}}},
		})
	})
	g := source.NewGA4(testClient(t, source.ClientOptions{}), srv.URL, "123")
	v, err := g.Scalar(context.Background(), "returningUsers", august)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestGA4Rows(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Dimensions []struct{ Name string }
			Limit      int
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "country", body.Dimensions[0].Name)
		assert.Equal(t, 20, body.Limit)
		row := func(k, v string) map[string]interface{} {
			return map[string]interface{}{
				"dimensionValues": []interface{}{map[string]string{"value": k}},
				"metricValues":    []interface{}{map[string]string{"value": v}},
			}
		}
		writeJSON(w, map[string]interface{}{"rows": []interface{}{row("India", "900"), row("United States", "45")}})
	})
	g := source.NewGA4(testClient(t, source.ClientOptions{}), srv.URL, "123")
	rows, err := g.Rows(context.Background(), "country", "activeUsers", august, 20)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "India", rows[0].Key)
	assert.Equal(t, 900.0, rows[0].Value)
}

func TestGA4UnknownMetric(t *testing.T) {
	g := source.NewGA4(testClient(t, source.ClientOptions{}), "http://unused.invalid", "123")
	_, err := g.Scalar(context.Background(), "bogus", august)
	assert.True(t, errors.Is(err, source.ErrUnknownMetric))
	_, err = g.Rows(context.Background(), "city", "activeUsers", august, 5)
	assert.True(t, errors.Is(err, source.ErrUnknownMetric))
}

func TestGA4MalformedValue(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"rows": []interface{}{map[string]interface{}{"metricValues": []interface{}{map[string]string{"value": "n/a"}}}},
		})
	})
	g := source.NewGA4(testClient(t, source.ClientOptions{}), srv.URL, "123")
	_, err := g.Scalar(context.Background(), "sessions", august)
	require.Error(t, err)
	assert.False(t, source.IsAuth(err))
}

// ─── Search Console ───────────────────────────────────────────────────────────

func TestSearchConsole(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.EscapedPath(), "/webmasters/v3/sites/https:%2F%2Fwww.example.com%2F/"), r.URL.EscapedPath())
		var body struct {
			Dimensions []string
			RowLimit   int
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if len(body.Dimensions) == 0 {
			writeJSON(w, map[string]interface{}{"rows": []interface{}{
				map[string]interface{}{"clicks": 120, "impressions": 4000, "ctr": 0.03, "position": 11.5},
			}})
			return
		}
		writeJSON(w, map[string]interface{}{"rows": []interface{}{
			map[string]interface{}{"keys": []string{"/a"}, "clicks": 50},
			map[string]interface{}{"keys": []string{"/b"}, "clicks": 30},
		}})
	})
	s := source.NewSearchConsole(testClient(t, source.ClientOptions{}), srv.URL, "https://www.example.com/")

	ctr, err := s.Scalar(context.Background(), "ctr", august)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, ctr, 1e-9)

	rows, err := s.Rows(context.Background(), "page", "clicks", august, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "/a", rows[0].Key)
	assert.Equal(t, 50.0, rows[0].Value)
}

// ─── YouTube ──────────────────────────────────────────────────────────────────

func TestYouTube(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/v2/reports":
			assert.Equal(t, "channel==UC1", q.Get("ids"))
			if q.Get("dimensions") == "video" {
				assert.Equal(t, "-views", q.Get("sort"))
				writeJSON(w, map[string]interface{}{"rows": [][]interface{}{{"vid1", 300}, {"vid2", 120}}})
				return
			}
			writeJSON(w, map[string]interface{}{"rows": [][]interface{}{{4200}}})
		case "/youtube/v3/channels":
			writeJSON(w, map[string]interface{}{"items": []interface{}{
				map[string]interface{}{"statistics": map[string]string{"subscriberCount": "1875"}},
			}})
		case "/youtube/v3/videos":
			assert.Equal(t, "vid1,vid2", q.Get("id"))
			writeJSON(w, map[string]interface{}{"items": []interface{}{
				map[string]interface{}{"id": "vid1", "snippet": map[string]string{"title": "Claims explained"}},
			}})
		default:
			http.NotFound(w, r)
		}
	})
	y := source.NewYouTube(testClient(t, source.ClientOptions{}), srv.URL, srv.URL, "UC1")

	views, err := y.Scalar(context.Background(), "views", august)
	require.NoError(t, err)
	assert.Equal(t, 4200.0, views)

	subs, err := y.Scalar(context.Background(), "subscribers", august)
	require.NoError(t, err)
	assert.Equal(t, 1875.0, subs)

	rows, err := y.Rows(context.Background(), "video", "views", august, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Claims explained", rows[0].Label)
	assert.Equal(t, "", rows[1].Label)
}

func TestYouTubeNetSubscribers(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "subscribersGained,subscribersLost", r.URL.Query().Get("metrics"))
		writeJSON(w, map[string]interface{}{"rows": [][]interface{}{{40, 15}}})
	})
	y := source.NewYouTube(testClient(t, source.ClientOptions{}), srv.URL, srv.URL, "")
	v, err := y.Scalar(context.Background(), "netSubscribers", august)
	require.NoError(t, err)
	assert.Equal(t, 25.0, v)
}

func TestYouTubeSeriesZeroFilled(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "day", q.Get("dimensions"))
		assert.Equal(t, "day", q.Get("sort"))
		assert.Equal(t, "2025-08-01", q.Get("startDate"))
		assert.Equal(t, "2025-08-31", q.Get("endDate"))
		writeJSON(w, map[string]interface{}{"rows": [][]interface{}{
			{"2025-08-01", 5, 1},
			{"2025-08-03", 2, 4},
		}})
	})
	y := source.NewYouTube(testClient(t, source.ClientOptions{}), srv.URL, srv.URL, "UC1")
	pts, err := y.Series(context.Background(), "netSubscribers", august)
	require.NoError(t, err)
	require.Len(t, pts, 31)
	assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), pts[0].Date)
	assert.Equal(t, 4.0, pts[0].Value)
	assert.Equal(t, 0.0, pts[1].Value)
	assert.Equal(t, -2.0, pts[2].Value)

	_, err = y.Series(context.Background(), "subscribers", august)
	assert.True(t, errors.Is(err, source.ErrUnknownMetric))
}

// ─── Facebook ─────────────────────────────────────────────────────────────────

func TestFacebookInsightsSummed(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/page1/insights/page_impressions", r.URL.Path)
		assert.Equal(t, "2025-08-01", q.Get("since"))
		assert.Equal(t, "2025-09-01", q.Get("until"))
		assert.Equal(t, "tok", q.Get("access_token"))
		writeJSON(w, map[string]interface{}{"data": []interface{}{map[string]interface{}{
			"name": "page_impressions", "period": "day",
			"values": []interface{}{map[string]int{"value": 10}, map[string]int{"value": 15}},
		}}})
	})
	f := source.NewFacebook(testClient(t, source.ClientOptions{}), srv.URL, "page1", "tok")
	v, err := f.Scalar(context.Background(), "page_impressions", august)
	require.NoError(t, err)
	assert.Equal(t, 25.0, v)
}

func TestFacebookPostsFollowPaging(t *testing.T) {
	var srv *httptest.Server
	srv = serve(t, func(w http.ResponseWriter, r *http.Request) {
		post := func(id string, likes int) map[string]interface{} {
			return map[string]interface{}{
				"id": id, "message": "post " + id,
				"likes": map[string]interface{}{"summary": map[string]int{"total_count": likes}},
			}
		}
		if r.URL.Query().Get("after") == "" {
			writeJSON(w, map[string]interface{}{
				"data":   []interface{}{post("p1", 3), post("p2", 9)},
				"paging": map[string]string{"next": srv.URL + "/page1/posts?after=x"},
			})
			return
		}
		writeJSON(w, map[string]interface{}{"data": []interface{}{post("p3", 5)}})
	})
	f := source.NewFacebook(testClient(t, source.ClientOptions{}), srv.URL, "page1", "tok")
	rows, err := f.Rows(context.Background(), "post", "likes", august, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "p2", rows[0].Key)
	assert.Equal(t, "p3", rows[1].Key)
	assert.Equal(t, "post p2", rows[0].Label)
}

// insightDays answers a Graph insights request with one value per day of
// since..until, each valued by v(day).
func insightDays(w http.ResponseWriter, r *http.Request, name string, v func(time.Time) int) {
	since, _ := time.Parse("2006-01-02", r.URL.Query().Get("since"))
	until, _ := time.Parse("2006-01-02", r.URL.Query().Get("until"))
	var values []interface{}
	for d := since; d.Before(until); d = d.AddDate(0, 0, 1) {
		values = append(values, map[string]interface{}{
			"value":    v(d),
			"end_time": d.AddDate(0, 0, 1).Format("2006-01-02") + "T07:00:00+0000",
		})
	}
	writeJSON(w, map[string]interface{}{"data": []interface{}{map[string]interface{}{
		"name": name, "period": "day", "values": values,
	}}})
}

func TestFacebookPageFansFollowPeriod(t *testing.T) {
	// Page likes grow by one a day from 1,000 on 2025-07-01.
	base := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/page1/insights/page_fans", r.URL.Path)
		assert.Equal(t, "day", r.URL.Query().Get("period"))
		insightDays(w, r, "page_fans", func(d time.Time) int {
			return 1000 + int(d.Sub(base).Hours()/24)
		})
	})
	f := source.NewFacebook(testClient(t, source.ClientOptions{}), srv.URL, "page1", "tok")
	july := period.MonthOf(base).Current

	cur, err := f.Scalar(context.Background(), "page_fans", august)
	require.NoError(t, err)
	prev, err := f.Scalar(context.Background(), "page_fans", july)
	require.NoError(t, err)
	assert.Equal(t, 1061.0, cur)
	assert.Equal(t, 1030.0, prev)
	assert.NotEqual(t, cur, prev, "a running total differs between periods")
}

func TestFacebookPageFollowsTakesLastDay(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/page1/insights/page_follows", r.URL.Path)
		writeJSON(w, map[string]interface{}{"data": []interface{}{map[string]interface{}{
			"name": "page_follows", "period": "day",
			"values": []interface{}{map[string]int{"value": 410}, map[string]int{"value": 412}},
		}}})
	})
	f := source.NewFacebook(testClient(t, source.ClientOptions{}), srv.URL, "page1", "tok")
	v, err := f.Scalar(context.Background(), "page_follows", august)
	require.NoError(t, err)
	assert.Equal(t, 412.0, v)
}

func TestFacebookPostsCounted(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/page1/posts", r.URL.Path)
		assert.Equal(t, "id", q.Get("fields"))
		assert.Equal(t, "2025-08-01", q.Get("since"))
		writeJSON(w, map[string]interface{}{"data": []interface{}{
			map[string]string{"id": "p1"}, map[string]string{"id": "p2"}, map[string]string{"id": "p3"},
		}})
	})
	f := source.NewFacebook(testClient(t, source.ClientOptions{}), srv.URL, "page1", "tok")
	v, err := f.Scalar(context.Background(), "posts", august)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestFacebookSeriesByEndTime(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		// end_time 2025-08-02 reports on 2025-08-01.
		writeJSON(w, map[string]interface{}{"data": []interface{}{map[string]interface{}{
			"name": "page_impressions", "period": "day",
			"values": []interface{}{
				map[string]interface{}{"value": 9, "end_time": "2025-08-02T07:00:00+0000"},
				map[string]interface{}{"value": 4, "end_time": "2025-08-04T07:00:00+0000"},
			},
		}}})
	})
	f := source.NewFacebook(testClient(t, source.ClientOptions{}), srv.URL, "page1", "tok")
	pts, err := f.Series(context.Background(), "page_impressions", august)
	require.NoError(t, err)
	require.Len(t, pts, 31)
	assert.Equal(t, 9.0, pts[0].Value)
	assert.Equal(t, 0.0, pts[1].Value)
	assert.Equal(t, 4.0, pts[2].Value)
}

// ─── Instagram ────────────────────────────────────────────────────────────────

func TestInstagramMediaFilteredToPeriod(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ig1/media", r.URL.Path)
		writeJSON(w, map[string]interface{}{"data": []interface{}{
			map[string]interface{}{"id": "m1", "timestamp": "2025-08-31T22:00:00+0000", "like_count": 4},
			map[string]interface{}{"id": "m2", "timestamp": "2025-09-01T08:00:00+0000", "like_count": 40},
			map[string]interface{}{"id": "m3", "timestamp": "2025-08-02T08:00:00+0000", "like_count": 12},
			map[string]interface{}{"id": "m4", "timestamp": "2025-07-31T08:00:00+0000", "like_count": 99},
		}})
	})
	ig := source.NewInstagram(testClient(t, source.ClientOptions{}), srv.URL, "ig1", "tok")
	rows, err := ig.Rows(context.Background(), "post", "like_count", august, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "m3", rows[0].Key)
	assert.Equal(t, "m1", rows[1].Key)
}

func TestInstagramFollowers(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "followers_count", r.URL.Query().Get("fields"))
		writeJSON(w, map[string]int{"followers_count": 812})
	})
	ig := source.NewInstagram(testClient(t, source.ClientOptions{}), srv.URL, "ig1", "tok")
	v, err := ig.Scalar(context.Background(), "followers_count", august)
	require.NoError(t, err)
	assert.Equal(t, 812.0, v)
}

func TestInstagramPostsCounted(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"data": []interface{}{
			map[string]interface{}{"id": "m1", "timestamp": "2025-08-31T22:00:00+0000"},
			map[string]interface{}{"id": "m2", "timestamp": "2025-09-01T08:00:00+0000"},
			map[string]interface{}{"id": "m3", "timestamp": "2025-08-02T08:00:00+0000"},
		}})
	})
	ig := source.NewInstagram(testClient(t, source.ClientOptions{}), srv.URL, "ig1", "tok")
	v, err := ig.Scalar(context.Background(), "posts", august)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
}

func TestInstagramSeriesSpansRequests(t *testing.T) {
	var calls int32
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		q := r.URL.Query()
		assert.Equal(t, "/ig1/insights", r.URL.Path)
		assert.Equal(t, "reach", q.Get("metric"))
		since, _ := time.Parse("2006-01-02", q.Get("since"))
		until, _ := time.Parse("2006-01-02", q.Get("until"))
		assert.LessOrEqual(t, until.Sub(since).Hours()/24, 30.0)
		insightDays(w, r, "reach", func(d time.Time) int { return d.Day() })
	})
	ig := source.NewInstagram(testClient(t, source.ClientOptions{}), srv.URL, "ig1", "tok")
	window := period.TrendWindow(august.End, period.TrendDays)

	pts, err := ig.Series(context.Background(), "reach", window)
	require.NoError(t, err)
	require.Len(t, pts, period.TrendDays)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	for _, pt := range pts {
		assert.Equal(t, float64(pt.Date.Day()), pt.Value, pt.Date.Format("2006-01-02"))
	}

	_, err = ig.Series(context.Background(), "followers_count", window)
	assert.True(t, errors.Is(err, source.ErrUnknownMetric))
}

// ─── LinkedIn ─────────────────────────────────────────────────────────────────

func TestLinkedInShareStatistics(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organizationalEntityShareStatistics", r.URL.Path)
		assert.Contains(t, r.URL.RawQuery, "organizationalEntity=urn%3Ali%3Aorganization%3A42")
		assert.Contains(t, r.URL.RawQuery, "timeIntervals=(timeRange:(start:")
		writeJSON(w, map[string]interface{}{"elements": []interface{}{
			map[string]interface{}{"totalShareStatistics": map[string]int{"impressionCount": 700, "clickCount": 12}},
			map[string]interface{}{"totalShareStatistics": map[string]int{"impressionCount": 300, "clickCount": 3}},
		}})
	})
	li := source.NewLinkedIn(testClient(t, source.ClientOptions{}), srv.URL, "42")
	v, err := li.Scalar(context.Background(), "impressions", august)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, v)

	_, err = li.Rows(context.Background(), "post", "followers", august, 5)
	assert.True(t, errors.Is(err, source.ErrUnknownMetric))
}

func TestLinkedInEngagementRate(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"elements": []interface{}{
			map[string]interface{}{"totalShareStatistics": map[string]int{
				"impressionCount": 800, "clickCount": 20, "likeCount": 14, "commentCount": 4, "shareCount": 2,
			}},
			map[string]interface{}{"totalShareStatistics": map[string]int{"impressionCount": 200}},
		}})
	})
	li := source.NewLinkedIn(testClient(t, source.ClientOptions{}), srv.URL, "42")

	v, err := li.Scalar(context.Background(), "engagementRate", august)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, v, 1e-9)

	v, err = li.Scalar(context.Background(), "engagement", august)
	require.NoError(t, err)
	assert.Equal(t, 40.0, v)
}

func TestLinkedInEngagementRateNoImpressions(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"elements": []interface{}{}})
	})
	li := source.NewLinkedIn(testClient(t, source.ClientOptions{}), srv.URL, "42")
	v, err := li.Scalar(context.Background(), "engagementRate", august)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestLinkedInTopPosts(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/posts":
			assert.Equal(t, "urn:li:organization:42", r.URL.Query().Get("author"))
			writeJSON(w, map[string]interface{}{"elements": []interface{}{
				map[string]interface{}{"id": "urn:li:share:1", "commentary": "Renewal season", "publishedAt": 1754355600000},
				map[string]interface{}{"id": "urn:li:ugcPost:2", "commentary": "Claims desk", "publishedAt": 1755648000000},
				map[string]interface{}{"id": "urn:li:share:3", "commentary": "Old news", "publishedAt": 1748822400000},
			}})
		case "/organizationalEntityShareStatistics":
			assert.Contains(t, r.URL.RawQuery, "shares=List(urn%3Ali%3Ashare%3A1)")
			assert.Contains(t, r.URL.RawQuery, "ugcPosts=List(urn%3Ali%3AugcPost%3A2)")
			writeJSON(w, map[string]interface{}{"elements": []interface{}{
				map[string]interface{}{"share": "urn:li:share:1", "totalShareStatistics": map[string]int{"impressionCount": 90}},
				map[string]interface{}{"ugcPost": "urn:li:ugcPost:2", "totalShareStatistics": map[string]int{"impressionCount": 340}},
			}})
		default:
			http.NotFound(w, r)
		}
	})
	li := source.NewLinkedIn(testClient(t, source.ClientOptions{}), srv.URL, "42")
	rows, err := li.Rows(context.Background(), "post", "impressions", august, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "urn:li:ugcPost:2", rows[0].Key)
	assert.Equal(t, "Claims desk", rows[0].Label)
	assert.Equal(t, 340.0, rows[0].Value)
	assert.Equal(t, 90.0, rows[1].Value)
}

func TestLinkedInNoPostsIsEmpty(t *testing.T) {
	var calls int32
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, map[string]interface{}{"elements": []interface{}{}})
	})
	li := source.NewLinkedIn(testClient(t, source.ClientOptions{}), srv.URL, "42")
	rows, err := li.Rows(context.Background(), "post", "clicks", august, 5)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestLinkedInSeries(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organizationalEntityFollowerStatistics", r.URL.Path)
		writeJSON(w, map[string]interface{}{"elements": []interface{}{
			map[string]interface{}{
				"timeRange":     map[string]int64{"start": 1754092800000},
				"followerGains": map[string]int{"organicFollowerGain": 3, "paidFollowerGain": 1},
			},
			map[string]interface{}{
				"timeRange":     map[string]int64{"start": 1756598400000},
				"followerGains": map[string]int{"organicFollowerGain": 2},
			},
		}})
	})
	li := source.NewLinkedIn(testClient(t, source.ClientOptions{}), srv.URL, "42")
	pts, err := li.Series(context.Background(), "followersGained", august)
	require.NoError(t, err)
	require.Len(t, pts, 31)
	assert.Equal(t, 4.0, pts[1].Value)
	assert.Equal(t, 0.0, pts[2].Value)
	assert.Equal(t, 2.0, pts[30].Value)

	_, err = li.Series(context.Background(), "pageViews", august)
	assert.True(t, errors.Is(err, source.ErrUnknownMetric))
}
