package source

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Google API scopes used by the GA4, Search Console and YouTube sources.
var GoogleScopes = []string{
	"https://www.googleapis.com/auth/analytics.readonly",
	"https://www.googleapis.com/auth/webmasters.readonly",
	"https://www.googleapis.com/auth/youtube.readonly",
	"https://www.googleapis.com/auth/yt-analytics.readonly",
}

// GoogleAuth holds the refresh-token credentials shared by the Google
// sources.
type GoogleAuth struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	// TokenURL overrides google.Endpoint.TokenURL (tests).
	TokenURL string
}

// HTTPClient returns an *http.Client that exchanges the refresh token for
// access tokens on demand. ctx should outlive the client; refresh requests
// are made with it. A failed refresh surfaces as *oauth2.RetrieveError,
// which IsAuth recognises.
func (a GoogleAuth) HTTPClient(ctx context.Context, timeout time.Duration) *http.Client {
	endpoint := google.Endpoint
	if a.TokenURL != "" {
		endpoint.TokenURL = a.TokenURL
	}
	conf := &oauth2.Config{
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       GoogleScopes,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
	hc := conf.Client(ctx, &oauth2.Token{RefreshToken: a.RefreshToken})
	hc.Timeout = timeout
	return hc
}
