// Package app wires together configuration, the local store, the response
// cache and the metric sources into a single Deps struct that commands
// receive at runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/salasarservices/pulse/internal/cache"
	"github.com/salasarservices/pulse/internal/config"
	"github.com/salasarservices/pulse/internal/export"
	"github.com/salasarservices/pulse/internal/leads"
	"github.com/salasarservices/pulse/internal/metric"
	"github.com/salasarservices/pulse/internal/report"
	"github.com/salasarservices/pulse/internal/source"
	"github.com/salasarservices/pulse/internal/store"
	"github.com/salasarservices/pulse/internal/telemetry"
	"github.com/salasarservices/pulse/internal/util"
)

// Deps holds all runtime dependencies injected into command Run functions.
type Deps struct {
	Config    *config.Config
	Store     *store.Store // nil when the database could not be opened
	Cache     cache.Cache
	Registry  *source.Registry
	Fetcher   *metric.Fetcher
	Assembler *report.Assembler
	Metrics   *telemetry.Metrics

	storeErr error
	leads    *leads.MongoStore
	closers  []func() error
}

// New builds a Deps from resolved config. ctx bounds the OAuth token
// refreshes of the Google sources and must outlive the Deps.
func New(ctx context.Context, cfg *config.Config) (*Deps, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Deps{Config: cfg, Metrics: telemetry.New()}

	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			d.storeErr = err
		} else {
			d.Store = st
			d.closers = append(d.closers, st.Close)
		}
	} else {
		d.storeErr = errors.New("no database path configured")
	}

	c, err := d.openCache(ctx)
	if err != nil {
		d.Close()
		return nil, err
	}
	if cfg.Refresh {
		if err := c.Invalidate(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("invalidating %s cache: %w", c.Name(), err)
		}
	}
	if cfg.NoCache {
		c = cache.WriteOnly(c)
	}
	d.Cache = c

	defs, err := report.LoadDefinitions(cfg.Definitions)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Registry = Sources(ctx, cfg)
	d.Fetcher = &metric.Fetcher{
		Registry: d.Registry,
		Cache:    d.Cache,
		TTL:      cfg.CacheTTL,
		Metrics:  d.Metrics,
	}
	d.Assembler = report.NewAssembler(defs, d.Fetcher, cfg.Concurrency, d.Metrics)
	return d, nil
}

func (d *Deps) openCache(ctx context.Context) (cache.Cache, error) {
	switch d.Config.Cache {
	case "redis":
		r, err := cache.DialRedis(ctx, d.Config.RedisURL)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, r.Close)
		return r, nil
	case "memory":
		return cache.NewMemory(), nil
	default:
		if d.Store == nil {
			return nil, fmt.Errorf("bolt cache: %w", d.storeErr)
		}
		return cache.NewBolt(d.Store), nil
	}
}

// Sources registers a source for every configured upstream. Google sources
// are always registered: without credentials they fail every fetch as an
// authentication error. Graph and LinkedIn sources are registered only when
// their token and account are set, so unconfigured ones degrade to zero.
func Sources(ctx context.Context, cfg *config.Config) *source.Registry {
	reg := source.NewRegistry()
	secrets := cfg.Secrets()
	opts := func(name string, hc *http.Client, header http.Header) source.ClientOptions {
		return source.ClientOptions{
			Name:       name,
			HTTPClient: hc,
			Timeout:    cfg.Timeout,
			Rate:       cfg.Rate,
			Retries:    cfg.Retries,
			Header:     header,
			Secrets:    secrets,
			Debug:      cfg.Debug,
		}
	}

	if err := cfg.RequireGoogle(); err != nil {
		for _, name := range []string{source.NameGA4, source.NameSearchConsole, source.NameYouTube} {
			reg.Register(source.Unauthenticated(name, err.Error()))
		}
	} else {
		hc := source.GoogleAuth{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RefreshToken: cfg.GoogleRefreshToken,
		}.HTTPClient(ctx, cfg.Timeout)
		reg.Register(source.NewGA4(source.NewClient(opts(source.NameGA4, hc, nil)), "", cfg.GA4Property))
		reg.Register(source.NewSearchConsole(source.NewClient(opts(source.NameSearchConsole, hc, nil)), "", cfg.Site))
		reg.Register(source.NewYouTube(source.NewClient(opts(source.NameYouTube, hc, nil)), "", "", cfg.YouTubeChannel))
	}

	if cfg.FacebookPageID != "" && cfg.FacebookToken != "" {
		reg.Register(source.NewFacebook(source.NewClient(opts(source.NameFacebook, nil, nil)),
			"", cfg.FacebookPageID, cfg.FacebookToken))
	}
	if cfg.InstagramUserID != "" && cfg.InstagramToken != "" {
		reg.Register(source.NewInstagram(source.NewClient(opts(source.NameInstagram, nil, nil)),
			"", cfg.InstagramUserID, cfg.InstagramToken))
	}
	if cfg.LinkedInToken != "" && cfg.LinkedInOrg != "" {
		reg.Register(source.NewLinkedIn(
			source.NewClient(opts(source.NameLinkedIn, nil, source.LinkedInHeader(cfg.LinkedInToken))),
			"", cfg.LinkedInOrg))
	}
	slog.Debug("sources registered", "sources", reg.Names())
	return reg
}

// RequireStore returns an error if the local database is unavailable.
func (d *Deps) RequireStore() error {
	if d.Store == nil {
		return fmt.Errorf("local database unavailable: %w", d.storeErr)
	}
	return nil
}

// Leads connects to the lead store on first use.
func (d *Deps) Leads(ctx context.Context) (*leads.MongoStore, error) {
	if d.leads != nil {
		return d.leads, nil
	}
	if err := d.Config.RequireMongo(); err != nil {
		return nil, err
	}
	ls, err := leads.Connect(ctx, d.Config.MongoURI, d.Config.MongoDB, d.Config.Timeout)
	if err != nil {
		return nil, err
	}
	d.leads = ls
	d.closers = append(d.closers, func() error { return ls.Close(context.Background()) })
	return ls, nil
}

// Exporter returns an exporter that records to the local store and, when
// upload is set, archives to the configured S3 bucket.
func (d *Deps) Exporter(ctx context.Context, upload bool) (*export.Exporter, error) {
	e := &export.Exporter{}
	if d.Store != nil {
		e.Recorder = d.Store
	}
	if upload {
		if d.Config.S3Bucket == "" {
			return nil, fmt.Errorf("no archive bucket configured (set %s)", config.EnvS3Bucket)
		}
		u, err := export.NewS3Uploader(ctx, d.Config.S3Bucket, d.Config.S3Prefix)
		if err != nil {
			return nil, err
		}
		e.Uploader = u
	}
	return e, nil
}

// Close releases every opened resource, newest first.
func (d *Deps) Close() error {
	var errs util.MultiError
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs.Add(d.closers[i]())
	}
	d.closers = nil
	return errs.Err()
}
