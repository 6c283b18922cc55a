// Package config handles loading and resolving pulse configuration.
// Resolution order (first non-empty value wins):
//  1. CLI flags (applied by the caller after Load)
//  2. Environment variables (PULSE_*), after loading a .env file if present
//  3. config.json in the current working directory, or the --config path
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultConfigFile  = "config.json"
	DefaultEnvFile     = ".env"
	DefaultFormat      = "table"
	DefaultTimeout     = 30 * time.Second
	DefaultConcurrency = 8
	DefaultRate        = 5.0
	DefaultRetries     = 2
	DefaultCacheTTL    = time.Hour
	DefaultCacheKind   = "bolt"
	DefaultListen      = ":8080"
	DefaultGA4Property = "356205245"
	DefaultSite        = "https://www.salasarservices.com/"
	DefaultMongoDB     = "sal-leads"
)

// Environment variable names.
const (
	EnvGoogleClientID     = "PULSE_GOOGLE_CLIENT_ID"
	EnvGoogleClientSecret = "PULSE_GOOGLE_CLIENT_SECRET"
	EnvGoogleRefreshToken = "PULSE_GOOGLE_REFRESH_TOKEN"
	EnvGA4Property        = "PULSE_GA4_PROPERTY_ID"
	EnvSite               = "PULSE_SEARCH_CONSOLE_SITE"
	EnvYouTubeChannel     = "PULSE_YOUTUBE_CHANNEL_ID"
	EnvFacebookPageID     = "PULSE_FACEBOOK_PAGE_ID"
	EnvFacebookToken      = "PULSE_FACEBOOK_TOKEN"
	EnvInstagramUserID    = "PULSE_INSTAGRAM_USER_ID"
	EnvInstagramToken     = "PULSE_INSTAGRAM_TOKEN"
	EnvLinkedInToken      = "PULSE_LINKEDIN_TOKEN"
	EnvLinkedInOrg        = "PULSE_LINKEDIN_ORG_URN"
	EnvMongoURI           = "PULSE_MONGO_URI"
	EnvMongoDB            = "PULSE_MONGO_DB"
	EnvCache              = "PULSE_CACHE"
	EnvCacheTTL           = "PULSE_CACHE_TTL"
	EnvRedisURL           = "PULSE_REDIS_URL"
	EnvDBPath             = "PULSE_DB_PATH"
	EnvListen             = "PULSE_LISTEN"
	EnvS3Bucket           = "PULSE_S3_BUCKET"
	EnvS3Prefix           = "PULSE_S3_PREFIX"
	EnvDefinitions        = "PULSE_DEFINITIONS"
)

// File is the on-disk representation of config.json.
type File struct {
	Google      GoogleFile `json:"google"`
	Facebook    TokenFile  `json:"facebook"`
	Instagram   TokenFile  `json:"instagram"`
	LinkedIn    TokenFile  `json:"linkedin"`
	MongoURI    string     `json:"mongo_uri"`
	MongoDB     string     `json:"mongo_db"`
	Cache       string     `json:"cache"`
	CacheTTL    string     `json:"cache_ttl"`
	RedisURL    string     `json:"redis_url"`
	DBPath      string     `json:"db_path"`
	Format      string     `json:"default_format"`
	Timeout     string     `json:"timeout"`
	Concurrency int        `json:"concurrency"`
	Rate        float64    `json:"rate"`
	Retries     *int       `json:"retries,omitempty"`
	Listen      string     `json:"listen"`
	S3Bucket    string     `json:"s3_bucket"`
	S3Prefix    string     `json:"s3_prefix"`
	Definitions string     `json:"definitions"`
}

// GoogleFile holds the OAuth client and the Google property identifiers.
type GoogleFile struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
	GA4Property  string `json:"ga4_property_id"`
	Site         string `json:"search_console_site"`
	ChannelID    string `json:"youtube_channel_id"`
}

// TokenFile holds an access token and the account it reads.
// ID is a page id, an Instagram user id, or a LinkedIn organization URN.
type TokenFile struct {
	ID          string `json:"id"`
	AccessToken string `json:"access_token"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string
	GA4Property        string
	Site               string
	YouTubeChannel     string

	FacebookPageID  string
	FacebookToken   string
	InstagramUserID string
	InstagramToken  string
	LinkedInToken   string
	LinkedInOrg     string

	MongoURI string
	MongoDB  string

	Cache       string // bolt|redis|memory
	CacheTTL    time.Duration
	RedisURL    string
	DBPath      string
	Format      string
	Timeout     time.Duration
	Concurrency int
	Rate        float64
	Retries     int
	Listen      string
	S3Bucket    string
	S3Prefix    string
	Definitions string // path of a definitions override (empty = built-in)

	ConfigPath string // path of the config.json that was loaded (empty if none found)
	EnvFile    string // path of the .env file that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	NoCache bool
	Refresh bool
	Quiet   bool
	Verbose bool
	Debug   bool
}

// Load resolves configuration from all sources.
// path is the value of --config; empty means ./config.json.
func Load(path string) (*Config, error) {
	cfg := &Config{
		GA4Property: DefaultGA4Property,
		Site:        DefaultSite,
		MongoDB:     DefaultMongoDB,
		Cache:       DefaultCacheKind,
		CacheTTL:    DefaultCacheTTL,
		Format:      DefaultFormat,
		Timeout:     DefaultTimeout,
		Concurrency: DefaultConcurrency,
		Rate:        DefaultRate,
		Retries:     DefaultRetries,
		Listen:      DefaultListen,
	}

	// Layer 1: config file (lowest priority). A missing default file is fine;
	// a missing explicit file is an error.
	f, filePath, err := loadFile(path)
	switch {
	case err == nil:
		applyFile(cfg, f, filePath)
	case path != "" || !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	// Layer 2: .env, then the environment
	if envPath, err := filepath.Abs(DefaultEnvFile); err == nil {
		if _, statErr := os.Stat(envPath); statErr == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, fmt.Errorf("loading %s: %w", envPath, err)
			}
			cfg.EnvFile = envPath
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	// Set default DB path if still unset
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DBPath = filepath.Join(home, ".pulse", "pulse.db")
		}
	}

	return cfg, nil
}

// Validate checks values that must hold for every command.
func (c *Config) Validate() error {
	switch c.Cache {
	case "bolt", "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("cache backend redis needs a redis_url (or %s)", EnvRedisURL)
		}
	default:
		return fmt.Errorf("unknown cache backend %q: expected bolt|redis|memory", c.Cache)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive, got %s", c.CacheTTL)
	}
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %v", c.Rate)
	}
	return nil
}

// RequireGoogle returns an error if the Google OAuth refresh flow cannot run.
// A missing refresh token is fatal for every Google-backed section.
func (c *Config) RequireGoogle() error {
	var missing []string
	if c.GoogleClientID == "" {
		missing = append(missing, "google.client_id ("+EnvGoogleClientID+")")
	}
	if c.GoogleClientSecret == "" {
		missing = append(missing, "google.client_secret ("+EnvGoogleClientSecret+")")
	}
	if c.GoogleRefreshToken == "" {
		missing = append(missing, "google.refresh_token ("+EnvGoogleRefreshToken+")")
	}
	if len(missing) > 0 {
		return fmt.Errorf("Google credentials not configured: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// RequireMongo returns an error if the lead store is not configured.
func (c *Config) RequireMongo() error {
	if c.MongoURI == "" {
		return errors.New(
			"lead store not configured.\n\n" +
				"Set it one of these ways:\n" +
				"  1. Environment:     export " + EnvMongoURI + "=mongodb+srv://...\n" +
				"  2. config.json:     {\"mongo_uri\": \"mongodb+srv://...\"}",
		)
	}
	return nil
}

// Redacted returns s with most characters replaced by asterisks.
// Safe for logging and display.
func Redacted(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

// Secrets lists every configured credential value. Used to scrub logs.
func (c *Config) Secrets() []string {
	var out []string
	for _, s := range []string{
		c.GoogleClientSecret, c.GoogleRefreshToken, c.FacebookToken,
		c.InstagramToken, c.LinkedInToken, c.MongoURI,
	} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// loadFile reads the config file at path, or ./config.json when path is empty.
func loadFile(path string) (*File, string, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("config file not found at %s: %w", abs, os.ErrNotExist)
		}
		return nil, "", fmt.Errorf("reading %s: %w", abs, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing %s: %w", abs, err)
	}
	return &f, abs, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) {
	cfg.ConfigPath = path
	setStr(&cfg.GoogleClientID, f.Google.ClientID)
	setStr(&cfg.GoogleClientSecret, f.Google.ClientSecret)
	setStr(&cfg.GoogleRefreshToken, f.Google.RefreshToken)
	setStr(&cfg.GA4Property, f.Google.GA4Property)
	setStr(&cfg.Site, f.Google.Site)
	setStr(&cfg.YouTubeChannel, f.Google.ChannelID)
	setStr(&cfg.FacebookPageID, f.Facebook.ID)
	setStr(&cfg.FacebookToken, f.Facebook.AccessToken)
	setStr(&cfg.InstagramUserID, f.Instagram.ID)
	setStr(&cfg.InstagramToken, f.Instagram.AccessToken)
	setStr(&cfg.LinkedInOrg, f.LinkedIn.ID)
	setStr(&cfg.LinkedInToken, f.LinkedIn.AccessToken)
	setStr(&cfg.MongoURI, f.MongoURI)
	setStr(&cfg.MongoDB, f.MongoDB)
	setStr(&cfg.Cache, f.Cache)
	setStr(&cfg.RedisURL, f.RedisURL)
	setStr(&cfg.DBPath, f.DBPath)
	setStr(&cfg.Format, f.Format)
	setStr(&cfg.Listen, f.Listen)
	setStr(&cfg.S3Bucket, f.S3Bucket)
	setStr(&cfg.S3Prefix, f.S3Prefix)
	setStr(&cfg.Definitions, f.Definitions)
	if f.CacheTTL != "" {
		if d, err := time.ParseDuration(f.CacheTTL); err == nil {
			cfg.CacheTTL = d
		}
	}
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if f.Concurrency > 0 {
		cfg.Concurrency = f.Concurrency
	}
	if f.Rate > 0 {
		cfg.Rate = f.Rate
	}
	if f.Retries != nil && *f.Retries >= 0 {
		cfg.Retries = *f.Retries
	}
}

// applyEnv overlays PULSE_* environment variables onto cfg.
func applyEnv(cfg *Config) error {
	for name, dst := range map[string]*string{
		EnvGoogleClientID:     &cfg.GoogleClientID,
		EnvGoogleClientSecret: &cfg.GoogleClientSecret,
		EnvGoogleRefreshToken: &cfg.GoogleRefreshToken,
		EnvGA4Property:        &cfg.GA4Property,
		EnvSite:               &cfg.Site,
		EnvYouTubeChannel:     &cfg.YouTubeChannel,
		EnvFacebookPageID:     &cfg.FacebookPageID,
		EnvFacebookToken:      &cfg.FacebookToken,
		EnvInstagramUserID:    &cfg.InstagramUserID,
		EnvInstagramToken:     &cfg.InstagramToken,
		EnvLinkedInToken:      &cfg.LinkedInToken,
		EnvLinkedInOrg:        &cfg.LinkedInOrg,
		EnvMongoURI:           &cfg.MongoURI,
		EnvMongoDB:            &cfg.MongoDB,
		EnvCache:              &cfg.Cache,
		EnvRedisURL:           &cfg.RedisURL,
		EnvDBPath:             &cfg.DBPath,
		EnvListen:             &cfg.Listen,
		EnvS3Bucket:           &cfg.S3Bucket,
		EnvS3Prefix:           &cfg.S3Prefix,
		EnvDefinitions:        &cfg.Definitions,
	} {
		setStr(dst, os.Getenv(name))
	}
	if v := os.Getenv(EnvCacheTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCacheTTL, err)
		}
		cfg.CacheTTL = d
	}
	return nil
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `pulse config init`.
func Template() File {
	retries := DefaultRetries
	return File{
		Google: GoogleFile{
			GA4Property: DefaultGA4Property,
			Site:        DefaultSite,
		},
		MongoDB:     DefaultMongoDB,
		Cache:       DefaultCacheKind,
		CacheTTL:    DefaultCacheTTL.String(),
		Format:      DefaultFormat,
		Timeout:     DefaultTimeout.String(),
		Concurrency: DefaultConcurrency,
		Rate:        DefaultRate,
		Retries:     &retries,
		Listen:      DefaultListen,
	}
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}
