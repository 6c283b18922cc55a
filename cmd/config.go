package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/salasarservices/pulse/internal/config"
	"github.com/salasarservices/pulse/internal/render"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage pulse configuration",
	Long: `Read and write pulse configuration stored in config.json.

Values resolve in this order (highest wins): command-line flags, PULSE_*
environment variables, a .env file in the working directory, config.json.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config.json in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if globalFlags.Config != "" {
			path = globalFlags.Config
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created %s\n", path)
		fmt.Fprintln(out, "  Fill in the google credentials to enable the website, search and YouTube sections.")
		fmt.Fprintln(out, "  Secrets can live in .env instead; see 'pulse config get'.")
		return nil
	},
}

var configGetShowSecrets bool

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		values := configValues(cfg, configGetShowSecrets)

		if resolveFormat("") == render.FormatJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(values)
		}
		printKVTable(cmd.OutOrStdout(), values)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in config.json",
	Example: `  pulse config set cache redis
  pulse config set redis_url redis://localhost:6379/0
  pulse config set google.refresh_token 1//0g...`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])
		path := config.DefaultConfigFile
		if globalFlags.Config != "" {
			path = globalFlags.Config
		}

		// Load existing file or start from template
		f := config.Template()
		if existing, err := readConfigFile(path); err == nil {
			f = *existing
		} else if !os.IsNotExist(err) {
			return err
		}

		if err := setConfigValue(&f, key, args[1]); err != nil {
			return err
		}
		if err := config.WriteFile(path, f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s in %s\n", key, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configGetCmd.Flags().BoolVar(&configGetShowSecrets, "show-secrets", false, "show tokens in plain text")
}

// configValues flattens cfg to display keys. Secrets are redacted unless
// show is set.
func configValues(cfg *config.Config, show bool) map[string]string {
	secret := func(s string) string {
		switch {
		case s == "":
			return "(not set)"
		case show:
			return s
		default:
			return config.Redacted(s)
		}
	}
	orNone := func(s string) string {
		if s == "" {
			return "(not set)"
		}
		return s
	}
	return map[string]string{
		"google.client_id":           orNone(cfg.GoogleClientID),
		"google.client_secret":       secret(cfg.GoogleClientSecret),
		"google.refresh_token":       secret(cfg.GoogleRefreshToken),
		"google.ga4_property_id":     orNone(cfg.GA4Property),
		"google.search_console_site": orNone(cfg.Site),
		"google.youtube_channel_id":  orNone(cfg.YouTubeChannel),
		"facebook.id":                orNone(cfg.FacebookPageID),
		"facebook.access_token":      secret(cfg.FacebookToken),
		"instagram.id":               orNone(cfg.InstagramUserID),
		"instagram.access_token":     secret(cfg.InstagramToken),
		"linkedin.id":                orNone(cfg.LinkedInOrg),
		"linkedin.access_token":      secret(cfg.LinkedInToken),
		"mongo_uri":                  secret(cfg.MongoURI),
		"mongo_db":                   cfg.MongoDB,
		"cache":                      cfg.Cache,
		"cache_ttl":                  cfg.CacheTTL.String(),
		"redis_url":                  secret(cfg.RedisURL),
		"db_path":                    cfg.DBPath,
		"default_format":             cfg.Format,
		"timeout":                    cfg.Timeout.String(),
		"concurrency":                strconv.Itoa(cfg.Concurrency),
		"rate":                       fmt.Sprintf("%.1f req/s", cfg.Rate),
		"retries":                    strconv.Itoa(cfg.Retries),
		"listen":                     cfg.Listen,
		"s3_bucket":                  orNone(cfg.S3Bucket),
		"s3_prefix":                  orNone(cfg.S3Prefix),
		"definitions":                orNone(cfg.Definitions),
		"config_file":                orNone(cfg.ConfigPath),
		"env_file":                   orNone(cfg.EnvFile),
	}
}

// setConfigValue assigns one dotted key of f.
func setConfigValue(f *config.File, key, val string) error {
	strs := map[string]*string{
		"google.client_id":           &f.Google.ClientID,
		"google.client_secret":       &f.Google.ClientSecret,
		"google.refresh_token":       &f.Google.RefreshToken,
		"google.ga4_property_id":     &f.Google.GA4Property,
		"google.search_console_site": &f.Google.Site,
		"google.youtube_channel_id":  &f.Google.ChannelID,
		"facebook.id":                &f.Facebook.ID,
		"facebook.access_token":      &f.Facebook.AccessToken,
		"instagram.id":               &f.Instagram.ID,
		"instagram.access_token":     &f.Instagram.AccessToken,
		"linkedin.id":                &f.LinkedIn.ID,
		"linkedin.access_token":      &f.LinkedIn.AccessToken,
		"mongo_uri":                  &f.MongoURI,
		"mongo_db":                   &f.MongoDB,
		"cache":                      &f.Cache,
		"cache_ttl":                  &f.CacheTTL,
		"redis_url":                  &f.RedisURL,
		"db_path":                    &f.DBPath,
		"default_format":             &f.Format,
		"format":                     &f.Format,
		"timeout":                    &f.Timeout,
		"listen":                     &f.Listen,
		"s3_bucket":                  &f.S3Bucket,
		"s3_prefix":                  &f.S3Prefix,
		"definitions":                &f.Definitions,
	}
	if dst, ok := strs[key]; ok {
		*dst = val
		return nil
	}

	switch key {
	case "concurrency":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return fmt.Errorf("concurrency must be a positive integer")
		}
		f.Concurrency = n
	case "rate":
		r, err := strconv.ParseFloat(val, 64)
		if err != nil || r <= 0 {
			return fmt.Errorf("rate must be a positive number")
		}
		f.Rate = r
	case "retries":
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			return fmt.Errorf("retries must be a non-negative integer")
		}
		f.Retries = &n
	default:
		keys := make([]string, 0, len(strs)+3)
		for k := range strs {
			keys = append(keys, k)
		}
		keys = append(keys, "concurrency", "rate", "retries")
		sort.Strings(keys)
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s", key, strings.Join(keys, ", "))
	}
	return nil
}

// readConfigFile reads a config.json without applying defaults.
func readConfigFile(path string) (*config.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f config.File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &f, nil
}

// printKVTable renders key/value pairs as aligned columns, sorted by key.
func printKVTable(w io.Writer, values map[string]string) {
	keys := make([]string, 0, len(values))
	maxKey := 0
	for k := range values {
		keys = append(keys, k)
		if len(k) > maxKey {
			maxKey = len(k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s%s  %s\n", k, strings.Repeat(" ", maxKey-len(k)), values[k])
	}
}
