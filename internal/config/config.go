// Package config loads application settings from a YAML file,
// environment variables and CLI flags (in ascending priority), using
// viper, and builds the slog.Logger the rest of the application shares.
package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SiteConfig is one configured crawl root.
type SiteConfig struct {
	URL  string `mapstructure:"url"`
	Name string `mapstructure:"name"`
}

// FetcherSettings controls the HTML fetcher.
type FetcherSettings struct {
	UserAgent         string `mapstructure:"user_agent"`
	Referrer          string `mapstructure:"referrer"`
	RequestTimeoutMs  int    `mapstructure:"request_timeout_ms"`
	PolitenessDelayMs int    `mapstructure:"politeness_delay_ms"`
}

// SearchSettings controls ranking/retrieval behavior.
type SearchSettings struct {
	HighFrequencyLemmaThreshold float64 `mapstructure:"high_frequency_lemma_threshold"`
}

// IndexingSettings controls the crawl scheduler.
type IndexingSettings struct {
	Parallelism int `mapstructure:"parallelism"`
}

// Settings is the fully resolved application configuration.
type Settings struct {
	Sites    []SiteConfig     `mapstructure:"sites"`
	Indexing IndexingSettings `mapstructure:"indexing"`
	Fetcher  FetcherSettings  `mapstructure:"fetcher"`
	Search   SearchSettings   `mapstructure:"search"`
	DSN      string           `mapstructure:"dsn"`
	HTTPAddr string           `mapstructure:"http_addr"`
}

// Load loads settings from an optional config file, the
// SEARCHENGINE_-prefixed environment and CLI flags, in that ascending
// order of priority.
func Load(configPath string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	v.SetDefault("indexing.parallelism", defaultParallelism())
	v.SetDefault("fetcher.user_agent", "SearchEngineBot/1.0")
	v.SetDefault("fetcher.request_timeout_ms", 10000)
	v.SetDefault("fetcher.politeness_delay_ms", 500)
	v.SetDefault("search.high_frequency_lemma_threshold", 0.30)
	v.SetDefault("dsn", "searchengine.db")
	v.SetDefault("http_addr", ":8080")

	v.SetEnvPrefix("SEARCHENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	if flags != nil {
		_ = v.BindPFlag("indexing.parallelism", flags.Lookup("parallelism"))
		_ = v.BindPFlag("dsn", flags.Lookup("dsn"))
		_ = v.BindPFlag("http_addr", flags.Lookup("http-addr"))
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
