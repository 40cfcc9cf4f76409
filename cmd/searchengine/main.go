// Command searchengine starts the crawler/search HTTP server.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mkrylov/searchengine/internal/config"
	"github.com/mkrylov/searchengine/internal/crawl"
	"github.com/mkrylov/searchengine/internal/fetch"
	"github.com/mkrylov/searchengine/internal/httpapi"
	"github.com/mkrylov/searchengine/internal/indexing"
	"github.com/mkrylov/searchengine/internal/lemma"
	"github.com/mkrylov/searchengine/internal/ranking"
	"github.com/mkrylov/searchengine/internal/search"
	"github.com/mkrylov/searchengine/internal/stats"
	"github.com/mkrylov/searchengine/internal/store"
)

func main() {
	if err := Execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// Execute is the CLI entry point, extracted for testing.
func Execute(args []string) error {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "searchengine",
		Short: "Crawl, index and search a configured list of sites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(configPath, cmd.Flags())
		},
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.Flags().Int("parallelism", 0, "worker pool size (0 = CPU count)")
	rootCmd.Flags().String("dsn", "", "sqlite DSN for the index database")
	rootCmd.Flags().String("http-addr", "", "HTTP listen address")

	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func run(configPath string, flags *pflag.FlagSet) error {
	settings, err := config.Load(configPath, flags)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := config.NewLogger()
	config.Log(settings, log)

	st, err := store.Open(settings.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	analyzer := lemma.NewAnalyzer(lemma.DefaultStopwords())
	fetcher := fetch.New(fetch.Config{
		UserAgent:       settings.Fetcher.UserAgent,
		Referrer:        settings.Fetcher.Referrer,
		RequestTimeout:  time.Duration(settings.Fetcher.RequestTimeoutMs) * time.Millisecond,
		PolitenessDelay: time.Duration(settings.Fetcher.PolitenessDelayMs) * time.Millisecond,
	})
	rankingService := ranking.New(st, analyzer, settings.Search.HighFrequencyLemmaThreshold)

	ctx := crawl.NewContext(st, analyzer, fetcher, rankingService, settings.Indexing.Parallelism, log)

	var siteConfigs []indexing.SiteConfig
	for _, s := range settings.Sites {
		siteConfigs = append(siteConfigs, indexing.SiteConfig{Name: s.Name, URL: s.URL})
	}
	indexingService := indexing.New(siteConfigs, ctx)

	builder := search.NewBuilder(analyzer)
	statsService := stats.New(st, indexingService)

	api := httpapi.New(indexingService, rankingService, builder, analyzer, statsService, log)

	r := chi.NewRouter()
	api.Routes(r)

	log.Info("listening", "addr", settings.HTTPAddr)
	return http.ListenAndServe(settings.HTTPAddr, r)
}
