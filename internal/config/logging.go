package config

import (
	"context"
	"log/slog"
	"os"
	"runtime"
)

// NewLogger returns the shared structured logger: JSON to stdout, so
// crawl output stays machine-parseable even when many SiteTasks log
// concurrently.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Log logs the resolved settings, one field per line, the way an
// operator would want them in a startup log.
func Log(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "config: sites", "count", len(s.Sites))
	logger.InfoContext(ctx, "config: indexing.parallelism", "value", s.Indexing.Parallelism)
	logger.InfoContext(ctx, "config: fetcher.user_agent", "value", s.Fetcher.UserAgent)
	logger.InfoContext(ctx, "config: fetcher.request_timeout_ms", "value", s.Fetcher.RequestTimeoutMs)
	logger.InfoContext(ctx, "config: fetcher.politeness_delay_ms", "value", s.Fetcher.PolitenessDelayMs)
	logger.InfoContext(ctx, "config: search.high_frequency_lemma_threshold", "value", s.Search.HighFrequencyLemmaThreshold)
	logger.InfoContext(ctx, "config: dsn", "value", s.DSN)
	logger.InfoContext(ctx, "config: http_addr", "value", s.HTTPAddr)
}

func defaultParallelism() int {
	return runtime.NumCPU()
}
