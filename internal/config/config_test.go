package config

import (
	"os"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.DSN != "searchengine.db" {
		t.Fatalf("DSN = %q; want default", s.DSN)
	}
	if s.Fetcher.PolitenessDelayMs != 500 {
		t.Fatalf("PolitenessDelayMs = %d; want 500", s.Fetcher.PolitenessDelayMs)
	}
	if s.Search.HighFrequencyLemmaThreshold != 0.30 {
		t.Fatalf("HighFrequencyLemmaThreshold = %v; want 0.30", s.Search.HighFrequencyLemmaThreshold)
	}
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	os.Setenv("SEARCHENGINE_DSN", "/tmp/env.db")
	defer os.Unsetenv("SEARCHENGINE_DSN")

	s, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.DSN != "/tmp/env.db" {
		t.Fatalf("DSN = %q; want env override /tmp/env.db", s.DSN)
	}
}

func TestLoadFlagOverridesEnv(t *testing.T) {
	os.Setenv("SEARCHENGINE_DSN", "/tmp/env.db")
	defer os.Unsetenv("SEARCHENGINE_DSN")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("dsn", "/tmp/flag.db", "")
	flags.Int("parallelism", 0, "")
	flags.String("http-addr", "", "")
	if err := flags.Set("dsn", "/tmp/flag.db"); err != nil {
		t.Fatalf("flags.Set() error: %v", err)
	}

	s, err := Load("", flags)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.DSN != "/tmp/flag.db" {
		t.Fatalf("DSN = %q; want flag override /tmp/flag.db", s.DSN)
	}
}
