package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/catalog-crawler/internal/crawl"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawl.RequestInterval != 450*time.Millisecond {
		t.Fatalf("expected 450ms request interval, got %v", cfg.Crawl.RequestInterval)
	}
	if cfg.Crawl.HardCap != 20000 || cfg.Crawl.GapLimit != 2000 || cfg.Crawl.CheckpointBatch != 10 {
		t.Fatalf("unexpected crawl defaults: %+v", cfg.Crawl)
	}
	if cfg.Probe.SampleStride != 10 || cfg.Probe.Interval != 200*time.Millisecond {
		t.Fatalf("unexpected probe defaults: %+v", cfg.Probe)
	}
	if cfg.Output.Basename != "product_total" || cfg.Output.Sheet != "products" {
		t.Fatalf("unexpected output defaults: %+v", cfg.Output)
	}
	if cfg.Server.Addr != "" {
		t.Fatalf("expected status server disabled by default, got %q", cfg.Server.Addr)
	}

	settings := cfg.CrawlSettings()
	if settings.FetchErrorPolicy != crawl.FetchErrorMiss {
		t.Fatalf("expected miss policy, got %q", settings.FetchErrorPolicy)
	}
	if settings.Estimator.BlockSize != 200 || settings.Estimator.InitialStep != 200 || settings.Estimator.MaxRounds != 20 {
		t.Fatalf("unexpected estimator defaults: %+v", settings.Estimator)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawl:
  request_interval: 1s
  checkpoint_batch: 25
  hard_cap: 5000
  gap_limit: 300
  fetch_error_policy: retry
  max_retries: 3
probe:
  sample_stride: 1
http:
  user_agent: catalog-bot/1.0
  timeout: 5s
  headers:
    accept-language: zh-TW
discovery:
  item_path: /strategy/detail
output:
  dir: /tmp/out
  basename: strategies
server:
  addr: ":9090"
postgres:
  dsn: postgres://localhost/catalog
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Crawl.RequestInterval != time.Second || cfg.Crawl.HardCap != 5000 || cfg.Crawl.GapLimit != 300 {
		t.Fatalf("expected crawl overrides to apply: %+v", cfg.Crawl)
	}
	if got := cfg.CrawlSettings(); got.FetchErrorPolicy != crawl.FetchErrorRetry || got.MaxRetries != 3 {
		t.Fatalf("expected retry policy with 3 retries, got %+v", got)
	}
	if cfg.Probe.SampleStride != 1 || cfg.Probe.BlockSize != 200 {
		t.Fatalf("expected stride override and block default: %+v", cfg.Probe)
	}
	if cfg.HTTP.UserAgent != "catalog-bot/1.0" || cfg.HTTP.Timeout != 5*time.Second {
		t.Fatalf("expected http overrides: %+v", cfg.HTTP)
	}
	if cfg.HTTP.Headers["accept-language"] != "zh-TW" {
		t.Fatalf("expected extra headers, got %+v", cfg.HTTP.Headers)
	}
	if cfg.Discovery.ItemPath != "/strategy/detail" || cfg.Output.Basename != "strategies" {
		t.Fatalf("expected discovery/output overrides")
	}
	if cfg.Server.Addr != ":9090" || cfg.Postgres.Table != "catalog_records" {
		t.Fatalf("expected server addr and postgres table default: %+v %+v", cfg.Server, cfg.Postgres)
	}
	if cfg.Logging.Development {
		t.Fatal("expected production logging")
	}
}

func TestLoadTrimsItemPathSlashes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("discovery:\n  item_path: /product/info/\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Discovery.ItemPath != "/product/info" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Discovery.ItemPath)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CATALOG_CRAWL_GAP_LIMIT", "77")
	t.Setenv("CATALOG_OUTPUT_BASENAME", "from_env")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawl.GapLimit != 77 || cfg.Output.Basename != "from_env" {
		t.Fatalf("expected env overrides, got gap=%d basename=%q", cfg.Crawl.GapLimit, cfg.Output.Basename)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		cfg  func(c *Config)
		want string
	}{
		{"invalid timeout", func(c *Config) { c.HTTP.Timeout = 0 }, "http.timeout"},
		{"missing user agent", func(c *Config) { c.HTTP.UserAgent = "" }, "http.user_agent"},
		{"negative interval", func(c *Config) { c.Crawl.RequestInterval = -time.Second }, "crawl.request_interval"},
		{"relative item path", func(c *Config) { c.Discovery.ItemPath = "product/info" }, "discovery.item_path"},
		{"root item path", func(c *Config) { c.Discovery.ItemPath = "/" }, "discovery.item_path"},
		{"trailing slash item path", func(c *Config) { c.Discovery.ItemPath = "/product/info/" }, "discovery.item_path"},
		{"basename with dir", func(c *Config) { c.Output.Basename = "a/b" }, "output.basename"},
		{"pubsub half set", func(c *Config) { c.PubSub.ProjectID = "proj" }, "pubsub"},
		{"postgres without table", func(c *Config) { c.Postgres.DSN = "postgres://x"; c.Postgres.Table = "" }, "postgres.table"},
		{"zero gap", func(c *Config) { c.Crawl.GapLimit = 0 }, "gap limit"},
		{"bad policy", func(c *Config) { c.Crawl.FetchErrorPolicy = "sometimes" }, "fetch error policy"},
		{"zero stride", func(c *Config) { c.Probe.SampleStride = 0 }, "sample stride"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			tt.cfg(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
