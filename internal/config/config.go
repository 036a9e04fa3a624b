// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/catalog-crawler/internal/crawl"
)

// EnvPrefix prefixes environment overrides, e.g. CATALOG_CRAWL_GAP_LIMIT.
const EnvPrefix = "CATALOG"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
}

// CrawlConfig governs the sequential scan.
type CrawlConfig struct {
	RequestInterval   time.Duration `mapstructure:"request_interval"`
	CheckpointBatch   int           `mapstructure:"checkpoint_batch"`
	HardCap           int           `mapstructure:"hard_cap"`
	GapLimit          int           `mapstructure:"gap_limit"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	MissLogEvery      int           `mapstructure:"miss_log_every"`
	FetchErrorPolicy  string        `mapstructure:"fetch_error_policy"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BackoffInitial    time.Duration `mapstructure:"backoff_initial"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
}

// ProbeConfig tunes the upper bound estimate.
type ProbeConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	BlockSize    int           `mapstructure:"block_size"`
	InitialStep  int           `mapstructure:"initial_step"`
	MaxRounds    int           `mapstructure:"max_rounds"`
	SampleStride int           `mapstructure:"sample_stride"`
}

// HTTPConfig configures the page fetcher.
type HTTPConfig struct {
	UserAgent      string            `mapstructure:"user_agent"`
	Timeout        time.Duration     `mapstructure:"timeout"`
	RespectRobots  bool              `mapstructure:"respect_robots"`
	AcceptLanguage string            `mapstructure:"accept_language"`
	Headers        map[string]string `mapstructure:"headers"`
}

// DiscoveryConfig controls finding the first item from a site root.
type DiscoveryConfig struct {
	ItemPath string `mapstructure:"item_path"`
}

// OutputConfig names the persisted table.
type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	Basename string `mapstructure:"basename"`
	Sheet    string `mapstructure:"sheet"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ServerConfig controls the optional status server. An empty address disables it.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// PostgresConfig enables the record mirror when DSN is set.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// StorageConfig enables GCS snapshots when a bucket is set.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig enables the run summary notification when both fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	// "/product/info/" and "/product/info" name the same item path.
	if p := cfg.Discovery.ItemPath; strings.HasPrefix(p, "/") {
		cfg.Discovery.ItemPath = "/" + strings.Trim(p, "/")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.request_interval", 450*time.Millisecond)
	v.SetDefault("crawl.checkpoint_batch", 10)
	v.SetDefault("crawl.hard_cap", 20000)
	v.SetDefault("crawl.gap_limit", 2000)
	v.SetDefault("crawl.heartbeat_interval", 10*time.Second)
	v.SetDefault("crawl.miss_log_every", 100)
	v.SetDefault("crawl.fetch_error_policy", string(crawl.FetchErrorMiss))
	v.SetDefault("crawl.max_retries", 2)
	v.SetDefault("crawl.backoff_initial", 500*time.Millisecond)
	v.SetDefault("crawl.backoff_max", 5*time.Second)
	v.SetDefault("probe.interval", 200*time.Millisecond)
	v.SetDefault("probe.block_size", 200)
	v.SetDefault("probe.initial_step", 200)
	v.SetDefault("probe.max_rounds", 20)
	v.SetDefault("probe.sample_stride", 10)
	v.SetDefault("http.user_agent", "Mozilla/5.0")
	v.SetDefault("http.timeout", 20*time.Second)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.accept_language", "")
	v.SetDefault("discovery.item_path", "/product/info")
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.basename", "product_total")
	v.SetDefault("output.sheet", "products")
	v.SetDefault("logging.development", true)
	v.SetDefault("server.addr", "")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "catalog_records")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent must be set")
	}
	if c.Crawl.RequestInterval < 0 {
		return fmt.Errorf("crawl.request_interval must be >= 0")
	}
	if c.Probe.Interval < 0 {
		return fmt.Errorf("probe.interval must be >= 0")
	}
	if !strings.HasPrefix(c.Discovery.ItemPath, "/") {
		return fmt.Errorf("discovery.item_path must start with /")
	}
	if strings.Trim(c.Discovery.ItemPath, "/") == "" || strings.HasSuffix(c.Discovery.ItemPath, "/") {
		return fmt.Errorf("discovery.item_path must be a path like /product/info without a trailing /")
	}
	if c.Output.Basename == "" || strings.ContainsAny(c.Output.Basename, `/\`) {
		return fmt.Errorf("output.basename must be a plain file name")
	}
	if c.Output.Sheet == "" {
		return fmt.Errorf("output.sheet must be set")
	}
	if c.Postgres.DSN != "" && c.Postgres.Table == "" {
		return fmt.Errorf("postgres.table must be set when postgres.dsn is set")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	if err := c.CrawlSettings().Validate(); err != nil {
		return fmt.Errorf("crawl settings: %w", err)
	}
	return nil
}

// CrawlSettings converts the crawl and probe sections into the driver's config.
func (c Config) CrawlSettings() crawl.Config {
	return crawl.Config{
		HardCap:           c.Crawl.HardCap,
		GapLimit:          c.Crawl.GapLimit,
		CheckpointBatch:   c.Crawl.CheckpointBatch,
		HeartbeatInterval: c.Crawl.HeartbeatInterval,
		MissLogEvery:      c.Crawl.MissLogEvery,
		FetchErrorPolicy:  crawl.FetchErrorPolicy(strings.ToLower(c.Crawl.FetchErrorPolicy)),
		MaxRetries:        c.Crawl.MaxRetries,
		Estimator: crawl.EstimatorConfig{
			BlockSize:    c.Probe.BlockSize,
			InitialStep:  c.Probe.InitialStep,
			MaxRounds:    c.Probe.MaxRounds,
			SampleStride: c.Probe.SampleStride,
		},
	}
}
