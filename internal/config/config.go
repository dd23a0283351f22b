// Package config loads and validates archiver configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/HsienYu/BreakingNewsEffects/internal/extractor"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site     SiteConfig      `mapstructure:"site"`
	Cache    CacheConfig     `mapstructure:"cache"`
	Fetch    FetchConfig     `mapstructure:"fetch"`
	Assets   AssetsConfig    `mapstructure:"assets"`
	Rules    extractor.Rules `mapstructure:"rules"`
	Server   ServerConfig    `mapstructure:"server"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Progress ProgressConfig  `mapstructure:"progress"`
}

// SiteConfig identifies the target site and how to present to it.
type SiteConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	UserAgent     string `mapstructure:"user_agent"`
	RespectRobots bool   `mapstructure:"respect_robots"`
}

// CacheConfig controls the on-disk archive.
type CacheConfig struct {
	Dir       string        `mapstructure:"dir"`
	AssetTTL  time.Duration `mapstructure:"asset_ttl"`
	KeepFeeds int           `mapstructure:"keep_feeds"`
	MaxItems  int           `mapstructure:"max_items"`
}

// FetchConfig governs network behavior and pass parallelism.
type FetchConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay    time.Duration `mapstructure:"retry_max_delay"`
	PolitenessDelay  time.Duration `mapstructure:"politeness_delay"`
	Concurrency      int           `mapstructure:"concurrency"`
	AssetConcurrency int           `mapstructure:"asset_concurrency"`
	MaxBodyBytes     int           `mapstructure:"max_body_bytes"`
}

// AssetsConfig filters what the resolver will download.
type AssetsConfig struct {
	DenyDomains []string `mapstructure:"deny_domains"`
}

// ServerConfig controls the serve command's HTTP listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ProgressConfig tunes the pass progress hub and its sinks.
type ProgressConfig struct {
	LogEnabled     bool `mapstructure:"log_enabled"`
	JournalEnabled bool `mapstructure:"journal_enabled"`
	BufferSize     int  `mapstructure:"buffer_size"`
	MaxBatchEvents int  `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int  `mapstructure:"max_batch_wait_ms"`
	SinkTimeoutMs  int  `mapstructure:"sink_timeout_ms"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARCHIVER")
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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://www.ntn24.com")
	v.SetDefault("site.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	v.SetDefault("site.respect_robots", false)

	v.SetDefault("cache.dir", "./news_cache")
	v.SetDefault("cache.asset_ttl", 24*time.Hour)
	v.SetDefault("cache.keep_feeds", 20)
	v.SetDefault("cache.max_items", 0)

	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.retry_base_delay", 250*time.Millisecond)
	v.SetDefault("fetch.retry_max_delay", 5*time.Second)
	v.SetDefault("fetch.politeness_delay", 750*time.Millisecond)
	v.SetDefault("fetch.concurrency", 4)
	v.SetDefault("fetch.asset_concurrency", 4)
	v.SetDefault("fetch.max_body_bytes", 10<<20)

	v.SetDefault("server.port", 8910)
	v.SetDefault("logging.development", false)

	v.SetDefault("progress.log_enabled", false)
	v.SetDefault("progress.journal_enabled", true)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 64)
	v.SetDefault("progress.max_batch_wait_ms", 500)
	v.SetDefault("progress.sink_timeout_ms", 5000)

	// Selector rules default per key so a config file can override one
	// selector without restating the rest.
	rules := extractor.Default()
	v.SetDefault("rules.headline.image", rules.Headline.Image)
	v.SetDefault("rules.headline.container", rules.Headline.Container)
	v.SetDefault("rules.headline.text", rules.Headline.Text)
	v.SetDefault("rules.headline.summary", rules.Headline.Summary)
	v.SetDefault("rules.headline.published", rules.Headline.Published)
	v.SetDefault("rules.article.title", rules.Article.Title)
	v.SetDefault("rules.article.body", rules.Article.Body)
	v.SetDefault("rules.article.exclude", rules.Article.Exclude)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	base, err := url.Parse(c.Site.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute URL, got %q", c.Site.BaseURL)
	}
	if strings.TrimSpace(c.Cache.Dir) == "" {
		return fmt.Errorf("cache.dir must be set")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("fetch.max_attempts must be >= 1")
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be > 0")
	}
	if c.Fetch.AssetConcurrency <= 0 {
		return fmt.Errorf("fetch.asset_concurrency must be > 0")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if err := c.Rules.Validate(); err != nil {
		return err
	}
	return nil
}

// BatchMaxWait converts the hub batching knob into a duration.
func (c ProgressConfig) BatchMaxWait() time.Duration {
	return time.Duration(c.MaxBatchWaitMs) * time.Millisecond
}

// SinkTimeout converts the sink timeout knob into a duration.
func (c ProgressConfig) SinkTimeout() time.Duration {
	return time.Duration(c.SinkTimeoutMs) * time.Millisecond
}
