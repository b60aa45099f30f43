// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage, publisher and run-store providers.
const (
	ProviderLocal    = "local"
	ProviderGCS      = "gcs"
	ProviderNone     = "none"
	ProviderMemory   = "memory"
	ProviderPubSub   = "pubsub"
	ProviderPostgres = "postgres"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Runs      RunsConfig      `mapstructure:"runs"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the operator HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// AuthConfig guards the mutating API routes.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs the breadth-first crawl.
type CrawlerConfig struct {
	Seeds             []string `mapstructure:"seeds"`
	Concurrency       int      `mapstructure:"concurrency"`
	UserAgent         string   `mapstructure:"user_agent"`
	MaxPages          int      `mapstructure:"max_pages"`
	RespectRobots     bool     `mapstructure:"respect_robots"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
	Burst             int      `mapstructure:"burst"`
	GalleryMarkers    []string `mapstructure:"gallery_markers"`
}

// FetcherConfig tunes the shared HTTP session.
type FetcherConfig struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
}

// StorageConfig sets the staging area and the durable destination.
type StorageConfig struct {
	OutputDir string    `mapstructure:"output_dir"`
	Provider  string    `mapstructure:"provider"`
	Dir       string    `mapstructure:"dir"`
	GCS       GCSConfig `mapstructure:"gcs"`
}

// GCSConfig names the bucket used when storage.provider is gcs.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// ScheduleConfig controls the periodic trigger.
type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// PublisherConfig selects where promotion events are announced.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// RunsConfig selects where run summaries are kept.
type RunsConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	Capacity int    `mapstructure:"capacity"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MINI")
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
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("crawler.seeds", []string{"https://ww2.mini.pw.edu.pl/"})
	v.SetDefault("crawler.concurrency", 10)
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (compatible; MiNI-Chatbot-Crawler/1.0; +https://ww2.mini.pw.edu.pl/)")
	v.SetDefault("crawler.max_pages", 0)
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("crawler.requests_per_second", 0)
	v.SetDefault("crawler.burst", 1)
	v.SetDefault("crawler.gallery_markers", []string{"nggallery", "ngg_", "photo-gallery"})
	v.SetDefault("fetcher.timeout", "20s")
	v.SetDefault("fetcher.max_idle_conns_per_host", 20)
	v.SetDefault("storage.output_dir", "data/raw/scraper")
	v.SetDefault("storage.provider", ProviderLocal)
	v.SetDefault("storage.dir", "data/final_storage")
	v.SetDefault("storage.gcs.prefix", "final_storage")
	v.SetDefault("schedule.interval", "168h")
	v.SetDefault("publisher.provider", ProviderNone)
	v.SetDefault("runs.provider", ProviderMemory)
	v.SetDefault("runs.table", "crawl_runs")
	v.SetDefault("runs.capacity", 256)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Crawler.Seeds) == 0 {
		return fmt.Errorf("crawler.seeds must list at least one url")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.MaxPages < 0 {
		return fmt.Errorf("crawler.max_pages must be >= 0")
	}
	if c.Crawler.RequestsPerSecond < 0 {
		return fmt.Errorf("crawler.requests_per_second must be >= 0")
	}
	if c.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be > 0")
	}
	if c.Storage.OutputDir == "" {
		return fmt.Errorf("storage.output_dir is required")
	}
	switch c.Storage.Provider {
	case ProviderLocal:
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the local provider")
		}
	case ProviderGCS:
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket is required for the gcs provider")
		}
	default:
		return fmt.Errorf("storage.provider %q is not supported", c.Storage.Provider)
	}
	if c.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be > 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Publisher.Provider {
	case ProviderNone, ProviderMemory:
	case ProviderPubSub:
		if c.Publisher.ProjectID == "" || c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic are required for pubsub")
		}
	default:
		return fmt.Errorf("publisher.provider %q is not supported", c.Publisher.Provider)
	}
	switch c.Runs.Provider {
	case ProviderMemory:
	case ProviderPostgres:
		if c.Runs.DSN == "" {
			return fmt.Errorf("runs.dsn is required for the postgres provider")
		}
	default:
		return fmt.Errorf("runs.provider %q is not supported", c.Runs.Provider)
	}
	return nil
}
