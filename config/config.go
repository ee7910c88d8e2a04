package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the media research service.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Research  ResearchConfig  `mapstructure:"research"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PageFetch PageFetchConfig `mapstructure:"page_fetch"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig configures the text-generation/scoring capability. When APIKey is
// empty the planner falls back to templates and Stage B scoring is skipped.
type LLMConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ScoreBatchSize int           `mapstructure:"score_batch_size"`
}

// ResearchConfig tunes the aggregation pipeline.
type ResearchConfig struct {
	QueriesPerType    int           `mapstructure:"queries_per_type"`
	PerCallLimit      int           `mapstructure:"per_call_limit"`
	FanoutTimeout     time.Duration `mapstructure:"fanout_timeout"`
	FilterThreshold   float64       `mapstructure:"filter_threshold"`
	TitleBlacklist    []string      `mapstructure:"title_blacklist"`
	MaxConcurrentJobs int           `mapstructure:"max_concurrent_jobs"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	JanitorInterval   time.Duration `mapstructure:"janitor_interval"`
	JobRetention      time.Duration `mapstructure:"job_retention"`
	RecordRetention   time.Duration `mapstructure:"record_retention"`
}

// SourceConfig is the per-adapter switch. Endpoint overrides exist for tests
// and self-hosted mirrors; empty means the adapter's default.
type SourceConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// SourcesConfig lists every adapter the registry may construct.
type SourcesConfig struct {
	Archive     SourceConfig `mapstructure:"archive"`
	Chronicling SourceConfig `mapstructure:"chronicling"`
	Wikimedia   SourceConfig `mapstructure:"wikimedia"`
	Openverse   SourceConfig `mapstructure:"openverse"`
	NewsAPI     SourceConfig `mapstructure:"newsapi"`
	Serper      SourceConfig `mapstructure:"serper"`
	Brave       SourceConfig `mapstructure:"brave"`
	DuckDuckGo  SourceConfig `mapstructure:"duckduckgo"`
}

// StorageConfig contains database settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig configures the persistent sink.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DSN assembles a postgres connection string from the configured parts.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig configures the optional query cache. Host empty disables redis
// and the cache falls back to process memory.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PageFetchConfig configures the pooled headless-browser enrichment capability.
type PageFetchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	PoolSize int           `mapstructure:"pool_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

// LoadConfig reads configuration from file and environment (MEDIASCOUT_*).
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":10040")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 1200)
	viper.SetDefault("llm.timeout", 30*time.Second)
	viper.SetDefault("llm.score_batch_size", 20)
	viper.SetDefault("research.queries_per_type", 3)
	viper.SetDefault("research.per_call_limit", 20)
	viper.SetDefault("research.fanout_timeout", 20*time.Second)
	viper.SetDefault("research.filter_threshold", 0.5)
	viper.SetDefault("research.max_concurrent_jobs", 4)
	viper.SetDefault("research.cache_ttl", 10*time.Minute)
	viper.SetDefault("research.janitor_interval", 5*time.Minute)
	viper.SetDefault("research.job_retention", time.Hour)
	viper.SetDefault("research.record_retention", 7*24*time.Hour)
	viper.SetDefault("sources.archive.enabled", true)
	viper.SetDefault("sources.chronicling.enabled", true)
	viper.SetDefault("sources.wikimedia.enabled", true)
	viper.SetDefault("sources.openverse.enabled", true)
	viper.SetDefault("sources.duckduckgo.enabled", true)
	viper.SetDefault("storage.postgres.timeout", 5*time.Second)
	viper.SetDefault("storage.redis.timeout", 2*time.Second)
	viper.SetDefault("page_fetch.pool_size", 2)
	viper.SetDefault("page_fetch.timeout", 15*time.Second)
	viper.SetDefault("page_fetch.max_chars", 2000)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("MEDIASCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; defaults plus env are a valid setup.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return &config
}
