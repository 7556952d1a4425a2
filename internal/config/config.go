// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Companies CompaniesConfig `yaml:"companies" mapstructure:"companies"`
	Profiles  ProfilesConfig  `yaml:"profiles" mapstructure:"profiles"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Query     QueryConfig     `yaml:"query" mapstructure:"query"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CompaniesConfig points at the read-only company/financial data store.
type CompaniesConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ProfilesConfig configures the two profile sinks and the local cache file.
type ProfilesConfig struct {
	// DatabaseURL enables the Postgres primary sink when set.
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// SQLitePath is the secondary sink plus local caches (addresses, kb index).
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// AnthropicConfig holds generation-service settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// OpenAIConfig holds embedding-service settings.
type OpenAIConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
}

// JinaConfig holds Jina AI Reader/Search settings.
type JinaConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string  `yaml:"search_base_url" mapstructure:"search_base_url"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// QueryConfig configures compilation and execution of company queries.
type QueryConfig struct {
	PageSize      int `yaml:"page_size" mapstructure:"page_size"`
	ResultCeiling int `yaml:"result_ceiling" mapstructure:"result_ceiling"`
	RetrieverK    int `yaml:"retriever_k" mapstructure:"retriever_k"`
}

// EnrichConfig configures the enrichment orchestrator.
type EnrichConfig struct {
	Concurrency   int `yaml:"concurrency" mapstructure:"concurrency"`
	CharBudget    int `yaml:"char_budget" mapstructure:"char_budget"`
	FetchTimeout  int `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	SearchTimeout int `yaml:"search_timeout_secs" mapstructure:"search_timeout_secs"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("companies.max_conns", 10)
	v.SetDefault("profiles.sqlite_path", "prospector.db")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.timeout_secs", 60)
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.rate_per_sec", 2.0)
	v.SetDefault("jina.timeout_secs", 30)
	v.SetDefault("query.page_size", 50)
	v.SetDefault("query.result_ceiling", 300)
	v.SetDefault("query.retriever_k", 4)
	v.SetDefault("enrich.concurrency", 4)
	v.SetDefault("enrich.char_budget", 24000)
	v.SetDefault("enrich.fetch_timeout_secs", 30)
	v.SetDefault("enrich.search_timeout_secs", 15)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
