// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.sitegen/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider selection and per-generation-type model names
//   - Storage: PostgreSQL connection (see storage.go)
//   - Codegen: output/deploy roots, memory window, cache lifetimes
//   - Server: listen address, CORS, rate limiting
//   - Tracing: OTLP trace export (optional)
//
// Error Handling:
//   - Sentinel errors enable errors.Is() checks; see validation.go
//   - Sensitive values (postgres password) are masked in String()
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

const (
	// DefaultMemoryTurns is the default conversation memory window size.
	DefaultMemoryTurns = 20

	// DefaultContextBudget is the maximum number of characters of existing
	// code injected into an edit request.
	DefaultContextBudget = 8000

	// DefaultMaxToolCalls bounds the sequential tool invocations in a
	// single project generation turn.
	DefaultMaxToolCalls = 20

	// DefaultCacheWriteTTL evicts a generation client this long after it
	// was constructed, regardless of use.
	DefaultCacheWriteTTL = 30 * time.Minute

	// DefaultCacheIdleTTL evicts a generation client this long after its
	// last use.
	DefaultCacheIdleTTL = 10 * time.Minute
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider     string `mapstructure:"provider" json:"provider"`           // "gemini" (default), "openai", "ollama"
	ModelName    string `mapstructure:"model_name" json:"model_name"`       // model for html / multi_file generation
	ProjectModel string `mapstructure:"project_model" json:"project_model"` // model for project (tool-driven) generation
	OllamaHost   string `mapstructure:"ollama_host" json:"ollama_host"`

	// Conversation memory and generation limits
	MemoryTurns   int `mapstructure:"memory_turns" json:"memory_turns"`
	ContextBudget int `mapstructure:"context_budget" json:"context_budget"`
	MaxToolCalls  int `mapstructure:"max_tool_calls" json:"max_tool_calls"`

	// Generation client cache lifetimes
	CacheWriteTTL time.Duration `mapstructure:"cache_write_ttl" json:"cache_write_ttl"`
	CacheIdleTTL  time.Duration `mapstructure:"cache_idle_ttl" json:"cache_idle_ttl"`

	// Artifact storage
	OutputRoot string `mapstructure:"output_root" json:"output_root"` // generated code root
	DeployRoot string `mapstructure:"deploy_root" json:"deploy_root"` // deployed site root
	DeployHost string `mapstructure:"deploy_host" json:"deploy_host"` // public base URL for deployed sites

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"` // SENSITIVE: masked
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Server configuration
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Tracing configuration (optional)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"` // host:port of an OTLP HTTP collector
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Load reads configuration from file, environment, and defaults,
// then validates it (fail-fast).
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".sitegen")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine — defaults plus env apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("project_model", "gemini-2.5-pro")
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Generation defaults
	viper.SetDefault("memory_turns", DefaultMemoryTurns)
	viper.SetDefault("context_budget", DefaultContextBudget)
	viper.SetDefault("max_tool_calls", DefaultMaxToolCalls)
	viper.SetDefault("cache_write_ttl", DefaultCacheWriteTTL)
	viper.SetDefault("cache_idle_ttl", DefaultCacheIdleTTL)

	// Artifact storage defaults
	viper.SetDefault("output_root", "tmp/code_output")
	viper.SetDefault("deploy_root", "tmp/code_deploy")
	viper.SetDefault("deploy_host", "http://localhost:8123/static")

	// PostgreSQL defaults (local development)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "sitegen")
	viper.SetDefault("postgres_password", "sitegen_dev_password")
	viper.SetDefault("postgres_db_name", "sitegen")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults
	viper.SetDefault("listen_addr", "localhost:8123")
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 60)

	// Tracing defaults (off until explicitly enabled)
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.service_name", "sitegen")
	viper.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment overrides explicitly.
// API keys (GEMINI_API_KEY, OPENAI_API_KEY) are read directly by the Genkit
// provider plugins, not via Viper; Validate() checks their presence.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "SITEGEN_PROVIDER")
	mustBind("model_name", "SITEGEN_MODEL_NAME")
	mustBind("project_model", "SITEGEN_PROJECT_MODEL")
	mustBind("ollama_host", "SITEGEN_OLLAMA_HOST")
	mustBind("listen_addr", "SITEGEN_LISTEN_ADDR")
	mustBind("output_root", "SITEGEN_OUTPUT_ROOT")
	mustBind("deploy_root", "SITEGEN_DEPLOY_ROOT")
	mustBind("deploy_host", "SITEGEN_DEPLOY_HOST")
	mustBind("cors_origins", "SITEGEN_CORS_ORIGINS")
	mustBind("trust_proxy", "SITEGEN_TRUST_PROXY")
	mustBind("rate_burst", "SITEGEN_RATE_BURST")
	mustBind("tracing.enabled", "SITEGEN_TRACING_ENABLED")
	mustBind("tracing.endpoint", "SITEGEN_TRACING_ENDPOINT")
}

// String returns a loggable representation with the password masked.
func (c Config) String() string {
	return fmt.Sprintf("Config{provider=%s model=%s project_model=%s postgres=%s:%d/%s output_root=%s listen=%s}",
		c.Provider, c.ModelName, c.ProjectModel,
		c.PostgresHost, c.PostgresPort, c.PostgresDBName,
		c.OutputRoot, c.ListenAddr)
}
