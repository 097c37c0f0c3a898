package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	internal "github.com/ZanzyTHEbar/docchat/docchat"
	"github.com/ZanzyTHEbar/docchat/docchat/conversation"
	"github.com/ZanzyTHEbar/docchat/docchat/harness/adapters"
)

// ErrMissingCredential is the only configuration error that should abort the process.
var ErrMissingCredential = errors.New("config: missing " + internal.CredentialEnv)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	App    AppConfig    `mapstructure:"app"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Ingest IngestConfig `mapstructure:"ingest"`
	Server ServerConfig `mapstructure:"server"`
}

// AppConfig stores logging and tracing settings.
type AppConfig struct {
	LogLevel      string `mapstructure:"log_level"`      // trace, debug, info, warn, error
	LogFormat     string `mapstructure:"log_format"`     // "console" or "json"
	EnableTracing bool   `mapstructure:"enable_tracing"` // Log completion spans
}

// LLMConfig stores completion provider settings.
type LLMConfig struct {
	Provider            string        `mapstructure:"provider"` // "dashscope", "stub"
	BaseURL             string        `mapstructure:"base_url"`
	Model               string        `mapstructure:"model"`
	APIKey              string        `mapstructure:"api_key"`
	Timeout             time.Duration `mapstructure:"timeout"`
	InstructionTemplate string        `mapstructure:"instruction_template"` // %s is replaced by the username
}

// IngestConfig stores upload and extraction settings.
type IngestConfig struct {
	MaxUploadBytes  int64 `mapstructure:"max_upload_bytes"`
	CacheEnabled    bool  `mapstructure:"cache_enabled"`     // Memoize extracted text by content hash
	CacheCapacity   int   `mapstructure:"cache_capacity"`    // LRU cache capacity
	CacheTTLSeconds int   `mapstructure:"cache_ttl_seconds"` // Cache entry TTL
	Concurrency     int   `mapstructure:"concurrency"`       // Max concurrent extractions per batch
}

// ServerConfig stores HTTP surface settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
	// SessionIdleTimeout drops sessions unused for this long; 0 keeps them forever.
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
}

// LoadConfig reads configuration from file, .env and environment variables.
// An empty configPath searches the working directory and the user config directory.
func LoadConfig(configPath string) (*Config, error) {
	// a missing .env is normal
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.AutomaticEnv()
	// llm.base_url becomes LLM_BASE_URL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("llm.api_key", internal.CredentialEnv, "LLM_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind credential env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")
	v.SetDefault("app.enable_tracing", true)

	v.SetDefault("llm.provider", internal.DefaultProvider)
	v.SetDefault("llm.base_url", adapters.DefaultDashScopeBaseURL)
	v.SetDefault("llm.model", internal.DefaultModel)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.instruction_template", conversation.DefaultInstructionTemplate)

	v.SetDefault("ingest.max_upload_bytes", internal.DefaultMaxUploadMiB<<20)
	v.SetDefault("ingest.cache_enabled", true)
	v.SetDefault("ingest.cache_capacity", 256)
	v.SetDefault("ingest.cache_ttl_seconds", 3600) // 1 hour
	v.SetDefault("ingest.concurrency", 4)

	v.SetDefault("server.addr", internal.DefaultServerAddr)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.session_idle_timeout", "24h")
}

// Validate checks the values that have no usable fallback.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "dashscope":
		if strings.TrimSpace(c.LLM.APIKey) == "" {
			return ErrMissingCredential
		}
	case "stub":
	default:
		return fmt.Errorf("config: unknown llm.provider %q", c.LLM.Provider)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("config: llm.timeout must be positive, got %s", c.LLM.Timeout)
	}
	if c.Ingest.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: ingest.max_upload_bytes must be positive, got %d", c.Ingest.MaxUploadBytes)
	}
	if c.Server.SessionIdleTimeout < 0 {
		return fmt.Errorf("config: server.session_idle_timeout must not be negative, got %s", c.Server.SessionIdleTimeout)
	}
	if !strings.Contains(c.LLM.InstructionTemplate, "%s") {
		return fmt.Errorf("config: llm.instruction_template must contain %%s")
	}
	return nil
}
