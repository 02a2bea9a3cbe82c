package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the deep search pipeline
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LLMConfig contains model-serving endpoint settings
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.BaseURL) == "" {
		return fmt.Errorf("llm.base_url must not be empty")
	}
	if l.MaxRetries < 1 {
		return fmt.Errorf("llm.max_retries must be >= 1")
	}
	return nil
}

// SearchConfig contains search provider settings
type SearchConfig struct {
	Provider     string        `mapstructure:"provider"`
	ResultCount  int           `mapstructure:"result_count"`
	Attempts     int           `mapstructure:"attempts"`
	BaseBackoff  time.Duration `mapstructure:"base_backoff"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	Breaker      BreakerConfig `mapstructure:"breaker"`
}

func (s SearchConfig) Validate() error {
	if s.Attempts < 1 {
		return fmt.Errorf("search.attempts must be >= 1")
	}
	if s.ResultCount < 1 || s.ResultCount > 10 {
		return fmt.Errorf("search.result_count must be in [1,10]")
	}
	return nil
}

// BreakerConfig contains circuit breaker thresholds for the search provider
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
}

// FetchConfig contains page fetching and conversion settings
type FetchConfig struct {
	Fetcher          string        `mapstructure:"fetcher"` // http, chromedp
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxContentLength int           `mapstructure:"max_content_length"`
}

func (f FetchConfig) Validate() error {
	switch f.Fetcher {
	case "http", "chromedp":
	default:
		return fmt.Errorf("fetch.fetcher must be http or chromedp, got %q", f.Fetcher)
	}
	if f.MaxContentLength <= 0 {
		return fmt.Errorf("fetch.max_content_length must be > 0")
	}
	return nil
}

// PlannerConfig contains auto-planner settings
type PlannerConfig struct {
	MaxSteps int `mapstructure:"max_steps"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// TelemetryConfig contains monitoring settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from an optional file, environment, and defaults.
// Every setting has a working default; a missing config file is not an error.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.request_timeout", 300*time.Second)
	viper.SetDefault("llm.base_url", "http://localhost:11435")
	viper.SetDefault("llm.model", "llama3.2")
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.max_retries", 3)
	viper.SetDefault("llm.timeout", 300*time.Second)
	viper.SetDefault("search.provider", "duckduckgo")
	viper.SetDefault("search.result_count", 5)
	viper.SetDefault("search.attempts", 5)
	viper.SetDefault("search.base_backoff", time.Second)
	viper.SetDefault("search.breaker.failure_threshold", 5)
	viper.SetDefault("search.breaker.recovery_timeout", 60*time.Second)
	viper.SetDefault("fetch.fetcher", "http")
	viper.SetDefault("fetch.timeout", 20*time.Second)
	viper.SetDefault("fetch.max_content_length", 8000)
	viper.SetDefault("planner.max_steps", 5)
	viper.SetDefault("server.address", ":10011")
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("DEEPSEARCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bare environment names kept for operators coming from the legacy deployment.
	_ = viper.BindEnv("general.request_timeout", "DEEPSEARCH_GENERAL_REQUEST_TIMEOUT", "REQUEST_TIMEOUT")
	_ = viper.BindEnv("fetch.timeout", "DEEPSEARCH_FETCH_TIMEOUT", "FETCH_TIMEOUT")
	_ = viper.BindEnv("fetch.max_content_length", "DEEPSEARCH_FETCH_MAX_CONTENT_LENGTH", "MAX_CONTENT_LENGTH")
	_ = viper.BindEnv("llm.base_url", "DEEPSEARCH_LLM_BASE_URL", "OLLAMA_BASE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Search.Validate(); err != nil {
		panic(err)
	}
	if err := config.Fetch.Validate(); err != nil {
		panic(err)
	}
	return &config
}
