package config

import (
	"time"

	"github.com/phrazzld/scry-worker/internal/generation"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
}

// ServerConfig contains process-level settings.
type ServerConfig struct {
	LogLevel  string `mapstructure:"log_level"  validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=json text"`
	// OpsPort serves /healthz and /metrics
	OpsPort int `mapstructure:"ops_port" validate:"required,gt=0,lt=65536"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url"            validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// LLMConfig contains provider credentials, prompt location and retry settings.
type LLMConfig struct {
	Provider      string `mapstructure:"provider"        validate:"required,oneof=gemini openai"`
	GeminiAPIKey  string `mapstructure:"gemini_api_key"`
	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
	OpenAIBaseURL string `mapstructure:"openai_base_url" validate:"omitempty,url"`
	ModelName     string `mapstructure:"model_name"      validate:"required"`
	PromptsPath   string `mapstructure:"prompts_path"    validate:"required"`

	MaxRetries        int     `mapstructure:"max_retries"        validate:"gte=1"`
	InitialDelayMS    int     `mapstructure:"initial_delay_ms"   validate:"gt=0"`
	MaxDelayMS        int     `mapstructure:"max_delay_ms"       validate:"gtefield=InitialDelayMS"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier" validate:"gte=1"`
}

// RetryPolicy converts the retry settings to a generation.RetryPolicy.
func (c LLMConfig) RetryPolicy() generation.RetryPolicy {
	return generation.RetryPolicy{
		InitialDelay: time.Duration(c.InitialDelayMS) * time.Millisecond,
		Multiplier:   c.BackoffMultiplier,
		MaxDelay:     time.Duration(c.MaxDelayMS) * time.Millisecond,
		MaxAttempts:  c.MaxRetries,
	}
}

// APIKey returns the key of the selected provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

// TaskConfig contains background task processing settings.
type TaskConfig struct {
	WorkerCount            int           `mapstructure:"worker_count"              validate:"gte=1"`
	QueueSize              int           `mapstructure:"queue_size"                validate:"gte=1"`
	StuckTaskAge           time.Duration `mapstructure:"stuck_task_age"            validate:"gt=0"`
	StuckTaskCheckInterval time.Duration `mapstructure:"stuck_task_check_interval" validate:"gt=0"`
	PollInterval           time.Duration `mapstructure:"poll_interval"             validate:"gt=0"`
}
