package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envBindings maps configuration keys to the environment variables that override them.
var envBindings = map[string]string{
	"server.log_level":               "SCRY_SERVER_LOG_LEVEL",
	"server.log_format":              "SCRY_SERVER_LOG_FORMAT",
	"server.ops_port":                "SCRY_SERVER_OPS_PORT",
	"database.url":                   "SCRY_DATABASE_URL",
	"database.max_open_conns":        "SCRY_DATABASE_MAX_OPEN_CONNS",
	"database.max_idle_conns":        "SCRY_DATABASE_MAX_IDLE_CONNS",
	"llm.provider":                   "SCRY_LLM_PROVIDER",
	"llm.gemini_api_key":             "SCRY_LLM_GEMINI_API_KEY",
	"llm.openai_api_key":             "SCRY_LLM_OPENAI_API_KEY",
	"llm.openai_base_url":            "SCRY_LLM_OPENAI_BASE_URL",
	"llm.model_name":                 "SCRY_LLM_MODEL_NAME",
	"llm.prompts_path":               "SCRY_LLM_PROMPTS_PATH",
	"llm.max_retries":                "SCRY_LLM_MAX_RETRIES",
	"llm.initial_delay_ms":           "SCRY_LLM_INITIAL_DELAY_MS",
	"llm.max_delay_ms":               "SCRY_LLM_MAX_DELAY_MS",
	"llm.backoff_multiplier":         "SCRY_LLM_BACKOFF_MULTIPLIER",
	"task.worker_count":              "SCRY_TASK_WORKER_COUNT",
	"task.queue_size":                "SCRY_TASK_QUEUE_SIZE",
	"task.stuck_task_age":            "SCRY_TASK_STUCK_TASK_AGE",
	"task.stuck_task_check_interval": "SCRY_TASK_STUCK_TASK_CHECK_INTERVAL",
	"task.poll_interval":             "SCRY_TASK_POLL_INTERVAL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.ops_port", 9090)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.prompts_path", "prompts.yaml")
	v.SetDefault("llm.max_retries", 10)
	v.SetDefault("llm.initial_delay_ms", 5000)
	v.SetDefault("llm.max_delay_ms", 60000)
	v.SetDefault("llm.backoff_multiplier", 2.0)

	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.stuck_task_age", "30m")
	v.SetDefault("task.stuck_task_check_interval", "5m")
	v.SetDefault("task.poll_interval", "10s")
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads the given YAML file instead of searching
// for config.yaml. An empty path falls back to the search.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SCRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the provider credential requirement.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterStructValidation(validateLLMConfig, LLMConfig{})

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// validateLLMConfig requires the API key of the selected provider.
func validateLLMConfig(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(LLMConfig)

	switch cfg.Provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			sl.ReportError(cfg.GeminiAPIKey, "GeminiAPIKey", "gemini_api_key", "required_for_provider", cfg.Provider)
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			sl.ReportError(cfg.OpenAIAPIKey, "OpenAIAPIKey", "openai_api_key", "required_for_provider", cfg.Provider)
		}
	}
}
