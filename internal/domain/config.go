package domain

import "time"

// Config holds the application configuration
type Config struct {
	DataDir           string        `mapstructure:"data_dir"`
	LogLevel          string        `mapstructure:"log_level"`
	UserAgent         string        `mapstructure:"user_agent"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout"`
	AnalysisTimeout   time.Duration `mapstructure:"analysis_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	PageSize          int           `mapstructure:"page_size"`
	MalClientID       string        `mapstructure:"mal_client_id"`
	DiscordWebhookURL string        `mapstructure:"discord_webhook_url"`
}
