// Package config loads the application configuration from viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/httpclient"
)

// SetDefaults registers the default value of every key
func SetDefaults() {
	viper.SetDefault("data_dir", defaultDataDir())
	viper.SetDefault("log_level", "info")
	viper.SetDefault("user_agent", httpclient.DefaultUserAgent)
	viper.SetDefault("probe_timeout", 30*time.Second)
	viper.SetDefault("analysis_timeout", 2*time.Minute)
	viper.SetDefault("request_timeout", 15*time.Second)
	viper.SetDefault("retry_attempts", 3)
	viper.SetDefault("retry_backoff", 500*time.Millisecond)
	viper.SetDefault("page_size", 20)
}

// Load loads configuration from multiple sources:
// 1. Config file ($HOME/.shinkrosrc.yaml or ./config.yaml, optional)
// 2. Environment variables (SHINKROSRC_*)
// 3. Defaults
func Load() (*domain.Config, error) {
	SetDefaults()

	cfg := &domain.Config{
		DataDir:           viper.GetString("data_dir"),
		LogLevel:          strings.ToLower(viper.GetString("log_level")),
		UserAgent:         viper.GetString("user_agent"),
		ProbeTimeout:      viper.GetDuration("probe_timeout"),
		AnalysisTimeout:   viper.GetDuration("analysis_timeout"),
		RequestTimeout:    viper.GetDuration("request_timeout"),
		RetryAttempts:     viper.GetInt("retry_attempts"),
		RetryBackoff:      viper.GetDuration("retry_backoff"),
		PageSize:          viper.GetInt("page_size"),
		MalClientID:       viper.GetString("mal_client_id"),
		DiscordWebhookURL: viper.GetString("discord_webhook_url"),
	}

	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required (set via config file or SHINKROSRC_DATA_DIR environment variable)")
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log_level: %s", cfg.LogLevel)
	}
	if cfg.RetryAttempts < 1 || cfg.RetryAttempts > 10 {
		return nil, fmt.Errorf("invalid retry_attempts: %d (must be between 1 and 10)", cfg.RetryAttempts)
	}
	for key, d := range map[string]time.Duration{
		"probe_timeout":    cfg.ProbeTimeout,
		"analysis_timeout": cfg.AnalysisTimeout,
		"request_timeout":  cfg.RequestTimeout,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("invalid %s: %s (must be positive)", key, d)
		}
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("invalid page_size: %d", cfg.PageSize)
	}

	return cfg, nil
}

// HTTPOptions returns the retrying client options for cfg
func HTTPOptions(cfg *domain.Config) httpclient.Options {
	return httpclient.Options{
		Attempts:  cfg.RetryAttempts,
		Timeout:   cfg.RequestTimeout,
		Backoff:   cfg.RetryBackoff,
		UserAgent: cfg.UserAgent,
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "shinkrosrc")
	}
	return "."
}
