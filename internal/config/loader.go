// Package config provides configuration management for the Race Edge application.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "RACE_EDGE"

// Load reads and parses the configuration from file and environment variables
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	setDefaults(v)

	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional fields.
// A missing file is not an error: defaults and environment variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults registers the policy constants the predictor was tuned with.
// AutomaticEnv only resolves keys viper knows about, so every overridable key
// needs a default here.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "race-edge")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.password", "")
	v.SetDefault("database.sqlite_path", "data/keiba.db")

	v.SetDefault("models.version", "v2-kelly")
	v.SetDefault("models.primary.kind", "none")
	v.SetDefault("models.secondary.kind", "none")
	v.SetDefault("models.calibrator_path", "")
	v.SetDefault("models.reload_schedule", "")

	v.SetDefault("ensemble.primary_weight", 0.6)
	v.SetDefault("ensemble.secondary_weight", 0.4)
	v.SetDefault("ensemble.softmax_temperature", 1.0)
	v.SetDefault("ensemble.flat_std_threshold", 0.03)
	v.SetDefault("ensemble.min_field_size", 8)
	v.SetDefault("ensemble.max_field_size", 18)

	v.SetDefault("kelly.initial_bankroll", 100000)
	v.SetDefault("kelly.kelly_fraction", 0.25)
	v.SetDefault("kelly.max_bet_fraction", 0.05)
	v.SetDefault("kelly.min_edge", 0.20)
	v.SetDefault("kelly.min_probability", 0.10)
	v.SetDefault("kelly.max_probability", 0.80)
	v.SetDefault("kelly.min_bet", 100)
	v.SetDefault("kelly.denomination", 100)
	v.SetDefault("kelly.drawdown_floor", 0.5)

	v.SetDefault("policies.default", "kelly")
	v.SetDefault("policies.fixed_stake", 100)
	v.SetDefault("policies.low_variance.max_odds", 3.0)
	v.SetDefault("policies.low_variance.min_ev", 1.3)
	v.SetDefault("policies.high_volume.min_ev", 1.15)
	v.SetDefault("policies.high_volume.max_bets", 3)
	v.SetDefault("policies.diversified.min_ev", 1.25)
	v.SetDefault("policies.diversified.place_min_probability", 0.25)

	v.SetDefault("backtest.start_date", "2025-01-01")
	v.SetDefault("backtest.end_date", "2025-12-31")
	v.SetDefault("backtest.output_path", "./output")
	v.SetDefault("backtest.risk_free_rate", 0.0)
	v.SetDefault("backtest.monte_carlo_iterations", 1000)
	v.SetDefault("backtest.walk_forward_days", 30)

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.health_port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_concurrent", 4)
	v.SetDefault("server.request_timeout_seconds", 30)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.daemon_addr", "127.0.0.1:2000")
	v.SetDefault("tracing.sampling_rate", 0.05)

	v.SetDefault("secrets.enabled", false)
	v.SetDefault("secrets.region", "")
	v.SetDefault("secrets.secret_name", "")
}
