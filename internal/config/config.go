// Package config provides configuration management for the Race Edge application.
package config

import (
	"fmt"
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Models   ModelsConfig   `mapstructure:"models" validate:"required"`
	Ensemble EnsembleConfig `mapstructure:"ensemble" validate:"required"`
	Kelly    KellyConfig    `mapstructure:"kelly" validate:"required"`
	Policies PoliciesConfig `mapstructure:"policies" validate:"required"`
	Backtest BacktestConfig `mapstructure:"backtest" validate:"required"`
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Metrics  MetricsConfig  `mapstructure:"metrics" validate:"required"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents the entrant history store connection
type DatabaseConfig struct {
	Driver         string `mapstructure:"driver" validate:"required,storedriver"`
	Host           string `mapstructure:"host" validate:"required_if=Driver postgres"`
	Port           int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name           string `mapstructure:"name" validate:"required_if=Driver postgres"`
	User           string `mapstructure:"user" validate:"required_if=Driver postgres"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"omitempty,gt=0"`
	SQLitePath     string `mapstructure:"sqlite_path" validate:"required_if=Driver sqlite"`
	RunMigrations  bool   `mapstructure:"run_migrations"`
}

// ModelsConfig describes where scoring models and the calibrator come from
type ModelsConfig struct {
	Primary        ScorerConfig `mapstructure:"primary"`
	Secondary      ScorerConfig `mapstructure:"secondary"`
	CalibratorPath string       `mapstructure:"calibrator_path"`
	Version        string       `mapstructure:"version" validate:"required"`
	ReloadSchedule string       `mapstructure:"reload_schedule"`
}

// ScorerConfig describes one scoring model. Kind "none" leaves the slot empty.
type ScorerConfig struct {
	Kind           string  `mapstructure:"kind" validate:"omitempty,oneof=none linear http grpc"`
	Name           string  `mapstructure:"name"`
	Path           string  `mapstructure:"path" validate:"required_if=Kind linear"`
	URL            string  `mapstructure:"url" validate:"required_if=Kind http,omitempty,url"`
	Address        string  `mapstructure:"address" validate:"required_if=Kind grpc"`
	Token          string  `mapstructure:"token"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" validate:"omitempty,gt=0"`
	RetryAttempts  int     `mapstructure:"retry_attempts" validate:"gte=0"`
	RateLimit      float64 `mapstructure:"rate_limit" validate:"gte=0"`
	CacheTTLSecs   int     `mapstructure:"cache_ttl_seconds" validate:"gte=0"`
}

// Enabled reports whether the slot is configured with a model
func (s ScorerConfig) Enabled() bool {
	return s.Kind != "" && s.Kind != "none"
}

// EnsembleConfig holds the blending and anomaly detection policy constants
type EnsembleConfig struct {
	PrimaryWeight      float64 `mapstructure:"primary_weight" validate:"gte=0,lte=1"`
	SecondaryWeight    float64 `mapstructure:"secondary_weight" validate:"gte=0,lte=1"`
	SoftmaxTemperature float64 `mapstructure:"softmax_temperature" validate:"gt=0"`
	FlatStdThreshold   float64 `mapstructure:"flat_std_threshold" validate:"gte=0"`
	MinFieldSize       int     `mapstructure:"min_field_size" validate:"gte=0"`
	MaxFieldSize       int     `mapstructure:"max_field_size" validate:"gtefield=MinFieldSize"`
}

// KellyConfig holds the fractional Kelly sizing constants
type KellyConfig struct {
	InitialBankroll int64   `mapstructure:"initial_bankroll" validate:"required,gt=0"`
	KellyFraction   float64 `mapstructure:"kelly_fraction" validate:"gt=0,lte=1"`
	MaxBetFraction  float64 `mapstructure:"max_bet_fraction" validate:"gt=0,lte=1"`
	MinEdge         float64 `mapstructure:"min_edge" validate:"gte=0"`
	MinProbability  float64 `mapstructure:"min_probability" validate:"gte=0,lte=1"`
	MaxProbability  float64 `mapstructure:"max_probability" validate:"gte=0,lte=1,gtefield=MinProbability"`
	MinBet          int64   `mapstructure:"min_bet" validate:"gte=0"`
	Denomination    int64   `mapstructure:"denomination" validate:"gt=0"`
	DrawdownFloor   float64 `mapstructure:"drawdown_floor" validate:"gte=0,lt=1"`
}

// PoliciesConfig holds the alternative variance-reduction policy constants
type PoliciesConfig struct {
	Default     string            `mapstructure:"default" validate:"required,policy"`
	FixedStake  int64             `mapstructure:"fixed_stake" validate:"gt=0"`
	LowVariance LowVarianceConfig `mapstructure:"low_variance"`
	HighVolume  HighVolumeConfig  `mapstructure:"high_volume"`
	Diversified DiversifiedConfig `mapstructure:"diversified"`
}

// LowVarianceConfig configures the favourite-only policy
type LowVarianceConfig struct {
	MaxOdds float64 `mapstructure:"max_odds" validate:"gt=1"`
	MinEV   float64 `mapstructure:"min_ev" validate:"gt=0"`
}

// HighVolumeConfig configures the multi-bet policy
type HighVolumeConfig struct {
	MinEV   float64 `mapstructure:"min_ev" validate:"gt=0"`
	MaxBets int     `mapstructure:"max_bets" validate:"gt=0"`
}

// DiversifiedConfig configures the best-EV policy with place eligibility
type DiversifiedConfig struct {
	MinEV        float64 `mapstructure:"min_ev" validate:"gt=0"`
	PlaceMinProb float64 `mapstructure:"place_min_probability" validate:"gte=0,lte=1"`
}

// BacktestConfig represents backtesting configuration
type BacktestConfig struct {
	StartDate            string  `mapstructure:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate              string  `mapstructure:"end_date" validate:"required,datetime=2006-01-02"`
	OutputPath           string  `mapstructure:"output_path" validate:"required"`
	RiskFreeRate         float64 `mapstructure:"risk_free_rate" validate:"gte=0"`
	MonteCarloIterations int     `mapstructure:"monte_carlo_iterations" validate:"gte=0"`
	WalkForwardDays      int     `mapstructure:"walk_forward_days" validate:"gte=0"`
}

// ServerConfig represents the prediction API server configuration
type ServerConfig struct {
	Port            int      `mapstructure:"port" validate:"required,min=1,max=65535"`
	HealthPort      int      `mapstructure:"health_port" validate:"required,min=1,max=65535,nefield=Port"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	MaxConcurrent   int      `mapstructure:"max_concurrent" validate:"required,gt=0"`
	RequestTimeoutS int      `mapstructure:"request_timeout_seconds" validate:"required,gt=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required"`
}

// TracingConfig represents AWS X-Ray tracing configuration
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	DaemonAddr   string  `mapstructure:"daemon_addr" validate:"required_if=Enabled true"`
	SamplingRate float64 `mapstructure:"sampling_rate" validate:"gte=0,lte=1"`
}

// SecretsConfig selects the optional AWS Secrets Manager overlay
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region" validate:"required_if=Enabled true"`
	SecretName string `mapstructure:"secret_name" validate:"required_if=Enabled true"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
