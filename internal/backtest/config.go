package backtest

import (
	"fmt"
	"time"

	"github.com/yourusername/race-edge/internal/betting"
	"github.com/yourusername/race-edge/internal/config"
)

// Config holds the settings of one backtest run
type Config struct {
	StartDate            time.Time
	EndDate              time.Time
	InitialBankroll      int64
	OutputPath           string
	RiskFreeRate         float64
	MonteCarloIterations int
	WalkForwardDays      int
	Kelly                config.KellyConfig
	Policies             config.PoliciesConfig
}

// FromConfig converts app config to backtest config
func FromConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("config is required")
	}
	start, err := time.Parse("2006-01-02", cfg.Backtest.StartDate)
	if err != nil {
		return Config{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", cfg.Backtest.EndDate)
	if err != nil {
		return Config{}, fmt.Errorf("invalid end date: %w", err)
	}

	bt := Config{
		StartDate:            start,
		EndDate:              end,
		InitialBankroll:      cfg.Kelly.InitialBankroll,
		OutputPath:           cfg.Backtest.OutputPath,
		RiskFreeRate:         cfg.Backtest.RiskFreeRate,
		MonteCarloIterations: cfg.Backtest.MonteCarloIterations,
		WalkForwardDays:      cfg.Backtest.WalkForwardDays,
		Kelly:                cfg.Kelly,
		Policies:             cfg.Policies,
	}

	return bt, bt.Validate()
}

// Validate validates backtest config parameters
func (c Config) Validate() error {
	if c.StartDate.After(c.EndDate) {
		return fmt.Errorf("start date must not be after end date")
	}
	if c.InitialBankroll <= 0 {
		return fmt.Errorf("initial bankroll must be positive")
	}
	if c.MonteCarloIterations < 0 {
		return fmt.Errorf("monte carlo iterations cannot be negative")
	}
	if c.WalkForwardDays < 0 {
		return fmt.Errorf("walk forward window cannot be negative")
	}
	return nil
}

// NewPolicy builds a named policy with fresh state. A Kelly policy gets its
// own sizer starting at the initial bankroll.
func (c Config) NewPolicy(name string) (betting.Policy, error) {
	kelly := c.Kelly
	kelly.InitialBankroll = c.InitialBankroll
	return betting.PolicyByName(name, c.Policies, betting.NewKellySizer(kelly, c.InitialBankroll))
}
