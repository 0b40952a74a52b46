// Package config provides configuration management for the Race Edge application.
package config

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// PolicyNames lists the stake policies a configuration may select
var PolicyNames = []string{"kelly", "low_variance", "high_volume", "diversified", "flat"}

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("storedriver", validateStoreDriver)
	_ = v.RegisterValidation("policy", validatePolicy)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := validateCrossField(cfg); err != nil {
		return err
	}

	return nil
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validateStoreDriver(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "postgres", "sqlite", "memory":
		return true
	default:
		return false
	}
}

func validatePolicy(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	for _, p := range PolicyNames {
		if p == name {
			return true
		}
	}
	return false
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	startDate, err := time.Parse("2006-01-02", cfg.Backtest.StartDate)
	if err != nil {
		return fmt.Errorf("invalid backtest start_date format: %w", err)
	}

	endDate, err := time.Parse("2006-01-02", cfg.Backtest.EndDate)
	if err != nil {
		return fmt.Errorf("invalid backtest end_date format: %w", err)
	}

	if endDate.Before(startDate) {
		return fmt.Errorf("backtest start_date must not be after end_date")
	}

	if cfg.IsProduction() && cfg.Database.Driver == "postgres" && cfg.Database.SSLMode == "disable" {
		return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
	}

	if cfg.Models.Primary.Enabled() && cfg.Models.Secondary.Enabled() {
		sum := cfg.Ensemble.PrimaryWeight + cfg.Ensemble.SecondaryWeight
		if math.Abs(sum-1.0) > 1e-6 {
			return fmt.Errorf("ensemble weights must sum to 1, got %.4f", sum)
		}
	}

	if !cfg.Models.Primary.Enabled() && cfg.Models.Secondary.Enabled() {
		return fmt.Errorf("secondary model configured without a primary model")
	}

	if cfg.Models.ReloadSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Models.ReloadSchedule); err != nil {
			return fmt.Errorf("invalid models.reload_schedule: %w", err)
		}
	}

	if cfg.Kelly.MinBet > 0 && cfg.Kelly.MinBet%cfg.Kelly.Denomination != 0 {
		return fmt.Errorf("kelly.min_bet must be a multiple of kelly.denomination")
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required", "required_if":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "storedriver":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: postgres, sqlite, memory\n", field)
		case "policy":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: %v\n", field, PolicyNames)
		case "oneof":
			errMsg += fmt.Sprintf("- Field '%s' has invalid value '%v'\n", field, value)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}

// ValidateEnvironment validates environment-specific requirements
func ValidateEnvironment(cfg *Config) error {
	if cfg.IsProduction() {
		if cfg.Database.Driver == "memory" {
			return fmt.Errorf("production environment cannot use the in-memory store")
		}
		if cfg.Database.Driver == "postgres" && isTestCredential(cfg.Database.User) {
			return fmt.Errorf("production environment should not use test database credentials")
		}
	}

	return nil
}

// isTestCredential checks if a credential looks like a test credential
func isTestCredential(credential string) bool {
	testPatterns := []string{
		"test", "demo", "example", "placeholder", "YOUR_",
	}

	for _, pattern := range testPatterns {
		if match, _ := regexp.MatchString("(?i)"+pattern, credential); match {
			return true
		}
	}

	return false
}
