// Package logger provides prediction-specific logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// PredictionLogger provides dedicated logging for race evaluations.
type PredictionLogger struct {
	*logrus.Entry
}

// NewPredictionLogger creates a new prediction logger.
func NewPredictionLogger(baseLogger logrus.FieldLogger) *PredictionLogger {
	return &PredictionLogger{
		Entry: baseLogger.WithField("component", "prediction"),
	}
}

// LogRaceEvaluation logs a completed race evaluation.
func (pl *PredictionLogger) LogRaceEvaluation(raceID, method, modelVersion string, entrants, buys int, durationMs float64) {
	pl.WithFields(logrus.Fields{
		"race_id":                raceID,
		"method":                 method,
		"model_version":          modelVersion,
		"entrants_evaluated":     entrants,
		"buy_signals":            buys,
		"evaluation_duration_ms": durationMs,
	}).Info("Race evaluation completed")
}

// LogBetDecision logs a single stake decision.
func (pl *PredictionLogger) LogBetDecision(raceID string, horseNumber int, decision string, probability, odds, edge, kellyFraction float64, stake int64, reason string) {
	pl.WithFields(logrus.Fields{
		"race_id":        raceID,
		"horse_number":   horseNumber,
		"decision":       decision,
		"probability":    probability,
		"odds":           odds,
		"edge_value":     edge,
		"kelly_fraction": kellyFraction,
		"stake_amount":   stake,
		"reason":         reason,
	}).Debug("Bet decision made")
}

// LogAnomaly logs an advisory flag raised for a race.
func (pl *PredictionLogger) LogAnomaly(raceID, flag, reason string) {
	pl.WithFields(logrus.Fields{
		"race_id": raceID,
		"flag":    flag,
		"reason":  reason,
	}).Warn("Prediction flagged")
}

// LogCalibrationFallback logs a switch from the calibrator to softmax.
func (pl *PredictionLogger) LogCalibrationFallback(raceID, reason string) {
	pl.WithFields(logrus.Fields{
		"race_id": raceID,
		"reason":  reason,
	}).Warn("Calibration unavailable, using softmax probabilities")
}

// LogModelReload logs a model bundle swap.
func (pl *PredictionLogger) LogModelReload(oldVersion, newVersion string, models []string) {
	pl.WithFields(logrus.Fields{
		"old_version": oldVersion,
		"new_version": newVersion,
		"models":      models,
	}).Info("Model bundle reloaded")
}
