// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging for bankroll changes.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger logrus.FieldLogger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogSettlement logs a settled wager.
func (al *AuditLogger) LogSettlement(raceID string, horseNumber int, policy string, stake, payout, bankrollAfter int64, settledAt time.Time) {
	al.WithFields(logrus.Fields{
		"race_id":        raceID,
		"horse_number":   horseNumber,
		"policy":         policy,
		"stake":          stake,
		"payout":         payout,
		"bankroll_after": bankrollAfter,
		"timestamp":      settledAt.Unix(),
	}).Info("Wager settled")
}

// LogDrawdownFloor logs the bankroll falling below the drawdown floor.
func (al *AuditLogger) LogDrawdownFloor(bankroll, initial int64, floor float64) {
	al.WithFields(logrus.Fields{
		"bankroll":         bankroll,
		"initial_bankroll": initial,
		"drawdown_floor":   floor,
	}).Warn("Bankroll below drawdown floor, stakes suspended")
}
