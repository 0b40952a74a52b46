package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	if err != nil {
		return nil
	}
	return logEntry
}

func TestNewLoggerLevelsAndFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLoggerWithOutput(buf, "debug", "production")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log = NewLoggerWithOutput(buf, "nonsense", "development")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestPredictionLoggerRaceEvaluation(t *testing.T) {
	log, buf := setupTestLogger()
	pl := NewPredictionLogger(log)

	pl.LogRaceEvaluation("202506010101", "ensemble_lgb_xgb_kelly", "v2-kelly", 16, 2, 12.5)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "prediction", logEntry["component"])
	assert.Equal(t, "202506010101", logEntry["race_id"])
	assert.Equal(t, "ensemble_lgb_xgb_kelly", logEntry["method"])
	assert.Equal(t, float64(16), logEntry["entrants_evaluated"])
}

func TestPredictionLoggerBetDecision(t *testing.T) {
	log, buf := setupTestLogger()
	pl := NewPredictionLogger(log)

	pl.LogBetDecision("202506010101", 7, "BUY", 0.3, 4.5, 0.35, 0.05, 5000, "")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "BUY", logEntry["decision"])
	assert.Equal(t, float64(5000), logEntry["stake_amount"])
	assert.Equal(t, "debug", logEntry["level"])
}

func TestPredictionLoggerAnomaly(t *testing.T) {
	log, buf := setupTestLogger()
	pl := NewPredictionLogger(log)

	pl.LogAnomaly("202506010101", "flat", "low variance in probabilities")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "warning", logEntry["level"])
	assert.Equal(t, "flat", logEntry["flag"])
}

func TestAuditLoggerSettlement(t *testing.T) {
	log, buf := setupTestLogger()
	al := NewAuditLogger(log)

	settled := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	al.LogSettlement("202506010101", 3, "kelly", 1000, 4500, 103500, settled)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "audit", logEntry["component"])
	assert.Equal(t, float64(4500), logEntry["payout"])
	assert.Equal(t, float64(settled.Unix()), logEntry["timestamp"])
}

func TestAuditLoggerDrawdownFloor(t *testing.T) {
	log, buf := setupTestLogger()
	al := NewAuditLogger(log)

	al.LogDrawdownFloor(40000, 100000, 0.5)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "warning", logEntry["level"])
	assert.Equal(t, float64(40000), logEntry["bankroll"])
}
