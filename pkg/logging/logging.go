// Package logging sets up the two loggers the core and its host
// collaborators use: logrus for human-facing run narration (CLI output,
// warnings surfaced to an operator) and zap for structured, high-volume
// per-day event logging, where a text formatter would be too slow and
// too lossy to grep.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewHuman builds the logrus logger used for CLI/operator-facing output.
func NewHuman(level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}

// NewDailyEventLogger builds the zap logger used to emit one structured
// record per simulated trading day (prices applied, trades executed,
// warnings raised). Sampling is disabled: a multi-decade daily backtest
// is a few thousand lines, not a volume that needs to be dropped.
func NewDailyEventLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
