// Package logging configures the process-wide zap logger and adapts it to
// the Temporal SDK's logging interface.
package logging

import (
	"fmt"

	sdklog "go.temporal.io/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap logger at the given level. Unknown levels fall
// back to info.
func New(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// temporalAdapter exposes a zap sugared logger through the Temporal SDK
// log.Logger interface so client and worker logs share one sink.
type temporalAdapter struct {
	sugar *zap.SugaredLogger
}

// NewTemporalAdapter wraps a zap logger for use as a Temporal SDK logger.
func NewTemporalAdapter(logger *zap.Logger) sdklog.Logger {
	// Skip one frame so call sites inside the SDK are not reported.
	return &temporalAdapter{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (a *temporalAdapter) Debug(msg string, keyvals ...interface{}) {
	a.sugar.Debugw(msg, keyvals...)
}

func (a *temporalAdapter) Info(msg string, keyvals ...interface{}) {
	a.sugar.Infow(msg, keyvals...)
}

func (a *temporalAdapter) Warn(msg string, keyvals ...interface{}) {
	a.sugar.Warnw(msg, keyvals...)
}

func (a *temporalAdapter) Error(msg string, keyvals ...interface{}) {
	a.sugar.Errorw(msg, keyvals...)
}
