package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the application logger. Console output is quiet by default;
// verbose raises it to info, debug to debug.
func New(verbose, debug bool) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	switch {
	case debug:
		level = zapcore.DebugLevel
	case verbose:
		level = zapcore.InfoLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// Nop returns a logger that discards everything; used by tests.
func Nop() *zap.Logger { return zap.NewNop() }
