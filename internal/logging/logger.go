// Package logging wraps zap with the configuration used across the server:
// structured json output in production, colored console output in
// development.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger.
type Logger struct {
	*zap.Logger
}

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
}

// New creates a logger with the provided configuration.
func New(cfg Config) (*Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, err
	}

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          "json",
		EncoderConfig:     encoderConfig(cfg.Development),
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !cfg.Development,
	}
	if cfg.Development {
		zapCfg.Encoding = "console"
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger}, nil
}

// NewDefault creates a production logger, falling back to a no-op logger if
// construction fails.
func NewDefault() *Logger {
	logger, err := New(Config{Level: "info"})
	if err != nil {
		return &Logger{Logger: zap.NewNop()}
	}
	return logger
}

// NewDevelopment creates a development logger.
func NewDevelopment() *Logger {
	logger, err := New(Config{Level: "debug", Development: true})
	if err != nil {
		return &Logger{Logger: zap.NewNop()}
	}
	return logger
}

func encoderConfig(development bool) zapcore.EncoderConfig {
	ec := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if development {
		ec.TimeKey = "T"
		ec.LevelKey = "L"
		ec.MessageKey = "M"
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.EncodeDuration = zapcore.StringDurationEncoder
	}
	return ec
}
