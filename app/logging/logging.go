package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. The production profile logs JSON at info
// level; every other profile gets the human-readable development logger.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "production":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "", "local", "development", "test":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown environment %q", env)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.With(zap.String("env", envName(env))), nil
}

func envName(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
