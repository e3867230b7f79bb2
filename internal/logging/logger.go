// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service is attached to every log line.
const Service = "job-skills-crawler"

// Options configures New.
type Options struct {
	Development bool
	// Level overrides the preset level (debug in development, info
	// otherwise). Empty keeps the preset.
	Level   string
	Version string
}

// New builds a zap.Logger for the crawler. Development loggers use the
// coloured console encoder; production loggers write JSON.
func New(opts Options) (*zap.Logger, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func buildConfig(opts Options) (zap.Config, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.DisableStacktrace = false
	}
	cfg.EncoderConfig.TimeKey = "ts"

	if opts.Level != "" {
		level, err := zap.ParseAtomicLevel(opts.Level)
		if err != nil {
			return zap.Config{}, fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
		cfg.Level = level
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}
	cfg.InitialFields = map[string]any{
		"service": Service,
		"version": version,
	}
	return cfg, nil
}
