// Package logging includes tests for the zap logger helpers.
package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(Options{Development: true, Version: "test"})
	if err != nil {
		t.Fatalf("New(development) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(Options{})
	if err != nil {
		t.Fatalf("New(production) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		opts      Options
		level     zapcore.Level
		version   string
		encoding  string
		expectErr bool
	}{
		{name: "production defaults", opts: Options{}, level: zapcore.InfoLevel, version: "dev", encoding: "json"},
		{name: "development defaults", opts: Options{Development: true, Version: "1.2.0"}, level: zapcore.DebugLevel, version: "1.2.0", encoding: "console"},
		{name: "level override", opts: Options{Level: "warn"}, level: zapcore.WarnLevel, version: "dev", encoding: "json"},
		{name: "bad level", opts: Options{Level: "loud"}, expectErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := buildConfig(tt.opts)
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildConfig error = %v", err)
			}
			if got := cfg.Level.Level(); got != tt.level {
				t.Errorf("level = %v, want %v", got, tt.level)
			}
			if cfg.Encoding != tt.encoding {
				t.Errorf("encoding = %q, want %q", cfg.Encoding, tt.encoding)
			}
			if cfg.InitialFields["service"] != Service {
				t.Errorf("service = %v, want %q", cfg.InitialFields["service"], Service)
			}
			if cfg.InitialFields["version"] != tt.version {
				t.Errorf("version = %v, want %q", cfg.InitialFields["version"], tt.version)
			}
		})
	}
}
