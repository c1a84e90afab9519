package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		level zapcore.Level
	}{
		{name: "console info", opts: Options{}, level: zapcore.InfoLevel},
		{name: "json debug", opts: Options{JSON: true, Debug: true}, level: zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !logger.Core().Enabled(tt.level) {
				t.Fatalf("expected %s to be enabled", tt.level)
			}

			if tt.level > zapcore.DebugLevel && logger.Core().Enabled(zapcore.DebugLevel) {
				t.Fatal("debug must be disabled without the debug option")
			}
		})
	}
}
