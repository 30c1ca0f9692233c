package logger

import (
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected default level info, got %s", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected default format console, got %s", cfg.Format)
	}
	if cfg.Output != "stdout" {
		t.Errorf("expected default output stdout, got %s", cfg.Output)
	}
	if !cfg.Timestamp {
		t.Error("timestamps should default on")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid json", Config{Level: "debug", Format: "json", Output: "stderr"}, false},
		{"valid console", Config{Level: "info", Format: "console", Output: "stdout"}, false},
		{"bad level", Config{Level: "loud", Format: "json", Output: "stdout"}, true},
		{"bad format", Config{Level: "info", Format: "xml", Output: "stdout"}, true},
		{"bad output", Config{Level: "info", Format: "json", Output: "file"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	m := Fields("bucket", "latest", "attempt", 3)
	if m["bucket"] != "latest" || m["attempt"] != 3 {
		t.Errorf("unexpected fields map: %v", m)
	}

	// Dangling value is ignored.
	m = Fields("key")
	if len(m) != 0 {
		t.Errorf("expected empty map for dangling key, got %v", m)
	}
}

func TestErrorFields(t *testing.T) {
	m := ErrorFields("quote", errSentinel)
	if m[FieldOperation] != "quote" {
		t.Errorf("expected operation field, got %v", m)
	}
	if m[FieldError] != "boom" {
		t.Errorf("expected error message, got %v", m)
	}
}

func TestDurationFields(t *testing.T) {
	m := DurationFields("quote", 1500*time.Millisecond)
	if m[FieldDuration] != int64(1500) {
		t.Errorf("expected 1500ms, got %v", m[FieldDuration])
	}
}

func TestWithComponent(t *testing.T) {
	log := NewDefault("test")
	child := log.WithComponent("marketdata")
	if child == log {
		t.Error("WithComponent should return a derived logger")
	}
}

type sentinelError struct{}

func (sentinelError) Error() string { return "boom" }

var errSentinel = sentinelError{}
