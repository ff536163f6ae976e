package config

import (
	"os"
	"testing"
	"time"
)

func TestConfigLoad_Defaults(t *testing.T) {
	_ = os.Unsetenv("OUTBOX_DIALECT")
	_ = os.Unsetenv("OUTBOX_ATTEMPT_FREQUENCY")
	_ = os.Unsetenv("OUTBOX_TABLE_NAME")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.TableName != "TXNO_OUTBOX" || cfg.AttemptFrequency != 2*time.Second || cfg.Dialect != "sqlite" {
		t.Fatalf("unexpected default config: %+v", cfg)
	}
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	_ = os.Setenv("OUTBOX_ATTEMPT_FREQUENCY", "500ms")
	defer func() { _ = os.Unsetenv("OUTBOX_ATTEMPT_FREQUENCY") }()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.AttemptFrequency != 500*time.Millisecond {
		t.Fatalf("attempt frequency env override failed, got %v", cfg.AttemptFrequency)
	}
}
