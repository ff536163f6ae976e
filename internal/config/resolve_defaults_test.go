package config

import (
	"os"
	"testing"
)

func unsetDialectEnv() {
	_ = os.Unsetenv("OUTBOX_DIALECT")
	_ = os.Unsetenv("OUTBOX_POSTGRES_DSN")
	_ = os.Unsetenv("OUTBOX_MYSQL_DSN")
	_ = os.Unsetenv("OUTBOX_SQLITE_PATH")
}

func TestResolveDefaultsAutoFromPostgresDSN(t *testing.T) {
	unsetDialectEnv()
	_ = os.Setenv("OUTBOX_POSTGRES_DSN", "postgres://localhost/outbox")
	defer unsetDialectEnv()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.Dialect != "postgres" {
		t.Fatalf("unexpected auto-derived dialect: %s", cfg.Dialect)
	}
}

func TestResolveDefaultsExplicitOverride(t *testing.T) {
	unsetDialectEnv()
	_ = os.Setenv("OUTBOX_DIALECT", "mysql")
	_ = os.Setenv("OUTBOX_MYSQL_DSN", "user:pass@tcp(localhost:3306)/outbox")
	defer unsetDialectEnv()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.Dialect != "mysql" {
		t.Fatalf("override failed, got %s", cfg.Dialect)
	}
}

func TestResolveDefaultsFallsBackToSQLite(t *testing.T) {
	unsetDialectEnv()
	defer unsetDialectEnv()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.Dialect != "sqlite" {
		t.Fatalf("unexpected mapping with no DSNs set: %s", cfg.Dialect)
	}
}

func TestResolveDefaultsRejectsUnsupportedDialect(t *testing.T) {
	unsetDialectEnv()
	_ = os.Setenv("OUTBOX_DIALECT", "oracle")
	defer unsetDialectEnv()

	if _, err := New(); err == nil {
		t.Fatalf("expected error for unsupported dialect")
	}
}
