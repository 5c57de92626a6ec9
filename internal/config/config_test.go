package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolate clears every BONDGEN_* variable for the test and runs it from an
// empty directory so no stray .env is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "BONDGEN_") {
			t.Setenv(key, "")
			_ = os.Unsetenv(key)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	d := t.TempDir()
	if err := os.Chdir(d); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })
	return d
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store != "sqlite" || cfg.Ledger != "file" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.FieldRetries != 10 || cfg.RecordSlack != 1.2 || cfg.DedupeRounds != 1 {
		t.Fatalf("unexpected generation defaults: %+v", cfg)
	}
	if cfg.MaxScheduling != 10000 || cfg.DefaultAmount != 1000 || cfg.Seed != 0 {
		t.Fatalf("unexpected session defaults: %+v", cfg)
	}
	if cfg.HistoryPath != "./.bondgen/history.db" {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath)
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	d := isolate(t)
	if err := os.WriteFile(filepath.Join(d, ".env"), []byte("BONDGEN_STORE_DSN=postgres://u:p@localhost:5432/bondgen?sslmode=disable\nBONDGEN_LOG_LEVEL=debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("BONDGEN_STORE_DSN")
		_ = os.Unsetenv("BONDGEN_LOG_LEVEL")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StoreDSN != "postgres://u:p@localhost:5432/bondgen?sslmode=disable" {
		t.Fatalf("expected BONDGEN_STORE_DSN from .env, got %q", cfg.StoreDSN)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected BONDGEN_LOG_LEVEL from .env, got %q", cfg.LogLevel)
	}
}

func TestLoad_EnvOverridesDotEnv(t *testing.T) {
	d := isolate(t)
	if err := os.WriteFile(filepath.Join(d, ".env"), []byte("BONDGEN_SEED=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BONDGEN_SEED", "42")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Seed != 42 {
		t.Fatalf("expected seed 42, got %d", cfg.Seed)
	}
}

func TestLoad_InvalidNumbers(t *testing.T) {
	isolate(t)
	t.Setenv("BONDGEN_SEED", "abc")
	t.Setenv("BONDGEN_RECORD_SLACK", "lots")

	_, err := Load()
	if err == nil {
		t.Fatal("expected parse error")
	}
	for _, key := range []string{"BONDGEN_SEED", "BONDGEN_RECORD_SLACK"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in %v", key, err)
		}
	}
}
