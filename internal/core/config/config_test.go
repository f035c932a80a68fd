package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chdir moves into an empty dir so no stray .env is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t)
	for _, k := range []string{"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "SNAPSHOT_PATH", "SNAPSHOT_INTERVAL", "CREATE_MAX_ATTEMPTS", "LOG_LEVEL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg := LoadConfig()
	if cfg.Port != "3000" || cfg.Env != "development" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.UsesMemoryStore() {
		t.Fatal("empty DATABASE_URL should select the memory store")
	}
	if cfg.SnapshotInterval != 30*time.Second || cfg.CreateMaxAttempts != 5 || cfg.DBMaxConns != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("level=%v want info", cfg.LogLevel)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	chdir(t)
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("SNAPSHOT_INTERVAL", "5s")
	t.Setenv("CREATE_MAX_ATTEMPTS", "nope")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadConfig()
	if cfg.Port != "8080" || cfg.UsesMemoryStore() {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.SnapshotInterval != 5*time.Second {
		t.Fatalf("interval=%v want 5s", cfg.SnapshotInterval)
	}
	if cfg.CreateMaxAttempts != 5 {
		t.Fatalf("invalid int should fall back, got %d", cfg.CreateMaxAttempts)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("level=%v want debug", cfg.LogLevel)
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := chdir(t)
	t.Setenv("SNAPSHOT_PATH", "")
	os.Unsetenv("SNAPSHOT_PATH")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SNAPSHOT_PATH=/tmp/state.json\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("SNAPSHOT_PATH") })

	cfg := LoadConfig()
	if cfg.SnapshotPath != "/tmp/state.json" {
		t.Fatalf("SnapshotPath=%q want value from .env", cfg.SnapshotPath)
	}
}
