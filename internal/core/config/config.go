package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	Env               string
	DatabaseURL       string
	DBMaxConns        int32
	SnapshotPath      string
	SnapshotInterval  time.Duration
	CreateMaxAttempts int
	LogLevel          slog.Level
}

// LoadConfig reads .env file and returns a Config struct
func LoadConfig() *Config {
	// The .env file is optional; production sets real env vars.
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on System Env Variables")
	}

	return &Config{
		Port:              getEnv("PORT", "3000"),
		Env:               getEnv("ENV", "development"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DBMaxConns:        int32(getInt("DB_MAX_CONNS", 10)),
		SnapshotPath:      getEnv("SNAPSHOT_PATH", "ledger.json"),
		SnapshotInterval:  getDuration("SNAPSHOT_INTERVAL", 30*time.Second),
		CreateMaxAttempts: getInt("CREATE_MAX_ATTEMPTS", 5),
		LogLevel:          getLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// UsesMemoryStore reports whether no database is configured.
func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == ""
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		slog.Warn("Ignoring invalid integer setting", "key", key, "value", raw)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		slog.Warn("Ignoring invalid duration setting", "key", key, "value", raw)
		return fallback
	}
	return d
}

func getLevel(key string, fallback slog.Level) slog.Level {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(raw))); err != nil {
		slog.Warn("Ignoring invalid log level", "key", key, "value", raw)
		return fallback
	}
	return level
}
