package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

type Config struct {
	SchemaPath  string `json:"schema_path" yaml:"schema_path"`
	StatePath   string `json:"state_path" yaml:"state_path"`
	HistoryPath string `json:"history_path" yaml:"history_path"`

	Store       string `json:"store" yaml:"store"`
	StoreDSN    string `json:"store_dsn" yaml:"store_dsn"`
	StoreSchema string `json:"store_schema" yaml:"store_schema"`

	Ledger    string `json:"ledger" yaml:"ledger"`
	LedgerDSN string `json:"ledger_dsn" yaml:"ledger_dsn"`

	LogLevel string `json:"log_level" yaml:"log_level"`

	// Seed 0 asks for a fresh seed per run.
	Seed          int64   `json:"seed" yaml:"seed"`
	FieldRetries  int     `json:"field_retries" yaml:"field_retries"`
	RecordSlack   float64 `json:"record_slack" yaml:"record_slack"`
	DedupeRounds  int     `json:"dedupe_rounds" yaml:"dedupe_rounds"`
	MaxScheduling int     `json:"max_scheduling" yaml:"max_scheduling"`
	DefaultAmount int     `json:"default_amount" yaml:"default_amount"`
}

// Load reads BONDGEN_* variables, falling back to a .env file in the working
// directory and then to defaults. Variables already set win over .env.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs error
	cfg := &Config{
		SchemaPath:  getEnv("BONDGEN_SCHEMA", "./bondgen.yaml"),
		StatePath:   getEnv("BONDGEN_STATE", "./.bondgen/state.yaml"),
		HistoryPath: getEnv("BONDGEN_HISTORY", "./.bondgen/history.db"),
		Store:       getEnv("BONDGEN_STORE", "sqlite"),
		StoreDSN:    getEnv("BONDGEN_STORE_DSN", "./.bondgen/records.db"),
		StoreSchema: getEnv("BONDGEN_STORE_SCHEMA", "public"),
		Ledger:      getEnv("BONDGEN_LEDGER", "file"),
		LedgerDSN:   getEnv("BONDGEN_LEDGER_DSN", "./.bondgen/ledger.msgpack"),
		LogLevel:    getEnv("BONDGEN_LOG_LEVEL", "info"),
	}
	cfg.Seed, errs = getInt64(errs, "BONDGEN_SEED", 0)
	cfg.FieldRetries, errs = getInt(errs, "BONDGEN_FIELD_RETRIES", 10)
	cfg.RecordSlack, errs = getFloat(errs, "BONDGEN_RECORD_SLACK", 1.2)
	cfg.DedupeRounds, errs = getInt(errs, "BONDGEN_DEDUPE_ROUNDS", 1)
	cfg.MaxScheduling, errs = getInt(errs, "BONDGEN_MAX_SCHEDULING", 10000)
	cfg.DefaultAmount, errs = getInt(errs, "BONDGEN_DEFAULT_AMOUNT", 1000)
	if errs != nil {
		return nil, errs
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt64(errs error, key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, errs
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue, multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
	}
	return n, errs
}

func getInt(errs error, key string, defaultValue int) (int, error) {
	n, errs := getInt64(errs, key, int64(defaultValue))
	return int(n), errs
}

func getFloat(errs error, key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, errs
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue, multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
	}
	return f, errs
}
