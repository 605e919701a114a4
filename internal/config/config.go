// Runtime configuration for combine_fastas.
// Values come from a .env file (if present), then the process environment.
// Command-line flags override whatever is loaded here.

package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yumyai/pepbio/logger"
)

const (
	EnvLogLevel  = "COMBINE_FASTAS_LOG_LEVEL"
	EnvLineWidth = "COMBINE_FASTAS_LINE_WIDTH"
	EnvJobs      = "COMBINE_FASTAS_JOBS"
	EnvLedger    = "COMBINE_FASTAS_LEDGER"

	DefaultLogLevel  = "info"
	DefaultLineWidth = 60
	DefaultJobs      = 1
)

type Config struct {
	LogLevel   string
	LineWidth  int
	Jobs       int
	LedgerPath string
}

// Load reads the given .env files (or ./.env when none are given) and builds a Config.
// A missing .env is not an error. Invalid values are logged, so the logger
// should be set up before calling Load.
func Load(envFiles ...string) *Config {
	if err := godotenv.Load(envFiles...); err != nil {
		logger.Debug("No .env found, using local environment")
	}
	return FromEnv()
}

func FromEnv() *Config {
	return &Config{
		LogLevel:   getLevel(EnvLogLevel, DefaultLogLevel),
		LineWidth:  getPositiveInt(EnvLineWidth, DefaultLineWidth),
		Jobs:       getPositiveInt(EnvJobs, DefaultJobs),
		LedgerPath: os.Getenv(EnvLedger),
	}
}

func getLevel(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if _, err := logger.ParseLevel(v); err != nil {
		logger.Warn("Ignoring invalid value, using default",
			zap.String("key", key),
			zap.String("value", v),
			zap.String("default", fallback))
		return fallback
	}
	return v
}

func getPositiveInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		logger.Warn("Ignoring invalid value, using default",
			zap.String("key", key),
			zap.String("value", v),
			zap.Int("default", fallback))
		return fallback
	}
	return n
}
