package config

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Addr         string
	PollInterval time.Duration
	AutoRead     bool
	MockMode     bool
	DBPath       string
	ConfigDir    string
	Debug        bool
}

// Load parses command line flags and environment variables to populate Config.
// Flags take precedence over environment variables.
func Load() *Config {
	cfg := &Config{}

	// Defaults and Environment Variables
	cfg.Addr = getEnv("CARDBRIDGE_ADDR", "127.0.0.1:8765")
	cfg.AutoRead = getEnvBool("CARDBRIDGE_AUTO_READ", false)
	cfg.MockMode = getEnvBool("CARDBRIDGE_MOCK", false)
	cfg.ConfigDir = getEnv("CARDBRIDGE_CONFIG_DIR", defaultConfigDir())
	cfg.DBPath = getEnv("CARDBRIDGE_DB", filepath.Join(cfg.ConfigDir, "cardbridge.db"))
	pollSeconds := getEnvFloat("CARDBRIDGE_POLL", 1.0)

	// Command Line Flags (Override Env)
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	flag.Float64Var(&pollSeconds, "poll", pollSeconds, "Reader poll interval in seconds")
	flag.BoolVar(&cfg.AutoRead, "auto-read", cfg.AutoRead, "Read the card automatically on insertion (off = on-demand mode)")
	flag.BoolVar(&cfg.MockMode, "mock", cfg.MockMode, "Run against a simulated reader (no hardware)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite database")
	flag.StringVar(&cfg.ConfigDir, "config-dir", cfg.ConfigDir, "Directory for passcode and agent state")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable verbose debug logging")

	flag.Parse()

	if pollSeconds <= 0 {
		pollSeconds = 1.0
	}
	cfg.PollInterval = time.Duration(pollSeconds * float64(time.Second))

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// defaultConfigDir returns ~/.cardbridge, creating it if needed.
func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory, using current dir: %v", err)
		return ".cardbridge"
	}

	dir := filepath.Join(home, ".cardbridge")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Printf("Warning: Could not create config directory, using current dir: %v", err)
		return ".cardbridge"
	}
	return dir
}
