// Package config provides configuration for the control server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration. It is constructed once at startup
// and injected into each component; nothing reads ambient global state.
type Config struct {
	// Server settings
	HTTPPort int `yaml:"http_port"`

	// Database
	DatabaseURL string `yaml:"database_url"`

	// Package roots (unpacked agent/protocol packages)
	AgentPackageDir    string `yaml:"agent_package_dir"`
	ProtocolPackageDir string `yaml:"protocol_package_dir"`

	// Durable artifact storage (original bundles, built payloads)
	MediaRoot string `yaml:"media_root"`

	// Base64 server private key handed to packages when sending. The server
	// never uses it itself; message signing lives in the packages.
	ServerPrivateKey string `yaml:"server_private_key"`

	// Build invocation
	BuildTimeout time.Duration `yaml:"build_timeout"`
	// FailOnExit aborts an operation on a non-zero build exit code instead of
	// only warning and relying on the required-output checks.
	FailOnExit bool `yaml:"fail_on_exit"`

	// Task runner
	Workers int `yaml:"workers"`
	// Cron schedule for periodic message polling; empty disables the poller.
	PollSchedule string `yaml:"poll_schedule"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Load loads configuration from an optional YAML file (CONFIG_FILE), then
// applies environment variable overrides on top.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:           8080,
		DatabaseURL:        "file:deaddrop.db?cache=shared&mode=rwc",
		AgentPackageDir:    "packages/agents",
		ProtocolPackageDir: "packages/protocols",
		MediaRoot:          "media",
		BuildTimeout:       10 * time.Minute,
		Workers:            4,
		LogLevel:           "info",
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.AgentPackageDir = getEnv("AGENT_PACKAGE_DIR", cfg.AgentPackageDir)
	cfg.ProtocolPackageDir = getEnv("PROTOCOL_PACKAGE_DIR", cfg.ProtocolPackageDir)
	cfg.MediaRoot = getEnv("MEDIA_ROOT", cfg.MediaRoot)
	cfg.ServerPrivateKey = getEnv("SERVER_PRIVATE_KEY", cfg.ServerPrivateKey)
	if ms := getEnvInt("BUILD_TIMEOUT_MS", 0); ms > 0 {
		cfg.BuildTimeout = time.Duration(ms) * time.Millisecond
	}
	cfg.FailOnExit = getEnvBool("FAIL_ON_EXIT", cfg.FailOnExit)
	cfg.Workers = getEnvInt("WORKERS", cfg.Workers)
	cfg.PollSchedule = getEnv("POLL_SCHEDULE", cfg.PollSchedule)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	return cfg, nil
}

// PackageDir returns the package root for the given package kind directory
// name ("agents" or "protocols").
func (c *Config) PackageDir(kind string) string {
	if kind == "protocols" {
		return c.ProtocolPackageDir
	}
	return c.AgentPackageDir
}

// MediaPath joins a relative media reference onto the media root.
func (c *Config) MediaPath(rel string) string {
	return filepath.Join(c.MediaRoot, rel)
}

// EnsureDirs creates the package roots and media root if missing.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.AgentPackageDir, c.ProtocolPackageDir, c.MediaRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
