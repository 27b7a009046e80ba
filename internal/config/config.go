// Package config provides client configuration management with support for
// environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the sync client configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Remote RemoteConfig
	Cache  CacheConfig
	Sync   SyncConfig
	Server ServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	// UserID identifies the signed-in user for this client process. Zero
	// means anonymous; stores then skip network work and the watcher stays
	// idle.
	UserID int64
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// RemoteConfig holds the remote storefront API configuration.
type RemoteConfig struct {
	// BaseURL is the root of the storefront API, e.g. http://localhost:8080/api.
	BaseURL string
	// AuthToken is an optional bearer token forwarded on every request.
	AuthToken string
	// RequestTimeout applies to per-item calls (default: 30s). Bulk clears
	// carry their own shorter deadline, see SyncConfig.ClearTimeout.
	RequestTimeout time.Duration
}

// CacheConfig holds durable local cache configuration.
type CacheConfig struct {
	// Path is the directory holding the snapshot database and marker files.
	Path string
	// Freshness is the window after which a snapshot is treated as stale
	// and re-fetched (default: 5m).
	Freshness time.Duration
}

// SyncConfig holds batching and reconciliation configuration.
type SyncConfig struct {
	// DebounceWait is the quiescence window for the batched favorites sync
	// and for tag revalidation (default: 1s).
	DebounceWait time.Duration
	// ClearTimeout bounds bulk clear operations (default: 5s).
	ClearTimeout time.Duration
}

// ServerConfig holds dev server configuration (cmd/devserver only).
type ServerConfig struct {
	Port         string
	DataPath     string // BadgerDB directory
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	userID := flag.String("user", "", "Signed-in user id (0 for anonymous)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	baseURL := flag.String("api-url", "", "Storefront API base URL")
	authToken := flag.String("api-token", "", "Bearer token for the storefront API")
	requestTimeout := flag.String("request-timeout", "", "Per-request HTTP timeout (default: 30s)")
	cachePath := flag.String("cache-path", "", "Directory for the durable local cache")
	freshness := flag.String("cache-freshness", "", "Snapshot freshness window (default: 5m)")
	debounceWait := flag.String("debounce-wait", "", "Quiescence window for batched sync (default: 1s)")
	clearTimeout := flag.String("clear-timeout", "", "Deadline for bulk clear operations (default: 5s)")
	serverPort := flag.String("port", "", "Dev server port (default: 8080)")
	serverData := flag.String("data-path", "", "Dev server database directory")
	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Remote: RemoteConfig{
			BaseURL:   getConfigValue(*baseURL, "API_URL", "http://localhost:8080/api"),
			AuthToken: getConfigValue(*authToken, "API_TOKEN", ""),
		},
		Cache: CacheConfig{
			Path: getConfigValue(*cachePath, "CACHE_PATH", ""),
		},
		Server: ServerConfig{
			Port:     getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			DataPath: getConfigValue(*serverData, "DATA_PATH", ""),
		},
	}

	var err error
	if rawUser := getConfigValue(*userID, "USER_ID", "0"); rawUser != "" {
		cfg.App.UserID, err = strconv.ParseInt(rawUser, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid USER_ID %q: %w", rawUser, err)
		}
	}
	if cfg.Remote.RequestTimeout, err = parseDurationValue(*requestTimeout, "REQUEST_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.Cache.Freshness, err = parseDurationValue(*freshness, "CACHE_FRESHNESS", "5m"); err != nil {
		return nil, err
	}
	if cfg.Sync.DebounceWait, err = parseDurationValue(*debounceWait, "DEBOUNCE_WAIT", "1s"); err != nil {
		return nil, err
	}
	if cfg.Sync.ClearTimeout, err = parseDurationValue(*clearTimeout, "CLEAR_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if cfg.Server.ReadTimeout, err = parseDurationValue("", "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = parseDurationValue("", "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = parseDurationValue("", "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}

	if err := cfg.expandCachePath(); err != nil {
		return nil, fmt.Errorf("invalid cache path: %w", err)
	}
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.App.UserID < 0 {
		return errors.New("USER_ID cannot be negative")
	}
	if c.Remote.BaseURL == "" {
		return errors.New("API_URL is required")
	}
	if c.Cache.Path == "" {
		return errors.New("cache path cannot be empty after expansion")
	}
	if c.Cache.Freshness <= 0 {
		return errors.New("cache freshness window must be positive")
	}
	if c.Sync.DebounceWait <= 0 {
		return errors.New("debounce wait must be positive")
	}
	if c.Sync.ClearTimeout <= 0 {
		return errors.New("clear timeout must be positive")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandCachePath expands ~ and makes the path absolute.
// Defaults to ~/.solestore/cache.
func (c *Config) expandCachePath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, ".solestore", "cache")

	expanded, err := expandPath(c.Cache.Path, defaultPath)
	if err != nil {
		return err
	}
	c.Cache.Path = expanded
	return nil
}

// expandDataPath expands ~ and makes the path absolute.
// Defaults to ~/.solestore/devserver.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, ".solestore", "devserver")

	expanded, err := expandPath(c.Server.DataPath, defaultPath)
	if err != nil {
		return err
	}
	c.Server.DataPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// parseDurationValue resolves a duration from flag, env var, or default.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	raw := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, raw, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
