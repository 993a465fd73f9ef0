// Package config provides engine configuration management with support for
// environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store backend names accepted by the engine.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Config holds the engine configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Cache  CacheConfig
	Remote RemoteConfig
	Server ServerConfig
	Search SearchConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json, pretty, or empty for auto
}

// CacheConfig holds the local cache configuration.
type CacheConfig struct {
	// DataPath is the directory holding the store and derived indexes.
	DataPath string
	// Backend selects the store implementation (badger or sqlite).
	Backend string
	// PageSize is the fixed remote page size used by the sync orchestrator.
	PageSize int
	// RetentionEnabled turns the retention sweep on. When false the product
	// keeps the complete summary history and CleanOldVideos is a no-op.
	RetentionEnabled bool
	// RetentionDays is the age horizon for the retention sweep.
	RetentionDays int
	// ResetFraction is the share of critically broken records above which
	// recovery clears the whole scope instead of deleting record by record.
	ResetFraction float64
}

// RemoteConfig holds the ChannelBrief backend API configuration.
type RemoteConfig struct {
	BaseURL           string
	APIToken          string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig holds the local ops API configuration.
type ServerConfig struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// SearchConfig holds the summary search index configuration.
type SearchConfig struct {
	Enabled bool
	Path    string
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables (CB_ prefix).
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "Log format (json, pretty)")
	dataPath := flag.String("data-path", "", "Directory for the cache store and indexes")
	backend := flag.String("store-backend", "", "Store backend (badger or sqlite)")
	pageSize := flag.String("page-size", "", "Remote page size (default: 50)")
	retentionEnabled := flag.String("retention-enabled", "", "Enable retention sweep (default: false)")
	retentionDays := flag.String("retention-days", "", "Retention horizon in days (default: 180)")
	resetFraction := flag.String("reset-fraction", "", "Corrupt fraction forcing a full reset (default: 0.5)")

	remoteBaseURL := flag.String("remote-url", "", "ChannelBrief API base URL")
	remoteToken := flag.String("remote-token", "", "ChannelBrief API token")
	remoteTimeout := flag.String("remote-timeout", "", "Remote request timeout (default: 30s)")
	remoteRPS := flag.String("remote-rps", "", "Remote requests per second (default: 2)")
	remoteBurst := flag.String("remote-burst", "", "Remote request burst (default: 4)")

	listenAddr := flag.String("listen", "", "Ops API listen address (default: 127.0.0.1:9286)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := flag.String("cors-origins", "", "Comma-separated allowed CORS origins")

	searchEnabled := flag.String("search-enabled", "", "Enable the summary search index (default: true)")
	searchPath := flag.String("search-path", "", "Directory for the search index")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "CB_ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "CB_LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "CB_LOG_FORMAT", ""),
		},
		Cache: CacheConfig{
			DataPath:         getConfigValue(*dataPath, "CB_DATA_PATH", ""),
			Backend:          getConfigValue(*backend, "CB_STORE_BACKEND", BackendBadger),
			PageSize:         getIntConfigValue(*pageSize, "CB_PAGE_SIZE", 50),
			RetentionEnabled: getBoolConfigValue(*retentionEnabled, "CB_RETENTION_ENABLED", false),
			RetentionDays:    getIntConfigValue(*retentionDays, "CB_RETENTION_DAYS", 180),
			ResetFraction:    getFloatConfigValue(*resetFraction, "CB_RESET_FRACTION", 0.5),
		},
		Remote: RemoteConfig{
			BaseURL:           getConfigValue(*remoteBaseURL, "CB_REMOTE_URL", "https://api.channelbrief.app"),
			APIToken:          getConfigValue(*remoteToken, "CB_REMOTE_TOKEN", ""),
			RequestsPerSecond: getFloatConfigValue(*remoteRPS, "CB_REMOTE_RPS", 2),
			Burst:             getIntConfigValue(*remoteBurst, "CB_REMOTE_BURST", 4),
		},
		Server: ServerConfig{
			ListenAddr:  getConfigValue(*listenAddr, "CB_LISTEN", "127.0.0.1:9286"),
			CORSOrigins: splitOrigins(getConfigValue(*corsOrigins, "CB_CORS_ORIGINS", "http://localhost:*")),
		},
		Search: SearchConfig{
			Enabled: getBoolConfigValue(*searchEnabled, "CB_SEARCH_ENABLED", true),
			Path:    getConfigValue(*searchPath, "CB_SEARCH_PATH", ""),
		},
	}

	var err error
	cfg.Remote.Timeout, err = parseDurationValue(*remoteTimeout, "CB_REMOTE_TIMEOUT", "30s")
	if err != nil {
		return nil, fmt.Errorf("invalid remote timeout: %w", err)
	}
	cfg.Server.ReadTimeout, err = parseDurationValue(*readTimeout, "CB_READ_TIMEOUT", "15s")
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout: %w", err)
	}
	cfg.Server.WriteTimeout, err = parseDurationValue(*writeTimeout, "CB_WRITE_TIMEOUT", "15s")
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout: %w", err)
	}
	cfg.Server.IdleTimeout, err = parseDurationValue(*idleTimeout, "CB_IDLE_TIMEOUT", "60s")
	if err != nil {
		return nil, fmt.Errorf("invalid idle timeout: %w", err)
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}
	if err := cfg.expandSearchPath(); err != nil {
		return nil, fmt.Errorf("invalid search path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
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

	if c.Cache.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if c.Cache.Backend != BackendBadger && c.Cache.Backend != BackendSQLite {
		return fmt.Errorf("invalid store backend: %s (must be badger or sqlite)", c.Cache.Backend)
	}

	if c.Cache.PageSize < 1 || c.Cache.PageSize > 500 {
		return fmt.Errorf("invalid page size: %d (must be between 1 and 500)", c.Cache.PageSize)
	}

	if c.Cache.RetentionEnabled && c.Cache.RetentionDays < 1 {
		return fmt.Errorf("invalid retention days: %d (must be positive when retention is enabled)", c.Cache.RetentionDays)
	}

	if c.Cache.ResetFraction <= 0 || c.Cache.ResetFraction > 1 {
		return fmt.Errorf("invalid reset fraction: %g (must be in (0, 1])", c.Cache.ResetFraction)
	}

	if c.Remote.BaseURL == "" {
		return errors.New("remote base URL is required")
	}

	if c.Remote.RequestsPerSecond <= 0 {
		return fmt.Errorf("invalid remote rps: %g (must be positive)", c.Remote.RequestsPerSecond)
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

// expandDataPath expands ~ and makes the path absolute.
// Defaults to ~/ChannelBrief/cache.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "ChannelBrief", "cache")

	expanded, err := expandPath(c.Cache.DataPath, defaultPath)
	if err != nil {
		return err
	}
	c.Cache.DataPath = expanded
	return nil
}

// expandSearchPath expands ~ and makes the path absolute.
// Defaults to {data}/search.
func (c *Config) expandSearchPath() error {
	defaultPath := filepath.Join(c.Cache.DataPath, "search")

	expanded, err := expandPath(c.Search.Path, defaultPath)
	if err != nil {
		return err
	}
	c.Search.Path = expanded
	return nil
}

// splitOrigins splits a comma-separated origin list, trimming whitespace.
func splitOrigins(s string) []string {
	parts := strings.Split(s, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// parseDurationValue resolves a duration through the usual precedence chain.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	raw := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", raw, err)
	}
	return d, nil
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

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
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

		// Real env vars take precedence over .env entries.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
