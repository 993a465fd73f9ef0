package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a config that passes Validate; tests mutate one field.
func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Cache: CacheConfig{
			DataPath:      "/some/path",
			Backend:       BackendBadger,
			PageSize:      50,
			RetentionDays: 180,
			ResetFraction: 0.5,
		},
		Remote: RemoteConfig{
			BaseURL:           "https://api.channelbrief.app",
			RequestsPerSecond: 2,
			Burst:             4,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Environments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_LogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"INFO", true},   // case insensitive
		{"trace", false}, // not supported
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_Backend(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Backend = BackendSQLite
	assert.NoError(t, cfg.Validate())

	cfg.Cache.Backend = "bolt"
	assert.Error(t, cfg.Validate())
}

func TestValidate_PageSize(t *testing.T) {
	tests := []struct {
		size  int
		valid bool
	}{
		{1, true},
		{50, true},
		{500, true},
		{0, false},
		{-1, false},
		{501, false},
	}

	for _, tt := range tests {
		cfg := validConfig()
		cfg.Cache.PageSize = tt.size

		err := cfg.Validate()
		if tt.valid {
			assert.NoError(t, err, "size %d", tt.size)
		} else {
			assert.Error(t, err, "size %d", tt.size)
		}
	}
}

func TestValidate_ResetFraction(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.ResetFraction = 0
	assert.Error(t, cfg.Validate())

	cfg.Cache.ResetFraction = 1.5
	assert.Error(t, cfg.Validate())

	cfg.Cache.ResetFraction = 1
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RetentionDays(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.RetentionEnabled = true
	cfg.Cache.RetentionDays = 0
	assert.Error(t, cfg.Validate())

	// Days are ignored while retention is off.
	cfg.Cache.RetentionEnabled = false
	assert.NoError(t, cfg.Validate())
}

func TestValidate_EmptyDataPath(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.DataPath = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "data path")
}

func TestExpandDataPath_EmptyUsesDefault(t *testing.T) {
	cfg := &Config{}

	err := cfg.expandDataPath()
	require.NoError(t, err)

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	assert.Equal(t, filepath.Join(homeDir, "ChannelBrief", "cache"), cfg.Cache.DataPath)
}

func TestExpandDataPath_TildeExpansion(t *testing.T) {
	cfg := &Config{}
	cfg.Cache.DataPath = "~/my-cache"

	err := cfg.expandDataPath()
	require.NoError(t, err)

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	assert.Equal(t, filepath.Join(homeDir, "my-cache"), cfg.Cache.DataPath)
}

func TestExpandDataPath_AbsolutePath(t *testing.T) {
	cfg := &Config{}
	cfg.Cache.DataPath = "/absolute/path/to/cache"

	err := cfg.expandDataPath()
	require.NoError(t, err)

	assert.Equal(t, "/absolute/path/to/cache", cfg.Cache.DataPath)
}

func TestExpandSearchPath_DefaultsUnderDataPath(t *testing.T) {
	cfg := &Config{}
	cfg.Cache.DataPath = "/data"

	err := cfg.expandSearchPath()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/data", "search"), cfg.Search.Path)
}

func TestGetConfigValue_Precedence(t *testing.T) {
	result := getConfigValue("flag-value", "CB_TEST_KEY", "default-value")
	assert.Equal(t, "flag-value", result)

	os.Setenv("CB_TEST_KEY", "env-value") //nolint:errcheck // Test setup
	defer os.Unsetenv("CB_TEST_KEY")      //nolint:errcheck // Test cleanup

	result = getConfigValue("", "CB_TEST_KEY", "default-value")
	assert.Equal(t, "env-value", result)

	result = getConfigValue("", "CB_NONEXISTENT_KEY", "default-value")
	assert.Equal(t, "default-value", result)
}

func TestGetFloatConfigValue(t *testing.T) {
	assert.InDelta(t, 0.75, getFloatConfigValue("0.75", "CB_UNSET", 0.5), 1e-9)
	assert.InDelta(t, 0.5, getFloatConfigValue("", "CB_UNSET", 0.5), 1e-9)
	assert.InDelta(t, 0.5, getFloatConfigValue("not-a-number", "CB_UNSET", 0.5), 1e-9)
}

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t,
		[]string{"http://localhost:*", "tauri://localhost"},
		splitOrigins("http://localhost:*, tauri://localhost"))
	assert.Empty(t, splitOrigins(" , "))
}

func TestLoadEnvFile_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `# Test env file
CB_ENV=staging
CB_LOG_LEVEL=debug
CB_DATA_PATH=/test/path
# Comment line
CB_QUOTED="some value"
CB_SINGLE_QUOTED='another value'
`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	keys := []string{"CB_ENV", "CB_LOG_LEVEL", "CB_DATA_PATH", "CB_QUOTED", "CB_SINGLE_QUOTED"}
	for _, k := range keys {
		os.Unsetenv(k) //nolint:errcheck // Test cleanup
	}
	defer func() {
		for _, k := range keys {
			os.Unsetenv(k) //nolint:errcheck // Test cleanup
		}
	}()

	err = loadEnvFile(envFile)
	require.NoError(t, err)

	assert.Equal(t, "staging", os.Getenv("CB_ENV"))
	assert.Equal(t, "debug", os.Getenv("CB_LOG_LEVEL"))
	assert.Equal(t, "/test/path", os.Getenv("CB_DATA_PATH"))
	assert.Equal(t, "some value", os.Getenv("CB_QUOTED"))
	assert.Equal(t, "another value", os.Getenv("CB_SINGLE_QUOTED"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `VALID_KEY=valid_value
INVALID LINE WITHOUT EQUALS
`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	err = loadEnvFile(envFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoadEnvFile_NonExistentFile(t *testing.T) {
	err := loadEnvFile("/nonexistent/file/.env")
	assert.Error(t, err)
}

func TestLoadEnvFile_ExistingEnvVarsNotOverwritten(t *testing.T) {
	os.Setenv("CB_KEEP_VAR", "original-value") //nolint:errcheck // Test setup
	defer os.Unsetenv("CB_KEEP_VAR")           //nolint:errcheck // Test cleanup

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("CB_KEEP_VAR=new-value"), 0o644)
	require.NoError(t, err)

	err = loadEnvFile(envFile)
	require.NoError(t, err)

	assert.Equal(t, "original-value", os.Getenv("CB_KEEP_VAR"))
}
