package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into dir for the test and restores CWD afterward. It
// returns the resolved working directory, which can differ from dir
// when the temp root is a symlink.
func chdir(t *testing.T, dir string) string {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
	wd, err := os.Getwd()
	require.NoError(t, err)
	return wd
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "mytalk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	ResetConfig()
	wd := chdir(t, t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(wd, "data"), cfg.DataDir)
	assert.Equal(t, filepath.Join(wd, "prompts"), cfg.PromptsDir)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "openai", cfg.TTS.Engine)
	assert.True(t, cfg.TTS.Cache)
	assert.Equal(t, 90*time.Second, cfg.TTS.Timeout)
	assert.Equal(t, "sqlite", cfg.Library.Driver)
	assert.Equal(t, filepath.Join(wd, "data", "library.db"), cfg.Library.DSN)
	assert.Equal(t, filepath.Join(wd, "data", "credentials.json"), cfg.Drive.Credentials)
	assert.Equal(t, "MyTalk Backups", cfg.Drive.Folder)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8501, cfg.Server.Port)
	assert.Equal(t, "auto", cfg.OutputFormat)
	assert.False(t, cfg.Verbose)
}

func TestLoadConfigFromFile(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	cfgPath := writeConfig(t, tmpDir, `
data_dir: storage
provider: anthropic
language: ko
tts:
  engine: edge
  voice: en-US-AriaNeural
  timeout: 2m
library:
  driver: sqlite
  dsn: storage/my-library.db
server:
  port: 9000
`)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	// Relative paths anchor at the config file's directory
	assert.Equal(t, filepath.Join(tmpDir, "storage"), cfg.DataDir)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "ko", cfg.Language)
	assert.Equal(t, "edge", cfg.TTS.Engine)
	assert.Equal(t, "en-US-AriaNeural", cfg.TTS.Voice)
	assert.Equal(t, 2*time.Minute, cfg.TTS.Timeout)
	assert.Equal(t, filepath.Join(tmpDir, "storage", "my-library.db"), cfg.Library.DSN)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, cfgPath, GetConfigFileUsed())
}

func TestLoadConfigUpwardSearch(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "provider: gemini\n")
	nested := filepath.Join(tmpDir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	wd := chdir(t, nested)
	root := filepath.Dir(filepath.Dir(wd))

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, root, cfg.WorkspaceRoot)
	assert.Equal(t, filepath.Join(root, "data"), cfg.DataDir)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	cfgPath := writeConfig(t, tmpDir, "provider: openai\n")

	t.Setenv("MYTALK_PROVIDER", "anthropic")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider)
}

func TestLoadConfigNestedEnvKeys(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	cfgPath := writeConfig(t, tmpDir, "")

	t.Setenv("MYTALK_TTS_ENGINE", "google")
	t.Setenv("MYTALK_DRIVE_FOLDER", "Shared Scripts")
	t.Setenv("MYTALK_SERVER_PORT", "7777")
	t.Setenv("MYTALK_LIBRARY_DRIVER", "postgres")
	t.Setenv("MYTALK_LIBRARY_DSN", "postgres://localhost/mytalk")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, "google", cfg.TTS.Engine)
	assert.Equal(t, "Shared Scripts", cfg.Drive.Folder)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Library.Driver)
	assert.Equal(t, "postgres://localhost/mytalk", cfg.Library.DSN)
}

func TestLoadConfigFlagPrecedence(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	cfgPath := writeConfig(t, tmpDir, "provider: openai\n")

	t.Setenv("MYTALK_PROVIDER", "anthropic")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("provider", "", "language model provider")
	require.NoError(t, flags.Set("provider", "gemini"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Provider, "flag value should override config file and env var")
}

func TestLoadConfigFlagNotSetUsesEnv(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	cfgPath := writeConfig(t, tmpDir, "provider: openai\n")

	t.Setenv("MYTALK_PROVIDER", "anthropic")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("provider", "", "language model provider")
	// Not calling flags.Set, so Changed is false

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider, "env var should be used when flag is not set")
}

func TestLoadConfigServerFlagRemap(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	cfgPath := writeConfig(t, tmpDir, "server:\n  port: 9000\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 0, "server port")
	flags.String("host", "", "server host")
	require.NoError(t, flags.Set("port", "8080"))
	require.NoError(t, flags.Set("host", "0.0.0.0"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoadConfigDataDirFlagAnchorsRoot(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("data-dir", "", "data directory")
	require.NoError(t, flags.Set("data-dir", dataDir))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, tmpDir, cfg.WorkspaceRoot)
	assert.Equal(t, filepath.Join(tmpDir, "prompts"), cfg.PromptsDir)
}

func TestLoadConfigSecretExpansion(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	cfgPath := writeConfig(t, tmpDir, `
providers:
  openai:
    api_key: ${TEST_OPENAI_KEY}
  anthropic:
    api_key: literal-key
`)

	t.Setenv("TEST_OPENAI_KEY", "sk-test-123")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, "sk-test-123", cfg.Providers["openai"].APIKey)
	assert.Equal(t, "literal-key", cfg.Providers["anthropic"].APIKey)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value_one")
	t.Setenv("TEST_VAR_TWO", "value_two")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single variable", "${TEST_VAR_ONE}", "value_one"},
		{"multiple variables", "${TEST_VAR_ONE}/${TEST_VAR_TWO}", "value_one/value_two"},
		{"variable in path", "/path/to/${TEST_VAR_ONE}/file", "/path/to/value_one/file"},
		{"unset variable stays as-is", "${UNSET_VARIABLE}", "${UNSET_VARIABLE}"},
		{"no variables", "plain string", "plain string"},
		{"empty string", "", ""},
		{"mixed set and unset", "${TEST_VAR_ONE}:${UNSET_VAR}", "value_one:${UNSET_VAR}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

func TestEnvKeyToConfigKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"MYTALK_DATA_DIR", "data_dir"},
		{"MYTALK_PROVIDER", "provider"},
		{"MYTALK_LOG_FILE", "log_file"},
		{"MYTALK_TTS_ENGINE", "tts.engine"},
		{"MYTALK_TTS_VOICE2", "tts.voice2"},
		{"MYTALK_LIBRARY_DRIVER", "library.driver"},
		{"MYTALK_DRIVE_FOLDER", "drive.folder"},
		{"MYTALK_SERVER_AUTO_OPEN", "server.auto_open"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, envKeyToConfigKey(tt.in), "envKeyToConfigKey(%q)", tt.in)
	}
}

func TestLoadConfigRejectsUnknownLibraryDriver(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	cfgPath := writeConfig(t, tmpDir, "library:\n  driver: mysql\n")

	_, err := LoadConfig(cfgPath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid library configuration")
	assert.Contains(t, err.Error(), "mysql")
}

func TestLoadConfigPostgresRequiresDSN(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	cfgPath := writeConfig(t, tmpDir, "library:\n  driver: postgres\n")

	_, err := LoadConfig(cfgPath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "library.dsn is required")
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := &Config{DataDir: "data", Provider: "openai"}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("empty data_dir", func(t *testing.T) {
		cfg := &Config{Provider: "openai"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "data_dir is required")
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := &Config{DataDir: "data", Provider: "cohere"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown provider")
		assert.Contains(t, err.Error(), "openai")
	})
}

func TestAPIKeyFor(t *testing.T) {
	cfg := &Config{
		Providers: map[string]ProviderConfig{
			"openai": {APIKey: "configured-key"},
		},
	}

	t.Run("configured key wins", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "env-key")
		assert.Equal(t, "configured-key", cfg.APIKeyFor("openai"))
	})

	t.Run("falls back to well-known env", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "env-anthropic")
		assert.Equal(t, "env-anthropic", cfg.APIKeyFor("anthropic"))
	})

	t.Run("unknown provider uses NAME_API_KEY", func(t *testing.T) {
		t.Setenv("CUSTOM_API_KEY", "env-custom")
		assert.Equal(t, "env-custom", cfg.APIKeyFor("custom"))
	})
}

func TestGetLoggerFallback(t *testing.T) {
	logger := GetLogger(context.Background())
	require.NotNil(t, logger)
}
