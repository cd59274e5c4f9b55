// Package config provides configuration management for the MyTalk CLI.
//
// Configuration is assembled from four layers, lowest to highest
// precedence: built-in defaults, mytalk.yaml, MYTALK_* environment
// variables, and command-line flags.
package config

import (
	"os"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultDataDir     = "data"
	DefaultPromptsDir  = "prompts"
	DefaultProvider    = "openai"
	DefaultTTSEngine   = "openai"
	DefaultDriveFolder = "MyTalk Backups"
	DefaultServerHost  = "127.0.0.1"
	DefaultServerPort  = 8501
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// ProviderConfig holds credentials and model selection for one
// language model provider.
type ProviderConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

// LibraryConfig selects the library database backend.
type LibraryConfig struct {
	Driver string `koanf:"driver"` // sqlite or postgres
	DSN    string `koanf:"dsn"`    // file path for sqlite, connection string for postgres
}

// TTSConfig configures audio synthesis.
type TTSConfig struct {
	Engine   string        `koanf:"engine"`
	Fallback []string      `koanf:"fallback"`
	Voice    string        `koanf:"voice"`
	Voice2   string        `koanf:"voice2"`
	Timeout  time.Duration `koanf:"timeout"`
	Cache    bool          `koanf:"cache"`
}

// DriveConfig configures the Google Drive backup.
type DriveConfig struct {
	Credentials string `koanf:"credentials"`
	Token       string `koanf:"token"`
	Folder      string `koanf:"folder"`
}

// ServerConfig configures the web UI server.
type ServerConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	AutoOpen bool   `koanf:"auto_open"`
	Watch    bool   `koanf:"watch"`
}

// Config holds all CLI configuration options.
type Config struct {
	// WorkspaceRoot is where mytalk.yaml lives. Relative paths in the
	// config resolve against it. Not itself a config key.
	WorkspaceRoot string `koanf:"-"`

	DataDir      string                    `koanf:"data_dir"`
	PromptsDir   string                    `koanf:"prompts_dir"`
	Provider     string                    `koanf:"provider"`
	Providers    map[string]ProviderConfig `koanf:"providers"`
	TTS          TTSConfig                 `koanf:"tts"`
	Library      LibraryConfig             `koanf:"library"`
	Drive        DriveConfig               `koanf:"drive"`
	Server       ServerConfig              `koanf:"server"`
	Language     string                    `koanf:"language"`
	Verbose      bool                      `koanf:"verbose"`
	OutputFormat string                    `koanf:"output"`
	LogFile      string                    `koanf:"log_file"`
}

// wellKnownKeyEnv maps provider names to the conventional API key
// environment variable.
var wellKnownKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"google":    "GOOGLE_API_KEY",
}

// APIKeyFor returns the API key for a provider: the configured key if
// set, otherwise the provider's conventional environment variable.
func (c *Config) APIKeyFor(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if p, ok := c.Providers[name]; ok && p.APIKey != "" {
		return p.APIKey
	}
	if env, ok := wellKnownKeyEnv[name]; ok {
		return os.Getenv(env)
	}
	return os.Getenv(strings.ToUpper(name) + "_API_KEY")
}

// ModelFor returns the configured model override for a provider, or
// empty for the provider default.
func (c *Config) ModelFor(name string) string {
	if p, ok := c.Providers[strings.ToLower(name)]; ok {
		return p.Model
	}
	return ""
}

// BaseURLFor returns the configured endpoint override for a provider.
func (c *Config) BaseURLFor(name string) string {
	if p, ok := c.Providers[strings.ToLower(name)]; ok {
		return p.BaseURL
	}
	return ""
}
