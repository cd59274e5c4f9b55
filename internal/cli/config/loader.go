package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey stores the logger in context. Shared with root command
// setup via LoggerKey.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search
// for a config file.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking.
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// configExistsIn checks if a mytalk config file exists in the directory.
func configExistsIn(dir string) bool {
	for _, name := range []string{"mytalk.yaml", "mytalk.yml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// findWorkspaceUpward searches upward from startDir for a mytalk
// config file. Returns empty if none is found within
// maxUpwardSearchLevels.
func findWorkspaceUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferWorkspaceRoot determines the workspace root from CLI flags and
// the filesystem.
// Priority:
//  1. Parent of an explicit --data-dir, when it holds mytalk.yaml or
//     the directory is named "data"
//  2. Search upward from CWD for mytalk.yaml
//  3. Current working directory
func inferWorkspaceRoot(flags *pflag.FlagSet) string {
	if flags != nil && flags.Changed("data-dir") {
		if dataDir, _ := flags.GetString("data-dir"); dataDir != "" {
			if abs, err := filepath.Abs(dataDir); err == nil {
				parent := filepath.Dir(abs)
				if configExistsIn(parent) || filepath.Base(abs) == "data" {
					return parent
				}
			}
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		if root := findWorkspaceUpward(cwd); root != "" {
			return root
		}
	}

	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it is
// not absolute. Empty and absolute paths pass through unchanged.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// envKeyToConfigKey maps a MYTALK_ environment variable to its config
// key. Top-level keys stay flat; section prefixes map to nested keys,
// so MYTALK_TTS_ENGINE becomes tts.engine.
func envKeyToConfigKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "MYTALK_"))
	for _, section := range []string{"tts", "library", "drive", "server"} {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest
		}
	}
	return key
}

// LoadConfig loads configuration from file, environment variables, and
// flags. Precedence (highest to lowest): flags > env vars > config
// file > defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for a fresh load
	k = koanf.New(".")

	// Infer the workspace root from flags before loading, so that
	// --data-dir testdata/data anchors relative paths at testdata/
	root := inferWorkspaceRoot(flags)

	// Paths given as flags are relative to CWD, not the workspace
	// root. Absolutize them now to avoid double resolution.
	var flagDataDir, flagPromptsDir string
	if flags != nil {
		if flags.Changed("data-dir") {
			if v, _ := flags.GetString("data-dir"); v != "" {
				flagDataDir, _ = filepath.Abs(v)
			}
		}
		if flags.Changed("prompts-dir") {
			if v, _ := flags.GetString("prompts-dir"); v != "" {
				flagPromptsDir, _ = filepath.Abs(v)
			}
		}
	}

	// An explicit config file anchors the workspace at its directory
	// unless a flag already pinned the root.
	if cfgFile != "" && root == inferWorkspaceRoot(nil) {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			root = filepath.Dir(abs)
		}
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"data_dir":          DefaultDataDir,
		"prompts_dir":       DefaultPromptsDir,
		"provider":          DefaultProvider,
		"tts.engine":        DefaultTTSEngine,
		"tts.cache":         true,
		"tts.timeout":       "90s",
		"library.driver":    "sqlite",
		"drive.credentials": "credentials.json",
		"drive.token":       "token.json",
		"drive.folder":      DefaultDriveFolder,
		"server.host":       DefaultServerHost,
		"server.port":       DefaultServerPort,
		"server.auto_open":  true,
		"server.watch":      true,
		"verbose":           false,
		"output":            DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file, searched in the workspace root when not explicit
	if cfgFile == "" {
		for _, name := range []string{"mytalk.yaml", "mytalk.yml"} {
			candidate := filepath.Join(root, name)
			if _, err := os.Stat(candidate); err == nil {
				cfgFile = candidate
				break
			}
		}
	}
	configFileUsed = cfgFile
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables (MYTALK_ prefix)
	if err := k.Load(env.Provider("MYTALK_", ".", envKeyToConfigKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")

			// EXPLICIT MAPPING: serve's --host and --port land in the
			// server section, not at the top level.
			switch key {
			case "host":
				return "server.host", posflag.FlagVal(flags, f)
			case "port":
				return "server.port", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal, decoding duration strings like "90s"
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Anchor relative paths at the workspace root
	cfg.WorkspaceRoot = root

	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	} else {
		cfg.DataDir = resolvePathRelativeTo(cfg.DataDir, root)
	}
	if flagPromptsDir != "" {
		cfg.PromptsDir = flagPromptsDir
	} else {
		cfg.PromptsDir = resolvePathRelativeTo(cfg.PromptsDir, root)
	}

	// Drive credentials and log files live inside the data directory
	// unless given absolute.
	cfg.Drive.Credentials = resolvePathRelativeTo(cfg.Drive.Credentials, cfg.DataDir)
	cfg.Drive.Token = resolvePathRelativeTo(cfg.Drive.Token, cfg.DataDir)
	cfg.LogFile = resolvePathRelativeTo(cfg.LogFile, cfg.DataDir)

	// The sqlite library defaults to library.db in the data directory.
	if cfg.Library.Driver == "" {
		cfg.Library.Driver = "sqlite"
	}
	if cfg.Library.Driver == "sqlite" {
		switch cfg.Library.DSN {
		case "":
			cfg.Library.DSN = filepath.Join(cfg.DataDir, "library.db")
		case ":memory:":
		default:
			cfg.Library.DSN = resolvePathRelativeTo(cfg.Library.DSN, root)
		}
	}

	// Expand ${VAR} in secrets so keys can stay out of the file
	expandSecretEnvVars(&cfg)

	if err := cfg.validateLibrary(); err != nil {
		return nil, fmt.Errorf("invalid library configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the most recently loaded configuration.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger. The
// commands package retrieves the logger from context without creating
// an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns with environment variable
// values. Unset variables are left as written.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

// expandSecretEnvVars expands environment variables in fields that
// commonly hold secrets or machine-specific values.
func expandSecretEnvVars(c *Config) {
	for name, p := range c.Providers {
		p.APIKey = expandEnvVars(p.APIKey)
		p.BaseURL = expandEnvVars(p.BaseURL)
		c.Providers[name] = p
	}
	c.Library.DSN = expandEnvVars(c.Library.DSN)
	c.Drive.Credentials = expandEnvVars(c.Drive.Credentials)
	c.Drive.Token = expandEnvVars(c.Drive.Token)
}
