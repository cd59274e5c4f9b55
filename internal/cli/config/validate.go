package config

import (
	"fmt"
	"os"
	"strings"
)

// knownProviders are the language model providers the CLI can build.
var knownProviders = []string{"openai", "anthropic", "gemini"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	provider := strings.ToLower(c.Provider)
	for _, p := range knownProviders {
		if provider == p {
			return nil
		}
	}
	return fmt.Errorf("unknown provider %q (available: %s)\nHint: set provider in mytalk.yaml or MYTALK_PROVIDER",
		c.Provider, strings.Join(knownProviders, ", "))
}

// ValidateDirectories checks if the data directory exists.
// Help and init commands work without one; everything else needs it.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.DataDir); os.IsNotExist(err) {
		return fmt.Errorf("data directory does not exist: %s\nHint: Run 'mytalk init' or use --data-dir to specify a different path", c.DataDir)
	}
	return nil
}

// validateLibrary checks the library backend selection.
func (c *Config) validateLibrary() error {
	switch c.Library.Driver {
	case "sqlite":
		return nil
	case "postgres":
		if c.Library.DSN == "" {
			return fmt.Errorf("library.dsn is required for the postgres driver")
		}
		return nil
	default:
		return fmt.Errorf("unknown library driver %q (available: sqlite, postgres)\nHint: set library.driver in mytalk.yaml", c.Library.Driver)
	}
}
