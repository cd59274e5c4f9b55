// Package commands_test provides tests for CLI command creation.
package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func hasSubcommand(cmd *cobra.Command, name string) bool {
	for _, sub := range cmd.Commands() {
		if sub.Name() == name {
			return true
		}
	}
	return false
}

func TestNewNewCommand(t *testing.T) {
	cmd := NewNewCommand()

	assert.Equal(t, "new [topic]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	flags := []string{"category", "kinds", "no-audio", "file", "url", "image", "yes"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewListCommand(t *testing.T) {
	cmd := NewListCommand()

	assert.Equal(t, "list", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.Contains(t, cmd.Aliases, "ls")

	flags := []string{"category", "search", "limit"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewShowCommand(t *testing.T) {
	cmd := NewShowCommand()

	assert.Equal(t, "show <script>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
}

func TestNewDeleteCommand(t *testing.T) {
	cmd := NewDeleteCommand()

	assert.Equal(t, "delete <script>", cmd.Use)
	assert.Contains(t, cmd.Aliases, "rm")
}

func TestNewPracticeCommand(t *testing.T) {
	cmd := NewPracticeCommand()

	assert.Equal(t, "practice <script>", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("kind"), "--kind flag should exist")
}

func TestNewStatsCommand(t *testing.T) {
	cmd := NewStatsCommand()

	assert.Equal(t, "stats", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("days"), "--days flag should exist")
}

func TestNewPromptsCommand(t *testing.T) {
	cmd := NewPromptsCommand()

	assert.Equal(t, "prompts", cmd.Use)
	assert.True(t, hasSubcommand(cmd, "list"), "prompts should have a list subcommand")
	assert.True(t, hasSubcommand(cmd, "render"), "prompts should have a render subcommand")
}

func TestNewExportCommand(t *testing.T) {
	cmd := NewExportCommand()

	assert.Equal(t, "export [script]", cmd.Use)

	flags := []string{"format", "dir", "all"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewImportCommand(t *testing.T) {
	cmd := NewImportCommand()

	assert.Equal(t, "import", cmd.Use)

	flags := []string{"url", "file", "name", "stdout"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewDriveCommand(t *testing.T) {
	cmd := NewDriveCommand()

	assert.Equal(t, "drive", cmd.Use)
	for _, sub := range []string{"login", "logout", "test", "push", "pull", "ls", "status"} {
		assert.True(t, hasSubcommand(cmd, sub), "drive should have a %s subcommand", sub)
	}
}

func TestNewCleanCommand(t *testing.T) {
	cmd := NewCleanCommand()

	assert.Equal(t, "clean", cmd.Use)

	flags := []string{"all", "log-days", "dry-run"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewTTSCommand(t *testing.T) {
	cmd := NewTTSCommand()

	assert.Equal(t, "tts", cmd.Use)
	assert.True(t, hasSubcommand(cmd, "engines"), "tts should have an engines subcommand")
	assert.True(t, hasSubcommand(cmd, "say"), "tts should have a say subcommand")
}

func TestNewDoctorCommand(t *testing.T) {
	cmd := NewDoctorCommand()

	assert.Equal(t, "doctor", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
}

func TestNewConfigCommand(t *testing.T) {
	cmd := NewConfigCommand()

	assert.Equal(t, "config", cmd.Use)
	assert.True(t, hasSubcommand(cmd, "show"), "config should have a show subcommand")
}

func TestNewServeCommand(t *testing.T) {
	cmd := NewServeCommand()

	assert.Equal(t, "serve", cmd.Use)
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	flags := []string{"host", "port", "no-browser", "watch", "dev"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewLogsCommand(t *testing.T) {
	cmd := NewLogsCommand()

	assert.Equal(t, "logs", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("tail"), "--tail flag should exist")
}

func TestNewSetupCommand(t *testing.T) {
	cmd := NewSetupCommand()

	assert.Equal(t, "setup", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
}
