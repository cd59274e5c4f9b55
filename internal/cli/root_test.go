package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytalk-labs/mytalk/internal/cli/config"
	"github.com/mytalk-labs/mytalk/internal/cli/testutil"
)

func TestNewRootCmdRegistersCommands(t *testing.T) {
	rootCmd := NewRootCmd()

	expected := []string{
		"version", "init", "setup", "new", "list", "show", "practice",
		"delete", "stats", "prompts", "export", "import", "serve",
		"drive", "tts", "clean", "logs", "doctor", "config", "completion",
	}

	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}

	for _, name := range expected {
		assert.True(t, registered[name], "command %q should be registered", name)
	}
}

func TestRootCmdGlobalFlags(t *testing.T) {
	rootCmd := NewRootCmd()

	for _, name := range []string{"config", "data-dir", "prompts-dir", "provider", "language", "verbose", "output"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "persistent flag %q should exist", name)
	}
}

func TestRootCmdHelp(t *testing.T) {
	rootCmd := NewRootCmd()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"--help"})

	require.NoError(t, rootCmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "mytalk")
	assert.Contains(t, out, "Available Commands")
	assert.Contains(t, out, "serve")
}

func TestRootCmdVersionFlag(t *testing.T) {
	rootCmd := NewRootCmd()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"--version"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "mytalk v")
}

func TestRootCmdLoadsConfigFile(t *testing.T) {
	ws := testutil.SetupTestWorkspace(t)
	t.Cleanup(config.ResetConfig)

	rootCmd := NewRootCmd()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"--config", filepath.Join(ws, "mytalk.yaml"), "version"})

	require.NoError(t, rootCmd.Execute())

	cfg := config.GetCurrentConfig()
	require.NotNil(t, cfg, "config should be loaded by the root command")
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, filepath.Join(ws, "data"), cfg.DataDir)
	assert.Equal(t, 8501, cfg.Server.Port)
}

func TestRootCmdUnknownCommand(t *testing.T) {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"frobnicate"})

	assert.Error(t, rootCmd.Execute())
}

func TestRootCmdConfigShowJSON(t *testing.T) {
	ws := testutil.SetupTestWorkspace(t)
	t.Cleanup(config.ResetConfig)

	rootCmd := NewRootCmd()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"--config", filepath.Join(ws, "mytalk.yaml"), "--output", "json", "config", "show"})

	require.NoError(t, rootCmd.Execute())

	testutil.AssertNoANSI(t, buf.String())
	var view map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &view), "config show --output json should emit JSON: %s", buf.String())
	assert.Equal(t, "openai", view["provider"])
}
