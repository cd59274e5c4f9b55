package commands

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mytalk-labs/mytalk/internal/cli/config"
	"github.com/mytalk-labs/mytalk/internal/cli/output"
)

// configView is the printable shape of the effective configuration.
// Secrets are masked before rendering.
type configView struct {
	WorkspaceRoot string                        `yaml:"workspace_root" json:"workspace_root"`
	ConfigFile    string                        `yaml:"config_file,omitempty" json:"config_file,omitempty"`
	DataDir       string                        `yaml:"data_dir" json:"data_dir"`
	PromptsDir    string                        `yaml:"prompts_dir" json:"prompts_dir"`
	Provider      string                        `yaml:"provider" json:"provider"`
	Providers     map[string]configProviderView `yaml:"providers,omitempty" json:"providers,omitempty"`
	Language      string                        `yaml:"language,omitempty" json:"language,omitempty"`
	TTS           configTTSView                 `yaml:"tts" json:"tts"`
	Library       configLibraryView             `yaml:"library" json:"library"`
	Drive         configDriveView               `yaml:"drive" json:"drive"`
	Server        configServerView              `yaml:"server" json:"server"`
	Verbose       bool                          `yaml:"verbose" json:"verbose"`
	Output        string                        `yaml:"output" json:"output"`
	LogFile       string                        `yaml:"log_file,omitempty" json:"log_file,omitempty"`
}

type configProviderView struct {
	APIKey  string `yaml:"api_key" json:"api_key"`
	Model   string `yaml:"model,omitempty" json:"model,omitempty"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
}

type configTTSView struct {
	Engine   string   `yaml:"engine" json:"engine"`
	Fallback []string `yaml:"fallback,omitempty" json:"fallback,omitempty"`
	Voice    string   `yaml:"voice,omitempty" json:"voice,omitempty"`
	Voice2   string   `yaml:"voice2,omitempty" json:"voice2,omitempty"`
	Timeout  string   `yaml:"timeout" json:"timeout"`
	Cache    bool     `yaml:"cache" json:"cache"`
}

type configLibraryView struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

type configDriveView struct {
	Credentials string `yaml:"credentials" json:"credentials"`
	Token       string `yaml:"token" json:"token"`
	Folder      string `yaml:"folder" json:"folder"`
}

type configServerView struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	AutoOpen bool   `yaml:"auto_open" json:"auto_open"`
	Watch    bool   `yaml:"watch" json:"watch"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration with secrets masked",
		Long: `Show the configuration after merging defaults, mytalk.yaml,
MYTALK_* environment variables, and flags. API keys and connection
passwords are masked.`,
		Example: `  mytalk config show
  mytalk config show --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd)
		},
	})

	return cmd
}

func runConfigShow(cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	view := buildConfigView(cmdCtx.Cfg)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(view)
	}

	data, err := yaml.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	r.Println(string(data))
	return nil
}

func buildConfigView(cfg *config.Config) configView {
	view := configView{
		WorkspaceRoot: cfg.WorkspaceRoot,
		ConfigFile:    config.GetConfigFileUsed(),
		DataDir:       cfg.DataDir,
		PromptsDir:    cfg.PromptsDir,
		Provider:      cfg.Provider,
		Language:      cfg.Language,
		TTS: configTTSView{
			Engine:   cfg.TTS.Engine,
			Fallback: cfg.TTS.Fallback,
			Voice:    cfg.TTS.Voice,
			Voice2:   cfg.TTS.Voice2,
			Timeout:  cfg.TTS.Timeout.String(),
			Cache:    cfg.TTS.Cache,
		},
		Library: configLibraryView{
			Driver: cfg.Library.Driver,
			DSN:    maskDSN(cfg.Library.DSN),
		},
		Drive: configDriveView{
			Credentials: cfg.Drive.Credentials,
			Token:       cfg.Drive.Token,
			Folder:      cfg.Drive.Folder,
		},
		Server: configServerView{
			Host:     cfg.Server.Host,
			Port:     cfg.Server.Port,
			AutoOpen: cfg.Server.AutoOpen,
			Watch:    cfg.Server.Watch,
		},
		Verbose: cfg.Verbose,
		Output:  cfg.OutputFormat,
		LogFile: cfg.LogFile,
	}

	if len(cfg.Providers) > 0 {
		view.Providers = make(map[string]configProviderView, len(cfg.Providers))
		for name, p := range cfg.Providers {
			view.Providers[name] = configProviderView{
				APIKey:  maskSecret(p.APIKey),
				Model:   p.Model,
				BaseURL: p.BaseURL,
			}
		}
	}

	return view
}

var dsnPassword = regexp.MustCompile(`(://[^:/@]+:)[^@]+(@)`)

// maskSecret hides a credential while showing whether it is set.
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "****"
}

// maskDSN hides the password component of a connection string.
func maskDSN(dsn string) string {
	return dsnPassword.ReplaceAllString(dsn, "${1}****${2}")
}
