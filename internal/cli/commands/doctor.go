package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mytalk-labs/mytalk/internal/cache"
	"github.com/mytalk-labs/mytalk/internal/cli/config"
	"github.com/mytalk-labs/mytalk/internal/cli/output"
	"github.com/mytalk-labs/mytalk/internal/llm"
	"github.com/mytalk-labs/mytalk/internal/prompt"
	"github.com/mytalk-labs/mytalk/internal/store"
	"github.com/mytalk-labs/mytalk/internal/workspace"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

// Thresholds for the system resource checks.
const (
	lowDiskBytes   = 500 << 20  // warn below 500 MB free
	lowMemoryBytes = 256 << 20  // warn below 256 MB available
	bigCacheBytes  = 1024 << 20 // suggest cleaning past 1 GB
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run a comprehensive environment health check",
		Long: `Check that MyTalk is ready to generate scripts.

The doctor command probes every part of the setup and produces a
report with:
- A workspace summary (scripts, cache size, active provider)
- Health checks grouped by area (config, data, providers, TTS,
  Drive, database, system)
- A health score (0-100)
- Actionable recommendations

Nothing is modified. The command is safe to run at any time and is
the first thing to try when generation or audio stops working.`,
		Example: `  # Run the health check
  mytalk doctor

  # Machine-readable report
  mytalk doctor --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         DoctorSummary `json:"summary"`
	HealthChecks    []HealthCheck `json:"health_checks"`
	Score           int           `json:"score"`
	Recommendations []string      `json:"recommendations"`
	IssueCount      int           `json:"issue_count"`
}

// DoctorSummary describes the environment under test.
type DoctorSummary struct {
	Workspace  string `json:"workspace"`
	ConfigFile string `json:"config_file,omitempty"`
	Provider   string `json:"provider"`
	TTSEngine  string `json:"tts_engine"`
	Scripts    int    `json:"scripts"`
	CacheFiles int    `json:"cache_files"`
	CacheBytes int64  `json:"cache_bytes"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	RuleID     string   `json:"rule_id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command) error {
	// The whole point of doctor is reporting on a possibly broken
	// environment, so no store or engine is opened up front.
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	doctorOutput := buildDoctorOutput(cmdCtx)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(doctorOutput)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, doctorOutput)
	default:
		return renderDoctorText(r, doctorOutput)
	}
}

func buildDoctorOutput(cmdCtx *CommandContext) *DoctorOutput {
	cfg := cmdCtx.Cfg
	ws := cmdCtx.Workspace

	summary := DoctorSummary{
		Workspace:  ws.Root(),
		ConfigFile: config.GetConfigFileUsed(),
		Provider:   cfg.Provider,
		TTSEngine:  cfg.TTS.Engine,
	}

	checks := []HealthCheck{
		checkConfigFile(),
		checkOutputMode(cfg),
		checkWorkspaceDirs(ws),
		checkPrompts(cfg),
		checkProvider(cfg),
		checkAPIKey(cfg),
		checkTTSEngines(cmdCtx),
		checkDriveCredentials(cfg),
		checkDriveToken(cfg),
		checkDatabase(cfg, &summary),
		checkDiskSpace(ws),
		checkMemory(),
		checkCacheSize(ws, &summary),
	}

	issueCount := 0
	for _, check := range checks {
		issueCount += check.IssueCount
	}

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issueCount,
	}
}

func checkConfigFile() HealthCheck {
	check := HealthCheck{RuleID: "CF01", Name: "Config file", Group: "config", Status: "pass"}
	if config.GetConfigFileUsed() == "" {
		check.Status = "warn"
		check.IssueCount = 1
		check.Details = []string{"no mytalk.yaml found, running on built-in defaults"}
	}
	return check
}

func checkOutputMode(cfg *config.Config) HealthCheck {
	check := HealthCheck{RuleID: "CF02", Name: "Output mode", Group: "config", Status: "pass"}
	switch output.OutputMode(cfg.OutputFormat) {
	case "", output.ModeAuto, output.ModeText, output.ModeMarkdown, output.ModeJSON:
	default:
		check.Status = "error"
		check.IssueCount = 1
		check.Details = []string{fmt.Sprintf("unknown output mode %q (valid: auto, text, markdown, json)", cfg.OutputFormat)}
	}
	return check
}

func checkWorkspaceDirs(ws *workspace.Workspace) HealthCheck {
	check := HealthCheck{RuleID: "DA01", Name: "Workspace folders", Group: "data", Status: "pass"}

	if _, err := os.Stat(ws.Root()); err != nil {
		check.Status = "warn"
		check.IssueCount = 1
		check.Details = []string{fmt.Sprintf("workspace not initialized: %s", ws.Root())}
		return check
	}

	var missing []string
	for _, dir := range []string{ws.ScriptsDir(), ws.CacheDir(), ws.BackupsDir(), ws.LogsDir(), ws.ExportsDir()} {
		if _, err := os.Stat(dir); err != nil {
			missing = append(missing, displayPath(dir))
		}
	}
	if len(missing) > 0 {
		check.Status = "warn"
		check.IssueCount = len(missing)
		for _, dir := range missing {
			check.Details = append(check.Details, "missing folder: "+dir)
		}
	}
	return check
}

func checkPrompts(cfg *config.Config) HealthCheck {
	check := HealthCheck{RuleID: "DA02", Name: "Prompt templates", Group: "data", Status: "pass"}
	registry, err := prompt.Load(cfg.PromptsDir)
	if err != nil {
		check.Status = "error"
		check.IssueCount = 1
		check.Details = []string{err.Error()}
		return check
	}
	overrides := 0
	for _, tmpl := range registry.List() {
		if tmpl.Source != "builtin" {
			overrides++
		}
	}
	if overrides > 0 {
		check.Name = fmt.Sprintf("Prompt templates (%d user overrides)", overrides)
	}
	return check
}

func checkProvider(cfg *config.Config) HealthCheck {
	check := HealthCheck{RuleID: "PR01", Name: "Active provider", Group: "providers", Status: "pass"}
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	for _, known := range llm.Known() {
		if name == known {
			return check
		}
	}
	check.Status = "error"
	check.IssueCount = 1
	check.Details = []string{fmt.Sprintf("unknown provider %q (valid: %s)", cfg.Provider, strings.Join(llm.Known(), ", "))}
	return check
}

func checkAPIKey(cfg *config.Config) HealthCheck {
	check := HealthCheck{RuleID: "PR02", Name: "Provider API key", Group: "providers", Status: "pass"}
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.APIKeyFor(name) == "" {
		check.Status = "error"
		check.IssueCount = 1
		check.Details = []string{fmt.Sprintf("no API key for %s. Set providers.%s.api_key or the %s_API_KEY environment variable", name, name, strings.ToUpper(name))}
	}
	return check
}

func checkTTSEngines(cmdCtx *CommandContext) HealthCheck {
	check := HealthCheck{RuleID: "TT01", Name: "TTS engines", Group: "tts", Status: "pass"}
	speaker, err := createSpeaker(cmdCtx.Cfg, cmdCtx.Workspace, cmdCtx.Logger)
	if err != nil {
		check.Status = "error"
		check.IssueCount = 1
		check.Details = []string{err.Error()}
		return check
	}

	ready := 0
	for _, eng := range speaker.Engines() {
		if eng.Ready {
			ready++
			continue
		}
		check.IssueCount++
		check.Details = append(check.Details, fmt.Sprintf("%s unavailable: %s", eng.Name, eng.Detail))
	}
	switch {
	case ready == 0:
		check.Status = "error"
	case check.IssueCount > 0:
		check.Status = "warn"
	}
	return check
}

func checkDriveCredentials(cfg *config.Config) HealthCheck {
	check := HealthCheck{RuleID: "DR01", Name: "Drive credentials", Group: "drive", Status: "pass"}
	if _, err := os.Stat(cfg.Drive.Credentials); err != nil {
		check.Status = "warn"
		check.IssueCount = 1
		check.Details = []string{fmt.Sprintf("credentials file not found: %s (Drive backup stays off)", cfg.Drive.Credentials)}
	}
	return check
}

func checkDriveToken(cfg *config.Config) HealthCheck {
	check := HealthCheck{RuleID: "DR02", Name: "Drive connection", Group: "drive", Status: "pass"}
	if _, err := os.Stat(cfg.Drive.Token); err != nil {
		check.Status = "warn"
		check.IssueCount = 1
		check.Details = []string{"not connected to Google Drive"}
	}
	return check
}

func checkDatabase(cfg *config.Config, summary *DoctorSummary) HealthCheck {
	check := HealthCheck{RuleID: "DB01", Name: "Library database", Group: "database", Status: "pass"}

	st := store.New(cfg.Library.Driver, cfg.Library.DSN)
	if err := st.Open(); err != nil {
		check.Status = "error"
		check.IssueCount = 1
		check.Details = []string{err.Error()}
		return check
	}
	defer st.Close()

	version, err := st.MigrationVersion()
	if err != nil {
		check.Status = "warn"
		check.IssueCount = 1
		check.Details = []string{fmt.Sprintf("could not read migration version: %v", err)}
		return check
	}
	check.Name = fmt.Sprintf("Library database (%s, schema v%d)", cfg.Library.Driver, version)

	if scripts, err := st.ListScripts(core.SearchOptions{}); err == nil {
		summary.Scripts = len(scripts)
	}
	return check
}

func checkDiskSpace(ws *workspace.Workspace) HealthCheck {
	check := HealthCheck{RuleID: "SY01", Name: "Disk space", Group: "system", Status: "pass"}

	path, err := filepath.Abs(ws.Root())
	if err != nil {
		path = "."
	}
	if _, statErr := os.Stat(path); statErr != nil {
		if wd, wdErr := os.Getwd(); wdErr == nil {
			path = wd
		}
	}

	usage, err := disk.Usage(path)
	if err != nil {
		check.Status = "warn"
		check.IssueCount = 1
		check.Details = []string{fmt.Sprintf("could not read disk usage: %v", err)}
		return check
	}
	check.Name = fmt.Sprintf("Disk space (%s free)", formatBytes(int64(usage.Free)))
	if usage.Free < lowDiskBytes {
		check.Status = "warn"
		check.IssueCount = 1
		check.Details = []string{fmt.Sprintf("only %s free on the workspace volume", formatBytes(int64(usage.Free)))}
	}
	return check
}

func checkMemory() HealthCheck {
	check := HealthCheck{RuleID: "SY02", Name: "Memory", Group: "system", Status: "pass"}
	vm, err := mem.VirtualMemory()
	if err != nil {
		check.Status = "warn"
		check.IssueCount = 1
		check.Details = []string{fmt.Sprintf("could not read memory stats: %v", err)}
		return check
	}
	check.Name = fmt.Sprintf("Memory (%s available)", formatBytes(int64(vm.Available)))
	if vm.Available < lowMemoryBytes {
		check.Status = "warn"
		check.IssueCount = 1
		check.Details = []string{fmt.Sprintf("only %s memory available", formatBytes(int64(vm.Available)))}
	}
	return check
}

func checkCacheSize(ws *workspace.Workspace, summary *DoctorSummary) HealthCheck {
	check := HealthCheck{RuleID: "SY03", Name: "Audio cache", Group: "system", Status: "pass"}
	audioCache, err := cache.New(ws.CacheDir(), 0)
	if err != nil {
		check.Status = "warn"
		check.IssueCount = 1
		check.Details = []string{err.Error()}
		return check
	}
	files, bytes, err := audioCache.Size()
	if err != nil {
		check.Status = "warn"
		check.IssueCount = 1
		check.Details = []string{err.Error()}
		return check
	}
	summary.CacheFiles = files
	summary.CacheBytes = bytes
	check.Name = fmt.Sprintf("Audio cache (%d files, %s)", files, formatBytes(bytes))
	if bytes > bigCacheBytes {
		check.Status = "warn"
		check.IssueCount = 1
		check.Details = []string{fmt.Sprintf("cache holds %s of audio", formatBytes(bytes))}
	}
	return check
}

// calculateHealthScore computes a health score from 0-100. Errors
// weigh double; the score never leaves the 0-100 range.
func calculateHealthScore(checks []HealthCheck) int {
	if len(checks) == 0 {
		return 100
	}

	score := 100.0
	const basePenalty = 5.0

	for _, check := range checks {
		switch check.Status {
		case "error":
			score -= float64(check.IssueCount) * basePenalty * 2
		case "warn":
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}

// generateRecommendations creates actionable recommendations based on
// findings, deduplicated and capped at five.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}
		rec := getRecommendation(check.RuleID)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}

	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}
	return recommendations
}

// getRecommendation returns a recommendation for a specific rule.
func getRecommendation(ruleID string) string {
	switch ruleID {
	case "CF01":
		return "Run 'mytalk init' to scaffold mytalk.yaml and the prompt templates"
	case "CF02":
		return "Set output to one of auto, text, markdown, json in mytalk.yaml"
	case "DA01":
		return "Run 'mytalk init' to create the workspace folders"
	case "DA02":
		return "Fix the syntax error in your prompts folder, or remove the broken .star file"
	case "PR01":
		return "Set provider in mytalk.yaml to openai, anthropic, or gemini"
	case "PR02":
		return "Export the API key for your provider (for example OPENAI_API_KEY)"
	case "TT01":
		return "Configure at least one TTS engine key, or pick another engine with tts.engine"
	case "DR01":
		return "Download OAuth credentials from Google Cloud Console to enable Drive backup"
	case "DR02":
		return "Run 'mytalk drive login' to connect Google Drive"
	case "DB01":
		return "Check library.driver and library.dsn in mytalk.yaml"
	case "SY01":
		return "Free disk space, or run 'mytalk clean' to prune the audio cache"
	case "SY03":
		return "Run 'mytalk clean' to prune the audio cache"
	default:
		return ""
	}
}

// groupTitle renders a check group heading.
func groupTitle(group string) string {
	if group == "tts" {
		return "TTS"
	}
	return cases.Title(language.English).String(group)
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("MyTalk Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	r.Println(styles.Header2.Render("Environment"))
	r.Printf("   Workspace: %s | Scripts: %d\n", displayPath(out.Summary.Workspace), out.Summary.Scripts)
	r.Printf("   Provider: %s | TTS: %s | Cache: %s\n",
		out.Summary.Provider, out.Summary.TTSEngine, formatBytes(out.Summary.CacheBytes))
	if out.Summary.ConfigFile != "" {
		r.Println(styles.Muted.Render("   Config: " + displayPath(out.Summary.ConfigFile)))
	}
	r.Println("")

	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + groupTitle(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.StatusSuccess.String()
		switch check.Status {
		case "warn":
			icon = styles.Warning.Render("!")
		case "error":
			icon = styles.StatusFailed.String()
		}

		status := fmt.Sprintf("%s %s: %s", icon, check.RuleID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# MyTalk Health Report")
	r.Println("")

	r.Println("## Environment")
	r.Println("")
	r.Printf("- **Workspace**: %s\n", out.Summary.Workspace)
	if out.Summary.ConfigFile != "" {
		r.Printf("- **Config**: %s\n", out.Summary.ConfigFile)
	}
	r.Printf("- **Provider**: %s\n", out.Summary.Provider)
	r.Printf("- **TTS Engine**: %s\n", out.Summary.TTSEngine)
	r.Printf("- **Scripts**: %d\n", out.Summary.Scripts)
	r.Printf("- **Audio Cache**: %d files, %s\n", out.Summary.CacheFiles, formatBytes(out.Summary.CacheBytes))
	r.Println("")

	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + groupTitle(currentGroup))
			r.Println("")
		}

		status := "PASS"
		switch check.Status {
		case "warn":
			status = "WARN"
		case "error":
			status = "ERROR"
		}

		r.Printf("- **[%s]** %s: %s", status, check.RuleID, check.Name)
		if check.IssueCount > 0 {
			r.Printf(" (%d issues)", check.IssueCount)
		}
		r.Println("")

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
