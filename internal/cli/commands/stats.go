package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mytalk-labs/mytalk/internal/cli/output"
	"github.com/mytalk-labs/mytalk/internal/stats"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

// DayStats is one day of study activity for JSON output.
type DayStats struct {
	Date             string `json:"date"`
	ScriptsCreated   int    `json:"scripts_created"`
	ScriptsPracticed int    `json:"scripts_practiced"`
	StudyMinutes     int    `json:"study_minutes"`
}

// PeriodStats aggregates a date range for JSON output.
type PeriodStats struct {
	ScriptsCreated   int `json:"scripts_created"`
	ScriptsPracticed int `json:"scripts_practiced"`
	StudyMinutes     int `json:"study_minutes"`
}

// StatsOutput is the JSON payload of the stats command.
type StatsOutput struct {
	Today      DayStats    `json:"today"`
	Week       PeriodStats `json:"week"`
	Month      PeriodStats `json:"month"`
	StreakDays int         `json:"streak_days"`
	Days       []DayStats  `json:"days"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show your study stats",
		Long: `Show study activity: scripts created, practice sessions, study
minutes, and your current daily streak.`,
		Example: `  mytalk stats
  mytalk stats --days 30
  mytalk stats --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, days)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Days to include in the per-day table")

	return cmd
}

func runStats(cmd *cobra.Command, days int) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	recorder := stats.NewRecorder(cmdCtx.Store)

	today, err := recorder.Today()
	if err != nil {
		return fmt.Errorf("failed to load today's stats: %w", err)
	}
	week, err := recorder.Week()
	if err != nil {
		return fmt.Errorf("failed to load weekly stats: %w", err)
	}
	month, err := recorder.Month()
	if err != nil {
		return fmt.Errorf("failed to load monthly stats: %w", err)
	}
	streak, err := recorder.Streak()
	if err != nil {
		return fmt.Errorf("failed to compute streak: %w", err)
	}
	if days <= 0 {
		days = 7
	}
	rangeStats, err := recorder.Range(days)
	if err != nil {
		return fmt.Errorf("failed to load stats range: %w", err)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return statsJSON(cmdCtx, today, week, month, streak, rangeStats)
	case output.ModeMarkdown:
		return statsMarkdown(cmdCtx, today, week, month, streak, rangeStats)
	default:
		return statsText(cmdCtx, today, week, month, streak, rangeStats, days)
	}
}

// statsText renders stats with a styled summary and a per-day table.
func statsText(cmdCtx *CommandContext, today *core.DailyStat, week, month *core.StatsSummary, streak int, rangeStats *core.StatsSummary, days int) error {
	r := cmdCtx.Renderer

	r.Header(1, "Study Stats")

	r.Println(fmt.Sprintf("Today      %s", formatActivity(today.ScriptsCreated, today.ScriptsPracticed, today.StudyMinutes)))
	r.Println(fmt.Sprintf("This week  %s", formatActivity(week.ScriptsCreated, week.ScriptsPracticed, week.StudyMinutes)))
	r.Println(fmt.Sprintf("This month %s", formatActivity(month.ScriptsCreated, month.ScriptsPracticed, month.StudyMinutes)))

	r.Println()
	switch {
	case streak > 1:
		r.Success(fmt.Sprintf("%d-day streak. Keep going!", streak))
	case streak == 1:
		r.Success("Studied today. Come back tomorrow to start a streak!")
	default:
		r.Muted("No activity today yet. A quick practice keeps the streak alive.")
	}

	if len(rangeStats.Days) == 0 {
		return nil
	}

	r.Println()
	r.Header(2, fmt.Sprintf("Last %d days", days))

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Date", "Created", "Practiced", "Minutes"})
	for _, d := range rangeStats.Days {
		t.AppendRow(table.Row{d.Date, d.ScriptsCreated, d.ScriptsPracticed, d.StudyMinutes})
	}
	t.Render()

	return nil
}

// statsMarkdown renders stats as markdown key-values and a table.
func statsMarkdown(cmdCtx *CommandContext, today *core.DailyStat, week, month *core.StatsSummary, streak int, rangeStats *core.StatsSummary) error {
	r := cmdCtx.Renderer

	r.Println(output.FormatHeader(1, "Study Stats"))
	r.Println("")
	r.Println(output.FormatKeyValue("Today", formatActivity(today.ScriptsCreated, today.ScriptsPracticed, today.StudyMinutes)))
	r.Println(output.FormatKeyValue("This Week", formatActivity(week.ScriptsCreated, week.ScriptsPracticed, week.StudyMinutes)))
	r.Println(output.FormatKeyValue("This Month", formatActivity(month.ScriptsCreated, month.ScriptsPracticed, month.StudyMinutes)))
	r.Println(output.FormatKeyValue("Streak", fmt.Sprintf("%d days", streak)))

	if len(rangeStats.Days) == 0 {
		return nil
	}

	r.Println("")
	cols := []string{"Date", "Created", "Practiced", "Minutes"}
	r.Println(fmt.Sprintf("| %s |", strings.Join(cols, " | ")))
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	r.Println(fmt.Sprintf("| %s |", strings.Join(seps, " | ")))
	for _, d := range rangeStats.Days {
		r.Println(fmt.Sprintf("| %s | %d | %d | %d |", d.Date, d.ScriptsCreated, d.ScriptsPracticed, d.StudyMinutes))
	}

	return nil
}

// statsJSON renders the stats payload.
func statsJSON(cmdCtx *CommandContext, today *core.DailyStat, week, month *core.StatsSummary, streak int, rangeStats *core.StatsSummary) error {
	out := StatsOutput{
		Today: DayStats{
			Date:             today.Date,
			ScriptsCreated:   today.ScriptsCreated,
			ScriptsPracticed: today.ScriptsPracticed,
			StudyMinutes:     today.StudyMinutes,
		},
		Week: PeriodStats{
			ScriptsCreated:   week.ScriptsCreated,
			ScriptsPracticed: week.ScriptsPracticed,
			StudyMinutes:     week.StudyMinutes,
		},
		Month: PeriodStats{
			ScriptsCreated:   month.ScriptsCreated,
			ScriptsPracticed: month.ScriptsPracticed,
			StudyMinutes:     month.StudyMinutes,
		},
		StreakDays: streak,
		Days:       make([]DayStats, 0, len(rangeStats.Days)),
	}
	for _, d := range rangeStats.Days {
		out.Days = append(out.Days, DayStats{
			Date:             d.Date,
			ScriptsCreated:   d.ScriptsCreated,
			ScriptsPracticed: d.ScriptsPracticed,
			StudyMinutes:     d.StudyMinutes,
		})
	}
	return cmdCtx.Renderer.JSON(out)
}

// formatActivity renders one row of the stats summary.
func formatActivity(created, practiced, minutes int) string {
	return fmt.Sprintf("%2d created · %2d practiced · %3d min", created, practiced, minutes)
}
