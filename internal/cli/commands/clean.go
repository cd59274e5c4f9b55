package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mytalk-labs/mytalk/internal/cache"
)

// CleanOptions holds options for the clean command.
type CleanOptions struct {
	All     bool
	MaxAge  time.Duration
	DryRun  bool
	LogDays int
}

// NewCleanCommand creates the clean command.
func NewCleanCommand() *cobra.Command {
	opts := &CleanOptions{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove old cached audio and logs",
		Long: `Remove expired entries from the audio cache, and log files older than
the retention window. Scripts and the library are never touched.`,
		Example: `  # Drop expired cache entries and old logs
  mytalk clean

  # Empty the audio cache entirely
  mytalk clean --all

  # See what would go without deleting
  mytalk clean --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClean(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.All, "all", false, "Remove every cache entry, not just expired ones")
	flags.DurationVar(&opts.MaxAge, "max-age", 0, "Cache entry age cutoff (default 30 days)")
	flags.IntVar(&opts.LogDays, "log-days", 14, "Delete log files older than this many days")
	flags.BoolVar(&opts.DryRun, "dry-run", false, "Report without deleting")

	return cmd
}

func runClean(cmd *cobra.Command, opts *CleanOptions) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	audioCache, err := cache.New(cmdCtx.Workspace.CacheDir(), opts.MaxAge)
	if err != nil {
		return err
	}

	files, bytes, err := audioCache.Size()
	if err != nil {
		return fmt.Errorf("failed to scan audio cache: %w", err)
	}
	r.StatusLine("audio cache", "ok", fmt.Sprintf("%d file(s), %s", files, formatBytes(bytes)))

	if opts.DryRun {
		oldLogs, logBytes, err := findOldLogs(cmdCtx.Workspace.LogsDir(), opts.LogDays)
		if err != nil {
			return err
		}
		r.StatusLine("old logs", "ok", fmt.Sprintf("%d file(s), %s", len(oldLogs), formatBytes(logBytes)))
		r.Muted("Dry run: nothing deleted")
		return nil
	}

	var removed int
	var freed int64
	if opts.All {
		removed, freed, err = audioCache.Clear()
	} else {
		removed, freed, err = audioCache.Prune()
	}
	if err != nil {
		return fmt.Errorf("failed to clean audio cache: %w", err)
	}

	oldLogs, logBytes, err := findOldLogs(cmdCtx.Workspace.LogsDir(), opts.LogDays)
	if err != nil {
		return err
	}
	for _, path := range oldLogs {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove log %s: %w", path, err)
		}
	}

	r.Success(fmt.Sprintf("Freed %s (%d cache entries, %d log files)",
		formatBytes(freed+logBytes), removed, len(oldLogs)))
	return nil
}

// findOldLogs lists .log files older than the retention window.
func findOldLogs(dir string, days int) ([]string, int64, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read logs dir: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	var paths []string
	var total int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
		total += info.Size()
	}
	return paths, total, nil
}
