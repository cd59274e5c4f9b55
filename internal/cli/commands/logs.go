package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// NewLogsCommand creates the logs command.
func NewLogsCommand() *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log output",
		Long: `Print the tail of the current log file. Without a configured
log_file, the newest file under the workspace logs folder is used.`,
		Example: `  mytalk logs
  mytalk logs --tail 200`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, tail)
		},
	}

	cmd.Flags().IntVarP(&tail, "tail", "n", 50, "Lines to show from the end")

	return cmd
}

func runLogs(cmd *cobra.Command, tail int) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	path := cmdCtx.Cfg.LogFile
	if path == "" {
		newest, err := newestLogFile(cmdCtx.Workspace.LogsDir())
		if err != nil {
			return err
		}
		if newest == "" {
			r.Muted("No log files yet. Set log_file in mytalk.yaml or run with --verbose.")
			return nil
		}
		path = newest
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read log file: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if tail > 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}

	r.Muted(fmt.Sprintf("%s (last %d lines)", displayPath(path), len(lines)))
	for _, line := range lines {
		r.Println(line)
	}
	return nil
}

// newestLogFile picks the most recently modified .log file in dir.
func newestLogFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read logs dir: %w", err)
	}

	type candidate struct {
		path string
		mod  int64
	}
	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path: filepath.Join(dir, entry.Name()),
			mod:  info.ModTime().UnixNano(),
		})
	}
	if len(candidates) == 0 {
		return "", nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].mod > candidates[j].mod })
	return candidates[0].path, nil
}
