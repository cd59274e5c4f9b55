package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// keepBackups is how many library backups survive pruning.
const keepBackups = 5

// BackupLibrary copies the library database into the backups directory
// and prunes old copies. It returns the backup file name.
func (w *Workspace) BackupLibrary(libraryPath string) (string, error) {
	if _, err := os.Stat(libraryPath); err != nil {
		return "", fmt.Errorf("library not found at %s: %w", libraryPath, err)
	}
	if err := os.MkdirAll(w.BackupsDir(), 0o755); err != nil {
		return "", fmt.Errorf("failed to create backups dir: %w", err)
	}

	name := "library-" + time.Now().UTC().Format("20060102-150405") + ".db"
	if err := copyFile(libraryPath, filepath.Join(w.BackupsDir(), name)); err != nil {
		return "", err
	}
	if err := w.pruneBackups(); err != nil {
		return "", err
	}
	return name, nil
}

// Backups lists backup file names, newest first.
func (w *Workspace) Backups() ([]string, error) {
	entries, err := os.ReadDir(w.BackupsDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backups dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "library-") || !strings.HasSuffix(name, ".db") {
			continue
		}
		names = append(names, name)
	}
	// The timestamp in the name sorts lexicographically.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// RestoreLibrary replaces the library database with a named backup.
func (w *Workspace) RestoreLibrary(backupName, libraryPath string) error {
	if err := validName(backupName); err != nil {
		return err
	}
	src := filepath.Join(w.BackupsDir(), backupName)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("backup not found: %s", backupName)
	}
	return copyFile(src, libraryPath)
}

func (w *Workspace) pruneBackups() error {
	names, err := w.Backups()
	if err != nil {
		return err
	}
	for _, name := range names[min(len(names), keepBackups):] {
		if err := os.Remove(filepath.Join(w.BackupsDir(), name)); err != nil {
			return fmt.Errorf("failed to prune backup %s: %w", name, err)
		}
	}
	return nil
}
