package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// IndexEntry is one script's row in the scripts index. The index lets
// other tools (and the Drive sync) see the library without opening the
// database.
type IndexEntry struct {
	ScriptID  string    `json:"script_id"`
	Title     string    `json:"title"`
	TitleKo   string    `json:"title_ko,omitempty"`
	Category  string    `json:"category"`
	Dir       string    `json:"dir"`
	CreatedAt time.Time `json:"created_at"`
}

func (w *Workspace) indexPath() string {
	return filepath.Join(w.ScriptsDir(), "index.json")
}

// ReadIndex loads the scripts index, newest first. A missing index is
// an empty one.
func (w *Workspace) ReadIndex() ([]IndexEntry, error) {
	data, err := os.ReadFile(w.indexPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	var entries []IndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}
	return entries, nil
}

// UpdateIndex inserts or replaces the entry for a script and rewrites
// the index newest first.
func (w *Workspace) UpdateIndex(entry IndexEntry) error {
	entries, err := w.ReadIndex()
	if err != nil {
		return err
	}

	replaced := false
	for i := range entries {
		if entries[i].ScriptID == entry.ScriptID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	return w.writeIndex(entries)
}

// RemoveFromIndex drops a script's entry. Removing an absent entry is
// not an error.
func (w *Workspace) RemoveFromIndex(scriptID string) error {
	entries, err := w.ReadIndex()
	if err != nil {
		return err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.ScriptID != scriptID {
			kept = append(kept, e)
		}
	}
	return w.writeIndex(kept)
}

func (w *Workspace) writeIndex(entries []IndexEntry) error {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if entries == nil {
		entries = []IndexEntry{}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := os.MkdirAll(w.ScriptsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create scripts dir: %w", err)
	}
	return writeFileAtomic(w.indexPath(), append(data, '\n'), 0o644)
}
