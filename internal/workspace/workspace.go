// Package workspace manages the MyTalk data directory: one project
// folder per script with its text and audio files, a JSON index for
// quick listing, and rolling backups of the library database.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/flytam/filenamify"
)

// maxTitleRunes caps the title part of a project folder name.
const maxTitleRunes = 50

// audioDir is the project subfolder holding synthesized audio.
const audioDir = "audio"

// Workspace is rooted at the configured data directory.
type Workspace struct {
	root string
}

// New creates a workspace rooted at dir. Call Init before first use.
func New(dir string) *Workspace {
	return &Workspace{root: dir}
}

func (w *Workspace) Root() string        { return w.root }
func (w *Workspace) ScriptsDir() string  { return filepath.Join(w.root, "scripts") }
func (w *Workspace) CacheDir() string    { return filepath.Join(w.root, "cache", "audio") }
func (w *Workspace) BackupsDir() string  { return filepath.Join(w.root, "backups") }
func (w *Workspace) LogsDir() string     { return filepath.Join(w.root, "logs") }
func (w *Workspace) ExportsDir() string  { return filepath.Join(w.root, "exports") }
func (w *Workspace) ImportsDir() string  { return filepath.Join(w.root, "imports") }
func (w *Workspace) LibraryPath() string { return filepath.Join(w.root, "library.db") }

// Init creates the directory layout.
func (w *Workspace) Init() error {
	for _, dir := range []string{
		w.root,
		w.ScriptsDir(),
		w.CacheDir(),
		w.BackupsDir(),
		w.LogsDir(),
		w.ExportsDir(),
		w.ImportsDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Project is one script's folder under the scripts directory.
type Project struct {
	name string
	dir  string
}

// Name returns the folder name relative to the scripts directory.
func (p *Project) Name() string { return p.name }

// Dir returns the absolute project path.
func (p *Project) Dir() string { return p.dir }

// Path resolves a file name inside the project.
func (p *Project) Path(name string) string { return filepath.Join(p.dir, name) }

// WriteFile atomically writes a file into the project.
func (p *Project) WriteFile(name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	return writeFileAtomic(p.Path(name), data, 0o644)
}

// WriteText atomically writes a text file with a trailing newline.
func (p *Project) WriteText(name, text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return p.WriteFile(name, []byte(text))
}

// ReadFile reads a file from the project.
func (p *Project) ReadFile(name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	return os.ReadFile(p.Path(name))
}

// WriteAudio atomically writes a file into the project's audio
// subfolder, creating it on first use. It returns the path relative to
// the project dir, which is what the library stores.
func (p *Project) WriteAudio(name string, data []byte) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	dir := filepath.Join(p.dir, audioDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create audio dir: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", err
	}
	return audioDir + "/" + name, nil
}

// AudioFiles lists the audio subfolder's file names, sorted. A missing
// folder means no audio yet.
func (p *Project) AudioFiles() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.dir, audioDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audio dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// ResolveAudio turns a stored audio path (audio/<name>) back into an
// absolute path, rejecting anything that would escape the project.
func (p *Project) ResolveAudio(stored string) (string, error) {
	dir, name, ok := strings.Cut(filepath.ToSlash(stored), "/")
	if !ok || dir != audioDir {
		return "", fmt.Errorf("invalid audio path: %q", stored)
	}
	if err := validName(name); err != nil {
		return "", err
	}
	return filepath.Join(p.dir, audioDir, name), nil
}

// Files lists the project's file names, sorted.
func (p *Project) Files() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read project dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// CreateProject makes a fresh project folder named
// <stamp>_<safe-title>. A numeric suffix resolves collisions when the
// same title is created twice in one second.
func (w *Workspace) CreateProject(title string, at time.Time) (*Project, error) {
	if err := os.MkdirAll(w.ScriptsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scripts dir: %w", err)
	}

	base := at.UTC().Format("20060102_150405") + "_" + SafeTitle(title)
	name := base
	for i := 2; ; i++ {
		dir := filepath.Join(w.ScriptsDir(), name)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return &Project{name: name, dir: dir}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create project dir: %w", err)
		}
		if i > 20 {
			return nil, fmt.Errorf("too many projects named %s", base)
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
}

// OpenProject opens an existing project folder by name.
func (w *Workspace) OpenProject(name string) (*Project, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	dir := filepath.Join(w.ScriptsDir(), name)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("project not found: %s", name)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a project dir: %s", name)
	}
	return &Project{name: name, dir: dir}, nil
}

// RemoveProject deletes a project folder and everything in it.
func (w *Workspace) RemoveProject(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(w.ScriptsDir(), name)); err != nil {
		return fmt.Errorf("failed to remove project: %w", err)
	}
	return nil
}

// SafeTitle converts a script title to a filesystem-safe kebab-case
// slug, capped at 50 runes. Empty input becomes "untitled".
func SafeTitle(title string) string {
	name, err := filenamify.Filenamify(title, filenamify.Options{Replacement: " "})
	if err != nil {
		name = title
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, name)
	name = strings.Join(strings.Fields(name), "-")

	if runes := []rune(name); len(runes) > maxTitleRunes {
		name = string(runes[:maxTitleRunes])
	}
	name = strings.Trim(name, "-")
	if name == "" {
		return "untitled"
	}
	return name
}

// validName rejects names that could escape the directory they belong
// to.
func validName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid name: %q", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid name: %q", name)
	}
	return nil
}
