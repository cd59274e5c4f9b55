// Package drivesync mirrors the scripts workspace against a Google
// Drive folder. Files are compared by MD5 checksum; the remote folder
// is flat, with project-relative paths kept in the file names.
package drivesync

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mytalk-labs/mytalk/internal/drive"
	"github.com/mytalk-labs/mytalk/internal/workspace"
)

// stateFile lives under the workspace backups directory and remembers
// the resolved folder and the last sync times.
const stateFile = "sync_state.json"

// Remote is the slice of the Drive client the syncer needs. Tests
// substitute an in-memory implementation.
type Remote interface {
	EnsureFolder(ctx context.Context, name string) (string, error)
	List(ctx context.Context, folderID string) ([]*drive.File, error)
	Upload(ctx context.Context, folderID, name string, r io.Reader) (*drive.File, error)
	Update(ctx context.Context, fileID string, r io.Reader) (*drive.File, error)
	Download(ctx context.Context, fileID string, w io.Writer) error
	Delete(ctx context.Context, fileID string) error
}

// Action says what a sync change does.
type Action string

const (
	ActionUpload   Action = "upload"
	ActionUpdate   Action = "update"
	ActionDownload Action = "download"
	ActionDelete   Action = "delete"
)

// Change is one file-level difference between the workspace and the
// Drive folder.
type Change struct {
	Name   string
	Action Action
	Size   int64
	Reason string
}

// Result reports what a sync pass did, or for Status, what it would do.
type Result struct {
	FolderID string
	Changes  []Change
	InSync   int
}

// Count returns how many changes carry the given action.
func (r *Result) Count(a Action) int {
	n := 0
	for _, c := range r.Changes {
		if c.Action == a {
			n++
		}
	}
	return n
}

// State is the persisted sync bookkeeping shown by `drive status`.
type State struct {
	FolderID   string     `json:"folder_id,omitempty"`
	FolderName string     `json:"folder_name,omitempty"`
	LastPush   *time.Time `json:"last_push,omitempty"`
	LastPull   *time.Time `json:"last_pull,omitempty"`
}

// Options tweaks a push or pull pass.
type Options struct {
	// Prune removes remote files that no longer exist locally. Push
	// only.
	Prune bool
	// OnChange observes each change as it is applied.
	OnChange func(Change)
}

// Config assembles a Syncer.
type Config struct {
	Remote    Remote
	Workspace *workspace.Workspace
	// Folder is the Drive folder name, created on first push.
	Folder string
	// FolderID skips the name lookup when set.
	FolderID string
	Logger   *slog.Logger
}

// Syncer pushes and pulls the scripts tree.
type Syncer struct {
	remote   Remote
	ws       *workspace.Workspace
	folder   string
	folderID string
	logger   *slog.Logger

	mu sync.Mutex
}

// New validates the configuration and returns a Syncer.
func New(cfg Config) (*Syncer, error) {
	if cfg.Remote == nil {
		return nil, errors.New("drivesync requires a remote")
	}
	if cfg.Workspace == nil {
		return nil, errors.New("drivesync requires a workspace")
	}
	if cfg.Folder == "" && cfg.FolderID == "" {
		return nil, errors.New("drivesync requires a folder name or id")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Syncer{
		remote:   cfg.Remote,
		ws:       cfg.Workspace,
		folder:   cfg.Folder,
		folderID: cfg.FolderID,
		logger:   logger,
	}, nil
}

// State loads the persisted sync state. A missing file yields the zero
// state.
func (s *Syncer) State() (State, error) {
	var st State
	data, err := os.ReadFile(s.statePath())
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("failed to read sync state: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("invalid sync state file: %w", err)
	}
	return st, nil
}

func (s *Syncer) statePath() string {
	return filepath.Join(s.ws.BackupsDir(), stateFile)
}

func (s *Syncer) saveState(st State) error {
	if err := os.MkdirAll(s.ws.BackupsDir(), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.statePath(), append(data, '\n'), 0o644)
}

// resolveFolder returns the remote folder ID, looking it up or creating
// it on first use. The resolved ID is cached in the state file so later
// passes skip the lookup.
func (s *Syncer) resolveFolder(ctx context.Context) (string, error) {
	if s.folderID != "" {
		return s.folderID, nil
	}
	st, err := s.State()
	if err == nil && st.FolderID != "" && st.FolderName == s.folder {
		s.folderID = st.FolderID
		return s.folderID, nil
	}
	id, err := s.remote.EnsureFolder(ctx, s.folder)
	if err != nil {
		return "", err
	}
	s.folderID = id
	return id, nil
}

// localFile is one file found under the scripts directory.
type localFile struct {
	path string
	size int64
}

// scanLocal walks the scripts tree and returns files keyed by their
// slash-separated relative name. Dotfiles are ignored.
func (s *Syncer) scanLocal() (map[string]localFile, error) {
	root := s.ws.ScriptsDir()
	files := make(map[string]localFile)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = localFile{path: path, size: info.Size()}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return files, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan scripts directory: %w", err)
	}
	return files, nil
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// diff holds both sides of a comparison, classified.
type diff struct {
	localOnly  []string
	changed    []string
	remoteOnly []string
	inSync     int
	local      map[string]localFile
	remote     map[string]*drive.File
}

func (s *Syncer) compare(ctx context.Context, folderID string) (*diff, error) {
	local, err := s.scanLocal()
	if err != nil {
		return nil, err
	}
	listed, err := s.remote.List(ctx, folderID)
	if err != nil {
		return nil, err
	}
	remote := make(map[string]*drive.File, len(listed))
	for _, f := range listed {
		remote[f.Name] = f
	}

	d := &diff{local: local, remote: remote}
	for name, lf := range local {
		rf, ok := remote[name]
		if !ok {
			d.localOnly = append(d.localOnly, name)
			continue
		}
		sum, err := fileMD5(lf.path)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", name, err)
		}
		if sum == rf.MD5 {
			d.inSync++
		} else {
			d.changed = append(d.changed, name)
		}
	}
	for name := range remote {
		if _, ok := local[name]; !ok {
			d.remoteOnly = append(d.remoteOnly, name)
		}
	}
	sort.Strings(d.localOnly)
	sort.Strings(d.changed)
	sort.Strings(d.remoteOnly)
	return d, nil
}

// Status compares both sides without touching either. Local-only files
// would be uploaded by push, remote-only files downloaded by pull, and
// changed files rewritten by whichever direction runs.
func (s *Syncer) Status(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folderID, err := s.resolveFolder(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.compare(ctx, folderID)
	if err != nil {
		return nil, err
	}

	res := &Result{FolderID: folderID, InSync: d.inSync}
	for _, name := range d.localOnly {
		res.Changes = append(res.Changes, Change{
			Name: name, Action: ActionUpload, Size: d.local[name].size, Reason: "not in drive",
		})
	}
	for _, name := range d.changed {
		res.Changes = append(res.Changes, Change{
			Name: name, Action: ActionUpdate, Size: d.local[name].size, Reason: "content differs",
		})
	}
	for _, name := range d.remoteOnly {
		res.Changes = append(res.Changes, Change{
			Name: name, Action: ActionDownload, Size: d.remote[name].Size, Reason: "only in drive",
		})
	}
	return res, nil
}

// Push uploads new and changed files. With Prune, remote files that no
// longer exist locally are deleted.
func (s *Syncer) Push(ctx context.Context, opts Options) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folderID, err := s.resolveFolder(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.compare(ctx, folderID)
	if err != nil {
		return nil, err
	}

	res := &Result{FolderID: folderID, InSync: d.inSync}
	apply := func(c Change) {
		res.Changes = append(res.Changes, c)
		if opts.OnChange != nil {
			opts.OnChange(c)
		}
	}

	for _, name := range d.localOnly {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		lf := d.local[name]
		if err := s.uploadFile(ctx, folderID, name, lf.path, ""); err != nil {
			return res, err
		}
		apply(Change{Name: name, Action: ActionUpload, Size: lf.size, Reason: "not in drive"})
	}
	for _, name := range d.changed {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		lf := d.local[name]
		if err := s.uploadFile(ctx, folderID, name, lf.path, d.remote[name].ID); err != nil {
			return res, err
		}
		apply(Change{Name: name, Action: ActionUpdate, Size: lf.size, Reason: "content differs"})
	}
	if opts.Prune {
		for _, name := range d.remoteOnly {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			rf := d.remote[name]
			if err := s.remote.Delete(ctx, rf.ID); err != nil {
				return res, fmt.Errorf("failed to prune %s: %w", name, err)
			}
			apply(Change{Name: name, Action: ActionDelete, Size: rf.Size, Reason: "deleted locally"})
		}
	}

	now := time.Now().UTC()
	st, _ := s.State()
	st.FolderID = folderID
	st.FolderName = s.folder
	st.LastPush = &now
	if err := s.saveState(st); err != nil {
		s.logger.Warn("failed to save sync state", "error", err)
	}
	s.logger.Info("drive push complete",
		"uploaded", res.Count(ActionUpload),
		"updated", res.Count(ActionUpdate),
		"pruned", res.Count(ActionDelete),
		"in_sync", res.InSync)
	return res, nil
}

func (s *Syncer) uploadFile(ctx context.Context, folderID, name, path, fileID string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()
	if fileID == "" {
		_, err = s.remote.Upload(ctx, folderID, name, f)
	} else {
		_, err = s.remote.Update(ctx, fileID, f)
	}
	if err != nil {
		return fmt.Errorf("failed to push %s: %w", name, err)
	}
	return nil
}

// Pull downloads remote-only files and overwrites local files whose
// content differs. Local-only files are left alone.
func (s *Syncer) Pull(ctx context.Context, opts Options) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folderID, err := s.resolveFolder(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.compare(ctx, folderID)
	if err != nil {
		return nil, err
	}

	res := &Result{FolderID: folderID, InSync: d.inSync}
	apply := func(c Change) {
		res.Changes = append(res.Changes, c)
		if opts.OnChange != nil {
			opts.OnChange(c)
		}
	}

	download := func(name, reason string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rf := d.remote[name]
		if err := s.downloadFile(ctx, name, rf); err != nil {
			return err
		}
		apply(Change{Name: name, Action: ActionDownload, Size: rf.Size, Reason: reason})
		return nil
	}
	for _, name := range d.remoteOnly {
		if err := download(name, "only in drive"); err != nil {
			return res, err
		}
	}
	for _, name := range d.changed {
		if err := download(name, "content differs"); err != nil {
			return res, err
		}
	}

	now := time.Now().UTC()
	st, _ := s.State()
	st.FolderID = folderID
	st.FolderName = s.folder
	st.LastPull = &now
	if err := s.saveState(st); err != nil {
		s.logger.Warn("failed to save sync state", "error", err)
	}
	s.logger.Info("drive pull complete",
		"downloaded", res.Count(ActionDownload),
		"in_sync", res.InSync)
	return res, nil
}

// downloadFile fetches a remote file into the scripts tree, writing to
// a temp file first so a failed transfer never clobbers the original.
func (s *Syncer) downloadFile(ctx context.Context, name string, rf *drive.File) error {
	if err := safeRelName(name); err != nil {
		return err
	}
	dest := filepath.Join(s.ws.ScriptsDir(), filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".pull-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := s.remote.Download(ctx, rf.ID, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to pull %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to place %s: %w", name, err)
	}
	return nil
}

// safeRelName rejects remote names that would escape the scripts tree
// or collide with hidden files.
func safeRelName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") {
		return fmt.Errorf("unsafe remote file name: %q", name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || strings.HasPrefix(part, ".") || strings.ContainsRune(part, '\\') {
			return fmt.Errorf("unsafe remote file name: %q", name)
		}
	}
	return nil
}
