// Package cache stores synthesized audio on disk so repeated synthesis
// of the same utterance never calls a speech API twice. Entries expire
// by file modification time.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mytalk-labs/mytalk/internal/tts"
)

// DefaultMaxAge is how long a cached utterance stays valid.
const DefaultMaxAge = 30 * 24 * time.Hour

// AudioCache is a directory of audio files named <key>.<format>.
type AudioCache struct {
	dir    string
	maxAge time.Duration
}

var _ tts.Cache = (*AudioCache)(nil)

// New opens (and creates if needed) an audio cache at dir. A maxAge of
// zero or less uses DefaultMaxAge.
func New(dir string, maxAge time.Duration) (*AudioCache, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &AudioCache{dir: dir, maxAge: maxAge}, nil
}

// Dir returns the cache directory.
func (c *AudioCache) Dir() string { return c.dir }

// Get returns the cached audio and its format. Expired entries count as
// misses and are removed on the way out.
func (c *AudioCache) Get(key string) ([]byte, string, bool) {
	if !validKey(key) {
		return nil, "", false
	}
	matches, err := filepath.Glob(filepath.Join(c.dir, key+".*"))
	if err != nil || len(matches) == 0 {
		return nil, "", false
	}

	path := matches[0]
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", false
	}
	if time.Since(info.ModTime()) > c.maxAge {
		os.Remove(path)
		return nil, "", false
	}

	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return nil, "", false
	}
	return data, strings.TrimPrefix(filepath.Ext(path), "."), true
}

// Put stores audio under key. The write goes through a temp file and a
// rename so a concurrent Get never sees a partial entry.
func (c *AudioCache) Put(key, format string, data []byte) error {
	if !validKey(key) {
		return fmt.Errorf("invalid cache key: %q", key)
	}
	if format == "" || strings.ContainsAny(format, "./\\") {
		return fmt.Errorf("invalid cache format: %q", format)
	}
	if len(data) == 0 {
		return errors.New("refusing to cache empty audio")
	}

	tmp, err := os.CreateTemp(c.dir, ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create cache entry: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(c.dir, key+"."+format)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Prune removes entries older than the cache's max age and reports how
// many files and bytes were freed.
func (c *AudioCache) Prune() (removed int, freed int64, err error) {
	cutoff := time.Now().Add(-c.maxAge)
	err = c.walk(func(path string, info os.FileInfo) error {
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		freed += info.Size()
		return nil
	})
	return removed, freed, err
}

// Clear removes every entry regardless of age.
func (c *AudioCache) Clear() (removed int, freed int64, err error) {
	err = c.walk(func(path string, info os.FileInfo) error {
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		freed += info.Size()
		return nil
	})
	return removed, freed, err
}

// Size reports the number of entries and the bytes they occupy.
func (c *AudioCache) Size() (files int, bytes int64, err error) {
	err = c.walk(func(_ string, info os.FileInfo) error {
		files++
		bytes += info.Size()
		return nil
	})
	return files, bytes, err
}

// walk visits every cache entry, skipping subdirectories and in-flight
// temp files.
func (c *AudioCache) walk(fn func(path string, info os.FileInfo) error) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if err := fn(filepath.Join(c.dir, entry.Name()), info); err != nil {
			return err
		}
	}
	return nil
}

func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		ok := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_'
		if !ok {
			return false
		}
	}
	return true
}
