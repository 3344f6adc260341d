// Package session persists per-conversation context documents as JSON files,
// one per session key. It backs the SessionStore accessor injected into
// plugin contexts.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/driftcove/driftcove/internal/schema"
)

// FileStore implements schema.SessionStore over a sessions directory.
type FileStore struct {
	dir   string
	cache sync.Map // key → map[string]any
}

// NewFileStore creates a store rooted at the workspace directory, creating
// the sessions subdirectory if necessary.
func NewFileStore(workspace string) (*FileStore, error) {
	dir := filepath.Join(workspace, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Get returns the session document for key, loading from disk on a cache miss.
func (s *FileStore) Get(key string) (map[string]any, bool) {
	if v, ok := s.cache.Load(key); ok {
		return v.(map[string]any), true
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false
	}
	s.cache.Store(key, doc)
	return doc, true
}

// Put writes the session document to disk and updates the cache.
func (s *FileStore) Put(key string, data map[string]any) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", key, err)
	}
	if err := os.WriteFile(s.path(key), raw, 0o644); err != nil {
		return fmt.Errorf("write session %s: %w", key, err)
	}
	s.cache.Store(key, data)
	return nil
}

// Delete removes the session from cache and disk.
func (s *FileStore) Delete(key string) error {
	s.cache.Delete(key)
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored session key, sorted.
func (s *FileStore) Keys() []string {
	entries, _ := filepath.Glob(filepath.Join(s.dir, "*.json"))
	out := make([]string, 0, len(entries))
	for _, path := range entries {
		name := strings.TrimSuffix(filepath.Base(path), ".json")
		out = append(out, unescapeKey(name))
	}
	sort.Strings(out)
	return out
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, escapeKey(key)+".json")
}

// Session keys may contain separators like "channel:chat"; keep filenames flat.
func escapeKey(key string) string {
	r := strings.NewReplacer(":", "%3A", "/", "%2F")
	return r.Replace(key)
}

func unescapeKey(name string) string {
	r := strings.NewReplacer("%3A", ":", "%2F", "/")
	return r.Replace(name)
}

var _ schema.SessionStore = (*FileStore)(nil)
