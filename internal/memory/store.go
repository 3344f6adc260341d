// Package memory provides the file-backed memory store the hosting layer
// injects into plugin contexts. Long-term memory is a single markdown file;
// history is an append-only journal next to it.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/driftcove/driftcove/internal/schema"
)

// FileStore implements schema.MemoryStore on top of a workspace directory.
type FileStore struct {
	mu              sync.Mutex
	memoryFilePath  string
	historyFilePath string
}

// NewFileStore creates a store rooted at workspace. The memory/ subdirectory
// is created if it does not exist.
func NewFileStore(workspace string) (*FileStore, error) {
	dir := filepath.Join(workspace, "memory")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return &FileStore{
		memoryFilePath:  filepath.Join(dir, "MEMORY.md"),
		historyFilePath: filepath.Join(dir, "HISTORY.md"),
	}, nil
}

// ReadLongTerm returns the current contents of MEMORY.md, or "" if not yet written.
func (m *FileStore) ReadLongTerm() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := os.ReadFile(m.memoryFilePath)
	if err != nil {
		return ""
	}
	return string(data)
}

// WriteLongTerm overwrites MEMORY.md with content.
func (m *FileStore) WriteLongTerm(content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return os.WriteFile(m.memoryFilePath, []byte(content), 0o644)
}

// AppendHistory appends an entry to HISTORY.md followed by a blank line.
func (m *FileStore) AppendHistory(entry string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := os.OpenFile(m.historyFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%s\n\n", strings.TrimRight(entry, " \r\n"))
	return err
}

// Search returns up to limit history lines containing query, newest last.
// A case-insensitive substring match over the journal keeps the accessor
// dependency-free; richer retrieval belongs to the memory subsystem proper.
func (m *FileStore) Search(query string, limit int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.historyFilePath)
	if err != nil {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	needle := strings.ToLower(query)
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		if strings.Contains(strings.ToLower(line), needle) {
			out = append(out, line)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

var _ schema.MemoryStore = (*FileStore)(nil)
