package sources

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLogSource serves build logs from memory. Used in tests and for
// mock dry runs.
type MemoryLogSource struct {
	mu   sync.RWMutex
	logs map[string][]string

	// Err, when set, is returned from every lookup.
	Err error
}

// NewMemoryLogSource creates an empty in-memory log source.
func NewMemoryLogSource() *MemoryLogSource {
	return &MemoryLogSource{logs: make(map[string][]string)}
}

// Put stores log lines for a deployment.
func (s *MemoryLogSource) Put(deploymentID string, lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[deploymentID] = lines
}

// BuildLogs returns the stored log lines, or nil when none exist.
func (s *MemoryLogSource) BuildLogs(_ context.Context, deploymentID string) ([]string, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logs[deploymentID], nil
}

// MemoryFileSource serves file content from memory, keyed by path.
type MemoryFileSource struct {
	mu    sync.RWMutex
	files map[string]string

	// FailPaths lists paths whose fetch should fail.
	FailPaths map[string]bool
}

// NewMemoryFileSource creates a file source over the given path to content map.
func NewMemoryFileSource(files map[string]string) *MemoryFileSource {
	if files == nil {
		files = make(map[string]string)
	}
	return &MemoryFileSource{files: files, FailPaths: make(map[string]bool)}
}

// FileContent returns the stored content for ref.Path.
func (s *MemoryFileSource) FileContent(_ context.Context, ref FileRef) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailPaths[ref.Path] {
		return "", fmt.Errorf("fetch %s: simulated failure", ref.Path)
	}
	content, ok := s.files[ref.Path]
	if !ok {
		return "", fmt.Errorf("file %s not found", ref.Path)
	}
	return content, nil
}
