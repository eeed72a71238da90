package artifacts

import (
	"os"
	"sync"
)

// Config configures the filesystem artifact manager
type Config struct {
	FileMode os.FileMode // Mode for written files
	DirMode  os.FileMode // Mode for created directories
}

// DefaultConfig returns default artifact configuration
func DefaultConfig() *Config {
	return &Config{
		FileMode: 0644,
		DirMode:  0755,
	}
}

// GeneratedFile describes a file produced by a compilation
type GeneratedFile struct {
	Path    string
	Hash    string // sha256 of the content, hex encoded
	Size    int64
	Changed bool // false when the file already held identical bytes
}

// FileSet is an insertion-ordered set of generated paths, safe for
// concurrent use.
type FileSet struct {
	mu    sync.RWMutex
	paths []string
	seen  map[string]bool
}

// NewFileSet creates an empty file set
func NewFileSet() *FileSet {
	return &FileSet{seen: make(map[string]bool)}
}

// Add records path. Adding a path twice keeps its first position.
func (s *FileSet) Add(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[path] {
		return
	}
	s.seen[path] = true
	s.paths = append(s.paths, path)
}

// Paths returns a copy of the recorded paths
func (s *FileSet) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// Len returns the number of recorded paths
func (s *FileSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paths)
}

// Reset forgets every recorded path
func (s *FileSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paths = nil
	s.seen = make(map[string]bool)
}
