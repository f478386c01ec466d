package workspace

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Manager owns the scratch root. Every job gets its own directory holding all
// intermediate artifacts; cleanup reclaims them by age.
type Manager struct {
	Root string
}

func NewManager(root string) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create scratch root %s: %w", root, err)
	}
	return &Manager{Root: root}, nil
}

// MkJob allocates a unique job directory and returns its id and path.
func (m *Manager) MkJob() (string, string, error) {
	jobID := uuid.NewString()[:8]
	path := filepath.Join(m.Root, jobID)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", "", fmt.Errorf("create job dir: %w", err)
	}
	return jobID, path, nil
}

// Cleanup removes files under the scratch root whose mtime is older than the
// threshold, then prunes emptied directories. Errors are logged, never
// raised: a stubborn file must not block the batch.
func (m *Manager) Cleanup(olderThan time.Duration) {
	cutoff := time.Now().Add(-olderThan)
	removed := 0

	_ = filepath.Walk(m.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Printf("[workspace] cleanup walk %s: %v", path, err)
			return nil
		}
		if info.IsDir() || path == m.Root {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			log.Printf("[workspace] cleanup remove %s: %v", path, err)
			return nil
		}
		removed++
		return nil
	})

	// Second pass: drop directories that ended up empty.
	entries, err := os.ReadDir(m.Root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(m.Root, e.Name())
		if children, err := os.ReadDir(dir); err == nil && len(children) == 0 {
			_ = os.Remove(dir)
		}
	}

	if removed > 0 {
		log.Printf("[workspace] cleanup removed %d file(s) older than %s", removed, olderThan)
	}
}
