package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMkJob_UniqueDirs(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	id1, path1, err := m.MkJob()
	if err != nil {
		t.Fatal(err)
	}
	id2, path2, err := m.MkJob()
	if err != nil {
		t.Fatal(err)
	}

	if id1 == id2 || path1 == path2 {
		t.Fatalf("job dirs not unique: %s vs %s", path1, path2)
	}
	for _, p := range []string{path1, path2} {
		if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
			t.Fatalf("job dir %s not created: %v", p, err)
		}
	}
}

func TestCleanup_RemovesOldKeepsFresh(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, oldDir, _ := m.MkJob()
	oldFile := filepath.Join(oldDir, "video.mp4")
	if err := os.WriteFile(oldFile, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldFile, stale, stale); err != nil {
		t.Fatal(err)
	}

	_, freshDir, _ := m.MkJob()
	freshFile := filepath.Join(freshDir, "audio.mp3")
	if err := os.WriteFile(freshFile, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}

	m.Cleanup(24 * time.Hour)

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Fatalf("stale file survived cleanup: %v", err)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Fatalf("emptied job dir survived cleanup: %v", err)
	}
	if _, err := os.Stat(freshFile); err != nil {
		t.Fatalf("fresh file removed: %v", err)
	}
}

func TestCleanup_ZeroAgeIsIdempotent(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, dir, _ := m.MkJob()
	if err := os.WriteFile(filepath.Join(dir, "script.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	m.Cleanup(0)
	m.Cleanup(0)

	entries, err := os.ReadDir(m.Root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("%d entries left after double cleanup(0)", len(entries))
	}
}
