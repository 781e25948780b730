package staging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJobDirRoundTrip(t *testing.T) {
	root := t.TempDir()
	dir, err := EnsureJobDir(root, 42)
	if err != nil {
		t.Fatalf("EnsureJobDir: %v", err)
	}
	if filepath.Base(dir) != "job-42" {
		t.Fatalf("unexpected dir name: %s", dir)
	}
	id, ok := jobIDFromDirName(filepath.Base(dir))
	if !ok || id != 42 {
		t.Fatalf("jobIDFromDirName = %d, %v", id, ok)
	}
	if err := RemoveJobDir(root, 42); err != nil {
		t.Fatalf("RemoveJobDir: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("dir should be gone, got %v", err)
	}
}

func TestJobIDFromDirNameRejectsStrangers(t *testing.T) {
	for _, name := range []string{"job-", "job-abc", "job--3", "video", ".tmp", "job-0"} {
		if _, ok := jobIDFromDirName(name); ok {
			t.Fatalf("expected %q rejected", name)
		}
	}
}

func TestCleanStaleRemovesOldDirectories(t *testing.T) {
	root := t.TempDir()
	oldDir := filepath.Join(root, "job-1")
	newDir := filepath.Join(root, "job-2")
	for _, dir := range []string{oldDir, newDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldDir, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := CleanStale(root, 24*time.Hour, nil)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("expected only old dir removed, got %v", result.Removed)
	}
	if _, err := os.Stat(newDir); err != nil {
		t.Fatalf("new dir should survive: %v", err)
	}
}

func TestCleanOrphanedKeepsActiveAndForeignDirs(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"job-1", "job-2", "not-ours"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	result := CleanOrphaned(root, map[int64]struct{}{1: {}}, nil)
	if len(result.Removed) != 1 || filepath.Base(result.Removed[0]) != "job-2" {
		t.Fatalf("expected only job-2 removed, got %v", result.Removed)
	}
	for _, name := range []string{"job-1", "not-ours"} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Fatalf("%s should survive: %v", name, err)
		}
	}
}

func TestListDirectoriesReportsSizes(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "job-7")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "video.mp4"), make([]byte, 1024), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dirs, err := ListDirectories(root)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 1 || dirs[0].Size != 1024 {
		t.Fatalf("unexpected listing: %+v", dirs)
	}
}
