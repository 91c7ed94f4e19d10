package integration

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"audio-dedupe/internal/cleanup"
	"audio-dedupe/internal/database"
	"audio-dedupe/internal/fsops"
	"audio-dedupe/internal/metrics"
	"audio-dedupe/internal/safety"
)

func init() {
	// Initialize metrics once for all integration tests
	metrics.Init()
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// TestCleanupSafetyIntegration verifies the complete delete contract on the real filesystem
func TestCleanupSafetyIntegration(t *testing.T) {
	tmpRoot := t.TempDir()
	library := filepath.Join(tmpRoot, "library")
	outside := filepath.Join(tmpRoot, "outside")

	dupMP3 := filepath.Join(library, "Artist", "Album", "01 Intro.mp3")
	dupFLAC := filepath.Join(library, "Artist", "Album", "01 Intro.flac")
	dupAAC := filepath.Join(library, "Artist", "Album", "02 Song.AAC")
	dupAPE := filepath.Join(library, "Artist", "Album", "02 Song.ape")
	lonely := filepath.Join(library, "Artist", "Album", "03 Outro.mp3")
	cover := filepath.Join(library, "Artist", "Album", "cover.jpg")
	otherDir := filepath.Join(library, "Artist", "Singles", "01 Intro.mp3")

	mustWrite(t, dupMP3, "lossy")
	mustWrite(t, dupFLAC, "lossless")
	mustWrite(t, dupAAC, "lossy aac")
	mustWrite(t, dupAPE, "lossless ape")
	mustWrite(t, lonely, "only copy")
	mustWrite(t, cover, "jpeg")
	mustWrite(t, otherDir, "single")

	// A lossy-looking symlink that points outside the library, next to a lossless file
	outsideTarget := filepath.Join(outside, "precious.mp3")
	mustWrite(t, outsideTarget, "MUST KEEP")
	link := filepath.Join(library, "Linked", "track.mp3")
	mustWrite(t, filepath.Join(library, "Linked", "track.flac"), "lossless")
	if err := os.Symlink(outsideTarget, link); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	logger := log.New(io.Discard, "", 0)

	t.Run("DryRun_NoFilesystemChanges", func(t *testing.T) {
		cleaner := cleanup.NewCleaner(fsops.NewOSFileSystem(), logger)
		cleaner.SetDryRun(true)

		report, err := cleaner.CleanupDirectory(context.Background(), library)
		if err != nil {
			t.Fatalf("Dry run failed: %v", err)
		}
		if len(report.Deleted) != 3 {
			t.Errorf("Expected 3 would-be deletions, got %v", report.Deleted)
		}
		for _, p := range []string{dupMP3, dupAAC, link, outsideTarget} {
			if !exists(p) {
				t.Errorf("DRY-RUN VIOLATION: %s was removed", p)
			}
		}
	})

	t.Run("Execute_DeletesOnlyMatchedLossy", func(t *testing.T) {
		db, err := database.NewDeletionDB(filepath.Join(tmpRoot, "state", "history.db"))
		if err != nil {
			t.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()

		cleaner := cleanup.NewCleaner(fsops.NewOSFileSystem(), logger)
		cleaner.SetRecorder(db)

		report, err := cleaner.CleanupDirectory(context.Background(), library)
		if err != nil {
			t.Fatalf("CleanupDirectory failed: %v", err)
		}

		// The link is unlinked; what it points at is not ours to delete
		for _, p := range []string{dupMP3, dupAAC, link} {
			if exists(p) {
				t.Errorf("Expected %s to be deleted", p)
			}
		}
		for _, p := range []string{dupFLAC, dupAPE, lonely, cover, otherDir, outsideTarget} {
			if !exists(p) {
				t.Errorf("SAFETY VIOLATION: %s was removed", p)
			}
		}

		records, err := db.GetDeletionsByRun(report.RunID)
		if err != nil {
			t.Fatalf("GetDeletionsByRun failed: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("Expected 3 history rows, got %d", len(records))
		}
		for _, r := range records {
			if r.Action != database.ActionDelete {
				t.Errorf("Expected DELETE for %s, got %s", r.Path, r.Action)
			}
		}
	})

	t.Run("SecondRun_NothingLeftToDelete", func(t *testing.T) {
		cleaner := cleanup.NewCleaner(fsops.NewOSFileSystem(), logger)
		report, err := cleaner.CleanupDirectory(context.Background(), library)
		if err != nil {
			t.Fatalf("Second run failed: %v", err)
		}
		if len(report.Deleted) != 0 {
			t.Errorf("Expected no deletions on rerun, got %v", report.Deleted)
		}
	})
}

// TestCleanupSymlinkedRoot verifies a root given as a symlink is swept through the link
func TestCleanupSymlinkedRoot(t *testing.T) {
	tmpRoot := t.TempDir()
	target := filepath.Join(tmpRoot, "disk", "music")
	mustWrite(t, filepath.Join(target, "Album", "01.mp3"), "lossy")
	mustWrite(t, filepath.Join(target, "Album", "01.flac"), "lossless")
	mustWrite(t, filepath.Join(target, "Album", "02.mp3"), "only copy")

	rootLink := filepath.Join(tmpRoot, "music")
	if err := os.Symlink(target, rootLink); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	cleaner := cleanup.NewCleaner(fsops.NewOSFileSystem(), log.New(io.Discard, "", 0))
	report, err := cleaner.CleanupDirectory(context.Background(), rootLink)
	if err != nil {
		t.Fatalf("CleanupDirectory failed: %v", err)
	}

	want := filepath.Join(rootLink, "Album", "01.mp3")
	if len(report.Deleted) != 1 || report.Deleted[0] != want {
		t.Errorf("Expected %s to be deleted, got %v", want, report.Deleted)
	}
	if exists(filepath.Join(target, "Album", "01.mp3")) {
		t.Error("Expected Album/01.mp3 to be gone from the link target")
	}
	for _, keep := range []string{"01.flac", "02.mp3"} {
		if !exists(filepath.Join(target, "Album", keep)) {
			t.Errorf("Expected Album/%s to remain", keep)
		}
	}
}

// TestCleanupProtectedRoot verifies a root under a system prefix is refused outright
func TestCleanupProtectedRoot(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.mp3"), "x")
	mustWrite(t, filepath.Join(root, "a.flac"), "x")

	cleaner := cleanup.NewCleaner(fsops.NewOSFileSystem(), log.New(io.Discard, "", 0))
	cleaner.SetProtectedPaths([]string{root})
	_, err := cleaner.CleanupDirectory(context.Background(), root)
	if !errors.Is(err, safety.ErrProtectedPath) {
		t.Fatalf("Expected ErrProtectedPath, got %v", err)
	}
	if !exists(filepath.Join(root, "a.mp3")) {
		t.Error("Nothing under a protected root may be deleted")
	}
}

// TestCleanupPermissionDenied verifies a failed remove is reported and the sweep continues
func TestCleanupPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	open := filepath.Join(root, "open")
	mustWrite(t, filepath.Join(locked, "a.mp3"), "x")
	mustWrite(t, filepath.Join(locked, "a.flac"), "x")
	mustWrite(t, filepath.Join(open, "b.mp3"), "x")
	mustWrite(t, filepath.Join(open, "b.wav"), "x")

	if err := os.Chmod(locked, 0555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(locked, 0755)

	cleaner := cleanup.NewCleaner(fsops.NewOSFileSystem(), log.New(io.Discard, "", 0))
	_, err := cleaner.CleanupDirectory(context.Background(), root)
	if !errors.Is(err, cleanup.ErrFileDeletion) {
		t.Fatalf("Expected ErrFileDeletion, got %v", err)
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Errorf("Expected permission error cause, got %v", err)
	}
	if exists(filepath.Join(open, "b.mp3")) {
		t.Error("Expected open/b.mp3 to be deleted despite the earlier failure")
	}
	if !exists(filepath.Join(locked, "a.mp3")) {
		t.Error("locked/a.mp3 cannot have been deleted")
	}
}
