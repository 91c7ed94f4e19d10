package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"audio-dedupe/internal/database"
	"audio-dedupe/internal/scan"
)

func seedHistory(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := database.NewDeletionDB(path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	now := time.Now()
	run := database.RunRecord{ID: "run-1", Root: "/srv/music", StartedAt: now}
	if err := db.StartRun(run); err != nil {
		t.Fatal(err)
	}
	cand := scan.Candidate{
		Path: "/srv/music/a/song.mp3",
		Size: 4 << 20,
		Ext:  ".mp3",
		Reason: scan.MatchReason{
			Key:          "/srv/music/a/song",
			Counterparts: []string{"/srv/music/a/song.flac"},
			EvaluatedAt:  now,
		},
	}
	if err := db.RecordDeletion("run-1", database.ActionDelete, cand, ""); err != nil {
		t.Fatal(err)
	}
	run.FinishedAt = now
	run.Candidates = 1
	run.Deleted = 1
	run.BytesFreed = cand.Size
	run.Status = database.StatusOK
	if err := db.FinishRun(run); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestRecentTable(t *testing.T) {
	db := seedHistory(t)
	out := execute(t, "--db", db, "recent", "5")
	for _, want := range []string{"/srv/music/a/song.mp3", "DELETE", "4.0 MiB", "/srv/music/a/song.flac"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestRunsJSON(t *testing.T) {
	db := seedHistory(t)
	out := execute(t, "--db", db, "--json", "runs")

	var runs []database.RunRecord
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("Invalid JSON: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" || runs[0].Deleted != 1 {
		t.Errorf("Unexpected runs: %+v", runs)
	}
}

func TestRunDetail(t *testing.T) {
	db := seedHistory(t)
	out := execute(t, "--db", db, "run", "run-1")
	if !strings.Contains(out, "run-1") || !strings.Contains(out, "song.mp3") {
		t.Errorf("Expected run and its actions in output:\n%s", out)
	}
}

func TestRunNotFound(t *testing.T) {
	db := seedHistory(t)
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", db, "run", "missing"})
	if err := cmd.Execute(); err == nil {
		t.Error("Expected error for unknown run")
	}
}

func TestStatsAndFilters(t *testing.T) {
	db := seedHistory(t)

	out := execute(t, "--db", db, "stats", "--days", "7")
	if !strings.Contains(out, "Space freed") || !strings.Contains(out, "MP3") {
		t.Errorf("Unexpected stats output:\n%s", out)
	}

	out = execute(t, "--db", db, "action", "delete")
	if !strings.Contains(out, "song.mp3") {
		t.Errorf("Expected lowercase action to match DELETE:\n%s", out)
	}

	out = execute(t, "--db", db, "path", "/nowhere/%")
	if !strings.Contains(out, "No records found") {
		t.Errorf("Expected no records:\n%s", out)
	}
}

func TestPrune(t *testing.T) {
	db := seedHistory(t)
	out := execute(t, "--db", db, "prune", "--days", "30")
	if !strings.Contains(out, "Removed 0 records") {
		t.Errorf("Recent history should survive prune:\n%s", out)
	}
}

func TestLimitArg(t *testing.T) {
	if n, err := limitArg(nil, 20); err != nil || n != 20 {
		t.Errorf("Expected default 20, got %d, %v", n, err)
	}
	if _, err := limitArg([]string{"-1"}, 20); err == nil {
		t.Error("Expected error for negative count")
	}
}
