package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"audio-dedupe/internal/safety"
)

func TestDecodeAppliesDefaults(t *testing.T) {
	cfg, err := decode(strings.NewReader("roots: [/srv/music]\n"))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.DatabasePath != DefaultDatabasePath() {
		t.Errorf("Expected default database path, got %q", cfg.DatabasePath)
	}
	if cfg.LockPath != DefaultLockPath() {
		t.Errorf("Expected default lock path, got %q", cfg.LockPath)
	}
	if cfg.Logging.RotationDays != 30 {
		t.Errorf("Expected 30 rotation days, got %d", cfg.Logging.RotationDays)
	}
	if cfg.NFSTimeoutDuration() != 5*time.Second {
		t.Errorf("Expected 5s NFS timeout, got %v", cfg.NFSTimeoutDuration())
	}
	if cfg.Interval() != 0 {
		t.Errorf("Expected single-run interval, got %v", cfg.Interval())
	}
	if cfg.DryRun {
		t.Error("Dry run must default to false")
	}
}

func TestDecodeFullFile(t *testing.T) {
	yml := `
roots:
  - /srv/music/
  - /srv/music
  - /data/rips/../rips
dry_run: true
interval_minutes: 60
database_path: ""
lock_path: /run/audio-dedupe.lock
protected_paths: [/srv/music/masters]
nfs_timeout_seconds: 2
prometheus:
  port: 9101
logging:
  dir: /var/log/audio-dedupe
  rotation_days: 7
`
	cfg, err := decode(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	wantRoots := []string{"/srv/music", "/data/rips"}
	if len(cfg.Roots) != len(wantRoots) {
		t.Fatalf("Expected roots %v, got %v", wantRoots, cfg.Roots)
	}
	for i := range wantRoots {
		if cfg.Roots[i] != wantRoots[i] {
			t.Errorf("Root %d = %q, expected %q", i, cfg.Roots[i], wantRoots[i])
		}
	}
	if !cfg.DryRun {
		t.Error("Expected dry_run true")
	}
	if cfg.DatabasePath != "" {
		t.Errorf("Explicitly empty database path must disable history, got %q", cfg.DatabasePath)
	}
	if cfg.Interval() != time.Hour {
		t.Errorf("Expected 1h interval, got %v", cfg.Interval())
	}
	if cfg.PrometheusAddress() != ":9101" {
		t.Errorf("Unexpected prometheus address %q", cfg.PrometheusAddress())
	}
	if cfg.Logging.Dir != "/var/log/audio-dedupe" || cfg.Logging.RotationDays != 7 {
		t.Errorf("Unexpected logging config %+v", cfg.Logging)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"no roots", Config{}, errNoRoots},
		{"relative root", Config{Roots: []string{"music"}}, errInvalidPath},
		{"empty root", Config{Roots: []string{""}}, errInvalidPath},
		{"negative interval", Config{Roots: []string{"/m"}, IntervalMinutes: -1}, errNegativeInterval},
		{"bad port", Config{Roots: []string{"/m"}, Prometheus: PrometheusCfg{Port: 70000}}, errInvalidPort},
		{"relative protected", Config{Roots: []string{"/m"}, ProtectedPaths: []string{"x"}}, errInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, expected %v", err, tt.want)
			}
		})
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := decode(strings.NewReader("roots: [/m]\nlossy_extensions: [.ogg]\n"))
	if err == nil {
		t.Error("Expected unknown field to be rejected")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("roots: [/srv/music]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Roots) != 1 || cfg.Roots[0] != "/srv/music" {
		t.Errorf("Unexpected roots %v", cfg.Roots)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestReadDoesNotValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("dry_run: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !cfg.DryRun {
		t.Error("Expected dry_run from file")
	}
	if cfg.DatabasePath != DefaultDatabasePath() {
		t.Errorf("Expected default database path, got %q", cfg.DatabasePath)
	}
	if err := cfg.Validate(); !errors.Is(err, errNoRoots) {
		t.Errorf("Expected errNoRoots once validated, got %v", err)
	}
}

func TestStateDirFollowsXDG(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	want := filepath.Join(state, "audio-dedupe")
	if got := StateDir(); got != want {
		t.Errorf("StateDir() = %q, expected %q", got, want)
	}
	cfg := Default()
	if cfg.DatabasePath != filepath.Join(want, "history.db") {
		t.Errorf("Unexpected default database path %q", cfg.DatabasePath)
	}
	if cfg.LockPath != filepath.Join(want, "audio-dedupe.lock") {
		t.Errorf("Unexpected default lock path %q", cfg.LockPath)
	}
}

func TestStateDirForUnprivilegedUser(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root uses the system state directory")
	}
	home := t.TempDir()
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", home)

	if got, want := StateDir(), filepath.Join(home, ".local", "state", "audio-dedupe"); got != want {
		t.Errorf("StateDir() = %q, expected %q", got, want)
	}
}

func TestValidateRejectsProtectedRoot(t *testing.T) {
	tests := []struct {
		name      string
		roots     []string
		protected []string
	}{
		{"system prefix", []string{"/usr/share/music"}, nil},
		{"filesystem root", []string{"/"}, nil},
		{"configured protection", []string{"/srv/music/keep"}, []string{"/srv/music/keep"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Roots = tt.roots
			cfg.ProtectedPaths = tt.protected
			if err := cfg.Validate(); !errors.Is(err, safety.ErrProtectedPath) {
				t.Errorf("Expected ErrProtectedPath, got %v", err)
			}
		})
	}

	cfg := Default()
	cfg.Roots = []string{"/srv/music"}
	cfg.ProtectedPaths = []string{"/srv/music/keep"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Protecting a subdirectory of a root must be allowed: %v", err)
	}
}
