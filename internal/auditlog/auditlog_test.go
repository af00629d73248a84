package auditlog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewRejectsInvalidLevel(t *testing.T) {
	dir := t.TempDir()
	_, err := New(Config{
		Path:         filepath.Join(dir, "audit.log"),
		Level:        "BANANA",
		MaxSizeBytes: 1024,
		MaxBackups:   3,
	})
	if err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestNewRejectsNonPositiveRotationSettings(t *testing.T) {
	dir := t.TempDir()
	if _, err := New(Config{Path: filepath.Join(dir, "audit.log"), Level: Info, MaxSizeBytes: 0, MaxBackups: 3}); err == nil {
		t.Fatal("expected error for zero MaxSizeBytes")
	}
	if _, err := New(Config{Path: filepath.Join(dir, "audit.log"), Level: Info, MaxSizeBytes: 1024, MaxBackups: 0}); err == nil {
		t.Fatal("expected error for zero MaxBackups")
	}
}

func TestNewHardensPermissions(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "sub", "audit.log")
	al, err := New(Config{Path: logPath, Level: Info, MaxSizeBytes: 1 << 20, MaxBackups: 5})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	info, err := os.Stat(filepath.Dir(logPath))
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		t.Errorf("directory perm = %o, want 0700", perm)
	}

	finfo, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("stat file: %v", err)
	}
	if perm := finfo.Mode().Perm(); perm != 0o600 {
		t.Errorf("file perm = %o, want 0600", perm)
	}

	if err := al.Emit(Info, EventFlowLoad, map[string]interface{}{"path": "flow.json"}); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
}

func TestEmitRejectsInvalidLevel(t *testing.T) {
	dir := t.TempDir()
	al, err := New(Config{Path: filepath.Join(dir, "audit.log"), Level: Info, MaxSizeBytes: 1024, MaxBackups: 3})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := al.Emit("NOPE", EventStepStart, nil); err == nil {
		t.Fatal("expected error for invalid emit level")
	}
}
