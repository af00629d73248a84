package limits

import "testing"

func TestLoadDefaults(t *testing.T) {
	l, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if l.MaxContextChars != DefaultMaxContextChars {
		t.Errorf("MaxContextChars = %d, want %d", l.MaxContextChars, DefaultMaxContextChars)
	}
	if l.MaxInputChars != DefaultMaxInputChars {
		t.Errorf("MaxInputChars = %d, want %d", l.MaxInputChars, DefaultMaxInputChars)
	}
	if l.MaxOutputChars != DefaultMaxOutputChars {
		t.Errorf("MaxOutputChars = %d, want %d", l.MaxOutputChars, DefaultMaxOutputChars)
	}
}

func TestLoadOverride(t *testing.T) {
	t.Setenv("MAX_CONTEXT_CHARS", "500")
	l, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if l.MaxContextChars != 500 {
		t.Errorf("MaxContextChars = %d, want 500", l.MaxContextChars)
	}
}

func TestLoadNonNumericFailsFast(t *testing.T) {
	t.Setenv("MAX_OUTPUT_CHARS", "BANANA")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric MAX_OUTPUT_CHARS")
	}
}

func TestLoadNonPositiveFailsFast(t *testing.T) {
	t.Setenv("MAX_INPUT_CHARS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero MAX_INPUT_CHARS")
	}
	t.Setenv("MAX_INPUT_CHARS", "-5")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative MAX_INPUT_CHARS")
	}
}
