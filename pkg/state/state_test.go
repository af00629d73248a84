package state

import (
	"strings"
	"testing"
)

func TestAddTurnAndTurns(t *testing.T) {
	s := New(1000)
	s.AddTurn("user", RoleHuman, "hello", "")
	s.AddTurn("claude", RoleAssistant, "hi there", "assistant")

	turns := s.Turns()
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if turns[0].Role != RoleHuman || turns[1].Role != RoleAssistant {
		t.Errorf("unexpected turn roles: %+v", turns)
	}
}

func TestFullContextTruncatesFromFront(t *testing.T) {
	s := New(100)
	for i := 0; i < 20; i++ {
		s.AddTurn("claude", RoleAssistant, strings.Repeat("x", 30), "assistant")
	}
	ctx := s.FullContext()
	if len(ctx) > 100 {
		t.Errorf("len(FullContext()) = %d, want <= 100", len(ctx))
	}
	if !strings.HasPrefix(ctx, truncationMarker) {
		t.Errorf("expected context to start with truncation marker, got %q", ctx[:min(40, len(ctx))])
	}
	if !strings.HasSuffix(strings.TrimRight(ctx, "\n"), "xxx") {
		t.Error("expected retained portion to be the newest suffix")
	}
}

func TestFullContextNoTruncationWhenUnderLimit(t *testing.T) {
	s := New(10000)
	s.AddTurn("user", RoleHuman, "short", "")
	ctx := s.FullContext()
	if strings.Contains(ctx, truncationMarker) {
		t.Error("did not expect truncation marker when under the limit")
	}
}

func TestStepOutputAndLastOutput(t *testing.T) {
	s := New(1000)
	if _, ok := s.StepOutput("plan"); ok {
		t.Fatal("expected no output before SetStepOutput")
	}
	s.SetStepOutput("plan", "P")
	s.SetStepOutput("exec", "E")

	v, ok := s.StepOutput("plan")
	if !ok || v != "P" {
		t.Errorf("StepOutput(plan) = (%q, %v), want (P, true)", v, ok)
	}
	if got := s.LastOutput(); got != "E" {
		t.Errorf("LastOutput() = %q, want E", got)
	}
}

func TestRunIDIsUnique(t *testing.T) {
	a := New(100).RunID()
	b := New(100).RunID()
	if a == b {
		t.Error("expected distinct run IDs")
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
