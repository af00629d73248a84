package executor

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunCLIStdinDelivery(t *testing.T) {
	e := New(t.TempDir(), nil)
	var chunks strings.Builder
	out, err := e.RunCLI(context.Background(), "cat", "hello world", 5*time.Second, func(c string) {
		chunks.WriteString(c)
	}, 1000, 1000)
	if err != nil {
		t.Fatalf("RunCLI() error = %v", err)
	}
	if out != "hello world" {
		t.Errorf("out = %q, want %q", out, "hello world")
	}
	if chunks.String() != out {
		t.Errorf("streamed chunks %q did not equal returned output %q", chunks.String(), out)
	}
}

func TestRunCLIArgvInputPlaceholder(t *testing.T) {
	e := New(t.TempDir(), nil)
	out, err := e.RunCLI(context.Background(), "echo {input}", "abc", 5*time.Second, func(string) {}, 1000, 1000)
	if err != nil {
		t.Fatalf("RunCLI() error = %v", err)
	}
	if !strings.Contains(out, argvStartMarker) || !strings.Contains(out, argvEndMarker) {
		t.Errorf("expected argv payload wrapped with delimiters, got %q", out)
	}
	if !strings.Contains(out, "abc") {
		t.Errorf("expected payload to contain input, got %q", out)
	}
}

func TestRunCLIGeminiPromptFlagAppendsPayload(t *testing.T) {
	argv, viaArgv := buildArgv([]string{"gemini", "-p"}, "abc")
	if !viaArgv {
		t.Fatal("expected argv delivery for bare 'gemini -p'")
	}
	want := []string{"gemini", "-p", wrapArgvPayload("abc")}
	if len(argv) != len(want) || argv[2] != want[2] {
		t.Errorf("buildArgv() = %v, want %v", argv, want)
	}
}

func TestRunCLITimeout(t *testing.T) {
	e := New(t.TempDir(), nil)
	_, err := e.RunCLI(context.Background(), "sleep 5", "", 200*time.Millisecond, func(string) {}, 1000, 1000)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	re, ok := err.(*RunError)
	if !ok || re.Kind != KindTimeout {
		t.Errorf("err = %v, want KindTimeout", err)
	}
}

func TestRunCLICommandError(t *testing.T) {
	e := New(t.TempDir(), nil)
	_, err := e.RunCLI(context.Background(), "false", "", 5*time.Second, func(string) {}, 1000, 1000)
	if err == nil {
		t.Fatal("expected command error")
	}
	re, ok := err.(*RunError)
	if !ok || re.Kind != KindCommandError {
		t.Errorf("err = %v, want KindCommandError", err)
	}
}

func TestRunCLIInputTooLarge(t *testing.T) {
	e := New(t.TempDir(), nil)
	_, err := e.RunCLI(context.Background(), "cat", "this is way too long", 5*time.Second, func(string) {}, 5, 1000)
	if err == nil {
		t.Fatal("expected InputTooLarge error")
	}
	re, ok := err.(*RunError)
	if !ok || re.Kind != KindInputTooLarge {
		t.Errorf("err = %v, want KindInputTooLarge", err)
	}
}

func TestRunCLICancellation(t *testing.T) {
	e := New(t.TempDir(), nil)
	go func() {
		time.Sleep(100 * time.Millisecond)
		e.RequestCancel()
	}()
	_, err := e.RunCLI(context.Background(), "sleep 5", "", 10*time.Second, func(string) {}, 1000, 1000)
	if err == nil {
		t.Fatal("expected aborted error")
	}
	re, ok := err.(*RunError)
	if !ok || re.Kind != KindAborted {
		t.Errorf("err = %v, want KindAborted", err)
	}
}

func TestRunCLICancellationResetBetweenRuns(t *testing.T) {
	e := New(t.TempDir(), nil)
	e.RequestCancel()

	// A stale flag from before RunCLI was called must not poison this
	// run: RunCLI clears it at entry, before the cancellation poller
	// starts, so a fast command with no further cancellation completes.
	out, err := e.RunCLI(context.Background(), "echo {input}", "ok", 5*time.Second, func(string) {}, 1000, 1000)
	if err != nil {
		t.Fatalf("RunCLI() after reset error = %v", err)
	}
	if !strings.Contains(out, "ok") {
		t.Errorf("unexpected output %q", out)
	}
}
