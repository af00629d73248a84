package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunDoctor_ReportsInvalidFlow(t *testing.T) {
	home := t.TempDir()
	t.Setenv("COUNCIL_HOME", home)
	t.Setenv("TRUSTED_FLOW_KEYS_DIR", "")
	t.Setenv("REQUIRE_FLOW_SIGNATURE", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_MAX_BYTES", "")
	t.Setenv("LOG_BACKUP_COUNT", "")
	t.Setenv("MAX_CONTEXT_CHARS", "")
	t.Setenv("MAX_INPUT_CHARS", "")
	t.Setenv("MAX_OUTPUT_CHARS", "")

	flowPath := filepath.Join(home, "bad-flow.json")
	require.NoError(t, os.WriteFile(flowPath, []byte(`{"steps":[{"agent_name":"claude"}]}`), 0o644))

	err := runDoctor(flowPath)
	require.Error(t, err, "a step missing role_desc/command/instruction must fail validation")
}

func TestRunDoctor_FlagsMissingBinary(t *testing.T) {
	home := t.TempDir()
	t.Setenv("COUNCIL_HOME", home)
	t.Setenv("TRUSTED_FLOW_KEYS_DIR", "")
	t.Setenv("REQUIRE_FLOW_SIGNATURE", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_MAX_BYTES", "")
	t.Setenv("LOG_BACKUP_COUNT", "")
	t.Setenv("MAX_CONTEXT_CHARS", "")
	t.Setenv("MAX_INPUT_CHARS", "")
	t.Setenv("MAX_OUTPUT_CHARS", "")

	flowJSON := `{"steps":[{
		"key": "respond",
		"agent_name": "claude",
		"role_desc": "assistant",
		"command": "claude -p",
		"instruction": "Respond helpfully."
	}]}`
	flowPath := filepath.Join(home, "flow.json")
	require.NoError(t, os.WriteFile(flowPath, []byte(flowJSON), 0o644))

	err := runDoctor(flowPath)
	// The sandboxed test environment has no "claude" binary on PATH, so
	// doctor must report the missing binary as a non-nil error rather
	// than silently succeeding.
	require.Error(t, err)
}
