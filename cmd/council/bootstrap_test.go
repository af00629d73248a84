package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juniormartinxo/council/internal/auditlog"
)

func TestBoolEnv_DefaultsWhenUnset(t *testing.T) {
	t.Setenv("COUNCIL_TEST_BOOL", "")

	v, err := boolEnv("COUNCIL_TEST_BOOL", true)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestBoolEnv_AcceptsKnownVariants(t *testing.T) {
	cases := map[string]bool{
		"1": true, "true": true, "TRUE": true, "yes": true, "on": true,
		"0": false, "false": false, "no": false, "off": false,
	}
	for raw, want := range cases {
		t.Setenv("COUNCIL_TEST_BOOL", raw)
		v, err := boolEnv("COUNCIL_TEST_BOOL", !want)
		require.NoError(t, err, "raw=%q", raw)
		assert.Equal(t, want, v, "raw=%q", raw)
	}
}

func TestBoolEnv_RejectsInvalidValue(t *testing.T) {
	t.Setenv("COUNCIL_TEST_BOOL", "maybe")
	_, err := boolEnv("COUNCIL_TEST_BOOL", false)
	require.Error(t, err)
}

func TestPositiveInt64Env_DefaultsWhenUnset(t *testing.T) {
	t.Setenv("COUNCIL_TEST_INT", "")
	v, err := positiveInt64Env("COUNCIL_TEST_INT", 42)
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)
}

func TestPositiveInt64Env_RejectsNonPositive(t *testing.T) {
	t.Setenv("COUNCIL_TEST_INT", "0")
	_, err := positiveInt64Env("COUNCIL_TEST_INT", 1)
	require.Error(t, err)
}

func TestPositiveInt64Env_RejectsNonNumeric(t *testing.T) {
	t.Setenv("COUNCIL_TEST_INT", "abc")
	_, err := positiveInt64Env("COUNCIL_TEST_INT", 1)
	require.Error(t, err)
}

func TestLogLevelEnv_AcceptsKnownLevels(t *testing.T) {
	t.Setenv("COUNCIL_TEST_LEVEL", "warning")
	lvl, err := logLevelEnv("COUNCIL_TEST_LEVEL", auditlog.Info)
	require.NoError(t, err)
	assert.Equal(t, auditlog.Warning, lvl)
}

func TestLogLevelEnv_RejectsUnknownLevel(t *testing.T) {
	t.Setenv("COUNCIL_TEST_LEVEL", "verbose")
	_, err := logLevelEnv("COUNCIL_TEST_LEVEL", auditlog.Info)
	require.Error(t, err)
}

func TestTrustStoreDir_DefaultsUnderHome(t *testing.T) {
	t.Setenv("TRUSTED_FLOW_KEYS_DIR", "")
	dir := trustStoreDir("/tmp/council-home")
	assert.Equal(t, "/tmp/council-home/trusted_flow_keys", dir)
}

func TestTrustStoreDir_HonorsOverride(t *testing.T) {
	t.Setenv("TRUSTED_FLOW_KEYS_DIR", "/tmp/custom-trust")
	dir := trustStoreDir("/tmp/council-home")
	assert.Equal(t, "/tmp/custom-trust", dir)
}
