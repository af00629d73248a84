package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/juniormartinxo/council/internal/auditlog"
	"github.com/juniormartinxo/council/internal/config"
	"github.com/juniormartinxo/council/internal/limits"
	"github.com/juniormartinxo/council/internal/signature"
	"github.com/juniormartinxo/council/pkg/flow"
)

// councilHome resolves <COUNCIL_HOME>, falling back to the OS-default
// data directory when the env var is unset.
func councilHome() string {
	return config.DefaultDataDir()
}

// trustStoreDir resolves TRUSTED_FLOW_KEYS_DIR, falling back to
// <home>/trusted_flow_keys.
func trustStoreDir(home string) string {
	if dir := os.Getenv("TRUSTED_FLOW_KEYS_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(home, "trusted_flow_keys")
}

// boolEnv parses a loosely typed boolean env var, accepting
// 1/0/true/false/yes/no/on/off (case-insensitive). An unset or empty
// value returns def; any other value is a fail-fast error.
func boolEnv(name string, def bool) (bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return def, nil
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s=%q is not a valid boolean", name, raw)
	}
}

func positiveInt64Env(name string, def int64) (int64, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", name, raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s=%d must be positive", name, v)
	}
	return v, nil
}

func positiveIntEnv(name string, def int) (int, error) {
	v, err := positiveInt64Env(name, int64(def))
	return int(v), err
}

func logLevelEnv(name string, def auditlog.Level) (auditlog.Level, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return def, nil
	}
	lvl := auditlog.Level(strings.ToUpper(raw))
	switch lvl {
	case auditlog.Debug, auditlog.Info, auditlog.Warning, auditlog.Error, auditlog.Critical:
		return lvl, nil
	default:
		return "", fmt.Errorf("%s=%q is not a valid log level", name, raw)
	}
}

// bootstrap wires the components every core CLI command needs directly
// from environment variables (spec §6). It never touches the TOML
// service config in internal/config beyond DefaultDataDir: that surface
// is reserved for `council daemon`.
type bootstrap struct {
	home       string
	limits     limits.Limits
	trustStore *signature.TrustStore
	audit      *auditlog.AuditLog
	requireSig bool
}

func newBootstrap() (*bootstrap, error) {
	home := councilHome()
	if err := os.MkdirAll(home, 0o700); err != nil {
		return nil, fmt.Errorf("create council home %s: %w", home, err)
	}

	lim, err := limits.Load()
	if err != nil {
		return nil, err
	}

	store, err := signature.NewTrustStore(trustStoreDir(home))
	if err != nil {
		return nil, err
	}

	requireSig, err := boolEnv("REQUIRE_FLOW_SIGNATURE", false)
	if err != nil {
		return nil, err
	}

	level, err := logLevelEnv("LOG_LEVEL", auditlog.Info)
	if err != nil {
		return nil, err
	}
	maxBytes, err := positiveInt64Env("LOG_MAX_BYTES", 50*1024*1024)
	if err != nil {
		return nil, err
	}
	maxBackups, err := positiveIntEnv("LOG_BACKUP_COUNT", 5)
	if err != nil {
		return nil, err
	}

	audit, err := auditlog.New(auditlog.Config{
		Path:         filepath.Join(home, "council.log"),
		Level:        level,
		MaxSizeBytes: maxBytes,
		MaxBackups:   maxBackups,
	})
	if err != nil {
		return nil, err
	}

	return &bootstrap{
		home:       home,
		limits:     lim,
		trustStore: store,
		audit:      audit,
		requireSig: requireSig,
	}, nil
}

// flowOptions builds flow.Options for explicitPath, wiring strict
// signature verification per REQUIRE_FLOW_SIGNATURE.
func (b *bootstrap) flowOptions(explicitPath string) flow.Options {
	return flow.Options{
		ExplicitPath: explicitPath,
		Signature: flow.SignatureOptions{
			Strict:     b.requireSig,
			TrustStore: b.trustStore,
		},
	}
}

func (b *bootstrap) spoolDir() string {
	return filepath.Join(b.home, "spool")
}
