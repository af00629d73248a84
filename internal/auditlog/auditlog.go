// Package auditlog implements the fail-fast, append-only, newline-delimited
// JSON audit event sink. It is built on the same arbor logging stack the
// rest of the service uses, configured as a dedicated file writer so audit
// events never interleave with application logs.
package auditlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// Level is one of the five audit severities. Unlike the general-purpose
// application logger, the audit log's level set is fixed by the wire
// contract and is validated independently of arbor's own level parsing.
type Level string

const (
	Debug    Level = "DEBUG"
	Info     Level = "INFO"
	Warning  Level = "WARNING"
	Error    Level = "ERROR"
	Critical Level = "CRITICAL"
)

var validLevels = map[Level]bool{
	Debug: true, Info: true, Warning: true, Error: true, Critical: true,
}

// Stable event identifiers emitted across the orchestration pipeline.
const (
	EventFlowLoad          = "flow-load"
	EventStepStart         = "step-start"
	EventStepEnd           = "step-end"
	EventStepError         = "step-error"
	EventStepSkipped       = "step-skipped"
	EventCommandStart      = "command-start"
	EventCommandSuccess    = "command-success"
	EventCommandFailure    = "command-failure"
	EventCommandTimeout    = "command-timeout"
	EventCommandAbort      = "command-abort"
	EventDoctorInvoked     = "doctor-invoked"
	EventSignatureVerified = "signature-verified"
	EventSignatureMissing  = "signature-missing"
	EventFlowWatchReload   = "flow-watch-reload"
	EventMCPToolInvoked    = "mcp-tool-invoked"
)

// Config controls audit-log initialization. Every field is validated
// eagerly: an invalid level string, a non-positive rotation size, or a
// non-positive backup count aborts process startup rather than falling
// back to a default.
type Config struct {
	Path         string // audit log file path
	Level        Level
	MaxSizeBytes int64
	MaxBackups   int
}

// AuditLog is the structured, append-only event sink. Writes are
// serialized through a single mutex so concurrent emitters never
// interleave partial lines.
type AuditLog struct {
	mu     sync.Mutex
	logger arbor.ILogger
	level  Level
	path   string
}

// New validates cfg and opens the audit log. Directory and file
// permissions are hardened to owner-only (0700/0600) on every open,
// which also repairs permission drift left by a previous process or a
// careless operator.
func New(cfg Config) (*AuditLog, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("auditlog: path must not be empty")
	}
	if !validLevels[cfg.Level] {
		return nil, fmt.Errorf("auditlog: invalid level %q (want one of DEBUG, INFO, WARNING, ERROR, CRITICAL)", cfg.Level)
	}
	if cfg.MaxSizeBytes <= 0 {
		return nil, fmt.Errorf("auditlog: max size bytes must be positive, got %d", cfg.MaxSizeBytes)
	}
	if cfg.MaxBackups <= 0 {
		return nil, fmt.Errorf("auditlog: max backups must be positive, got %d", cfg.MaxBackups)
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("auditlog: create directory %s: %w", dir, err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		return nil, fmt.Errorf("auditlog: harden directory %s: %w", dir, err)
	}

	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("auditlog: open %s: %w", cfg.Path, err)
	}
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return nil, fmt.Errorf("auditlog: harden %s: %w", cfg.Path, err)
	}
	f.Close()

	logger := arbor.NewLogger().WithFileWriter(models.WriterConfiguration{
		Type:             models.LogWriterTypeFile,
		FileName:         cfg.Path,
		OutputType:       models.OutputFormatJSON,
		DisableTimestamp: true, // timestamp_utc is carried explicitly in the event payload
		MaxSize:          cfg.MaxSizeBytes,
		MaxBackups:       cfg.MaxBackups,
	})
	logger = logger.WithLevelFromString(string(levelToArbor(cfg.Level)))

	return &AuditLog{logger: logger, level: cfg.Level, path: cfg.Path}, nil
}

// levelToArbor maps the audit wire-level onto the names arbor's
// WithLevelFromString understands.
func levelToArbor(l Level) Level {
	if l == Warning {
		return "WARN"
	}
	return l
}

// Emit writes one newline-delimited JSON audit event.
func (a *AuditLog) Emit(level Level, event string, data map[string]interface{}) error {
	if !validLevels[level] {
		return fmt.Errorf("auditlog: invalid level %q", level)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	payload := map[string]interface{}{
		"timestamp_utc": time.Now().UTC().Format(time.RFC3339Nano),
		"level":         string(level),
		"event":         event,
		"data":          data,
	}
	line, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("auditlog: marshal event %s: %w", event, err)
	}

	entry := a.entryForLevel(level)
	entry.Msg(string(line))
	return nil
}

func (a *AuditLog) entryForLevel(level Level) arbor.ILoggerEntry {
	switch level {
	case Debug:
		return a.logger.Debug()
	case Warning:
		return a.logger.Warn()
	case Error, Critical:
		// arbor's Fatal() terminates the process, which is wrong for an
		// audit record; CRITICAL events log at Error and carry their
		// real severity in the payload's "level" field instead.
		return a.logger.Error()
	default:
		return a.logger.Info()
	}
}

// Path returns the configured audit log file path.
func (a *AuditLog) Path() string {
	return a.path
}
