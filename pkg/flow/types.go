// Package flow parses and validates the flow configuration: the ordered
// list of steps that the orchestrator drives, each binding a role to an
// external LLM CLI command.
package flow

import "fmt"

// Reserved placeholder names that a step's key must never collide with.
var Reserved = map[string]bool{
	"user_prompt":  true,
	"full_context": true,
	"last_output":  true,
	"instruction":  true,
}

const (
	DefaultInputTemplate    = "{instruction}\n\n{full_context}"
	DefaultTimeoutSeconds   = 120
	DefaultMaxInputChars    = 0 // 0 means "inherit global limit"
	DefaultMaxOutputChars   = 0
	DefaultMaxContextChars  = 0
)

// Step is one unit of execution: a role bound to an external command.
// Immutable once returned by Load/Parse.
type Step struct {
	Key             string
	AgentName       string
	RoleDesc        string
	Command         string
	Instruction     string
	InputTemplate   string
	Style           string
	IsCode          bool
	Enabled         bool
	TimeoutSeconds  int
	MaxInputChars   int
	MaxOutputChars  int
	MaxContextChars int
}

// Flow is the ordered, fully-validated step list produced by Load/Parse.
type Flow struct {
	Steps []Step
	// Implicit is true when the flow path came from FLOW_CONFIG or
	// ./flow.json rather than being given explicitly; the CLI
	// front-end must require confirmation before executing it. A flow
	// from <home>/flow.json or the built-in default is not implicit.
	Implicit bool
	// Source describes where the flow was loaded from, for audit
	// logging and the "implicit" confirmation prompt.
	Source string
}

// ConfigError is returned for any flow parsing or validation failure.
// It is never recovered from mid-run: a ConfigError aborts startup.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}
