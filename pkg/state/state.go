// Package state holds the in-memory, append-only turn history for a
// single run and produces the bounded, truncated aggregated context the
// orchestrator threads into each step's template.
package state

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Role distinguishes a human prompt from an assistant (step) output.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in the append-only conversation history. Immutable
// once appended.
type Turn struct {
	AgentName string
	Role      Role
	Content   string
	RoleDesc  string
}

// truncationMarker replaces the dropped prefix when full_context() must
// truncate to fit max_context_chars.
const truncationMarker = "[... earlier context truncated ...]\n"

// State is the ordered turn history for a single run. It is
// single-threaded by contract: the orchestrator is the sole writer, so
// the mutex here guards only against accidental concurrent reads from a
// UI collaborator rendering a transcript snapshot mid-run.
type State struct {
	mu              sync.RWMutex
	runID           string
	turns           []Turn
	maxContextChars int
	steps           map[string]string
	stepOrder       []string
}

// New creates an empty State for a new run.
func New(maxContextChars int) *State {
	return &State{
		runID:           uuid.NewString(),
		maxContextChars: maxContextChars,
		steps:           make(map[string]string),
	}
}

// RunID returns the unique identifier of this run, used to correlate
// audit events and any externally persisted run history.
func (s *State) RunID() string {
	return s.runID
}

// AddTurn appends a new turn in strict temporal order.
func (s *State) AddTurn(agentName string, role Role, content, roleDesc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{
		AgentName: agentName,
		Role:      role,
		Content:   content,
		RoleDesc:  roleDesc,
	})
}

// Turns returns a copy of the turn history in order.
func (s *State) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// FullContext returns the aggregated text of every turn, labeled by
// role/name, truncated from the front to max_context_chars with an
// explicit marker inserted at the cut point. The retained portion is
// always the newest suffix.
func (s *State) FullContext() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	for _, t := range s.turns {
		label := string(t.Role)
		if t.RoleDesc != "" {
			label = fmt.Sprintf("%s (%s)", t.AgentName, t.RoleDesc)
		}
		fmt.Fprintf(&b, "[%s] %s\n\n", label, t.Content)
	}
	full := b.String()

	if s.maxContextChars <= 0 || len(full) <= s.maxContextChars {
		return full
	}

	keep := s.maxContextChars - len(truncationMarker)
	if keep < 0 {
		keep = 0
	}
	suffix := full[len(full)-keep:]
	return truncationMarker + suffix
}

// SetStepOutput records step's output under its key. A later step may
// only reference keys recorded here for strictly earlier steps; that
// constraint is enforced at flow-parse time, not here.
func (s *State) SetStepOutput(key, output string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.steps[key]; !exists {
		s.stepOrder = append(s.stepOrder, key)
	}
	s.steps[key] = output
}

// StepOutput returns the recorded output for key, if any.
func (s *State) StepOutput(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.steps[key]
	return v, ok
}

// LastOutput returns the most recently recorded step output, or "" if
// no step has completed yet.
func (s *State) LastOutput() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.stepOrder) == 0 {
		return ""
	}
	return s.steps[s.stepOrder[len(s.stepOrder)-1]]
}
