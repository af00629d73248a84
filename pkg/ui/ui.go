// Package ui defines the contract between the orchestration engine and
// its human-facing front-end. The front-end itself — the interactive
// terminal UI, its panels and key bindings — is an external
// collaborator out of scope for this module; only the interface it
// must satisfy lives here.
package ui

// CheckpointDecision is the human's choice at a step checkpoint.
type CheckpointDecision int

const (
	Continue CheckpointDecision = iota
	Adjust
	Abort
)

// Checkpoint is the result of asking the UI for a checkpoint decision.
// FollowUp is populated only when Decision is Adjust.
type Checkpoint struct {
	Decision CheckpointDecision
	FollowUp string
}

// Collaborator is the interface the orchestrator drives. Its methods
// are invoked from whichever goroutine is producing the event — the
// reader goroutine for OnStream, the orchestrator's own goroutine for
// the others — so implementations must be safe to call from any
// goroutine and must marshal to their own main/render thread as needed.
type Collaborator interface {
	// OnStream delivers one output chunk for stepKey. Non-blocking:
	// implementations must not perform slow work inline.
	OnStream(stepKey, chunk string)

	// OnStepFinal delivers a step's completed output once recorded.
	// Non-blocking.
	OnStepFinal(stepKey, content, style string, isCode bool)

	// AskCheckpoint blocks until the human has made a decision for
	// stepKey.
	AskCheckpoint(stepKey string) Checkpoint
}

// NullCollaborator is a Collaborator that renders nothing and always
// continues; useful for non-interactive runs (`run`, the MCP `run_flow`
// tool) and for
// tests that don't exercise checkpoint behavior.
type NullCollaborator struct{}

func (NullCollaborator) OnStream(string, string)                  {}
func (NullCollaborator) OnStepFinal(string, string, string, bool)  {}
func (NullCollaborator) AskCheckpoint(string) Checkpoint           { return Checkpoint{Decision: Continue} }
