// Package orchestrator drives the step-sequencing state machine: for
// each enabled FlowStep it builds template context from prior outputs,
// invokes the executor, records turns, and queries the UI collaborator
// for a human checkpoint decision before advancing.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/juniormartinxo/council/internal/auditlog"
	"github.com/juniormartinxo/council/pkg/executor"
	"github.com/juniormartinxo/council/pkg/flow"
	"github.com/juniormartinxo/council/pkg/state"
	"github.com/juniormartinxo/council/pkg/ui"
)

// Executor is the subset of *executor.Executor the orchestrator depends
// on, kept as an interface so tests can substitute a stub child process.
type Executor interface {
	RunCLI(ctx context.Context, command string, inputData string, timeout time.Duration, onOutput executor.OnOutput, maxInputChars, maxOutputChars int) (string, error)
}

const (
	wrapStart      = "===DADOS_DO_AGENTE_ANTERIOR==="
	wrapEnd        = "===FIM_DADOS_DO_AGENTE_ANTERIOR==="
	respostaHeader = "RESPOSTA ANTERIOR"
)

var fencedCodeBlockRe = regexp.MustCompile("(?s)```[^\n]*\n(.*?)```")

// nonPrintableASCII strips anything outside the printable ASCII range from
// a wrap label, since the label is concatenated directly into a child
// process's argv/stdin payload.
var nonPrintableASCII = regexp.MustCompile(`[^\x20-\x7E]`)

// SafetyBlockError is returned when is_code=true and the child's output
// contains no fenced code block. The raw output must never reach State.
type SafetyBlockError struct {
	StepKey string
}

func (e *SafetyBlockError) Error() string {
	return fmt.Sprintf("orchestrator: step %q produced no fenced code block (is_code=true)", e.StepKey)
}

// AbortedByUserError is returned when the checkpoint decision is Abort.
type AbortedByUserError struct {
	StepKey string
}

func (e *AbortedByUserError) Error() string {
	return fmt.Sprintf("orchestrator: run aborted at checkpoint for step %q", e.StepKey)
}

// AuditSink is the subset of auditlog.AuditLog the orchestrator depends on.
type AuditSink interface {
	Emit(level auditlog.Level, event string, data map[string]interface{}) error
}

// Orchestrator drives a single run_flow invocation.
type Orchestrator struct {
	flow   *flow.Flow
	state  *state.State
	exec   Executor
	ui     ui.Collaborator
	audit  AuditSink
	global GlobalLimits

	// MaxRetriesPerStep bounds the number of adjust-retries per step.
	// Zero means unlimited, matching the spec's default.
	MaxRetriesPerStep int
}

// GlobalLimits provides the fallback char caps a step inherits when it
// does not set its own.
type GlobalLimits struct {
	MaxInputChars  int
	MaxOutputChars int
}

// New builds an Orchestrator for a single run.
func New(f *flow.Flow, st *state.State, ex Executor, collab ui.Collaborator, audit AuditSink, global GlobalLimits) *Orchestrator {
	return &Orchestrator{flow: f, state: st, exec: ex, ui: collab, audit: audit, global: global}
}

// RunFlow executes every enabled step in order, stopping at the first
// failure or user abort.
func (o *Orchestrator) RunFlow(ctx context.Context, userPrompt string) error {
	o.state.AddTurn("user", state.RoleHuman, userPrompt, "")

	for _, step := range o.flow.Steps {
		if !step.Enabled {
			o.emit(auditlog.Info, auditlog.EventStepSkipped, map[string]interface{}{"step": step.Key})
			continue
		}
		if err := o.runStep(ctx, userPrompt, step); err != nil {
			o.emit(auditlog.Error, auditlog.EventStepError, map[string]interface{}{"step": step.Key, "error": err.Error()})
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runStep(ctx context.Context, userPrompt string, step flow.Step) error {
	rendered, err := o.render(userPrompt, step)
	if err != nil {
		return err
	}

	retries := 0
	for {
		o.emit(auditlog.Info, auditlog.EventStepStart, map[string]interface{}{"step": step.Key, "retry": retries})

		output, err := o.execute(ctx, step, rendered)
		if err != nil {
			return err
		}

		if step.IsCode {
			extracted, ok := extractFencedCode(output)
			if !ok {
				return &SafetyBlockError{StepKey: step.Key}
			}
			output = extracted
		}

		o.state.AddTurn(step.AgentName, state.RoleAssistant, output, step.RoleDesc)
		o.state.SetStepOutput(step.Key, output)
		o.ui.OnStepFinal(step.Key, output, step.Style, step.IsCode)
		o.emit(auditlog.Info, auditlog.EventStepEnd, map[string]interface{}{"step": step.Key})

		checkpoint := o.ui.AskCheckpoint(step.Key)
		switch checkpoint.Decision {
		case ui.Continue:
			return nil
		case ui.Abort:
			return &AbortedByUserError{StepKey: step.Key}
		case ui.Adjust:
			if o.MaxRetriesPerStep > 0 && retries >= o.MaxRetriesPerStep {
				return fmt.Errorf("orchestrator: step %q exceeded max retries (%d)", step.Key, o.MaxRetriesPerStep)
			}
			retries++
			o.state.AddTurn("user", state.RoleHuman, checkpoint.FollowUp, "")
			rendered = buildAdjustInput(output, checkpoint.FollowUp)
		}
	}
}

func (o *Orchestrator) execute(ctx context.Context, step flow.Step, rendered string) (string, error) {
	maxInput := step.MaxInputChars
	if maxInput <= 0 {
		maxInput = o.global.MaxInputChars
	}
	maxOutput := step.MaxOutputChars
	if maxOutput <= 0 {
		maxOutput = o.global.MaxOutputChars
	}
	timeout := time.Duration(step.TimeoutSeconds) * time.Second

	return o.exec.RunCLI(ctx, step.Command, rendered, timeout, func(chunk string) {
		o.ui.OnStream(step.Key, chunk)
	}, maxInput, maxOutput)
}

// render builds the template context for step and applies safe
// substitution over its input_template. Because placeholders were
// validated at parse time, a missing key here indicates a programming
// defect rather than a user-facing configuration error.
func (o *Orchestrator) render(userPrompt string, step flow.Step) (string, error) {
	ctx := map[string]string{
		"user_prompt":  userPrompt,
		"instruction":  step.Instruction,
		"full_context": wrap("full_context", o.state.FullContext()),
		"last_output":  wrap("last_output", o.state.LastOutput()),
	}
	for _, s := range o.flow.Steps {
		if s.Key == step.Key {
			break
		}
		if out, ok := o.state.StepOutput(s.Key); ok {
			ctx[s.Key] = wrap(s.Key, out)
		}
	}
	return renderTemplate(step.InputTemplate, ctx)
}

func (o *Orchestrator) emit(level auditlog.Level, event string, data map[string]interface{}) {
	if o.audit == nil {
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	data["run_id"] = o.state.RunID()
	o.audit.Emit(level, event, data)
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// renderTemplate performs safe {name} substitution. Unlike a generic
// format function, it fails loudly rather than leaving an unknown
// placeholder untouched.
func renderTemplate(tmpl string, ctx map[string]string) (string, error) {
	var missing error
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		v, ok := ctx[name]
		if !ok {
			missing = fmt.Errorf("orchestrator: template references undefined placeholder %q", name)
			return match
		}
		return v
	})
	if missing != nil {
		return "", missing
	}
	return out, nil
}

// wrap frames untrusted inter-agent data between the stable delimiter
// markers, preceded by a one-line source label sanitized to printable
// ASCII.
func wrap(label, content string) string {
	safeLabel := nonPrintableASCII.ReplaceAllString(label, "")
	return fmt.Sprintf("%s\n%s\n%s\n%s", safeLabel, wrapStart, content, wrapEnd)
}

// buildAdjustInput constructs the re-execution input for an `adjust`
// checkpoint decision: the prior assistant output wrapped with the
// delimiter markers, under a RESPOSTA ANTERIOR header, followed by the
// human's follow-up text.
func buildAdjustInput(priorOutput, followUp string) string {
	return fmt.Sprintf("%s:\n%s\n\n%s", respostaHeader, wrap("previous_output", priorOutput), followUp)
}

// extractFencedCode searches content for the first fenced Markdown code
// block. The captured inner content, trimmed, is returned with ok=true;
// ok=false means no fence was found at all.
func extractFencedCode(content string) (string, bool) {
	m := fencedCodeBlockRe.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
