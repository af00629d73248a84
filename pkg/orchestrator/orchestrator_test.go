package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/juniormartinxo/council/pkg/executor"
	"github.com/juniormartinxo/council/pkg/flow"
	"github.com/juniormartinxo/council/pkg/state"
	"github.com/juniormartinxo/council/pkg/ui"
)

type fakeExecutor struct {
	outputs   []string
	calls     int
	lastInput string
}

func (f *fakeExecutor) RunCLI(ctx context.Context, command string, inputData string, timeout time.Duration, onOutput executor.OnOutput, maxInputChars, maxOutputChars int) (string, error) {
	f.lastInput = inputData
	out := f.outputs[f.calls]
	f.calls++
	onOutput(out)
	return out, nil
}

type fakeUI struct {
	decisions []ui.Checkpoint
	idx       int
}

func (f *fakeUI) OnStream(string, string)                 {}
func (f *fakeUI) OnStepFinal(string, string, string, bool) {}
func (f *fakeUI) AskCheckpoint(string) ui.Checkpoint {
	d := f.decisions[f.idx]
	f.idx++
	return d
}

func onePlainStep(isCode bool) *flow.Flow {
	return &flow.Flow{Steps: []flow.Step{{
		Key:            "respond",
		AgentName:      "claude",
		RoleDesc:       "assistant",
		Command:        "claude -p",
		Instruction:    "Say hi.",
		InputTemplate:  "{instruction}\n\n{user_prompt}",
		IsCode:         isCode,
		Enabled:        true,
		TimeoutSeconds: 60,
	}}}
}

// S1 (happy path)
func TestRunFlowHappyPath(t *testing.T) {
	f := onePlainStep(false)
	st := state.New(100000)
	ex := &fakeExecutor{outputs: []string{"Hello, World."}}
	o := New(f, st, ex, &fakeUI{decisions: []ui.Checkpoint{{Decision: ui.Continue}}}, nil, GlobalLimits{MaxInputChars: 100000, MaxOutputChars: 100000})

	if err := o.RunFlow(context.Background(), "World"); err != nil {
		t.Fatalf("RunFlow() error = %v", err)
	}

	turns := st.Turns()
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if turns[0].Role != state.RoleHuman || turns[0].Content != "World" {
		t.Errorf("turn[0] = %+v", turns[0])
	}
	if turns[1].Role != state.RoleAssistant || turns[1].Content != "Hello, World." {
		t.Errorf("turn[1] = %+v", turns[1])
	}
}

// S3 (is_code enforcement)
func TestRunFlowIsCodeFailClose(t *testing.T) {
	f := onePlainStep(true)
	st := state.New(100000)
	ex := &fakeExecutor{outputs: []string{"not code"}}
	o := New(f, st, ex, &fakeUI{}, nil, GlobalLimits{MaxInputChars: 1000, MaxOutputChars: 1000})

	err := o.RunFlow(context.Background(), "World")
	if err == nil {
		t.Fatal("expected SafetyBlockError")
	}
	if _, ok := err.(*SafetyBlockError); !ok {
		t.Errorf("err = %v (%T), want *SafetyBlockError", err, err)
	}
	if len(st.Turns()) != 1 {
		t.Errorf("expected only the human turn to be recorded, got %d turns", len(st.Turns()))
	}
}

func TestRunFlowIsCodeExtraction(t *testing.T) {
	f := onePlainStep(true)
	st := state.New(100000)
	ex := &fakeExecutor{outputs: []string{"preamble\n```python\nprint(1)\n```\ntrailer"}}
	o := New(f, st, ex, &fakeUI{decisions: []ui.Checkpoint{{Decision: ui.Continue}}}, nil, GlobalLimits{MaxInputChars: 1000, MaxOutputChars: 1000})

	if err := o.RunFlow(context.Background(), "World"); err != nil {
		t.Fatalf("RunFlow() error = %v", err)
	}
	out, ok := st.StepOutput("respond")
	if !ok || out != "print(1)" {
		t.Errorf("StepOutput = (%q, %v), want (print(1), true)", out, ok)
	}
}

// S5 (two-step with key): delimiter wrapping around a prior step's output.
func TestRunFlowDelimiterWrapping(t *testing.T) {
	f := &flow.Flow{Steps: []flow.Step{
		{Key: "plan", AgentName: "claude", RoleDesc: "r", Command: "claude -p", Instruction: "plan it", InputTemplate: flow.DefaultInputTemplate, Enabled: true, TimeoutSeconds: 60},
		{Key: "exec", AgentName: "gemini", RoleDesc: "r", Command: "gemini -p", Instruction: "do it", InputTemplate: "{instruction}\n\nPlan:\n{plan}", Enabled: true, TimeoutSeconds: 60},
	}}
	st := state.New(100000)
	ex := &fakeExecutor{outputs: []string{"P", "E"}}
	o := New(f, st, ex, &fakeUI{decisions: []ui.Checkpoint{{Decision: ui.Continue}, {Decision: ui.Continue}}}, nil, GlobalLimits{MaxInputChars: 100000, MaxOutputChars: 100000})

	if err := o.RunFlow(context.Background(), "World"); err != nil {
		t.Fatalf("RunFlow() error = %v", err)
	}

	rendered := ex.lastInput
	if !strings.Contains(rendered, wrapStart+"\nP\n"+wrapEnd) {
		t.Errorf("rendered input missing wrapped plan output, got %q", rendered)
	}
	idxStart := strings.Index(rendered, wrapStart)
	idxP := strings.Index(rendered, "\nP\n")
	if idxStart == -1 || idxP == -1 || idxP < idxStart {
		t.Errorf("expected opening marker immediately before content, got %q", rendered)
	}
}

func TestRunFlowAbort(t *testing.T) {
	f := onePlainStep(false)
	st := state.New(1000)
	ex := &fakeExecutor{outputs: []string{"hi"}}
	o := New(f, st, ex, &fakeUI{decisions: []ui.Checkpoint{{Decision: ui.Abort}}}, nil, GlobalLimits{MaxInputChars: 1000, MaxOutputChars: 1000})

	err := o.RunFlow(context.Background(), "World")
	if _, ok := err.(*AbortedByUserError); !ok {
		t.Errorf("err = %v, want *AbortedByUserError", err)
	}
}

func TestRunFlowAdjustRetriesStep(t *testing.T) {
	f := onePlainStep(false)
	st := state.New(1000)
	ex := &fakeExecutor{outputs: []string{"first", "second"}}
	o := New(f, st, ex, &fakeUI{decisions: []ui.Checkpoint{
		{Decision: ui.Adjust, FollowUp: "try again"},
		{Decision: ui.Continue},
	}}, nil, GlobalLimits{MaxInputChars: 1000, MaxOutputChars: 1000})

	if err := o.RunFlow(context.Background(), "World"); err != nil {
		t.Fatalf("RunFlow() error = %v", err)
	}
	if ex.calls != 2 {
		t.Errorf("executor calls = %d, want 2 (distinct execution per retry)", ex.calls)
	}
	if out, _ := st.StepOutput("respond"); out != "second" {
		t.Errorf("StepOutput = %q, want second", out)
	}
}

func TestRenderTemplateIdempotent(t *testing.T) {
	ctx := map[string]string{"instruction": "do X", "user_prompt": "hi"}
	a, err := renderTemplate("{instruction}: {user_prompt}", ctx)
	if err != nil {
		t.Fatalf("renderTemplate() error = %v", err)
	}
	b, err := renderTemplate("{instruction}: {user_prompt}", ctx)
	if err != nil {
		t.Fatalf("renderTemplate() error = %v", err)
	}
	if a != b {
		t.Errorf("render is not idempotent: %q != %q", a, b)
	}
}

func TestExtractFencedCodeNoFenceFails(t *testing.T) {
	if _, ok := extractFencedCode("hello world"); ok {
		t.Fatal("expected no fence found")
	}
}
