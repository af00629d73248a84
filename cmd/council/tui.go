package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/juniormartinxo/council/internal/auditlog"
	"github.com/juniormartinxo/council/pkg/executor"
	"github.com/juniormartinxo/council/pkg/flow"
	"github.com/juniormartinxo/council/pkg/orchestrator"
	"github.com/juniormartinxo/council/pkg/state"
	"github.com/juniormartinxo/council/pkg/ui"
)

func newTUICmd() *cobra.Command {
	var prompt, flowConfig string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run a flow interactively with human checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				return fmt.Errorf("tui: -p/--prompt is required")
			}
			return runInteractive(prompt, flowConfig)
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "starting prompt")
	cmd.Flags().StringVarP(&flowConfig, "flow-config", "c", "", "explicit path to a flow.json")
	return cmd
}

// runInteractive runs the same orchestration engine as run, but accepts
// an implicit flow after confirmation and drives checkpoints through
// lineCollaborator. The rich, panel-based terminal front-end is a
// separate, external collaborator; this is the line-mode fallback that
// exercises the checkpoint contract end-to-end.
func runInteractive(prompt, flowConfig string) error {
	b, err := newBootstrap()
	if err != nil {
		return err
	}

	f, err := flow.Load(b.flowOptions(flowConfig))
	if err != nil {
		return fmt.Errorf("load flow: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	if f.Implicit {
		fmt.Printf("No explicit flow given; using %s. Continue? [y/N] ", f.Source)
		line, _ := reader.ReadString('\n')
		if strings.TrimSpace(strings.ToLower(line)) != "y" {
			return fmt.Errorf("aborted: implicit flow not confirmed")
		}
	}

	b.audit.Emit(auditlog.Info, auditlog.EventFlowLoad, map[string]interface{}{"source": f.Source, "implicit": f.Implicit})

	st := state.New(b.limits.MaxContextChars)
	ex := executor.New(b.spoolDir(), b.audit)
	collab := &lineCollaborator{reader: reader}
	o := orchestrator.New(f, st, ex, collab, b.audit, orchestrator.GlobalLimits{
		MaxInputChars:  b.limits.MaxInputChars,
		MaxOutputChars: b.limits.MaxOutputChars,
	})

	return o.RunFlow(context.Background(), prompt)
}

// lineCollaborator is a minimal, non-visual ui.Collaborator: it streams
// chunks straight to stdout and reads checkpoint decisions as single
// lines from stdin.
type lineCollaborator struct {
	reader *bufio.Reader
}

func (l *lineCollaborator) OnStream(stepKey, chunk string) {
	fmt.Print(chunk)
}

func (l *lineCollaborator) OnStepFinal(stepKey, content, style string, isCode bool) {
	fmt.Printf("\n--- step %q finished (style=%s, is_code=%v) ---\n", stepKey, style, isCode)
}

func (l *lineCollaborator) AskCheckpoint(stepKey string) ui.Checkpoint {
	fmt.Printf("\n[%s] continue (c) / adjust (a) / abort (x)? ", stepKey)
	line, _ := l.reader.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	switch {
	case strings.HasPrefix(line, "a"):
		fmt.Print("follow-up: ")
		followUp, _ := l.reader.ReadString('\n')
		return ui.Checkpoint{Decision: ui.Adjust, FollowUp: strings.TrimSpace(followUp)}
	case strings.HasPrefix(line, "x"):
		return ui.Checkpoint{Decision: ui.Abort}
	default:
		return ui.Checkpoint{Decision: ui.Continue}
	}
}
