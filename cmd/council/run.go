package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/juniormartinxo/council/internal/auditlog"
	"github.com/juniormartinxo/council/pkg/executor"
	"github.com/juniormartinxo/council/pkg/flow"
	"github.com/juniormartinxo/council/pkg/orchestrator"
	"github.com/juniormartinxo/council/pkg/state"
	"github.com/juniormartinxo/council/pkg/ui"
)

func newRunCmd() *cobra.Command {
	var flowConfig string
	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Execute a flow end-to-end against a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlowOnce(args[0], flowConfig)
		},
	}
	cmd.Flags().StringVarP(&flowConfig, "flow-config", "c", "", "explicit path to a flow.json")
	return cmd
}

// runFlowOnce loads the flow, runs it non-interactively with
// ui.NullCollaborator, and prints each agent's final turn. It refuses to
// run an implicit flow (one picked up from FLOW_CONFIG or ./flow.json):
// non-interactive callers must name that flow explicitly. A flow from
// <home>/flow.json or the built-in single-step default is not implicit
// and runs without --flow-config.
func runFlowOnce(prompt, flowConfig string) error {
	b, err := newBootstrap()
	if err != nil {
		return err
	}

	f, err := flow.Load(b.flowOptions(flowConfig))
	if err != nil {
		return fmt.Errorf("load flow: %w", err)
	}
	if f.Implicit {
		return fmt.Errorf("refusing to run an implicit flow (%s) in non-interactive mode; pass --flow-config explicitly", f.Source)
	}

	b.audit.Emit(auditlog.Info, auditlog.EventFlowLoad, map[string]interface{}{"source": f.Source, "implicit": f.Implicit})

	st := state.New(b.limits.MaxContextChars)
	ex := executor.New(b.spoolDir(), b.audit)
	o := orchestrator.New(f, st, ex, ui.NullCollaborator{}, b.audit, orchestrator.GlobalLimits{
		MaxInputChars:  b.limits.MaxInputChars,
		MaxOutputChars: b.limits.MaxOutputChars,
	})

	if err := o.RunFlow(context.Background(), prompt); err != nil {
		return fmt.Errorf("run flow: %w", err)
	}

	for _, t := range st.Turns() {
		if t.Role == state.RoleAssistant {
			fmt.Printf("=== %s (%s) ===\n%s\n\n", t.AgentName, t.RoleDesc, t.Content)
		}
	}
	return nil
}
