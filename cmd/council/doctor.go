package main

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/juniormartinxo/council/internal/auditlog"
	"github.com/juniormartinxo/council/pkg/flow"
)

func newDoctorCmd() *cobra.Command {
	var flowConfig string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the flow and check that its binaries are on PATH",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(flowConfig)
		},
	}
	cmd.Flags().StringVarP(&flowConfig, "flow-config", "c", "", "explicit path to a flow.json")
	return cmd
}

// runDoctor validates the flow and checks PATH discoverability for every
// distinct binary it references. It never executes a step; deeper
// diagnostics (CLI version probing, auth checks) belong to an external
// collaborator.
func runDoctor(flowConfig string) error {
	b, err := newBootstrap()
	if err != nil {
		return err
	}

	f, err := flow.Load(b.flowOptions(flowConfig))
	if err != nil {
		return fmt.Errorf("flow is invalid: %w", err)
	}
	fmt.Printf("flow OK: %d step(s), source=%s, implicit=%v\n", len(f.Steps), f.Source, f.Implicit)

	seen := map[string]bool{}
	allFound := true
	for _, step := range f.Steps {
		tokens, err := flow.Tokenize(step.Command)
		if err != nil || len(tokens) == 0 {
			continue
		}
		bin := tokens[0]
		if seen[bin] {
			continue
		}
		seen[bin] = true

		if flow.APIOnlyBinaries[bin] {
			fmt.Printf("  %-10s api-only, no PATH check\n", bin)
			continue
		}
		if path, err := exec.LookPath(bin); err != nil {
			allFound = false
			fmt.Printf("  %-10s NOT FOUND on PATH\n", bin)
		} else {
			fmt.Printf("  %-10s %s\n", bin, path)
		}
	}

	b.audit.Emit(auditlog.Info, auditlog.EventDoctorInvoked, map[string]interface{}{"steps": len(f.Steps)})

	if !allFound {
		return fmt.Errorf("one or more required binaries are missing from PATH")
	}
	return nil
}
