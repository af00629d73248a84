// Command council drives a configurable pipeline of external LLM CLI
// tools through the orchestration engine in pkg/orchestrator. See
// spec §6 for the external interface contract this binary implements.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "council",
		Short:         "Multi-agent CLI orchestration engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCmd(),
		newTUICmd(),
		newDoctorCmd(),
		newFlowCmd(),
		newHistoryCmd(),
		newDaemonCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
