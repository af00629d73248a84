package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newHistoryCmd documents the run-history surface. Persisted run
// history lives in a SQLite store owned by an external collaborator
// (spec's out-of-scope list); these subcommands exist to pin the CLI
// contract a front-end must satisfy, not to implement the store itself.
func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear persisted run history",
	}
	cmd.AddCommand(newHistoryClearCmd(), newHistoryRunsCmd())
	return cmd
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear persisted run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("history clear: run history is persisted by an external collaborator and is not implemented in this module")
		},
	}
}

func newHistoryRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("history runs: run history is persisted by an external collaborator and is not implemented in this module")
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}
