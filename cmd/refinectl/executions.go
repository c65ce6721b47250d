package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/store"
)

func newExecutionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "executions",
		Short: "Inspect refinement executions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <execution-id>",
		Short: "Print an execution and its loopback responses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			executionID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid execution ID: %w", err)
			}

			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			execution, err := st.GetExecution(ctx, executionID)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("execution %s not found", executionID)
			}
			if err != nil {
				return err
			}
			responses, err := st.ListLoopbackResponses(ctx, executionID)
			if err != nil {
				return err
			}
			if responses == nil {
				responses = []models.LoopbackResponse{}
			}

			return a.printJSON(models.ExecutionDetail{Execution: *execution, Responses: responses})
		},
	})
	return cmd
}
