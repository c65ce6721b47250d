package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/orchestration"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/refinement"
)

func newRefineCmd(a *app) *cobra.Command {
	var (
		workflowID    string
		phaseID       string
		response      string
		file          string
		maxIterations int
	)

	cmd := &cobra.Command{
		Use:   "refine",
		Short: "Run the refinement loop for a workflow phase and print the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readResponse(cmd, response, file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			invoker, err := orchestration.NewInvoker(ctx, orchestration.InvokerConfig{
				OpenAIAPIKey:    a.cfg.OpenAIAPIKey,
				OpenAIBaseURL:   a.cfg.OpenAIBaseURL,
				GeminiAPIKey:    a.cfg.GeminiAPIKey,
				ModelRuntimeURL: a.cfg.ModelRuntimeURL,
				Timeout:         a.cfg.ModelTimeout,
				RateLimit:       a.cfg.ModelRateLimit,
				RateBurst:       a.cfg.ModelRateBurst,
			}, a.logger)
			if err != nil {
				return err
			}

			loop := refinement.New(st, invoker,
				refinement.WithLogger(a.logger),
				refinement.WithMaxIterations(a.cfg.MaxIterations),
				refinement.WithModelTimeout(a.cfg.ModelTimeout),
				refinement.WithStoreTimeout(a.cfg.StoreTimeout),
			)

			out := loop.Refine(ctx, workflowID, phaseID, text, maxIterations)
			result := models.RefineResponse{
				Outcome:         string(out.Kind),
				RefinedResponse: out.Text,
				Iterations:      out.Iterations,
				StopReason:      string(out.StopReason),
				Retryable:       out.Retryable(),
			}
			if out.Err != nil {
				result.Error = out.Err.Error()
			}
			if out.ExecutionID != uuid.Nil {
				result.ExecutionID = out.ExecutionID.String()
			}
			if err := a.printJSON(result); err != nil {
				return err
			}

			if out.Kind == refinement.OutcomeInternalError {
				return fmt.Errorf("refinement failed: %w", out.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow", "", "Workflow ID (required)")
	cmd.Flags().StringVar(&phaseID, "phase", "", "Phase ID (required)")
	cmd.Flags().StringVar(&response, "response", "", "Response text to refine")
	cmd.Flags().StringVar(&file, "file", "", "Read the response from a file, - for stdin")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", -1, "Iteration limit, negative for the configured default")
	_ = cmd.MarkFlagRequired("workflow")
	_ = cmd.MarkFlagRequired("phase")
	cmd.MarkFlagsMutuallyExclusive("response", "file")
	cmd.MarkFlagsOneRequired("response", "file")
	return cmd
}

func readResponse(cmd *cobra.Command, response, file string) (string, error) {
	if file == "" {
		return response, nil
	}
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return string(data), nil
}
