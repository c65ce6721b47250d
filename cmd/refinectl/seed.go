package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/config"
)

func newSeedCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load models, workflows, refinement actions and prompts from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := config.LoadSeedFile(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Seed(ctx, seed); err != nil {
				return fmt.Errorf("failed to seed store: %w", err)
			}

			phases, actions := 0, 0
			for _, wf := range seed.Workflows {
				phases += len(wf.Phases)
				for _, phase := range wf.Phases {
					actions += len(phase.Actions)
				}
			}
			a.logger.Info("Seed applied",
				zap.String("file", file),
				zap.Int("models", len(seed.Models)),
				zap.Int("workflows", len(seed.Workflows)),
				zap.Int("phases", phases),
				zap.Int("actions", actions),
				zap.Int("prompts", len(seed.Prompts)))
			fmt.Fprintf(a.out, "Seeded %d models, %d workflows, %d phases, %d actions, %d prompts\n",
				len(seed.Models), len(seed.Workflows), phases, actions, len(seed.Prompts))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Seed YAML file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
