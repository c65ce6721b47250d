// Command refinectl seeds refinement configuration, manages API users and
// runs refinements from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/config"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/logging"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/store"
)

// app carries state shared by every subcommand
type app struct {
	out      io.Writer
	envFile  string
	logLevel string
	cfg      *config.Config
	logger   *zap.Logger
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:          "refinectl",
		Short:        "Manage and run AI refinement loops",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.envFile)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.LogLevel = a.logLevel
			}
			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Environment file to load when present")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newSeedCmd(a),
		newUserCmd(a),
		newRefineCmd(a),
		newExecutionsCmd(a),
	)
	return root
}

// openStore opens the configured backend
func (a *app) openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, a.cfg.StoreDriver, a.cfg.DatabaseURL, a.cfg.SQLitePath, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// printJSON writes v as indented JSON
func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
