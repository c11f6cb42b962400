package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ent0n29/enrollassist/internal/config"
	"github.com/ent0n29/enrollassist/internal/observability"
)

// cli carries what the root command resolves for its subcommands.
type cli struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "enrollassist",
		Short:         "Enrollment help assistant: keyword-matched answers with a typed reveal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			c.cfg = cfg
			c.logger, err = observability.NewLogger(cfg.LogConfig(c.verbose))
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "enrollassist.yaml", "path to the YAML config file (optional)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(c),
		newChatCmd(c),
		newAskCmd(c),
		newValidateCmd(c),
		newSchemaCmd(),
		newSeedCmd(c),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
