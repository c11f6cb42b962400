package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ent0n29/enrollassist/internal/knowledge"
)

func newSeedCmd(c *cli) *cobra.Command {
	var from []string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the database rule set with rules from YAML files (or the built-in set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				table *knowledge.Table
				err   error
			)
			if len(from) > 0 {
				table, err = knowledge.LoadFiles(from...)
			} else {
				table, err = knowledge.Default()
			}
			if err != nil {
				return fmt.Errorf("load rules: %w", err)
			}

			store, err := knowledge.OpenStore(cmd.Context(), c.cfg.KnowledgeOptions(), c.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Replace(cmd.Context(), table); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			c.logger.Info("knowledge seeded",
				zap.String("version", table.Version()),
				zap.Int("entries", table.Len()))
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d entries (version %s)\n", table.Len(), table.Version())
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&from, "from", nil, "rule file glob to import (repeatable); defaults to the built-in rules")
	return cmd
}
