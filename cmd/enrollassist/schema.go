package main

import (
	"github.com/spf13/cobra"

	"github.com/ent0n29/enrollassist/internal/knowledge"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the rule file format",
		Args:  cobra.NoArgs,
		// Needs neither config nor logger.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := knowledge.Schema()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(raw, '\n'))
			return err
		},
	}
}
