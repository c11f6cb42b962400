package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ent0n29/enrollassist/internal/knowledge"
)

func newValidateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [pattern...]",
		Short: "Load and validate rule files, or the configured source when no pattern is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				table *knowledge.Table
				err   error
			)
			if len(args) > 0 {
				table, err = knowledge.LoadFiles(args...)
			} else {
				var closeSource func() error
				table, closeSource, err = loadTable(cmd, c)
				if closeSource != nil {
					defer closeSource()
				}
			}
			if err != nil {
				return fmt.Errorf("invalid knowledge: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ok: version %s, %d entries from %s\n", table.Version(), table.Len(), table.Source())
			fmt.Fprintf(out, "categories: %s\n", strings.Join(table.Categories(), ", "))
			return nil
		},
	}
}
