package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ent0n29/enrollassist/internal/matcher"
)

func newAskCmd(c *cli) *cobra.Command {
	var (
		recent []string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Rank the rules for one question and show the chosen answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, closeSource, err := loadTable(cmd, c)
			if err != nil {
				return err
			}
			defer closeSource()

			input := strings.Join(args, " ")
			var booster matcher.Booster
			if len(recent) > 0 {
				tracker := matcher.NewTracker(c.cfg.ContextWindow)
				for _, prior := range recent {
					tracker.Record(prior)
				}
				tracker.Record(input)
				booster = tracker
			}
			entries := table.Entries()
			resp, _ := matcher.Match(input, entries, booster)
			ranking := matcher.Explain(input, entries, booster)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"knowledge_version": table.Version(),
					"response":          resp,
					"ranking":           ranking,
				})
			}

			fmt.Fprintf(out, "knowledge %s\n\n", table.Version())
			if len(ranking) == 0 {
				fmt.Fprintln(out, "no rule matched")
			}
			for i, ex := range ranking {
				fmt.Fprintf(out, "%2d. %-14s score %6.2f  raw %3d", i+1, ex.EntryID, ex.Score, ex.Raw)
				if ex.ContextBoost {
					fmt.Fprint(out, "  +context")
				}
				fmt.Fprintln(out)
				for _, h := range ex.Hits {
					fmt.Fprintf(out, "      %-18q +%d", h.Keyword, h.Points)
					if h.Exact {
						fmt.Fprint(out, " exact")
					}
					if h.WholeWord {
						fmt.Fprint(out, " word")
					}
					fmt.Fprintln(out)
				}
			}
			label := resp.EntryID
			if !resp.Matched {
				label = "fallback"
			}
			fmt.Fprintf(out, "\n[%s · %s · %d%%]\n%s\n", label, resp.Category, resp.Confidence, resp.Text)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&recent, "recent", nil, "earlier user inputs, oldest first (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
