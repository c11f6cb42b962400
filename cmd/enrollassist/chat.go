package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ent0n29/enrollassist/internal/conversation"
	"github.com/ent0n29/enrollassist/internal/knowledge"
	"github.com/ent0n29/enrollassist/internal/tui"
)

func newChatCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, closeSource, err := loadTable(cmd, c)
			if err != nil {
				return err
			}
			defer closeSource()

			// Stderr logging would tear the TUI; only a log file is kept.
			logger := c.logger
			if strings.TrimSpace(c.cfg.LogFile) == "" {
				logger = zap.NewNop()
			}
			conv := conversation.Open(uuid.NewString(), table, conversation.Options{
				ThinkDelay:    conversation.RandomDelay(c.cfg.ThinkDelayMin, c.cfg.ThinkDelayMax),
				RevealDelay:   conversation.RandomDelay(c.cfg.RevealDelayMin, c.cfg.RevealDelayMax),
				ContextWindow: c.cfg.ContextWindow,
				Logger:        logger,
			})
			defer conv.Close()

			if _, err := tea.NewProgram(tui.New(conv), tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			return nil
		},
	}
}

// loadTable opens the configured knowledge source and loads one table from it.
func loadTable(cmd *cobra.Command, c *cli) (*knowledge.Table, func() error, error) {
	source, closeSource, err := knowledge.OpenSource(cmd.Context(), c.cfg.KnowledgeOptions(), c.logger)
	if err != nil {
		return nil, closeSource, err
	}
	table, err := source.Load(cmd.Context())
	if err != nil {
		_ = closeSource()
		return nil, func() error { return nil }, err
	}
	return table, closeSource, nil
}
