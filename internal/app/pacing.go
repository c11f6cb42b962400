package app

import (
	"time"

	"github.com/ent0n29/enrollassist/internal/config"
	"github.com/ent0n29/enrollassist/internal/conversation"
)

// resolvePacing maps the configured delay ranges onto conversation options. A
// collapsed range becomes a fixed delay.
func resolvePacing(cfg config.Config) conversation.Options {
	return conversation.Options{
		ThinkDelay:    delayFor(cfg.ThinkDelayMin, cfg.ThinkDelayMax),
		RevealDelay:   delayFor(cfg.RevealDelayMin, cfg.RevealDelayMax),
		ContextWindow: cfg.ContextWindow,
	}
}

func delayFor(lo, hi time.Duration) conversation.DelayFunc {
	if hi <= lo {
		return conversation.FixedDelay(lo)
	}
	return conversation.RandomDelay(lo, hi)
}
