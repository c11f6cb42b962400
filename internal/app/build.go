package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ent0n29/enrollassist/internal/config"
	"github.com/ent0n29/enrollassist/internal/conversation"
	"github.com/ent0n29/enrollassist/internal/httpapi"
	"github.com/ent0n29/enrollassist/internal/knowledge"
	"github.com/ent0n29/enrollassist/internal/observability"
	"github.com/ent0n29/enrollassist/internal/policy"
	"github.com/ent0n29/enrollassist/internal/session"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Sessions *session.Manager
	Registry *knowledge.Registry
	Metrics  *observability.Metrics
	// Watcher is nil unless rule files are served with knowledge_watch enabled.
	Watcher *knowledge.Watcher
	Mode    string

	// Cleanup should be called on shutdown to release the knowledge store.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	opts := cfg.KnowledgeOptions()
	mode := knowledge.ResolveMode(opts)
	source, closeSource, err := knowledge.OpenSource(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("knowledge source init failed: %w", err)
	}
	table, err := source.Load(ctx)
	if err != nil {
		_ = closeSource()
		return nil, fmt.Errorf("knowledge load failed: %w", err)
	}
	metrics.ObserveKnowledgeTable(table.Len())
	metrics.SetPacingBudget(observability.PacingBudget{
		ThinkMax:         cfg.ThinkDelayMax,
		RevealPerWordMax: cfg.RevealDelayMax,
	})
	logger.Info("knowledge loaded",
		zap.String("mode", mode),
		zap.String("version", table.Version()),
		zap.String("source", table.Source()),
		zap.Int("entries", table.Len()))

	registry := knowledge.NewRegistry(table)
	registry.OnSwap(func(t *knowledge.Table) {
		metrics.ObserveKnowledgeTable(t.Len())
		logger.Info("knowledge table swapped",
			zap.String("version", t.Version()),
			zap.String("source", t.Source()),
			zap.Int("entries", t.Len()))
	})

	convOpts := resolvePacing(cfg)
	convOpts.Logger = logger.Named("conversation")
	convOpts.OnTurnComplete = turnReporter(metrics, logger.Named("turns"))

	sessions := session.NewManager(registry, convOpts, cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
		logger.Debug("session expired", zap.String("session_id", s.ID), zap.Int("turns", s.TurnCount))
	})

	var watcher *knowledge.Watcher
	if mode == knowledge.ModeFile && cfg.KnowledgeWatch {
		watcher, err = knowledge.NewWatcher(cfg.KnowledgePath, registry, logger.Named("knowledge"))
		if err != nil {
			_ = closeSource()
			return nil, fmt.Errorf("knowledge watcher init failed: %w", err)
		}
		watcher.OnReload(func(_ *knowledge.Table, err error) {
			metrics.ObserveKnowledgeReload(err)
		})
		logger.Info("watching knowledge files", zap.Strings("dirs", watcher.WatchedDirs()))
	}

	api := httpapi.New(cfg, sessions, registry, metrics, logger.Named("http"))

	cleanup := func() error {
		var errs []error
		if n := sessions.CloseAll(); n > 0 {
			logger.Info("closed open sessions", zap.Int("count", n))
		}
		metrics.ActiveSessions.Set(0)
		if err := closeSource(); err != nil {
			errs = append(errs, fmt.Errorf("close knowledge source: %w", err))
		}
		return errors.Join(errs...)
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Sessions: sessions,
		Registry: registry,
		Metrics:  metrics,
		Watcher:  watcher,
		Mode:     mode,
		Cleanup:  cleanup,
	}, nil
}

// turnReporter feeds finished turns into metrics and a redacted debug log.
func turnReporter(metrics *observability.Metrics, logger *zap.Logger) func(conversation.TurnReport) {
	return func(r conversation.TurnReport) {
		metrics.ObserveTurn(observability.TurnSample{
			Matched:    r.Response.Matched,
			Category:   r.Response.Category,
			Score:      r.Response.Score,
			Confidence: r.Response.Confidence,
			Words:      len(strings.Fields(r.Response.Text)),
			Think:      r.ThinkDelay,
			Reveal:     r.Reveal,
			Total:      r.Total,
		})

		logger.Debug("turn completed",
			zap.String("session_id", r.SessionID),
			zap.String("knowledge_version", r.KnowledgeVersion),
			zap.String("input", policy.RedactLearnerInput(r.Input, r.Facts)),
			zap.String("entry_id", r.Response.EntryID),
			zap.String("category", r.Response.Category),
			zap.Float64("score", r.Response.Score),
			zap.Int("confidence", r.Response.Confidence),
			zap.Int("candidates", r.Candidates),
			zap.Any("facts", policy.RedactFacts(r.Facts)),
			zap.Duration("total", r.Total))
	}
}
