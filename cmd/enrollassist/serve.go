package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/enrollassist/internal/app"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the widget HTTP and websocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), c)
		},
	}
}

func runServe(parent context.Context, c *cli) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	built, err := app.Build(ctx, *c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := built.Cleanup(); err != nil {
			c.logger.Warn("cleanup failed", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:              c.cfg.BindAddr,
		Handler:           built.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	built.Sessions.StartJanitor(ctx, 5*time.Second)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.logger.Info("server listening", zap.String("addr", c.cfg.BindAddr), zap.String("knowledge_mode", built.Mode))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if built.Watcher != nil {
		g.Go(func() error {
			c.logger.Info("watching rule files", zap.Strings("patterns", c.cfg.KnowledgePath))
			return built.Watcher.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("graceful shutdown failed", zap.Error(err))
			_ = httpServer.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	c.logger.Info("shutdown complete")
	return nil
}
