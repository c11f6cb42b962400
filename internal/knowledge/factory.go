package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/enrollassist/internal/reliability"
)

const (
	ModeAuto     = "auto"
	ModeEmbedded = "embedded"
	ModeFile     = "file"
	ModePostgres = "postgres"
	ModeSQLite   = "sqlite"
)

type SourceOptions struct {
	Mode        string
	Patterns    []string
	DatabaseURL string
	SQLitePath  string
	Retry       reliability.Policy
}

// ResolveMode turns "auto" into a concrete mode based on what is configured.
func ResolveMode(opts SourceOptions) string {
	mode := strings.ToLower(strings.TrimSpace(opts.Mode))
	if mode != "" && mode != ModeAuto {
		return mode
	}
	switch {
	case strings.TrimSpace(opts.DatabaseURL) != "":
		return ModePostgres
	case strings.TrimSpace(opts.SQLitePath) != "":
		return ModeSQLite
	case len(opts.Patterns) > 0:
		return ModeFile
	default:
		return ModeEmbedded
	}
}

// OpenSource builds the configured source. The returned close func is never nil.
func OpenSource(ctx context.Context, opts SourceOptions, logger *zap.Logger) (Source, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() error { return nil }
	if opts.Retry.Attempts <= 0 {
		opts.Retry = reliability.Policy{Attempts: 5, Base: 500 * time.Millisecond, Cap: 8 * time.Second}
	}

	mode := ResolveMode(opts)
	switch mode {
	case ModeEmbedded:
		return EmbeddedSource{}, noop, nil
	case ModeFile:
		if len(opts.Patterns) == 0 {
			return nil, noop, fmt.Errorf("knowledge source %q needs at least one path pattern", mode)
		}
		return FileSource{Patterns: opts.Patterns}, noop, nil
	case ModePostgres, ModeSQLite:
		store, err := openStore(ctx, mode, opts, logger)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown knowledge source %q (expected auto|embedded|file|postgres|sqlite)", opts.Mode)
	}
}

// OpenStore opens a writable database store (used by the seed command).
func OpenStore(ctx context.Context, opts SourceOptions, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := ResolveMode(opts)
	if mode != ModePostgres && mode != ModeSQLite {
		return nil, fmt.Errorf("knowledge source %q is read-only", mode)
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry = reliability.Policy{Attempts: 1}
	}
	return openStore(ctx, mode, opts, logger)
}

func openStore(ctx context.Context, mode string, opts SourceOptions, logger *zap.Logger) (Store, error) {
	var store Store
	err := reliability.Retry(ctx, opts.Retry, func(ctx context.Context) error {
		var err error
		if mode == ModePostgres {
			store, err = NewPostgresStore(ctx, opts.DatabaseURL)
		} else {
			store, err = NewSQLiteStore(ctx, opts.SQLitePath)
		}
		return err
	}, func(attempt int, wait time.Duration, err error) {
		logger.Warn("knowledge store unavailable, retrying",
			zap.String("mode", mode),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err != nil {
		return nil, fmt.Errorf("open %s knowledge store: %w", mode, err)
	}
	return store, nil
}
