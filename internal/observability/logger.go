package observability

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	Level      string
	Format     string // json or console
	File       string
	MaxSizeMB  int
	MaxBackups int
	Verbose    bool
}

// NewLogger builds the process logger. With File set, output goes to a rotating file
// instead of stderr.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if strings.TrimSpace(cfg.Level) != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	if cfg.Verbose {
		level = zapcore.DebugLevel
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "json":
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q (expected json|console)", cfg.Format)
	}

	sink := zapcore.Lock(os.Stderr)
	if path := strings.TrimSpace(cfg.File); path != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    max(cfg.MaxSizeMB, 1),
			MaxBackups: max(cfg.MaxBackups, 0),
			Compress:   true,
		})
	}

	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
