package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ent0n29/enrollassist/internal/knowledge"
	"github.com/ent0n29/enrollassist/internal/observability"
)

const EnvPrefix = "APP_"

// Config contains all runtime settings for the enrollment assistant service.
type Config struct {
	BindAddr                 string        `yaml:"bind_addr" koanf:"bind_addr"`
	ShutdownTimeout          time.Duration `yaml:"shutdown_timeout" koanf:"shutdown_timeout"`
	SessionInactivityTimeout time.Duration `yaml:"session_inactivity_timeout" koanf:"session_inactivity_timeout"`
	MetricsNamespace         string        `yaml:"metrics_namespace" koanf:"metrics_namespace"`

	AllowAnyOrigin bool     `yaml:"allow_any_origin" koanf:"allow_any_origin"`
	AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`

	KnowledgeSource string   `yaml:"knowledge_source" koanf:"knowledge_source"`
	KnowledgePath   []string `yaml:"knowledge_path" koanf:"knowledge_path"`
	KnowledgeWatch  bool     `yaml:"knowledge_watch" koanf:"knowledge_watch"`
	DatabaseURL     string   `yaml:"database_url" koanf:"database_url"`
	SQLitePath      string   `yaml:"sqlite_path" koanf:"sqlite_path"`

	ContextWindow  int           `yaml:"context_window" koanf:"context_window"`
	ThinkDelayMin  time.Duration `yaml:"think_delay_min" koanf:"think_delay_min"`
	ThinkDelayMax  time.Duration `yaml:"think_delay_max" koanf:"think_delay_max"`
	RevealDelayMin time.Duration `yaml:"reveal_delay_min" koanf:"reveal_delay_min"`
	RevealDelayMax time.Duration `yaml:"reveal_delay_max" koanf:"reveal_delay_max"`

	LogLevel      string `yaml:"log_level" koanf:"log_level"`
	LogFormat     string `yaml:"log_format" koanf:"log_format"`
	LogFile       string `yaml:"log_file" koanf:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb" koanf:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups" koanf:"log_max_backups"`
}

func Default() *Config {
	return &Config{
		BindAddr:                 ":8080",
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
		MetricsNamespace:         "enrollassist",
		KnowledgeSource:          "auto",
		ContextWindow:            5,
		ThinkDelayMin:            700 * time.Millisecond,
		ThinkDelayMax:            1500 * time.Millisecond,
		RevealDelayMin:           30 * time.Millisecond,
		RevealDelayMax:           80 * time.Millisecond,
		LogLevel:                 "info",
		LogFormat:                "json",
		LogMaxSizeMB:             50,
		LogMaxBackups:            5,
	}
}

// Load starts from Default, overlays the YAML file at path (if it exists) and then
// APP_* environment variables. DATABASE_URL is honoured when database_url is unset.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	// APP_THINK_DELAY_MIN -> think_delay_min. Empty variables are skipped.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		if strings.TrimSpace(os.Getenv(s)) == "" {
			return ""
		}
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	cfg.KnowledgePath = splitList(cfg.KnowledgePath)
	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validSources = map[string]bool{
	"auto": true, "embedded": true, "file": true, "postgres": true, "sqlite": true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BindAddr) == "" {
		return fmt.Errorf("bind_addr is required")
	}
	if c.SessionInactivityTimeout < 5*time.Second {
		return fmt.Errorf("session_inactivity_timeout must be at least 5s")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	if strings.TrimSpace(c.MetricsNamespace) == "" {
		return fmt.Errorf("metrics_namespace is required")
	}
	source := strings.ToLower(strings.TrimSpace(c.KnowledgeSource))
	if !validSources[source] {
		return fmt.Errorf("invalid knowledge_source %q: must be one of auto, embedded, file, postgres, sqlite", c.KnowledgeSource)
	}
	if source == "file" && len(c.KnowledgePath) == 0 {
		return fmt.Errorf("knowledge_source file requires knowledge_path")
	}
	if source == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("knowledge_source postgres requires database_url or DATABASE_URL")
	}
	if source == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("knowledge_source sqlite requires sqlite_path")
	}
	if c.ContextWindow < 1 {
		return fmt.Errorf("context_window must be at least 1")
	}
	if c.ThinkDelayMin < 0 || c.ThinkDelayMax < c.ThinkDelayMin {
		return fmt.Errorf("think delay range [%s, %s] is invalid", c.ThinkDelayMin, c.ThinkDelayMax)
	}
	if c.RevealDelayMin < 0 || c.RevealDelayMax < c.RevealDelayMin {
		return fmt.Errorf("reveal delay range [%s, %s] is invalid", c.RevealDelayMin, c.RevealDelayMax)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log_format %q: must be json or console", c.LogFormat)
	}
	if c.LogMaxSizeMB < 1 || c.LogMaxBackups < 0 {
		return fmt.Errorf("log rotation needs log_max_size_mb >= 1 and log_max_backups >= 0")
	}
	return nil
}

func (c *Config) KnowledgeOptions() knowledge.SourceOptions {
	return knowledge.SourceOptions{
		Mode:        c.KnowledgeSource,
		Patterns:    c.KnowledgePath,
		DatabaseURL: c.DatabaseURL,
		SQLitePath:  c.SQLitePath,
	}
}

func (c *Config) LogConfig(verbose bool) observability.LogConfig {
	return observability.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		File:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		Verbose:    verbose,
	}
}

// splitList flattens comma-separated items, which is how list values arrive from env.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
