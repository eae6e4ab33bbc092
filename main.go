package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"failsight/agent"
	"failsight/analysis"
	"failsight/logger"
	"failsight/store"
)

const version = "0.3.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failsight: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "failsight",
		Short: "Explains application failures in plain English",
		Long: `failsight turns errors and panics into short English explanations with
probable causes and suggested fixes, and serves them in place of the default
error response.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newAnalyzeCmd(&configPath))
	return root
}

// newLogger builds the logger described by cfg: console output plus an
// optional NDJSON file.
func newLogger(cfg LoggerConfig) (logger.Logger, error) {
	level := logger.ParseLevel(cfg.Level)
	console := logger.NewConsole(level, cfg.Color)
	if !cfg.Structured.Enabled {
		return console, nil
	}

	structLog, err := logger.OpenStructured(cfg.Structured.Path, level)
	if err != nil {
		return nil, fmt.Errorf("init structured logger: %w", err)
	}
	return logger.Multi(console, structLog), nil
}

// pipeline holds the long-lived parts shared by serve and analyze.
type pipeline struct {
	analyzer *analysis.Analyzer
	cache    store.Store
	registry *prometheus.Registry
}

func (p *pipeline) Close() error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Close()
}

func newPipeline(ctx context.Context, cfg *Config, log logger.Logger) (*pipeline, error) {
	ag, err := agent.New(ctx, cfg.Agent, log)
	if err != nil {
		return nil, fmt.Errorf("init agent: %w", err)
	}

	if cfg.Cache.Type == store.TypeSQLite {
		if dir := filepath.Dir(cfg.Cache.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create cache dir: %w", err)
			}
		}
	}
	cache, err := store.Open(cfg.Cache, log)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	an := analysis.New(ag, cache, cfg.AnalysisConfig(), analysis.Options{
		Log:     log,
		Metrics: analysis.NewMetrics(reg),
	})

	log.Info("pipeline.ready",
		logger.String("agent", cfg.Agent.Provider),
		logger.String("cache", cfg.Cache.Type),
		logger.Int("timeout_ms", cfg.Explain.TimeoutMs),
		logger.Int("cache_ttl", *cfg.Explain.CacheTTL),
	)
	return &pipeline{analyzer: an, cache: cache, registry: reg}, nil
}
