package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"failsight/api"
	"failsight/gate"
	"failsight/logger"
	"failsight/store"
)

const defaultPurgeInterval = 5 * time.Minute

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API with metrics and gate-protected demo routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *Config) error {
	log, err := newLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer log.Close()

	p, err := newPipeline(ctx, cfg, log)
	if err != nil {
		log.Error("failsight.init_failed", logger.Err(err))
		return err
	}
	defer p.Close()

	gcfg, err := cfg.GateConfig()
	if err != nil {
		return err
	}
	g := gate.New(gcfg, p.analyzer, log)

	authToken := cfg.Server.AuthToken
	if authToken == "" {
		authToken = os.Getenv("FAILSIGHT_ADMIN_TOKEN")
	}
	admin := api.NewServer(p.analyzer, g, p.registry, log, authToken)

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           admin.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	purgeCtx, stopPurge := context.WithCancel(context.Background())
	defer stopPurge()
	if purger, ok := p.cache.(store.Purger); ok {
		go purgeLoop(purgeCtx, purger, ParseDuration(cfg.Server.PurgeInterval, defaultPurgeInterval), log)
	}

	fatalCh := make(chan error, 1)
	go func() {
		log.Info("admin.listening", logger.String("addr", cfg.Server.Listen))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("admin.listen_failed", logger.Err(err))
			fatalCh <- err
		}
	}()

	log.Info("failsight.ready",
		logger.Bool("explain", gcfg.Enabled),
		logger.String("listen", cfg.Server.Listen),
	)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("failsight.shutdown")
	case runErr = <-fatalCh:
		log.Error("failsight.fatal", logger.Err(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("admin.shutdown_failed", logger.Err(err))
	}

	log.Info("failsight.stopped")
	if runErr != nil {
		return fmt.Errorf("admin server: %w", runErr)
	}
	return nil
}

// purgeLoop removes expired cache rows until ctx is cancelled. Backends that
// expire entries on their own do not implement store.Purger.
func purgeLoop(ctx context.Context, p store.Purger, interval time.Duration, log logger.Logger) {
	if interval <= 0 {
		interval = defaultPurgeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PurgeExpired(ctx); err != nil {
				log.Warn("store.purge_failed", logger.Err(err))
			}
		}
	}
}
