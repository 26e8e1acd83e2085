package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"feasibility-engine/internal/api"
	"feasibility-engine/internal/config"
	"feasibility-engine/internal/engine"
	"feasibility-engine/internal/obfuscation"
	"feasibility-engine/internal/storage"
	"feasibility-engine/internal/upstream"
)

// NewEngine builds the query engine for wh with the configured wake retry.
func NewEngine(cfg config.Config, wh storage.Warehouse) *engine.QueryEngine {
	return engine.NewEngine(wh, engine.WithWakeRetry(storage.RetryPolicy{
		Retries: cfg.Datasource.WakeRetries,
		Delay:   cfg.WakeDelay(),
		Match:   storage.MatchErrorCode(cfg.Datasource.WakeErrorCode),
	}))
}

// Filters returns the daemon's disclosure filters: the filters file when one
// is configured, otherwise the threshold and rounding settings.
func Filters(cfg config.Config) (obfuscation.Filters, error) {
	if cfg.Obfuscation.FiltersFile != "" {
		return obfuscation.LoadFilters(cfg.Obfuscation.FiltersFile)
	}
	return obfuscation.FromSettings(cfg.Obfuscation.LowNumberSuppressionThreshold, cfg.Obfuscation.RoundingTarget), nil
}

// Run serves the ops API and, when the task API is configured, polls it for
// jobs. It returns once ctx is cancelled and both have stopped.
func Run(ctx context.Context, cfg config.Config) error {
	wh, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer wh.Close()
	log.Info().Str("dsn", cfg.DSNRedacted()).Msg("warehouse connected")

	filters, err := Filters(cfg)
	if err != nil {
		return err
	}
	eng := NewEngine(cfg, wh)

	var status api.StatusSource
	var poller *upstream.Poller
	if cfg.PollingEnabled() {
		client, err := upstream.NewClient(cfg)
		if err != nil {
			return fmt.Errorf("init task api client: %w", err)
		}
		poller = upstream.NewPoller(client, upstream.NewHandler(eng, client, filters), upstream.PollerConfigFrom(cfg))
		status = poller
	} else {
		log.Warn().Msg("task api not configured; polling disabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Router(api.NewQueryHandler(eng, wh, status, filters)),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutdown...")
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})
	if poller != nil {
		g.Go(func() error { return poller.Run(gctx) })
	}
	return g.Wait()
}
