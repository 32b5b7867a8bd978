package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	pollengine "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine"
	fheadapter "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/adapters/fhe"
	postgresadapter "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/adapters/postgres"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/application/workers"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/entities"
	"github.com/ethanmiles0/VoteGrid/internal/platform/config"
	"github.com/ethanmiles0/VoteGrid/internal/platform/db"
	"github.com/ethanmiles0/VoteGrid/internal/platform/fhe"
	"github.com/ethanmiles0/VoteGrid/internal/platform/httpserver"
	"github.com/ethanmiles0/VoteGrid/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server        *httpserver.Server
	postgres      *db.Postgres
	sweeper       workers.FinalizeSweeper
	sweepEnabled  bool
	sweepInterval time.Duration
	logger        *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	bus          *messaging.Kafka
	outboxRelay  workers.OutboxRelay
	projection   *workers.FinalizedPollProjection
	relayEnabled bool
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	module, repo, err := buildPollModule(pg, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		// Counter handles live in this process's engine instance, so the
		// auto-finalize sweeper runs next to the HTTP handlers.
		sweeper: workers.FinalizeSweeper{
			Polls:  repo,
			Poller: module.Handler.Polls,
			Clock:  postgresadapter.SystemClock{},
			Logger: logger,
		},
		sweepEnabled:  cfg.EnablePollAutoFinalize,
		sweepInterval: 2 * time.Second,
		logger:        logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	return &WorkerApp{
		postgres: pg,
		bus:      kafka,
		outboxRelay: workers.OutboxRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		projection:   &workers.FinalizedPollProjection{Logger: logger},
		relayEnabled: cfg.EnableOutboxRelay,
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func buildPollModule(pg *db.Postgres, logger *slog.Logger) (pollengine.Module, *postgresadapter.Repository, error) {
	cipher, err := fhe.New(uint64(entities.MaxOptions), logger)
	if err != nil {
		return pollengine.Module{}, nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	module := pollengine.NewModule(pollengine.Dependencies{
		Polls:   repo,
		Ledger:  repo,
		Ballots: repo,
		Cipher:  &fheadapter.Engine{Service: cipher},
		Outbox:  repo,
		Clock:   postgresadapter.SystemClock{},
		IDGen:   postgresadapter.UUIDGenerator{},
		Logger:  logger,
	})
	return module, repo, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"auto_finalize_enabled", a.sweepEnabled,
		)
	}
	if a.sweepEnabled {
		go a.runFinalizeSweep(ctx)
	}
	return a.server.Start()
}

// runFinalizeSweep drives the sweeper on a fixed interval. A failed cycle is
// logged and retried on the next tick rather than taking the API down.
func (a *APIApp) runFinalizeSweep(ctx context.Context) {
	ticker := time.NewTicker(a.sweepInterval)
	defer ticker.Stop()

	for {
		if err := a.sweeper.RunOnce(ctx); err != nil && a.logger != nil {
			a.logger.Error("finalize sweep cycle failed",
				"event", "bootstrap_finalize_sweep_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"outbox_relay_enabled", w.relayEnabled,
	)

	if err := w.bus.Subscribe(ctx, "poll.finalized", "poll-engine-finalized-projection", w.projection.Handle); err != nil {
		return err
	}

	for {
		if w.relayEnabled {
			if err := w.outboxRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
