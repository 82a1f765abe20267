package commands

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/config"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/history"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/models"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/orchestrator"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/worker"
)

// app is the wired local backend.
type app struct {
	store    *history.Badger
	registry *models.Registry
	pool     *worker.Pool
	pipeline *orchestrator.Pipeline
}

func openApp(cfg *config.Root, log logrus.FieldLogger) (*app, error) {
	store, err := history.Open(history.Options{Dir: cfg.Paths.Data, Logger: log})
	if err != nil {
		return nil, err
	}
	registry := models.New(models.FromConfig(cfg, log), log)
	pool := worker.New(cfg.Workers.Size)
	return &app{
		store:    store,
		registry: registry,
		pool:     pool,
		pipeline: orchestrator.NewPipeline(orchestrator.Deps{
			Models:       registry,
			Pool:         pool,
			History:      store,
			Logger:       log,
			DefaultLimit: cfg.History.DefaultLimit,
		}),
	}, nil
}

// close drains the pool before releasing models and storage.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return errors.Join(a.pool.Close(ctx), a.registry.Close(), a.store.Close())
}

// release is close for deferred use; the error is logged.
func (a *app) release(log logrus.FieldLogger) {
	if err := a.close(); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}
