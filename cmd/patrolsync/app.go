package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/guardtrack/patrolsync/internal/config"
	"github.com/guardtrack/patrolsync/internal/model"
	"github.com/guardtrack/patrolsync/internal/remote"
	"github.com/guardtrack/patrolsync/internal/store"
	"github.com/guardtrack/patrolsync/internal/syncer"
	"github.com/guardtrack/patrolsync/internal/token"
)

// app bundles the pieces most commands need.
type app struct {
	cfg    *config.Config
	st     *store.Store
	tokens *token.Store
	client *remote.Client
}

// openApp loads config and opens the local store and backend client.
// The caller must Close() it.
func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}
	if err := st.InitSchema(); err != nil {
		_ = st.Close()
		return nil, err
	}

	tokens := token.NewStore(cfg.TokenPath())

	client, err := remote.NewClient(remote.Config{
		BaseURL:  cfg.Server.URL,
		DeviceID: cfg.Device.ID,
		Timeout:  cfg.Server.Timeout,
	}, tokens)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &app{cfg: cfg, st: st, tokens: tokens, client: client}, nil
}

func (a *app) Close() error {
	return a.st.Close()
}

// newOrchestrator builds the sync orchestrator from config. logger may
// be nil to use the default.
func (a *app) newOrchestrator(logger *log.Logger) (*syncer.Orchestrator, error) {
	orchCfg := syncer.DefaultConfig()
	orchCfg.Logger = logger
	orchCfg.Retry.MaxAttempts = a.cfg.Sync.Retry.MaxAttempts
	orchCfg.Retry.BaseDelay = a.cfg.Sync.Retry.BaseDelay
	orchCfg.Retry.MaxDelay = a.cfg.Sync.Retry.MaxDelay
	orchCfg.Breaker.MaxFailures = a.cfg.Sync.Breaker.MaxFailures
	orchCfg.Breaker.BaseCooldown = a.cfg.Sync.Breaker.BaseCooldown
	orchCfg.Breaker.MaxCooldown = a.cfg.Sync.Breaker.MaxCooldown
	orchCfg.EventBuffer = a.cfg.Sync.EventBuffer

	return syncer.New(a.st, remote.Handlers(a.client), orchCfg)
}

// capture enqueues one record and reports the queue position.
func (a *app) capture(ctx context.Context, entityType model.EntityType, payload any) (*model.SyncRecord, error) {
	rec, err := model.NewRecord(entityType, payload, time.Now())
	if err != nil {
		return nil, err
	}
	if err := a.st.EnqueueContext(ctx, rec); err != nil {
		return nil, fmt.Errorf("queue %s: %w", entityType, err)
	}
	return rec, nil
}
