package main

import (
	"context"
	"errors"

	"readiness-sync/internal/config"
	"readiness-sync/internal/repository"
	"readiness-sync/internal/service"
	"readiness-sync/internal/transport"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// app is everything one command invocation needs, wired from config.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *badger.DB
	store     *service.VentureStore
	tracker   *service.ChangeTracker
	cache     *service.ReadCache
	beacon    *transport.BeaconTransport
	submitter *service.Submitter
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	db, err := repository.OpenBadger(repository.BadgerConfig{
		Path:       cfg.Store.Path,
		InMemory:   cfg.Store.InMemory,
		SyncWrites: cfg.Store.SyncWrites,
	}, logger)
	if err != nil {
		return nil, err
	}

	prefs := repository.NewPreferenceRepository(db)
	store := service.NewVentureStore(
		repository.NewVentureRepository(db),
		prefs,
		repository.NewHistoryRepository(db, cfg.Store.HistoryLimit),
		logger,
		nil,
	)
	tracker := service.NewChangeTracker(nil)

	opts := transport.Options{
		Endpoint:      cfg.Client.ProxyURL,
		SigningSecret: cfg.Client.SigningSecret,
		TokenTTL:      cfg.Client.TokenTTL,
	}
	primary := transport.NewCallbackTransport(opts)
	beacon := transport.NewBeaconTransport(opts, cfg.Sync.BeaconDelay, cfg.Sync.BeaconTimeout, logger)

	cache := service.NewReadCache(
		service.NewRemoteReader(primary, cfg.Cache.ReadTimeout),
		service.CacheOptions{
			NameIndexTTL:   cfg.Cache.NameIndexTTL,
			HistoryTTL:     cfg.Cache.HistoryTTL,
			ReadTimeout:    cfg.Cache.ReadTimeout,
			NameIndexLimit: cfg.Cache.NameIndexLimit,
			HistoryLimit:   cfg.Cache.HistoryLimit,
		},
		logger,
		nil,
		service.WithListingStore(repository.NewListingRepository(db)),
	)

	client := service.NewSyncClient(primary, beacon, store, tracker, cache, service.SyncOptions{
		MaxRetries:     cfg.Sync.MaxRetries,
		BaseDelay:      cfg.Sync.BaseDelay,
		AttemptTimeout: cfg.Sync.AttemptTimeout,
	}, logger)

	sc := service.NewSyncContext()
	store.Restore(sc)

	return &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		store:     store,
		tracker:   tracker,
		cache:     cache,
		beacon:    beacon,
		submitter: service.NewSubmitter(client, tracker, sc, cfg.Sync.Cooldown, logger, nil, service.WithCooldownStore(prefs)),
	}, nil
}

func (a *app) sc() *service.SyncContext {
	return a.submitter.Context()
}

// close waits for outstanding beacons before releasing the store.
func (a *app) close(ctx context.Context) error {
	flushErr := a.beacon.Flush(ctx)
	closeErr := a.db.Close()
	a.logger.Sync()
	return errors.Join(flushErr, closeErr)
}
