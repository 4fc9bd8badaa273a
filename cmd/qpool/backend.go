package main

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"log/slog"

	"github.com/codewandler/qpool-go/adapters/nats"
	"github.com/codewandler/qpool-go/adapters/sql"
	"github.com/codewandler/qpool-go/core/es"
	"github.com/codewandler/qpool-go/internal/config"
)

type backend struct {
	store       es.EventStore
	snapshotter es.Snapshotter
	closers     []func() error
}

func (b *backend) Close() error {
	var firstErr error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func openBackend(ctx context.Context, log *slog.Logger, cfg config.StoreConfig) (*backend, error) {
	log.Debug("opening store", slog.String("backend", cfg.Backend))

	switch cfg.Backend {
	case config.BackendMemory:
		return &backend{
			store:       es.NewInMemoryStore(),
			snapshotter: es.NewInMemorySnapshotter(),
		}, nil

	case config.BackendSQLite, config.BackendMySQL:
		return openSQL(ctx, log, cfg)

	case config.BackendNATS:
		return openNATS(ctx, log, cfg.NATS)

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
}

func openSQL(ctx context.Context, log *slog.Logger, cfg config.StoreConfig) (*backend, error) {
	dialect, err := sql.DialectFor(cfg.Backend)
	if err != nil {
		return nil, err
	}

	var db *stdsql.DB
	if cfg.Backend == config.BackendMySQL {
		db, err = sql.OpenMySQL(ctx, cfg.MySQL.DSN)
	} else {
		db, err = sql.OpenSQLite(ctx, cfg.SQLite.Path)
	}
	if err != nil {
		return nil, err
	}

	store, err := sql.NewEventStore(ctx, sql.Config{DB: db, Dialect: dialect, Log: log})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &backend{
		store:       store,
		snapshotter: sql.NewSnapshotter(db, dialect),
		closers:     []func() error{store.Close},
	}, nil
}

func openNATS(ctx context.Context, log *slog.Logger, cfg config.NATSConfig) (*backend, error) {
	connect := nats.ReuseConnection(nats.ConnectURL(cfg.URL))

	store, err := nats.NewEventStore(ctx, nats.EventStoreConfig{
		Connect:       connect,
		Log:           log,
		SubjectPrefix: cfg.SubjectPrefix,
		MemoryStorage: cfg.MemoryStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("nats event store: %w", err)
	}

	snapshotter, kvStore, err := nats.NewSnapshotter(ctx, nats.KvConfig{
		Connect:       connect,
		Bucket:        cfg.SnapshotBucket,
		MemoryStorage: cfg.MemoryStorage,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("nats snapshots: %w", err)
	}

	return &backend{
		store:       store,
		snapshotter: snapshotter,
		closers:     []func() error{store.Close, kvStore.Close},
	}, nil
}
