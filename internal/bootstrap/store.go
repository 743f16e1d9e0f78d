// Package bootstrap opens the backing services shared by the API and the repair worker.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/docstore"
	"github.com/noah-isme/campus-attendance-api/pkg/config"
	"github.com/noah-isme/campus-attendance-api/pkg/database"
)

// Check reports whether a dependency can serve traffic.
type Check func(ctx context.Context) error

// Store is an opened document store with its lifecycle hooks.
type Store struct {
	docstore.Store
	Driver string
	Ready  Check
	Close  func() error
}

// OpenStore connects the backend selected by STORE_DRIVER and wraps it with the observer.
func OpenStore(ctx context.Context, cfg *config.Config, observer docstore.Observer, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		store docstore.Store
		ready Check
		done  func() error
	)

	switch cfg.Store.Driver {
	case "", config.StoreMemory:
		store = docstore.NewMemoryStore()
		ready = func(context.Context) error { return nil }
		done = func() error { return nil }
	case config.StorePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := database.RunMigrations(db.DB, logger); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		store = docstore.NewPostgresStore(db)
		ready = db.PingContext
		done = db.Close
	case config.StoreMongo:
		session, err := database.NewMongo(cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		store = docstore.NewMongoStore(session, cfg.Mongo.Database)
		ready = func(context.Context) error { return session.Ping() }
		done = func() error {
			session.Close()
			return nil
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	logger.Info("document store ready", zap.String("driver", driverName(cfg.Store.Driver)))

	return &Store{
		Store:  docstore.Instrument(store, observer),
		Driver: driverName(cfg.Store.Driver),
		Ready:  ready,
		Close:  done,
	}, nil
}

func driverName(driver string) string {
	if driver == "" {
		return config.StoreMemory
	}
	return driver
}
