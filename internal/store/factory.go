package store

import (
	"context"
	"fmt"
	"log/slog"
)

// Config selects and configures a backend.
type Config struct {
	// Driver is one of memory, surreal, badger, sqlite, postgres.
	Driver     string
	Surreal    SurrealConfig
	BadgerPath string
	SQLDSN     string
}

// Open creates the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("opening message store", "driver", cfg.Driver)

	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "memory":
		s = NewMemoryStore()
	case surrealDriver:
		s, err = ConnectSurreal(ctx, cfg.Surreal, logger)
	case badgerDriver:
		s, err = OpenBadger(cfg.BadgerPath, logger)
	case "sqlite", "postgres":
		s, err = OpenSQL(cfg.Driver, cfg.SQLDSN)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
