package core

import (
	"context"
	"fmt"
	"strings"

	"societycore/internal/config"
	"societycore/internal/infra/persistence/memory"
	"societycore/internal/infra/persistence/postgres"
	"societycore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Store is a persistent store that owns resources released by Close.
type Store interface {
	PersistentStore
	Close() error
}

// OpenPersistentStore selects a backend from cfg. Defaults to sqlite when unset.
func OpenPersistentStore(ctx context.Context, cfg config.Storage, engine *RulesEngine) (Store, error) {
	driver := StorageDriver(strings.ToLower(strings.TrimSpace(cfg.Driver)))
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		s, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StoragePostgres:
		s, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
