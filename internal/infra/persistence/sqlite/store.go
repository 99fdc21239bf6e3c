// Package sqlite keeps the store state in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"societycore/internal/infra/persistence/snapshot"
	"societycore/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// DefaultPath is used when no path is configured.
const DefaultPath = "societycore.db"

// Store is a snapshot store on a single SQLite file.
type Store struct {
	*snapshot.Store
	path string
}

// NewStore opens (or creates) the database at path, creating parent dirs.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; SQLite serializes anyway and this avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	snap, err := snapshot.Open(context.Background(), db, snapshot.SQLite, engine)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: snap, path: path}, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }
