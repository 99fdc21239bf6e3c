// Package snapshot mirrors the in-memory store into a SQL table that holds one
// JSON payload per bucket. The sqlite and postgres drivers differ only in their
// Dialect.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"societycore/internal/infra/persistence/memory"
	"societycore/pkg/domain"
)

// Dialect holds the statements a backend needs.
type Dialect struct {
	Name        string
	CreateTable string
	Upsert      string
}

var (
	// SQLite stores payloads as BLOBs with positional placeholders.
	SQLite = Dialect{
		Name:        "sqlite",
		CreateTable: `CREATE TABLE IF NOT EXISTS state (bucket TEXT PRIMARY KEY, payload BLOB NOT NULL)`,
		Upsert:      `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
	}
	// Postgres stores payloads as JSONB.
	Postgres = Dialect{
		Name:        "postgres",
		CreateTable: `CREATE TABLE IF NOT EXISTS state (bucket TEXT PRIMARY KEY, payload JSONB NOT NULL)`,
		Upsert:      `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`,
	}
)

// Store is a memory.Store whose committed state is written back to db.
type Store struct {
	*memory.Store
	db      *sql.DB
	dialect Dialect
	mu      sync.Mutex
}

// Open creates the state table if needed and hydrates a memory store from it.
// The caller hands over db; Close releases it.
func Open(ctx context.Context, db *sql.DB, d Dialect, engine *domain.RulesEngine) (*Store, error) {
	if _, err := db.ExecContext(ctx, d.CreateTable); err != nil {
		return nil, fmt.Errorf("create %s state table: %w", d.Name, err)
	}
	snap, found, err := load(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	if found {
		mem.ImportState(snap)
	}
	return &Store{Store: mem, db: db, dialect: d}, nil
}

func load(ctx context.Context, db *sql.DB) (memory.Snapshot, bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snap memory.Snapshot
	targets := snap.Buckets()
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, false, fmt.Errorf("scan state: %w", err)
		}
		target, ok := targets[bucket]
		if !ok || len(payload) == 0 {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return memory.Snapshot{}, false, fmt.Errorf("decode %s: %w", bucket, err)
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("iterate state: %w", err)
	}
	return snap, found, nil
}

// RunInTransaction commits in memory, then writes the touched buckets. A
// failed write is returned to the caller; the in-memory state keeps the change
// and the next successful write of that bucket carries it.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, changes, err := s.RunTracked(ctx, fn)
	if err != nil {
		return res, err
	}
	if buckets := memory.BucketsFor(changes); len(buckets) > 0 {
		if err := s.write(ctx, buckets); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Flush writes every bucket.
func (s *Store) Flush(ctx context.Context) error {
	return s.write(ctx, memory.BucketNames())
}

func (s *Store) write(ctx context.Context, names []string) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.ExportState()
	buckets := snap.Buckets()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", s.dialect.Name, err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, name := range names {
		data, err := json.Marshal(buckets[name])
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, s.dialect.Upsert, name, data); err != nil {
			return fmt.Errorf("upsert %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s snapshot: %w", s.dialect.Name, err)
	}
	return nil
}

// DB exposes the connection pool for maintenance queries.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }
