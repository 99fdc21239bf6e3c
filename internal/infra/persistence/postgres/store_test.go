package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"societycore/pkg/domain"
)

func TestNewStoreCreatesTableAndPersists(t *testing.T) {
	ctx := context.Background()
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(driverName, _ string) (*sql.DB, error) {
		assert.Equal(t, "pgx", driverName)
		return db, nil
	})
	defer restore()

	store, err := NewStore(ctx, "", domain.NewRulesEngine())
	require.NoError(t, err)
	assert.True(t, conn.sawExec("CREATE TABLE IF NOT EXISTS state"))

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.Organizations().Create(domain.Organization{Base: domain.Base{ID: "org-1"}, Name: "Lakeview"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"organizations"}, conn.bucketNames())
	assert.Contains(t, string(conn.payload("organizations")), "Lakeview")

	require.NoError(t, store.Flush(ctx))
	assert.Len(t, conn.bucketNames(), 16)
}

func TestNewStoreHydratesFromSnapshot(t *testing.T) {
	ctx := context.Background()
	db, conn := newStubDB()
	conn.put("organizations", []byte(`{"org-9":{"id":"org-9","name":"Hill Crest"}}`))
	conn.put("unknown", []byte(`{}`))
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore(ctx, "postgres://example", nil)
	require.NoError(t, err)
	require.NoError(t, store.View(ctx, func(v domain.TransactionView) error {
		org, ok := v.Organizations().Get("org-9")
		require.True(t, ok)
		assert.Equal(t, "Hill Crest", org.Name)
		return nil
	}))
}

func TestNewStoreErrors(t *testing.T) {
	ctx := context.Background()

	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("dial") })
	_, err := NewStore(ctx, "", nil)
	restore()
	require.ErrorContains(t, err, "open postgres")

	db, conn := newStubDB()
	conn.failPing = true
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	_, err = NewStore(ctx, "", nil)
	restore()
	require.ErrorContains(t, err, "ping postgres")

	db, conn = newStubDB()
	conn.put("profiles", []byte(`not json`))
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	_, err = NewStore(ctx, "", nil)
	restore()
	require.ErrorContains(t, err, "decode profiles")
}

func TestPersistFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	store, err := NewStore(ctx, "", nil)
	require.NoError(t, err)

	conn.failCommit = true
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.Organizations().Create(domain.Organization{Name: "x"})
		return err
	})
	require.ErrorContains(t, err, "commit postgres snapshot")
}

var stubSeq atomic.Int64

type stubDriver struct{ conn *stubConn }

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

type stubConn struct {
	mu         sync.Mutex
	execs      []string
	state      map[string][]byte
	failPing   bool
	failCommit bool
}

func newStubDB() (*sql.DB, *stubConn) {
	conn := &stubConn{state: map[string][]byte{}}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

func (c *stubConn) put(bucket string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[bucket] = payload
}

func (c *stubConn) payload(bucket string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state[bucket]
}

func (c *stubConn) bucketNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.state))
	for k := range c.state {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (c *stubConn) sawExec(prefix string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range c.execs {
		if strings.Contains(q, prefix) {
			return true
		}
	}
	return false
}

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return &stubTx{conn: c}, nil }

func (c *stubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return &stubTx{conn: c}, nil
}

func (c *stubConn) Ping(context.Context) error {
	if c.failPing {
		return errors.New("ping fail")
	}
	return nil
}

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	c.execs = append(c.execs, query)
	c.mu.Unlock()
	if strings.HasPrefix(strings.TrimSpace(query), "INSERT INTO state") && len(args) == 2 {
		bucket, _ := args[0].Value.(string)
		payload, _ := args[1].Value.([]byte)
		c.put(bucket, append([]byte(nil), payload...))
	}
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	rows := &stubRows{}
	for _, name := range c.bucketNames() {
		rows.rows = append(rows.rows, []driver.Value{name, c.payload(name)})
	}
	return rows, nil
}

type stubTx struct{ conn *stubConn }

func (t *stubTx) Commit() error {
	if t.conn.failCommit {
		return errors.New("commit fail")
	}
	return nil
}

func (t *stubTx) Rollback() error { return nil }

type stubRows struct {
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return []string{"bucket", "payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
