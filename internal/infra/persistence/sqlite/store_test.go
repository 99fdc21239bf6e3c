package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"societycore/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	ctx := context.Background()
	var orgID string
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		org, err := tx.Organizations().Create(domain.Organization{Name: "Persist", BrandColor: "hsl(200, 50%, 40%)"})
		if err != nil {
			return err
		}
		orgID = org.ID
		_, err = tx.Units().Create(domain.Unit{OrganizationID: org.ID, Block: "B", Number: "12", Status: domain.UnitVacant})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())
	require.NoError(t, store.Close())

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reloaded.Close() })
	require.NoError(t, reloaded.View(ctx, func(v domain.TransactionView) error {
		org, ok := v.Organizations().Get(orgID)
		require.True(t, ok)
		assert.Equal(t, "hsl(200, 50%, 40%)", org.BrandColor)
		units := v.Units().List()
		require.Len(t, units, 1)
		assert.Equal(t, "B-12", units[0].Label())
		return nil
	}))

	var buckets int
	require.NoError(t, reloaded.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&buckets))
	assert.Equal(t, 2, buckets)

	require.NoError(t, reloaded.Flush(ctx))
	require.NoError(t, reloaded.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&buckets))
	assert.Equal(t, 16, buckets)
}

func TestSQLiteStoreSkipsPersistOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.Units().Delete("missing")
	})
	require.ErrorIs(t, err, domain.ErrNotFound)

	var rows int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&rows))
	assert.Zero(t, rows)
}
