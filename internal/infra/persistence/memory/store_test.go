package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"societycore/pkg/domain"
)

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	var orgID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, ok := tx.Units().Get("missing")
		assert.False(t, ok)
		org, err := tx.Organizations().Create(domain.Organization{Name: "Green Acres"})
		if err != nil {
			return err
		}
		require.NotEmpty(t, org.ID)
		require.False(t, org.CreatedAt.IsZero())
		orgID = org.ID
		assert.Len(t, tx.Snapshot().Organizations().List(), 1)
		assert.Len(t, tx.Changes(), 1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, store.View(ctx, func(v domain.TransactionView) error {
		got, ok := v.Organizations().Get(orgID)
		require.True(t, ok)
		assert.Equal(t, "Green Acres", got.Name)
		return nil
	}))

	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	assertCount(t, store, 0)
	store.ImportState(snapshot)
	assertCount(t, store, 1)
	assert.NotNil(t, store.RulesEngine())
	assert.NotNil(t, store.NowFunc())
}

func assertCount(t *testing.T, store *Store, want int) {
	t.Helper()
	require.NoError(t, store.View(context.Background(), func(v domain.TransactionView) error {
		assert.Len(t, v.Organizations().List(), want)
		return nil
	}))
}

func TestStoreRollsBackOnError(t *testing.T) {
	store := NewStore(nil)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.Organizations().Create(domain.Organization{Name: "Lost"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assertCount(t, store, 0)
}

func TestStoreRuleViolation(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	res, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.Organizations().Create(domain.Organization{Name: "Fail"})
		return e
	})
	var violation domain.RuleViolationError
	require.ErrorAs(t, err, &violation)
	assert.True(t, res.HasBlocking())
	assertCount(t, store, 0)
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}}, nil
}

func TestStoreCancelledContext(t *testing.T) {
	store := NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	_, err := store.RunInTransaction(ctx, func(domain.Transaction) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestTableUpdateAndDelete(t *testing.T) {
	store := NewStore(nil)
	fixed := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })
	ctx := context.Background()

	var unit domain.Unit
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		org, err := tx.Organizations().Create(domain.Organization{Name: "Org"})
		if err != nil {
			return err
		}
		unit, err = tx.Units().Create(domain.Unit{OrganizationID: org.ID, Number: "101", Status: domain.UnitVacant})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, fixed, unit.CreatedAt)

	later := fixed.Add(time.Hour)
	store.SetNowFunc(func() time.Time { return later })
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		updated, err := tx.Units().Update(unit.ID, func(u *domain.Unit) error {
			u.ID = "hijack"
			u.Status = domain.UnitOwnerOccupied
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, unit.ID, updated.ID)
		assert.Equal(t, fixed, updated.CreatedAt)
		assert.Equal(t, later, updated.UpdatedAt)

		changes := tx.Changes()
		require.Len(t, changes, 1)
		assert.Equal(t, domain.ActionUpdate, changes[0].Action)
		assert.Equal(t, domain.UnitVacant, changes[0].Before.(domain.Unit).Status)

		_, err = tx.Units().Update("missing", func(*domain.Unit) error { return nil })
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, tx.Units().Delete("missing"), domain.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteGuards(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	var orgID, unitID, profileID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		org, _ := tx.Organizations().Create(domain.Organization{Name: "Org"})
		u, _ := tx.Units().Create(domain.Unit{OrganizationID: org.ID, Number: "1"})
		p, _ := tx.Profiles().Create(domain.Profile{OrganizationID: org.ID, Email: "a@b.co"})
		_, err := tx.Assignments().Create(domain.UnitAssignment{OrganizationID: org.ID, UnitID: u.ID, ProfileID: p.ID})
		orgID, unitID, profileID = org.ID, u.ID, p.ID
		return err
	})
	require.NoError(t, err)

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		assert.ErrorIs(t, tx.Units().Delete(unitID), domain.ErrConflict)
		assert.ErrorIs(t, tx.Profiles().Delete(profileID), domain.ErrConflict)
		assert.ErrorIs(t, tx.Organizations().Delete(orgID), domain.ErrConflict)
		return nil
	})
	require.NoError(t, err)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.Organizations().Create(domain.Organization{Base: domain.Base{ID: "org"}}); err != nil {
			return err
		}
		_, err := tx.Organizations().Create(domain.Organization{Base: domain.Base{ID: "org"}})
		return err
	})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestViewIsolation(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	until := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	var id string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		p, err := tx.Profiles().Create(domain.Profile{Email: "x@y.co", ActiveUntil: &until})
		id = p.ID
		return err
	})
	require.NoError(t, err)

	require.NoError(t, store.View(ctx, func(v domain.TransactionView) error {
		p, ok := v.Profiles().Get(id)
		require.True(t, ok)
		*p.ActiveUntil = until.AddDate(1, 0, 0)
		_, err := v.Profiles().(domain.Table[domain.Profile]).Create(domain.Profile{})
		assert.Error(t, err)
		return nil
	}))

	require.NoError(t, store.View(ctx, func(v domain.TransactionView) error {
		p, _ := v.Profiles().Get(id)
		assert.Equal(t, until, *p.ActiveUntil)
		return nil
	}))
}

func TestListOrdersByCreation(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * time.Minute)
		store.SetNowFunc(func() time.Time { return at })
		_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.Organizations().Create(domain.Organization{Name: name})
			return err
		})
		require.NoError(t, err)
	}
	require.NoError(t, store.View(ctx, func(v domain.TransactionView) error {
		list := v.Organizations().List()
		require.Len(t, list, 3)
		assert.Equal(t, "first", list[0].Name)
		assert.Equal(t, "third", list[2].Name)
		return nil
	}))
	assert.Len(t, BucketNames(), 16)
}

func TestRunTrackedReportsTouchedBuckets(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, changes, err := store.RunTracked(ctx, func(tx domain.Transaction) error {
		org, err := tx.Organizations().Create(domain.Organization{Name: "Elm Row"})
		if err != nil {
			return err
		}
		if _, err := tx.Units().Create(domain.Unit{OrganizationID: org.ID, Number: "1"}); err != nil {
			return err
		}
		_, err = tx.Units().Create(domain.Unit{OrganizationID: org.ID, Number: "2"})
		return err
	})
	require.NoError(t, err)
	require.Len(t, changes, 3)
	assert.Equal(t, []string{"organizations", "units"}, BucketsFor(changes))

	_, changes, err = store.RunTracked(ctx, func(domain.Transaction) error { return nil })
	require.NoError(t, err)
	assert.Empty(t, BucketsFor(changes))
}
