package core

import (
	"context"
	"fmt"

	"societycore/pkg/domain"
)

// resource describes how one tenant record type is stored and guarded.
type resource[T domain.Scoped] struct {
	entity domain.EntityType
	table  func(Transaction) domain.Table[T]
	view   func(TransactionView) domain.ReadTable[T]
	// prepare normalizes and validates rec before it is written.
	prepare func(view TransactionView, scope domain.Scope, rec *T) error
	// canWrite guards create, update and delete.
	canWrite func(scope domain.Scope, rec T) error
	// canRead hides records from list and get; nil admits everything in scope.
	canRead func(scope domain.Scope, rec T) bool
}

func (r resource[T]) readable(scope domain.Scope, rec T) bool {
	return r.canRead == nil || r.canRead(scope, rec)
}

func notFound(entity domain.EntityType, id string) error {
	return fmt.Errorf("%w: %s %s", domain.ErrNotFound, entity, id)
}

func createRecord[T domain.Scoped](ctx context.Context, s *Service, r resource[T], scope domain.Scope, rec T) (T, Result, error) {
	var created T
	res, err := s.Run(ctx, "create_"+string(r.entity), scope, func(tx Transaction) error {
		if err := r.prepare(tx.Snapshot(), scope, &rec); err != nil {
			return err
		}
		if err := scope.Check(rec); err != nil {
			return err
		}
		if err := r.canWrite(scope, rec); err != nil {
			return err
		}
		var err error
		created, err = r.table(tx).Create(rec)
		return err
	})
	return created, res, err
}

func updateRecord[T domain.Scoped](ctx context.Context, s *Service, r resource[T], scope domain.Scope, id string, mutator func(*T) error) (T, Result, error) {
	var updated T
	res, err := s.Run(ctx, "update_"+string(r.entity), scope, func(tx Transaction) error {
		existing, ok := domain.ScopedGet[T](r.table(tx), scope, id)
		if !ok || !r.readable(scope, existing) {
			return notFound(r.entity, id)
		}
		if err := r.canWrite(scope, existing); err != nil {
			return err
		}
		view := tx.Snapshot()
		var err error
		updated, err = r.table(tx).Update(id, func(rec *T) error {
			if err := mutator(rec); err != nil {
				return err
			}
			if (*rec).OrgID() != existing.OrgID() {
				return fmt.Errorf("%w: organization cannot change", domain.ErrInvalidValue)
			}
			if err := r.prepare(view, scope, rec); err != nil {
				return err
			}
			return r.canWrite(scope, *rec)
		})
		return err
	})
	return updated, res, err
}

func deleteRecord[T domain.Scoped](ctx context.Context, s *Service, r resource[T], scope domain.Scope, id string) (Result, error) {
	return s.Run(ctx, "delete_"+string(r.entity), scope, func(tx Transaction) error {
		existing, ok := domain.ScopedGet[T](r.table(tx), scope, id)
		if !ok || !r.readable(scope, existing) {
			return notFound(r.entity, id)
		}
		if err := r.canWrite(scope, existing); err != nil {
			return err
		}
		return r.table(tx).Delete(id)
	})
}

func getRecord[T domain.Scoped](ctx context.Context, s *Service, r resource[T], scope domain.Scope, id string) (T, error) {
	var rec T
	err := s.View(ctx, "get_"+string(r.entity), func(v TransactionView) error {
		got, ok := domain.ScopedGet(r.view(v), scope, id)
		if !ok || !r.readable(scope, got) {
			return notFound(r.entity, id)
		}
		rec = got
		return nil
	})
	return rec, err
}

func listRecords[T domain.Scoped](ctx context.Context, s *Service, r resource[T], scope domain.Scope) ([]T, error) {
	var out []T
	err := s.View(ctx, "list_"+string(r.entity), func(v TransactionView) error {
		for _, rec := range domain.ScopedList(r.view(v), scope) {
			if r.readable(scope, rec) {
				out = append(out, rec)
			}
		}
		return nil
	})
	return out, err
}

// defaultOrg stamps the caller's organization on records created without one.
func defaultOrg(scope domain.Scope, orgID *string) {
	if *orgID == "" {
		*orgID = scope.OrganizationID
	}
}

func managerOnly[T any](scope domain.Scope, _ T) error { return scope.RequireManager() }

func requireInOrg[T domain.Scoped](table domain.ReadTable[T], orgID, id string) bool {
	rec, ok := table.Get(id)
	return ok && rec.OrgID() == orgID
}
