package core

import (
	"context"

	"societycore/pkg/domain"
)

var units = resource[domain.Unit]{
	entity: domain.EntityUnit,
	table:  func(tx Transaction) domain.Table[domain.Unit] { return tx.Units() },
	view:   func(v TransactionView) domain.ReadTable[domain.Unit] { return v.Units() },
	prepare: func(_ TransactionView, scope domain.Scope, u *domain.Unit) error {
		defaultOrg(scope, &u.OrganizationID)
		problems := domain.ValidationErrors{}
		u.Block = domain.SanitizeText(u.Block)
		u.Number = domain.SanitizeText(u.Number)
		u.Floor = domain.SanitizeText(u.Floor)
		if u.Number == "" {
			problems.Add("number", "is required")
		}
		if u.Kind == "" {
			u.Kind = domain.UnitResidential
		}
		if kind, err := domain.ParseUnitKind(string(u.Kind)); err != nil {
			problems.Add("kind", err.Error())
		} else {
			u.Kind = kind
		}
		if u.Status == "" {
			u.Status = domain.UnitVacant
		}
		if status, err := domain.ParseUnitStatus(string(u.Status)); err != nil {
			problems.Add("status", err.Error())
		} else {
			u.Status = status
		}
		if u.AreaSqft < 0 {
			problems.Add("area_sqft", "must not be negative")
		}
		return problems.Err()
	},
	canWrite: managerOnly[domain.Unit],
}

// CreateUnit persists a new unit. Kind defaults to residential and status to vacant.
func (s *Service) CreateUnit(ctx context.Context, scope domain.Scope, u domain.Unit) (domain.Unit, Result, error) {
	return createRecord(ctx, s, units, scope, u)
}

// UpdateUnit mutates a unit using the provided mutator.
func (s *Service) UpdateUnit(ctx context.Context, scope domain.Scope, id string, mutator func(*domain.Unit) error) (domain.Unit, Result, error) {
	return updateRecord(ctx, s, units, scope, id, mutator)
}

// DeleteUnit removes a unit without assignments.
func (s *Service) DeleteUnit(ctx context.Context, scope domain.Scope, id string) (Result, error) {
	return deleteRecord(ctx, s, units, scope, id)
}

// GetUnit fetches one unit.
func (s *Service) GetUnit(ctx context.Context, scope domain.Scope, id string) (domain.Unit, error) {
	return getRecord(ctx, s, units, scope, id)
}

// ListUnits returns the units visible to scope.
func (s *Service) ListUnits(ctx context.Context, scope domain.Scope) ([]domain.Unit, error) {
	return listRecords(ctx, s, units, scope)
}
