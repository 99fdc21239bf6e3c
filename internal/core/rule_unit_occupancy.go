package core

import (
	"context"
	"fmt"
	"time"

	"societycore/pkg/domain"
)

const ruleUnitOccupancy = "unit_occupancy_consistency"

// NewUnitOccupancyRule warns when a unit marked vacant still has active assignments.
func NewUnitOccupancyRule(now func() time.Time) domain.Rule {
	return unitOccupancyRule{now: clockOrNow(now)}
}

type unitOccupancyRule struct {
	now func() time.Time
}

func (unitOccupancyRule) Name() string { return ruleUnitOccupancy }

func (r unitOccupancyRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	touched := make(map[string]struct{})
	for _, rec := range mutated(changes, domain.EntityUnit) {
		touched[rec.(domain.Unit).ID] = struct{}{}
	}
	for _, c := range changes {
		if c.Entity == domain.EntityUnitAssignment {
			touched[c.Subject().(domain.UnitAssignment).UnitID] = struct{}{}
		}
	}
	if len(touched) == 0 {
		return domain.Result{}, nil
	}

	now := r.now()
	active := make(map[string]int)
	for _, a := range view.Assignments().List() {
		if a.ActiveAt(now) {
			active[a.UnitID]++
		}
	}
	var res domain.Result
	for id := range touched {
		unit, ok := view.Units().Get(id)
		if !ok || unit.Status != domain.UnitVacant || active[id] == 0 {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     ruleUnitOccupancy,
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("unit %s is marked vacant but has %d active assignments", unit.Label(), active[id]),
			Entity:   domain.EntityUnit,
			EntityID: id,
		})
	}
	return res, nil
}
