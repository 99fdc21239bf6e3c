package core

import (
	"context"
	"fmt"
	"time"

	"societycore/pkg/domain"
)

const ruleAssignmentIntegrity = "assignment_integrity"

// NewAssignmentIntegrityRule blocks assignments whose unit or profile is missing
// or belongs to another organization, and units with more than one current
// primary owner.
func NewAssignmentIntegrityRule(now func() time.Time) domain.Rule {
	return assignmentIntegrityRule{now: clockOrNow(now)}
}

type assignmentIntegrityRule struct {
	now func() time.Time
}

func (assignmentIntegrityRule) Name() string { return ruleAssignmentIntegrity }

func (r assignmentIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	block := func(a domain.UnitAssignment, format string, args ...any) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     ruleAssignmentIntegrity,
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf(format, args...),
			Entity:   domain.EntityUnitAssignment,
			EntityID: a.ID,
		})
	}

	touchedUnits := make(map[string]domain.UnitAssignment)
	for _, rec := range mutated(changes, domain.EntityUnitAssignment) {
		a := rec.(domain.UnitAssignment)
		unit, ok := view.Units().Get(a.UnitID)
		if !ok {
			block(a, "assignment %s references unknown unit %s", a.ID, a.UnitID)
		} else if unit.OrganizationID != a.OrganizationID {
			block(a, "unit %s belongs to another organization", unit.Label())
		}
		profile, ok := view.Profiles().Get(a.ProfileID)
		if !ok {
			block(a, "assignment %s references unknown profile %s", a.ID, a.ProfileID)
		} else if profile.OrganizationID != a.OrganizationID {
			block(a, "profile %s belongs to another organization", profile.Email)
		}
		if a.EndDate != nil && a.EndDate.Before(a.StartDate) {
			block(a, "assignment %s ends before it starts", a.ID)
		}
		touchedUnits[a.UnitID] = a
	}
	if len(touchedUnits) == 0 {
		return res, nil
	}

	now := r.now()
	owners := make(map[string]int)
	for _, a := range view.Assignments().List() {
		if _, ok := touchedUnits[a.UnitID]; !ok {
			continue
		}
		if a.Primary && a.Relationship == domain.RelationshipOwner && (a.EndDate == nil || a.EndDate.After(now)) {
			owners[a.UnitID]++
		}
	}
	for unitID, count := range owners {
		if count > 1 {
			block(touchedUnits[unitID], "unit %s has %d current primary owners", unitID, count)
		}
	}
	return res, nil
}
