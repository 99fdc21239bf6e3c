// Package core hosts the transactional service layer: built-in rules, storage
// selection, scoped CRUD for tenant records, metrics and the audit feed.
package core

import (
	"time"

	"societycore/pkg/domain"
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	return domain.NewRulesEngine(
		NewOrganizationScopeRule(),
		NewAssignmentIntegrityRule(nil),
		NewProfileValidityWindowRule(),
		NewUnitOccupancyRule(nil),
	)
}

func clockOrNow(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

func mutated(changes []Change, entity EntityType) []any {
	var out []any
	for _, c := range changes {
		if c.Entity == entity && c.Action != ActionDelete && c.After != nil {
			out = append(out, c.After)
		}
	}
	return out
}
