package core

import (
	"context"

	"societycore/pkg/domain"
)

const ruleProfileValidityWindow = "profile_validity_window"

// NewProfileValidityWindowRule blocks profiles whose active_until precedes active_from.
func NewProfileValidityWindowRule() domain.Rule {
	return domain.RuleFunc{RuleName: ruleProfileValidityWindow, Fn: checkProfileValidity}
}

func checkProfileValidity(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, rec := range mutated(changes, domain.EntityProfile) {
		p := rec.(domain.Profile)
		if p.ActiveFrom != nil && p.ActiveUntil != nil && p.ActiveUntil.Before(*p.ActiveFrom) {
			res.Add(domain.Violation{
				Rule:     ruleProfileValidityWindow,
				Severity: domain.SeverityBlock,
				Message:  "active_until precedes active_from for " + p.Email,
				Entity:   domain.EntityProfile,
				EntityID: p.ID,
			})
		}
	}
	return res, nil
}
