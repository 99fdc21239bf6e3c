package core

import (
	"context"
	"fmt"

	"societycore/pkg/domain"
)

const ruleOrganizationScope = "organization_scope"

// NewOrganizationScopeRule blocks tenant records that reference a missing organization.
// Profiles may be unscoped until provisioning attaches them.
func NewOrganizationScopeRule() domain.Rule { return organizationScopeRule{} }

type organizationScopeRule struct{}

func (organizationScopeRule) Name() string { return ruleOrganizationScope }

func (organizationScopeRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, c := range changes {
		if c.Action == domain.ActionDelete || c.Entity == domain.EntityOrganization {
			continue
		}
		rec, ok := c.After.(domain.Scoped)
		if !ok {
			continue
		}
		id := ""
		if ident, ok := c.After.(domain.Identified); ok {
			id = ident.RecordID()
		}
		orgID := rec.OrgID()
		switch {
		case orgID == "" && c.Entity == domain.EntityProfile:
			continue
		case orgID == "":
			res.Violations = append(res.Violations, domain.Violation{
				Rule: ruleOrganizationScope, Severity: domain.SeverityBlock,
				Message: fmt.Sprintf("%s %s has no organization", c.Entity, id),
				Entity:  c.Entity, EntityID: id,
			})
		default:
			if _, ok := view.Organizations().Get(orgID); !ok {
				res.Violations = append(res.Violations, domain.Violation{
					Rule: ruleOrganizationScope, Severity: domain.SeverityBlock,
					Message: fmt.Sprintf("%s %s references unknown organization %s", c.Entity, id, orgID),
					Entity:  c.Entity, EntityID: id,
				})
			}
		}
	}
	return res, nil
}
