package domain

import "fmt"

// Scope carries the tenant and actor a service call runs on behalf of.
// It is passed explicitly; services never look up the current user ambiently.
type Scope struct {
	OrganizationID string
	ActorID        string
	Role           Role
}

// System is the scope used by bootstrap and maintenance tasks.
func System(orgID string) Scope {
	return Scope{OrganizationID: orgID, ActorID: "system", Role: RoleSuperAdmin}
}

// Allows reports whether the scope may address records of orgID.
func (s Scope) Allows(orgID string) bool {
	if s.Role == RoleSuperAdmin {
		return true
	}
	return s.OrganizationID != "" && s.OrganizationID == orgID
}

// Check returns ErrForbidden when the record lies outside the scope.
func (s Scope) Check(rec Scoped) error {
	if !s.Allows(rec.OrgID()) {
		return fmt.Errorf("%w: organization %q outside scope", ErrForbidden, rec.OrgID())
	}
	return nil
}

// RequireManager rejects scopes that may not write shared records.
func (s Scope) RequireManager() error {
	if !s.Role.CanManage() {
		return fmt.Errorf("%w: role %q cannot manage organization records", ErrForbidden, s.Role)
	}
	return nil
}

// RequireAdmin rejects scopes without administrative rights.
func (s Scope) RequireAdmin() error {
	if !s.Role.IsAdmin() {
		return fmt.Errorf("%w: role %q is not an administrator", ErrForbidden, s.Role)
	}
	return nil
}

// RequireOrganization rejects scopes not bound to a concrete organization.
func (s Scope) RequireOrganization() error {
	if s.OrganizationID == "" {
		return fmt.Errorf("%w: an organization is required", ErrInvalidValue)
	}
	return nil
}
