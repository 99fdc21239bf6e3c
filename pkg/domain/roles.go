package domain

import (
	"fmt"
	"strings"
)

// Role enumerates member roles within an organization.
type Role string

// Supported roles.
const (
	RoleSuperAdmin      Role = "super_admin"
	RoleAdmin           Role = "admin"
	RoleCommitteeMember Role = "committee_member"
	RoleStaff           Role = "staff"
	RoleOwner           Role = "owner"
	RoleTenant          Role = "tenant"
	RoleFamilyMember    Role = "family_member"
)

// Roles lists every supported role in privilege order.
var Roles = []Role{RoleSuperAdmin, RoleAdmin, RoleCommitteeMember, RoleStaff, RoleOwner, RoleTenant, RoleFamilyMember}

// legacyRoles maps deprecated role names still found in imported data.
var legacyRoles = map[string]Role{
	"resident":      RoleOwner,
	"member":        RoleOwner,
	"manager":       RoleAdmin,
	"society_admin": RoleAdmin,
	"security":      RoleStaff,
	"guard":         RoleStaff,
	"family":        RoleFamilyMember,
	"renter":        RoleTenant,
}

// IsAdmin reports whether the role may administer an organization.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// CanManage reports whether the role may write shared organization records.
func (r Role) CanManage() bool {
	return r.IsAdmin() || r == RoleCommitteeMember || r == RoleStaff
}

// ParseRole resolves raw into a Role. Legacy aliases are accepted and reported
// through coerced so callers can surface the data-quality problem.
func ParseRole(raw string) (role Role, coerced bool, err error) {
	key := normalizeEnum(raw)
	for _, r := range Roles {
		if string(r) == key {
			return r, false, nil
		}
	}
	if r, ok := legacyRoles[key]; ok {
		return r, true, nil
	}
	return "", false, fmt.Errorf("%w: unknown role %q", ErrInvalidValue, raw)
}

// Status enumerates profile lifecycle states.
type Status string

// Supported statuses.
const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusPending   Status = "pending"
	StatusSuspended Status = "suspended"
)

var statuses = []Status{StatusActive, StatusInactive, StatusPending, StatusSuspended}

var legacyStatuses = map[string]Status{
	"enabled":  StatusActive,
	"disabled": StatusInactive,
	"invited":  StatusPending,
	"blocked":  StatusSuspended,
}

// ParseStatus resolves raw into a Status, accepting legacy aliases like ParseRole.
func ParseStatus(raw string) (status Status, coerced bool, err error) {
	key := normalizeEnum(raw)
	for _, s := range statuses {
		if string(s) == key {
			return s, false, nil
		}
	}
	if s, ok := legacyStatuses[key]; ok {
		return s, true, nil
	}
	return "", false, fmt.Errorf("%w: unknown status %q", ErrInvalidValue, raw)
}

// TwoFactorMethod enumerates the channels a one-time code can be sent through.
type TwoFactorMethod string

// Supported two-factor channels.
const (
	TwoFactorEmail    TwoFactorMethod = "email"
	TwoFactorSMS      TwoFactorMethod = "sms"
	TwoFactorWhatsApp TwoFactorMethod = "whatsapp"
)

// ParseTwoFactorMethod validates a channel name.
func ParseTwoFactorMethod(raw string) (TwoFactorMethod, error) {
	switch m := TwoFactorMethod(normalizeEnum(raw)); m {
	case TwoFactorEmail, TwoFactorSMS, TwoFactorWhatsApp:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown two-factor method %q", ErrInvalidValue, raw)
}

// UnitKind classifies a unit.
type UnitKind string

// Unit kinds.
const (
	UnitResidential UnitKind = "residential"
	UnitCommercial  UnitKind = "commercial"
	UnitParking     UnitKind = "parking"
)

// ParseUnitKind validates a unit kind.
func ParseUnitKind(raw string) (UnitKind, error) {
	switch k := UnitKind(normalizeEnum(raw)); k {
	case UnitResidential, UnitCommercial, UnitParking:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown unit kind %q", ErrInvalidValue, raw)
}

// UnitStatus captures occupancy of a unit.
type UnitStatus string

// Occupancy states.
const (
	UnitVacant           UnitStatus = "vacant"
	UnitOwnerOccupied    UnitStatus = "owner_occupied"
	UnitTenantOccupied   UnitStatus = "tenant_occupied"
	UnitUnderMaintenance UnitStatus = "under_maintenance"
)

// ParseUnitStatus validates an occupancy state.
func ParseUnitStatus(raw string) (UnitStatus, error) {
	switch s := UnitStatus(normalizeEnum(raw)); s {
	case UnitVacant, UnitOwnerOccupied, UnitTenantOccupied, UnitUnderMaintenance:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown unit status %q", ErrInvalidValue, raw)
}

// Relationship describes how a profile occupies a unit.
type Relationship string

// Assignment relationships.
const (
	RelationshipOwner        Relationship = "owner"
	RelationshipTenant       Relationship = "tenant"
	RelationshipFamilyMember Relationship = "family_member"
)

// ParseRelationship validates an assignment relationship.
func ParseRelationship(raw string) (Relationship, error) {
	switch r := Relationship(normalizeEnum(raw)); r {
	case RelationshipOwner, RelationshipTenant, RelationshipFamilyMember:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown relationship %q", ErrInvalidValue, raw)
}

// OccupancyFor returns the unit status implied by a new occupant.
func OccupancyFor(rel Relationship) UnitStatus {
	if rel == RelationshipTenant {
		return UnitTenantOccupied
	}
	return UnitOwnerOccupied
}

func normalizeEnum(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}
