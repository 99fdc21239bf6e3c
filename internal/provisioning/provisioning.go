// Package provisioning creates members on behalf of administrators.
//
// A member is first registered through the ordinary sign-up path with a
// temporary password. Only when sign-up fails does the privileged path run,
// once, with the caller's bearer token. Role, organization and unit placement
// are applied afterwards in a single transaction; because the identity already
// exists at that point, a failure there is reported as a warning.
package provisioning

import (
	"context"
	"fmt"
	"time"

	"societycore/internal/core"
	"societycore/internal/identity"
	"societycore/pkg/domain"
	"societycore/pkg/logger"
)

// Path names the route a member was created through.
type Path string

const (
	PathPrimary  Path = "primary"
	PathFallback Path = "fallback"
)

// MemberRequest is the administrator's input. Role and Status accept legacy aliases.
type MemberRequest struct {
	Email          string     `json:"email"`
	FullName       string     `json:"full_name"`
	Phone          string     `json:"phone"`
	Role           string     `json:"role"`
	Status         string     `json:"status"`
	OrganizationID string     `json:"organization_id"`
	ActiveFrom     *time.Time `json:"active_from,omitempty"`
	ActiveUntil    *time.Time `json:"active_until,omitempty"`
	UnitID         string     `json:"unit_id,omitempty"`
	Relationship   string     `json:"relationship,omitempty"`
	Primary        bool       `json:"primary,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	// UpdateOccupancy marks the unit owner or tenant occupied after assignment.
	UpdateOccupancy bool `json:"update_occupancy,omitempty"`
}

// AdminRequest is what the privileged path receives: already normalized values.
type AdminRequest struct {
	Email          string
	FullName       string
	Phone          string
	Role           domain.Role
	Status         domain.Status
	OrganizationID string
	ActiveFrom     *time.Time
	ActiveUntil    *time.Time
}

// Result reports how the member was created.
type Result struct {
	Path              Path           `json:"path"`
	Profile           domain.Profile `json:"profile"`
	TemporaryPassword string         `json:"temporary_password,omitempty"`
	Warnings          []string       `json:"warnings,omitempty"`
}

// Registrar is the ordinary sign-up path.
type Registrar interface {
	SignUp(ctx context.Context, req identity.SignUpRequest) (domain.Profile, error)
	TemporaryPassword() (string, error)
}

// AdminCreator is the privileged fallback path.
type AdminCreator interface {
	CreateMember(ctx context.Context, bearerToken string, req AdminRequest) (domain.Profile, error)
}

// Service runs member provisioning.
type Service struct {
	svc       *core.Service
	registrar Registrar
	admin     AdminCreator
	lggr      logger.Logger
}

// New wires the provisioning service.
func New(svc *core.Service, registrar Registrar, admin AdminCreator) *Service {
	return &Service{svc: svc, registrar: registrar, admin: admin, lggr: svc.Logger().Named("provisioning")}
}

type normalized struct {
	admin        AdminRequest
	relationship domain.Relationship
}

func (s *Service) normalize(caller identity.Principal, req MemberRequest) (normalized, error) {
	problems := domain.ValidationErrors{}
	n := normalized{admin: AdminRequest{
		FullName:       domain.SanitizeText(req.FullName),
		Phone:          domain.SanitizeText(req.Phone),
		OrganizationID: req.OrganizationID,
		ActiveFrom:     req.ActiveFrom,
		ActiveUntil:    req.ActiveUntil,
		Role:           domain.RoleOwner,
		Status:         domain.StatusActive,
	}}
	if n.admin.OrganizationID == "" {
		n.admin.OrganizationID = caller.OrganizationID
	}
	if n.admin.OrganizationID == "" {
		problems.Add("organization_id", "is required")
	}
	email, err := domain.NormalizeEmail(req.Email)
	if err != nil {
		problems.Add("email", "is not a valid address")
	}
	n.admin.Email = email
	if n.admin.FullName == "" {
		problems.Add("full_name", "is required")
	}
	if req.Role != "" {
		role, coerced, err := domain.ParseRole(req.Role)
		if err != nil {
			problems.Add("role", err.Error())
		} else {
			if coerced {
				s.lggr.Warnw("legacy role coerced", "email", email, "raw", req.Role, "role", role)
			}
			n.admin.Role = role
		}
	}
	if req.Status != "" {
		status, coerced, err := domain.ParseStatus(req.Status)
		if err != nil {
			problems.Add("status", err.Error())
		} else {
			if coerced {
				s.lggr.Warnw("legacy status coerced", "email", email, "raw", req.Status, "status", status)
			}
			n.admin.Status = status
		}
	}
	if req.UnitID != "" {
		rel := req.Relationship
		if rel == "" {
			rel = string(domain.RelationshipOwner)
		}
		if n.relationship, err = domain.ParseRelationship(rel); err != nil {
			problems.Add("relationship", err.Error())
		}
	}
	if req.ActiveFrom != nil && req.ActiveUntil != nil && req.ActiveUntil.Before(*req.ActiveFrom) {
		problems.Add("active_until", "must not precede active_from")
	}
	return n, problems.Err()
}

func authorize(caller identity.Principal, n normalized) error {
	scope := caller.Scope()
	if err := scope.RequireAdmin(); err != nil {
		return err
	}
	if !scope.Allows(n.admin.OrganizationID) {
		return fmt.Errorf("%w: organization %q outside scope", domain.ErrForbidden, n.admin.OrganizationID)
	}
	if n.admin.Role == domain.RoleSuperAdmin && caller.Role != domain.RoleSuperAdmin {
		return fmt.Errorf("%w: cannot grant %s", domain.ErrForbidden, domain.RoleSuperAdmin)
	}
	return nil
}

// CreateMember provisions a member. Errors are returned only when no identity
// was created; post-creation problems land in Result.Warnings.
func (s *Service) CreateMember(ctx context.Context, caller identity.Principal, bearerToken string, req MemberRequest) (Result, error) {
	n, err := s.normalize(caller, req)
	if err != nil {
		return Result{}, err
	}
	if err := authorize(caller, n); err != nil {
		return Result{}, err
	}

	temp, err := s.registrar.TemporaryPassword()
	if err != nil {
		return Result{}, err
	}
	profile, signUpErr := s.registrar.SignUp(ctx, identity.SignUpRequest{
		Email:              n.admin.Email,
		Password:           temp,
		FullName:           n.admin.FullName,
		Phone:              n.admin.Phone,
		MustChangePassword: true,
	})
	if signUpErr != nil {
		s.lggr.Infow("sign-up failed, using privileged path", "email", n.admin.Email, "organization_id", n.admin.OrganizationID, "err", signUpErr)
		profile, err := s.admin.CreateMember(ctx, bearerToken, n.admin)
		if err != nil {
			return Result{}, fmt.Errorf("create member: %w", err)
		}
		return Result{Path: PathFallback, Profile: profile}, nil
	}

	out := Result{Path: PathPrimary, Profile: profile, TemporaryPassword: temp}
	placed, res, err := s.place(ctx, caller, profile.ID, n, req)
	if err != nil {
		s.lggr.Warnw("member post-creation steps failed", "profile_id", profile.ID, "organization_id", n.admin.OrganizationID, "err", err)
		out.Warnings = append(out.Warnings, fmt.Sprintf("member created but setup incomplete: %v", err))
		return out, nil
	}
	out.Profile = placed
	for _, v := range res.Warnings() {
		out.Warnings = append(out.Warnings, v.Message)
	}
	return out, nil
}

// place applies role, organization, assignment and occupancy in one transaction.
func (s *Service) place(ctx context.Context, caller identity.Principal, profileID string, n normalized, req MemberRequest) (domain.Profile, domain.Result, error) {
	scope := caller.Scope()
	scope.OrganizationID = n.admin.OrganizationID
	var placed domain.Profile
	res, err := s.svc.Run(ctx, "provision_member", scope, func(tx domain.Transaction) error {
		var err error
		placed, err = tx.Profiles().Update(profileID, func(p *domain.Profile) error {
			p.OrganizationID = n.admin.OrganizationID
			p.Role = n.admin.Role
			p.Status = n.admin.Status
			p.ActiveFrom = n.admin.ActiveFrom
			p.ActiveUntil = n.admin.ActiveUntil
			return nil
		})
		if err != nil {
			return err
		}
		if req.UnitID == "" {
			return nil
		}
		start := s.svc.Now()
		if req.StartDate != nil {
			start = *req.StartDate
		}
		if _, err := tx.Assignments().Create(domain.UnitAssignment{
			OrganizationID: n.admin.OrganizationID,
			UnitID:         req.UnitID,
			ProfileID:      profileID,
			Relationship:   n.relationship,
			Primary:        req.Primary,
			StartDate:      start,
		}); err != nil {
			return err
		}
		if !req.UpdateOccupancy {
			return nil
		}
		_, err = tx.Units().Update(req.UnitID, func(u *domain.Unit) error {
			u.Status = domain.OccupancyFor(n.relationship)
			return nil
		})
		return err
	})
	return placed, res, err
}
