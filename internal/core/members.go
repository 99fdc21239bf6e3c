package core

import (
	"context"
	"fmt"
	"time"

	"societycore/pkg/domain"
)

// MemberUpdate carries the administrative edits allowed on a profile. Nil fields are left unchanged.
type MemberUpdate struct {
	FullName    *string
	Phone       *string
	Role        *string
	Status      *string
	ActiveFrom  *time.Time
	ActiveUntil *time.Time
}

// GetProfile returns the caller's own profile or, for managers, any profile in scope.
func (s *Service) GetProfile(ctx context.Context, scope domain.Scope, id string) (domain.Profile, error) {
	var profile domain.Profile
	err := s.View(ctx, "get_profile", func(v TransactionView) error {
		p, ok := v.Profiles().Get(id)
		if !ok || (p.ID != scope.ActorID && (!scope.Role.CanManage() || !scope.Allows(p.OrganizationID))) {
			return notFound(domain.EntityProfile, id)
		}
		profile = p
		return nil
	})
	return profile, err
}

// ListMembers returns the profiles of the scope's organization; managers only.
func (s *Service) ListMembers(ctx context.Context, scope domain.Scope) ([]domain.Profile, error) {
	if err := scope.RequireManager(); err != nil {
		return nil, err
	}
	var out []domain.Profile
	err := s.View(ctx, "list_profile", func(v TransactionView) error {
		out = domain.ScopedList(v.Profiles(), scope)
		return nil
	})
	return out, err
}

// UpdateMember applies an administrative edit. Legacy role and status names are
// accepted and logged; unknown names are rejected.
func (s *Service) UpdateMember(ctx context.Context, scope domain.Scope, id string, upd MemberUpdate) (domain.Profile, Result, error) {
	var updated domain.Profile
	res, err := s.Run(ctx, "update_profile", scope, func(tx Transaction) error {
		if err := scope.RequireAdmin(); err != nil {
			return err
		}
		if _, ok := domain.ScopedGet[domain.Profile](tx.Profiles(), scope, id); !ok {
			return notFound(domain.EntityProfile, id)
		}
		var err error
		updated, err = tx.Profiles().Update(id, func(p *domain.Profile) error {
			return s.applyMemberUpdate(scope, p, upd)
		})
		return err
	})
	return updated, res, err
}

func (s *Service) applyMemberUpdate(scope domain.Scope, p *domain.Profile, upd MemberUpdate) error {
	problems := domain.ValidationErrors{}
	if upd.FullName != nil {
		if p.FullName = domain.SanitizeText(*upd.FullName); p.FullName == "" {
			problems.Add("full_name", "is required")
		}
	}
	if upd.Phone != nil {
		p.Phone = domain.SanitizeText(*upd.Phone)
	}
	if upd.Role != nil {
		role, coerced, err := domain.ParseRole(*upd.Role)
		switch {
		case err != nil:
			problems.Add("role", err.Error())
		case role == domain.RoleSuperAdmin && scope.Role != domain.RoleSuperAdmin:
			return fmt.Errorf("%w: cannot grant %s", domain.ErrForbidden, role)
		default:
			if coerced {
				s.lggr.Warnw("legacy role coerced", "profile_id", p.ID, "raw", *upd.Role, "role", role)
			}
			p.Role = role
		}
	}
	if upd.Status != nil {
		status, coerced, err := domain.ParseStatus(*upd.Status)
		if err != nil {
			problems.Add("status", err.Error())
		} else {
			if coerced {
				s.lggr.Warnw("legacy status coerced", "profile_id", p.ID, "raw", *upd.Status, "status", status)
			}
			p.Status = status
		}
	}
	if upd.ActiveFrom != nil {
		p.ActiveFrom = upd.ActiveFrom
	}
	if upd.ActiveUntil != nil {
		p.ActiveUntil = upd.ActiveUntil
	}
	return problems.Err()
}
