package provisioning

import (
	"context"
	"fmt"

	"societycore/internal/core"
	"societycore/internal/identity"
	"societycore/pkg/domain"
)

// Authenticator resolves a bearer token to its principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (identity.Principal, error)
}

// PrivilegedCreator is the in-process AdminCreator. It re-checks the bearer
// token itself rather than trusting the caller resolved upstream.
type PrivilegedCreator struct {
	svc    *core.Service
	auth   Authenticator
	hasher *identity.Hasher
}

// NewPrivilegedCreator wires the privileged path.
func NewPrivilegedCreator(svc *core.Service, auth Authenticator, hasher *identity.Hasher) *PrivilegedCreator {
	if hasher == nil {
		hasher = identity.NewHasher(identity.DefaultParams)
	}
	return &PrivilegedCreator{svc: svc, auth: auth, hasher: hasher}
}

// CreateMember re-activates and re-scopes an existing profile with the email,
// or creates one. Only unaffiliated profiles and profiles already inside the
// caller's scope are re-scoped. A new account gets a random password it never discloses;
// the member sets one through password reset.
func (c *PrivilegedCreator) CreateMember(ctx context.Context, bearerToken string, req AdminRequest) (domain.Profile, error) {
	principal, err := c.auth.Authenticate(ctx, bearerToken)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("%w: %v", domain.ErrForbidden, err)
	}
	scope := principal.Scope()
	if !principal.Role.IsAdmin() || !scope.Allows(req.OrganizationID) {
		return domain.Profile{}, fmt.Errorf("%w: %s may not create members in %q", domain.ErrForbidden, principal.Role, req.OrganizationID)
	}
	secret, err := identity.GenerateTemporaryPassword(24)
	if err != nil {
		return domain.Profile{}, err
	}
	hash, err := c.hasher.Hash(secret)
	if err != nil {
		return domain.Profile{}, err
	}

	var out domain.Profile
	_, err = c.svc.Run(ctx, "admin_create_member", scope, func(tx domain.Transaction) error {
		apply := func(p *domain.Profile) error {
			p.OrganizationID = req.OrganizationID
			p.Role = req.Role
			p.Status = req.Status
			p.ActiveFrom = req.ActiveFrom
			p.ActiveUntil = req.ActiveUntil
			if req.FullName != "" {
				p.FullName = req.FullName
			}
			if req.Phone != "" {
				p.Phone = req.Phone
			}
			return nil
		}
		for _, p := range tx.Profiles().List() {
			if p.Email == req.Email {
				if err := claimable(scope, p); err != nil {
					return err
				}
				var err error
				out, err = tx.Profiles().Update(p.ID, apply)
				return err
			}
		}
		fresh := domain.Profile{Email: req.Email, TwoFactorMethod: domain.TwoFactorEmail, MustChangePassword: true}
		if err := apply(&fresh); err != nil {
			return err
		}
		var err error
		if out, err = tx.Profiles().Create(fresh); err != nil {
			return err
		}
		_, err = tx.Accounts().Create(domain.Account{Email: req.Email, PasswordHash: hash, ProfileID: out.ID, MustChangePassword: true})
		return err
	})
	return out, err
}

func claimable(scope domain.Scope, p domain.Profile) error {
	if p.OrganizationID != "" && !scope.Allows(p.OrganizationID) {
		return fmt.Errorf("%w: %s belongs to another organization", domain.ErrConflict, p.Email)
	}
	if p.Role == domain.RoleSuperAdmin && scope.Role != domain.RoleSuperAdmin {
		return fmt.Errorf("%w: cannot re-scope a %s", domain.ErrForbidden, domain.RoleSuperAdmin)
	}
	return nil
}
