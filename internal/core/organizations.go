package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"societycore/pkg/domain"
)

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe organization slug from a name.
func Slugify(name string) string {
	return strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

func prepareOrganization(view TransactionView, o *domain.Organization) error {
	problems := domain.ValidationErrors{}
	o.Name = domain.SanitizeText(o.Name)
	if o.Name == "" {
		problems.Add("name", "is required")
	}
	if o.Slug == "" {
		o.Slug = o.Name
	}
	o.Slug = Slugify(o.Slug)
	if o.Slug == "" && o.Name != "" {
		problems.Add("slug", "must contain letters or digits")
	}
	o.BrandColor = strings.TrimSpace(o.BrandColor)
	if o.BrandColor != "" {
		if err := domain.ValidateHSLColor(o.BrandColor); err != nil {
			problems.Add("brand_color", err.Error())
		}
	}
	if err := problems.Err(); err != nil {
		return err
	}
	for _, other := range view.Organizations().List() {
		if other.ID != o.ID && other.Slug == o.Slug {
			return fmt.Errorf("%w: organization slug %q already taken", domain.ErrConflict, o.Slug)
		}
	}
	return nil
}

// CreateOrganization registers a tenant. Only platform administrators may do so.
func (s *Service) CreateOrganization(ctx context.Context, scope domain.Scope, o domain.Organization) (domain.Organization, Result, error) {
	var created domain.Organization
	res, err := s.Run(ctx, "create_organization", scope, func(tx Transaction) error {
		if scope.Role != domain.RoleSuperAdmin {
			return fmt.Errorf("%w: only platform administrators create organizations", domain.ErrForbidden)
		}
		if err := prepareOrganization(tx.Snapshot(), &o); err != nil {
			return err
		}
		var err error
		created, err = tx.Organizations().Create(o)
		return err
	})
	return created, res, err
}

// UpdateOrganization mutates an organization; organization administrators only.
func (s *Service) UpdateOrganization(ctx context.Context, scope domain.Scope, id string, mutator func(*domain.Organization) error) (domain.Organization, Result, error) {
	var updated domain.Organization
	res, err := s.Run(ctx, "update_organization", scope, func(tx Transaction) error {
		if _, ok := domain.ScopedGet[domain.Organization](tx.Organizations(), scope, id); !ok {
			return notFound(domain.EntityOrganization, id)
		}
		if err := scope.RequireAdmin(); err != nil {
			return err
		}
		view := tx.Snapshot()
		var err error
		updated, err = tx.Organizations().Update(id, func(o *domain.Organization) error {
			if err := mutator(o); err != nil {
				return err
			}
			return prepareOrganization(view, o)
		})
		return err
	})
	return updated, res, err
}

// GetOrganization fetches an organization visible to scope.
func (s *Service) GetOrganization(ctx context.Context, scope domain.Scope, id string) (domain.Organization, error) {
	var org domain.Organization
	err := s.View(ctx, "get_organization", func(v TransactionView) error {
		got, ok := domain.ScopedGet(v.Organizations(), scope, id)
		if !ok {
			return notFound(domain.EntityOrganization, id)
		}
		org = got
		return nil
	})
	return org, err
}

// ListOrganizations returns every organization visible to scope.
func (s *Service) ListOrganizations(ctx context.Context, scope domain.Scope) ([]domain.Organization, error) {
	var out []domain.Organization
	err := s.View(ctx, "list_organization", func(v TransactionView) error {
		out = domain.ScopedList(v.Organizations(), scope)
		return nil
	})
	return out, err
}
