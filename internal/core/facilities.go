package core

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"societycore/pkg/domain"
)

type keyed interface {
	domain.Scoped
	domain.Identified
}

// taken reports whether another record of orgID already uses value under key.
func taken[T keyed](table domain.ReadTable[T], orgID, selfID, value string, key func(T) string) bool {
	for _, rec := range table.List() {
		if rec.OrgID() == orgID && rec.RecordID() != selfID && strings.EqualFold(key(rec), value) {
			return true
		}
	}
	return false
}

var amenityStatuses = []domain.AmenityStatus{domain.AmenityOpen, domain.AmenityMaintenance, domain.AmenityClosed}

var amenities = resource[domain.Amenity]{
	entity: domain.EntityAmenity,
	table:  func(tx Transaction) domain.Table[domain.Amenity] { return tx.Amenities() },
	view:   func(v TransactionView) domain.ReadTable[domain.Amenity] { return v.Amenities() },
	prepare: func(view TransactionView, scope domain.Scope, a *domain.Amenity) error {
		defaultOrg(scope, &a.OrganizationID)
		problems := domain.ValidationErrors{}
		a.Name = domain.SanitizeText(a.Name)
		a.Description = domain.SanitizeText(a.Description)
		a.Location = domain.SanitizeText(a.Location)
		if a.Name == "" {
			problems.Add("name", "is required")
		} else if taken(view.Amenities(), a.OrganizationID, a.ID, a.Name, func(o domain.Amenity) string { return o.Name }) {
			problems.Add("name", "is already used")
		}
		if a.Capacity < 0 {
			problems.Add("capacity", "must not be negative")
		}
		if a.Status == "" {
			a.Status = domain.AmenityOpen
		}
		if !slices.Contains(amenityStatuses, a.Status) {
			problems.Add("status", fmt.Sprintf("unknown amenity status %q", a.Status))
		}
		return problems.Err()
	},
	canWrite: managerOnly[domain.Amenity],
}

// CreateAmenity registers a shared facility.
func (s *Service) CreateAmenity(ctx context.Context, scope domain.Scope, a domain.Amenity) (domain.Amenity, Result, error) {
	return createRecord(ctx, s, amenities, scope, a)
}

// UpdateAmenity mutates an amenity.
func (s *Service) UpdateAmenity(ctx context.Context, scope domain.Scope, id string, mutator func(*domain.Amenity) error) (domain.Amenity, Result, error) {
	return updateRecord(ctx, s, amenities, scope, id, mutator)
}

// DeleteAmenity removes an amenity.
func (s *Service) DeleteAmenity(ctx context.Context, scope domain.Scope, id string) (Result, error) {
	return deleteRecord(ctx, s, amenities, scope, id)
}

// GetAmenity fetches one amenity.
func (s *Service) GetAmenity(ctx context.Context, scope domain.Scope, id string) (domain.Amenity, error) {
	return getRecord(ctx, s, amenities, scope, id)
}

// ListAmenities returns the amenities of the caller's organization.
func (s *Service) ListAmenities(ctx context.Context, scope domain.Scope) ([]domain.Amenity, error) {
	return listRecords(ctx, s, amenities, scope)
}

var forumPosts = resource[domain.ForumPost]{
	entity: domain.EntityForumPost,
	table:  func(tx Transaction) domain.Table[domain.ForumPost] { return tx.ForumPosts() },
	view:   func(v TransactionView) domain.ReadTable[domain.ForumPost] { return v.ForumPosts() },
	prepare: func(view TransactionView, scope domain.Scope, p *domain.ForumPost) error {
		defaultOrg(scope, &p.OrganizationID)
		if p.AuthorID == "" {
			p.AuthorID = scope.ActorID
		}
		problems := domain.ValidationErrors{}
		p.Title = domain.SanitizeText(p.Title)
		p.Body = domain.SanitizeText(p.Body)
		if p.Body == "" {
			problems.Add("body", "is required")
		}
		if (p.Pinned || p.Locked) && !scope.Role.CanManage() {
			problems.Add("pinned", "only managers may pin or lock threads")
		}
		if p.ThreadID == "" {
			p.Category = defaultCategory(p.Category)
			if p.Title == "" {
				problems.Add("title", "is required")
			}
			return problems.Err()
		}

		p.Title, p.Category = "", ""
		if p.Pinned || p.Locked {
			problems.Add("pinned", "replies cannot be pinned or locked")
		}
		thread, ok := view.ForumPosts().Get(p.ThreadID)
		switch {
		case !ok || thread.OrganizationID != p.OrganizationID:
			problems.Add("thread_id", "unknown thread")
		case thread.ThreadID != "":
			problems.Add("thread_id", "replies must target a thread")
		case thread.Locked && !scope.Role.CanManage():
			problems.Add("thread_id", "thread is locked")
		}
		return problems.Err()
	},
	canWrite: func(scope domain.Scope, p domain.ForumPost) error {
		if scope.Role.CanManage() {
			return nil
		}
		if p.AuthorID != scope.ActorID {
			return fmt.Errorf("%w: post written by another member", domain.ErrForbidden)
		}
		if p.Locked {
			return fmt.Errorf("%w: thread is locked", domain.ErrForbidden)
		}
		return nil
	},
}

// CreateForumPost starts a thread, or replies to one when ThreadID is set.
func (s *Service) CreateForumPost(ctx context.Context, scope domain.Scope, p domain.ForumPost) (domain.ForumPost, Result, error) {
	return createRecord(ctx, s, forumPosts, scope, p)
}

// UpdateForumPost edits a post. Members edit their own posts; managers moderate.
func (s *Service) UpdateForumPost(ctx context.Context, scope domain.Scope, id string, mutator func(*domain.ForumPost) error) (domain.ForumPost, Result, error) {
	return updateRecord(ctx, s, forumPosts, scope, id, mutator)
}

// DeleteForumPost removes a post. Threads with replies are kept.
func (s *Service) DeleteForumPost(ctx context.Context, scope domain.Scope, id string) (Result, error) {
	return deleteRecord(ctx, s, forumPosts, scope, id)
}

// GetForumPost fetches one post.
func (s *Service) GetForumPost(ctx context.Context, scope domain.Scope, id string) (domain.ForumPost, error) {
	return getRecord(ctx, s, forumPosts, scope, id)
}

// ListForumPosts returns every thread and reply of the caller's organization.
func (s *Service) ListForumPosts(ctx context.Context, scope domain.Scope) ([]domain.ForumPost, error) {
	return listRecords(ctx, s, forumPosts, scope)
}

var assetStatuses = []domain.AssetStatus{domain.AssetInService, domain.AssetUnderRepair, domain.AssetRetired}

var assets = resource[domain.Asset]{
	entity: domain.EntityAsset,
	table:  func(tx Transaction) domain.Table[domain.Asset] { return tx.Assets() },
	view:   func(v TransactionView) domain.ReadTable[domain.Asset] { return v.Assets() },
	prepare: func(view TransactionView, scope domain.Scope, a *domain.Asset) error {
		defaultOrg(scope, &a.OrganizationID)
		problems := domain.ValidationErrors{}
		a.Tag = strings.ToUpper(domain.SanitizeText(a.Tag))
		a.Name = domain.SanitizeText(a.Name)
		a.Location = domain.SanitizeText(a.Location)
		a.Category = defaultCategory(a.Category)
		if a.Tag == "" {
			problems.Add("tag", "is required")
		} else if taken(view.Assets(), a.OrganizationID, a.ID, a.Tag, func(o domain.Asset) string { return o.Tag }) {
			problems.Add("tag", "is already used")
		}
		if a.Name == "" {
			problems.Add("name", "is required")
		}
		if a.ValueCents < 0 {
			problems.Add("value_cents", "must not be negative")
		}
		if a.Status == "" {
			a.Status = domain.AssetInService
		}
		if !slices.Contains(assetStatuses, a.Status) {
			problems.Add("status", fmt.Sprintf("unknown asset status %q", a.Status))
		}
		return problems.Err()
	},
	canWrite: managerOnly[domain.Asset],
	canRead:  func(scope domain.Scope, _ domain.Asset) bool { return scope.Role.CanManage() },
}

// CreateAsset registers society property under a unique tag.
func (s *Service) CreateAsset(ctx context.Context, scope domain.Scope, a domain.Asset) (domain.Asset, Result, error) {
	return createRecord(ctx, s, assets, scope, a)
}

// UpdateAsset mutates an asset.
func (s *Service) UpdateAsset(ctx context.Context, scope domain.Scope, id string, mutator func(*domain.Asset) error) (domain.Asset, Result, error) {
	return updateRecord(ctx, s, assets, scope, id, mutator)
}

// DeleteAsset removes an asset.
func (s *Service) DeleteAsset(ctx context.Context, scope domain.Scope, id string) (Result, error) {
	return deleteRecord(ctx, s, assets, scope, id)
}

// GetAsset fetches one asset. Assets are visible to managers only.
func (s *Service) GetAsset(ctx context.Context, scope domain.Scope, id string) (domain.Asset, error) {
	return getRecord(ctx, s, assets, scope, id)
}

// ListAssets returns the asset register.
func (s *Service) ListAssets(ctx context.Context, scope domain.Scope) ([]domain.Asset, error) {
	return listRecords(ctx, s, assets, scope)
}

// ParkingKinds are the accepted parking slot kinds.
var ParkingKinds = []string{"car", "two_wheeler", "visitor"}

var parkingSlots = resource[domain.ParkingSlot]{
	entity: domain.EntityParkingSlot,
	table:  func(tx Transaction) domain.Table[domain.ParkingSlot] { return tx.ParkingSlots() },
	view:   func(v TransactionView) domain.ReadTable[domain.ParkingSlot] { return v.ParkingSlots() },
	prepare: func(view TransactionView, scope domain.Scope, p *domain.ParkingSlot) error {
		defaultOrg(scope, &p.OrganizationID)
		problems := domain.ValidationErrors{}
		p.Code = strings.ToUpper(domain.SanitizeText(p.Code))
		p.Level = domain.SanitizeText(p.Level)
		p.VehicleNumber = strings.ToUpper(strings.Join(strings.Fields(p.VehicleNumber), ""))
		if p.Code == "" {
			problems.Add("code", "is required")
		} else if taken(view.ParkingSlots(), p.OrganizationID, p.ID, p.Code, func(o domain.ParkingSlot) string { return o.Code }) {
			problems.Add("code", "is already used")
		}
		if p.Kind == "" {
			p.Kind = "car"
		}
		if !slices.Contains(ParkingKinds, p.Kind) {
			problems.Add("kind", fmt.Sprintf("must be one of %v", ParkingKinds))
		}
		switch {
		case p.UnitID == "":
			p.VehicleNumber = ""
		case p.Kind == "visitor":
			problems.Add("unit_id", "visitor slots cannot be allotted")
		case !requireInOrg(view.Units(), p.OrganizationID, p.UnitID):
			problems.Add("unit_id", "unknown unit")
		}
		return problems.Err()
	},
	canWrite: managerOnly[domain.ParkingSlot],
}

// CreateParkingSlot registers a parking bay.
func (s *Service) CreateParkingSlot(ctx context.Context, scope domain.Scope, p domain.ParkingSlot) (domain.ParkingSlot, Result, error) {
	return createRecord(ctx, s, parkingSlots, scope, p)
}

// UpdateParkingSlot mutates a slot, including allotment to a unit. Releasing
// the unit clears the vehicle number.
func (s *Service) UpdateParkingSlot(ctx context.Context, scope domain.Scope, id string, mutator func(*domain.ParkingSlot) error) (domain.ParkingSlot, Result, error) {
	return updateRecord(ctx, s, parkingSlots, scope, id, mutator)
}

// DeleteParkingSlot removes a slot.
func (s *Service) DeleteParkingSlot(ctx context.Context, scope domain.Scope, id string) (Result, error) {
	return deleteRecord(ctx, s, parkingSlots, scope, id)
}

// GetParkingSlot fetches one slot.
func (s *Service) GetParkingSlot(ctx context.Context, scope domain.Scope, id string) (domain.ParkingSlot, error) {
	return getRecord(ctx, s, parkingSlots, scope, id)
}

// ListParkingSlots returns the slots of the caller's organization.
func (s *Service) ListParkingSlots(ctx context.Context, scope domain.Scope) ([]domain.ParkingSlot, error) {
	return listRecords(ctx, s, parkingSlots, scope)
}
