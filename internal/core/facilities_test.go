package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"societycore/pkg/domain"
)

func TestAmenitiesAreManagedByCommittee(t *testing.T) {
	f := newFixture(t)
	resident := domain.Scope{OrganizationID: f.org.ID, ActorID: "res-1", Role: domain.RoleOwner}

	pool, _, err := f.svc.CreateAmenity(f.ctx, f.admin, domain.Amenity{Name: " Swimming Pool ", Capacity: 40, BookingRequired: true})
	require.NoError(t, err)
	assert.Equal(t, "Swimming Pool", pool.Name)
	assert.Equal(t, domain.AmenityOpen, pool.Status)

	_, _, err = f.svc.CreateAmenity(f.ctx, f.admin, domain.Amenity{Name: "swimming pool"})
	var problems domain.ValidationErrors
	require.ErrorAs(t, err, &problems)
	assert.Contains(t, problems, "name")

	_, _, err = f.svc.CreateAmenity(f.ctx, f.admin, domain.Amenity{Name: "Gym", Capacity: -1, Status: "haunted"})
	require.ErrorAs(t, err, &problems)
	assert.Contains(t, problems, "capacity")
	assert.Contains(t, problems, "status")

	_, _, err = f.svc.CreateAmenity(f.ctx, resident, domain.Amenity{Name: "Gym"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	list, err := f.svc.ListAmenities(f.ctx, resident)
	require.NoError(t, err)
	require.Len(t, list, 1)

	updated, _, err := f.svc.UpdateAmenity(f.ctx, f.admin, pool.ID, func(a *domain.Amenity) error {
		a.Status = domain.AmenityMaintenance
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AmenityMaintenance, updated.Status)
}

func TestForumThreadsAndReplies(t *testing.T) {
	f := newFixture(t)
	asha := domain.Scope{OrganizationID: f.org.ID, ActorID: "asha", Role: domain.RoleOwner}
	ravi := domain.Scope{OrganizationID: f.org.ID, ActorID: "ravi", Role: domain.RoleTenant}

	thread, _, err := f.svc.CreateForumPost(f.ctx, asha, domain.ForumPost{Title: "Lift noise", Body: "Block B lift rattles at night"})
	require.NoError(t, err)
	assert.Equal(t, "asha", thread.AuthorID)
	assert.Equal(t, "general", thread.Category)

	reply, _, err := f.svc.CreateForumPost(f.ctx, ravi, domain.ForumPost{ThreadID: thread.ID, Title: "ignored", Body: "Same on floor 4"})
	require.NoError(t, err)
	assert.Empty(t, reply.Title)

	_, _, err = f.svc.CreateForumPost(f.ctx, ravi, domain.ForumPost{ThreadID: reply.ID, Body: "nested"})
	var problems domain.ValidationErrors
	require.ErrorAs(t, err, &problems)
	assert.Equal(t, "replies must target a thread", problems["thread_id"])

	_, _, err = f.svc.CreateForumPost(f.ctx, asha, domain.ForumPost{Title: "Pinned?", Body: "x", Pinned: true})
	require.ErrorAs(t, err, &problems)
	assert.Contains(t, problems, "pinned")

	_, _, err = f.svc.UpdateForumPost(f.ctx, ravi, thread.ID, func(p *domain.ForumPost) error {
		p.Body = "edited by someone else"
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, _, err = f.svc.UpdateForumPost(f.ctx, f.admin, thread.ID, func(p *domain.ForumPost) error {
		p.Locked = true
		return nil
	})
	require.NoError(t, err)
	_, _, err = f.svc.CreateForumPost(f.ctx, ravi, domain.ForumPost{ThreadID: thread.ID, Body: "too late"})
	require.ErrorAs(t, err, &problems)
	assert.Equal(t, "thread is locked", problems["thread_id"])
	_, _, err = f.svc.UpdateForumPost(f.ctx, asha, thread.ID, func(p *domain.ForumPost) error {
		p.Body = "author edit after lock"
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.DeleteForumPost(f.ctx, f.admin, thread.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = f.svc.DeleteForumPost(f.ctx, ravi, reply.ID)
	require.NoError(t, err)
	_, err = f.svc.DeleteForumPost(f.ctx, f.admin, thread.ID)
	require.NoError(t, err)
}

func TestAssetsAreHiddenFromResidents(t *testing.T) {
	f := newFixture(t)
	resident := domain.Scope{OrganizationID: f.org.ID, ActorID: "res-1", Role: domain.RoleOwner}

	dg, _, err := f.svc.CreateAsset(f.ctx, f.admin, domain.Asset{Tag: "dg-01", Name: "Diesel generator", ValueCents: 85000000})
	require.NoError(t, err)
	assert.Equal(t, "DG-01", dg.Tag)
	assert.Equal(t, domain.AssetInService, dg.Status)

	_, _, err = f.svc.CreateAsset(f.ctx, f.admin, domain.Asset{Tag: "DG-01", Name: "Spare"})
	var problems domain.ValidationErrors
	require.ErrorAs(t, err, &problems)
	assert.Contains(t, problems, "tag")

	renamed, _, err := f.svc.UpdateAsset(f.ctx, f.admin, dg.ID, func(a *domain.Asset) error {
		a.Status = domain.AssetUnderRepair
		return nil
	})
	require.NoError(t, err, "an asset keeps its own tag on update")
	assert.Equal(t, domain.AssetUnderRepair, renamed.Status)

	list, err := f.svc.ListAssets(f.ctx, resident)
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = f.svc.GetAsset(f.ctx, resident, dg.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestParkingSlotAllotment(t *testing.T) {
	f := newFixture(t)
	unit := f.unit(t, "101")

	slot, _, err := f.svc.CreateParkingSlot(f.ctx, f.admin, domain.ParkingSlot{Code: "b1-07", Level: "B1", UnitID: unit.ID, VehicleNumber: "ka 01 ab 1234"})
	require.NoError(t, err)
	assert.Equal(t, "B1-07", slot.Code)
	assert.Equal(t, "car", slot.Kind)
	assert.Equal(t, "KA01AB1234", slot.VehicleNumber)
	assert.True(t, slot.Allotted())

	_, _, err = f.svc.CreateParkingSlot(f.ctx, f.admin, domain.ParkingSlot{Code: "V-1", Kind: "visitor", UnitID: unit.ID})
	var problems domain.ValidationErrors
	require.ErrorAs(t, err, &problems)
	assert.Equal(t, "visitor slots cannot be allotted", problems["unit_id"])

	_, _, err = f.svc.CreateParkingSlot(f.ctx, f.admin, domain.ParkingSlot{Code: "B1-07"})
	require.ErrorAs(t, err, &problems)
	assert.Contains(t, problems, "code")

	_, err = f.svc.DeleteUnit(f.ctx, f.admin, unit.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	released, _, err := f.svc.UpdateParkingSlot(f.ctx, f.admin, slot.ID, func(p *domain.ParkingSlot) error {
		p.UnitID = ""
		return nil
	})
	require.NoError(t, err)
	assert.False(t, released.Allotted())
	assert.Empty(t, released.VehicleNumber)
	_, err = f.svc.DeleteUnit(f.ctx, f.admin, unit.ID)
	require.NoError(t, err)
}
