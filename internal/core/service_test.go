package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"societycore/pkg/domain"
	"societycore/pkg/logger"
)

func TestUnitCRUDPublishesAuditEvents(t *testing.T) {
	f := newFixture(t)
	u, _, err := f.svc.CreateUnit(f.ctx, f.admin, domain.Unit{Block: " A ", Number: "101", Kind: "Commercial"})
	require.NoError(t, err)
	assert.Equal(t, f.org.ID, u.OrganizationID)
	assert.Equal(t, domain.UnitCommercial, u.Kind)
	assert.Equal(t, domain.UnitVacant, u.Status)
	assert.Equal(t, "A-101", u.Label())
	assert.True(t, f.metrics.has("create_unit", true))

	updated, _, err := f.svc.UpdateUnit(f.ctx, f.admin, u.ID, func(u *domain.Unit) error {
		u.Status = domain.UnitUnderMaintenance
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.UnitUnderMaintenance, updated.Status)

	got, err := f.svc.GetUnit(f.ctx, f.admin, u.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	_, err = f.svc.DeleteUnit(f.ctx, f.admin, u.ID)
	require.NoError(t, err)
	_, err = f.svc.GetUnit(f.ctx, f.admin, u.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.True(t, f.metrics.has("get_unit", false))

	var actions []string
	for _, ev := range f.feed.Events() {
		if ev.Entity == string(domain.EntityUnit) {
			actions = append(actions, ev.Action)
			assert.Equal(t, u.ID, ev.EntityID)
			assert.Equal(t, f.org.ID, ev.OrganizationID)
			assert.Equal(t, "admin-1", ev.ActorID)
		}
	}
	assert.Equal(t, []string{"create", "update", "delete"}, actions)
}

func TestUnitValidationAndPermissions(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.CreateUnit(f.ctx, f.admin, domain.Unit{Kind: "castle", AreaSqft: -1})
	var problems domain.ValidationErrors
	require.ErrorAs(t, err, &problems)
	assert.Contains(t, problems, "number")
	assert.Contains(t, problems, "kind")
	assert.Contains(t, problems, "area_sqft")
	assert.ErrorIs(t, err, domain.ErrInvalidValue)
	assert.True(t, f.metrics.has("create_unit", false))

	owner := domain.Scope{OrganizationID: f.org.ID, ActorID: "p1", Role: domain.RoleOwner}
	_, _, err = f.svc.CreateUnit(f.ctx, owner, domain.Unit{Number: "1"})
	require.ErrorIs(t, err, domain.ErrForbidden)

	u := f.unit(t, "102")
	list, err := f.svc.ListUnits(f.ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	other := domain.Scope{OrganizationID: "org-other", ActorID: "x", Role: domain.RoleAdmin}
	_, err = f.svc.GetUnit(f.ctx, other, u.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, _, err = f.svc.CreateUnit(f.ctx, other, domain.Unit{OrganizationID: f.org.ID, Number: "9"})
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, _, err = f.svc.UpdateUnit(f.ctx, f.admin, u.ID, func(u *domain.Unit) error {
		u.OrganizationID = "org-other"
		return nil
	})
	require.ErrorIs(t, err, domain.ErrInvalidValue)
}

func TestAnnouncementsHideDraftsFromResidents(t *testing.T) {
	f := newFixture(t)
	draft, _, err := f.svc.CreateAnnouncement(f.ctx, f.admin, domain.Announcement{Title: "Water <b>cut</b>", Body: "Tomorrow 10-12"})
	require.NoError(t, err)
	assert.Equal(t, "Water cut", draft.Title)
	assert.Equal(t, "normal", draft.Priority)
	assert.Equal(t, "general", draft.Category)
	assert.Equal(t, "admin-1", draft.AuthorID)
	_, _, err = f.svc.CreateAnnouncement(f.ctx, f.admin, domain.Announcement{Title: "AGM", Body: "Sunday", Published: true, Priority: "high"})
	require.NoError(t, err)
	_, _, err = f.svc.CreateAnnouncement(f.ctx, f.admin, domain.Announcement{Title: "x", Body: "y", Priority: "meh"})
	require.ErrorIs(t, err, domain.ErrInvalidValue)

	resident := domain.Scope{OrganizationID: f.org.ID, ActorID: "p1", Role: domain.RoleTenant}
	visible, err := f.svc.ListAnnouncements(f.ctx, resident)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "AGM", visible[0].Title)
	_, err = f.svc.GetAnnouncement(f.ctx, resident, draft.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	all, err := f.svc.ListAnnouncements(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.DeleteAnnouncement(f.ctx, f.admin, draft.ID)
	require.NoError(t, err)
	_, _, err = f.svc.UpdateAnnouncement(f.ctx, f.admin, draft.ID, func(*domain.Announcement) error { return nil })
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTicketsBelongToTheirRaiser(t *testing.T) {
	f := newFixture(t)
	p1 := f.profile(t, "one@example.com", domain.RoleOwner)
	p2 := f.profile(t, "two@example.com", domain.RoleTenant)
	u := f.unit(t, "201")
	s1 := domain.Scope{OrganizationID: f.org.ID, ActorID: p1.ID, Role: domain.RoleOwner}
	s2 := domain.Scope{OrganizationID: f.org.ID, ActorID: p2.ID, Role: domain.RoleTenant}

	tk, _, err := f.svc.CreateTicket(f.ctx, s1, domain.Ticket{Title: "Leaking tap", UnitID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, p1.ID, tk.RaisedBy)
	assert.Equal(t, domain.TicketOpen, tk.Status)

	_, _, err = f.svc.CreateTicket(f.ctx, s1, domain.Ticket{Title: "x", UnitID: "nope", AssigneeID: "nobody"})
	var problems domain.ValidationErrors
	require.ErrorAs(t, err, &problems)
	assert.Contains(t, problems, "unit_id")
	assert.Contains(t, problems, "assignee_id")

	mine, err := f.svc.ListTickets(f.ctx, s2)
	require.NoError(t, err)
	assert.Empty(t, mine)
	_, _, err = f.svc.UpdateTicket(f.ctx, s2, tk.ID, func(t *domain.Ticket) error { t.Status = domain.TicketClosed; return nil })
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = f.svc.UpdateTicket(f.ctx, s1, tk.ID, func(t *domain.Ticket) error { t.RaisedBy = p2.ID; return nil })
	require.ErrorIs(t, err, domain.ErrForbidden)

	staff := domain.Scope{OrganizationID: f.org.ID, ActorID: "staff", Role: domain.RoleStaff}
	got, _, err := f.svc.UpdateTicket(f.ctx, staff, tk.ID, func(t *domain.Ticket) error {
		t.Status = domain.TicketInProgress
		t.AssigneeID = p2.ID
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketInProgress, got.Status)
	_, _, err = f.svc.UpdateTicket(f.ctx, staff, tk.ID, func(t *domain.Ticket) error { t.Status = "lost"; return nil })
	require.ErrorIs(t, err, domain.ErrInvalidValue)

	all, err := f.svc.ListTickets(f.ctx, staff)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	one, err := f.svc.GetTicket(f.ctx, s1, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, p2.ID, one.AssigneeID)
	_, err = f.svc.DeleteTicket(f.ctx, s1, tk.ID)
	require.NoError(t, err)
}

func TestEventsAndHouseholdMembers(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	ev, _, err := f.svc.CreateEvent(f.ctx, f.admin, domain.Event{Title: "Flag hoisting", StartsAt: start, Location: "Clubhouse"})
	require.NoError(t, err)
	assert.Equal(t, start, ev.EndsAt)
	_, _, err = f.svc.UpdateEvent(f.ctx, f.admin, ev.ID, func(e *domain.Event) error { e.EndsAt = start.Add(-time.Hour); return nil })
	require.ErrorIs(t, err, domain.ErrInvalidValue)
	got, err := f.svc.GetEvent(f.ctx, f.admin, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, start, got.EndsAt)
	list, err := f.svc.ListEvents(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	_, err = f.svc.DeleteEvent(f.ctx, f.admin, ev.ID)
	require.NoError(t, err)

	resident := f.profile(t, "res@example.com", domain.RoleOwner)
	neighbour := f.profile(t, "nb@example.com", domain.RoleOwner)
	rs := domain.Scope{OrganizationID: f.org.ID, ActorID: resident.ID, Role: domain.RoleOwner}
	ns := domain.Scope{OrganizationID: f.org.ID, ActorID: neighbour.ID, Role: domain.RoleOwner}

	hm, _, err := f.svc.CreateHouseholdMember(f.ctx, rs, domain.HouseholdMember{Name: "Asha", Relationship: "daughter", Email: " Asha@Example.com "})
	require.NoError(t, err)
	assert.Equal(t, resident.ID, hm.PrimaryProfileID)
	assert.Equal(t, "asha@example.com", hm.Email)

	_, _, err = f.svc.CreateHouseholdMember(f.ctx, rs, domain.HouseholdMember{Name: "x", Relationship: "y", PrimaryProfileID: "ghost"})
	require.ErrorIs(t, err, domain.ErrInvalidValue)

	theirs, err := f.svc.ListHouseholdMembers(f.ctx, ns)
	require.NoError(t, err)
	assert.Empty(t, theirs)
	_, err = f.svc.DeleteHouseholdMember(f.ctx, ns, hm.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	updated, _, err := f.svc.UpdateHouseholdMember(f.ctx, rs, hm.ID, func(h *domain.HouseholdMember) error { h.Phone = "98450 00000"; return nil })
	require.NoError(t, err)
	assert.Equal(t, "98450 00000", updated.Phone)
	got2, err := f.svc.GetHouseholdMember(f.ctx, f.admin, hm.ID)
	require.NoError(t, err)
	assert.Equal(t, hm.ID, got2.ID)
	_, err = f.svc.DeleteHouseholdMember(f.ctx, rs, hm.ID)
	require.NoError(t, err)
}

func TestOrganizations(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "palm-grove-residency", f.org.Slug)

	_, _, err := f.svc.CreateOrganization(f.ctx, f.admin, domain.Organization{Name: "Nope"})
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, _, err = f.svc.CreateOrganization(f.ctx, domain.System(""), domain.Organization{Name: "Palm Grove  Residency!"})
	require.ErrorIs(t, err, domain.ErrConflict)
	_, _, err = f.svc.CreateOrganization(f.ctx, domain.System(""), domain.Organization{Name: "Hill", BrandColor: "hsl(400, 10%, 10%)"})
	require.ErrorIs(t, err, domain.ErrInvalidValue)

	updated, _, err := f.svc.UpdateOrganization(f.ctx, f.admin, f.org.ID, func(o *domain.Organization) error {
		o.BrandColor = "hsl(210, 40%, 50%)"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hsl(210, 40%, 50%)", updated.BrandColor)

	staff := domain.Scope{OrganizationID: f.org.ID, Role: domain.RoleStaff}
	_, _, err = f.svc.UpdateOrganization(f.ctx, staff, f.org.ID, func(*domain.Organization) error { return nil })
	require.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.svc.GetOrganization(f.ctx, staff, f.org.ID)
	require.NoError(t, err)
	assert.Equal(t, f.org.Name, got.Name)
	_, err = f.svc.GetOrganization(f.ctx, domain.Scope{OrganizationID: "else", Role: domain.RoleAdmin}, f.org.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	orgs, err := f.svc.ListOrganizations(f.ctx, domain.System(""))
	require.NoError(t, err)
	assert.Len(t, orgs, 1)
}

func TestMembers(t *testing.T) {
	lggr, logs := logger.TestObserved(t, zapcore.WarnLevel)
	f := newFixture(t, WithLogger(lggr))
	p := f.profile(t, "m@example.com", domain.RoleOwner)

	role, status := "resident", "disabled"
	updated, _, err := f.svc.UpdateMember(f.ctx, f.admin, p.ID, MemberUpdate{Role: &role, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, updated.Role)
	assert.Equal(t, domain.StatusInactive, updated.Status)
	assert.Equal(t, 1, logs.FilterMessage("legacy role coerced").Len())
	assert.Equal(t, 1, logs.FilterMessage("legacy status coerced").Len())

	bogus := "overlord"
	_, _, err = f.svc.UpdateMember(f.ctx, f.admin, p.ID, MemberUpdate{Role: &bogus})
	require.ErrorIs(t, err, domain.ErrInvalidValue)
	super := "super_admin"
	_, _, err = f.svc.UpdateMember(f.ctx, f.admin, p.ID, MemberUpdate{Role: &super})
	require.ErrorIs(t, err, domain.ErrForbidden)

	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	until := from.Add(-24 * time.Hour)
	_, _, err = f.svc.UpdateMember(f.ctx, f.admin, p.ID, MemberUpdate{ActiveFrom: &from, ActiveUntil: &until})
	var violation domain.RuleViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, ruleProfileValidityWindow, violation.Result.Violations[0].Rule)

	self := domain.Scope{OrganizationID: f.org.ID, ActorID: p.ID, Role: domain.RoleOwner}
	_, err = f.svc.ListMembers(f.ctx, self)
	require.ErrorIs(t, err, domain.ErrForbidden)
	me, err := f.svc.GetProfile(f.ctx, self, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Email, me.Email)
	members, err := f.svc.ListMembers(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, members, 1)
	_, err = f.svc.GetProfile(f.ctx, domain.Scope{OrganizationID: f.org.ID, ActorID: "x", Role: domain.RoleTenant}, p.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPublishFailureIsLoggedOnly(t *testing.T) {
	lggr, logs := logger.TestObserved(t, zapcore.WarnLevel)
	f := newFixture(t, WithLogger(lggr))
	f.feed.Err = errors.New("broker down")
	_, _, err := f.svc.CreateUnit(f.ctx, f.admin, domain.Unit{Number: "1"})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("audit publish failed").Len())
}

func TestRunSkipsCredentialRecordsInFeed(t *testing.T) {
	f := newFixture(t)
	before := len(f.feed.Events())
	_, err := f.svc.Run(context.Background(), "seed_account", f.admin, func(tx Transaction) error {
		_, err := tx.Accounts().Create(domain.Account{Email: "a@b.co"})
		return err
	})
	require.NoError(t, err)
	assert.Len(t, f.feed.Events(), before)
}
