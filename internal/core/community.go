package core

import (
	"context"
	"fmt"
	"slices"

	"societycore/pkg/domain"
)

// Priorities accepted on announcements and tickets.
var Priorities = []string{"low", "normal", "high", "urgent"}

func checkPriority(problems domain.ValidationErrors, p *string) {
	if *p == "" {
		*p = "normal"
	}
	if !slices.Contains(Priorities, *p) {
		problems.Add("priority", fmt.Sprintf("must be one of %v", Priorities))
	}
}

func defaultCategory(c string) string {
	if c = domain.SanitizeText(c); c == "" {
		return "general"
	}
	return c
}

var announcements = resource[domain.Announcement]{
	entity: domain.EntityAnnouncement,
	table:  func(tx Transaction) domain.Table[domain.Announcement] { return tx.Announcements() },
	view:   func(v TransactionView) domain.ReadTable[domain.Announcement] { return v.Announcements() },
	prepare: func(_ TransactionView, scope domain.Scope, a *domain.Announcement) error {
		defaultOrg(scope, &a.OrganizationID)
		if a.AuthorID == "" {
			a.AuthorID = scope.ActorID
		}
		problems := domain.ValidationErrors{}
		a.Title = domain.SanitizeText(a.Title)
		a.Body = domain.SanitizeText(a.Body)
		a.Category = defaultCategory(a.Category)
		if a.Title == "" {
			problems.Add("title", "is required")
		}
		if a.Body == "" {
			problems.Add("body", "is required")
		}
		checkPriority(problems, &a.Priority)
		return problems.Err()
	},
	canWrite: managerOnly[domain.Announcement],
	canRead: func(scope domain.Scope, a domain.Announcement) bool {
		return a.Published || scope.Role.CanManage()
	},
}

// CreateAnnouncement persists a notice. Drafts stay hidden from residents until published.
func (s *Service) CreateAnnouncement(ctx context.Context, scope domain.Scope, a domain.Announcement) (domain.Announcement, Result, error) {
	return createRecord(ctx, s, announcements, scope, a)
}

// UpdateAnnouncement mutates an announcement.
func (s *Service) UpdateAnnouncement(ctx context.Context, scope domain.Scope, id string, mutator func(*domain.Announcement) error) (domain.Announcement, Result, error) {
	return updateRecord(ctx, s, announcements, scope, id, mutator)
}

// DeleteAnnouncement removes an announcement.
func (s *Service) DeleteAnnouncement(ctx context.Context, scope domain.Scope, id string) (Result, error) {
	return deleteRecord(ctx, s, announcements, scope, id)
}

// GetAnnouncement fetches one announcement.
func (s *Service) GetAnnouncement(ctx context.Context, scope domain.Scope, id string) (domain.Announcement, error) {
	return getRecord(ctx, s, announcements, scope, id)
}

// ListAnnouncements returns the announcements visible to scope.
func (s *Service) ListAnnouncements(ctx context.Context, scope domain.Scope) ([]domain.Announcement, error) {
	return listRecords(ctx, s, announcements, scope)
}

var ticketStatuses = []domain.TicketStatus{domain.TicketOpen, domain.TicketInProgress, domain.TicketResolved, domain.TicketClosed}

var tickets = resource[domain.Ticket]{
	entity: domain.EntityTicket,
	table:  func(tx Transaction) domain.Table[domain.Ticket] { return tx.Tickets() },
	view:   func(v TransactionView) domain.ReadTable[domain.Ticket] { return v.Tickets() },
	prepare: func(view TransactionView, scope domain.Scope, t *domain.Ticket) error {
		defaultOrg(scope, &t.OrganizationID)
		if t.RaisedBy == "" {
			t.RaisedBy = scope.ActorID
		}
		problems := domain.ValidationErrors{}
		t.Title = domain.SanitizeText(t.Title)
		t.Description = domain.SanitizeText(t.Description)
		t.Category = defaultCategory(t.Category)
		if t.Title == "" {
			problems.Add("title", "is required")
		}
		checkPriority(problems, &t.Priority)
		if t.Status == "" {
			t.Status = domain.TicketOpen
		}
		if !slices.Contains(ticketStatuses, t.Status) {
			problems.Add("status", fmt.Sprintf("unknown ticket status %q", t.Status))
		}
		if t.UnitID != "" && !requireInOrg(view.Units(), t.OrganizationID, t.UnitID) {
			problems.Add("unit_id", "unknown unit")
		}
		if t.AssigneeID != "" && !requireInOrg(view.Profiles(), t.OrganizationID, t.AssigneeID) {
			problems.Add("assignee_id", "unknown profile")
		}
		return problems.Err()
	},
	canWrite: func(scope domain.Scope, t domain.Ticket) error {
		if scope.Role.CanManage() || t.RaisedBy == scope.ActorID {
			return nil
		}
		return fmt.Errorf("%w: ticket raised by another member", domain.ErrForbidden)
	},
	canRead: func(scope domain.Scope, t domain.Ticket) bool {
		return scope.Role.CanManage() || t.RaisedBy == scope.ActorID
	},
}

// CreateTicket raises a helpdesk ticket on behalf of the caller.
func (s *Service) CreateTicket(ctx context.Context, scope domain.Scope, t domain.Ticket) (domain.Ticket, Result, error) {
	return createRecord(ctx, s, tickets, scope, t)
}

// UpdateTicket mutates a ticket. Residents may only touch their own tickets.
func (s *Service) UpdateTicket(ctx context.Context, scope domain.Scope, id string, mutator func(*domain.Ticket) error) (domain.Ticket, Result, error) {
	return updateRecord(ctx, s, tickets, scope, id, mutator)
}

// DeleteTicket removes a ticket.
func (s *Service) DeleteTicket(ctx context.Context, scope domain.Scope, id string) (Result, error) {
	return deleteRecord(ctx, s, tickets, scope, id)
}

// GetTicket fetches one ticket.
func (s *Service) GetTicket(ctx context.Context, scope domain.Scope, id string) (domain.Ticket, error) {
	return getRecord(ctx, s, tickets, scope, id)
}

// ListTickets returns every ticket for managers and the caller's own tickets otherwise.
func (s *Service) ListTickets(ctx context.Context, scope domain.Scope) ([]domain.Ticket, error) {
	return listRecords(ctx, s, tickets, scope)
}

var communityEvents = resource[domain.Event]{
	entity: domain.EntityEvent,
	table:  func(tx Transaction) domain.Table[domain.Event] { return tx.Events() },
	view:   func(v TransactionView) domain.ReadTable[domain.Event] { return v.Events() },
	prepare: func(_ TransactionView, scope domain.Scope, e *domain.Event) error {
		defaultOrg(scope, &e.OrganizationID)
		problems := domain.ValidationErrors{}
		e.Title = domain.SanitizeText(e.Title)
		e.Description = domain.SanitizeText(e.Description)
		e.Location = domain.SanitizeText(e.Location)
		e.Category = defaultCategory(e.Category)
		if e.Title == "" {
			problems.Add("title", "is required")
		}
		if e.StartsAt.IsZero() {
			problems.Add("starts_at", "is required")
		}
		if e.EndsAt.IsZero() {
			e.EndsAt = e.StartsAt
		}
		if e.EndsAt.Before(e.StartsAt) {
			problems.Add("ends_at", "must not precede starts_at")
		}
		return problems.Err()
	},
	canWrite: managerOnly[domain.Event],
}

// CreateEvent schedules a community event. A missing end time defaults to the start.
func (s *Service) CreateEvent(ctx context.Context, scope domain.Scope, e domain.Event) (domain.Event, Result, error) {
	return createRecord(ctx, s, communityEvents, scope, e)
}

// UpdateEvent mutates an event.
func (s *Service) UpdateEvent(ctx context.Context, scope domain.Scope, id string, mutator func(*domain.Event) error) (domain.Event, Result, error) {
	return updateRecord(ctx, s, communityEvents, scope, id, mutator)
}

// DeleteEvent removes an event.
func (s *Service) DeleteEvent(ctx context.Context, scope domain.Scope, id string) (Result, error) {
	return deleteRecord(ctx, s, communityEvents, scope, id)
}

// GetEvent fetches one event.
func (s *Service) GetEvent(ctx context.Context, scope domain.Scope, id string) (domain.Event, error) {
	return getRecord(ctx, s, communityEvents, scope, id)
}

// ListEvents returns the events visible to scope.
func (s *Service) ListEvents(ctx context.Context, scope domain.Scope) ([]domain.Event, error) {
	return listRecords(ctx, s, communityEvents, scope)
}

var householdMembers = resource[domain.HouseholdMember]{
	entity: domain.EntityHouseholdMember,
	table:  func(tx Transaction) domain.Table[domain.HouseholdMember] { return tx.HouseholdMembers() },
	view:   func(v TransactionView) domain.ReadTable[domain.HouseholdMember] { return v.HouseholdMembers() },
	prepare: func(view TransactionView, scope domain.Scope, h *domain.HouseholdMember) error {
		defaultOrg(scope, &h.OrganizationID)
		if h.PrimaryProfileID == "" {
			h.PrimaryProfileID = scope.ActorID
		}
		problems := domain.ValidationErrors{}
		h.Name = domain.SanitizeText(h.Name)
		h.Relationship = domain.SanitizeText(h.Relationship)
		h.Phone = domain.SanitizeText(h.Phone)
		if h.Name == "" {
			problems.Add("name", "is required")
		}
		if h.Relationship == "" {
			problems.Add("relationship", "is required")
		}
		if h.Email != "" {
			email, err := domain.NormalizeEmail(h.Email)
			if err != nil {
				problems.Add("email", err.Error())
			}
			h.Email = email
		}
		if !requireInOrg(view.Profiles(), h.OrganizationID, h.PrimaryProfileID) {
			problems.Add("primary_profile_id", "unknown profile")
		}
		return problems.Err()
	},
	canWrite: func(scope domain.Scope, h domain.HouseholdMember) error {
		if scope.Role.CanManage() || h.PrimaryProfileID == scope.ActorID {
			return nil
		}
		return fmt.Errorf("%w: household belongs to another member", domain.ErrForbidden)
	},
	canRead: func(scope domain.Scope, h domain.HouseholdMember) bool {
		return scope.Role.CanManage() || h.PrimaryProfileID == scope.ActorID
	},
}

// CreateHouseholdMember attaches a person to a primary resident, the caller by default.
func (s *Service) CreateHouseholdMember(ctx context.Context, scope domain.Scope, h domain.HouseholdMember) (domain.HouseholdMember, Result, error) {
	return createRecord(ctx, s, householdMembers, scope, h)
}

// UpdateHouseholdMember mutates a household member.
func (s *Service) UpdateHouseholdMember(ctx context.Context, scope domain.Scope, id string, mutator func(*domain.HouseholdMember) error) (domain.HouseholdMember, Result, error) {
	return updateRecord(ctx, s, householdMembers, scope, id, mutator)
}

// DeleteHouseholdMember removes a household member.
func (s *Service) DeleteHouseholdMember(ctx context.Context, scope domain.Scope, id string) (Result, error) {
	return deleteRecord(ctx, s, householdMembers, scope, id)
}

// GetHouseholdMember fetches one household member.
func (s *Service) GetHouseholdMember(ctx context.Context, scope domain.Scope, id string) (domain.HouseholdMember, error) {
	return getRecord(ctx, s, householdMembers, scope, id)
}

// ListHouseholdMembers returns every household for managers and the caller's own otherwise.
func (s *Service) ListHouseholdMembers(ctx context.Context, scope domain.Scope) ([]domain.HouseholdMember, error) {
	return listRecords(ctx, s, householdMembers, scope)
}
