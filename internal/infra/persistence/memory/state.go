package memory

import (
	"sort"
	"time"

	"societycore/pkg/domain"
)

type memoryState struct {
	organizations map[string]domain.Organization
	profiles      map[string]domain.Profile
	units         map[string]domain.Unit
	assignments   map[string]domain.UnitAssignment
	household     map[string]domain.HouseholdMember
	announcements map[string]domain.Announcement
	tickets       map[string]domain.Ticket
	events        map[string]domain.Event
	documents     map[string]domain.Document
	invoices      map[string]domain.Invoice
	amenities     map[string]domain.Amenity
	forum         map[string]domain.ForumPost
	assets        map[string]domain.Asset
	parking       map[string]domain.ParkingSlot
	accounts      map[string]domain.Account
	challenges    map[string]domain.TwoFactorChallenge
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Organizations map[string]domain.Organization       `json:"organizations"`
	Profiles      map[string]domain.Profile            `json:"profiles"`
	Units         map[string]domain.Unit               `json:"units"`
	Assignments   map[string]domain.UnitAssignment     `json:"assignments"`
	Household     map[string]domain.HouseholdMember    `json:"household"`
	Announcements map[string]domain.Announcement       `json:"announcements"`
	Tickets       map[string]domain.Ticket             `json:"tickets"`
	Events        map[string]domain.Event              `json:"events"`
	Documents     map[string]domain.Document           `json:"documents"`
	Invoices      map[string]domain.Invoice            `json:"invoices"`
	Amenities     map[string]domain.Amenity            `json:"amenities"`
	Forum         map[string]domain.ForumPost          `json:"forum"`
	Assets        map[string]domain.Asset              `json:"assets"`
	Parking       map[string]domain.ParkingSlot        `json:"parking"`
	Accounts      map[string]domain.Account            `json:"accounts"`
	Challenges    map[string]domain.TwoFactorChallenge `json:"challenges"`
}

// Buckets maps persistence bucket names to the snapshot fields they hold.
// Durable stores encode each entry as one JSON payload.
func (s *Snapshot) Buckets() map[string]any {
	return map[string]any{
		"organizations": &s.Organizations,
		"profiles":      &s.Profiles,
		"units":         &s.Units,
		"assignments":   &s.Assignments,
		"household":     &s.Household,
		"announcements": &s.Announcements,
		"tickets":       &s.Tickets,
		"events":        &s.Events,
		"documents":     &s.Documents,
		"invoices":      &s.Invoices,
		"amenities":     &s.Amenities,
		"forum":         &s.Forum,
		"assets":        &s.Assets,
		"parking":       &s.Parking,
		"accounts":      &s.Accounts,
		"challenges":    &s.Challenges,
	}
}

var bucketByEntity = map[domain.EntityType]string{
	domain.EntityOrganization:    "organizations",
	domain.EntityProfile:         "profiles",
	domain.EntityUnit:            "units",
	domain.EntityUnitAssignment:  "assignments",
	domain.EntityHouseholdMember: "household",
	domain.EntityAnnouncement:    "announcements",
	domain.EntityTicket:          "tickets",
	domain.EntityEvent:           "events",
	domain.EntityDocument:        "documents",
	domain.EntityInvoice:         "invoices",
	domain.EntityAmenity:         "amenities",
	domain.EntityForumPost:       "forum",
	domain.EntityAsset:           "assets",
	domain.EntityParkingSlot:     "parking",
	domain.EntityAccount:         "accounts",
	domain.EntityChallenge:       "challenges",
}

// BucketsFor returns the sorted, distinct buckets holding the changed entities.
func BucketsFor(changes []domain.Change) []string {
	seen := make(map[string]struct{}, len(changes))
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		name, ok := bucketByEntity[c.Entity]
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// BucketNames lists bucket names in a stable order.
func BucketNames() []string {
	var s Snapshot
	names := make([]string, 0, len(bucketByEntity))
	for name := range s.Buckets() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newMemoryState() memoryState {
	return memoryState{
		organizations: make(map[string]domain.Organization),
		profiles:      make(map[string]domain.Profile),
		units:         make(map[string]domain.Unit),
		assignments:   make(map[string]domain.UnitAssignment),
		household:     make(map[string]domain.HouseholdMember),
		announcements: make(map[string]domain.Announcement),
		tickets:       make(map[string]domain.Ticket),
		events:        make(map[string]domain.Event),
		documents:     make(map[string]domain.Document),
		invoices:      make(map[string]domain.Invoice),
		amenities:     make(map[string]domain.Amenity),
		forum:         make(map[string]domain.ForumPost),
		assets:        make(map[string]domain.Asset),
		parking:       make(map[string]domain.ParkingSlot),
		accounts:      make(map[string]domain.Account),
		challenges:    make(map[string]domain.TwoFactorChallenge),
	}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		organizations: cloneMap(s.organizations, nil),
		profiles:      cloneMap(s.profiles, cloneProfile),
		units:         cloneMap(s.units, nil),
		assignments:   cloneMap(s.assignments, cloneAssignment),
		household:     cloneMap(s.household, cloneHouseholdMember),
		announcements: cloneMap(s.announcements, nil),
		tickets:       cloneMap(s.tickets, nil),
		events:        cloneMap(s.events, nil),
		documents:     cloneMap(s.documents, nil),
		invoices:      cloneMap(s.invoices, cloneInvoice),
		amenities:     cloneMap(s.amenities, nil),
		forum:         cloneMap(s.forum, nil),
		assets:        cloneMap(s.assets, cloneAsset),
		parking:       cloneMap(s.parking, nil),
		accounts:      cloneMap(s.accounts, nil),
		challenges:    cloneMap(s.challenges, nil),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	c := state.clone()
	return Snapshot{
		Organizations: c.organizations,
		Profiles:      c.profiles,
		Units:         c.units,
		Assignments:   c.assignments,
		Household:     c.household,
		Announcements: c.announcements,
		Tickets:       c.tickets,
		Events:        c.events,
		Documents:     c.documents,
		Invoices:      c.invoices,
		Amenities:     c.amenities,
		Forum:         c.forum,
		Assets:        c.assets,
		Parking:       c.parking,
		Accounts:      c.accounts,
		Challenges:    c.challenges,
	}
}

// memoryStateFromSnapshot tolerates nil buckets from older or partial snapshots.
func memoryStateFromSnapshot(s Snapshot) memoryState {
	return memoryState{
		organizations: cloneMap(s.Organizations, nil),
		profiles:      cloneMap(s.Profiles, cloneProfile),
		units:         cloneMap(s.Units, nil),
		assignments:   cloneMap(s.Assignments, cloneAssignment),
		household:     cloneMap(s.Household, cloneHouseholdMember),
		announcements: cloneMap(s.Announcements, nil),
		tickets:       cloneMap(s.Tickets, nil),
		events:        cloneMap(s.Events, nil),
		documents:     cloneMap(s.Documents, nil),
		invoices:      cloneMap(s.Invoices, cloneInvoice),
		amenities:     cloneMap(s.Amenities, nil),
		forum:         cloneMap(s.Forum, nil),
		assets:        cloneMap(s.Assets, cloneAsset),
		parking:       cloneMap(s.Parking, nil),
		accounts:      cloneMap(s.Accounts, nil),
		challenges:    cloneMap(s.Challenges, nil),
	}
}

func cloneMap[T any](in map[string]T, fn func(T) T) map[string]T {
	out := make(map[string]T, len(in))
	for k, v := range in {
		if fn != nil {
			v = fn(v)
		}
		out[k] = v
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneProfile(p domain.Profile) domain.Profile {
	p.ActiveFrom = cloneTime(p.ActiveFrom)
	p.ActiveUntil = cloneTime(p.ActiveUntil)
	p.LockedUntil = cloneTime(p.LockedUntil)
	return p
}

func cloneAssignment(a domain.UnitAssignment) domain.UnitAssignment {
	a.EndDate = cloneTime(a.EndDate)
	return a
}

func cloneHouseholdMember(h domain.HouseholdMember) domain.HouseholdMember {
	h.DateOfBirth = cloneTime(h.DateOfBirth)
	return h
}

func cloneInvoice(i domain.Invoice) domain.Invoice {
	i.PaidAt = cloneTime(i.PaidAt)
	return i
}

func cloneAsset(a domain.Asset) domain.Asset {
	a.PurchasedOn = cloneTime(a.PurchasedOn)
	return a
}
