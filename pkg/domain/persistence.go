package domain

import "context"

// ReadTable exposes read access to one record type.
type ReadTable[T any] interface {
	Get(id string) (T, bool)
	List() []T
}

// Table exposes the mutations a transaction supports for one record type.
// Create assigns ID and timestamps when absent; Update rejects ID changes.
type Table[T any] interface {
	ReadTable[T]
	Create(T) (T, error)
	Update(id string, mutator func(*T) error) (T, error)
	Delete(id string) error
}

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	Changes() []Change
	Organizations() Table[Organization]
	Profiles() Table[Profile]
	Units() Table[Unit]
	Assignments() Table[UnitAssignment]
	HouseholdMembers() Table[HouseholdMember]
	Announcements() Table[Announcement]
	Tickets() Table[Ticket]
	Events() Table[Event]
	Documents() Table[Document]
	Invoices() Table[Invoice]
	Amenities() Table[Amenity]
	ForumPosts() Table[ForumPost]
	Assets() Table[Asset]
	ParkingSlots() Table[ParkingSlot]
	Accounts() Table[Account]
	Challenges() Table[TwoFactorChallenge]
}

// TransactionView provides read-only access to snapshot data for rules and queries.
type TransactionView interface {
	Organizations() ReadTable[Organization]
	Profiles() ReadTable[Profile]
	Units() ReadTable[Unit]
	Assignments() ReadTable[UnitAssignment]
	HouseholdMembers() ReadTable[HouseholdMember]
	Announcements() ReadTable[Announcement]
	Tickets() ReadTable[Ticket]
	Events() ReadTable[Event]
	Documents() ReadTable[Document]
	Invoices() ReadTable[Invoice]
	Amenities() ReadTable[Amenity]
	ForumPosts() ReadTable[ForumPost]
	Assets() ReadTable[Asset]
	ParkingSlots() ReadTable[ParkingSlot]
	Accounts() ReadTable[Account]
	Challenges() ReadTable[TwoFactorChallenge]
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}

// ScopedList returns the records of table visible to scope.
func ScopedList[T Scoped](table ReadTable[T], scope Scope) []T {
	all := table.List()
	out := make([]T, 0, len(all))
	for _, rec := range all {
		if scope.Allows(rec.OrgID()) {
			out = append(out, rec)
		}
	}
	return out
}

// ScopedGet fetches id and hides records outside scope as not found.
func ScopedGet[T Scoped](table ReadTable[T], scope Scope, id string) (T, bool) {
	rec, ok := table.Get(id)
	if !ok || !scope.Allows(rec.OrgID()) {
		var zero T
		return zero, false
	}
	return rec, true
}
