// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"societycore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// Close is a no-op; the memory store holds no external resources.
func (s *Store) Close() error { return nil }

// SetNowFunc replaces the clock used to stamp records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn succeeds and no rule blocks.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	res, _, err := s.RunTracked(ctx, fn)
	return res, err
}

// RunTracked is RunInTransaction that also returns the committed changes, so
// durable wrappers can write back only the buckets a transaction touched.
func (s *Store) RunTracked(ctx context.Context, fn func(tx Transaction) error) (Result, []Change, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, nil, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, newTransactionView(&tx.state), tx.changes)
		if err != nil {
			return Result{}, nil, err
		}
		result = res
		if res.HasBlocking() {
			return res, nil, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, tx.changes, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// Changes returns the mutations recorded so far.
func (tx *transaction) Changes() []Change {
	return append([]Change(nil), tx.changes...)
}

func (tx *transaction) Organizations() domain.Table[domain.Organization] {
	return &table[domain.Organization, *domain.Organization]{
		entity: domain.EntityOrganization, rows: tx.state.organizations, tx: tx,
		guard: func(id string) error { return organizationInUse(&tx.state, id) },
	}
}

func (tx *transaction) Profiles() domain.Table[domain.Profile] {
	return &table[domain.Profile, *domain.Profile]{
		entity: domain.EntityProfile, rows: tx.state.profiles, tx: tx, clone: cloneProfile,
		guard: func(id string) error { return profileInUse(&tx.state, id) },
	}
}

func (tx *transaction) Units() domain.Table[domain.Unit] {
	return &table[domain.Unit, *domain.Unit]{
		entity: domain.EntityUnit, rows: tx.state.units, tx: tx,
		guard: func(id string) error { return unitInUse(&tx.state, id) },
	}
}

func (tx *transaction) Assignments() domain.Table[domain.UnitAssignment] {
	return &table[domain.UnitAssignment, *domain.UnitAssignment]{
		entity: domain.EntityUnitAssignment, rows: tx.state.assignments, tx: tx, clone: cloneAssignment,
	}
}

func (tx *transaction) HouseholdMembers() domain.Table[domain.HouseholdMember] {
	return &table[domain.HouseholdMember, *domain.HouseholdMember]{
		entity: domain.EntityHouseholdMember, rows: tx.state.household, tx: tx, clone: cloneHouseholdMember,
	}
}

func (tx *transaction) Announcements() domain.Table[domain.Announcement] {
	return &table[domain.Announcement, *domain.Announcement]{
		entity: domain.EntityAnnouncement, rows: tx.state.announcements, tx: tx,
	}
}

func (tx *transaction) Tickets() domain.Table[domain.Ticket] {
	return &table[domain.Ticket, *domain.Ticket]{entity: domain.EntityTicket, rows: tx.state.tickets, tx: tx}
}

func (tx *transaction) Events() domain.Table[domain.Event] {
	return &table[domain.Event, *domain.Event]{entity: domain.EntityEvent, rows: tx.state.events, tx: tx}
}

func (tx *transaction) Documents() domain.Table[domain.Document] {
	return &table[domain.Document, *domain.Document]{entity: domain.EntityDocument, rows: tx.state.documents, tx: tx}
}

func (tx *transaction) Invoices() domain.Table[domain.Invoice] {
	return &table[domain.Invoice, *domain.Invoice]{
		entity: domain.EntityInvoice, rows: tx.state.invoices, tx: tx, clone: cloneInvoice,
	}
}

func (tx *transaction) Amenities() domain.Table[domain.Amenity] {
	return &table[domain.Amenity, *domain.Amenity]{entity: domain.EntityAmenity, rows: tx.state.amenities, tx: tx}
}

func (tx *transaction) ForumPosts() domain.Table[domain.ForumPost] {
	return &table[domain.ForumPost, *domain.ForumPost]{
		entity: domain.EntityForumPost, rows: tx.state.forum, tx: tx,
		guard: func(id string) error { return threadHasReplies(&tx.state, id) },
	}
}

func (tx *transaction) Assets() domain.Table[domain.Asset] {
	return &table[domain.Asset, *domain.Asset]{entity: domain.EntityAsset, rows: tx.state.assets, tx: tx, clone: cloneAsset}
}

func (tx *transaction) ParkingSlots() domain.Table[domain.ParkingSlot] {
	return &table[domain.ParkingSlot, *domain.ParkingSlot]{entity: domain.EntityParkingSlot, rows: tx.state.parking, tx: tx}
}

func (tx *transaction) Accounts() domain.Table[domain.Account] {
	return &table[domain.Account, *domain.Account]{entity: domain.EntityAccount, rows: tx.state.accounts, tx: tx}
}

func (tx *transaction) Challenges() domain.Table[domain.TwoFactorChallenge] {
	return &table[domain.TwoFactorChallenge, *domain.TwoFactorChallenge]{
		entity: domain.EntityChallenge, rows: tx.state.challenges, tx: tx,
	}
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) Organizations() domain.ReadTable[domain.Organization] {
	return &table[domain.Organization, *domain.Organization]{entity: domain.EntityOrganization, rows: v.state.organizations}
}

func (v transactionView) Profiles() domain.ReadTable[domain.Profile] {
	return &table[domain.Profile, *domain.Profile]{entity: domain.EntityProfile, rows: v.state.profiles, clone: cloneProfile}
}

func (v transactionView) Units() domain.ReadTable[domain.Unit] {
	return &table[domain.Unit, *domain.Unit]{entity: domain.EntityUnit, rows: v.state.units}
}

func (v transactionView) Assignments() domain.ReadTable[domain.UnitAssignment] {
	return &table[domain.UnitAssignment, *domain.UnitAssignment]{
		entity: domain.EntityUnitAssignment, rows: v.state.assignments, clone: cloneAssignment,
	}
}

func (v transactionView) HouseholdMembers() domain.ReadTable[domain.HouseholdMember] {
	return &table[domain.HouseholdMember, *domain.HouseholdMember]{
		entity: domain.EntityHouseholdMember, rows: v.state.household, clone: cloneHouseholdMember,
	}
}

func (v transactionView) Announcements() domain.ReadTable[domain.Announcement] {
	return &table[domain.Announcement, *domain.Announcement]{entity: domain.EntityAnnouncement, rows: v.state.announcements}
}

func (v transactionView) Tickets() domain.ReadTable[domain.Ticket] {
	return &table[domain.Ticket, *domain.Ticket]{entity: domain.EntityTicket, rows: v.state.tickets}
}

func (v transactionView) Events() domain.ReadTable[domain.Event] {
	return &table[domain.Event, *domain.Event]{entity: domain.EntityEvent, rows: v.state.events}
}

func (v transactionView) Documents() domain.ReadTable[domain.Document] {
	return &table[domain.Document, *domain.Document]{entity: domain.EntityDocument, rows: v.state.documents}
}

func (v transactionView) Invoices() domain.ReadTable[domain.Invoice] {
	return &table[domain.Invoice, *domain.Invoice]{entity: domain.EntityInvoice, rows: v.state.invoices, clone: cloneInvoice}
}

func (v transactionView) Amenities() domain.ReadTable[domain.Amenity] {
	return &table[domain.Amenity, *domain.Amenity]{entity: domain.EntityAmenity, rows: v.state.amenities}
}

func (v transactionView) ForumPosts() domain.ReadTable[domain.ForumPost] {
	return &table[domain.ForumPost, *domain.ForumPost]{entity: domain.EntityForumPost, rows: v.state.forum}
}

func (v transactionView) Assets() domain.ReadTable[domain.Asset] {
	return &table[domain.Asset, *domain.Asset]{entity: domain.EntityAsset, rows: v.state.assets, clone: cloneAsset}
}

func (v transactionView) ParkingSlots() domain.ReadTable[domain.ParkingSlot] {
	return &table[domain.ParkingSlot, *domain.ParkingSlot]{entity: domain.EntityParkingSlot, rows: v.state.parking}
}

func (v transactionView) Accounts() domain.ReadTable[domain.Account] {
	return &table[domain.Account, *domain.Account]{entity: domain.EntityAccount, rows: v.state.accounts}
}

func (v transactionView) Challenges() domain.ReadTable[domain.TwoFactorChallenge] {
	return &table[domain.TwoFactorChallenge, *domain.TwoFactorChallenge]{entity: domain.EntityChallenge, rows: v.state.challenges}
}

func organizationInUse(state *memoryState, id string) error {
	for _, p := range state.profiles {
		if p.OrganizationID == id {
			return fmt.Errorf("%w: organization %q still referenced by profile %q", domain.ErrConflict, id, p.ID)
		}
	}
	for _, u := range state.units {
		if u.OrganizationID == id {
			return fmt.Errorf("%w: organization %q still referenced by unit %q", domain.ErrConflict, id, u.ID)
		}
	}
	return nil
}

func profileInUse(state *memoryState, id string) error {
	for _, a := range state.assignments {
		if a.ProfileID == id {
			return fmt.Errorf("%w: profile %q still referenced by assignment %q", domain.ErrConflict, id, a.ID)
		}
	}
	for _, h := range state.household {
		if h.PrimaryProfileID == id {
			return fmt.Errorf("%w: profile %q still referenced by household member %q", domain.ErrConflict, id, h.ID)
		}
	}
	return nil
}

func unitInUse(state *memoryState, id string) error {
	for _, a := range state.assignments {
		if a.UnitID == id {
			return fmt.Errorf("%w: unit %q still referenced by assignment %q", domain.ErrConflict, id, a.ID)
		}
	}
	for _, inv := range state.invoices {
		if inv.UnitID == id {
			return fmt.Errorf("%w: unit %q still referenced by invoice %q", domain.ErrConflict, id, inv.ID)
		}
	}
	for _, slot := range state.parking {
		if slot.UnitID == id {
			return fmt.Errorf("%w: unit %q still holds parking slot %q", domain.ErrConflict, id, slot.Code)
		}
	}
	return nil
}

func threadHasReplies(state *memoryState, id string) error {
	for _, p := range state.forum {
		if p.ThreadID == id {
			return fmt.Errorf("%w: thread %q still has replies", domain.ErrConflict, id)
		}
	}
	return nil
}
