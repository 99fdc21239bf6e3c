// Package domain defines the core persistent records, value types, and
// rule evaluation primitives used by societycore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityOrganization identifies a tenant (managed society or property).
	EntityOrganization EntityType = "organization"
	// EntityProfile identifies a member identity record.
	EntityProfile EntityType = "profile"
	// EntityUnit identifies a billable physical unit.
	EntityUnit EntityType = "unit"
	// EntityUnitAssignment links a profile to a unit as owner, tenant, or family member.
	EntityUnitAssignment EntityType = "unit_assignment"
	// EntityHouseholdMember identifies a person attached to a primary resident.
	EntityHouseholdMember EntityType = "household_member"
	EntityAnnouncement    EntityType = "announcement"
	EntityTicket          EntityType = "ticket"
	EntityEvent           EntityType = "event"
	EntityDocument        EntityType = "document"
	EntityInvoice         EntityType = "invoice"
	EntityAmenity         EntityType = "amenity"
	// EntityForumPost identifies a forum thread or a reply to one.
	EntityForumPost   EntityType = "forum_post"
	EntityAsset       EntityType = "asset"
	EntityParkingSlot EntityType = "parking_slot"
	// EntityAccount identifies a credential record backing a profile.
	EntityAccount EntityType = "account"
	// EntityChallenge identifies a one-time code challenge.
	EntityChallenge EntityType = "two_factor_challenge"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Meta exposes the embedded base for generic persistence helpers.
func (b *Base) Meta() *Base { return b }

// RecordID returns the record identifier.
func (b Base) RecordID() string { return b.ID }

// Identified is implemented by every record through Base.
type Identified interface {
	RecordID() string
}

// Scoped is implemented by every record owned by an organization.
type Scoped interface {
	OrgID() string
}

// Organization is the tenant boundary separating one managed property from another.
type Organization struct {
	Base
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	BrandColor string `json:"brand_color,omitempty"`
}

// OrgID implements Scoped; an organization is its own tenant.
func (o Organization) OrgID() string { return o.ID }

// Profile is the stored identity and role record for a member.
type Profile struct {
	Base
	OrganizationID      string          `json:"organization_id"`
	Email               string          `json:"email"`
	FullName            string          `json:"full_name"`
	Phone               string          `json:"phone,omitempty"`
	Role                Role            `json:"role"`
	Status              Status          `json:"status"`
	TwoFactorMethod     TwoFactorMethod `json:"two_factor_method"`
	TwoFactorEnabled    bool            `json:"two_factor_enabled"`
	TwoFactorPending    bool            `json:"two_factor_pending"`
	ActiveFrom          *time.Time      `json:"active_from,omitempty"`
	ActiveUntil         *time.Time      `json:"active_until,omitempty"`
	FailedLoginAttempts int             `json:"failed_login_attempts"`
	LockedUntil         *time.Time      `json:"locked_until,omitempty"`
	MustChangePassword  bool            `json:"must_change_password"`
}

// OrgID implements Scoped.
func (p Profile) OrgID() string { return p.OrganizationID }

// ActiveAt reports whether the validity window admits t. Open bounds always admit.
func (p Profile) ActiveAt(t time.Time) bool {
	if p.ActiveFrom != nil && t.Before(*p.ActiveFrom) {
		return false
	}
	if p.ActiveUntil != nil && t.After(*p.ActiveUntil) {
		return false
	}
	return true
}

// LockedAt reports whether the lockout window is still in force at t.
func (p Profile) LockedAt(t time.Time) bool {
	return p.LockedUntil != nil && t.Before(*p.LockedUntil)
}

// Unit captures a physical residential, commercial, or parking space.
type Unit struct {
	Base
	OrganizationID string     `json:"organization_id"`
	Block          string     `json:"block"`
	Number         string     `json:"number"`
	Floor          string     `json:"floor,omitempty"`
	Kind           UnitKind   `json:"kind"`
	Status         UnitStatus `json:"status"`
	AreaSqft       float64    `json:"area_sqft,omitempty"`
}

// OrgID implements Scoped.
func (u Unit) OrgID() string { return u.OrganizationID }

// Label renders the human facing unit code, e.g. "A-101".
func (u Unit) Label() string {
	if u.Block == "" {
		return u.Number
	}
	return u.Block + "-" + u.Number
}

// UnitAssignment links a profile to a unit.
type UnitAssignment struct {
	Base
	OrganizationID string       `json:"organization_id"`
	UnitID         string       `json:"unit_id"`
	ProfileID      string       `json:"profile_id"`
	Relationship   Relationship `json:"relationship"`
	Primary        bool         `json:"primary"`
	StartDate      time.Time    `json:"start_date"`
	EndDate        *time.Time   `json:"end_date,omitempty"`
}

// OrgID implements Scoped.
func (a UnitAssignment) OrgID() string { return a.OrganizationID }

// ActiveAt reports whether the assignment covers t.
func (a UnitAssignment) ActiveAt(t time.Time) bool {
	if t.Before(a.StartDate) {
		return false
	}
	return a.EndDate == nil || !t.After(*a.EndDate)
}

// HouseholdMember is a person linked to a primary resident.
type HouseholdMember struct {
	Base
	OrganizationID   string     `json:"organization_id"`
	PrimaryProfileID string     `json:"primary_profile_id"`
	Name             string     `json:"name"`
	Relationship     string     `json:"relationship"`
	Phone            string     `json:"phone,omitempty"`
	Email            string     `json:"email,omitempty"`
	DateOfBirth      *time.Time `json:"date_of_birth,omitempty"`
}

// OrgID implements Scoped.
func (h HouseholdMember) OrgID() string { return h.OrganizationID }

// Announcement is a notice published to members.
type Announcement struct {
	Base
	OrganizationID string `json:"organization_id"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	Category       string `json:"category"`
	Priority       string `json:"priority"`
	Published      bool   `json:"published"`
	AuthorID       string `json:"author_id"`
}

// OrgID implements Scoped.
func (a Announcement) OrgID() string { return a.OrganizationID }

// TicketStatus enumerates helpdesk ticket states.
type TicketStatus string

// Helpdesk ticket states.
const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

// Ticket is a helpdesk request raised by a member.
type Ticket struct {
	Base
	OrganizationID string       `json:"organization_id"`
	UnitID         string       `json:"unit_id,omitempty"`
	RaisedBy       string       `json:"raised_by"`
	AssigneeID     string       `json:"assignee_id,omitempty"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Category       string       `json:"category"`
	Priority       string       `json:"priority"`
	Status         TicketStatus `json:"status"`
}

// OrgID implements Scoped.
func (t Ticket) OrgID() string { return t.OrganizationID }

// Event is a scheduled community event.
type Event struct {
	Base
	OrganizationID string    `json:"organization_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Location       string    `json:"location"`
	Category       string    `json:"category"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
}

// OrgID implements Scoped.
func (e Event) OrgID() string { return e.OrganizationID }

// Document describes a stored file; content lives in the blob store under BlobKey.
type Document struct {
	Base
	OrganizationID string `json:"organization_id"`
	Title          string `json:"title"`
	Category       string `json:"category"`
	FileName       string `json:"file_name"`
	BlobKey        string `json:"blob_key"`
	ContentType    string `json:"content_type,omitempty"`
	SizeBytes      int64  `json:"size_bytes"`
	UploadedBy     string `json:"uploaded_by"`
}

// OrgID implements Scoped.
func (d Document) OrgID() string { return d.OrganizationID }

// InvoiceStatus enumerates invoice lifecycle states.
type InvoiceStatus string

// Invoice lifecycle states.
const (
	InvoiceDraft  InvoiceStatus = "draft"
	InvoiceIssued InvoiceStatus = "issued"
	InvoicePaid   InvoiceStatus = "paid"
	InvoiceVoid   InvoiceStatus = "void"
)

// Invoice is a maintenance or utility bill raised against a unit.
type Invoice struct {
	Base
	OrganizationID   string        `json:"organization_id"`
	Number           string        `json:"number"`
	UnitID           string        `json:"unit_id"`
	ProfileID        string        `json:"profile_id,omitempty"`
	Description      string        `json:"description"`
	AmountCents      int64         `json:"amount_cents"`
	Currency         string        `json:"currency"`
	DueDate          time.Time     `json:"due_date"`
	Status           InvoiceStatus `json:"status"`
	PaymentSessionID string        `json:"payment_session_id,omitempty"`
	PaymentURL       string        `json:"payment_url,omitempty"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
}

// OrgID implements Scoped.
func (i Invoice) OrgID() string { return i.OrganizationID }

// AmenityStatus enumerates whether an amenity can be used.
type AmenityStatus string

// Amenity states.
const (
	AmenityOpen        AmenityStatus = "open"
	AmenityMaintenance AmenityStatus = "maintenance"
	AmenityClosed      AmenityStatus = "closed"
)

// Amenity is a shared facility such as a clubhouse or pool.
type Amenity struct {
	Base
	OrganizationID  string        `json:"organization_id"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	Location        string        `json:"location,omitempty"`
	Capacity        int           `json:"capacity"`
	BookingRequired bool          `json:"booking_required"`
	Status          AmenityStatus `json:"status"`
}

// OrgID implements Scoped.
func (a Amenity) OrgID() string { return a.OrganizationID }

// ForumPost is a thread when ThreadID is empty and a reply otherwise.
type ForumPost struct {
	Base
	OrganizationID string `json:"organization_id"`
	ThreadID       string `json:"thread_id,omitempty"`
	AuthorID       string `json:"author_id"`
	Title          string `json:"title,omitempty"`
	Body           string `json:"body"`
	Category       string `json:"category,omitempty"`
	Pinned         bool   `json:"pinned"`
	Locked         bool   `json:"locked"`
}

// OrgID implements Scoped.
func (f ForumPost) OrgID() string { return f.OrganizationID }

// AssetStatus enumerates the service state of society property.
type AssetStatus string

// Asset states.
const (
	AssetInService   AssetStatus = "in_service"
	AssetUnderRepair AssetStatus = "under_repair"
	AssetRetired     AssetStatus = "retired"
)

// Asset is equipment or property owned by the society.
type Asset struct {
	Base
	OrganizationID string      `json:"organization_id"`
	Tag            string      `json:"tag"`
	Name           string      `json:"name"`
	Category       string      `json:"category"`
	Location       string      `json:"location,omitempty"`
	Status         AssetStatus `json:"status"`
	PurchasedOn    *time.Time  `json:"purchased_on,omitempty"`
	ValueCents     int64       `json:"value_cents,omitempty"`
}

// OrgID implements Scoped.
func (a Asset) OrgID() string { return a.OrganizationID }

// ParkingSlot is a parking bay, optionally allotted to a unit.
type ParkingSlot struct {
	Base
	OrganizationID string `json:"organization_id"`
	Code           string `json:"code"`
	Level          string `json:"level,omitempty"`
	Kind           string `json:"kind"`
	UnitID         string `json:"unit_id,omitempty"`
	VehicleNumber  string `json:"vehicle_number,omitempty"`
}

// OrgID implements Scoped.
func (p ParkingSlot) OrgID() string { return p.OrganizationID }

// Allotted reports whether the slot is assigned to a unit.
func (p ParkingSlot) Allotted() bool { return p.UnitID != "" }

// Account holds the credential backing a profile.
type Account struct {
	Base
	Email              string `json:"email"`
	PasswordHash       string `json:"password_hash"`
	ProfileID          string `json:"profile_id"`
	MustChangePassword bool   `json:"must_change_password"`
}

// ChallengePurpose distinguishes why a one-time code was issued.
type ChallengePurpose string

// One-time code purposes.
const (
	PurposeEnrollment    ChallengePurpose = "enrollment"
	PurposeSignIn        ChallengePurpose = "sign_in"
	PurposePasswordReset ChallengePurpose = "password_reset"
)

// TwoFactorChallenge is an outstanding one-time code.
type TwoFactorChallenge struct {
	Base
	ProfileID string           `json:"profile_id"`
	Purpose   ChallengePurpose `json:"purpose"`
	Method    TwoFactorMethod  `json:"method"`
	CodeHash  string           `json:"code_hash"`
	ExpiresAt time.Time        `json:"expires_at"`
	Attempts  int              `json:"attempts"`
	Consumed  bool             `json:"consumed"`
}
