package listing

import (
	"cmp"
	"strconv"
	"time"

	"societycore/pkg/domain"
)

func byTime[T any](get func(T) time.Time) func(a, b T) int {
	return func(a, b T) int { return get(a).Compare(get(b)) }
}

func created[T any](get func(T) time.Time) Column[T] {
	return Column[T]{Value: func(r T) string { return get(r).Format(time.RFC3339) }, Sort: true, Compare: byTime(get)}
}

// Units lists units.
var Units = Columns[domain.Unit]{
	"block":      {Value: func(u domain.Unit) string { return u.Block }, Search: true, Filter: true, Sort: true},
	"number":     {Value: func(u domain.Unit) string { return u.Number }, Search: true, Sort: true},
	"label":      {Value: domain.Unit.Label, Search: true, Sort: true},
	"floor":      {Value: func(u domain.Unit) string { return u.Floor }, Filter: true, Sort: true},
	"kind":       {Value: func(u domain.Unit) string { return string(u.Kind) }, Filter: true, Sort: true},
	"status":     {Value: func(u domain.Unit) string { return string(u.Status) }, Filter: true, Sort: true},
	"area":       {Value: func(u domain.Unit) string { return strconv.FormatFloat(u.AreaSqft, 'f', -1, 64) }, Sort: true, Compare: func(a, b domain.Unit) int { return cmp.Compare(a.AreaSqft, b.AreaSqft) }},
	"created_at": created(func(u domain.Unit) time.Time { return u.CreatedAt }),
}

// Members lists profiles.
var Members = Columns[domain.Profile]{
	"full_name":  {Value: func(p domain.Profile) string { return p.FullName }, Search: true, Sort: true},
	"email":      {Value: func(p domain.Profile) string { return p.Email }, Search: true, Sort: true},
	"phone":      {Value: func(p domain.Profile) string { return p.Phone }, Search: true},
	"role":       {Value: func(p domain.Profile) string { return string(p.Role) }, Filter: true, Sort: true},
	"status":     {Value: func(p domain.Profile) string { return string(p.Status) }, Filter: true, Sort: true},
	"created_at": created(func(p domain.Profile) time.Time { return p.CreatedAt }),
}

// HouseholdMembers lists household members.
var HouseholdMembers = Columns[domain.HouseholdMember]{
	"name":               {Value: func(h domain.HouseholdMember) string { return h.Name }, Search: true, Sort: true},
	"email":              {Value: func(h domain.HouseholdMember) string { return h.Email }, Search: true},
	"phone":              {Value: func(h domain.HouseholdMember) string { return h.Phone }, Search: true},
	"relationship":       {Value: func(h domain.HouseholdMember) string { return h.Relationship }, Filter: true, Sort: true},
	"primary_profile_id": {Value: func(h domain.HouseholdMember) string { return h.PrimaryProfileID }, Filter: true},
	"created_at":         created(func(h domain.HouseholdMember) time.Time { return h.CreatedAt }),
}

// Announcements lists notices.
var Announcements = Columns[domain.Announcement]{
	"title":      {Value: func(a domain.Announcement) string { return a.Title }, Search: true, Sort: true},
	"body":       {Value: func(a domain.Announcement) string { return a.Body }, Search: true},
	"category":   {Value: func(a domain.Announcement) string { return a.Category }, Filter: true, Sort: true},
	"priority":   {Value: func(a domain.Announcement) string { return a.Priority }, Filter: true, Sort: true},
	"published":  {Value: func(a domain.Announcement) string { return strconv.FormatBool(a.Published) }, Filter: true},
	"created_at": created(func(a domain.Announcement) time.Time { return a.CreatedAt }),
}

// Tickets lists helpdesk tickets.
var Tickets = Columns[domain.Ticket]{
	"title":       {Value: func(t domain.Ticket) string { return t.Title }, Search: true, Sort: true},
	"description": {Value: func(t domain.Ticket) string { return t.Description }, Search: true},
	"category":    {Value: func(t domain.Ticket) string { return t.Category }, Filter: true, Sort: true},
	"priority":    {Value: func(t domain.Ticket) string { return t.Priority }, Filter: true, Sort: true},
	"status":      {Value: func(t domain.Ticket) string { return string(t.Status) }, Filter: true, Sort: true},
	"unit_id":     {Value: func(t domain.Ticket) string { return t.UnitID }, Filter: true},
	"assignee_id": {Value: func(t domain.Ticket) string { return t.AssigneeID }, Filter: true},
	"created_at":  created(func(t domain.Ticket) time.Time { return t.CreatedAt }),
}

// Events lists community events.
var Events = Columns[domain.Event]{
	"title":     {Value: func(e domain.Event) string { return e.Title }, Search: true, Sort: true},
	"location":  {Value: func(e domain.Event) string { return e.Location }, Search: true, Filter: true, Sort: true},
	"category":  {Value: func(e domain.Event) string { return e.Category }, Filter: true, Sort: true},
	"starts_at": {Value: func(e domain.Event) string { return e.StartsAt.Format(time.RFC3339) }, Sort: true, Compare: byTime(func(e domain.Event) time.Time { return e.StartsAt })},
}

// Documents lists stored documents.
var Documents = Columns[domain.Document]{
	"title":        {Value: func(d domain.Document) string { return d.Title }, Search: true, Sort: true},
	"file_name":    {Value: func(d domain.Document) string { return d.FileName }, Search: true, Sort: true},
	"category":     {Value: func(d domain.Document) string { return d.Category }, Filter: true, Sort: true},
	"content_type": {Value: func(d domain.Document) string { return d.ContentType }, Filter: true},
	"size":         {Value: func(d domain.Document) string { return strconv.FormatInt(d.SizeBytes, 10) }, Sort: true, Compare: func(a, b domain.Document) int { return cmp.Compare(a.SizeBytes, b.SizeBytes) }},
	"created_at":   created(func(d domain.Document) time.Time { return d.CreatedAt }),
}

// Invoices lists invoices.
var Invoices = Columns[domain.Invoice]{
	"number":      {Value: func(i domain.Invoice) string { return i.Number }, Search: true, Sort: true},
	"description": {Value: func(i domain.Invoice) string { return i.Description }, Search: true},
	"status":      {Value: func(i domain.Invoice) string { return string(i.Status) }, Filter: true, Sort: true},
	"unit_id":     {Value: func(i domain.Invoice) string { return i.UnitID }, Filter: true},
	"amount":      {Value: func(i domain.Invoice) string { return strconv.FormatInt(i.AmountCents, 10) }, Sort: true, Compare: func(a, b domain.Invoice) int { return cmp.Compare(a.AmountCents, b.AmountCents) }},
	"due_date":    {Value: func(i domain.Invoice) string { return i.DueDate.Format(time.RFC3339) }, Sort: true, Compare: byTime(func(i domain.Invoice) time.Time { return i.DueDate })},
}

// Amenities lists shared facilities.
var Amenities = Columns[domain.Amenity]{
	"name":             {Value: func(a domain.Amenity) string { return a.Name }, Search: true, Sort: true},
	"location":         {Value: func(a domain.Amenity) string { return a.Location }, Search: true, Filter: true, Sort: true},
	"status":           {Value: func(a domain.Amenity) string { return string(a.Status) }, Filter: true, Sort: true},
	"booking_required": {Value: func(a domain.Amenity) string { return strconv.FormatBool(a.BookingRequired) }, Filter: true},
	"capacity":         {Value: func(a domain.Amenity) string { return strconv.Itoa(a.Capacity) }, Sort: true, Compare: func(a, b domain.Amenity) int { return cmp.Compare(a.Capacity, b.Capacity) }},
}

// ForumPosts lists forum threads and replies. Filter on thread_id to read one thread.
var ForumPosts = Columns[domain.ForumPost]{
	"title":      {Value: func(p domain.ForumPost) string { return p.Title }, Search: true, Sort: true},
	"body":       {Value: func(p domain.ForumPost) string { return p.Body }, Search: true},
	"category":   {Value: func(p domain.ForumPost) string { return p.Category }, Filter: true, Sort: true},
	"thread_id":  {Value: func(p domain.ForumPost) string { return p.ThreadID }, Filter: true},
	"author_id":  {Value: func(p domain.ForumPost) string { return p.AuthorID }, Filter: true},
	"pinned":     {Value: func(p domain.ForumPost) string { return strconv.FormatBool(p.Pinned) }, Filter: true, Sort: true},
	"created_at": created(func(p domain.ForumPost) time.Time { return p.CreatedAt }),
}

// Assets lists the asset register.
var Assets = Columns[domain.Asset]{
	"tag":      {Value: func(a domain.Asset) string { return a.Tag }, Search: true, Sort: true},
	"name":     {Value: func(a domain.Asset) string { return a.Name }, Search: true, Sort: true},
	"category": {Value: func(a domain.Asset) string { return a.Category }, Filter: true, Sort: true},
	"location": {Value: func(a domain.Asset) string { return a.Location }, Search: true, Filter: true},
	"status":   {Value: func(a domain.Asset) string { return string(a.Status) }, Filter: true, Sort: true},
	"value":    {Value: func(a domain.Asset) string { return strconv.FormatInt(a.ValueCents, 10) }, Sort: true, Compare: func(a, b domain.Asset) int { return cmp.Compare(a.ValueCents, b.ValueCents) }},
}

// ParkingSlots lists parking bays.
var ParkingSlots = Columns[domain.ParkingSlot]{
	"code":           {Value: func(p domain.ParkingSlot) string { return p.Code }, Search: true, Sort: true},
	"level":          {Value: func(p domain.ParkingSlot) string { return p.Level }, Filter: true, Sort: true},
	"kind":           {Value: func(p domain.ParkingSlot) string { return p.Kind }, Filter: true, Sort: true},
	"unit_id":        {Value: func(p domain.ParkingSlot) string { return p.UnitID }, Filter: true},
	"vehicle_number": {Value: func(p domain.ParkingSlot) string { return p.VehicleNumber }, Search: true},
	"allotted":       {Value: func(p domain.ParkingSlot) string { return strconv.FormatBool(p.Allotted()) }, Filter: true},
}
