package listing

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"societycore/pkg/domain"
)

func ticketIDs(ts []domain.Ticket) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

var tickets = []domain.Ticket{
	{Base: domain.Base{ID: "t1"}, Title: "Lift stuck on 4th floor", Category: "maintenance", Priority: "urgent", Status: domain.TicketOpen},
	{Base: domain.Base{ID: "t2"}, Title: "Water leakage", Description: "Seepage near LIFT lobby", Category: "plumbing", Priority: "high", Status: domain.TicketInProgress},
	{Base: domain.Base{ID: "t3"}, Title: "Parking sticker", Category: "admin", Priority: "low", Status: domain.TicketOpen},
	{Base: domain.Base{ID: "t4"}, Title: "Gym AC", Category: "maintenance", Priority: "normal", Status: domain.TicketClosed},
}

func TestSearchIsCaseInsensitiveAcrossFields(t *testing.T) {
	got, err := Tickets.Apply(tickets, Query{Search: "lift"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, ticketIDs(got))

	got, err = Tickets.Apply(tickets, Query{Search: "  "})
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = Tickets.Apply(tickets, Query{Search: "urgent"})
	require.NoError(t, err)
	assert.Empty(t, got, "priority is not searchable")
}

func TestFiltersAreMultiSelectAndCombineWithAnd(t *testing.T) {
	got, err := Tickets.Apply(tickets, Query{Filters: map[string][]string{"status": {"open", "CLOSED"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t3", "t4"}, ticketIDs(got))

	got, err = Tickets.Apply(tickets, Query{Filters: map[string][]string{
		"status":   {"open", "closed"},
		"category": {"maintenance"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t4"}, ticketIDs(got))

	got, err = Tickets.Apply(tickets, Query{Search: "gym", Filters: map[string][]string{"status": {"open"}}})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Tickets.Apply(tickets, Query{Filters: map[string][]string{"status": {}}})
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestUnknownFilterOrSortIsRejected(t *testing.T) {
	_, err := Tickets.Apply(tickets, Query{Filters: map[string][]string{"colour": {"red"}}})
	assert.ErrorIs(t, err, domain.ErrInvalidValue)
	_, err = Tickets.Apply(tickets, Query{Filters: map[string][]string{"title": {"x"}}})
	assert.ErrorIs(t, err, domain.ErrInvalidValue, "title is searchable, not filterable")
	_, err = Tickets.Apply(tickets, Query{Sort: "description"})
	assert.ErrorIs(t, err, domain.ErrInvalidValue)
}

func TestSortIsStable(t *testing.T) {
	got, err := Tickets.Apply(tickets, Query{Sort: "category"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t3", "t1", "t4", "t2"}, ticketIDs(got))

	got, err = Tickets.Apply(tickets, Query{Sort: "category", Desc: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t1", "t4", "t3"}, ticketIDs(got))
	assert.Equal(t, "t1", tickets[0].ID, "input untouched")
}

func TestTypedCompare(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	invoices := []domain.Invoice{
		{Number: "INV-1", AmountCents: 90000, DueDate: base.AddDate(0, 2, 0)},
		{Number: "INV-2", AmountCents: 150000, DueDate: base},
		{Number: "INV-3", AmountCents: 5000, DueDate: base.AddDate(0, 1, 0)},
	}
	got, err := Invoices.Apply(invoices, Query{Sort: "amount"})
	require.NoError(t, err)
	assert.Equal(t, "INV-3", got[0].Number)
	assert.Equal(t, "INV-2", got[2].Number)

	got, err = Invoices.Apply(invoices, Query{Sort: "due_date", Desc: true})
	require.NoError(t, err)
	assert.Equal(t, "INV-1", got[0].Number)
}

func TestParseQuery(t *testing.T) {
	values, err := url.ParseQuery("q=+Lift+&sort=priority&order=DESC&filter[status]=open,in_progress&filter[status]=closed&filter[category]=plumbing&filter[]=x&other=1")
	require.NoError(t, err)
	q := ParseQuery(values)
	assert.Equal(t, "Lift", q.Search)
	assert.Equal(t, "priority", q.Sort)
	assert.True(t, q.Desc)
	assert.ElementsMatch(t, []string{"open", "in_progress", "closed"}, q.Filters["status"])
	assert.Equal(t, []string{"plumbing"}, q.Filters["category"])
	assert.Len(t, q.Filters, 2)

	assert.Equal(t, Query{}, ParseQuery(url.Values{}))
}

func TestUnitColumns(t *testing.T) {
	units := []domain.Unit{
		{Block: "B", Number: "201", Status: domain.UnitVacant},
		{Block: "A", Number: "101", Status: domain.UnitOwnerOccupied},
	}
	got, err := Units.Apply(units, Query{Search: "a-10", Sort: "label"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "101", got[0].Number)
}
