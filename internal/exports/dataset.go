package exports

import (
	"context"
	"fmt"

	"societycore/internal/core"
	"societycore/internal/listing"
	"societycore/pkg/domain"
)

// Table is a materialized dataset. Records keeps the typed rows for JSON output.
type Table struct {
	Columns []string
	Rows    [][]string
	Records any
}

// Dataset builds a table for one caller.
type Dataset interface {
	Name() string
	Build(ctx context.Context, scope domain.Scope, q listing.Query) (Table, error)
}

type tabular[T any] struct {
	name    string
	order   []string
	columns listing.Columns[T]
	list    func(context.Context, domain.Scope) ([]T, error)
}

func (t tabular[T]) Name() string { return t.name }

func (t tabular[T]) Build(ctx context.Context, scope domain.Scope, q listing.Query) (Table, error) {
	recs, err := t.list(ctx, scope)
	if err != nil {
		return Table{}, err
	}
	if recs, err = t.columns.Apply(recs, q); err != nil {
		return Table{}, err
	}
	if recs == nil {
		recs = []T{}
	}
	out := Table{Columns: t.order, Rows: make([][]string, 0, len(recs)), Records: recs}
	for _, rec := range recs {
		row := make([]string, len(t.order))
		for i, name := range t.order {
			row[i] = t.columns[name].Value(rec)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func newTabular[T any](name string, columns listing.Columns[T], list func(context.Context, domain.Scope) ([]T, error), order ...string) tabular[T] {
	for _, c := range order {
		if _, ok := columns[c]; !ok {
			panic(fmt.Sprintf("exports: dataset %s has no column %s", name, c))
		}
	}
	return tabular[T]{name: name, order: order, columns: columns, list: list}
}

// Catalog returns the exportable datasets keyed by name.
func Catalog(svc *core.Service) map[string]Dataset {
	sets := []Dataset{
		newTabular("members", listing.Members, svc.ListMembers, "full_name", "email", "phone", "role", "status", "created_at"),
		newTabular("units", listing.Units, svc.ListUnits, "label", "block", "number", "floor", "kind", "status", "area", "created_at"),
		newTabular("invoices", listing.Invoices, svc.ListInvoices, "number", "description", "status", "unit_id", "amount", "due_date"),
		newTabular("tickets", listing.Tickets, svc.ListTickets, "title", "category", "priority", "status", "unit_id", "assignee_id", "created_at"),
		newTabular("assets", listing.Assets, svc.ListAssets, "tag", "name", "category", "location", "status", "value"),
		newTabular("parking", listing.ParkingSlots, svc.ListParkingSlots, "code", "level", "kind", "allotted", "unit_id", "vehicle_number"),
	}
	out := make(map[string]Dataset, len(sets))
	for _, d := range sets {
		out[d.Name()] = d
	}
	return out
}
