// Package listing filters, searches and sorts record slices in memory.
// One Columns value describes a record type; every list endpoint shares the engine.
package listing

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"societycore/pkg/domain"
)

// Query is a parsed list request.
type Query struct {
	Search  string
	Filters map[string][]string
	Sort    string
	Desc    bool
}

// Column exposes one field of T to the engine.
type Column[T any] struct {
	Value func(T) string
	// Search includes the column in free text search.
	Search bool
	// Filter allows multi-select equality filters on the column.
	Filter bool
	// Sort allows ordering by the column.
	Sort bool
	// Compare overrides the default case-insensitive text ordering.
	Compare func(a, b T) int
}

// Columns maps column names to their accessors.
type Columns[T any] map[string]Column[T]

// Apply returns the rows matching q in the requested order. rows is not modified.
func (c Columns[T]) Apply(rows []T, q Query) ([]T, error) {
	if err := c.check(q); err != nil {
		return nil, err
	}
	term := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if c.matchSearch(row, term) && c.matchFilters(row, q.Filters) {
			out = append(out, row)
		}
	}
	if q.Sort != "" {
		col := c[q.Sort]
		compare := col.Compare
		if compare == nil {
			compare = func(a, b T) int {
				return cmp.Compare(strings.ToLower(col.Value(a)), strings.ToLower(col.Value(b)))
			}
		}
		slices.SortStableFunc(out, func(a, b T) int {
			if q.Desc {
				return compare(b, a)
			}
			return compare(a, b)
		})
	}
	return out, nil
}

func (c Columns[T]) check(q Query) error {
	for key := range q.Filters {
		if col, ok := c[key]; !ok || !col.Filter {
			return fmt.Errorf("%w: unknown filter %q", domain.ErrInvalidValue, key)
		}
	}
	if q.Sort != "" {
		if col, ok := c[q.Sort]; !ok || !col.Sort {
			return fmt.Errorf("%w: cannot sort by %q", domain.ErrInvalidValue, q.Sort)
		}
	}
	return nil
}

func (c Columns[T]) matchSearch(row T, term string) bool {
	if term == "" {
		return true
	}
	for _, col := range c {
		if col.Search && strings.Contains(strings.ToLower(col.Value(row)), term) {
			return true
		}
	}
	return false
}

func (c Columns[T]) matchFilters(row T, filters map[string][]string) bool {
	for key, selected := range filters {
		if len(selected) == 0 {
			continue
		}
		value := c[key].Value(row)
		if !slices.ContainsFunc(selected, func(s string) bool { return strings.EqualFold(s, value) }) {
			return false
		}
	}
	return true
}

// ParseQuery reads q, sort, order and filter[<key>] parameters. Filter values
// may repeat or be comma separated.
func ParseQuery(values url.Values) Query {
	q := Query{
		Search: strings.TrimSpace(values.Get("q")),
		Sort:   strings.TrimSpace(values.Get("sort")),
		Desc:   strings.EqualFold(values.Get("order"), "desc"),
	}
	for key, vals := range values {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(key, "filter["), "]")
		if name == "" {
			continue
		}
		if q.Filters == nil {
			q.Filters = map[string][]string{}
		}
		for _, v := range vals {
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					q.Filters[name] = append(q.Filters[name], part)
				}
			}
		}
	}
	return q
}
