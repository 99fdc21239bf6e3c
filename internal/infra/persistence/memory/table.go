package memory

import (
	"fmt"
	"sort"

	"societycore/pkg/domain"
)

type record[T any] interface {
	*T
	Meta() *domain.Base
}

// table adapts one state map to domain.Table. Read views leave tx nil.
type table[T any, PT record[T]] struct {
	entity domain.EntityType
	rows   map[string]T
	clone  func(T) T
	guard  func(id string) error
	tx     *transaction
}

func (t *table[T, PT]) copyOf(rec T) T {
	if t.clone == nil {
		return rec
	}
	return t.clone(rec)
}

func (t *table[T, PT]) Get(id string) (T, bool) {
	rec, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, false
	}
	return t.copyOf(rec), true
}

// List returns records ordered by creation time, then ID.
func (t *table[T, PT]) List() []T {
	out := make([]T, 0, len(t.rows))
	for _, rec := range t.rows {
		out = append(out, t.copyOf(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := PT(&out[i]).Meta(), PT(&out[j]).Meta()
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func (t *table[T, PT]) Create(rec T) (T, error) {
	var zero T
	if t.tx == nil {
		return zero, fmt.Errorf("%s: read-only view", t.entity)
	}
	meta := PT(&rec).Meta()
	if meta.ID == "" {
		meta.ID = t.tx.store.newID()
	}
	if _, exists := t.rows[meta.ID]; exists {
		return zero, fmt.Errorf("%w: %s %q already exists", domain.ErrConflict, t.entity, meta.ID)
	}
	meta.CreatedAt = t.tx.now
	meta.UpdatedAt = t.tx.now
	t.rows[meta.ID] = t.copyOf(rec)
	t.tx.recordChange(Change{Entity: t.entity, Action: domain.ActionCreate, After: t.copyOf(rec)})
	return t.copyOf(rec), nil
}

func (t *table[T, PT]) Update(id string, mutator func(*T) error) (T, error) {
	var zero T
	if t.tx == nil {
		return zero, fmt.Errorf("%s: read-only view", t.entity)
	}
	current, ok := t.rows[id]
	if !ok {
		return zero, fmt.Errorf("%s %q: %w", t.entity, id, domain.ErrNotFound)
	}
	before := t.copyOf(current)
	current = t.copyOf(current)
	if err := mutator(&current); err != nil {
		return zero, err
	}
	meta := PT(&current).Meta()
	meta.ID = id
	meta.CreatedAt = PT(&before).Meta().CreatedAt
	meta.UpdatedAt = t.tx.now
	t.rows[id] = t.copyOf(current)
	t.tx.recordChange(Change{Entity: t.entity, Action: domain.ActionUpdate, Before: before, After: t.copyOf(current)})
	return t.copyOf(current), nil
}

func (t *table[T, PT]) Delete(id string) error {
	if t.tx == nil {
		return fmt.Errorf("%s: read-only view", t.entity)
	}
	current, ok := t.rows[id]
	if !ok {
		return fmt.Errorf("%s %q: %w", t.entity, id, domain.ErrNotFound)
	}
	if t.guard != nil {
		if err := t.guard(id); err != nil {
			return err
		}
	}
	delete(t.rows, id)
	t.tx.recordChange(Change{Entity: t.entity, Action: domain.ActionDelete, Before: t.copyOf(current)})
	return nil
}
