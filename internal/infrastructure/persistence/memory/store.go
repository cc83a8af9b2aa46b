// Package memory implements in-memory persistence collaborators: a record
// store for repository semantics tests and local development, and a
// process-wide report cache with sliding/absolute expiration.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/schoolhub/progress-hub/internal/domain/entity"
	"github.com/schoolhub/progress-hub/internal/domain/repository"
	"github.com/schoolhub/progress-hub/internal/domain/shared"
)

// CloneFunc deep-copies a record so callers never alias stored rows.
type CloneFunc[T entity.Record] func(T) T

// RelationLoader eagerly attaches a named relation to already selected rows.
type RelationLoader[T entity.Record] func(ctx context.Context, items []T) error

// Store is an in-memory repository.Store implementation.
// Rows are kept in insertion order so Select output is stable.
type Store[T entity.Record] struct {
	mu      sync.RWMutex
	rows    map[string]T
	order   []string
	clone   CloneFunc[T]
	loaders map[string]RelationLoader[T]
}

// NewStore creates an empty in-memory store.
func NewStore[T entity.Record](clone CloneFunc[T]) *Store[T] {
	return &Store[T]{
		rows:    make(map[string]T),
		clone:   clone,
		loaders: make(map[string]RelationLoader[T]),
	}
}

// RegisterRelation registers an eager-loading hook for a relation name.
func (s *Store[T]) RegisterRelation(name string, loader RelationLoader[T]) {
	s.loaders[name] = loader
}

// Select returns rows matching the query, in insertion order.
func (s *Store[T]) Select(ctx context.Context, q repository.Query) ([]T, error) {
	s.mu.RLock()
	matched := make([]T, 0)
	for _, id := range s.order {
		row, ok := s.rows[id]
		if !ok {
			continue
		}
		if !matches(row.Meta(), q) {
			continue
		}
		matched = append(matched, s.clone(row))
	}
	s.mu.RUnlock()

	for _, relation := range q.Relations {
		loader, ok := s.loaders[relation]
		if !ok {
			return nil, shared.NewDomainError("memory", "Select", shared.ErrInvalidInput,
				fmt.Sprintf("unknown relation %q", relation))
		}
		if err := loader(ctx, matched); err != nil {
			return nil, err
		}
	}

	return matched, nil
}

// Count returns the number of rows matching the query.
func (s *Store[T]) Count(ctx context.Context, q repository.Query) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, row := range s.rows {
		if matches(row.Meta(), q) {
			count++
		}
	}
	return count, nil
}

// Apply commits a change batch atomically: the whole batch is validated
// against the current state before any row is touched.
func (s *Store[T]) Apply(ctx context.Context, changes []repository.Change[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validation pass: a failing batch must leave the store untouched.
	for _, change := range changes {
		id := change.Entity.Meta().ID
		switch change.Kind {
		case repository.ChangeInsert:
			if _, exists := s.rows[id]; exists {
				return shared.NewDomainError("memory", "Apply", shared.ErrConstraint,
					fmt.Sprintf("duplicate id %q", id))
			}
		case repository.ChangeUpdate:
			if _, exists := s.rows[id]; !exists {
				return shared.NewDomainError("memory", "Apply", shared.ErrConstraint,
					fmt.Sprintf("update of unknown id %q", id))
			}
		}
	}

	for _, change := range changes {
		id := change.Entity.Meta().ID
		if change.Kind == repository.ChangeInsert {
			s.order = append(s.order, id)
		}
		s.rows[id] = s.clone(change.Entity)
	}
	return nil
}

// Len returns the number of physically present rows, deleted included.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func matches(meta *entity.Base, q repository.Query) bool {
	if !q.IncludeDeleted && meta.IsDeleted {
		return false
	}
	if q.TenantID != "" && meta.TenantID != q.TenantID {
		return false
	}
	if len(q.IDs) > 0 {
		found := false
		for _, id := range q.IDs {
			if meta.ID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
