// Package memory is an in-process recordstore backend for single-instance development
// deployments and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/birchwood-sourdough/orders/recordstore"
)

type Store struct {
	mu     sync.RWMutex
	tables map[string]map[string]recordstore.Record
	now    func() time.Time
}

func New() *Store {
	return &Store{
		tables: make(map[string]map[string]recordstore.Record),
		now:    time.Now,
	}
}

// SetClock replaces the time source used for record creation times.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Query returns matching records ordered by creation time.
func (s *Store) Query(ctx context.Context, table string, filter recordstore.Filter) ([]recordstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]recordstore.Record, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		if filter == nil || filter.Match(r.Fields) {
			out = append(out, copyRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedTime.Equal(out[j].CreatedTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedTime.Before(out[j].CreatedTime)
	})
	return out, nil
}

func (s *Store) Find(ctx context.Context, table, id string) (recordstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return recordstore.Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.tables[table][id]
	if !ok {
		return recordstore.Record{}, recordstore.ErrNotFound
	}
	return copyRecord(r), nil
}

func (s *Store) Create(ctx context.Context, table string, fields recordstore.Fields) (recordstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return recordstore.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tables[table] == nil {
		s.tables[table] = make(map[string]recordstore.Record)
	}
	r := recordstore.Record{
		ID:          "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		CreatedTime: s.now().UTC(),
		Fields:      fields.Clone(),
	}
	s.tables[table][r.ID] = r
	return copyRecord(r), nil
}

// Update merges fields into the record, like a PATCH against the remote store.
func (s *Store) Update(ctx context.Context, table, id string, fields recordstore.Fields) (recordstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return recordstore.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.tables[table][id]
	if !ok {
		return recordstore.Record{}, recordstore.ErrNotFound
	}
	merged := r.Fields.Clone()
	for k, v := range fields {
		merged[k] = v
	}
	r.Fields = merged
	s.tables[table][id] = r
	return copyRecord(r), nil
}

func (s *Store) Delete(ctx context.Context, table, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table][id]; !ok {
		return recordstore.ErrNotFound
	}
	delete(s.tables[table], id)
	return nil
}

func copyRecord(r recordstore.Record) recordstore.Record {
	r.Fields = r.Fields.Clone()
	return r
}
