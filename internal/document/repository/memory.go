package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/signflow/signflow-server/internal/document"
)

// MemoryRepo is an in-memory repository used by tests and local runs
// without MongoDB.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*document.Document
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*document.Document)}
}

func clone(d *document.Document) *document.Document {
	c := *d
	if d.SignedAt != nil {
		v := *d.SignedAt
		c.SignedAt = &v
	}
	c.Metadata = make(map[string]interface{}, len(d.Metadata))
	for k, v := range d.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

func (m *MemoryRepo) Create(ctx context.Context, d *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		d.ID = document.NewID()
	}
	m.store[d.ID] = clone(d)
	return nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.store[id]; ok {
		return clone(d), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) List(ctx context.Context, f document.Filter) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*document.Document, 0, len(m.store))
	for _, d := range m.store {
		if f.Matches(d) {
			out = append(out, clone(d))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if lim := f.EffectiveLimit(); len(out) > lim {
		out = out[:lim]
	}
	return out, nil
}

func (m *MemoryRepo) Count(ctx context.Context, f document.Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, d := range m.store {
		if f.Matches(d) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepo) Save(ctx context.Context, d *document.Document, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[d.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != expectedVersion {
		return ErrConflict
	}
	d.Version = expectedVersion + 1
	m.store[d.ID] = clone(d)
	return nil
}

func (m *MemoryRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *MemoryRepo) Upsert(ctx context.Context, d *document.Document) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.store[d.ID]
	m.store[d.ID] = clone(d)
	return !existed, nil
}
