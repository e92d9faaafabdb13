package repository

import (
	"context"
	"sync"

	"github.com/zewo/opsdash/internal/vault"
)

// MemoryRepo is an in-memory item store used when no database is configured and in tests.
type MemoryRepo struct {
	mu       sync.RWMutex
	items    map[string]*vault.Item
	children map[string][]string // parent id -> child ids in insertion order
	seq      int64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		items:    make(map[string]*vault.Item),
		children: make(map[string][]string),
	}
}

func (m *MemoryRepo) Insert(_ context.Context, it *vault.Item) error {
	if it.ID == "" || it.ID == vault.RootID {
		return vault.Conflict("invalid item id " + it.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[it.ID]; ok {
		return vault.Conflict("item " + it.ID + " already exists")
	}
	m.seq++
	it.Seq = m.seq
	m.items[it.ID] = it.Clone()
	m.children[it.ParentID] = append(m.children[it.ParentID], it.ID)
	return nil
}

// Get returns a copy of the stored item. The content buffer is shared with the store
// and must not be modified.
func (m *MemoryRepo) Get(_ context.Context, id string) (*vault.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return nil, vault.NotFound(id)
	}
	c := *it
	return &c, nil
}

func (m *MemoryRepo) ChildrenOf(_ context.Context, parentID string) ([]*vault.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.children[parentID]
	out := make([]*vault.Item, 0, len(ids))
	for _, id := range ids {
		c := *m.items[id]
		c.Content = nil
		out = append(out, &c)
	}
	return out, nil
}

func (m *MemoryRepo) RemoveAll(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doomed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := m.items[id]; !ok {
			return vault.NotFound(id)
		}
		doomed[id] = struct{}{}
	}
	parents := map[string]struct{}{}
	for id := range doomed {
		parents[m.items[id].ParentID] = struct{}{}
		delete(m.items, id)
		delete(m.children, id)
	}
	for p := range parents {
		kept := m.children[p][:0]
		for _, id := range m.children[p] {
			if _, gone := doomed[id]; !gone {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(m.children, p)
		} else {
			m.children[p] = kept
		}
	}
	return nil
}

func (m *MemoryRepo) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}
