package discovery

import (
	"context"
	"sort"
	"sync"
)

// FavoritesStore persists a set of movie ids. Load reports a failed read
// as an error so callers never write back a set they could not see.
type FavoritesStore interface {
	Load(ctx context.Context) (map[int]struct{}, error)
	Save(ctx context.Context, ids map[int]struct{}) error
}

// AtomicToggler is implemented by stores that can flip one id in a single
// server-side step; Favorites then skips its own read-modify-write.
type AtomicToggler interface {
	Toggle(ctx context.Context, id int) (bool, error)
}

// Favorites serializes read-modify-write cycles against a store
type Favorites struct {
	mu    sync.Mutex
	store FavoritesStore
}

// NewFavorites wraps store
func NewFavorites(store FavoritesStore) *Favorites {
	return &Favorites{store: store}
}

// List returns the favorite ids in ascending order
func (f *Favorites) List(ctx context.Context) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids, err := f.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return sortedIDs(ids), nil
}

// Contains reports whether id is a favorite
func (f *Favorites) Contains(ctx context.Context, id int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids, err := f.store.Load(ctx)
	if err != nil {
		return false, err
	}
	_, ok := ids[id]
	return ok, nil
}

// Toggle flips id and returns whether it is now a favorite. When the
// current set cannot be read nothing is written.
func (f *Favorites) Toggle(ctx context.Context, id int) (bool, error) {
	if t, ok := f.store.(AtomicToggler); ok {
		return t.Toggle(ctx, id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ids, err := f.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if ids == nil {
		ids = map[int]struct{}{}
	}
	_, exists := ids[id]
	if exists {
		delete(ids, id)
	} else {
		ids[id] = struct{}{}
	}
	return !exists, f.store.Save(ctx, ids)
}

// Replace overwrites the whole set
func (f *Favorites) Replace(ctx context.Context, ids []int) ([]int, error) {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.store.Save(ctx, set); err != nil {
		return nil, err
	}
	return sortedIDs(set), nil
}

// MemoryFavorites is an in-process FavoritesStore
type MemoryFavorites struct {
	mu  sync.Mutex
	ids map[int]struct{}
}

// NewMemoryFavorites creates an empty MemoryFavorites
func NewMemoryFavorites() *MemoryFavorites {
	return &MemoryFavorites{ids: map[int]struct{}{}}
}

func (m *MemoryFavorites) Load(context.Context) (map[int]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]struct{}, len(m.ids))
	for id := range m.ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (m *MemoryFavorites) Save(_ context.Context, ids map[int]struct{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = make(map[int]struct{}, len(ids))
	for id := range ids {
		m.ids[id] = struct{}{}
	}
	return nil
}

func sortedIDs(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
