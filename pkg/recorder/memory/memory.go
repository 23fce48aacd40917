// Package memory provides an in-memory recorder.Store for tests and
// lightweight use. Recordings are lost when the process exits. Optional LRU
// eviction limits memory usage.
package memory

import (
	"cmp"
	"container/list"
	"context"
	"slices"
	"sync"

	"github.com/rhuss/streamwire/pkg/debug"
	"github.com/rhuss/streamwire/pkg/recorder"
)

type entry struct {
	rec     *recorder.Recording
	lruElem *list.Element // position in LRU list
}

// Store is an in-memory recorder.Store with optional LRU eviction.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List // front = most recently used
	maxSize int        // 0 = unlimited
}

var _ recorder.Store = (*Store)(nil)

// New creates a store. If maxSize is 0 the store grows without limit;
// otherwise the least recently used recording is evicted at capacity.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// Save stores a recording.
func (s *Store) Save(_ context.Context, rec *recorder.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[rec.ID]; exists {
		return recorder.ErrConflict
	}
	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(rec.ID)
	s.entries[rec.ID] = &entry{rec: rec, lruElem: elem}
	return nil
}

// Get returns a recording and marks it recently used.
func (s *Store) Get(_ context.Context, id string) (*recorder.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, recorder.ErrNotFound
	}
	s.lruList.MoveToFront(e.lruElem)
	return e.rec, nil
}

// List returns recordings newest first. Frames are left out.
func (s *Store) List(_ context.Context, opts recorder.ListOptions) (*recorder.RecordingList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []*recorder.Recording
	for _, e := range s.entries {
		if opts.Kind != "" && e.rec.Kind != opts.Kind {
			continue
		}
		matches = append(matches, e.rec)
	}
	slices.SortFunc(matches, func(a, b *recorder.Recording) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})

	if opts.After != "" {
		idx := slices.IndexFunc(matches, func(r *recorder.Recording) bool { return r.ID == opts.After })
		if idx < 0 {
			matches = nil
		} else {
			matches = matches[idx+1:]
		}
	}

	limit := opts.PageLimit()
	hasMore := len(matches) > limit
	if hasMore {
		matches = matches[:limit]
	}

	page := &recorder.RecordingList{Data: make([]*recorder.Recording, 0, len(matches)), HasMore: hasMore}
	for _, r := range matches {
		c := *r
		c.Frames = nil
		page.Data = append(page.Data, &c)
	}
	return page, nil
}

// Delete removes a recording.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return recorder.ErrNotFound
	}
	s.lruList.Remove(e.lruElem)
	delete(s.entries, id)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
	debug.Log(debug.Recorder, "recording evicted", "id", id)
}
