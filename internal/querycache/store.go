// Package querycache provides the process-wide store of query results
// shared by the decision mutators: detail entries, paginated list
// entries, and metrics snapshots, addressed by structured keys. It is
// injectable so mutators can be exercised against a plain in-memory
// instance in tests.
package querycache

import (
	"context"
	"sync"
)

// Kind namespaces cache keys by the query family they belong to.
type Kind string

const (
	KindReviewItem Kind = "review-item"
	KindReviewList Kind = "review-list"
	KindMetrics    Kind = "metrics"
)

// Key addresses one cached query result.
type Key struct {
	Kind  Kind
	Param string
}

// ItemKey addresses the detail entry for a review item.
func ItemKey(id string) Key {
	return Key{Kind: KindReviewItem, Param: id}
}

// ListKey addresses a list entry by the canonical serialization of its
// filter, sort, and page parameters.
func ListKey(params string) Key {
	return Key{Kind: KindReviewList, Param: params}
}

// MetricsKey addresses the metrics snapshot for a time range.
func MetricsKey(rng string) Key {
	return Key{Kind: KindMetrics, Param: rng}
}

type entry struct {
	value any
	stale bool
}

type inflightQuery struct {
	id     uint64
	cancel context.CancelFunc
}

// Store is a keyed, mutex-guarded cache of query results with
// subscription-based invalidation and in-flight query cancellation.
type Store struct {
	mu        sync.Mutex
	entries   map[Key]*entry
	inflight  map[Key][]inflightQuery
	nextQuery uint64
	subs      map[int]func(Key)
	nextSub   int
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		entries:  make(map[Key]*entry),
		inflight: make(map[Key][]inflightQuery),
		subs:     make(map[int]func(Key)),
	}
}

// Get returns the cached value for key, if present. Stale entries are
// still returned; staleness only drives refetching.
func (s *Store) Get(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores a value under key, clearing any stale mark.
func (s *Store) Set(key Key, value any) {
	s.mu.Lock()
	s.entries[key] = &entry{value: value}
	s.mu.Unlock()
}

// Keys lists every key currently cached under the given kind.
func (s *Store) Keys(kind Kind) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []Key
	for k := range s.entries {
		if k.Kind == kind {
			keys = append(keys, k)
		}
	}
	return keys
}

// IsStale reports whether the entry exists and has been invalidated.
func (s *Store) IsStale(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return ok && e.stale
}

// Invalidate marks the entry stale, keeping its current value, and
// notifies subscribers so they can refetch.
func (s *Store) Invalidate(key Key) {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		e.stale = true
	}
	subs := s.subscribers()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(key)
	}
}

// InvalidateKind marks every entry of the kind stale and notifies
// subscribers once per affected key.
func (s *Store) InvalidateKind(kind Kind) {
	s.mu.Lock()
	var keys []Key
	for k, e := range s.entries {
		if k.Kind == kind {
			e.stale = true
			keys = append(keys, k)
		}
	}
	subs := s.subscribers()
	s.mu.Unlock()

	for _, key := range keys {
		for _, fn := range subs {
			fn(key)
		}
	}
}

// Subscribe registers an invalidation callback and returns an
// unsubscribe function.
func (s *Store) Subscribe(fn func(Key)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// TrackInFlight registers an in-flight query's cancel function so a
// later mutation can abort it before writing optimistically. The
// returned release must be called when the query settles.
func (s *Store) TrackInFlight(key Key, cancel context.CancelFunc) func() {
	s.mu.Lock()
	s.nextQuery++
	id := s.nextQuery
	s.inflight[key] = append(s.inflight[key], inflightQuery{id: id, cancel: cancel})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		qs := s.inflight[key]
		for i, q := range qs {
			if q.id != id {
				continue
			}
			qs = append(qs[:i], qs[i+1:]...)
			break
		}
		if len(qs) == 0 {
			delete(s.inflight, key)
			return
		}
		s.inflight[key] = qs
	}
}

// CancelInFlight aborts every registered in-flight query for key.
func (s *Store) CancelInFlight(key Key) {
	s.mu.Lock()
	qs := s.inflight[key]
	delete(s.inflight, key)
	s.mu.Unlock()

	for _, q := range qs {
		q.cancel()
	}
}

// CancelKindInFlight aborts every registered in-flight query under the
// kind.
func (s *Store) CancelKindInFlight(kind Kind) {
	s.mu.Lock()
	var cancels []context.CancelFunc
	for k, qs := range s.inflight {
		if k.Kind == kind {
			for _, q := range qs {
				cancels = append(cancels, q.cancel)
			}
			delete(s.inflight, k)
		}
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (s *Store) subscribers() []func(Key) {
	subs := make([]func(Key), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}
