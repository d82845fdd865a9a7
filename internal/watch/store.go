// Package watch records which videos a device has already started watching.
package watch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
)

// StorageKey is the single key the watched list is persisted under.
const StorageKey = "shorts_watched_videos"

// Store is the durable set of watched video refs for one device. Persistence is
// best effort: load and save failures are logged and the in-memory set stays
// authoritative for the session.
type Store struct {
	mu      sync.Mutex
	kv      KV
	key     string
	watched map[string]struct{}
	logger  *slog.Logger
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// Open creates a Store backed by kv and loads the persisted set.
func Open(ctx context.Context, kv KV, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		key:     StorageKey,
		watched: make(map[string]struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) {
	if s.kv == nil {
		return
	}
	data, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("watch: failed to load watched videos", "error", err)
		return
	}
	if !ok || len(data) == 0 {
		return
	}
	var refs []string
	if err := json.Unmarshal(data, &refs); err != nil {
		s.logger.Warn("watch: discarding corrupt watched list", "error", err)
		return
	}
	for _, ref := range refs {
		s.watched[ref] = struct{}{}
	}
	s.logger.Debug("watch: loaded watched videos", "count", len(s.watched))
}

// save must be called with s.mu held.
func (s *Store) save(ctx context.Context) {
	if s.kv == nil {
		return
	}
	refs := s.sortedLocked()
	data, err := json.Marshal(refs)
	if err != nil {
		s.logger.Error("watch: failed to encode watched videos", "error", err)
		return
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		s.logger.Error("watch: failed to save watched videos", "count", len(refs), "error", err)
	}
}

// MarkWatched adds ref to the set and persists only when the set changed.
func (s *Store) MarkWatched(ctx context.Context, ref string) bool {
	if ref == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watched[ref]; ok {
		return false
	}
	s.watched[ref] = struct{}{}
	s.save(ctx)
	return true
}

func (s *Store) IsWatched(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watched[ref]
	return ok
}

// Reset forgets every watched ref and persists the empty list.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watched = make(map[string]struct{})
	s.save(ctx)
	s.logger.Info("watch: watched videos reset")
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watched)
}

// All returns the watched refs in sorted order.
func (s *Store) All() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *Store) sortedLocked() []string {
	refs := make([]string, 0, len(s.watched))
	for ref := range s.watched {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
