package store

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// DefaultMaxAgeHours is the eviction threshold used when the caller has no
// configured value of its own.
const DefaultMaxAgeHours = 24

// ErrInvalidArgument is wrapped by every validation failure returned from the store.
var ErrInvalidArgument = errors.New("invalid argument")

// Reason describes why an entry left the store.
type Reason string

const (
	ReasonDeleted  Reason = "deleted"
	ReasonEvicted  Reason = "evicted"
	ReasonReplaced Reason = "replaced"
)

// Metadata describes one tracked transient resource.
// Location is opaque to the store: it is never read, validated or opened.
type Metadata struct {
	ID         string
	OwnerID    string
	Location   string
	CapturedAt time.Time
}

// Age returns how old the record is at now.
func (m Metadata) Age(now time.Time) time.Duration {
	return now.Sub(m.CapturedAt)
}

// Observer is notified after the store mapping changes. Callbacks run outside
// the store lock and must not block for long.
type Observer interface {
	ResourceRegistered(m Metadata)
	ResourceRemoved(m Metadata, reason Reason)
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now as the source of CapturedAt and sweep instants.
// The clock is called with the store lock held and must not call back into the store.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithObserver attaches an Observer. Passing nil is a no-op.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// Store is a thread-safe in-memory resource metadata store, keyed by ID.
// It never evicts on its own; callers invoke EvictOlderThan on their own cadence.
type Store struct {
	mu   sync.RWMutex
	data map[string]Metadata
	now  func() time.Time // injectable for deterministic tests

	observers []Observer
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]Metadata),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register records a resource under id, stamped with the current time, and
// returns the created record. An existing entry for id is replaced.
func (s *Store) Register(id, ownerID, location string) (Metadata, error) {
	if id == "" {
		return Metadata{}, fmt.Errorf("store: register: id is required: %w", ErrInvalidArgument)
	}

	m := Metadata{
		ID:       id,
		OwnerID:  ownerID,
		Location: location,
	}

	// Stamp under the lock so no sweep can read a later instant before the
	// entry is visible.
	s.mu.Lock()
	m.CapturedAt = s.now()
	prev, replaced := s.data[id]
	s.data[id] = m
	s.mu.Unlock()

	if replaced {
		s.notifyRemoved(prev, ReasonReplaced)
	}
	for _, o := range s.observers {
		o.ResourceRegistered(m)
	}
	return m, nil
}

// Get returns a copy of the record for id and whether it was found.
func (s *Store) Get(id string) (Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[id]
	return m, ok
}

// Delete removes the record for id. Deleting an unknown id is a no-op.
// The resource behind Location is left untouched.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	m, ok := s.removeLocked(id)
	s.mu.Unlock()

	if ok {
		s.notifyRemoved(m, ReasonDeleted)
	}
}

// DeleteIfUnchanged removes the record for m.ID only if it is still the one
// described by m, i.e. it has not been replaced by a later Register. It
// reports whether a record was removed.
func (s *Store) DeleteIfUnchanged(m Metadata) bool {
	s.mu.Lock()
	cur, ok := s.data[m.ID]
	if ok && (!cur.CapturedAt.Equal(m.CapturedAt) || cur.Location != m.Location) {
		ok = false
	}
	if ok {
		s.removeLocked(m.ID)
	}
	s.mu.Unlock()

	if ok {
		s.notifyRemoved(cur, ReasonDeleted)
	}
	return ok
}

// EvictOlderThan removes every entry whose age is strictly greater than
// maxAgeHours and returns the removed records, oldest first.
//
// The sweep judges all entries against a single instant read once the write
// lock is held. Entries registered after the sweep began are never removed.
func (s *Store) EvictOlderThan(maxAgeHours float64) ([]Metadata, error) {
	if math.IsNaN(maxAgeHours) || maxAgeHours < 0 {
		return nil, fmt.Errorf("store: evict: max age %v hours must not be negative: %w",
			maxAgeHours, ErrInvalidArgument)
	}
	// Thresholds beyond the Duration range can never be exceeded.
	if maxAgeHours >= float64(math.MaxInt64)/float64(time.Hour) {
		return nil, nil
	}
	maxAge := time.Duration(maxAgeHours * float64(time.Hour))

	s.mu.Lock()
	now := s.now()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	var removed []Metadata
	for _, id := range ids {
		if s.data[id].Age(now) <= maxAge {
			continue
		}
		if m, ok := s.removeLocked(id); ok {
			removed = append(removed, m)
		}
	}
	s.mu.Unlock()

	sortByCapture(removed)
	for _, m := range removed {
		s.notifyRemoved(m, ReasonEvicted)
	}
	return removed, nil
}

// Count returns the number of live entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// List returns copies of all entries, oldest first.
func (s *Store) List() []Metadata {
	return s.filter(func(Metadata) bool { return true })
}

// ListByOwner returns copies of the entries registered by ownerID, oldest first.
func (s *Store) ListByOwner(ownerID string) []Metadata {
	return s.filter(func(m Metadata) bool { return m.OwnerID == ownerID })
}

func (s *Store) filter(keep func(Metadata) bool) []Metadata {
	s.mu.RLock()
	out := make([]Metadata, 0, len(s.data))
	for _, m := range s.data {
		if keep(m) {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()

	sortByCapture(out)
	return out
}

// removeLocked is the single removal path shared by Delete, DeleteIfUnchanged
// and EvictOlderThan.
// s.mu must be held for writing.
func (s *Store) removeLocked(id string) (Metadata, bool) {
	m, ok := s.data[id]
	if ok {
		delete(s.data, id)
	}
	return m, ok
}

func (s *Store) notifyRemoved(m Metadata, reason Reason) {
	for _, o := range s.observers {
		o.ResourceRemoved(m, reason)
	}
}

func sortByCapture(ms []Metadata) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].CapturedAt.Equal(ms[j].CapturedAt) {
			return ms[i].CapturedAt.Before(ms[j].CapturedAt)
		}
		return ms[i].ID < ms[j].ID
	})
}
