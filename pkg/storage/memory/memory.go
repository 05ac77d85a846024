// Package memory provides an in-memory implementation of transport.EntryStore
// for testing and lightweight deployments. Entries are stored in memory and
// lost when the process restarts.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rhuss/watchtracker/pkg/api"
	"github.com/rhuss/watchtracker/pkg/storage"
	"github.com/rhuss/watchtracker/pkg/transport"
)

var errClosed = errors.New("memory store is closed")

// Store is an in-memory EntryStore. Uniqueness of (service, entry_id) is
// enforced under the write lock, so concurrent inserts of the same key
// yield exactly one success and storage.ErrConflict for the rest.
type Store struct {
	mu sync.RWMutex
	// entries is indexed by service, then entry_id. A service key exists
	// only while it has at least one entry.
	entries map[string]map[string]*api.Entry
	closed  bool
}

// Ensure Store implements transport.EntryStore at compile time.
var _ transport.EntryStore = (*Store)(nil)

// New creates a new, empty in-memory store.
func New() *Store {
	return &Store{
		entries: make(map[string]map[string]*api.Entry),
	}
}

// FindEntry returns the entry with the given key or storage.ErrNotFound.
func (s *Store) FindEntry(_ context.Context, service, entryID string) (*api.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.Unavailable("finding entry", errClosed)
	}

	e, ok := s.entries[service][entryID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(e), nil
}

// InsertEntry stores a new entry. Returns storage.ErrConflict if the key
// is already taken.
func (s *Store) InsertEntry(_ context.Context, entry *api.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.Unavailable("inserting entry", errClosed)
	}

	byID, ok := s.entries[entry.Service]
	if !ok {
		byID = make(map[string]*api.Entry)
		s.entries[entry.Service] = byID
	}
	if _, exists := byID[entry.EntryID]; exists {
		return storage.ErrConflict
	}

	byID[entry.EntryID] = clone(entry)
	return nil
}

// FindEntries returns the entries of service whose entry_id is in entryIDs.
func (s *Store) FindEntries(_ context.Context, service string, entryIDs []string) ([]*api.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.Unavailable("finding entries", errClosed)
	}

	byID := s.entries[service]
	result := make([]*api.Entry, 0, len(entryIDs))
	for _, id := range storage.UniqueIDs(entryIDs) {
		if e, ok := byID[id]; ok {
			result = append(result, clone(e))
		}
	}
	return result, nil
}

// DistinctServices returns the namespaces that have entries, sorted.
func (s *Store) DistinctServices(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.Unavailable("listing services", errClosed)
	}

	services := make([]string, 0, len(s.entries))
	for service, byID := range s.entries {
		if len(byID) == 0 {
			continue
		}
		services = append(services, service)
	}
	sort.Strings(services)
	return services, nil
}

// HealthCheck reports whether the store is still open.
func (s *Store) HealthCheck(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return storage.Unavailable("health check", errClosed)
	}
	return nil
}

// Close marks the store closed. Subsequent operations fail with
// storage.ErrUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// clone copies an entry so callers never share attribute maps with the
// store. Attribute values themselves are not deep-copied.
func clone(e *api.Entry) *api.Entry {
	return api.NewEntry(e.Service, e.EntryID, e.Attributes)
}
