package observability

import (
	"context"
	"time"

	"github.com/rhuss/watchtracker/pkg/api"
	"github.com/rhuss/watchtracker/pkg/transport"
)

// InstrumentedStore decorates an EntryStore with latency metrics. Results
// and errors pass through untouched.
type InstrumentedStore struct {
	next    transport.EntryStore
	backend string
}

// Ensure InstrumentedStore implements transport.EntryStore at compile time.
var _ transport.EntryStore = (*InstrumentedStore)(nil)

// InstrumentStore wraps store, labelling its metrics with backend.
func InstrumentStore(store transport.EntryStore, backend string) *InstrumentedStore {
	return &InstrumentedStore{next: store, backend: backend}
}

func (s *InstrumentedStore) observe(op string, start time.Time) {
	StoreOperationDuration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
}

func (s *InstrumentedStore) FindEntry(ctx context.Context, service, entryID string) (*api.Entry, error) {
	defer s.observe("find_entry", time.Now())
	return s.next.FindEntry(ctx, service, entryID)
}

func (s *InstrumentedStore) InsertEntry(ctx context.Context, entry *api.Entry) error {
	defer s.observe("insert_entry", time.Now())
	return s.next.InsertEntry(ctx, entry)
}

func (s *InstrumentedStore) FindEntries(ctx context.Context, service string, entryIDs []string) ([]*api.Entry, error) {
	defer s.observe("find_entries", time.Now())
	return s.next.FindEntries(ctx, service, entryIDs)
}

func (s *InstrumentedStore) DistinctServices(ctx context.Context) ([]string, error) {
	defer s.observe("distinct_services", time.Now())
	return s.next.DistinctServices(ctx)
}

// HealthCheck is not timed.
func (s *InstrumentedStore) HealthCheck(ctx context.Context) error {
	return s.next.HealthCheck(ctx)
}

func (s *InstrumentedStore) Close() error {
	return s.next.Close()
}
