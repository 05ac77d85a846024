package transport

import (
	"context"

	"github.com/rhuss/watchtracker/pkg/api"
)

// Operation names one of the ledger's externally visible use cases.
type Operation string

const (
	OpListServices Operation = "list_services"
	OpAddEntry     Operation = "add_entry"
	OpGetEntries   Operation = "get_entries"
)

// EntryService is the operation interface the transport layer invokes.
// Implementations validate input and sequence EntryStore calls; they own
// no state of their own.
type EntryService interface {
	// ListServices returns every namespace that has at least one entry.
	ListServices(ctx context.Context) (*api.ServiceList, error)

	// AddEntry finds or creates the entry for (req.Service, req.EntryID).
	// Repeated calls converge on the record created by the first one.
	AddEntry(ctx context.Context, req *api.AddEntryRequest) (*api.AddEntryResult, error)

	// GetEntries returns the stored entries of req.Service whose entry_id
	// is one of req.EntryIDs. Unknown IDs are omitted.
	GetEntries(ctx context.Context, req *api.GetEntriesRequest) ([]*api.Entry, error)
}

// EntryStore persists entries and enforces (service, entry_id) uniqueness.
type EntryStore interface {
	// FindEntry returns the entry with the given key, or storage.ErrNotFound.
	FindEntry(ctx context.Context, service, entryID string) (*api.Entry, error)

	// InsertEntry persists a new entry. It returns storage.ErrConflict if an
	// entry with the same key already exists; existing entries are never
	// overwritten.
	InsertEntry(ctx context.Context, entry *api.Entry) error

	// FindEntries returns the entries of service whose entry_id is in
	// entryIDs, in no particular order. Missing IDs are not an error.
	FindEntries(ctx context.Context, service string, entryIDs []string) ([]*api.Entry, error)

	// DistinctServices returns each service that has at least one entry,
	// exactly once.
	DistinctServices(ctx context.Context) ([]string, error)

	// HealthCheck verifies the store connection is functional.
	HealthCheck(ctx context.Context) error

	// Close releases connections and resources.
	Close() error
}

// Call describes one invocation of an EntryService operation as seen by
// middleware.
type Call struct {
	Operation Operation
	// Service is the namespace the call targets; empty for list_services.
	Service string
}

// Handler executes a single operation call.
type Handler interface {
	Handle(ctx context.Context, call *Call) error
}

// HandlerFunc is an adapter that allows using an ordinary function
// as a Handler.
type HandlerFunc func(ctx context.Context, call *Call) error

// Handle calls f(ctx, call).
func (f HandlerFunc) Handle(ctx context.Context, call *Call) error {
	return f(ctx, call)
}
