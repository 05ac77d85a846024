package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rhuss/watchtracker/pkg/api"
	"github.com/rhuss/watchtracker/pkg/debug"
	"github.com/rhuss/watchtracker/pkg/observability"
	"github.com/rhuss/watchtracker/pkg/storage"
	"github.com/rhuss/watchtracker/pkg/transport"
)

var tracer = otel.Tracer("watchtracker/ledger")

// Service implements transport.EntryService.
type Service struct {
	store transport.EntryStore
}

// Ensure Service implements transport.EntryService at compile time.
var _ transport.EntryService = (*Service)(nil)

// New creates a Service backed by store. The store must not be nil.
func New(store transport.EntryStore) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger: store must not be nil")
	}
	return &Service{store: store}, nil
}

// ListServices returns every namespace that has at least one entry.
func (s *Service) ListServices(ctx context.Context) (*api.ServiceList, error) {
	ctx, span := tracer.Start(ctx, "ledger.ListServices")
	defer span.End()

	services, err := s.store.DistinctServices(ctx)
	if err != nil {
		return nil, fail(span, fmt.Errorf("listing services: %w", err))
	}
	if services == nil {
		services = []string{}
	}

	span.SetAttributes(attribute.Int("watchtracker.services", len(services)))
	return &api.ServiceList{Items: services}, nil
}

// AddEntry returns the existing entry for (service, entry_id) or creates
// it with the request's attributes. Attributes of an existing entry are
// never changed.
func (s *Service) AddEntry(ctx context.Context, req *api.AddEntryRequest) (*api.AddEntryResult, error) {
	if apiErr := api.ValidateAddEntry(req); apiErr != nil {
		return nil, apiErr
	}

	ctx, span := tracer.Start(ctx, "ledger.AddEntry", trace.WithAttributes(
		attribute.String("watchtracker.service", req.Service),
		attribute.String("watchtracker.entry_id", req.EntryID),
	))
	defer span.End()

	existing, err := s.store.FindEntry(ctx, req.Service, req.EntryID)
	switch {
	case err == nil:
		debug.Log(debug.CategoryLedger, "entry exists", "service", req.Service, "entry_id", req.EntryID)
		span.SetAttributes(attribute.Bool("watchtracker.added", false))
		return &api.AddEntryResult{Added: false, Entry: existing}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fail(span, fmt.Errorf("looking up entry: %w", err))
	}

	entry := api.NewEntry(req.Service, req.EntryID, req.Attributes)
	err = s.store.InsertEntry(ctx, entry)
	switch {
	case err == nil:
		observability.EntriesAddedTotal.Inc()
		if debug.Enabled(debug.CategoryLedger) {
			debug.Log(debug.CategoryLedger, "entry added",
				"service", req.Service, "entry_id", req.EntryID,
				"attributes", debug.Truncate(fmt.Sprint(entry.Attributes), 200))
		}
		span.SetAttributes(attribute.Bool("watchtracker.added", true))
		return &api.AddEntryResult{Added: true, Entry: entry}, nil
	case !errors.Is(err, storage.ErrConflict):
		return nil, fail(span, fmt.Errorf("inserting entry: %w", err))
	}

	// Lost a race with a concurrent insert of the same key: report the
	// winner's record.
	observability.AddConflictsTotal.Inc()
	span.AddEvent("insert conflict")
	debug.Log(debug.CategoryLedger, "insert conflict, re-reading winner", "service", req.Service, "entry_id", req.EntryID)

	winner, err := s.store.FindEntry(ctx, req.Service, req.EntryID)
	if err != nil {
		return nil, fail(span, fmt.Errorf("re-reading entry after conflict: %w", err))
	}
	span.SetAttributes(attribute.Bool("watchtracker.added", false))
	return &api.AddEntryResult{Added: false, Entry: winner}, nil
}

// GetEntries returns the entries of req.Service whose entry_id is listed.
// Unknown IDs are omitted; duplicates in the request yield one entry.
func (s *Service) GetEntries(ctx context.Context, req *api.GetEntriesRequest) ([]*api.Entry, error) {
	if apiErr := api.ValidateGetEntries(req); apiErr != nil {
		return nil, apiErr
	}

	ctx, span := tracer.Start(ctx, "ledger.GetEntries", trace.WithAttributes(
		attribute.String("watchtracker.service", req.Service),
		attribute.Int("watchtracker.requested", len(req.EntryIDs)),
	))
	defer span.End()

	ids := lookupIDs(req.EntryIDs)
	if len(ids) == 0 {
		return []*api.Entry{}, nil
	}

	entries, err := s.store.FindEntries(ctx, req.Service, ids)
	if err != nil {
		return nil, fail(span, fmt.Errorf("finding entries: %w", err))
	}
	if entries == nil {
		entries = []*api.Entry{}
	}

	debug.Log(debug.CategoryLedger, "entries found", "service", req.Service, "requested", len(ids), "found", len(entries))
	span.SetAttributes(attribute.Int("watchtracker.found", len(entries)))
	return entries, nil
}

// Healthy reports whether the underlying store is reachable.
func (s *Service) Healthy(ctx context.Context) error {
	return s.store.HealthCheck(ctx)
}

// lookupIDs collapses duplicates and drops empty IDs, which can never
// match a stored entry.
func lookupIDs(ids []string) []string {
	out := storage.UniqueIDs(ids)
	n := 0
	for _, id := range out {
		if id != "" {
			out[n] = id
			n++
		}
	}
	return out[:n]
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
