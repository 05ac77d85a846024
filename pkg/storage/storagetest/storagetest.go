// Package storagetest holds the behavioral tests every transport.EntryStore
// implementation must pass. Backend packages call Run from their own tests
// with a factory that returns a fresh, empty store.
package storagetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/rhuss/watchtracker/pkg/api"
	"github.com/rhuss/watchtracker/pkg/storage"
	"github.com/rhuss/watchtracker/pkg/transport"
)

// Factory returns an empty store. Cleanup is the factory's responsibility
// (typically via t.Cleanup).
type Factory func(t *testing.T) transport.EntryStore

// Run executes the full conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertAndFind", func(t *testing.T) { testInsertAndFind(t, newStore(t)) })
	t.Run("LosslessNumbers", func(t *testing.T) { testLosslessNumbers(t, newStore(t)) })
	t.Run("FindMissing", func(t *testing.T) { testFindMissing(t, newStore(t)) })
	t.Run("DuplicateInsert", func(t *testing.T) { testDuplicateInsert(t, newStore(t)) })
	t.Run("SameIDDifferentService", func(t *testing.T) { testSameIDDifferentService(t, newStore(t)) })
	t.Run("FindEntries", func(t *testing.T) { testFindEntries(t, newStore(t)) })
	t.Run("FindEntriesEmpty", func(t *testing.T) { testFindEntriesEmpty(t, newStore(t)) })
	t.Run("DistinctServices", func(t *testing.T) { testDistinctServices(t, newStore(t)) })
	t.Run("ConcurrentInsert", func(t *testing.T) { testConcurrentInsert(t, newStore(t)) })
	t.Run("HealthCheck", func(t *testing.T) { testHealthCheck(t, newStore(t)) })
}

func mustInsert(t *testing.T, s transport.EntryStore, e *api.Entry) {
	t.Helper()
	if err := s.InsertEntry(context.Background(), e); err != nil {
		t.Fatalf("InsertEntry(%s/%s) failed: %v", e.Service, e.EntryID, err)
	}
}

func testInsertAndFind(t *testing.T, s transport.EntryStore) {
	ctx := context.Background()
	mustInsert(t, s, api.NewEntry("tv", "ep1", map[string]any{
		"title":  "Pilot",
		"season": float64(1),
		"tags":   []any{"drama", "pilot"},
	}))

	got, err := s.FindEntry(ctx, "tv", "ep1")
	if err != nil {
		t.Fatalf("FindEntry failed: %v", err)
	}
	if got.Service != "tv" || got.EntryID != "ep1" {
		t.Errorf("key = (%q, %q), want (tv, ep1)", got.Service, got.EntryID)
	}
	if got.Attributes["title"] != "Pilot" {
		t.Errorf("title = %v, want Pilot", got.Attributes["title"])
	}
	if season := toFloat(got.Attributes["season"]); season != 1 {
		t.Errorf("season = %v, want 1", got.Attributes["season"])
	}
	if tags, ok := got.Attributes["tags"].([]any); !ok || len(tags) != 2 {
		t.Errorf("tags = %#v, want two-element list", got.Attributes["tags"])
	}
}

func testLosslessNumbers(t *testing.T, s transport.EntryStore) {
	ctx := context.Background()
	mustInsert(t, s, api.NewEntry("social", "t1", map[string]any{
		"tweet_id": json.Number("1234567890123456789"),
		"ratio":    json.Number("0.5"),
		"nested":   map[string]any{"big": json.Number("9007199254740993")},
	}))

	want := map[string]string{
		"tweet_id": "1234567890123456789",
		"ratio":    "0.5",
		"nested":   `{"big":9007199254740993}`,
	}
	check := func(source string, e *api.Entry) {
		t.Helper()
		for key, literal := range want {
			data, err := json.Marshal(e.Attributes[key])
			if err != nil {
				t.Fatalf("%s: marshaling %s: %v", source, key, err)
			}
			if string(data) != literal {
				t.Errorf("%s: %s encodes as %s, want %s", source, key, data, literal)
			}
		}
	}

	got, err := s.FindEntry(ctx, "social", "t1")
	if err != nil {
		t.Fatalf("FindEntry failed: %v", err)
	}
	check("FindEntry", got)

	entries, err := s.FindEntries(ctx, "social", []string{"t1"})
	if err != nil {
		t.Fatalf("FindEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("FindEntries returned %d entries, want 1", len(entries))
	}
	check("FindEntries", entries[0])
}

func testFindMissing(t *testing.T, s transport.EntryStore) {
	_, err := s.FindEntry(context.Background(), "tv", "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testDuplicateInsert(t *testing.T, s transport.EntryStore) {
	ctx := context.Background()
	mustInsert(t, s, api.NewEntry("tv", "ep1", map[string]any{"title": "Pilot"}))

	err := s.InsertEntry(ctx, api.NewEntry("tv", "ep1", map[string]any{"title": "Other"}))
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate, got %v", err)
	}

	got, err := s.FindEntry(ctx, "tv", "ep1")
	if err != nil {
		t.Fatalf("FindEntry failed: %v", err)
	}
	if got.Attributes["title"] != "Pilot" {
		t.Errorf("duplicate insert overwrote the entry: title = %v", got.Attributes["title"])
	}
}

func testSameIDDifferentService(t *testing.T, s transport.EntryStore) {
	ctx := context.Background()
	mustInsert(t, s, api.NewEntry("tv", "x1", map[string]any{"kind": "show"}))
	mustInsert(t, s, api.NewEntry("movies", "x1", map[string]any{"kind": "film"}))

	got, err := s.FindEntry(ctx, "movies", "x1")
	if err != nil {
		t.Fatalf("FindEntry failed: %v", err)
	}
	if got.Attributes["kind"] != "film" {
		t.Errorf("kind = %v, want film", got.Attributes["kind"])
	}

	entries, err := s.FindEntries(ctx, "tv", []string{"x1"})
	if err != nil {
		t.Fatalf("FindEntries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Service != "tv" {
		t.Fatalf("FindEntries(tv) = %v, want only the tv entry", entries)
	}
}

func testFindEntries(t *testing.T, s transport.EntryStore) {
	ctx := context.Background()
	mustInsert(t, s, api.NewEntry("tv", "ep1", nil))
	mustInsert(t, s, api.NewEntry("tv", "ep2", nil))
	mustInsert(t, s, api.NewEntry("tv", "ep3", nil))
	mustInsert(t, s, api.NewEntry("movies", "ep4", nil))

	entries, err := s.FindEntries(ctx, "tv", []string{"ep1", "ep3", "ep4", "ep9", "ep1"})
	if err != nil {
		t.Fatalf("FindEntries failed: %v", err)
	}

	got := entryIDs(entries)
	want := []string{"ep1", "ep3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FindEntries = %v, want %v", got, want)
	}
	for _, e := range entries {
		if e.Service != "tv" {
			t.Errorf("entry %s has service %q, want tv", e.EntryID, e.Service)
		}
	}
}

func testFindEntriesEmpty(t *testing.T, s transport.EntryStore) {
	ctx := context.Background()
	mustInsert(t, s, api.NewEntry("tv", "ep1", nil))

	entries, err := s.FindEntries(ctx, "tv", nil)
	if err != nil {
		t.Fatalf("FindEntries(nil) failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("FindEntries(nil) = %v, want empty", entries)
	}

	entries, err = s.FindEntries(ctx, "unknown", []string{"ep1"})
	if err != nil {
		t.Fatalf("FindEntries(unknown) failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("FindEntries(unknown) = %v, want empty", entries)
	}
}

func testDistinctServices(t *testing.T, s transport.EntryStore) {
	ctx := context.Background()

	services, err := s.DistinctServices(ctx)
	if err != nil {
		t.Fatalf("DistinctServices failed: %v", err)
	}
	if len(services) != 0 {
		t.Errorf("empty store services = %v, want none", services)
	}

	for i := 0; i < 5; i++ {
		mustInsert(t, s, api.NewEntry("tv", fmt.Sprintf("ep%d", i), nil))
	}
	mustInsert(t, s, api.NewEntry("movies", "m1", nil))
	mustInsert(t, s, api.NewEntry("tv-archive", "a1", nil))

	services, err = s.DistinctServices(ctx)
	if err != nil {
		t.Fatalf("DistinctServices failed: %v", err)
	}
	sort.Strings(services)
	want := []string{"movies", "tv", "tv-archive"}
	if !reflect.DeepEqual(services, want) {
		t.Errorf("DistinctServices = %v, want %v", services, want)
	}
}

func testConcurrentInsert(t *testing.T, s transport.EntryStore) {
	ctx := context.Background()
	const workers = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			err := s.InsertEntry(ctx, api.NewEntry("race", "same", map[string]any{"worker": float64(i)}))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, storage.ErrConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected insert errors: %v", others)
	}
	if succeeded != 1 {
		t.Errorf("successful inserts = %d, want exactly 1", succeeded)
	}
	if conflicts != workers-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, workers-1)
	}

	entries, err := s.FindEntries(ctx, "race", []string{"same"})
	if err != nil {
		t.Fatalf("FindEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("persisted records = %d, want 1", len(entries))
	}
}

func testHealthCheck(t *testing.T, s transport.EntryStore) {
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func entryIDs(entries []*api.Entry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.EntryID)
	}
	sort.Strings(ids)
	return ids
}

// toFloat normalizes the numeric types different drivers decode into.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return -1
		}
		return f
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return -1
	}
}
