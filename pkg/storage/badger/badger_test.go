package badger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rhuss/watchtracker/pkg/api"
	"github.com/rhuss/watchtracker/pkg/storage"
	"github.com/rhuss/watchtracker/pkg/storage/storagetest"
	"github.com/rhuss/watchtracker/pkg/transport"
)

func newInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{InMemory: true})
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) transport.EntryStore {
		return newInMemory(t)
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := New(Config{Path: dir})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.InsertEntry(ctx, api.NewEntry("tv", "ep1", map[string]any{"title": "Pilot"})); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = New(Config{Path: dir})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	got, err := s.FindEntry(ctx, "tv", "ep1")
	if err != nil {
		t.Fatalf("FindEntry after reopen failed: %v", err)
	}
	if got.Attributes["title"] != "Pilot" {
		t.Errorf("title = %v, want Pilot", got.Attributes["title"])
	}

	services, err := s.DistinctServices(ctx)
	if err != nil {
		t.Fatalf("DistinctServices failed: %v", err)
	}
	if len(services) != 1 || services[0] != "tv" {
		t.Errorf("services = %v, want [tv]", services)
	}
}

func TestNew_RequiresPath(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error when neither path nor in_memory is set")
	}
}

func TestEntryKey_NoPrefixCollision(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must not share a key.
	k1 := entryKey("ab", "c")
	k2 := entryKey("a", "bc")
	if bytes.Equal(k1, k2) {
		t.Fatalf("keys collide: %q", k1)
	}

	ctx := context.Background()
	s := newInMemory(t)
	if err := s.InsertEntry(ctx, api.NewEntry("ab", "c", nil)); err != nil {
		t.Fatalf("InsertEntry(ab/c) failed: %v", err)
	}
	if err := s.InsertEntry(ctx, api.NewEntry("a", "bc", nil)); err != nil {
		t.Errorf("InsertEntry(a/bc) = %v, want success", err)
	}
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s, err := New(Config{InMemory: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.Close()
	ctx := context.Background()

	if err := s.HealthCheck(ctx); !errors.Is(err, storage.ErrUnavailable) {
		t.Errorf("HealthCheck after Close = %v, want ErrUnavailable", err)
	}
	if err := s.InsertEntry(ctx, api.NewEntry("tv", "ep1", nil)); !errors.Is(err, storage.ErrUnavailable) {
		t.Errorf("InsertEntry after Close = %v, want ErrUnavailable", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestCanceledContext(t *testing.T) {
	s := newInMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.InsertEntry(ctx, api.NewEntry("tv", "ep1", nil)); !errors.Is(err, context.Canceled) {
		t.Errorf("InsertEntry with canceled context = %v, want context.Canceled", err)
	}
}
