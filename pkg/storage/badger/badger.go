// Package badger provides an embedded transport.EntryStore backed by
// github.com/dgraph-io/badger/v4.
//
// Keys are laid out so that all entries of one service are contiguous:
//
//	e/<uvarint len(service)><service><entry_id>  -> JSON attributes
//	s/<service>                                 -> empty marker
//
// Uniqueness relies on badger's optimistic transactions: an insert reads
// the entry key before writing it, so two racing inserts of the same key
// cannot both commit.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/rhuss/watchtracker/pkg/api"
	"github.com/rhuss/watchtracker/pkg/storage"
	"github.com/rhuss/watchtracker/pkg/transport"
)

var (
	entryPrefix   = []byte("e/")
	servicePrefix = []byte("s/")

	errClosed = errors.New("badger store is closed")
)

// Config holds badger settings.
type Config struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory. Intended for tests.
	InMemory bool
}

// Store is a badger-backed EntryStore.
type Store struct {
	db *badger.DB
}

// Ensure Store implements transport.EntryStore at compile time.
var _ transport.EntryStore = (*Store)(nil)

// New opens (or creates) the database.
func New(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is required")
		}
		// Ensure directory exists
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// FindEntry retrieves a single entry by key.
func (s *Store) FindEntry(ctx context.Context, service, entryID string) (*api.Entry, error) {
	if err := s.check(ctx, "finding entry"); err != nil {
		return nil, err
	}

	var entry *api.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(service, entryID))
		if err != nil {
			return err
		}
		entry, err = decodeEntry(service, entryID, item)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("finding entry", err)
	}
	return entry, nil
}

// InsertEntry persists a new entry. Returns storage.ErrConflict if the key
// exists or a concurrent transaction committed it first.
func (s *Store) InsertEntry(ctx context.Context, entry *api.Entry) error {
	if err := s.check(ctx, "inserting entry"); err != nil {
		return err
	}

	attrs := entry.Attributes
	if attrs == nil {
		attrs = api.Attributes{}
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshaling attributes: %w", err)
	}

	key := entryKey(entry.Service, entry.EntryID)
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return storage.ErrConflict
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(serviceKey(entry.Service), nil)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrConflict), errors.Is(err, badger.ErrConflict):
		return storage.ErrConflict
	default:
		return wrapErr("inserting entry", err)
	}
}

// FindEntries returns the entries of service whose entry_id is in entryIDs.
func (s *Store) FindEntries(ctx context.Context, service string, entryIDs []string) ([]*api.Entry, error) {
	if err := s.check(ctx, "finding entries"); err != nil {
		return nil, err
	}

	ids := storage.UniqueIDs(entryIDs)
	result := make([]*api.Entry, 0, len(ids))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(entryKey(service, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			entry, err := decodeEntry(service, id, item)
			if err != nil {
				return err
			}
			result = append(result, entry)
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("finding entries", err)
	}
	return result, nil
}

// DistinctServices returns every service with at least one entry, in key
// order.
func (s *Store) DistinctServices(ctx context.Context) ([]string, error) {
	if err := s.check(ctx, "listing services"); err != nil {
		return nil, err
	}

	services := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = servicePrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			services = append(services, string(it.Item().Key()[len(servicePrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("listing services", err)
	}
	return services, nil
}

// HealthCheck reports whether the database is open.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.check(ctx, "health check")
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

func (s *Store) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return storage.Unavailable(op, errClosed)
	}
	return nil
}

func entryKey(service, entryID string) []byte {
	key := make([]byte, 0, len(entryPrefix)+binary.MaxVarintLen64+len(service)+len(entryID))
	key = append(key, entryPrefix...)
	key = binary.AppendUvarint(key, uint64(len(service)))
	key = append(key, service...)
	return append(key, entryID...)
}

func serviceKey(service string) []byte {
	return append(append([]byte{}, servicePrefix...), service...)
}

func decodeEntry(service, entryID string, item *badger.Item) (*api.Entry, error) {
	var attrs map[string]any
	err := item.Value(func(val []byte) error {
		decoded, err := api.DecodeObject(val)
		attrs = decoded
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decoding %s/%s: %w", service, entryID, err)
	}
	return api.NewEntry(service, entryID, attrs), nil
}

func wrapErr(op string, err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return storage.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
