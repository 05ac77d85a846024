// Package mongo provides a MongoDB implementation of transport.EntryStore
// built on github.com/juju/mgo/v3.
//
// Each entry is one document. The identifying fields and the caller's
// attributes are stored side by side at the top level, and a unique
// compound index on {service, entry_id} arbitrates concurrent inserts.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"

	"github.com/rhuss/watchtracker/pkg/api"
	"github.com/rhuss/watchtracker/pkg/storage"
	"github.com/rhuss/watchtracker/pkg/transport"
)

const indexName = "service_entry_id_unique"

var errClosed = errors.New("mongo store is closed")

// Config holds MongoDB connection settings.
type Config struct {
	// URL is the MongoDB connection string (e.g., "mongodb://localhost:27017").
	URL string

	// Database is the database name (default: "watch_tracker").
	Database string

	// Collection is the collection holding entries (default: "entries").
	Collection string

	// Timeout bounds dialing and each socket operation (default: 10s).
	Timeout time.Duration
}

func (c *Config) defaults() {
	if c.Database == "" {
		c.Database = "watch_tracker"
	}
	if c.Collection == "" {
		c.Collection = "entries"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Store is a MongoDB-backed EntryStore. Every operation runs on a copy of
// the root session so concurrent requests use separate sockets.
type Store struct {
	cfg Config

	mu      sync.RWMutex
	session *mgo.Session
}

// Ensure Store implements transport.EntryStore at compile time.
var _ transport.EntryStore = (*Store)(nil)

// New dials MongoDB and ensures the unique index exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session, err := mgo.DialWithTimeout(cfg.URL, cfg.Timeout)
	if err != nil {
		return nil, storage.Unavailable("connecting to mongo", err)
	}
	session.SetMode(mgo.Strong, true)
	session.SetSocketTimeout(cfg.Timeout)
	session.SetSafe(&mgo.Safe{})

	s := &Store{cfg: cfg, session: session}

	err = s.collection(session).EnsureIndex(mgo.Index{
		Name:   indexName,
		Key:    []string{api.FieldService, api.FieldEntryID},
		Unique: true,
	})
	if err != nil {
		session.Close()
		return nil, wrapErr("ensuring unique index", err)
	}

	return s, nil
}

// FindEntry retrieves a single entry by key.
func (s *Store) FindEntry(ctx context.Context, service, entryID string) (*api.Entry, error) {
	session, err := s.acquire(ctx, "finding entry")
	if err != nil {
		return nil, err
	}
	defer session.Close()

	var doc bson.M
	err = s.collection(session).Find(bson.M{
		api.FieldService: service,
		api.FieldEntryID: entryID,
	}).One(&doc)
	if errors.Is(err, mgo.ErrNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("finding entry", err)
	}
	return fromDocument(doc)
}

// InsertEntry persists a new entry. A duplicate key error from the unique
// index is reported as storage.ErrConflict.
func (s *Store) InsertEntry(ctx context.Context, entry *api.Entry) error {
	session, err := s.acquire(ctx, "inserting entry")
	if err != nil {
		return err
	}
	defer session.Close()

	if err := s.collection(session).Insert(toDocument(entry)); err != nil {
		if mgo.IsDup(err) {
			return storage.ErrConflict
		}
		return wrapErr("inserting entry", err)
	}
	return nil
}

// FindEntries returns the entries of service whose entry_id is in entryIDs.
func (s *Store) FindEntries(ctx context.Context, service string, entryIDs []string) ([]*api.Entry, error) {
	ids := storage.UniqueIDs(entryIDs)
	if len(ids) == 0 {
		return []*api.Entry{}, nil
	}

	session, err := s.acquire(ctx, "finding entries")
	if err != nil {
		return nil, err
	}
	defer session.Close()

	var docs []bson.M
	err = s.collection(session).Find(bson.M{
		api.FieldService: service,
		api.FieldEntryID: bson.M{"$in": ids},
	}).Sort(api.FieldEntryID).All(&docs)
	if err != nil {
		return nil, wrapErr("finding entries", err)
	}

	result := make([]*api.Entry, 0, len(docs))
	for _, doc := range docs {
		entry, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, nil
}

// DistinctServices returns every service with at least one entry.
func (s *Store) DistinctServices(ctx context.Context) ([]string, error) {
	session, err := s.acquire(ctx, "listing services")
	if err != nil {
		return nil, err
	}
	defer session.Close()

	services := []string{}
	if err := s.collection(session).Find(nil).Distinct(api.FieldService, &services); err != nil {
		return nil, wrapErr("listing services", err)
	}
	sort.Strings(services)
	return services, nil
}

// HealthCheck pings the server.
func (s *Store) HealthCheck(ctx context.Context) error {
	session, err := s.acquire(ctx, "health check")
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Ping(); err != nil {
		return storage.Unavailable("pinging mongo", err)
	}
	return nil
}

// Close closes the root session. Later operations fail with
// storage.ErrUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		s.session.Close()
		s.session = nil
	}
	return nil
}

// acquire returns a copy of the root session for one operation. mgo has no
// context support, so cancellation is only honored before work starts.
func (s *Store) acquire(ctx context.Context, op string) (*mgo.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return nil, storage.Unavailable(op, errClosed)
	}
	return s.session.Copy(), nil
}

func (s *Store) collection(session *mgo.Session) *mgo.Collection {
	return session.DB(s.cfg.Database).C(s.cfg.Collection)
}

// toDocument flattens an entry into a top-level document. Reserved keys
// never reach the attributes, so they cannot clobber _id or the key fields.
func toDocument(entry *api.Entry) bson.M {
	doc := make(bson.M, len(entry.Attributes)+2)
	for k, v := range entry.Attributes {
		if api.IsReservedKey(k) {
			continue
		}
		doc[k] = toBSON(v)
	}
	doc[api.FieldService] = entry.Service
	doc[api.FieldEntryID] = entry.EntryID
	return doc
}

// toBSON stores JSON numbers as int64 when they are integral and fit,
// otherwise as float64.
func toBSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		m := make(bson.M, len(t))
		for k, val := range t {
			m[k] = toBSON(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = toBSON(val)
		}
		return s
	default:
		return v
	}
}

func fromDocument(doc bson.M) (*api.Entry, error) {
	delete(doc, "_id")
	entry, err := api.EntryFromFields(normalize(doc).(map[string]any))
	if err != nil {
		return nil, fmt.Errorf("decoding document: %v", err)
	}
	return entry, nil
}

// normalize converts the bson.M and []interface{} values mgo decodes into
// plain maps and slices, and integers into json.Number, so attributes
// encode exactly as they were submitted.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = normalize(val)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = normalize(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = normalize(val)
		}
		return s
	case int:
		return json.Number(strconv.Itoa(t))
	case int64:
		return json.Number(strconv.FormatInt(t, 10))
	default:
		return v
	}
}

// wrapErr separates server-side query failures from connectivity problems.
func wrapErr(op string, err error) error {
	var queryErr *mgo.QueryError
	var lastErr *mgo.LastError
	if errors.As(err, &queryErr) || errors.As(err, &lastErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return storage.Unavailable(op, err)
}
