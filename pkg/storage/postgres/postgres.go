// Package postgres provides a PostgreSQL implementation of transport.EntryStore.
// It uses pgx/v5 for connection pooling and a JSONB column for attributes.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/watchtracker/pkg/api"
	"github.com/rhuss/watchtracker/pkg/storage"
	"github.com/rhuss/watchtracker/pkg/transport"
)

// uniqueViolation is the SQLSTATE PostgreSQL reports for a duplicate key.
const uniqueViolation = "23505"

var errCorrupt = errors.New("corrupt attributes column")

// Store is a PostgreSQL-backed EntryStore. The (service, entry_id) primary
// key makes the database the arbiter of concurrent inserts.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements transport.EntryStore at compile time.
var _ transport.EntryStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storage.Unavailable("connecting to database", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// FindEntry retrieves a single entry by key.
func (s *Store) FindEntry(ctx context.Context, service, entryID string) (*api.Entry, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT service, entry_id, attributes FROM entries WHERE service = $1 AND entry_id = $2",
		service, entryID,
	)

	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("querying entry", err)
	}
	return entry, nil
}

// InsertEntry persists a new entry. A unique violation on the primary key
// is reported as storage.ErrConflict.
func (s *Store) InsertEntry(ctx context.Context, entry *api.Entry) error {
	attrs := entry.Attributes
	if attrs == nil {
		attrs = api.Attributes{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshaling attributes: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		"INSERT INTO entries (service, entry_id, attributes) VALUES ($1, $2, $3)",
		entry.Service, entry.EntryID, attrsJSON,
	)
	if err != nil {
		if isDuplicateKey(err) {
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

	rows, err := s.pool.Query(ctx,
		"SELECT service, entry_id, attributes FROM entries WHERE service = $1 AND entry_id = ANY($2) ORDER BY entry_id",
		service, ids,
	)
	if err != nil {
		return nil, wrapErr("querying entries", err)
	}
	defer rows.Close()

	result := make([]*api.Entry, 0, len(ids))
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, wrapErr("scanning entry", err)
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterating entries", err)
	}
	return result, nil
}

// DistinctServices returns every service with at least one entry.
func (s *Store) DistinctServices(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT DISTINCT service FROM entries ORDER BY service")
	if err != nil {
		return nil, wrapErr("listing services", err)
	}

	services, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrapErr("listing services", err)
	}
	if services == nil {
		services = []string{}
	}
	return services, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return storage.Unavailable("pinging database", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanEntry(row pgx.Row) (*api.Entry, error) {
	var service, entryID string
	var attrsJSON []byte
	if err := row.Scan(&service, &entryID, &attrsJSON); err != nil {
		return nil, err
	}

	var attrs map[string]any
	if len(attrsJSON) > 0 {
		decoded, err := api.DecodeObject(attrsJSON)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errCorrupt, err)
		}
		attrs = decoded
	}
	return api.NewEntry(service, entryID, attrs), nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation.
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// wrapErr classifies a driver error. Errors the server reported while
// executing a statement are plain failures; everything else (dial errors,
// timeouts, a closed pool) means the database could not be reached.
func wrapErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) || errors.Is(err, errCorrupt) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return storage.Unavailable(op, err)
}
