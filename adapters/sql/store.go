package sql

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/codewandler/qpool-go/core/es"
)

type Config struct {
	DB      *stdsql.DB
	Dialect Dialect
	Log     *slog.Logger // Log for diagnostics (optional)
}

// EventStore keeps one row per event. UNIQUE(aggregate_type, aggregate_id,
// version) backs the compare-and-append: an append reads the current version
// and inserts the batch in one transaction, and a writer that raced past the
// read fails on the constraint.
type EventStore struct {
	db      *stdsql.DB
	dialect Dialect
	log     *slog.Logger
}

// NewEventStore creates the schema if needed.
func NewEventStore(ctx context.Context, cfg Config) (*EventStore, error) {
	if cfg.DB == nil {
		return nil, errors.New("db is required")
	}
	if cfg.Dialect == nil {
		return nil, errors.New("dialect is required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	s := &EventStore{
		db:      cfg.DB,
		dialect: cfg.Dialect,
		log:     log.With(slog.String("store", "sql"), slog.String("dialect", cfg.Dialect.Name())),
	}
	if err := Migrate(ctx, cfg.DB, cfg.Dialect); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate executes the dialect's schema statements.
func Migrate(ctx context.Context, db *stdsql.DB, d Dialect) error {
	for _, stmt := range d.Schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", d.Name(), err)
		}
	}
	return nil
}

func (s *EventStore) DB() *stdsql.DB   { return s.db }
func (s *EventStore) Dialect() Dialect { return s.dialect }
func (s *EventStore) Close() error     { return s.db.Close() }

const selectEvents = `SELECT seq, id, aggregate_type, aggregate_id, version, type, schema_version, occurred_at, data
	FROM es_events`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnvelope(row rowScanner) (es.Envelope, error) {
	var (
		env        es.Envelope
		occurredAt int64
		data       []byte
	)
	err := row.Scan(
		&env.Seq,
		&env.ID,
		&env.AggregateType,
		&env.AggregateID,
		&env.Version,
		&env.Type,
		&env.SchemaVersion,
		&occurredAt,
		&data,
	)
	if err != nil {
		return env, err
	}
	env.OccurredAt = time.Unix(0, occurredAt).UTC()
	env.Data = data
	return env, nil
}

func (s *EventStore) query(ctx context.Context, query string, args ...any) ([]es.Envelope, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]es.Envelope, 0)
	for rows.Next() {
		env, err := scanEnvelope(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, rows.Err()
}

func (s *EventStore) Load(
	ctx context.Context,
	aggType string,
	aggID string,
	opts ...es.StoreLoadOption,
) ([]es.Envelope, error) {
	loadOpts := es.NewStoreLoadOptions(opts...)
	out, err := s.query(
		ctx,
		selectEvents+` WHERE aggregate_type = ? AND aggregate_id = ? AND version >= ? ORDER BY version`,
		aggType, aggID, loadOpts.StartVersion.Uint64(),
	)
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", aggType, aggID, err)
	}
	return out, nil
}

func (s *EventStore) Append(
	ctx context.Context,
	aggType string,
	aggID string,
	expectedVersion es.Version,
	events []es.Envelope,
) (res *es.StoreAppendResult, err error) {
	if err := es.CheckAppend(aggType, aggID, expectedVersion, events); err != nil {
		return nil, err
	}

	conflict := func(stored es.Version) error {
		return es.ConflictError(aggType, aggID, expectedVersion, stored)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current stdsql.NullInt64
	err = tx.QueryRowContext(
		ctx,
		`SELECT MAX(version) FROM es_events WHERE aggregate_type = ? AND aggregate_id = ?`,
		aggType, aggID,
	).Scan(&current)
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if stored := es.Version(current.Int64); stored != expectedVersion {
		return nil, conflict(stored)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO es_events
		(id, aggregate_type, aggregate_id, version, type, schema_version, occurred_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var lastSeq int64
	for _, env := range events {
		data := []byte(env.Data)
		if data == nil {
			data = []byte{}
		}
		r, execErr := stmt.ExecContext(
			ctx,
			env.ID,
			aggType,
			aggID,
			env.Version.Uint64(),
			env.Type,
			env.GetSchemaVersion(),
			env.OccurredAt.UnixNano(),
			data,
		)
		if execErr != nil {
			if s.dialect.IsConflict(execErr) {
				return nil, fmt.Errorf("%w: %w", conflict(expectedVersion), execErr)
			}
			return nil, fmt.Errorf("insert version %d: %w", env.Version, execErr)
		}
		if lastSeq, err = r.LastInsertId(); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		if s.dialect.IsConflict(err) {
			return nil, fmt.Errorf("%w: %w", conflict(expectedVersion), err)
		}
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.log.Debug(
		"append",
		slog.Group("agg", slog.String("type", aggType), slog.String("id", aggID)),
		slog.Int64("last_seq", lastSeq),
		slog.Int("num_events", len(events)),
	)
	return &es.StoreAppendResult{LastSeq: uint64(lastSeq)}, nil
}

// ReadAll implements es.Feed. Every row has its own seq.
func (s *EventStore) ReadAll(ctx context.Context, afterSeq uint64, limit int) ([]es.Envelope, error) {
	n := int64(math.MaxInt32)
	if limit > 0 {
		n = int64(limit)
	}
	out, err := s.query(ctx, selectEvents+` WHERE seq > ? ORDER BY seq LIMIT ?`, afterSeq, n)
	if err != nil {
		return nil, fmt.Errorf("read all after %d: %w", afterSeq, err)
	}
	return out, nil
}

var (
	_ es.EventStore = (*EventStore)(nil)
	_ es.Feed       = (*EventStore)(nil)
)
