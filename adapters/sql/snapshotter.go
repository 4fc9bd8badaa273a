package sql

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codewandler/qpool-go/core/es"
)

// Snapshotter keeps the latest snapshot per aggregate in es_snapshots.
type Snapshotter struct {
	db      *stdsql.DB
	dialect Dialect
}

func NewSnapshotter(db *stdsql.DB, d Dialect) *Snapshotter {
	return &Snapshotter{db: db, dialect: d}
}

func (s *Snapshotter) SaveSnapshot(ctx context.Context, ss *es.Snapshot) error {
	_, err := s.db.ExecContext(
		ctx,
		s.dialect.UpsertSnapshot(),
		ss.ObjType,
		ss.ObjID,
		ss.SnapshotID,
		ss.ObjVersion.Uint64(),
		ss.StreamSeq,
		ss.SchemaVersion,
		ss.Encoding,
		ss.CreatedAt.UnixNano(),
		ss.Data,
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s/%s: %w", ss.ObjType, ss.ObjID, err)
	}
	return nil
}

func (s *Snapshotter) LoadSnapshot(ctx context.Context, objType, objID string) (*es.Snapshot, error) {
	var (
		ss        = es.Snapshot{ObjType: objType, ObjID: objID}
		createdAt int64
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT snapshot_id, obj_version, stream_seq, schema_version, encoding, created_at, data
		FROM es_snapshots WHERE obj_type = ? AND obj_id = ?`,
		objType, objID,
	).Scan(
		&ss.SnapshotID,
		&ss.ObjVersion,
		&ss.StreamSeq,
		&ss.SchemaVersion,
		&ss.Encoding,
		&createdAt,
		&ss.Data,
	)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, es.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("load snapshot %s/%s: %w", objType, objID, err)
	}
	ss.CreatedAt = time.Unix(0, createdAt).UTC()
	return &ss, nil
}

var _ es.Snapshotter = (*Snapshotter)(nil)

// CpStore keeps the checkpoint of one projection in es_checkpoints.
type CpStore struct {
	db      *stdsql.DB
	dialect Dialect
	name    string
	timeout time.Duration
}

func NewCpStore(db *stdsql.DB, d Dialect, projection string) (*CpStore, error) {
	if projection == "" {
		return nil, errors.New("projection name is required")
	}
	return &CpStore{db: db, dialect: d, name: projection, timeout: 10 * time.Second}, nil
}

func (c *CpStore) Get() (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var lastSeq uint64
	err := c.db.QueryRowContext(ctx, `SELECT last_seq FROM es_checkpoints WHERE name = ?`, c.name).Scan(&lastSeq)
	if errors.Is(err, stdsql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get checkpoint %s: %w", c.name, err)
	}
	return lastSeq, nil
}

func (c *CpStore) Set(lastSeq uint64) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if _, err := c.db.ExecContext(ctx, c.dialect.UpsertCheckpoint(), c.name, lastSeq); err != nil {
		return fmt.Errorf("set checkpoint %s: %w", c.name, err)
	}
	return nil
}

var _ es.CpStore = (*CpStore)(nil)
