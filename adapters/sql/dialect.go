package sql

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect holds the statements that differ between database engines.
type Dialect interface {
	Name() string
	// Schema returns the DDL statements, executed one by one.
	Schema() []string
	// UpsertSnapshot stores the latest snapshot per (obj_type, obj_id).
	UpsertSnapshot() string
	// UpsertCheckpoint stores the last seq per projection name.
	UpsertCheckpoint() string
	// IsConflict reports whether err is a uniqueness violation or another
	// error that means a concurrent writer won.
	IsConflict(err error) bool
}

const insertSnapshotColumns = `INSERT INTO es_snapshots
	(obj_type, obj_id, snapshot_id, obj_version, stream_seq, schema_version, encoding, created_at, data)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// === SQLite ===

type sqliteDialect struct{}

func SQLite() Dialect { return sqliteDialect{} }

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS es_events (
			seq            INTEGER PRIMARY KEY AUTOINCREMENT,
			id             TEXT    NOT NULL UNIQUE,
			aggregate_type TEXT    NOT NULL,
			aggregate_id   TEXT    NOT NULL,
			version        INTEGER NOT NULL,
			type           TEXT    NOT NULL,
			schema_version INTEGER NOT NULL DEFAULT 1,
			occurred_at    INTEGER NOT NULL,
			data           BLOB    NOT NULL,
			UNIQUE (aggregate_type, aggregate_id, version)
		)`,
		`CREATE TABLE IF NOT EXISTS es_snapshots (
			obj_type       TEXT    NOT NULL,
			obj_id         TEXT    NOT NULL,
			snapshot_id    TEXT    NOT NULL,
			obj_version    INTEGER NOT NULL,
			stream_seq     INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			encoding       TEXT    NOT NULL,
			created_at     INTEGER NOT NULL,
			data           BLOB    NOT NULL,
			PRIMARY KEY (obj_type, obj_id)
		)`,
		`CREATE TABLE IF NOT EXISTS es_checkpoints (
			name     TEXT    NOT NULL PRIMARY KEY,
			last_seq INTEGER NOT NULL
		)`,
	}
}

func (sqliteDialect) UpsertSnapshot() string {
	return insertSnapshotColumns + `
	ON CONFLICT (obj_type, obj_id) DO UPDATE SET
		snapshot_id = excluded.snapshot_id,
		obj_version = excluded.obj_version,
		stream_seq = excluded.stream_seq,
		schema_version = excluded.schema_version,
		encoding = excluded.encoding,
		created_at = excluded.created_at,
		data = excluded.data`
}

func (sqliteDialect) UpsertCheckpoint() string {
	return `INSERT INTO es_checkpoints (name, last_seq) VALUES (?, ?)
	ON CONFLICT (name) DO UPDATE SET last_seq = excluded.last_seq`
}

func (sqliteDialect) IsConflict(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

// === MySQL ===

const (
	mysqlErrDuplicateEntry = 1062
	mysqlErrDeadlock       = 1213
)

type mysqlDialect struct{}

func MySQL() Dialect { return mysqlDialect{} }

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS es_events (
			seq            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			id             VARCHAR(64)     NOT NULL,
			aggregate_type VARCHAR(128)    NOT NULL,
			aggregate_id   VARCHAR(128)    NOT NULL,
			version        BIGINT UNSIGNED NOT NULL,
			type           VARCHAR(255)    NOT NULL,
			schema_version INT             NOT NULL DEFAULT 1,
			occurred_at    BIGINT          NOT NULL,
			data           LONGBLOB        NOT NULL,
			UNIQUE KEY uq_es_events_id (id),
			UNIQUE KEY uq_es_events_stream (aggregate_type, aggregate_id, version)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS es_snapshots (
			obj_type       VARCHAR(128)    NOT NULL,
			obj_id         VARCHAR(128)    NOT NULL,
			snapshot_id    VARCHAR(64)     NOT NULL,
			obj_version    BIGINT UNSIGNED NOT NULL,
			stream_seq     BIGINT UNSIGNED NOT NULL,
			schema_version INT             NOT NULL,
			encoding       VARCHAR(32)     NOT NULL,
			created_at     BIGINT          NOT NULL,
			data           LONGBLOB        NOT NULL,
			PRIMARY KEY (obj_type, obj_id)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS es_checkpoints (
			name     VARCHAR(128)    NOT NULL PRIMARY KEY,
			last_seq BIGINT UNSIGNED NOT NULL
		) ENGINE=InnoDB`,
	}
}

func (mysqlDialect) UpsertSnapshot() string {
	return insertSnapshotColumns + `
	ON DUPLICATE KEY UPDATE
		snapshot_id = VALUES(snapshot_id),
		obj_version = VALUES(obj_version),
		stream_seq = VALUES(stream_seq),
		schema_version = VALUES(schema_version),
		encoding = VALUES(encoding),
		created_at = VALUES(created_at),
		data = VALUES(data)`
}

func (mysqlDialect) UpsertCheckpoint() string {
	return `INSERT INTO es_checkpoints (name, last_seq) VALUES (?, ?)
	ON DUPLICATE KEY UPDATE last_seq = VALUES(last_seq)`
}

func (mysqlDialect) IsConflict(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == mysqlErrDuplicateEntry || me.Number == mysqlErrDeadlock
}

// DialectFor returns the dialect registered under name ("sqlite" or "mysql").
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "sqlite":
		return SQLite(), nil
	case "mysql":
		return MySQL(), nil
	}
	return nil, errors.New("unknown sql dialect: " + name)
}
