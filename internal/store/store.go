// Package store persists the reconciliation core's durable view: synced
// nodes, their file/folder rows, and the conflict ledger. It implements
// reconcile.Store over an embedded SQLite database, grounded on the
// teacher's BaselineManager (internal/sync/baseline.go) — sole-writer
// pattern, WAL journal mode, goose-managed schema.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // pure-Go driver, no CGO

	"github.com/nodesync/nodesync/internal/reconcile"
)

// SQL statements, grouped by domain and kept as package constants rather
// than prepared per call — the same layout the teacher uses in
// baseline.go, minus per-statement caching since this store's query
// volume is far lower than a multi-drive delta sync.
const (
	sqlListFiles = `SELECT id, name, kind, provider, parent_id, sha256,
		node_id, alias, created_at, updated_at FROM files`

	sqlInsertFile = `INSERT INTO files
		(id, name, kind, provider, parent_id, sha256, node_id, alias, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, kind = excluded.kind, provider = excluded.provider,
			parent_id = excluded.parent_id, sha256 = excluded.sha256,
			node_id = excluded.node_id, alias = excluded.alias,
			updated_at = excluded.updated_at`

	sqlUpdateFile = `UPDATE files SET name = ?, kind = ?, provider = ?, parent_id = ?,
		sha256 = ?, node_id = ?, alias = ?, updated_at = ? WHERE id = ?`

	sqlDeleteFile = `DELETE FROM files WHERE id = ?`

	sqlMoveFile = `UPDATE files SET parent_id = ?, name = ? WHERE id = ?`

	sqlListSyncedNodes = `SELECT id, title, parent_id, sync, rel_path, etag
		FROM nodes WHERE sync = 1`

	sqlGetNode = `SELECT id, title, parent_id, sync, rel_path, etag
		FROM nodes WHERE id = ?`

	sqlUpsertNode = `INSERT INTO nodes (id, title, parent_id, sync, rel_path, etag)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, parent_id = excluded.parent_id,
			sync = excluded.sync, rel_path = excluded.rel_path, etag = excluded.etag`

	sqlInsertConflict = `INSERT INTO conflicts
		(id, path, conflict_type, detected_at, resolved_at, local_sha256, remote_sha256)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	sqlListConflicts = `SELECT id, path, conflict_type, detected_at, resolved_at,
		local_sha256, remote_sha256 FROM conflicts
		ORDER BY detected_at`

	sqlResolveConflict = `UPDATE conflicts SET resolved_at = ? WHERE id = ? AND resolved_at = 0`
)

// SQLiteStore implements reconcile.Store. It is the sole writer to the
// database — every mutation is a single statement inside the default
// connection pool, matching the teacher's db.SetMaxOpenConns(1)
// sole-writer pattern so WAL mode never has to arbitrate concurrent
// writers.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() int64
}

// Open opens (creating if absent) the SQLite database at path, applies
// pending migrations, and returns a ready store. Use ":memory:" in tests.
func Open(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening database %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("store ready", "path", path)

	return &SQLiteStore{db: db, logger: logger, now: reconcile.NowNano}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) ListFiles(ctx context.Context) ([]reconcile.File, error) {
	rows, err := s.db.QueryContext(ctx, sqlListFiles)
	if err != nil {
		return nil, fmt.Errorf("store: listing files: %w", err)
	}
	defer rows.Close()

	var out []reconcile.File

	for rows.Next() {
		var f reconcile.File

		if err := rows.Scan(&f.ID, &f.Name, &f.Kind, &f.Provider, &f.ParentID,
			&f.SHA256, &f.NodeID, &f.Alias, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning file row: %w", err)
		}

		out = append(out, f)
	}

	return out, rows.Err()
}

func (s *SQLiteStore) ListSyncedNodes(ctx context.Context) ([]reconcile.Node, error) {
	rows, err := s.db.QueryContext(ctx, sqlListSyncedNodes)
	if err != nil {
		return nil, fmt.Errorf("store: listing synced nodes: %w", err)
	}
	defer rows.Close()

	var out []reconcile.Node

	for rows.Next() {
		var n reconcile.Node
		var sync int

		if err := rows.Scan(&n.ID, &n.Title, &n.ParentID, &sync, &n.RelPath, &n.ETag); err != nil {
			return nil, fmt.Errorf("store: scanning node row: %w", err)
		}

		n.Sync = sync != 0
		out = append(out, n)
	}

	return out, rows.Err()
}

func (s *SQLiteStore) GetNode(ctx context.Context, id string) (*reconcile.Node, error) {
	var n reconcile.Node
	var sync int

	err := s.db.QueryRowContext(ctx, sqlGetNode, id).
		Scan(&n.ID, &n.Title, &n.ParentID, &sync, &n.RelPath, &n.ETag)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("store: node %s: %w", id, reconcile.ErrNodeNotFound)
	case err != nil:
		return nil, fmt.Errorf("store: getting node %s: %w", id, err)
	}

	n.Sync = sync != 0

	return &n, nil
}

// UpsertNode inserts or updates a node's sync selection and cached
// metadata. Not part of the reconcile.Store interface (the core never
// creates nodes itself) but used by the CLI's node-selection command.
func (s *SQLiteStore) UpsertNode(ctx context.Context, n reconcile.Node) error {
	syncInt := 0
	if n.Sync {
		syncInt = 1
	}

	_, err := s.db.ExecContext(ctx, sqlUpsertNode, n.ID, n.Title, n.ParentID, syncInt, n.RelPath, n.ETag)
	if err != nil {
		return fmt.Errorf("store: upserting node %s: %w", n.ID, err)
	}

	return nil
}

func (s *SQLiteStore) CreateFile(ctx context.Context, f reconcile.File) error {
	_, err := s.db.ExecContext(ctx, sqlInsertFile, f.ID, f.Name, f.Kind, f.Provider,
		f.ParentID, f.SHA256, f.NodeID, f.Alias, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: creating file %s: %w", f.ID, err)
	}

	return nil
}

func (s *SQLiteStore) UpdateFile(ctx context.Context, f reconcile.File) error {
	res, err := s.db.ExecContext(ctx, sqlUpdateFile, f.Name, f.Kind, f.Provider,
		f.ParentID, f.SHA256, f.NodeID, f.Alias, f.UpdatedAt, f.ID)
	if err != nil {
		return fmt.Errorf("store: updating file %s: %w", f.ID, err)
	}

	return requireRowAffected(res, "update file", f.ID)
}

func (s *SQLiteStore) DeleteFile(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, sqlDeleteFile, id); err != nil {
		return fmt.Errorf("store: deleting file %s: %w", id, err)
	}

	return nil
}

func (s *SQLiteStore) MoveFile(ctx context.Context, id, newParentID, newName string) error {
	res, err := s.db.ExecContext(ctx, sqlMoveFile, newParentID, newName, id)
	if err != nil {
		return fmt.Errorf("store: moving file %s: %w", id, err)
	}

	return requireRowAffected(res, "move file", id)
}

func requireRowAffected(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: checking rows affected for %s %s: %w", op, id, err)
	}

	if n == 0 {
		return fmt.Errorf("store: %s %s: %w", op, id, reconcile.ErrNodeNotFound)
	}

	return nil
}

func (s *SQLiteStore) RecordConflict(ctx context.Context, c reconcile.ConflictRecord) error {
	_, err := s.db.ExecContext(ctx, sqlInsertConflict, c.ID, c.Path, c.ConflictType,
		c.DetectedAt, c.ResolvedAt, c.LocalSHA256, c.RemoteSHA256)
	if err != nil {
		return fmt.Errorf("store: recording conflict %s: %w", c.ID, err)
	}

	return nil
}

func (s *SQLiteStore) ListConflicts(ctx context.Context) ([]reconcile.ConflictRecord, error) {
	rows, err := s.db.QueryContext(ctx, sqlListConflicts)
	if err != nil {
		return nil, fmt.Errorf("store: listing conflicts: %w", err)
	}
	defer rows.Close()

	var out []reconcile.ConflictRecord

	for rows.Next() {
		var c reconcile.ConflictRecord

		if err := rows.Scan(&c.ID, &c.Path, &c.ConflictType, &c.DetectedAt,
			&c.ResolvedAt, &c.LocalSHA256, &c.RemoteSHA256); err != nil {
			return nil, fmt.Errorf("store: scanning conflict row: %w", err)
		}

		out = append(out, c)
	}

	return out, rows.Err()
}

func (s *SQLiteStore) ResolveConflict(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, sqlResolveConflict, s.now(), id)
	if err != nil {
		return fmt.Errorf("store: resolving conflict %s: %w", id, err)
	}

	return requireRowAffected(res, "resolve conflict", id)
}

var _ reconcile.Store = (*SQLiteStore)(nil)
