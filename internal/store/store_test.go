package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodesync/nodesync/internal/reconcile"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := Open(context.Background(), ":memory:", testLogger())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, s.Close()) })

	return s
}

func TestOpenAppliesMigrations(t *testing.T) {
	s := newTestStore(t)

	var count int
	err := s.db.QueryRowContext(context.Background(),
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'files'`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNodeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n := reconcile.Node{ID: "node1", Title: "My Project", RelPath: "my-project", Sync: true}
	require.NoError(t, s.UpsertNode(ctx, n))

	got, err := s.GetNode(ctx, "node1")
	require.NoError(t, err)
	assert.Equal(t, n.Title, got.Title)
	assert.True(t, got.Sync)

	synced, err := s.ListSyncedNodes(ctx)
	require.NoError(t, err)
	require.Len(t, synced, 1)
	assert.Equal(t, "node1", synced[0].ID)

	_, err = s.GetNode(ctx, "missing")
	assert.True(t, errors.Is(err, reconcile.ErrNodeNotFound))
}

func TestFileLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNode(ctx, reconcile.Node{ID: "node1", Title: "Project", Sync: true}))

	f := reconcile.File{
		ID: "f1", Name: "report.pdf", Kind: reconcile.KindFile,
		Provider: "osfstorage", NodeID: "node1", SHA256: "deadbeef",
		CreatedAt: 1, UpdatedAt: 1,
	}
	require.NoError(t, s.CreateFile(ctx, f))

	files, err := s.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "report.pdf", files[0].Name)

	f.SHA256 = "c0ffee"
	f.UpdatedAt = 2
	require.NoError(t, s.UpdateFile(ctx, f))

	require.NoError(t, s.MoveFile(ctx, "f1", "parent2", "renamed.pdf"))

	files, err = s.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "renamed.pdf", files[0].Name)
	assert.Equal(t, "parent2", files[0].ParentID)
	assert.Equal(t, "c0ffee", files[0].SHA256)

	require.NoError(t, s.DeleteFile(ctx, "f1"))

	files, err = s.ListFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestMoveFileUnknownID(t *testing.T) {
	s := newTestStore(t)

	err := s.MoveFile(context.Background(), "nope", "p", "n")
	assert.True(t, errors.Is(err, reconcile.ErrNodeNotFound))
}

func TestConflictLedger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := reconcile.ConflictRecord{
		ID: "c1", Path: "notes.txt", ConflictType: "remote_local_file_conflict",
		DetectedAt: 100, LocalSHA256: "aaa", RemoteSHA256: "bbb",
	}
	require.NoError(t, s.RecordConflict(ctx, c))

	open, err := s.ListConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "notes.txt", open[0].Path)

	require.NoError(t, s.ResolveConflict(ctx, "c1"))

	all, err := s.ListConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotZero(t, all[0].ResolvedAt)

	err = s.ResolveConflict(ctx, "c1")
	assert.True(t, errors.Is(err, reconcile.ErrNodeNotFound))
}
