package reconcile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteLocalFileConflict_KeepMine(t *testing.T) {
	remote := &File{ID: "f1", Name: "report.pdf", NodeID: "node1", ParentID: "p1", SHA256: "ccc"}
	c := &RemoteLocalFileConflict{
		Path: "report.pdf",
		LocalEvent: ModificationEvent{
			EventType: EventUpdate,
			Context:   OperationContext{LocalPath: "/sync/p/report.pdf", Remote: remote},
		},
	}

	ops, syncNow, err := c.Resolve(DecisionKeepMine)
	require.NoError(t, err)
	assert.False(t, syncNow)
	require.Len(t, ops, 1)
	assert.IsType(t, &RemoteUpdateFile{}, ops[0])
}

func TestRemoteLocalFileConflict_KeepTheirs(t *testing.T) {
	remote := &File{ID: "f1", Name: "report.pdf", NodeID: "node1", ParentID: "p1", SHA256: "ccc"}
	c := &RemoteLocalFileConflict{
		Path: "report.pdf",
		LocalEvent: ModificationEvent{
			EventType: EventUpdate,
			Context:   OperationContext{LocalPath: "/sync/p/report.pdf", Remote: remote},
		},
	}

	ops, syncNow, err := c.Resolve(DecisionKeepTheirs)
	require.NoError(t, err)
	assert.False(t, syncNow)
	require.Len(t, ops, 1)
	assert.IsType(t, &LocalUpdateFile{}, ops[0])
}

// TestRemoteLocalFileConflict_KeepBoth is spec.md §8's literal "Keep Both"
// scenario: report.pdf is renamed alongside an already-existing
// "report (1).pdf", so it must land at "report (2).pdf"; a resync is
// requested; and since the local event is an UPDATE (not a CREATE), the
// DB row for the original path is deleted.
func TestRemoteLocalFileConflict_KeepBoth(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "report.pdf")
	existing := filepath.Join(dir, "report (1).pdf")

	require.NoError(t, os.WriteFile(original, []byte("mine"), 0o644))
	require.NoError(t, os.WriteFile(existing, []byte("already here"), 0o644))

	db := &File{ID: "f1", Name: "report.pdf", NodeID: "node1"}
	c := &RemoteLocalFileConflict{
		Path: "report.pdf",
		LocalEvent: ModificationEvent{
			EventType: EventUpdate,
			Context:   OperationContext{LocalPath: original, DBFile: db},
		},
	}

	ops, syncNow, err := c.Resolve(DecisionKeepBoth)
	require.NoError(t, err)
	assert.True(t, syncNow)
	require.Len(t, ops, 1)
	assert.IsType(t, &DatabaseDeleteFile{}, ops[0])

	_, statErr := os.Stat(original)
	assert.True(t, os.IsNotExist(statErr), "original path should have been renamed away")

	renamed := filepath.Join(dir, "report (2).pdf")
	content, err := os.ReadFile(renamed)
	require.NoError(t, err)
	assert.Equal(t, "mine", string(content))
}

// TestRemoteLocalFileConflict_KeepBoth_CreateSkipsDatabaseDelete covers
// the Keep_Both rule's carve-out: no DatabaseDeleteFile when the local
// event that raised the conflict was itself a CREATE (there is no prior
// DB row for the original path to remove).
func TestRemoteLocalFileConflict_KeepBoth_CreateSkipsDatabaseDelete(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(original, []byte("mine"), 0o644))

	c := &RemoteLocalFileConflict{
		Path: "new.txt",
		LocalEvent: ModificationEvent{
			EventType: EventCreate,
			Context:   OperationContext{LocalPath: original},
		},
	}

	ops, syncNow, err := c.Resolve(DecisionKeepBoth)
	require.NoError(t, err)
	assert.True(t, syncNow)
	assert.Empty(t, ops)
}

func TestUniqueConflictPath_FindsFirstFreeSlot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x (1).txt"), []byte(""), 0o644))

	got, err := uniqueConflictPath(filepath.Join(dir, "x.txt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "x (2).txt"), got)
}

func TestRemoteFolderDeleted_RestoreFolder(t *testing.T) {
	c := &RemoteFolderDeleted{FolderPath: "a/osfstorage/sub/", FolderID: "f1", FolderNodeTitle: "node1"}

	ops, syncNow, err := c.Resolve(DecisionRestoreFolder)
	require.NoError(t, err)
	assert.True(t, syncNow)
	require.Len(t, ops, 1)
	assert.IsType(t, &DatabaseDeleteFolder{}, ops[0])
}

func TestRemoteFolderDeleted_Cancel(t *testing.T) {
	c := &RemoteFolderDeleted{FolderPath: "a/osfstorage/sub/", FolderID: "f1", FolderNodeTitle: "node1"}

	ops, syncNow, err := c.Resolve(DecisionCancel)
	require.NoError(t, err)
	assert.False(t, syncNow)
	assert.Empty(t, ops)
}

func TestBroker_FallsBackToDefaultDecisionWithoutCallback(t *testing.T) {
	b := NewBroker(nil, testLogger())
	c := &RemoteFolderDeleted{FolderPath: "a/sub/", FolderID: "f1"}

	ops, syncNow, err := b.Resolve(c)
	require.NoError(t, err)
	assert.True(t, syncNow)
	require.Len(t, ops, 1)
}

func TestBroker_UsesCallbackDecision(t *testing.T) {
	b := NewBroker(func(Intervention) Decision { return DecisionCancel }, testLogger())
	c := &RemoteFolderDeleted{FolderPath: "a/sub/", FolderID: "f1"}

	ops, syncNow, err := b.Resolve(c)
	require.NoError(t, err)
	assert.False(t, syncNow)
	assert.Empty(t, ops)
}
