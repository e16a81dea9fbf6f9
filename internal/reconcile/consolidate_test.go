package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHashes is a HashLookup fake keyed by path.
type fakeHashes map[string]string

func (f fakeHashes) SHA256ForPath(path string) string { return f[path] }

func toEventIdentity(ev rawEvent) (ModificationEvent, error) {
	kind := EventUpdate
	switch ev.kind {
	case rawCreated:
		kind = EventCreate
	case rawDeleted:
		kind = EventDelete
	case rawMoved:
		kind = EventMove
	}

	return ModificationEvent{
		Location: LocationLocal, EventType: kind,
		SrcPath: ev.srcPath, DestPath: ev.destPath, IsDirectory: ev.isDirectory,
	}, nil
}

func TestConsolidator_ModifiedOnFolderDiscarded(t *testing.T) {
	c := NewConsolidator(fakeHashes{}, testLogger())

	c.Dispatch(rawEvent{kind: rawModified, srcPath: "/sync/project/folder", isDirectory: true})

	events := c.Flush(toEventIdentity)
	assert.Empty(t, events)
}

func TestConsolidator_CreateMatchedByDeleteBecomesMove(t *testing.T) {
	hashes := fakeHashes{"/sync/p/new/foo.txt": "abc"}
	c := NewConsolidator(hashes, testLogger())

	c.Dispatch(rawEvent{kind: rawDeleted, srcPath: "/sync/p/old/foo.txt", sha256: "abc"})
	c.Dispatch(rawEvent{kind: rawCreated, srcPath: "/sync/p/new/foo.txt"})

	events := c.Flush(toEventIdentity)
	require.Len(t, events, 1)
	assert.Equal(t, EventMove, events[0].EventType)
	assert.Equal(t, "/sync/p/old/foo.txt", events[0].SrcPath)
	assert.Equal(t, "/sync/p/new/foo.txt", events[0].DestPath)
}

func TestConsolidator_DeleteMatchedByCreateBecomesMove(t *testing.T) {
	hashes := fakeHashes{"/sync/p/a/foo.txt": "abc"}
	c := NewConsolidator(hashes, testLogger())

	c.Dispatch(rawEvent{kind: rawCreated, srcPath: "/sync/p/a/foo.txt"})
	c.Dispatch(rawEvent{kind: rawDeleted, srcPath: "/sync/p/b/foo.txt", sha256: "abc"})

	events := c.Flush(toEventIdentity)
	require.Len(t, events, 1)
	assert.Equal(t, EventMove, events[0].EventType)
	assert.Equal(t, "/sync/p/a/foo.txt", events[0].SrcPath)
	assert.Equal(t, "/sync/p/b/foo.txt", events[0].DestPath)
}

func TestConsolidator_CreateOnPendingDeleteRewritesToModify(t *testing.T) {
	c := NewConsolidator(fakeHashes{}, testLogger())

	c.Dispatch(rawEvent{kind: rawDeleted, srcPath: "/sync/p/x", basename: "x"})
	c.Dispatch(rawEvent{kind: rawCreated, srcPath: "/sync/p/x"})

	events := c.Flush(toEventIdentity)
	require.Len(t, events, 1)
	assert.Equal(t, EventUpdate, events[0].EventType)
	assert.Equal(t, "/sync/p/x", events[0].SrcPath)
}

func TestConsolidator_DuplicateCreateIsDeduped(t *testing.T) {
	c := NewConsolidator(fakeHashes{}, testLogger())

	c.Dispatch(rawEvent{kind: rawCreated, srcPath: "/sync/p/new.txt"})
	c.Dispatch(rawEvent{kind: rawCreated, srcPath: "/sync/p/new.txt"})

	events := c.Flush(toEventIdentity)
	require.Len(t, events, 1)
	assert.Equal(t, EventCreate, events[0].EventType)
}

// TestConsolidator_AtomicSave is spec.md §8's literal "Atomic save"
// scenario: create /x.tmp (sha=X), move /x.tmp -> /x, delete /x (where x
// had sha=X in the DB already). After debounce the sole emitted event is
// Modify(/x) — the editor's temp-file-then-rename-then-remove-original
// pattern must never surface as a spurious move+delete pair.
func TestConsolidator_AtomicSave(t *testing.T) {
	hashes := fakeHashes{"/sync/p/x": "X"}
	c := NewConsolidator(hashes, testLogger())

	c.Dispatch(rawEvent{kind: rawCreated, srcPath: "/sync/p/x.tmp", sha256: "X"})
	c.Dispatch(rawEvent{kind: rawMoved, srcPath: "/sync/p/x.tmp", destPath: "/sync/p/x"})
	c.Dispatch(rawEvent{kind: rawDeleted, srcPath: "/sync/p/x"})

	events := c.Flush(toEventIdentity)
	require.Len(t, events, 1)
	assert.Equal(t, EventUpdate, events[0].EventType)
	assert.Equal(t, "/sync/p/x", events[0].SrcPath)
}

// TestConsolidator_FlushOrdersParentsBeforeChildren covers invariant 8:
// parent folder events always precede descendant events in a flush.
func TestConsolidator_FlushOrdersParentsBeforeChildren(t *testing.T) {
	c := NewConsolidator(fakeHashes{}, testLogger())

	c.Dispatch(rawEvent{kind: rawCreated, srcPath: "/sync/p/dir/child/grandchild.txt"})
	c.Dispatch(rawEvent{kind: rawCreated, srcPath: "/sync/p/dir"})
	c.Dispatch(rawEvent{kind: rawCreated, srcPath: "/sync/p/dir/child"})

	events := c.Flush(toEventIdentity)
	require.Len(t, events, 3)

	depth := func(p string) int { return len(p) }
	for i := 1; i < len(events); i++ {
		assert.LessOrEqual(t, depth(events[i-1].SrcPath), depth(events[i].SrcPath))
	}
	assert.Equal(t, "/sync/p/dir", events[0].SrcPath)
	assert.Equal(t, "/sync/p/dir/child", events[1].SrcPath)
	assert.Equal(t, "/sync/p/dir/child/grandchild.txt", events[2].SrcPath)
}

func TestConsolidator_FlushClearsState(t *testing.T) {
	c := NewConsolidator(fakeHashes{}, testLogger())

	c.Dispatch(rawEvent{kind: rawCreated, srcPath: "/sync/p/a"})
	c.Flush(toEventIdentity)

	events := c.Flush(toEventIdentity)
	assert.Empty(t, events)
}
