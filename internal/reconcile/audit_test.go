package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helloSHA256 is the sha256 of the literal bytes "hello", used wherever a
// test needs a local file and a remote/db record to agree on content.
const helloSHA256 = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

// TestAuditor_ParallelRemoteWalkToleratesOneFailure is spec.md §8's literal
// "Parallel remote walk with one failing project" scenario: node A's walk
// errors, node B's succeeds, and the audit must return B's files with no
// error escaping collectRemote.
func TestAuditor_ParallelRemoteWalkToleratesOneFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.walkErr["nodeA"] = errors.New("storage unavailable")
	remote.walk["nodeB"] = []RemoteObject{
		{ID: "1", Name: "f.txt", Kind: KindFile, SHA256: "x", NodeID: "nodeB"},
	}

	a := NewAuditor(newFakeStore(), remote, t.TempDir(), "osfstorage", nil, testLogger())

	nodes := []Node{
		{ID: "nodeA", Title: "a", RelPath: "a", Sync: true},
		{ID: "nodeB", Title: "b", RelPath: "b", Sync: true},
	}

	got := a.collectRemote(context.Background(), nodes)

	require.Len(t, got, 1)
	_, ok := got["b/osfstorage/f.txt"]
	assert.True(t, ok, "node B's file must still be collected despite node A's walk failing")
}

// TestAuditor_IgnoredNamesExcluded is spec.md §8's literal "Ignored names"
// scenario: a name on the ignore list must never appear in either the
// local or the remote collected view.
func TestAuditor_IgnoredNamesExcluded(t *testing.T) {
	syncRoot := t.TempDir()
	projDir := filepath.Join(syncRoot, "proj", "osfstorage")
	require.NoError(t, os.MkdirAll(projDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(projDir, ".DS_Store"), []byte("junk"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(projDir, "keep.txt"), []byte("hello"), 0o644))

	ignore := NewIgnoreSet([]string{".DS_Store"}, nil)
	remote := newFakeRemote()
	remote.walk["node1"] = []RemoteObject{
		{ID: "1", Name: "keep2.txt", Kind: KindFile, SHA256: "x", NodeID: "node1"},
		{ID: "2", Name: ".DS_Store", Kind: KindFile, SHA256: "y", NodeID: "node1"},
	}

	a := NewAuditor(newFakeStore(), remote, syncRoot, "osfstorage", ignore, testLogger())
	nodes := []Node{{ID: "node1", Title: "proj", RelPath: "proj", Sync: true}}

	local := a.collectLocal(nodes, map[string]Audit{})
	for p := range local {
		assert.NotContains(t, p, ".DS_Store")
	}
	_, ok := local["proj/osfstorage/keep.txt"]
	assert.True(t, ok)

	remoteMap := a.collectRemote(context.Background(), nodes)
	for p := range remoteMap {
		assert.NotContains(t, p, ".DS_Store")
	}
	_, ok = remoteMap["proj/osfstorage/keep2.txt"]
	assert.True(t, ok)
}

// TestAuditor_AgreeingSnapshotEmitsNoEvents exercises the full Audit()
// pipeline (not just diffAudits in isolation): when the local filesystem,
// the database, and the remote all agree on the same file, no events
// should be emitted on either side — spec.md §8 invariant 1.
func TestAuditor_AgreeingSnapshotEmitsNoEvents(t *testing.T) {
	syncRoot := t.TempDir()
	projDir := filepath.Join(syncRoot, "proj", "osfstorage")
	require.NoError(t, os.MkdirAll(projDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(projDir, "a.txt"), []byte("hello"), 0o644))

	store := newFakeStore()
	store.nodes = []Node{{ID: "node1", Title: "proj", RelPath: "proj", Sync: true}}
	store.files = []File{{ID: "1", Name: "a.txt", Kind: KindFile, SHA256: helloSHA256, NodeID: "node1"}}

	remote := newFakeRemote()
	remote.walk["node1"] = []RemoteObject{
		{ID: "1", Name: "a.txt", Kind: KindFile, SHA256: helloSHA256, NodeID: "node1"},
	}

	a := NewAuditor(store, remote, syncRoot, "osfstorage", nil, testLogger())

	result, err := a.Audit(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Local, "agreeing snapshot must not emit local events")
	assert.Empty(t, result.Remote, "agreeing snapshot must not emit remote events")
}

// TestAuditor_DivergingContentRaisesSymmetricUpdate covers the same
// end-to-end path but with a genuine three-way divergence, confirming
// synthesize populates LocalSHA256 and Context.Remote symmetrically on
// both sides' events (the fix behind contentSHA in coordinator.go).
func TestAuditor_DivergingContentRaisesSymmetricUpdate(t *testing.T) {
	syncRoot := t.TempDir()
	projDir := filepath.Join(syncRoot, "proj", "osfstorage")
	require.NoError(t, os.MkdirAll(projDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(projDir, "a.txt"), []byte("local-bytes"), 0o644))

	store := newFakeStore()
	store.nodes = []Node{{ID: "node1", Title: "proj", RelPath: "proj", Sync: true}}
	store.files = []File{{ID: "1", Name: "a.txt", Kind: KindFile, SHA256: "dbsha", NodeID: "node1"}}

	remote := newFakeRemote()
	remote.walk["node1"] = []RemoteObject{
		{ID: "1", Name: "a.txt", Kind: KindFile, SHA256: "remotesha", NodeID: "node1"},
	}

	a := NewAuditor(store, remote, syncRoot, "osfstorage", nil, testLogger())

	result, err := a.Audit(context.Background())
	require.NoError(t, err)

	localEv, ok := result.Local["proj/osfstorage/a.txt"]
	require.True(t, ok, "local side must report the path as modified")
	remoteEv, ok := result.Remote["proj/osfstorage/a.txt"]
	require.True(t, ok, "remote side must report the path as modified")

	assert.NotEmpty(t, localEv.Context.LocalSHA256)
	require.NotNil(t, localEv.Context.Remote)
	assert.Equal(t, "remotesha", localEv.Context.Remote.SHA256)

	assert.NotEmpty(t, remoteEv.Context.LocalSHA256)
	require.NotNil(t, remoteEv.Context.Remote)
	assert.Equal(t, "remotesha", remoteEv.Context.Remote.SHA256)

	assert.Equal(t, localEv.Context.LocalSHA256, remoteEv.Context.LocalSHA256,
		"both sides' events must see the same real on-disk hash")
}

func TestAuditor_RemoteRelPathFoldersGetTrailingSlash(t *testing.T) {
	a := &Auditor{storage: "osfstorage"}
	node := Node{RelPath: "proj"}

	got := a.remoteRelPath(node, &RemoteObject{Name: "sub", Kind: KindFolder})
	assert.True(t, strings.HasSuffix(got, "/"))
	assert.Equal(t, "proj/osfstorage/sub/", got)

	got = a.remoteRelPath(node, &RemoteObject{Name: "f.txt", Kind: KindFile})
	assert.Equal(t, "proj/osfstorage/f.txt", got)
}
