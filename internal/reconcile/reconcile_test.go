package reconcile

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// fakeStore is an in-memory Store fake shared across this package's tests.
type fakeStore struct {
	mu        sync.Mutex
	files     []File
	nodes     []Node
	conflicts []ConflictRecord
}

func newFakeStore() *fakeStore { return &fakeStore{} }

func (s *fakeStore) ListFiles(ctx context.Context) ([]File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]File(nil), s.files...), nil
}

func (s *fakeStore) ListSyncedNodes(ctx context.Context) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Node
	for _, n := range s.nodes {
		if n.Sync {
			out = append(out, n)
		}
	}

	return out, nil
}

func (s *fakeStore) GetNode(ctx context.Context, id string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.nodes {
		if s.nodes[i].ID == id {
			n := s.nodes[i]
			return &n, nil
		}
	}

	return nil, ErrNodeNotFound
}

func (s *fakeStore) CreateFile(ctx context.Context, f File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files = append(s.files, f)
	return nil
}

func (s *fakeStore) UpdateFile(ctx context.Context, f File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.files {
		if s.files[i].ID == f.ID {
			s.files[i] = f
			return nil
		}
	}

	s.files = append(s.files, f)
	return nil
}

func (s *fakeStore) DeleteFile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.files {
		if f.ID == id {
			s.files = append(s.files[:i], s.files[i+1:]...)
			return nil
		}
	}

	return nil
}

func (s *fakeStore) MoveFile(ctx context.Context, id, newParentID, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.files {
		if s.files[i].ID == id {
			s.files[i].ParentID = newParentID
			s.files[i].Name = newName
			return nil
		}
	}

	return nil
}

func (s *fakeStore) RecordConflict(ctx context.Context, c ConflictRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conflicts = append(s.conflicts, c)
	return nil
}

func (s *fakeStore) ListConflicts(ctx context.Context) ([]ConflictRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]ConflictRecord(nil), s.conflicts...), nil
}

func (s *fakeStore) ResolveConflict(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.conflicts {
		if s.conflicts[i].ID == id {
			s.conflicts[i].ResolvedAt = NowNano()
			return nil
		}
	}

	return nil
}

// fakeRemote is a scriptable RemoteClient fake. walk/walkErr are keyed by
// Node.ID so a test can make one node's walk fail while another succeeds
// (the "parallel remote walk with one failing project" scenario).
type fakeRemote struct {
	mu       sync.Mutex
	walk     map[string][]RemoteObject
	walkErr  map[string]error
	moved    []string
	created  []RemoteObject
	uploaded []string
	deleted  []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{walk: map[string][]RemoteObject{}, walkErr: map[string]error{}}
}

func (r *fakeRemote) ListNodeStorage(ctx context.Context, node Node) ([]RemoteObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err, ok := r.walkErr[node.ID]; ok {
		return nil, err
	}

	return append([]RemoteObject(nil), r.walk[node.ID]...), nil
}

func (r *fakeRemote) Move(ctx context.Context, id, newParentID, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.moved = append(r.moved, id)
	return nil
}

func (r *fakeRemote) CreateFolder(ctx context.Context, nodeID, parentID, name string) (RemoteObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj := RemoteObject{ID: "new-folder-" + name, Name: name, Kind: KindFolder, ParentID: parentID, NodeID: nodeID}
	r.created = append(r.created, obj)

	return obj, nil
}

func (r *fakeRemote) Upload(ctx context.Context, nodeID, parentID, name string, content io.Reader) (RemoteObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.uploaded = append(r.uploaded, name)

	return RemoteObject{ID: "new-file-" + name, Name: name, Kind: KindFile, ParentID: parentID, NodeID: nodeID}, nil
}

func (r *fakeRemote) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	return io.NopCloser(io.LimitReader(nil, 0)), nil
}

func (r *fakeRemote) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deleted = append(r.deleted, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustReader(s string) io.Reader {
	return strings.NewReader(s)
}
