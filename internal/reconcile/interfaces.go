package reconcile

import (
	"context"
	"errors"
	"io"
)

// ErrNodeNotFound is returned when a path resolves under no synced Node.
// The Operation Queue treats this as a warning-level skip, never a fatal
// error (spec §7).
var ErrNodeNotFound = errors.New("reconcile: path resolves under no synced node")

// Store is the consumer-defined interface over the durable database. The
// reconciliation core only ever needs the queries and writes enumerated
// here — schema and driver details live in package store.
type Store interface {
	ListFiles(ctx context.Context) ([]File, error)
	ListSyncedNodes(ctx context.Context) ([]Node, error)
	GetNode(ctx context.Context, id string) (*Node, error)

	CreateFile(ctx context.Context, f File) error
	UpdateFile(ctx context.Context, f File) error
	DeleteFile(ctx context.Context, id string) error
	MoveFile(ctx context.Context, id, newParentID, newName string) error

	RecordConflict(ctx context.Context, c ConflictRecord) error
	ListConflicts(ctx context.Context) ([]ConflictRecord, error)
	ResolveConflict(ctx context.Context, id string) error
}

// ConflictRecord is the persisted ledger entry for an Intervention that
// has been raised (and possibly resolved).
type ConflictRecord struct {
	ID           string
	Path         string
	ConflictType string
	DetectedAt   int64
	ResolvedAt   int64 // zero if still open
	LocalSHA256  string
	RemoteSHA256 string
}

// RemoteObject is the remote view's equivalent of a *File — the shape the
// remote client returns while walking a node's storage tree.
type RemoteObject struct {
	ID       string
	Name     string
	Kind     Kind
	ParentID string
	SHA256   string
	NodeID   string
}

// RemoteClient is the consumer-defined interface over the remote storage
// HTTP API (spec §6). A concrete implementation lives in package remote;
// the reconciliation core only depends on this interface, the same way
// the teacher's sync package only depends on its own client interfaces.
type RemoteClient interface {
	// ListNodeStorage walks a Node's entire storage tree and returns every
	// file and folder beneath it.
	ListNodeStorage(ctx context.Context, node Node) ([]RemoteObject, error)

	Move(ctx context.Context, id, newParentID, newName string) error
	CreateFolder(ctx context.Context, nodeID, parentID, name string) (RemoteObject, error)
	Upload(ctx context.Context, nodeID, parentID, name string, content io.Reader) (RemoteObject, error)
	Download(ctx context.Context, id string) (io.ReadCloser, error)
	Delete(ctx context.Context, id string) error
}

// Notifier surfaces user-visible messages for operation failures and
// other conditions a human should know about (spec §7).
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(string)

func (f NotifierFunc) Notify(message string) { f(message) }
