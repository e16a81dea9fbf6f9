// Package reconcile implements the three-way reconciliation core: the
// auditor that diffs local filesystem, database, and remote views; the
// filesystem watcher that consolidates raw OS events into semantic
// changes; the intervention broker that resolves conflicting changes; and
// the single-consumer operation queue that serializes mutations.
package reconcile

import (
	"fmt"
	"time"
)

// NowNano returns the current time as Unix nanoseconds.
func NowNano() int64 {
	return time.Now().UnixNano()
}

// ToUnixNano converts a time.Time to Unix nanoseconds.
func ToUnixNano(t time.Time) int64 {
	return t.UnixNano()
}

// TruncateToSeconds drops sub-second precision from a Unix-nanosecond
// timestamp, matching the resolution most filesystem and remote APIs give.
func TruncateToSeconds(nanos int64) int64 {
	return (nanos / int64(time.Second)) * int64(time.Second)
}

// Kind distinguishes files from folders throughout the reconciliation core.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
)

func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// Node is a remote project selected for sync.
type Node struct {
	ID       string
	Title    string
	ParentID string // empty if top-level
	Sync     bool
	RelPath  string // filesystem path relative to the sync root
	ETag     string // opaque remote freshness token; persisted, not consulted by the remote walk
}

// File is a file or folder belonging to a Node's storage tree. Identity is
// ID, which is stable across renames and moves. SHA256 is empty for
// folders and required for files.
type File struct {
	ID       string
	Name     string
	Kind     Kind
	Provider string // storage provider name, always "osfstorage" in this spec
	ParentID string // empty for the storage root
	SHA256   string
	NodeID   string
	Alias    string // local name used when Name is illegal on the local filesystem

	CreatedAt int64 // Unix nanos, row bookkeeping
	UpdatedAt int64
}

// RelPath returns the path used on the local filesystem, preferring Alias
// over Name when set.
func (f *File) RelPath() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// RelPathUnaliased returns the path built from the real remote name,
// ignoring any local alias.
func (f *File) RelPathUnaliased() string {
	return f.Name
}

// Audit is an immutable (fid, sha256, fobj) triple used transiently while
// diffing a single path across the three views. FObj is one of a
// filesystem path string, a *File DB row, or a *RemoteObject — callers
// know which from the collection they pulled it from.
type Audit struct {
	FID    string
	SHA256 string
	FObj   any
}

// NullAudit is the sentinel representing "absent at this path".
var NullAudit = Audit{}

// IsNull reports whether a is the absent sentinel.
func (a Audit) IsNull() bool {
	return a.FID == "" && a.SHA256 == "" && a.FObj == nil
}

// OperationContext carries all three views of the entity an Operation acts
// upon. Any component may be nil/empty. LocalSHA256 is the file's current
// on-disk content hash (empty for directories); it is kept separate from
// Remote.SHA256 so a coordinator can tell genuine content divergence
// between the two sides from a path merely appearing in both views.
type OperationContext struct {
	LocalPath   string
	DBFile      *File
	Remote      *File
	LocalSHA256 string
}

// Location marks the origin side of a ModificationEvent.
type Location int

const (
	LocationLocal Location = iota
	LocationRemote
)

func (l Location) String() string {
	if l == LocationRemote {
		return "remote"
	}
	return "local"
}

// Opposite returns the other Location — the side an event's operations
// act upon.
func (l Location) Opposite() Location {
	if l == LocationRemote {
		return LocationLocal
	}
	return LocationRemote
}

// EventType is the semantic change kind a ModificationEvent carries.
type EventType int

const (
	EventCreate EventType = iota
	EventDelete
	EventMove
	EventUpdate
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventDelete:
		return "delete"
	case EventMove:
		return "move"
	case EventUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// ModificationEvent is a single semantic change detected on one side
// (LOCAL or REMOTE), destined to become one or more Operations.
type ModificationEvent struct {
	Location    Location
	EventType   EventType
	Context     OperationContext
	SrcPath     string
	DestPath    string // non-empty only for EventMove
	IsDirectory bool
}

// Key returns the identity used for equality/deduplication: event type,
// source path, and directory-ness — matching the original consolidator's
// hashing rule exactly.
func (m ModificationEvent) Key() string {
	return fmt.Sprintf("%d|%s|%t", m.EventType, m.SrcPath, m.IsDirectory)
}

// Equal reports whether two events share the same Key.
func (m ModificationEvent) Equal(other ModificationEvent) bool {
	return m.Key() == other.Key()
}
