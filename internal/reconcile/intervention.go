package reconcile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Decision is the set of choices a user can make to resolve an
// Intervention, named exactly as the original interventions.py enum.
type Decision int

const (
	DecisionKeepMine Decision = iota
	DecisionKeepTheirs
	DecisionKeepBoth
	DecisionCancel
	DecisionRestoreFolder
)

func (d Decision) String() string {
	switch d {
	case DecisionKeepMine:
		return "keep_mine"
	case DecisionKeepTheirs:
		return "keep_theirs"
	case DecisionKeepBoth:
		return "keep_both"
	case DecisionCancel:
		return "cancel"
	case DecisionRestoreFolder:
		return "restore_folder"
	default:
		return "unknown"
	}
}

// Intervention is a typed conflict awaiting an out-of-band user decision.
// Resolve produces the Operations the chosen Decision implies; SyncNow
// reports whether resolving requires the Coordinator to trigger an
// immediate resync (the original's RemoteSyncWorker().sync_now() call —
// modelled here as an explicit return value rather than a back-edge call
// into the Coordinator, per spec §9's "model cross-component references
// as explicit message passing").
type Intervention interface {
	Title() string
	Description() string
	AllowedDecisions() []Decision
	DefaultDecision() Decision
	Resolve(d Decision) (ops []Operation, syncNow bool, err error)
}

// Broker resolves Interventions by invoking a UI callback and blocking
// until the callback reports back a Decision. It is an explicitly owned
// struct threaded through the Coordinator's constructor, not a
// package-level singleton — spec §9 calls out avoiding hidden global
// state for exactly this kind of process-wide service.
type Broker struct {
	callback func(Intervention) Decision
	logger   *slog.Logger
}

func NewBroker(callback func(Intervention) Decision, logger *slog.Logger) *Broker {
	return &Broker{callback: callback, logger: logger}
}

// Resolve invokes the callback (or falls back to the Intervention's
// default decision if no callback is attached) and returns the operations
// the decision implies.
func (b *Broker) Resolve(iv Intervention) ([]Operation, bool, error) {
	decision := iv.DefaultDecision()

	if b.callback != nil {
		decision = b.callback(iv)
	} else {
		b.logger.Warn("no UI callback attached, using default decision",
			"intervention", iv.Title(), "decision", decision)
	}

	ops, syncNow, err := iv.Resolve(decision)
	if err != nil {
		return nil, false, fmt.Errorf("resolving intervention %q: %w", iv.Title(), err)
	}

	b.logger.Info("intervention resolved", "intervention", iv.Title(), "decision", decision)

	return ops, syncNow, nil
}

// ---- RemoteLocalFileConflict ----

// RemoteLocalFileConflict is raised when both sides modified, or both
// sides created, the same file with differing content (spec §4.5,
// literal source: osfoffline/tasks/interventions.py's class of the same
// name).
type RemoteLocalFileConflict struct {
	Path            string
	LocalEvent      ModificationEvent
	RemoteEvent     ModificationEvent
	BothSidesCreate bool // true when both events are EventCreate, not EventUpdate
	SyncRoot        string
}

func (c *RemoteLocalFileConflict) Title() string { return "Conflicting edits to " + c.Path }

func (c *RemoteLocalFileConflict) Description() string {
	return fmt.Sprintf("%s was changed both locally and remotely with different content.", c.Path)
}

func (c *RemoteLocalFileConflict) AllowedDecisions() []Decision {
	return []Decision{DecisionKeepMine, DecisionKeepTheirs, DecisionKeepBoth}
}

func (c *RemoteLocalFileConflict) DefaultDecision() Decision { return DecisionKeepBoth }

func (c *RemoteLocalFileConflict) Resolve(d Decision) ([]Operation, bool, error) {
	remote := c.LocalEvent.Context.Remote
	db := c.LocalEvent.Context.DBFile
	localPath := c.LocalEvent.Context.LocalPath

	switch d {
	case DecisionKeepMine:
		var ops []Operation
		if c.BothSidesCreate && remote != nil {
			ops = append(ops, NewDatabaseCreateFile(*remote))
		}

		if remote != nil {
			ops = append(ops, NewRemoteUpdateFile(remote.NodeID, remote.ParentID, remote.Name, localPath, remote.Name, remote.NodeID))
		}

		return ops, false, nil

	case DecisionKeepTheirs:
		var ops []Operation
		if c.BothSidesCreate && remote != nil {
			ops = append(ops, NewDatabaseCreateFile(*remote))
		}

		if remote != nil {
			ops = append(ops, NewLocalUpdateFile(localPath, *remote))
		}

		return ops, false, nil

	case DecisionKeepBoth:
		newPath, err := uniqueConflictPath(localPath)
		if err != nil {
			return nil, false, err
		}

		if err := os.Rename(localPath, newPath); err != nil {
			return nil, false, fmt.Errorf("renaming %s for keep-both: %w", localPath, err)
		}

		if c.LocalEvent.EventType == EventCreate {
			return nil, true, nil
		}

		var ops []Operation
		if db != nil {
			ops = append(ops, NewDatabaseDeleteFile(db.ID, db.RelPath(), db.NodeID))
		}

		return ops, true, nil

	default:
		return nil, false, fmt.Errorf("unsupported decision %v for RemoteLocalFileConflict", d)
	}
}

// uniqueConflictPath finds "<stem> (<n>)<suffix>" with the smallest n>=1
// such that the path does not already exist, per spec §4.5's Keep_Both
// rule.
func uniqueConflictPath(localPath string) (string, error) {
	dir := filepath.Dir(localPath)
	base := filepath.Base(localPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for n := 1; n < 10000; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("could not find a free conflict-copy name for %s", localPath)
}

// ---- RemoteFolderDeleted ----

// RemoteFolderDeleted is raised when the remote side deleted a folder
// that still has local modifications beneath it (spec §4.5).
type RemoteFolderDeleted struct {
	FolderPath      string
	FolderID        string
	FolderNodeTitle string
	ChangedChildren []ModificationEvent // local child events under FolderPath
	DeletedChildren []ModificationEvent
}

func (c *RemoteFolderDeleted) Title() string {
	return "Remote folder deleted: " + c.FolderPath
}

func (c *RemoteFolderDeleted) Description() string {
	return fmt.Sprintf("%s was deleted remotely but has local changes beneath it.", c.FolderPath)
}

func (c *RemoteFolderDeleted) AllowedDecisions() []Decision {
	return []Decision{DecisionRestoreFolder, DecisionCancel}
}

func (c *RemoteFolderDeleted) DefaultDecision() Decision { return DecisionRestoreFolder }

func (c *RemoteFolderDeleted) Resolve(d Decision) ([]Operation, bool, error) {
	switch d {
	case DecisionRestoreFolder:
		return []Operation{NewDatabaseDeleteFolder(c.FolderID, c.FolderPath, c.FolderNodeTitle)}, true, nil

	case DecisionCancel:
		return nil, false, nil

	default:
		return nil, false, fmt.Errorf("unsupported decision %v for RemoteFolderDeleted", d)
	}
}
