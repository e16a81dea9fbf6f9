package reconcile

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Coordinator pairs the Auditor's local/remote event maps (and
// incremental Watcher events) by path key, selects a single operation, a
// Database-only bookkeeping operation, or an Intervention for each key,
// and enqueues the result. Grounded on the teacher's engine.go pipeline
// and, for the classification rules themselves, on the original Sync
// Coordinator described in spec §4.4.
type Coordinator struct {
	queue    *OperationQueue
	broker   *Broker
	store    Store // may be nil; when set, raised interventions are ledgered
	syncRoot string
	storage  string
	logger   *slog.Logger
}

func NewCoordinator(queue *OperationQueue, broker *Broker, store Store, syncRoot, storageFolder string, logger *slog.Logger) *Coordinator {
	return &Coordinator{queue: queue, broker: broker, store: store, syncRoot: syncRoot, storage: storageFolder, logger: logger}
}

// Dispatch pairs localEvents and remoteEvents by path key and enqueues
// the resulting operations in spec-ordered batches.
func (co *Coordinator) Dispatch(ctx context.Context, localEvents, remoteEvents map[string]ModificationEvent) error {
	keys := make(map[string]bool, len(localEvents)+len(remoteEvents))
	for k := range localEvents {
		keys[k] = true
	}

	for k := range remoteEvents {
		keys[k] = true
	}

	suppressed := make(map[string]bool)

	var ops []Operation

	// First pass: a RemoteFolderDeleted intervention discards every local
	// child change and remote deletion event under its subtree (spec
	// §4.5), so those child keys must be found and marked here, before
	// the per-key loop below would otherwise dispatch them independently
	// as ordinary single- or both-sided operations.
	for key := range keys {
		local, hasLocal := localEvents[key]
		remote, hasRemote := remoteEvents[key]

		if !hasLocal || !hasRemote || remote.EventType != EventDelete || !local.IsDirectory {
			continue
		}

		changed, deleted, childKeys := collectFolderSubtree(key, localEvents, remoteEvents)

		batch, err := co.raiseFolderDeleted(ctx, key, local, remote, changed, deleted)
		if err != nil {
			return err
		}

		ops = append(ops, batch...)
		suppressed[key] = true

		for _, ck := range childKeys {
			suppressed[ck] = true
		}
	}

	for key := range keys {
		if suppressed[key] {
			continue
		}

		local, hasLocal := localEvents[key]
		remote, hasRemote := remoteEvents[key]

		switch {
		case hasLocal && hasRemote:
			batch, err := co.resolveBoth(ctx, key, local, remote)
			if err != nil {
				return err
			}

			ops = append(ops, batch...)

		case hasLocal:
			ops = append(ops, co.operationsForEvent(local)...)

		case hasRemote:
			ops = append(ops, co.operationsForEvent(remote)...)
		}
	}

	for _, op := range orderOperations(ops) {
		co.queue.Enqueue(op)
	}

	return nil
}

// collectFolderSubtree gathers the local events and remote deletion
// events nested under folderPath, along with every key they live at, for
// spec §4.5's RemoteFolderDeleted "discard the listed local child
// changes and the remote deletion events under this subtree" semantics.
// Remote events under the subtree that are not themselves deletions are
// left alone — the spec only calls out child changes and cascaded
// deletes as discarded.
func collectFolderSubtree(folderPath string, localEvents, remoteEvents map[string]ModificationEvent) (changed, deleted []ModificationEvent, childKeys []string) {
	seen := make(map[string]bool)

	mark := func(key string) {
		if !seen[key] {
			seen[key] = true
			childKeys = append(childKeys, key)
		}
	}

	for key, ev := range localEvents {
		if key == folderPath || !strings.HasPrefix(key, folderPath) {
			continue
		}

		changed = append(changed, ev)
		mark(key)
	}

	for key, ev := range remoteEvents {
		if key == folderPath || !strings.HasPrefix(key, folderPath) || ev.EventType != EventDelete {
			continue
		}

		deleted = append(deleted, ev)
		mark(key)
	}

	return changed, deleted, childKeys
}

// resolveBoth handles a path with events from both sides: converged
// state emits a Database-only bookkeeping op, a genuine conflict raises
// an Intervention.
func (co *Coordinator) resolveBoth(ctx context.Context, path string, local, remote ModificationEvent) ([]Operation, error) {
	if local.EventType == remote.EventType && sameContent(local, remote) {
		if db := local.Context.DBFile; db != nil {
			return []Operation{NewDatabaseUpdateFile(*db)}, nil
		}

		return nil, nil
	}

	return co.raiseFileConflict(ctx, path, local, remote)
}

func sameContent(a, b ModificationEvent) bool {
	aSHA, aOK := contentSHA(a)
	bSHA, bOK := contentSHA(b)

	if !aOK || !bOK {
		return true // folders/moves without content carry no hash to disagree on
	}

	return aSHA == bSHA
}

// contentSHA reports the hash of what this event's own side currently
// holds at its path: the on-disk hash for a local-origin event, the
// remote object's hash for a remote-origin event. Both sides' Context
// carry the same Remote.SHA256 (it's one remote snapshot), so sameContent
// must not read that field for both events — doing so compares the
// remote hash to itself and can never detect a real conflict.
func contentSHA(ev ModificationEvent) (string, bool) {
	if ev.Location == LocationLocal {
		if ev.Context.LocalSHA256 != "" {
			return ev.Context.LocalSHA256, true
		}

		return "", false
	}

	if ev.Context.Remote != nil && ev.Context.Remote.SHA256 != "" {
		return ev.Context.Remote.SHA256, true
	}

	return "", false
}

// raiseFileConflict handles a both-sides-changed path whose events
// disagree on content or event type — spec §4.5's RemoteLocalFileConflict.
func (co *Coordinator) raiseFileConflict(ctx context.Context, path string, local, remote ModificationEvent) ([]Operation, error) {
	iv := &RemoteLocalFileConflict{
		Path:            path,
		LocalEvent:      local,
		RemoteEvent:     remote,
		BothSidesCreate: local.EventType == EventCreate && remote.EventType == EventCreate,
		SyncRoot:        co.syncRoot,
	}

	return co.resolveIntervention(ctx, path, local, remote, iv, "remote_local_file_conflict")
}

// raiseFolderDeleted handles a remote folder deletion with local changes
// still beneath it — spec §4.5's RemoteFolderDeleted. changedChildren and
// deletedChildren are the subtree events collectFolderSubtree already
// excluded from the rest of Dispatch's batch.
func (co *Coordinator) raiseFolderDeleted(ctx context.Context, path string, local, remote ModificationEvent, changedChildren, deletedChildren []ModificationEvent) ([]Operation, error) {
	iv := &RemoteFolderDeleted{
		FolderPath:      path,
		FolderID:        fileID(remote.Context.DBFile),
		FolderNodeTitle: nodeTitleOf(remote.Context.DBFile),
		ChangedChildren: changedChildren,
		DeletedChildren: deletedChildren,
	}

	return co.resolveIntervention(ctx, path, local, remote, iv, "remote_folder_deleted")
}

// resolveIntervention ledgers iv to the conflict store, asks the Broker
// to resolve it, and returns the resulting operations.
func (co *Coordinator) resolveIntervention(ctx context.Context, path string, local, remote ModificationEvent, iv Intervention, conflictType string) ([]Operation, error) {
	conflictID := co.recordConflict(ctx, path, local, remote, conflictType)

	ops, syncNow, err := co.broker.Resolve(iv)
	if err != nil {
		return nil, err
	}

	if conflictID != "" {
		co.resolveConflict(ctx, conflictID)
	}

	if syncNow {
		co.logger.Info("intervention requested an immediate resync", "path", path)
	}

	return ops, nil
}

// recordConflict ledgers a raised Intervention to the conflict store
// before the Broker resolves it, so `nodesync conflicts` can show what
// happened even when the Broker auto-resolved non-interactively. Returns
// "" (and logs) if no Store is attached or the write fails — the conflict
// ledger is diagnostic, never load-bearing for resolution itself.
func (co *Coordinator) recordConflict(ctx context.Context, path string, local, remote ModificationEvent, conflictType string) string {
	if co.store == nil {
		return ""
	}

	id := uuid.NewString()
	localSHA, _ := contentSHA(local)
	remoteSHA, _ := contentSHA(remote)

	rec := ConflictRecord{
		ID:           id,
		Path:         path,
		ConflictType: conflictType,
		DetectedAt:   NowNano(),
		LocalSHA256:  localSHA,
		RemoteSHA256: remoteSHA,
	}

	if err := co.store.RecordConflict(ctx, rec); err != nil {
		co.logger.Error("recording conflict", "path", path, "error", err)
		return ""
	}

	return id
}

func (co *Coordinator) resolveConflict(ctx context.Context, id string) {
	if err := co.store.ResolveConflict(ctx, id); err != nil {
		co.logger.Error("marking conflict resolved", "conflict_id", id, "error", err)
	}
}

func fileID(f *File) string {
	if f == nil {
		return ""
	}

	return f.ID
}

func nodeTitleOf(f *File) string {
	if f == nil {
		return ""
	}

	return f.NodeID
}

// operationsForEvent derives the operation (opposite_location, event_type,
// kind) per spec §4.4 — a local-originated event yields a remote
// mutation, and vice versa.
func (co *Coordinator) operationsForEvent(ev ModificationEvent) []Operation {
	switch ev.Location {
	case LocationLocal:
		return co.localEventToRemoteOp(ev)
	default:
		return co.remoteEventToLocalOp(ev)
	}
}

func (co *Coordinator) localEventToRemoteOp(ev ModificationEvent) []Operation {
	db := ev.Context.DBFile
	name := filepath.Base(ev.SrcPath)
	nodeID, parentID := resolveNodeParent(db)

	switch ev.EventType {
	case EventCreate:
		if ev.IsDirectory {
			return []Operation{NewRemoteCreateFolder(nodeID, parentID, name, name, nodeID)}
		}

		return []Operation{NewRemoteCreateFile(nodeID, parentID, name, ev.Context.LocalPath, name, nodeID)}

	case EventUpdate:
		return []Operation{NewRemoteUpdateFile(nodeID, parentID, name, ev.Context.LocalPath, name, nodeID)}

	case EventDelete:
		if db == nil {
			return nil
		}

		if ev.IsDirectory {
			return []Operation{NewRemoteDeleteFolder(db.ID, name, nodeID)}
		}

		return []Operation{NewRemoteDeleteFile(db.ID, name, nodeID)}

	case EventMove:
		if db == nil {
			return nil
		}

		newName := filepath.Base(ev.DestPath)

		if ev.IsDirectory {
			return []Operation{NewRemoteMoveFolder(db.ID, parentID, newName, newName, nodeID)}
		}

		return []Operation{NewRemoteMoveFile(db.ID, parentID, newName, newName, nodeID)}
	}

	return nil
}

func (co *Coordinator) remoteEventToLocalOp(ev ModificationEvent) []Operation {
	remote := ev.Context.Remote
	localPath := filepath.Join(co.syncRoot, strings.TrimSuffix(ev.SrcPath, "/"))

	switch ev.EventType {
	case EventCreate:
		if remote == nil {
			return nil
		}

		if ev.IsDirectory {
			return []Operation{NewLocalCreateFolder(localPath, *remote)}
		}

		return []Operation{NewLocalCreateFile(localPath, *remote)}

	case EventUpdate:
		if remote == nil {
			return nil
		}

		return []Operation{NewLocalUpdateFile(localPath, *remote)}

	case EventDelete:
		db := ev.Context.DBFile
		name, nodeID := fileNameNode(db)

		if ev.IsDirectory {
			return []Operation{NewLocalDeleteFolder(localPath, fileID(db), name, nodeID)}
		}

		return []Operation{NewLocalDeleteFile(localPath, fileID(db), name, nodeID)}

	case EventMove:
		db := ev.Context.DBFile
		destPath := filepath.Join(co.syncRoot, strings.TrimSuffix(ev.DestPath, "/"))
		srcPath := filepath.Join(co.syncRoot, strings.TrimSuffix(ev.SrcPath, "/"))
		name, nodeID := fileNameNode(db)
		newName := filepath.Base(ev.DestPath)

		var newParentID string
		if remote != nil {
			newParentID = remote.ParentID
		}

		if ev.IsDirectory {
			return []Operation{NewLocalMoveFolder(srcPath, destPath, fileID(db), newParentID, newName, name, nodeID)}
		}

		return []Operation{NewLocalMoveFile(srcPath, destPath, fileID(db), newParentID, newName, name, nodeID)}
	}

	return nil
}

func resolveNodeParent(db *File) (nodeID, parentID string) {
	if db == nil {
		return "", ""
	}

	return db.NodeID, db.ParentID
}

func fileNameNode(db *File) (name, nodeID string) {
	if db == nil {
		return "", ""
	}

	return db.RelPath(), db.NodeID
}

// orderOperations sorts a batch so folder creates precede their
// descendants and deletes run last, matching the teacher's
// orderPlan/pathDepth/orderDeletes helpers generalized from ActionPlan's
// typed buckets to this package's flat Operation list with an ad hoc
// ordering key.
func orderOperations(ops []Operation) []Operation {
	rank := func(op Operation) int {
		switch op.(type) {
		case *RemoteCreateFolder, *LocalCreateFolder, *DatabaseCreateFile:
			return 0
		case *RemoteCreateFile, *LocalCreateFile, *RemoteUpdateFile, *LocalUpdateFile, *DatabaseUpdateFile:
			return 1
		case *RemoteMoveFile, *RemoteMoveFolder, *LocalMoveFile, *LocalMoveFolder, *DatabaseMoveFile:
			return 2
		default:
			return 3 // deletes last
		}
	}

	sorted := append([]Operation(nil), ops...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rank(sorted[i]) < rank(sorted[j])
	})

	return sorted
}
