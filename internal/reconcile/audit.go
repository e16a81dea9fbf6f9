package reconcile

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// maxRemoteWalkers bounds parallel per-node remote walks during an audit,
// exactly as spec §5 and the original ThreadPoolExecutor(max_workers=5)
// specify.
const maxRemoteWalkers = 5

// Auditor periodically snapshots the three views (local tree, database,
// remote tree) and emits two path-keyed ModificationEvent maps, one per
// originating side. Grounded on the teacher's reconciler.go three-state
// comparison and, for the literal diff algorithm, on the original
// auditor.py.
type Auditor struct {
	store    Store
	remote   RemoteClient
	syncRoot string
	storage  string // storage-provider folder name under each node dir, e.g. "osfstorage"
	ignore   *IgnoreSet
	logger   *slog.Logger
}

func NewAuditor(store Store, remote RemoteClient, syncRoot, storageFolder string, ignore *IgnoreSet, logger *slog.Logger) *Auditor {
	return &Auditor{
		store:    store,
		remote:   remote,
		syncRoot: syncRoot,
		storage:  storageFolder,
		ignore:   ignore,
		logger:   logger,
	}
}

// AuditResult bundles both sides' emitted events plus the OperationContext
// needed to build Operations from them.
type AuditResult struct {
	Local   map[string]ModificationEvent
	Remote  map[string]ModificationEvent
	Nodes   []Node
	DBMap   map[string]Audit
}

// Audit runs one full three-view comparison.
func (a *Auditor) Audit(ctx context.Context) (*AuditResult, error) {
	nodes, err := a.store.ListSyncedNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing synced nodes: %w", err)
	}

	dbMap, err := a.collectDB(ctx, nodes)
	if err != nil {
		return nil, fmt.Errorf("collecting database view: %w", err)
	}

	remoteMap := a.collectRemote(ctx, nodes)
	localMap := a.collectLocal(nodes, dbMap)

	localDiff := diffAudits(localMap, dbMap)
	remoteDiff := diffAudits(remoteMap, dbMap)

	localEvents := a.synthesize(LocationLocal, localDiff, localMap, dbMap, remoteMap)
	remoteEvents := a.synthesize(LocationRemote, remoteDiff, remoteMap, dbMap, localMap)

	return &AuditResult{Local: localEvents, Remote: remoteEvents, Nodes: nodes, DBMap: dbMap}, nil
}

// collectDB builds {rel_path_unaliased: Audit} for every File row, plus
// {rel_path: Audit} when an alias makes the two differ. Keys are rooted the
// same way collectLocal/collectRemote root theirs — node.RelPath/storage/name
// — since a File row only stores the bare entry name; without the node's
// prefix a DB row could never line up with either side's view and every
// synced file would look created+deleted on every audit.
func (a *Auditor) collectDB(ctx context.Context, nodes []Node) (map[string]Audit, error) {
	files, err := a.store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	byNode := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byNode[n.ID] = n
	}

	out := make(map[string]Audit, len(files)*2)

	for i := range files {
		f := &files[i]
		node, ok := byNode[f.NodeID]
		if !ok {
			continue // belongs to a node no longer selected for sync
		}

		aud := Audit{FID: f.ID, SHA256: f.SHA256, FObj: f}

		out[a.dbRelPath(node, f, f.RelPathUnaliased())] = aud
		if f.RelPath() != f.RelPathUnaliased() {
			out[a.dbRelPath(node, f, f.RelPath())] = aud
		}
	}

	return out, nil
}

func (a *Auditor) dbRelPath(node Node, f *File, name string) string {
	rel := filepath.Join(node.RelPath, a.storage, name)
	if f.Kind == KindFolder {
		rel += "/"
	}

	return rel
}

// collectRemote fetches each synced node's storage tree in parallel
// (bounded to maxRemoteWalkers), swallowing a per-node failure with a log
// line rather than aborting the whole audit — the Go analogue of the
// original's ThreadPoolExecutor + per-node try/except around
// _collect_node_remote. A plain errgroup.Group cancels every goroutine on
// the first error, which is the opposite of what's wanted here, so each
// goroutine logs its failure and returns nil instead of the error.
func (a *Auditor) collectRemote(ctx context.Context, nodes []Node) map[string]Audit {
	out := make(map[string]Audit)
	if a.remote == nil {
		return out
	}

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxRemoteWalkers)

	for _, node := range nodes {
		node := node

		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			objs, err := a.remote.ListNodeStorage(gctx, node)
			if err != nil {
				a.logger.Error("remote walk failed for node, skipping", "node", node.Title, "error", err)
				return nil // swallowed: never abort sibling walks or the audit
			}

			mu.Lock()
			defer mu.Unlock()

			for i := range objs {
				o := &objs[i]
				rel := a.remoteRelPath(node, o)

				if a.ignore != nil && a.ignore.MatchesName(o.Name) {
					continue
				}

				sha := o.SHA256
				if o.Kind == KindFolder {
					sha = ""
				}

				out[rel] = Audit{FID: o.ID, SHA256: sha, FObj: o}
			}

			return nil
		})
	}

	_ = g.Wait() // errors are swallowed per-node above; never propagated

	return out
}

func (a *Auditor) remoteRelPath(node Node, o *RemoteObject) string {
	rel := filepath.Join(node.RelPath, a.storage, o.Name)
	if o.Kind == KindFolder {
		rel += "/"
	}

	return rel
}

// collectLocal walks each synced node's local folder, hashing files and
// re-keying any path the DB records under an alias back to its unaliased
// form so local and remote paths agree for diffing.
func (a *Auditor) collectLocal(nodes []Node, dbMap map[string]Audit) map[string]Audit {
	out := make(map[string]Audit)

	aliasToUnaliased := make(map[string]string)
	for rel, aud := range dbMap {
		if f, ok := aud.FObj.(*File); ok && f.RelPath() != f.RelPathUnaliased() && rel == f.RelPath() {
			aliasToUnaliased[f.RelPath()] = f.RelPathUnaliased()
		}
	}

	for _, node := range nodes {
		root := filepath.Join(a.syncRoot, node.RelPath, a.storage)

		_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable entries are skipped, not fatal
			}

			if p == root {
				return nil
			}

			name := d.Name()
			if a.ignore != nil && a.ignore.MatchesName(name) {
				if d.IsDir() {
					return filepath.SkipDir
				}

				return nil
			}

			rel, relErr := filepath.Rel(a.syncRoot, p)
			if relErr != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				out[rel+"/"] = Audit{FObj: p}
				return nil
			}

			sum, hashErr := ComputeSHA256(p)
			if hashErr != nil {
				a.logger.Warn("local hash unavailable", "path", p, "error", hashErr)
				sum = ""
			}

			if unaliased, ok := aliasToUnaliased[rel]; ok {
				rel = unaliased
			}

			out[rel] = Audit{SHA256: sum, FObj: p}

			return nil
		})
	}

	return out
}

// synthesize converts a diffResult into path-keyed ModificationEvents for
// one side, filling in each event's OperationContext and adding a parent
// UPDATE event for every ancestor of a changed descendant.
func (a *Auditor) synthesize(loc Location, d diffResult, sourceMap, dbMap, otherMap map[string]Audit) map[string]ModificationEvent {
	out := make(map[string]ModificationEvent)

	ctxFor := func(p string) OperationContext {
		var dbFile *File
		if aud, ok := dbMap[p]; ok {
			if f, ok := aud.FObj.(*File); ok {
				dbFile = f
			}
		}

		// remoteAudit is whichever of sourceMap/otherMap actually holds
		// RemoteObjects — sourceMap itself when this is a remote-origin
		// event, otherMap when this is a local-origin event paired
		// against the remote view. Looking this up the same way
		// regardless of loc keeps Context.Remote populated for BOTH
		// sides of a pair, which contentSHA (coordinator.go) and
		// remoteEventToLocalOp (coordinator.go) both depend on.
		remoteAudit := otherMap
		if loc == LocationRemote {
			remoteAudit = sourceMap
		}

		var remoteFile *File
		if aud, ok := remoteAudit[p]; ok {
			if o, ok := aud.FObj.(*RemoteObject); ok {
				remoteFile = &File{ID: o.ID, Name: o.Name, Kind: o.Kind, SHA256: o.SHA256, NodeID: o.NodeID, ParentID: o.ParentID}
			}
		}

		// localAudit is the other side of the same symmetry: whichever of
		// sourceMap/otherMap holds local filesystem entries, looked up the
		// same way regardless of loc, so both LocalPath and LocalSHA256 are
		// populated for either side of a pair.
		localAudit := sourceMap
		if loc == LocationRemote {
			localAudit = otherMap
		}

		localPath := ""
		localSHA := ""
		if aud, ok := localAudit[p]; ok {
			if s, ok := aud.FObj.(string); ok {
				localPath = s
			}
			localSHA = aud.SHA256
		}

		return OperationContext{LocalPath: localPath, DBFile: dbFile, Remote: remoteFile, LocalSHA256: localSHA}
	}

	addParentUpdates := func(p string) {
		for _, ancestor := range ancestorsOf(p, a.syncRoot) {
			key := ancestor + "/"
			if _, exists := out[key]; exists {
				continue
			}

			out[key] = ModificationEvent{
				Location:    loc,
				EventType:   EventUpdate,
				Context:     ctxFor(key),
				SrcPath:     key,
				IsDirectory: true,
			}
		}
	}

	for _, p := range d.created {
		out[p] = ModificationEvent{Location: loc, EventType: EventCreate, Context: ctxFor(p), SrcPath: p, IsDirectory: strings.HasSuffix(p, "/")}
		addParentUpdates(p)
	}

	for _, p := range d.deleted {
		out[p] = ModificationEvent{Location: loc, EventType: EventDelete, Context: ctxFor(p), SrcPath: p, IsDirectory: strings.HasSuffix(p, "/")}
		addParentUpdates(p)
	}

	for _, pair := range d.moved {
		out[pair[1]] = ModificationEvent{
			Location: loc, EventType: EventMove, Context: ctxFor(pair[1]),
			SrcPath: pair[0], DestPath: pair[1], IsDirectory: strings.HasSuffix(pair[1], "/"),
		}
		addParentUpdates(pair[1])
	}

	for _, p := range d.modified {
		if _, exists := out[p]; exists {
			continue
		}

		out[p] = ModificationEvent{Location: loc, EventType: EventUpdate, Context: ctxFor(p), SrcPath: p, IsDirectory: false}
		addParentUpdates(p)
	}

	return out
}
