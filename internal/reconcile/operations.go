package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Deps bundles the collaborators an Operation needs to run. Passed by
// value into every Operation.Run call, the way the teacher threads a
// single config struct through its action executors.
type Deps struct {
	Store    Store
	Remote   RemoteClient
	SyncRoot string
	Dry      bool
	Logger   *slog.Logger
}

// Operation is one queued mutation of the local filesystem, the remote
// service, or the database. Local* and Remote* operations also write the
// resulting row to the database after their filesystem or remote change;
// only Database* operations touch the database alone.
type Operation interface {
	Run(ctx context.Context, d Deps) error
	// FileName and NodeTitle name the affected file/project for the
	// user-visible notification the queue worker raises on failure.
	FileName() string
	NodeTitle() string
}

type baseOp struct {
	fileName  string
	nodeTitle string
}

func (b baseOp) FileName() string  { return b.fileName }
func (b baseOp) NodeTitle() string { return b.nodeTitle }

// ---- Local* operations (remote- or database-originated changes applied
// to the local filesystem) ----

// LocalCreateFile downloads Remote's content and writes it under SyncRoot.
// Constructed for a REMOTE CREATE of a file — the original's "RemoteCreateFile
// yields a LocalCreateFile operation" pairing, named from the opposite
// location per spec §4.4.
type LocalCreateFile struct {
	baseOp
	Path   string // absolute local path
	Remote File
}

func NewLocalCreateFile(path string, remote File) *LocalCreateFile {
	return &LocalCreateFile{baseOp{remote.RelPath(), remote.NodeID}, path, remote}
}

func (op *LocalCreateFile) Run(ctx context.Context, d Deps) error {
	if d.Dry {
		d.Logger.Info("dry-run: would create local file", "path", op.Path)
		return nil
	}

	rc, err := d.Remote.Download(ctx, op.Remote.ID)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", op.Remote.ID, err)
	}
	defer rc.Close()

	if err := writeAtomic(op.Path, rc); err != nil {
		return err
	}

	f := op.Remote
	f.CreatedAt, f.UpdatedAt = NowNano(), NowNano()

	return d.Store.CreateFile(ctx, f)
}

// LocalUpdateFile overwrites an existing local file with Remote's content.
type LocalUpdateFile struct {
	baseOp
	Path   string
	Remote File
}

func NewLocalUpdateFile(path string, remote File) *LocalUpdateFile {
	return &LocalUpdateFile{baseOp{remote.RelPath(), remote.NodeID}, path, remote}
}

func (op *LocalUpdateFile) Run(ctx context.Context, d Deps) error {
	if d.Dry {
		d.Logger.Info("dry-run: would update local file", "path", op.Path)
		return nil
	}

	rc, err := d.Remote.Download(ctx, op.Remote.ID)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", op.Remote.ID, err)
	}
	defer rc.Close()

	if err := writeAtomic(op.Path, rc); err != nil {
		return err
	}

	f := op.Remote
	f.UpdatedAt = NowNano()

	return d.Store.UpdateFile(ctx, f)
}

// LocalCreateFolder makes a directory (and parents) under SyncRoot.
type LocalCreateFolder struct {
	baseOp
	Path   string
	Remote File
}

func NewLocalCreateFolder(path string, remote File) *LocalCreateFolder {
	return &LocalCreateFolder{baseOp{remote.RelPath(), remote.NodeID}, path, remote}
}

func (op *LocalCreateFolder) Run(ctx context.Context, d Deps) error {
	if d.Dry {
		d.Logger.Info("dry-run: would create local folder", "path", op.Path)
		return nil
	}

	if err := os.MkdirAll(op.Path, 0o755); err != nil {
		return err
	}

	f := op.Remote
	f.CreatedAt, f.UpdatedAt = NowNano(), NowNano()

	return d.Store.CreateFile(ctx, f)
}

// LocalDeleteFile removes a local file and forgets its database row.
type LocalDeleteFile struct {
	baseOp
	Path string
	ID   string
}

func NewLocalDeleteFile(path, id, fileName, nodeTitle string) *LocalDeleteFile {
	return &LocalDeleteFile{baseOp{fileName, nodeTitle}, path, id}
}

func (op *LocalDeleteFile) Run(ctx context.Context, d Deps) error {
	if d.Dry {
		d.Logger.Info("dry-run: would delete local file", "path", op.Path)
		return nil
	}

	if err := os.Remove(op.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting local file %s: %w", op.Path, err)
	}

	if op.ID == "" {
		return nil
	}

	return d.Store.DeleteFile(ctx, op.ID)
}

// LocalDeleteFolder removes a local directory tree and forgets its row.
type LocalDeleteFolder struct {
	baseOp
	Path string
	ID   string
}

func NewLocalDeleteFolder(path, id, fileName, nodeTitle string) *LocalDeleteFolder {
	return &LocalDeleteFolder{baseOp{fileName, nodeTitle}, path, id}
}

func (op *LocalDeleteFolder) Run(ctx context.Context, d Deps) error {
	if d.Dry {
		d.Logger.Info("dry-run: would delete local folder", "path", op.Path)
		return nil
	}

	if err := os.RemoveAll(op.Path); err != nil {
		return fmt.Errorf("deleting local folder %s: %w", op.Path, err)
	}

	if op.ID == "" {
		return nil
	}

	return d.Store.DeleteFile(ctx, op.ID)
}

// LocalMoveFile and LocalMoveFolder rename a local path. Folders and files
// share implementation — os.Rename moves either.
type LocalMoveFile struct {
	baseOp
	SrcPath, DestPath, ID, NewParentID, NewName string
}

func NewLocalMoveFile(src, dest, id, newParentID, newName, fileName, nodeTitle string) *LocalMoveFile {
	return &LocalMoveFile{baseOp{fileName, nodeTitle}, src, dest, id, newParentID, newName}
}

func (op *LocalMoveFile) Run(ctx context.Context, d Deps) error {
	if err := localMove(d, op.SrcPath, op.DestPath); err != nil {
		return err
	}

	if op.ID == "" || d.Dry {
		return nil
	}

	return d.Store.MoveFile(ctx, op.ID, op.NewParentID, op.NewName)
}

type LocalMoveFolder struct {
	baseOp
	SrcPath, DestPath, ID, NewParentID, NewName string
}

func NewLocalMoveFolder(src, dest, id, newParentID, newName, fileName, nodeTitle string) *LocalMoveFolder {
	return &LocalMoveFolder{baseOp{fileName, nodeTitle}, src, dest, id, newParentID, newName}
}

func (op *LocalMoveFolder) Run(ctx context.Context, d Deps) error {
	if err := localMove(d, op.SrcPath, op.DestPath); err != nil {
		return err
	}

	if op.ID == "" || d.Dry {
		return nil
	}

	return d.Store.MoveFile(ctx, op.ID, op.NewParentID, op.NewName)
}

func localMove(d Deps, src, dest string) error {
	if d.Dry {
		d.Logger.Info("dry-run: would move local path", "src", src, "dest", dest)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", dest, err)
	}

	if err := os.Rename(src, dest); err != nil {
		return fmt.Errorf("moving %s to %s: %w", src, dest, err)
	}

	return nil
}

// ---- Remote* operations (local-originated changes applied to the
// remote service) ----

type RemoteCreateFile struct {
	baseOp
	NodeID, ParentID, Name, LocalPath string
}

func NewRemoteCreateFile(nodeID, parentID, name, localPath, fileName, nodeTitle string) *RemoteCreateFile {
	return &RemoteCreateFile{baseOp{fileName, nodeTitle}, nodeID, parentID, name, localPath}
}

func (op *RemoteCreateFile) Run(ctx context.Context, d Deps) error {
	if d.Dry {
		d.Logger.Info("dry-run: would upload file", "path", op.LocalPath)
		return nil
	}

	f, err := os.Open(op.LocalPath)
	if err != nil {
		return fmt.Errorf("opening %s for upload: %w", op.LocalPath, err)
	}
	defer f.Close()

	created, err := d.Remote.Upload(ctx, op.NodeID, op.ParentID, op.Name, f)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", op.LocalPath, err)
	}

	return d.Store.CreateFile(ctx, fileFromRemoteObject(created, NowNano()))
}

type RemoteUpdateFile struct {
	baseOp
	NodeID, ParentID, Name, LocalPath string
}

func NewRemoteUpdateFile(nodeID, parentID, name, localPath, fileName, nodeTitle string) *RemoteUpdateFile {
	return &RemoteUpdateFile{baseOp{fileName, nodeTitle}, nodeID, parentID, name, localPath}
}

func (op *RemoteUpdateFile) Run(ctx context.Context, d Deps) error {
	if d.Dry {
		d.Logger.Info("dry-run: would re-upload file", "path", op.LocalPath)
		return nil
	}

	f, err := os.Open(op.LocalPath)
	if err != nil {
		return fmt.Errorf("opening %s for upload: %w", op.LocalPath, err)
	}
	defer f.Close()

	updated, err := d.Remote.Upload(ctx, op.NodeID, op.ParentID, op.Name, f)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", op.LocalPath, err)
	}

	return d.Store.UpdateFile(ctx, fileFromRemoteObject(updated, NowNano()))
}

type RemoteCreateFolder struct {
	baseOp
	NodeID, ParentID, Name string
}

func NewRemoteCreateFolder(nodeID, parentID, name, fileName, nodeTitle string) *RemoteCreateFolder {
	return &RemoteCreateFolder{baseOp{fileName, nodeTitle}, nodeID, parentID, name}
}

func (op *RemoteCreateFolder) Run(ctx context.Context, d Deps) error {
	if d.Dry {
		d.Logger.Info("dry-run: would create remote folder", "name", op.Name)
		return nil
	}

	created, err := d.Remote.CreateFolder(ctx, op.NodeID, op.ParentID, op.Name)
	if err != nil {
		return fmt.Errorf("creating remote folder %s: %w", op.Name, err)
	}

	return d.Store.CreateFile(ctx, fileFromRemoteObject(created, NowNano()))
}

type RemoteDeleteFile struct {
	baseOp
	ID string
}

func NewRemoteDeleteFile(id, fileName, nodeTitle string) *RemoteDeleteFile {
	return &RemoteDeleteFile{baseOp{fileName, nodeTitle}, id}
}

func (op *RemoteDeleteFile) Run(ctx context.Context, d Deps) error {
	if d.Dry {
		d.Logger.Info("dry-run: would delete remote file", "id", op.ID)
		return nil
	}

	if err := d.Remote.Delete(ctx, op.ID); err != nil {
		return fmt.Errorf("deleting remote file %s: %w", op.ID, err)
	}

	return d.Store.DeleteFile(ctx, op.ID)
}

type RemoteDeleteFolder struct {
	baseOp
	ID string
}

func NewRemoteDeleteFolder(id, fileName, nodeTitle string) *RemoteDeleteFolder {
	return &RemoteDeleteFolder{baseOp{fileName, nodeTitle}, id}
}

func (op *RemoteDeleteFolder) Run(ctx context.Context, d Deps) error {
	if d.Dry {
		d.Logger.Info("dry-run: would delete remote folder", "id", op.ID)
		return nil
	}

	if err := d.Remote.Delete(ctx, op.ID); err != nil {
		return fmt.Errorf("deleting remote folder %s: %w", op.ID, err)
	}

	return d.Store.DeleteFile(ctx, op.ID)
}

type RemoteMoveFile struct {
	baseOp
	ID, NewParentID, NewName string
}

func NewRemoteMoveFile(id, newParentID, newName, fileName, nodeTitle string) *RemoteMoveFile {
	return &RemoteMoveFile{baseOp{fileName, nodeTitle}, id, newParentID, newName}
}

func (op *RemoteMoveFile) Run(ctx context.Context, d Deps) error {
	return remoteMove(ctx, d, op.ID, op.NewParentID, op.NewName)
}

type RemoteMoveFolder struct {
	baseOp
	ID, NewParentID, NewName string
}

func NewRemoteMoveFolder(id, newParentID, newName, fileName, nodeTitle string) *RemoteMoveFolder {
	return &RemoteMoveFolder{baseOp{fileName, nodeTitle}, id, newParentID, newName}
}

func (op *RemoteMoveFolder) Run(ctx context.Context, d Deps) error {
	return remoteMove(ctx, d, op.ID, op.NewParentID, op.NewName)
}

func remoteMove(ctx context.Context, d Deps, id, newParentID, newName string) error {
	if d.Dry {
		d.Logger.Info("dry-run: would move remote object", "id", id, "new_name", newName)
		return nil
	}

	if err := d.Remote.Move(ctx, id, newParentID, newName); err != nil {
		return fmt.Errorf("moving remote object %s: %w", id, err)
	}

	return d.Store.MoveFile(ctx, id, newParentID, newName)
}

// fileFromRemoteObject builds the File row persisted after a remote
// mutation succeeds — the store's record of what the remote side now
// holds, so the next audit's DB view matches what was just pushed.
func fileFromRemoteObject(o RemoteObject, now int64) File {
	return File{
		ID: o.ID, Name: o.Name, Kind: o.Kind, Provider: "osfstorage",
		ParentID: o.ParentID, SHA256: o.SHA256, NodeID: o.NodeID,
		CreatedAt: now, UpdatedAt: now,
	}
}

// ---- Database* operations (record converged or externally-resolved
// state; never touch the local filesystem or remote service) ----

type DatabaseCreateFile struct {
	baseOp
	File File
}

func NewDatabaseCreateFile(f File) *DatabaseCreateFile {
	return &DatabaseCreateFile{baseOp{f.RelPath(), f.NodeID}, f}
}

func (op *DatabaseCreateFile) Run(ctx context.Context, d Deps) error {
	if d.Dry {
		d.Logger.Info("dry-run: would record db create", "path", op.File.RelPath())
		return nil
	}

	return d.Store.CreateFile(ctx, op.File)
}

type DatabaseUpdateFile struct {
	baseOp
	File File
}

func NewDatabaseUpdateFile(f File) *DatabaseUpdateFile {
	return &DatabaseUpdateFile{baseOp{f.RelPath(), f.NodeID}, f}
}

func (op *DatabaseUpdateFile) Run(ctx context.Context, d Deps) error {
	if d.Dry {
		d.Logger.Info("dry-run: would record db update", "path", op.File.RelPath())
		return nil
	}

	return d.Store.UpdateFile(ctx, op.File)
}

type DatabaseDeleteFile struct {
	baseOp
	ID string
}

func NewDatabaseDeleteFile(id, fileName, nodeTitle string) *DatabaseDeleteFile {
	return &DatabaseDeleteFile{baseOp{fileName, nodeTitle}, id}
}

func (op *DatabaseDeleteFile) Run(ctx context.Context, d Deps) error {
	if d.Dry {
		d.Logger.Info("dry-run: would record db delete", "id", op.ID)
		return nil
	}

	return d.Store.DeleteFile(ctx, op.ID)
}

type DatabaseDeleteFolder struct {
	baseOp
	ID string
}

func NewDatabaseDeleteFolder(id, fileName, nodeTitle string) *DatabaseDeleteFolder {
	return &DatabaseDeleteFolder{baseOp{fileName, nodeTitle}, id}
}

func (op *DatabaseDeleteFolder) Run(ctx context.Context, d Deps) error {
	if d.Dry {
		d.Logger.Info("dry-run: would record db folder delete", "id", op.ID)
		return nil
	}

	return d.Store.DeleteFile(ctx, op.ID)
}

type DatabaseMoveFile struct {
	baseOp
	ID, NewParentID, NewName string
}

func NewDatabaseMoveFile(id, newParentID, newName, fileName, nodeTitle string) *DatabaseMoveFile {
	return &DatabaseMoveFile{baseOp{fileName, nodeTitle}, id, newParentID, newName}
}

func (op *DatabaseMoveFile) Run(ctx context.Context, d Deps) error {
	if d.Dry {
		d.Logger.Info("dry-run: would record db move", "id", op.ID)
		return nil
	}

	return d.Store.MoveFile(ctx, op.ID, op.NewParentID, op.NewName)
}

// writeAtomic streams r into a temp file beside path and renames it into
// place, so a crash mid-write never leaves a truncated file — the local
// mirror of the atomic-save pattern the consolidator itself detects via
// merge rule 4.
func writeAtomic(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating parent directory for %s: %w", path, err)
	}

	tmp := path + ".nodesync-tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)

		return fmt.Errorf("writing %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temp file for %s: %w", path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming into place %s: %w", path, err)
	}

	return nil
}
