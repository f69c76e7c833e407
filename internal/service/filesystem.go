package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/pkg/access"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/pkg/kerrors"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/repository"
	"github.com/S1riyS/os-course-lab-4/memfs/pkg/logging"
	"github.com/S1riyS/os-course-lab-4/memfs/pkg/logging/slogext"
)

type FileSystemService interface {
	Mount(ctx context.Context) error
	Unmount(ctx context.Context) error
	StatFS(ctx context.Context) (*models.StatFS, error)

	GetRoot(ctx context.Context) (*models.Inode, error)
	GetAttr(ctx context.Context, ino int64) (*models.Inode, error)
	Lookup(ctx context.Context, caller models.Caller, parentIno int64, name string) (*models.Inode, error)
	Parent(ctx context.Context, dirIno int64) (int64, error)
	ReadDir(ctx context.Context, caller models.Caller, dirIno int64) (iter.Seq[models.Dirent], error)
	IterateDir(ctx context.Context, caller models.Caller, dirIno int64, offset *uint64) (*models.Dirent, error)

	CreateFile(ctx context.Context, caller models.Caller, parentIno int64, name string, mode uint32) (*models.Inode, error)
	Create(ctx context.Context, caller models.Caller, parentIno int64, name string, mode uint32, flags models.OpenFlags) (*models.Inode, *models.Handle, error)
	Mkdir(ctx context.Context, caller models.Caller, parentIno int64, name string, mode uint32) (*models.Inode, error)
	Unlink(ctx context.Context, caller models.Caller, parentIno int64, name string) error
	Rmdir(ctx context.Context, caller models.Caller, parentIno int64, name string) error
	Rename(ctx context.Context, caller models.Caller, oldParentIno int64, oldName string, newParentIno int64, newName string) error

	Chmod(ctx context.Context, caller models.Caller, ino int64, mode uint32) error
	Chown(ctx context.Context, caller models.Caller, ino int64, uid, gid *uint32) error
	SetTimes(ctx context.Context, caller models.Caller, ino int64, atime, mtime *time.Time) error
	Truncate(ctx context.Context, caller models.Caller, ino int64, size int64) error

	Open(ctx context.Context, caller models.Caller, ino int64, flags models.OpenFlags) (*models.Handle, error)
	Read(ctx context.Context, handleID uint64, offset int64, length int64) ([]byte, error)
	Write(ctx context.Context, handleID uint64, offset int64, data []byte) (int64, error)
	Release(ctx context.Context, handleID uint64) error
}

// RootOptions describes the root directory created on mount.
type RootOptions struct {
	Mode uint32
	Uid  uint32
	Gid  uint32
}

type fileSystemService struct {
	fsRepo      repository.FilesystemRepository
	inodeRepo   repository.InodeRepository
	dirRepo     repository.DirectoryRepository
	contentRepo repository.ContentRepository
	handleRepo  repository.HandleRepository

	opts RootOptions
	gate gate
}

func NewFileSystemService(
	fsRepo repository.FilesystemRepository,
	inodeRepo repository.InodeRepository,
	dirRepo repository.DirectoryRepository,
	contentRepo repository.ContentRepository,
	handleRepo repository.HandleRepository,
	opts RootOptions,
) FileSystemService {
	return &fileSystemService{
		fsRepo:      fsRepo,
		inodeRepo:   inodeRepo,
		dirRepo:     dirRepo,
		contentRepo: contentRepo,
		handleRepo:  handleRepo,
		opts:        opts,
	}
}

func (s *fileSystemService) GetRoot(ctx context.Context) (*models.Inode, error) {
	const op = "service.fileSystemService.GetRoot"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("GetRoot")

	if err := s.gate.enter(ctx); err != nil {
		return nil, err
	}
	defer s.gate.leave()

	inode, err := s.inodeRepo.Get(models.RootIno)
	if err != nil {
		return nil, fail(logger, op, "Failed to get root inode", err)
	}

	return inode, nil
}

func (s *fileSystemService) GetAttr(ctx context.Context, ino int64) (*models.Inode, error) {
	const op = "service.fileSystemService.GetAttr"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if err := s.gate.enter(ctx); err != nil {
		return nil, err
	}
	defer s.gate.leave()

	inode, err := s.inodeRepo.Get(ino)
	if err != nil {
		return nil, fail(logger, op, "Failed to get inode", err, slog.Int64("ino", ino))
	}

	return inode, nil
}

func (s *fileSystemService) Lookup(ctx context.Context, caller models.Caller, parentIno int64, name string) (*models.Inode, error) {
	const op = "service.fileSystemService.Lookup"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Lookup",
		slog.Int64("parent_ino", parentIno),
		slog.String("name", name),
	)

	if err := s.gate.enter(ctx); err != nil {
		return nil, err
	}
	defer s.gate.leave()

	if _, err := s.checkDir(caller, parentIno, access.Execute); err != nil {
		return nil, fail(logger, op, "Parent is not searchable", err, slog.Int64("parent_ino", parentIno))
	}
	if len(name) > models.MaxNameLen {
		return nil, fail(logger, op, "Name too long", kerrors.ErrNameTooLong)
	}

	ino, err := s.dirRepo.Lookup(parentIno, name)
	if err != nil {
		return nil, fail(logger, op, "Entry not found", err, slog.String("name", name))
	}

	inode, err := s.inodeRepo.Get(ino)
	if err != nil {
		return nil, fail(logger, op, "Failed to get inode", err, slog.Int64("ino", ino))
	}

	logger.Debug("Lookup successful",
		slog.String("name", name),
		slog.Int64("ino", inode.Ino),
		slog.String("type", inode.Type.String()),
		slog.Int64("size", inode.Size),
	)

	return inode, nil
}

func (s *fileSystemService) Parent(ctx context.Context, dirIno int64) (int64, error) {
	const op = "service.fileSystemService.Parent"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if err := s.gate.enter(ctx); err != nil {
		return 0, err
	}
	defer s.gate.leave()

	parent, err := s.dirRepo.Parent(dirIno)
	if err != nil {
		return 0, fail(logger, op, "Failed to get parent", err, slog.Int64("dir_ino", dirIno))
	}

	return parent, nil
}

// ReadDir returns a snapshot of the directory, "." and ".." first and the
// remaining entries ordered by name. Later changes to the directory are not
// reflected in the returned sequence.
func (s *fileSystemService) ReadDir(ctx context.Context, caller models.Caller, dirIno int64) (iter.Seq[models.Dirent], error) {
	const op = "service.fileSystemService.ReadDir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("ReadDir", slog.Int64("dir_ino", dirIno))

	if err := s.gate.enter(ctx); err != nil {
		return nil, err
	}
	defer s.gate.leave()

	if _, err := s.checkDir(caller, dirIno, access.Read); err != nil {
		return nil, fail(logger, op, "Directory is not readable", err, slog.Int64("dir_ino", dirIno))
	}

	entries, err := s.dirRepo.List(dirIno)
	if err != nil {
		return nil, fail(logger, op, "Failed to list directory", err, slog.Int64("dir_ino", dirIno))
	}

	return entries, nil
}

// IterateDir returns the entry at *offset among the named entries of dirIno
// and advances the offset. The synthetic "." and ".." entries are not
// counted. Past the last entry it fails with ErrNotFound.
func (s *fileSystemService) IterateDir(ctx context.Context, caller models.Caller, dirIno int64, offset *uint64) (*models.Dirent, error) {
	const op = "service.fileSystemService.IterateDir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	entries, err := s.ReadDir(ctx, caller, dirIno)
	if err != nil {
		return nil, err
	}

	var pos uint64
	for e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		if pos == *offset {
			*offset++
			logger.Debug("IterateDir successful",
				slog.String("name", e.Name),
				slog.Int64("ino", e.Ino),
				slog.Uint64("next_offset", *offset),
			)
			return &e, nil
		}
		pos++
	}

	logger.Debug("No more entries", slog.Int64("dir_ino", dirIno), slog.Uint64("offset", *offset))
	return nil, kerrors.New(kerrors.ErrNotFound, "no more entries")
}

func (s *fileSystemService) CreateFile(ctx context.Context, caller models.Caller, parentIno int64, name string, mode uint32) (*models.Inode, error) {
	const op = "service.fileSystemService.CreateFile"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("CreateFile",
		slog.Int64("parent_ino", parentIno),
		slog.String("name", name),
		slog.String("mode", formatMode(mode)),
	)

	if err := s.gate.enter(ctx); err != nil {
		return nil, err
	}
	defer s.gate.leave()

	ino, err := s.createNode(caller, parentIno, name, models.NodeTypeFile, mode, false)
	if err != nil {
		return nil, fail(logger, op, "Failed to create file", err, slog.String("name", name))
	}

	inode, err := s.inodeRepo.Get(ino)
	if err != nil {
		return nil, fail(logger, op, "Created file vanished", err, slog.Int64("ino", ino))
	}

	logger.Debug("File created successfully", slog.Int64("ino", ino), slog.String("name", name))
	return inode, nil
}

// Create makes a regular file and opens it in one step. The new inode is
// pinned before it becomes visible, so it cannot be freed by a concurrent
// unlink before the handle exists.
func (s *fileSystemService) Create(ctx context.Context, caller models.Caller, parentIno int64, name string, mode uint32, flags models.OpenFlags) (*models.Inode, *models.Handle, error) {
	const op = "service.fileSystemService.Create"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Create",
		slog.Int64("parent_ino", parentIno),
		slog.String("name", name),
		slog.String("mode", formatMode(mode)),
	)

	if err := s.gate.enter(ctx); err != nil {
		return nil, nil, err
	}
	defer s.gate.leave()

	if !flags.CanRead() && !flags.CanWrite() {
		return nil, nil, fail(logger, op, "No access mode", kerrors.New(kerrors.ErrInvalidArgument, "no access mode"))
	}

	ino, err := s.createNode(caller, parentIno, name, models.NodeTypeFile, mode, true)
	if err != nil {
		return nil, nil, fail(logger, op, "Failed to create file", err, slog.String("name", name))
	}

	h := s.handleRepo.Create(ino, flags&^models.FlagTruncate)

	inode, err := s.inodeRepo.Get(ino)
	if err != nil {
		// The handle pins the inode.
		panic(fmt.Sprintf("%s: pinned inode %d missing: %v", op, ino, err))
	}

	logger.Debug("File created and opened",
		slog.Int64("ino", ino),
		slog.Uint64("handle", h.ID),
	)

	return inode, h, nil
}

func (s *fileSystemService) Mkdir(ctx context.Context, caller models.Caller, parentIno int64, name string, mode uint32) (*models.Inode, error) {
	const op = "service.fileSystemService.Mkdir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Mkdir",
		slog.Int64("parent_ino", parentIno),
		slog.String("name", name),
		slog.String("mode", formatMode(mode)),
	)

	if err := s.gate.enter(ctx); err != nil {
		return nil, err
	}
	defer s.gate.leave()

	ino, err := s.createNode(caller, parentIno, name, models.NodeTypeDir, mode, false)
	if err != nil {
		return nil, fail(logger, op, "Failed to create directory", err, slog.String("name", name))
	}

	inode, err := s.inodeRepo.Get(ino)
	if err != nil {
		return nil, fail(logger, op, "Created directory vanished", err, slog.Int64("ino", ino))
	}

	logger.Debug("Directory created successfully", slog.Int64("ino", ino), slog.String("name", name))
	return inode, nil
}

// createNode allocates an inode owned by caller and binds it under name. With
// pin set the inode carries one open before it is bound.
func (s *fileSystemService) createNode(caller models.Caller, parentIno int64, name string, kind models.NodeType, mode uint32, pin bool) (int64, error) {
	if err := repository.ValidateName(name); err != nil {
		return 0, err
	}
	if _, err := s.checkDir(caller, parentIno, access.Write|access.Execute); err != nil {
		return 0, err
	}

	// Report a taken name before spending an inode on it.
	if _, err := s.dirRepo.Lookup(parentIno, name); err == nil {
		return 0, kerrors.ErrAlreadyExists
	}

	ino, err := s.inodeRepo.Allocate(kind, mode, caller.Uid, caller.Gid)
	if err != nil {
		return 0, err
	}

	if pin {
		if err := s.inodeRepo.Pin(ino); err != nil {
			s.inodeRepo.Discard(ino)
			return 0, err
		}
	}

	if err := s.dirRepo.Insert(parentIno, name, ino); err != nil {
		if pin {
			// Frees the inode: it was never bound.
			_, _ = s.inodeRepo.Unpin(ino)
		} else {
			s.inodeRepo.Discard(ino)
		}
		return 0, err
	}

	return ino, nil
}

func (s *fileSystemService) Unlink(ctx context.Context, caller models.Caller, parentIno int64, name string) error {
	const op = "service.fileSystemService.Unlink"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Unlink", slog.Int64("parent_ino", parentIno), slog.String("name", name))

	if err := s.gate.enter(ctx); err != nil {
		return err
	}
	defer s.gate.leave()

	if _, err := s.checkDir(caller, parentIno, access.Write|access.Execute); err != nil {
		return fail(logger, op, "Parent is not writable", err, slog.Int64("parent_ino", parentIno))
	}

	ino, err := s.dirRepo.Remove(parentIno, name, models.NodeTypeFile)
	if err != nil {
		return fail(logger, op, "Failed to unlink", err, slog.String("name", name))
	}

	logger.Debug("File unlinked successfully", slog.Int64("ino", ino), slog.String("name", name))
	return nil
}

func (s *fileSystemService) Rmdir(ctx context.Context, caller models.Caller, parentIno int64, name string) error {
	const op = "service.fileSystemService.Rmdir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Rmdir", slog.Int64("parent_ino", parentIno), slog.String("name", name))

	if err := s.gate.enter(ctx); err != nil {
		return err
	}
	defer s.gate.leave()

	if _, err := s.checkDir(caller, parentIno, access.Write|access.Execute); err != nil {
		return fail(logger, op, "Parent is not writable", err, slog.Int64("parent_ino", parentIno))
	}

	ino, err := s.dirRepo.Remove(parentIno, name, models.NodeTypeDir)
	if err != nil {
		return fail(logger, op, "Failed to remove directory", err, slog.String("name", name))
	}

	logger.Debug("Directory removed successfully", slog.Int64("ino", ino), slog.String("name", name))
	return nil
}

func (s *fileSystemService) Rename(ctx context.Context, caller models.Caller, oldParentIno int64, oldName string, newParentIno int64, newName string) error {
	const op = "service.fileSystemService.Rename"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Rename",
		slog.Int64("old_parent_ino", oldParentIno),
		slog.String("old_name", oldName),
		slog.Int64("new_parent_ino", newParentIno),
		slog.String("new_name", newName),
	)

	if err := s.gate.enter(ctx); err != nil {
		return err
	}
	defer s.gate.leave()

	if _, err := s.checkDir(caller, oldParentIno, access.Write|access.Execute); err != nil {
		return fail(logger, op, "Source parent is not writable", err, slog.Int64("old_parent_ino", oldParentIno))
	}
	if newParentIno != oldParentIno {
		if _, err := s.checkDir(caller, newParentIno, access.Write|access.Execute); err != nil {
			return fail(logger, op, "Target parent is not writable", err, slog.Int64("new_parent_ino", newParentIno))
		}
	}

	if err := s.dirRepo.Rename(oldParentIno, oldName, newParentIno, newName); err != nil {
		return fail(logger, op, "Failed to rename", err)
	}

	logger.Debug("Renamed successfully", slog.String("old_name", oldName), slog.String("new_name", newName))
	return nil
}

func (s *fileSystemService) Chmod(ctx context.Context, caller models.Caller, ino int64, mode uint32) error {
	const op = "service.fileSystemService.Chmod"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Chmod", slog.Int64("ino", ino), slog.String("mode", formatMode(mode)))

	if err := s.gate.enter(ctx); err != nil {
		return err
	}
	defer s.gate.leave()

	inode, err := s.inodeRepo.Get(ino)
	if err != nil {
		return fail(logger, op, "Failed to get inode", err, slog.Int64("ino", ino))
	}
	if !access.IsOwner(inode, caller) {
		return fail(logger, op, "Caller does not own inode", kerrors.ErrPermissionDenied,
			slog.Int64("ino", ino),
			slog.Uint64("uid", uint64(caller.Uid)),
		)
	}

	if err := s.inodeRepo.SetMode(ino, mode); err != nil {
		return fail(logger, op, "Failed to set mode", err, slog.Int64("ino", ino))
	}

	return nil
}

// Chown changes ownership. Only the superuser may do so.
func (s *fileSystemService) Chown(ctx context.Context, caller models.Caller, ino int64, uid, gid *uint32) error {
	const op = "service.fileSystemService.Chown"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if err := s.gate.enter(ctx); err != nil {
		return err
	}
	defer s.gate.leave()

	if !caller.IsSuperuser() {
		return fail(logger, op, "Only the superuser may change ownership", kerrors.ErrNotPermitted, slog.Int64("ino", ino))
	}

	if err := s.inodeRepo.SetOwner(ino, uid, gid); err != nil {
		return fail(logger, op, "Failed to set owner", err, slog.Int64("ino", ino))
	}

	return nil
}

// SetTimes is allowed for the owner and for anyone with write access.
func (s *fileSystemService) SetTimes(ctx context.Context, caller models.Caller, ino int64, atime, mtime *time.Time) error {
	const op = "service.fileSystemService.SetTimes"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if err := s.gate.enter(ctx); err != nil {
		return err
	}
	defer s.gate.leave()

	inode, err := s.inodeRepo.Get(ino)
	if err != nil {
		return fail(logger, op, "Failed to get inode", err, slog.Int64("ino", ino))
	}
	if !access.IsOwner(inode, caller) && !access.Allowed(inode, caller, access.Write) {
		return fail(logger, op, "Caller may not set times", kerrors.ErrPermissionDenied, slog.Int64("ino", ino))
	}

	if err := s.inodeRepo.SetTimes(ino, atime, mtime); err != nil {
		return fail(logger, op, "Failed to set times", err, slog.Int64("ino", ino))
	}

	return nil
}

func (s *fileSystemService) Truncate(ctx context.Context, caller models.Caller, ino int64, size int64) error {
	const op = "service.fileSystemService.Truncate"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Truncate", slog.Int64("ino", ino), slog.Int64("size", size))

	if err := s.gate.enter(ctx); err != nil {
		return err
	}
	defer s.gate.leave()

	inode, err := s.inodeRepo.Get(ino)
	if err != nil {
		return fail(logger, op, "Failed to get inode", err, slog.Int64("ino", ino))
	}
	if inode.IsDir() {
		return fail(logger, op, "Cannot truncate a directory", kerrors.ErrIsADirectory, slog.Int64("ino", ino))
	}
	if !access.Allowed(inode, caller, access.Write) {
		return fail(logger, op, "File is not writable", kerrors.ErrPermissionDenied, slog.Int64("ino", ino))
	}

	if err := s.contentRepo.Truncate(ino, size); err != nil {
		return fail(logger, op, "Failed to truncate", err, slog.Int64("ino", ino))
	}

	return nil
}

// checkDir returns the directory ino after checking that caller holds want on it.
func (s *fileSystemService) checkDir(caller models.Caller, ino int64, want access.Mask) (*models.Inode, error) {
	dir, err := s.inodeRepo.Get(ino)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir() {
		return nil, kerrors.ErrNotADirectory
	}
	if !access.Allowed(dir, caller, want) {
		return nil, kerrors.ErrPermissionDenied
	}
	return dir, nil
}

// fail logs err and returns it. Expected filesystem outcomes keep their
// identity and are logged at debug level; anything else is wrapped with op.
func fail(logger *slog.Logger, op string, msg string, err error, attrs ...any) error {
	attrs = append(attrs, slogext.Err(err))

	var kerr *kerrors.Error
	if errors.As(err, &kerr) {
		logger.Debug(msg, attrs...)
		return err
	}

	logger.Error(msg, attrs...)
	return fmt.Errorf("%s: %w", op, err)
}

func formatMode(mode uint32) string {
	return fmt.Sprintf("%#o", mode)
}
