package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/pkg/access"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/pkg/kerrors"
	"github.com/S1riyS/os-course-lab-4/memfs/pkg/logging"
)

// Open checks access for flags and returns a new handle. The handle keeps
// the inode alive until Release, even if its last name is unlinked.
func (s *fileSystemService) Open(ctx context.Context, caller models.Caller, ino int64, flags models.OpenFlags) (*models.Handle, error) {
	const op = "service.fileSystemService.Open"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Open", slog.Int64("ino", ino), slog.Uint64("flags", uint64(flags)))

	if err := s.gate.enter(ctx); err != nil {
		return nil, err
	}
	defer s.gate.leave()

	if !flags.CanRead() && !flags.CanWrite() {
		return nil, fail(logger, op, "No access mode", kerrors.New(kerrors.ErrInvalidArgument, "no access mode"))
	}

	inode, err := s.inodeRepo.Get(ino)
	if err != nil {
		return nil, fail(logger, op, "Failed to get inode", err, slog.Int64("ino", ino))
	}
	if inode.IsDir() {
		return nil, fail(logger, op, "Cannot open a directory", kerrors.ErrIsADirectory, slog.Int64("ino", ino))
	}
	if !access.Allowed(inode, caller, access.ForOpen(flags)) {
		return nil, fail(logger, op, "Access denied", kerrors.ErrPermissionDenied,
			slog.Int64("ino", ino),
			slog.Uint64("uid", uint64(caller.Uid)),
		)
	}

	if err := s.inodeRepo.Pin(ino); err != nil {
		return nil, fail(logger, op, "Inode vanished before open", err, slog.Int64("ino", ino))
	}

	if flags.Truncate() {
		if err := s.contentRepo.Truncate(ino, 0); err != nil {
			_, _ = s.inodeRepo.Unpin(ino)
			return nil, fail(logger, op, "Failed to truncate on open", err, slog.Int64("ino", ino))
		}
	}

	h := s.handleRepo.Create(ino, flags&^models.FlagTruncate)

	logger.Debug("Opened", slog.Int64("ino", ino), slog.Uint64("handle", h.ID))
	return h, nil
}

func (s *fileSystemService) Read(ctx context.Context, handleID uint64, offset int64, length int64) ([]byte, error) {
	const op = "service.fileSystemService.Read"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Read",
		slog.Uint64("handle", handleID),
		slog.Int64("offset", offset),
		slog.Int64("length", length),
	)

	if err := s.gate.enter(ctx); err != nil {
		return nil, err
	}
	defer s.gate.leave()

	h, err := s.handleRepo.Get(handleID)
	if err != nil {
		return nil, fail(logger, op, "Unknown handle", err, slog.Uint64("handle", handleID))
	}
	if !h.Flags.CanRead() {
		return nil, fail(logger, op, "Handle not open for reading", kerrors.ErrPermissionDenied, slog.Uint64("handle", handleID))
	}

	data, err := s.contentRepo.GetRange(h.Ino, offset, length)
	if err != nil {
		return nil, fail(logger, op, "Failed to read", err, slog.Int64("ino", h.Ino))
	}

	logger.Debug("Read successful", slog.Int64("ino", h.Ino), slog.Int("bytes_read", len(data)))
	return data, nil
}

// Write stores data through handleID. A handle opened for append writes at
// the end of the file regardless of offset.
func (s *fileSystemService) Write(ctx context.Context, handleID uint64, offset int64, data []byte) (int64, error) {
	const op = "service.fileSystemService.Write"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Write",
		slog.Uint64("handle", handleID),
		slog.Int64("offset", offset),
		slog.Int("length", len(data)),
	)

	if err := s.gate.enter(ctx); err != nil {
		return 0, err
	}
	defer s.gate.leave()

	h, err := s.handleRepo.Get(handleID)
	if err != nil {
		return 0, fail(logger, op, "Unknown handle", err, slog.Uint64("handle", handleID))
	}
	if !h.Flags.CanWrite() {
		return 0, fail(logger, op, "Handle not open for writing", kerrors.ErrPermissionDenied, slog.Uint64("handle", handleID))
	}

	written, err := s.contentRepo.Write(h.Ino, offset, data, h.Flags.Append())
	if err != nil {
		return 0, fail(logger, op, "Failed to write", err, slog.Int64("ino", h.Ino))
	}

	logger.Debug("Write successful", slog.Int64("ino", h.Ino), slog.Int64("bytes_written", written))
	return written, nil
}

// Release closes handleID. When it was the last holder of an unlinked file
// the file is freed here.
func (s *fileSystemService) Release(ctx context.Context, handleID uint64) error {
	const op = "service.fileSystemService.Release"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if err := s.gate.enter(ctx); err != nil {
		return err
	}
	defer s.gate.leave()

	h, err := s.handleRepo.Delete(handleID)
	if err != nil {
		return fail(logger, op, "Unknown handle", err, slog.Uint64("handle", handleID))
	}

	freed, err := s.inodeRepo.Unpin(h.Ino)
	if err != nil {
		panic(fmt.Sprintf("%s: handle %d refers to missing inode %d", op, h.ID, h.Ino))
	}

	logger.Debug("Released",
		slog.Uint64("handle", handleID),
		slog.Int64("ino", h.Ino),
		slog.Bool("freed", freed),
	)
	return nil
}
