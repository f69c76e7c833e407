package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/pkg/kerrors"
	"github.com/S1riyS/os-course-lab-4/memfs/pkg/logging"
	"github.com/S1riyS/os-course-lab-4/memfs/pkg/logging/slogext"
)

// gate admits operations only while mounted and lets unmount wait for the
// ones already admitted.
type gate struct {
	// life serializes mount and unmount against each other.
	life sync.Mutex

	mu       sync.Mutex
	mounted  bool // GUARDED_BY(mu)
	inflight sync.WaitGroup
}

// enter admits one operation. A cancelled ctx is rejected here and nowhere
// later, so a mutation that has started always completes.
func (g *gate) enter(ctx context.Context) error {
	if ctx.Err() != nil {
		return kerrors.ErrInterrupted
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.mounted {
		return kerrors.ErrNotMounted
	}
	g.inflight.Add(1)

	return nil
}

func (g *gate) leave() {
	g.inflight.Done()
}

func (g *gate) isMounted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mounted
}

func (s *fileSystemService) Mount(ctx context.Context) error {
	const op = "service.fileSystemService.Mount"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	s.gate.life.Lock()
	defer s.gate.life.Unlock()

	if s.gate.isMounted() {
		logger.Debug("Filesystem already mounted")
		return kerrors.New(kerrors.ErrAlreadyExists, "filesystem already mounted")
	}

	err := s.fsRepo.Create(s.opts.Mode, s.opts.Uid, s.opts.Gid)
	if err != nil {
		logger.Error("Failed to create root directory", slogext.Err(err))
		return err
	}

	s.gate.mu.Lock()
	s.gate.mounted = true
	s.gate.mu.Unlock()

	logger.Info("Filesystem mounted",
		slog.Int64("root_ino", models.RootIno),
		slog.String("root_mode", formatMode(s.opts.Mode)),
	)

	return nil
}

// Unmount stops admitting operations, waits for in-flight ones and then
// discards every handle and inode.
func (s *fileSystemService) Unmount(ctx context.Context) error {
	const op = "service.fileSystemService.Unmount"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	s.gate.life.Lock()
	defer s.gate.life.Unlock()

	s.gate.mu.Lock()
	if !s.gate.mounted {
		s.gate.mu.Unlock()
		logger.Debug("Filesystem is not mounted")
		return kerrors.ErrNotMounted
	}
	s.gate.mounted = false
	s.gate.mu.Unlock()

	logger.Debug("Draining in-flight operations")
	s.gate.inflight.Wait()

	handles := s.handleRepo.DeleteAll()
	inodes := s.fsRepo.Destroy()

	logger.Info("Filesystem unmounted",
		slog.Int("dropped_handles", len(handles)),
		slog.Int("dropped_inodes", inodes),
	)

	return nil
}

func (s *fileSystemService) StatFS(ctx context.Context) (*models.StatFS, error) {
	if err := s.gate.enter(ctx); err != nil {
		return nil, err
	}
	defer s.gate.leave()

	return s.fsRepo.Stats(), nil
}
