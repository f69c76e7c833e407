package repository

import (
	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/pkg/kerrors"
)

// renamePlan is what Rename observed before taking the directory locks.
type renamePlan struct {
	src       models.Dirent
	dst       models.Dirent
	dstExists bool
}

// Rename moves oldName in oldParentIno to newName in newParentIno, replacing
// an existing file or empty directory at the destination.
//
// Renames are serialized by Store.renameMu, so directory parent pointers are
// stable for the duration of the call. Directory locks are then taken
// ancestor first, like every other multi-directory operation.
func (r *directoryRepository) Rename(oldParentIno int64, oldName string, newParentIno int64, newName string) error {
	if err := ValidateName(oldName); err != nil {
		return err
	}
	if err := ValidateName(newName); err != nil {
		return err
	}

	s := r.store
	s.renameMu.Lock()
	defer s.renameMu.Unlock()

	op, err := r.dirNode(oldParentIno)
	if err != nil {
		return err
	}
	np, err := r.dirNode(newParentIno)
	if err != nil {
		return err
	}

	for {
		plan, err := r.peek(op, oldName, np, newName)
		if err != nil {
			return err
		}

		if plan.dstExists && plan.dst.Ino == plan.src.Ino {
			return nil
		}
		if err := r.check(plan, oldParentIno, newParentIno); err != nil {
			return err
		}

		unlock := r.lockPair(op, np)
		if !r.unchanged(plan, op, oldName, np, newName) {
			// A concurrent create or unlink changed one of the names.
			unlock()
			continue
		}

		err = r.apply(plan, op, oldName, np, newName)
		unlock()
		return err
	}
}

func (r *directoryRepository) peek(op *node, oldName string, np *node, newName string) (renamePlan, error) {
	var plan renamePlan

	op.dir.mu.RLock()
	src, ok := op.dir.entries.Get(models.Dirent{Name: oldName})
	op.dir.mu.RUnlock()
	if !ok {
		return plan, kerrors.ErrNotFound
	}
	plan.src = src

	np.dir.mu.RLock()
	removed := np.dir.removed
	plan.dst, plan.dstExists = np.dir.entries.Get(models.Dirent{Name: newName})
	np.dir.mu.RUnlock()
	if removed {
		return plan, kerrors.ErrNotFound
	}

	return plan, nil
}

func (r *directoryRepository) check(plan renamePlan, oldParentIno, newParentIno int64) error {
	if plan.src.Type == models.NodeTypeDir && r.isAncestor(plan.src.Ino, newParentIno) {
		return kerrors.New(kerrors.ErrInvalidArgument, "cannot move a directory into itself")
	}
	if !plan.dstExists {
		return nil
	}

	switch {
	case plan.src.Type == models.NodeTypeDir && plan.dst.Type != models.NodeTypeDir:
		return kerrors.ErrNotADirectory
	case plan.src.Type != models.NodeTypeDir && plan.dst.Type == models.NodeTypeDir:
		return kerrors.ErrIsADirectory
	case plan.dst.Type == models.NodeTypeDir && r.isAncestor(plan.dst.Ino, oldParentIno):
		return kerrors.ErrDirectoryNotEmpty
	}

	return nil
}

// isAncestor reports whether a is b or one of b's ancestors. The caller holds
// renameMu and no directory locks.
func (r *directoryRepository) isAncestor(a, b int64) bool {
	cur := b
	for {
		if cur == a {
			return true
		}
		if cur == VTFS_ROOT_INO {
			return false
		}

		n, ok := r.store.lookupNode(cur)
		if !ok || n.kind != models.NodeTypeDir {
			return false
		}
		n.dir.mu.RLock()
		cur = n.dir.parent
		n.dir.mu.RUnlock()
	}
}

func (r *directoryRepository) lockPair(op, np *node) (unlock func()) {
	if op == np {
		op.dir.mu.Lock()
		return op.dir.mu.Unlock
	}

	first, second := np, op
	if r.isAncestor(op.ino, np.ino) {
		first, second = op, np
	}

	first.dir.mu.Lock()
	second.dir.mu.Lock()
	return func() {
		second.dir.mu.Unlock()
		first.dir.mu.Unlock()
	}
}

func (r *directoryRepository) unchanged(plan renamePlan, op *node, oldName string, np *node, newName string) bool {
	if op.dir.removed || np.dir.removed {
		return false
	}

	src, ok := op.dir.entries.Get(models.Dirent{Name: oldName})
	if !ok || src != plan.src {
		return false
	}

	dst, ok := np.dir.entries.Get(models.Dirent{Name: newName})
	if ok != plan.dstExists {
		return false
	}
	return !ok || dst == plan.dst
}

func (r *directoryRepository) apply(plan renamePlan, op *node, oldName string, np *node, newName string) error {
	s := r.store
	now := s.now()

	var replaced *node
	if plan.dstExists {
		replaced = s.mustNode(plan.dst.Ino)
		if replaced.kind == models.NodeTypeDir {
			replaced.dir.mu.Lock()
			if replaced.dir.entries.Len() > 0 {
				replaced.dir.mu.Unlock()
				return kerrors.ErrDirectoryNotEmpty
			}
			replaced.dir.removed = true
			replaced.dir.mu.Unlock()
			np.dir.subdirs--
		}
		np.dir.entries.Delete(plan.dst)
	}

	moved := s.mustNode(plan.src.Ino)

	op.dir.entries.Delete(plan.src)
	np.dir.entries.ReplaceOrInsert(models.Dirent{Name: newName, Ino: plan.src.Ino, Type: plan.src.Type})

	if moved.kind == models.NodeTypeDir && op != np {
		moved.dir.mu.Lock()
		moved.dir.parent = np.ino
		moved.dir.mu.Unlock()
		op.dir.subdirs--
		np.dir.subdirs++
	}

	op.touchModified(now)
	if op != np {
		np.touchModified(now)
	}
	moved.mu.Lock()
	moved.ctime = now
	moved.mu.Unlock()

	if replaced != nil {
		s.unlink(replaced)
	}

	return nil
}
