package repository

import (
	"math"
	"time"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/pkg/kerrors"
)

type InodeRepository interface {
	Allocate(kind models.NodeType, mode uint32, uid, gid uint32) (int64, error)
	Get(ino int64) (*models.Inode, error)
	Discard(ino int64)
	SetMode(ino int64, mode uint32) error
	SetOwner(ino int64, uid, gid *uint32) error
	SetTimes(ino int64, atime, mtime *time.Time) error
	Pin(ino int64) error
	Unpin(ino int64) (freed bool, err error)
	IsDir(ino int64) (bool, error)
	IsFile(ino int64) (bool, error)
}

type inodeRepository struct {
	store *Store
}

func NewInodeRepository(store *Store) InodeRepository {
	return &inodeRepository{store: store}
}

// Allocate creates an unnamed inode. It becomes reachable only once a
// directory entry is inserted for it.
func (r *inodeRepository) Allocate(kind models.NodeType, mode uint32, uid, gid uint32) (int64, error) {
	s := r.store

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limits.MaxInodes > 0 && len(s.nodes) >= s.limits.MaxInodes {
		return 0, kerrors.ErrResourceExhausted
	}
	if s.nextIno == math.MaxInt64 {
		return 0, kerrors.New(kerrors.ErrResourceExhausted, "inode numbers exhausted")
	}

	ino := s.nextIno
	s.nextIno++
	s.nodes[ino] = newNode(ino, kind, mode, uid, gid, s.now())

	return ino, nil
}

func (r *inodeRepository) Get(ino int64) (*models.Inode, error) {
	s := r.store

	s.mu.RLock()
	n, ok := s.nodes[ino]
	var refs int
	if ok {
		refs = n.refs
	}
	s.mu.RUnlock()

	if !ok {
		return nil, kerrors.ErrNotFound
	}

	inode := &models.Inode{Ino: n.ino, Type: n.kind}

	switch n.kind {
	case models.NodeTypeFile:
		n.file.mu.RLock()
		inode.Size = int64(len(n.file.data))
		n.file.mu.RUnlock()
		inode.Nlink = uint32(refs)
	case models.NodeTypeDir:
		n.dir.mu.RLock()
		if !n.dir.removed {
			inode.Nlink = uint32(2 + n.dir.subdirs)
		}
		n.dir.mu.RUnlock()
	}

	n.mu.RLock()
	inode.Mode = n.mode
	inode.Uid = n.uid
	inode.Gid = n.gid
	inode.Atime = n.atime
	inode.Mtime = n.mtime
	inode.Ctime = n.ctime
	n.mu.RUnlock()

	return inode, nil
}

// Discard frees an inode that was allocated but never linked.
func (r *inodeRepository) Discard(ino int64) {
	s := r.store

	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.nodes[ino]; ok {
		s.maybeFreeLocked(n)
	}
}

func (r *inodeRepository) SetMode(ino int64, mode uint32) error {
	n, ok := r.store.lookupNode(ino)
	if !ok {
		return kerrors.ErrNotFound
	}

	n.mu.Lock()
	n.mode = mode & models.S_IALLUGO
	n.ctime = r.store.now()
	n.mu.Unlock()

	return nil
}

// SetOwner changes the owner and group. A nil argument leaves that id as is.
func (r *inodeRepository) SetOwner(ino int64, uid, gid *uint32) error {
	n, ok := r.store.lookupNode(ino)
	if !ok {
		return kerrors.ErrNotFound
	}

	n.mu.Lock()
	if uid != nil {
		n.uid = *uid
	}
	if gid != nil {
		n.gid = *gid
	}
	n.ctime = r.store.now()
	n.mu.Unlock()

	return nil
}

func (r *inodeRepository) SetTimes(ino int64, atime, mtime *time.Time) error {
	n, ok := r.store.lookupNode(ino)
	if !ok {
		return kerrors.ErrNotFound
	}

	n.mu.Lock()
	if atime != nil {
		n.atime = *atime
	}
	if mtime != nil {
		n.mtime = *mtime
	}
	n.ctime = r.store.now()
	n.mu.Unlock()

	return nil
}

// Pin records an open handle on ino, keeping it alive after unlink.
func (r *inodeRepository) Pin(ino int64) error {
	s := r.store

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[ino]
	if !ok {
		return kerrors.ErrNotFound
	}
	n.opens++

	return nil
}

// Unpin drops an open handle and frees the inode if it was the last holder.
func (r *inodeRepository) Unpin(ino int64) (bool, error) {
	s := r.store

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[ino]
	if !ok {
		return false, kerrors.ErrNotFound
	}

	n.opens--
	if n.opens < 0 {
		panic("memfs: negative open count")
	}

	return s.maybeFreeLocked(n), nil
}

func (r *inodeRepository) IsDir(ino int64) (bool, error) {
	n, ok := r.store.lookupNode(ino)
	if !ok {
		return false, kerrors.ErrNotFound
	}
	return n.kind == models.NodeTypeDir, nil
}

func (r *inodeRepository) IsFile(ino int64) (bool, error) {
	n, ok := r.store.lookupNode(ino)
	if !ok {
		return false, kerrors.ErrNotFound
	}
	return n.kind == models.NodeTypeFile, nil
}
