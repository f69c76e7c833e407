package repository

import (
	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/pkg/kerrors"
)

const (
	VTFS_ROOT_INO  = models.RootIno
	VTFS_ROOT_MODE = 0777
)

type FilesystemRepository interface {
	Create(mode uint32, uid, gid uint32) error
	Destroy() int
	Stats() *models.StatFS
}

type filesystemRepository struct {
	store *Store
}

func NewFilesystemRepository(store *Store) FilesystemRepository {
	return &filesystemRepository{store: store}
}

// Create installs the root directory. The root holds a permanent reference to
// itself, so it is never freed while mounted.
func (r *filesystemRepository) Create(mode uint32, uid, gid uint32) error {
	s := r.store

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[VTFS_ROOT_INO]; ok {
		return kerrors.New(kerrors.ErrAlreadyExists, "filesystem already exists")
	}
	if s.limits.MaxInodes > 0 && len(s.nodes) >= s.limits.MaxInodes {
		return kerrors.ErrResourceExhausted
	}

	root := newNode(VTFS_ROOT_INO, models.NodeTypeDir, mode, uid, gid, s.now())
	root.dir.parent = VTFS_ROOT_INO
	root.refs = 1
	s.nodes[VTFS_ROOT_INO] = root
	s.nextIno = VTFS_ROOT_INO + 1

	return nil
}

// Destroy drops every inode and returns how many were live.
func (r *filesystemRepository) Destroy() int {
	s := r.store

	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.nodes)
	s.nodes = make(map[int64]*node)
	s.nextIno = VTFS_ROOT_INO + 1
	return n
}

func (r *filesystemRepository) Stats() *models.StatFS {
	s := r.store

	s.mu.RLock()
	nodes := make([]*node, 0, len(s.nodes))
	var opens int64
	for _, n := range s.nodes {
		nodes = append(nodes, n)
		opens += int64(n.opens)
	}
	s.mu.RUnlock()

	var bytes int64
	for _, n := range nodes {
		if n.kind != models.NodeTypeFile {
			continue
		}
		n.file.mu.RLock()
		bytes += int64(len(n.file.data))
		n.file.mu.RUnlock()
	}

	return &models.StatFS{
		Inodes:     int64(len(nodes)),
		MaxInodes:  int64(s.limits.MaxInodes),
		Bytes:      bytes,
		MaxFile:    s.limits.MaxFileSize,
		OpenHandle: opens,
	}
}
