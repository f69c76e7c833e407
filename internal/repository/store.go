package repository

import (
	"fmt"
	"sync"
	"time"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/google/btree"
)

// MaxFileSizeCeiling is the largest file a Store will hold. It applies when
// Limits.MaxFileSize is zero or larger. File content is one contiguous
// allocation, so a sparse write far past the end must fail instead of
// reaching make.
const MaxFileSizeCeiling int64 = 1 << 30

// Limits bounds the resources a Store may hand out. A zero MaxInodes means
// unlimited; a zero MaxFileSize means MaxFileSizeCeiling.
type Limits struct {
	MaxInodes   int
	MaxFileSize int64
}

// Store is the process-wide inode table shared by every repository.
//
// Lock order, outermost first: renameMu, directory locks (ancestor before
// descendant), mu, file content locks, inode attribute locks.
type Store struct {
	renameMu sync.Mutex

	mu sync.RWMutex

	// INVARIANT: every key k satisfies nodes[k].ino == k
	// INVARIANT: for every live directory d, every entry of d is a key
	nodes   map[int64]*node // GUARDED_BY(mu)
	nextIno int64           // GUARDED_BY(mu)

	limits Limits
	now    func() time.Time
}

func NewStore(limits Limits) *Store {
	if limits.MaxFileSize <= 0 || limits.MaxFileSize > MaxFileSizeCeiling {
		limits.MaxFileSize = MaxFileSizeCeiling
	}

	return &Store{
		nodes:   make(map[int64]*node),
		nextIno: models.RootIno + 1,
		limits:  limits,
		now:     time.Now,
	}
}

// node is a single inode. Outside this package inodes are addressed by id only.
type node struct {
	ino  int64
	kind models.NodeType

	// Directory references and open handles. Guarded by Store.mu.
	refs  int
	opens int

	mu    sync.RWMutex
	mode  uint32
	uid   uint32
	gid   uint32
	atime time.Time
	mtime time.Time
	ctime time.Time

	dir  *directory // kind == NodeTypeDir
	file *content   // kind == NodeTypeFile
}

type directory struct {
	mu sync.RWMutex

	// parent is the id of the containing directory; the root points to itself.
	parent  int64
	entries *btree.BTreeG[models.Dirent]
	subdirs int

	// removed is set by rmdir so that racing inserts fail.
	removed bool
}

type content struct {
	mu   sync.RWMutex
	data []byte
}

const btreeDegree = 16

func direntLess(a, b models.Dirent) bool {
	return a.Name < b.Name
}

func newNode(ino int64, kind models.NodeType, mode, uid, gid uint32, now time.Time) *node {
	n := &node{
		ino:   ino,
		kind:  kind,
		mode:  mode & models.S_IALLUGO,
		uid:   uid,
		gid:   gid,
		atime: now,
		mtime: now,
		ctime: now,
	}

	switch kind {
	case models.NodeTypeDir:
		n.dir = &directory{entries: btree.NewG(btreeDegree, direntLess)}
	case models.NodeTypeFile:
		n.file = &content{}
	default:
		panic(fmt.Sprintf("memfs: unknown node type %d", kind))
	}

	return n
}

func (s *Store) lookupNode(ino int64) (*node, bool) {
	s.mu.RLock()
	n, ok := s.nodes[ino]
	s.mu.RUnlock()
	return n, ok
}

// mustNode returns a node that the caller knows to be referenced. A miss is an
// engine bug, not a routine outcome.
func (s *Store) mustNode(ino int64) *node {
	n, ok := s.lookupNode(ino)
	if !ok {
		panic(fmt.Sprintf("memfs: dangling reference to inode %d", ino))
	}
	return n
}

// link adds a directory reference to n.
func (s *Store) link(n *node) {
	s.mu.Lock()
	n.refs++
	s.mu.Unlock()
}

// unlink drops a directory reference and frees n when nothing holds it.
func (s *Store) unlink(n *node) (freed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.refs--
	if n.refs < 0 {
		panic(fmt.Sprintf("memfs: negative link count on inode %d", n.ino))
	}
	return s.maybeFreeLocked(n)
}

func (s *Store) maybeFreeLocked(n *node) bool {
	if n.refs > 0 || n.opens > 0 {
		return false
	}
	delete(s.nodes, n.ino)
	return true
}

func (n *node) touchModified(now time.Time) {
	n.mu.Lock()
	n.mtime = now
	n.ctime = now
	n.mu.Unlock()
}
