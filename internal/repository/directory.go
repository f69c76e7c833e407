package repository

import (
	"iter"
	"slices"
	"strings"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/pkg/kerrors"
)

type DirectoryRepository interface {
	Lookup(parentIno int64, name string) (int64, error)
	Insert(parentIno int64, name string, ino int64) error
	Remove(parentIno int64, name string, expect models.NodeType) (int64, error)
	List(dirIno int64) (iter.Seq[models.Dirent], error)
	Parent(dirIno int64) (int64, error)
	Rename(oldParentIno int64, oldName string, newParentIno int64, newName string) error
}

type directoryRepository struct {
	store *Store
}

func NewDirectoryRepository(store *Store) DirectoryRepository {
	return &directoryRepository{store: store}
}

// ValidateName checks a name that is about to be bound or unbound.
func ValidateName(name string) error {
	switch {
	case name == "":
		return kerrors.New(kerrors.ErrInvalidArgument, "empty name")
	case name == "." || name == "..":
		return kerrors.New(kerrors.ErrInvalidArgument, "reserved name")
	case len(name) > models.MaxNameLen:
		return kerrors.ErrNameTooLong
	case strings.ContainsAny(name, "/\x00"):
		return kerrors.New(kerrors.ErrInvalidArgument, "name contains a path separator")
	}
	return nil
}

func (r *directoryRepository) dirNode(ino int64) (*node, error) {
	n, ok := r.store.lookupNode(ino)
	if !ok {
		return nil, kerrors.ErrNotFound
	}
	if n.kind != models.NodeTypeDir {
		return nil, kerrors.ErrNotADirectory
	}
	return n, nil
}

func (r *directoryRepository) Lookup(parentIno int64, name string) (int64, error) {
	p, err := r.dirNode(parentIno)
	if err != nil {
		return 0, err
	}

	if name == "." {
		return parentIno, nil
	}

	p.dir.mu.RLock()
	defer p.dir.mu.RUnlock()

	if name == ".." {
		return p.dir.parent, nil
	}
	if p.dir.removed {
		return 0, kerrors.ErrNotFound
	}

	e, ok := p.dir.entries.Get(models.Dirent{Name: name})
	if !ok {
		return 0, kerrors.ErrNotFound
	}

	// Entries are removed under this lock before their inode can be freed.
	r.store.mustNode(e.Ino)

	return e.Ino, nil
}

// Insert binds name to ino inside parentIno. This is the only way a name
// becomes resolvable.
func (r *directoryRepository) Insert(parentIno int64, name string, ino int64) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	p, err := r.dirNode(parentIno)
	if err != nil {
		return err
	}
	child := r.store.mustNode(ino)

	p.dir.mu.Lock()
	defer p.dir.mu.Unlock()

	if p.dir.removed {
		return kerrors.ErrNotFound
	}
	if p.dir.entries.Has(models.Dirent{Name: name}) {
		return kerrors.ErrAlreadyExists
	}

	if child.kind == models.NodeTypeDir {
		child.dir.mu.Lock()
		child.dir.parent = parentIno
		child.dir.mu.Unlock()
		p.dir.subdirs++
	}

	r.store.link(child)
	p.dir.entries.ReplaceOrInsert(models.Dirent{Name: name, Ino: ino, Type: child.kind})
	p.touchModified(r.store.now())

	return nil
}

// Remove unbinds name from parentIno. A directory must be empty. The inode is
// freed once it has no references and no open handles.
func (r *directoryRepository) Remove(parentIno int64, name string, expect models.NodeType) (int64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}

	p, err := r.dirNode(parentIno)
	if err != nil {
		return 0, err
	}

	p.dir.mu.Lock()
	defer p.dir.mu.Unlock()

	e, ok := p.dir.entries.Get(models.Dirent{Name: name})
	if !ok {
		return 0, kerrors.ErrNotFound
	}

	switch {
	case expect == models.NodeTypeFile && e.Type == models.NodeTypeDir:
		return 0, kerrors.ErrIsADirectory
	case expect == models.NodeTypeDir && e.Type != models.NodeTypeDir:
		return 0, kerrors.ErrNotADirectory
	}

	child := r.store.mustNode(e.Ino)

	if child.kind == models.NodeTypeDir {
		child.dir.mu.Lock()
		if child.dir.entries.Len() > 0 {
			child.dir.mu.Unlock()
			return 0, kerrors.ErrDirectoryNotEmpty
		}
		child.dir.removed = true
		child.dir.mu.Unlock()
		p.dir.subdirs--
	}

	p.dir.entries.Delete(e)
	r.store.unlink(child)

	now := r.store.now()
	p.touchModified(now)
	child.mu.Lock()
	child.ctime = now
	child.mu.Unlock()

	return e.Ino, nil
}

// List returns the entries of dirIno as they were when List was called,
// starting with "." and "..".
func (r *directoryRepository) List(dirIno int64) (iter.Seq[models.Dirent], error) {
	n, err := r.dirNode(dirIno)
	if err != nil {
		return nil, err
	}

	n.dir.mu.RLock()
	entries := make([]models.Dirent, 0, n.dir.entries.Len()+2)
	entries = append(entries,
		models.Dirent{Name: ".", Ino: dirIno, Type: models.NodeTypeDir},
		models.Dirent{Name: "..", Ino: n.dir.parent, Type: models.NodeTypeDir},
	)
	n.dir.entries.Ascend(func(e models.Dirent) bool {
		entries = append(entries, e)
		return true
	})
	n.dir.mu.RUnlock()

	n.mu.Lock()
	n.atime = r.store.now()
	n.mu.Unlock()

	return slices.Values(entries), nil
}

func (r *directoryRepository) Parent(dirIno int64) (int64, error) {
	n, err := r.dirNode(dirIno)
	if err != nil {
		return 0, err
	}

	n.dir.mu.RLock()
	defer n.dir.mu.RUnlock()

	return n.dir.parent, nil
}
