package repository

import (
	"sync"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/pkg/kerrors"
)

type HandleRepository interface {
	Create(ino int64, flags models.OpenFlags) *models.Handle
	Get(id uint64) (*models.Handle, error)
	Delete(id uint64) (*models.Handle, error)
	DeleteAll() []models.Handle
}

type handleRepository struct {
	mu      sync.RWMutex
	nextID  uint64
	handles map[uint64]models.Handle
}

func NewHandleRepository() HandleRepository {
	return &handleRepository{
		nextID:  1,
		handles: make(map[uint64]models.Handle),
	}
}

func (r *handleRepository) Create(ino int64, flags models.OpenFlags) *models.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := models.Handle{ID: r.nextID, Ino: ino, Flags: flags}
	r.nextID++
	r.handles[h.ID] = h

	return &h
}

func (r *handleRepository) Get(id uint64) (*models.Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handles[id]
	if !ok {
		return nil, kerrors.ErrBadHandle
	}
	return &h, nil
}

func (r *handleRepository) Delete(id uint64) (*models.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[id]
	if !ok {
		return nil, kerrors.ErrBadHandle
	}
	delete(r.handles, id)

	return &h, nil
}

// DeleteAll drops every handle and returns what was open. Ids keep
// increasing across calls.
func (r *handleRepository) DeleteAll() []models.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	r.handles = make(map[uint64]models.Handle)

	return out
}
