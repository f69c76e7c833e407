package repository

import (
	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/pkg/kerrors"
)

type ContentRepository interface {
	GetRange(ino int64, offset int64, length int64) ([]byte, error)
	Write(ino int64, offset int64, data []byte, appendMode bool) (int64, error)
	Truncate(ino int64, size int64) error
}

type contentRepository struct {
	store *Store
}

func NewContentRepository(store *Store) ContentRepository {
	return &contentRepository{store: store}
}

func (r *contentRepository) fileNode(ino int64) (*node, error) {
	n, ok := r.store.lookupNode(ino)
	if !ok {
		return nil, kerrors.ErrNotFound
	}
	if n.kind != models.NodeTypeFile {
		return nil, kerrors.ErrNotAFile
	}
	return n, nil
}

// GetRange copies up to length bytes starting at offset. Reading at or past
// the end of the file returns an empty slice.
func (r *contentRepository) GetRange(ino int64, offset int64, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, kerrors.New(kerrors.ErrInvalidArgument, "invalid offset")
	}

	n, err := r.fileNode(ino)
	if err != nil {
		return nil, err
	}

	n.file.mu.RLock()
	data := n.file.data
	dataLen := int64(len(data))

	var out []byte
	if offset >= dataLen {
		out = []byte{}
	} else {
		toRead := min(length, dataLen-offset)
		out = make([]byte, toRead)
		copy(out, data[offset:offset+toRead])
	}
	n.file.mu.RUnlock()

	n.mu.Lock()
	n.atime = r.store.now()
	n.mu.Unlock()

	return out, nil
}

// Write stores data at offset, zero-filling any gap past the current end.
// In append mode the offset is replaced by the size at the time the write
// acquires the file lock. The whole write is applied under one exclusive lock.
func (r *contentRepository) Write(ino int64, offset int64, data []byte, appendMode bool) (int64, error) {
	if offset < 0 {
		return 0, kerrors.New(kerrors.ErrInvalidArgument, "invalid offset")
	}

	n, err := r.fileNode(ino)
	if err != nil {
		return 0, err
	}

	n.file.mu.Lock()
	defer n.file.mu.Unlock()

	if appendMode {
		offset = int64(len(n.file.data))
	}

	end := offset + int64(len(data))
	if end < offset {
		return 0, kerrors.New(kerrors.ErrInvalidArgument, "write range overflows")
	}
	if err := r.checkSize(end); err != nil {
		return 0, err
	}

	if end > int64(len(n.file.data)) {
		n.file.resize(end)
	}
	copy(n.file.data[offset:end], data)

	n.touchModified(r.store.now())

	return int64(len(data)), nil
}

func (r *contentRepository) Truncate(ino int64, size int64) error {
	if size < 0 {
		return kerrors.New(kerrors.ErrInvalidArgument, "negative size")
	}

	n, err := r.fileNode(ino)
	if err != nil {
		return err
	}
	if err := r.checkSize(size); err != nil {
		return err
	}

	n.file.mu.Lock()
	n.file.resize(size)
	n.file.mu.Unlock()

	n.touchModified(r.store.now())

	return nil
}

func (r *contentRepository) checkSize(size int64) error {
	if size > r.store.limits.MaxFileSize {
		return kerrors.ErrFileTooLarge
	}
	return nil
}

// resize sets the length to size. Bytes between the old and new length read
// as zero. The caller holds c.mu.
func (c *content) resize(size int64) {
	oldLen := int64(len(c.data))

	switch {
	case size == 0:
		c.data = nil
	case size <= oldLen:
		c.data = c.data[:size]
	case size <= int64(cap(c.data)):
		c.data = c.data[:size]
		clear(c.data[oldLen:])
	default:
		grown := make([]byte, size, max(size, 2*int64(cap(c.data))))
		copy(grown, c.data)
		c.data = grown
	}
}
