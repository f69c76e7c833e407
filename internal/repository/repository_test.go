package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *Store
	fs      FilesystemRepository
	inodes  InodeRepository
	dirs    DirectoryRepository
	content ContentRepository
}

func newFixture(t *testing.T, limits Limits) *fixture {
	t.Helper()

	store := NewStore(limits)
	store.now = fakeClock()
	f := &fixture{
		store:   store,
		fs:      NewFilesystemRepository(store),
		inodes:  NewInodeRepository(store),
		dirs:    NewDirectoryRepository(store),
		content: NewContentRepository(store),
	}
	require.NoError(t, f.fs.Create(VTFS_ROOT_MODE, 0, 0))

	return f
}

func (f *fixture) add(t *testing.T, parent int64, name string, kind models.NodeType) int64 {
	t.Helper()

	ino, err := f.inodes.Allocate(kind, 0o755, 0, 0)
	require.NoError(t, err)
	require.NoError(t, f.dirs.Insert(parent, name, ino))

	return ino
}

func (f *fixture) mkdir(t *testing.T, parent int64, name string) int64 {
	return f.add(t, parent, name, models.NodeTypeDir)
}

func (f *fixture) mkfile(t *testing.T, parent int64, name string) int64 {
	return f.add(t, parent, name, models.NodeTypeFile)
}

func (f *fixture) names(t *testing.T, dir int64) []string {
	t.Helper()

	entries, err := f.dirs.List(dir)
	require.NoError(t, err)

	var out []string
	for e := range entries {
		out = append(out, e.Name)
	}
	return out
}

// fakeClock returns a clock that advances one second per call.
func fakeClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}
