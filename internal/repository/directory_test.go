package repository

import (
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/pkg/kerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr error
	}{
		{"file.txt", nil},
		{"...", nil},
		{strings.Repeat("x", models.MaxNameLen), nil},
		{strings.Repeat("x", models.MaxNameLen+1), kerrors.ErrNameTooLong},
		{"", kerrors.ErrInvalidArgument},
		{".", kerrors.ErrInvalidArgument},
		{"..", kerrors.ErrInvalidArgument},
		{"a/b", kerrors.ErrInvalidArgument},
		{"nul\x00", kerrors.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.name)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestInsertAndLookup(t *testing.T) {
	f := newFixture(t, Limits{})

	dir := f.mkdir(t, VTFS_ROOT_INO, "d")
	file := f.mkfile(t, dir, "f")

	ino, err := f.dirs.Lookup(dir, "f")
	require.NoError(t, err)
	assert.Equal(t, file, ino)

	_, err = f.dirs.Lookup(dir, "missing")
	assert.ErrorIs(t, err, kerrors.ErrNotFound)

	_, err = f.dirs.Lookup(file, "x")
	assert.ErrorIs(t, err, kerrors.ErrNotADirectory)

	err = f.dirs.Insert(dir, "f", file)
	assert.ErrorIs(t, err, kerrors.ErrAlreadyExists)

	parent, err := f.dirs.Parent(dir)
	require.NoError(t, err)
	assert.Equal(t, VTFS_ROOT_INO, parent)
}

func TestListIsOrderedSnapshot(t *testing.T) {
	f := newFixture(t, Limits{})

	for _, name := range []string{"zeta", "alpha", "mid"} {
		f.mkfile(t, VTFS_ROOT_INO, name)
	}

	entries, err := f.dirs.List(VTFS_ROOT_INO)
	require.NoError(t, err)

	// Mutations after List do not show up in the returned sequence.
	f.mkfile(t, VTFS_ROOT_INO, "late")

	var got []string
	for e := range entries {
		got = append(got, e.Name)
	}
	assert.Equal(t, []string{".", "..", "alpha", "mid", "zeta"}, got)
}

func TestRemoveDirectory(t *testing.T) {
	f := newFixture(t, Limits{})

	dir := f.mkdir(t, VTFS_ROOT_INO, "d")
	f.mkfile(t, dir, "f")

	_, err := f.dirs.Remove(VTFS_ROOT_INO, "d", models.NodeTypeDir)
	assert.ErrorIs(t, err, kerrors.ErrDirectoryNotEmpty)

	_, err = f.dirs.Remove(dir, "f", models.NodeTypeFile)
	require.NoError(t, err)

	ino, err := f.dirs.Remove(VTFS_ROOT_INO, "d", models.NodeTypeDir)
	require.NoError(t, err)
	assert.Equal(t, dir, ino)

	_, err = f.inodes.Get(dir)
	assert.ErrorIs(t, err, kerrors.ErrNotFound)
	assert.Equal(t, []string{".", ".."}, f.names(t, VTFS_ROOT_INO))
}

func TestInsertIntoRemovedDirectory(t *testing.T) {
	f := newFixture(t, Limits{})

	dir := f.mkdir(t, VTFS_ROOT_INO, "d")
	require.NoError(t, f.inodes.Pin(dir))

	_, err := f.dirs.Remove(VTFS_ROOT_INO, "d", models.NodeTypeDir)
	require.NoError(t, err)

	child, err := f.inodes.Allocate(models.NodeTypeFile, 0o644, 0, 0)
	require.NoError(t, err)

	err = f.dirs.Insert(dir, "late", child)
	assert.ErrorIs(t, err, kerrors.ErrNotFound)
}

func TestConcurrentInsertsSameName(t *testing.T) {
	f := newFixture(t, Limits{})

	const workers = 16

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ino, err := f.inodes.Allocate(models.NodeTypeFile, 0o644, 0, 0)
			if err != nil {
				errs[i] = err
				return
			}
			if errs[i] = f.dirs.Insert(VTFS_ROOT_INO, "same", ino); errs[i] != nil {
				f.inodes.Discard(ino)
			}
		}()
	}
	wg.Wait()

	ok := slices.IndexFunc(errs, func(err error) bool { return err == nil })
	require.NotEqual(t, -1, ok)
	for i, err := range errs {
		if i != ok {
			assert.ErrorIs(t, err, kerrors.ErrAlreadyExists)
		}
	}

	assert.Equal(t, int64(2), f.fs.Stats().Inodes)
}

func TestTimestampsOnInsertAndList(t *testing.T) {
	f := newFixture(t, Limits{})

	before, err := f.inodes.Get(VTFS_ROOT_INO)
	require.NoError(t, err)

	f.mkfile(t, VTFS_ROOT_INO, "f")

	after, err := f.inodes.Get(VTFS_ROOT_INO)
	require.NoError(t, err)
	assert.True(t, after.Mtime.After(before.Mtime))
	assert.Equal(t, after.Mtime, after.Ctime)

	_, err = f.dirs.List(VTFS_ROOT_INO)
	require.NoError(t, err)

	listed, err := f.inodes.Get(VTFS_ROOT_INO)
	require.NoError(t, err)
	assert.True(t, listed.Atime.After(after.Mtime))
}
