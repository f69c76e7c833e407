package kerrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesSentinelNotErrno(t *testing.T) {
	assert.Equal(t, ErrIsADirectory.Code, ErrNotAFile.Code)

	assert.True(t, errors.Is(ErrIsADirectory, ErrIsADirectory))
	assert.False(t, errors.Is(ErrNotAFile, ErrIsADirectory))
	assert.False(t, errors.Is(ErrIsADirectory, ErrNotAFile))
}

func TestNewKeepsSentinel(t *testing.T) {
	err := New(ErrNotAFile, "ino 1000 is a directory")
	wrapped := fmt.Errorf("service.Truncate: %w", New(err, "more detail"))

	assert.ErrorIs(t, wrapped, ErrNotAFile)
	assert.NotErrorIs(t, wrapped, ErrIsADirectory)
	assert.Equal(t, EISDIR, CodeOf(wrapped))
	assert.Equal(t, "more detail", New(err, "more detail").Error())
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want int64
	}{
		{nil, 0},
		{ErrNotFound, ENOENT},
		{fmt.Errorf("op: %w", ErrBadHandle), EBADF},
		{context.DeadlineExceeded, EINTR},
		{errors.New("boom"), ENOMEM},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CodeOf(tt.err), "%v", tt.err)
	}
}
