package kerrors

import (
	"context"
	"errors"
)

// Коды ошибок ядра Linux
const (
	EPERM        int64 = 1   // Operation not permitted
	ENOENT       int64 = 2   // No such file or directory
	EINTR        int64 = 4   // Interrupted system call
	EIO          int64 = 5   // I/O error
	EBADF        int64 = 9   // Bad file descriptor
	ENOMEM       int64 = 12  // Out of memory
	EACCES       int64 = 13  // Permission denied
	EEXIST       int64 = 17  // File exists
	ENOTDIR      int64 = 20  // Not a directory
	EISDIR       int64 = 21  // Is a directory
	EINVAL       int64 = 22  // Invalid argument
	EFBIG        int64 = 27  // File too large
	ENOSPC       int64 = 28  // No space left on device
	ENAMETOOLONG int64 = 36  // File name too long
	ENOTEMPTY    int64 = 39  // Directory not empty
	ENOTCONN     int64 = 107 // Transport endpoint is not connected

	ENOMEM_NEG int64 = -ENOMEM // Out of memory (negative)
	EINVAL_NEG int64 = -EINVAL // Invalid argument (negative)
)

// Error is an expected filesystem outcome carrying a kernel errno.
type Error struct {
	Code    int64
	Message string

	// base is the sentinel an error made by New derives from.
	base *Error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) GetCode() int64 {
	return e.Code
}

// Is reports whether e and target derive from the same sentinel. Sentinels
// may share an errno (ErrIsADirectory and ErrNotAFile are both EISDIR) and
// still do not match each other; use CodeOf to compare by errno.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.sentinel() == t.sentinel()
}

func (e *Error) sentinel() *Error {
	if e.base != nil {
		return e.base
	}
	return e
}

var (
	ErrNotFound          = &Error{Code: ENOENT, Message: "no such file or directory"}
	ErrAlreadyExists     = &Error{Code: EEXIST, Message: "file exists"}
	ErrNotADirectory     = &Error{Code: ENOTDIR, Message: "not a directory"}
	ErrIsADirectory      = &Error{Code: EISDIR, Message: "is a directory"}
	ErrNotAFile          = &Error{Code: EISDIR, Message: "not a regular file"}
	ErrDirectoryNotEmpty = &Error{Code: ENOTEMPTY, Message: "directory not empty"}
	ErrPermissionDenied  = &Error{Code: EACCES, Message: "permission denied"}
	ErrNotPermitted      = &Error{Code: EPERM, Message: "operation not permitted"}
	ErrInvalidArgument   = &Error{Code: EINVAL, Message: "invalid argument"}
	ErrResourceExhausted = &Error{Code: ENOSPC, Message: "no inodes left"}
	ErrBadHandle         = &Error{Code: EBADF, Message: "bad file handle"}
	ErrNameTooLong       = &Error{Code: ENAMETOOLONG, Message: "file name too long"}
	ErrFileTooLarge      = &Error{Code: EFBIG, Message: "file too large"}
	ErrNotMounted        = &Error{Code: ENOTCONN, Message: "filesystem is not mounted"}
	ErrInterrupted       = &Error{Code: EINTR, Message: "operation interrupted"}
)

// New returns an error with the code of base and a more specific message.
func New(base *Error, message string) *Error {
	return &Error{Code: base.Code, Message: message, base: base.sentinel()}
}

// CodeOf maps err to a positive errno. Zero means success.
func CodeOf(err error) int64 {
	if err == nil {
		return 0
	}

	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return EINTR
	}
	// По умолчанию возвращаем ENOMEM
	return ENOMEM
}
