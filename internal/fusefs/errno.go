package fusefs

import (
	"context"
	"syscall"
	"time"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/pkg/kerrors"
	"github.com/hanwen/go-fuse/v2/fuse"
)

const blockSize = 4096

func toErrno(err error) syscall.Errno {
	return syscall.Errno(kerrors.CodeOf(err))
}

// callerFromContext returns the identity of the process behind a kernel
// request. Requests without one, such as those issued by tests, run as the
// superuser.
func callerFromContext(ctx context.Context) models.Caller {
	c, ok := fuse.FromContext(ctx)
	if !ok || c == nil {
		return models.Superuser
	}
	return models.Caller{Uid: c.Uid, Gid: c.Gid}
}

func fillAttr(inode *models.Inode, out *fuse.Attr) {
	out.Ino = uint64(inode.Ino)
	out.Mode = inode.FullMode()
	out.Size = uint64(inode.Size)
	out.Blocks = (out.Size + 511) / 512
	out.Blksize = blockSize
	out.Nlink = inode.Nlink
	out.Owner = fuse.Owner{Uid: inode.Uid, Gid: inode.Gid}
	out.SetTimes(&inode.Atime, &inode.Mtime, &inode.Ctime)
}

func stableMode(t models.NodeType) uint32 {
	if t == models.NodeTypeDir {
		return syscall.S_IFDIR
	}
	return syscall.S_IFREG
}

// fillStatfs reports the inode and byte usage. An unlimited inode table is
// reported as fully free with the current count doubled.
func fillStatfs(stats *models.StatFS, out *fuse.StatfsOut) {
	files := uint64(stats.MaxInodes)
	if stats.MaxInodes <= 0 {
		files = uint64(stats.Inodes) * 2
	}

	used := uint64(stats.Bytes+blockSize-1) / blockSize
	total := used * 2
	if stats.MaxFile > 0 && stats.MaxInodes > 0 {
		total = max(uint64(stats.MaxFile/blockSize)*uint64(stats.MaxInodes), used)
	}

	out.Bsize = blockSize
	out.Frsize = blockSize
	out.NameLen = models.MaxNameLen
	out.Blocks = total
	out.Bfree = total - used
	out.Bavail = total - used
	out.Files = files
	out.Ffree = files - uint64(stats.Inodes)
}

func timePtr(t time.Time, ok bool) *time.Time {
	if !ok {
		return nil
	}
	return &t
}

func uint32Ptr(v uint32, ok bool) *uint32 {
	if !ok {
		return nil
	}
	return &v
}
