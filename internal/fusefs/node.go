package fusefs

import (
	"context"
	"log/slog"
	"syscall"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/service"
	"github.com/S1riyS/os-course-lab-4/memfs/pkg/logging"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// node is a kernel-visible inode backed by an engine inode number. Files and
// directories share the type; the engine rejects operations of the wrong kind.
type node struct {
	gofuse.Inode

	fs  *filesystem
	ino int64
}

// filesystem is the state shared by every node of one mount.
type filesystem struct {
	svc    service.FileSystemService
	logger *slog.Logger
}

// request tags a kernel request with the mount's logger and a fresh request id.
func (f *filesystem) request(ctx context.Context) context.Context {
	ctx = logging.MakeContextWithLogger(ctx, f.logger)
	return logging.MakeContextWithNewRequestID(ctx)
}

var (
	_ gofuse.NodeLookuper  = (*node)(nil)
	_ gofuse.NodeGetattrer = (*node)(nil)
	_ gofuse.NodeSetattrer = (*node)(nil)
	_ gofuse.NodeReaddirer = (*node)(nil)
	_ gofuse.NodeMkdirer   = (*node)(nil)
	_ gofuse.NodeCreater   = (*node)(nil)
	_ gofuse.NodeOpener    = (*node)(nil)
	_ gofuse.NodeUnlinker  = (*node)(nil)
	_ gofuse.NodeRmdirer   = (*node)(nil)
	_ gofuse.NodeRenamer   = (*node)(nil)
	_ gofuse.NodeStatfser  = (*node)(nil)
)

func (n *node) child(ctx context.Context, inode *models.Inode, out *fuse.EntryOut) *gofuse.Inode {
	fillAttr(inode, &out.Attr)
	return n.NewInode(ctx, &node{fs: n.fs, ino: inode.Ino}, gofuse.StableAttr{
		Mode: stableMode(inode.Type),
		Ino:  uint64(inode.Ino),
	})
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	inode, err := n.fs.svc.Lookup(n.fs.request(ctx), callerFromContext(ctx), n.ino, name)
	if err != nil {
		return nil, toErrno(err)
	}
	return n.child(ctx, inode, out), 0
}

func (n *node) Getattr(ctx context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	inode, err := n.fs.svc.GetAttr(n.fs.request(ctx), n.ino)
	if err != nil {
		return toErrno(err)
	}
	fillAttr(inode, &out.Attr)
	return 0
}

// Setattr applies the changes in the order size, mode, owner, times and
// stops at the first failure.
func (n *node) Setattr(ctx context.Context, _ gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	rctx := n.fs.request(ctx)
	caller := callerFromContext(ctx)

	if size, ok := in.GetSize(); ok {
		if err := n.fs.svc.Truncate(rctx, caller, n.ino, int64(size)); err != nil {
			return toErrno(err)
		}
	}
	if mode, ok := in.GetMode(); ok {
		if err := n.fs.svc.Chmod(rctx, caller, n.ino, mode&models.S_IALLUGO); err != nil {
			return toErrno(err)
		}
	}

	uid, uidOK := in.GetUID()
	gid, gidOK := in.GetGID()
	if uidOK || gidOK {
		if err := n.fs.svc.Chown(rctx, caller, n.ino, uint32Ptr(uid, uidOK), uint32Ptr(gid, gidOK)); err != nil {
			return toErrno(err)
		}
	}

	atime, atimeOK := in.GetATime()
	mtime, mtimeOK := in.GetMTime()
	if atimeOK || mtimeOK {
		if err := n.fs.svc.SetTimes(rctx, caller, n.ino, timePtr(atime, atimeOK), timePtr(mtime, mtimeOK)); err != nil {
			return toErrno(err)
		}
	}

	inode, err := n.fs.svc.GetAttr(rctx, n.ino)
	if err != nil {
		return toErrno(err)
	}
	fillAttr(inode, &out.Attr)
	return 0
}

func (n *node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	entries, err := n.fs.svc.ReadDir(n.fs.request(ctx), callerFromContext(ctx), n.ino)
	if err != nil {
		return nil, toErrno(err)
	}

	// The bridge emits "." and ".." itself.
	var list []fuse.DirEntry
	for e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		list = append(list, fuse.DirEntry{
			Name: e.Name,
			Ino:  uint64(e.Ino),
			Mode: stableMode(e.Type),
		})
	}
	return gofuse.NewListDirStream(list), 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	inode, err := n.fs.svc.Mkdir(n.fs.request(ctx), callerFromContext(ctx), n.ino, name, mode&models.S_IALLUGO)
	if err != nil {
		return nil, toErrno(err)
	}
	return n.child(ctx, inode, out), 0
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	inode, h, err := n.fs.svc.Create(
		n.fs.request(ctx), callerFromContext(ctx), n.ino, name, mode&models.S_IALLUGO, models.OpenFlagsFromPOSIX(flags),
	)
	if err != nil {
		return nil, nil, 0, toErrno(err)
	}
	return n.child(ctx, inode, out), &handle{fs: n.fs, id: h.ID, ino: inode.Ino}, fuse.FOPEN_DIRECT_IO, 0
}

// Open bypasses the page cache so that writes made over HTTP are seen by
// readers of the mount.
func (n *node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	h, err := n.fs.svc.Open(n.fs.request(ctx), callerFromContext(ctx), n.ino, models.OpenFlagsFromPOSIX(flags))
	if err != nil {
		return nil, 0, toErrno(err)
	}
	return &handle{fs: n.fs, id: h.ID, ino: n.ino}, fuse.FOPEN_DIRECT_IO, 0
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	return toErrno(n.fs.svc.Unlink(n.fs.request(ctx), callerFromContext(ctx), n.ino, name))
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return toErrno(n.fs.svc.Rmdir(n.fs.request(ctx), callerFromContext(ctx), n.ino, name))
}

func (n *node) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	// RENAME_EXCHANGE and RENAME_NOREPLACE are not supported.
	if flags != 0 {
		return syscall.EINVAL
	}
	target, ok := newParent.(*node)
	if !ok {
		return syscall.EXDEV
	}
	return toErrno(n.fs.svc.Rename(n.fs.request(ctx), callerFromContext(ctx), n.ino, name, target.ino, newName))
}

func (n *node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	stats, err := n.fs.svc.StatFS(n.fs.request(ctx))
	if err != nil {
		return toErrno(err)
	}
	fillStatfs(stats, out)
	return 0
}
