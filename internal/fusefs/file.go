package fusefs

import (
	"context"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// handle is the kernel's view of an engine open handle.
type handle struct {
	fs  *filesystem
	id  uint64
	ino int64
}

var (
	_ gofuse.FileReader    = (*handle)(nil)
	_ gofuse.FileWriter    = (*handle)(nil)
	_ gofuse.FileFlusher   = (*handle)(nil)
	_ gofuse.FileFsyncer   = (*handle)(nil)
	_ gofuse.FileReleaser  = (*handle)(nil)
	_ gofuse.FileGetattrer = (*handle)(nil)
)

func (h *handle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := h.fs.svc.Read(h.fs.request(ctx), h.id, off, int64(len(dest)))
	if err != nil {
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(data), 0
}

func (h *handle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := h.fs.svc.Write(h.fs.request(ctx), h.id, off, data)
	if err != nil {
		return 0, toErrno(err)
	}
	return uint32(n), 0
}

// Flush and Fsync have nothing to persist.
func (h *handle) Flush(ctx context.Context) syscall.Errno {
	return 0
}

func (h *handle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return 0
}

func (h *handle) Release(ctx context.Context) syscall.Errno {
	return toErrno(h.fs.svc.Release(h.fs.request(ctx), h.id))
}

func (h *handle) Getattr(ctx context.Context, out *fuse.AttrOut) syscall.Errno {
	inode, err := h.fs.svc.GetAttr(h.fs.request(ctx), h.ino)
	if err != nil {
		return toErrno(err)
	}
	fillAttr(inode, &out.Attr)
	return 0
}
