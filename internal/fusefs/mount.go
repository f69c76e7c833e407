// Package fusefs exposes a mounted engine through the kernel FUSE interface.
package fusefs

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/service"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is created if it does not exist.
	Mountpoint string

	// AllowOther requires user_allow_other in /etc/fuse.conf.
	AllowOther bool
	Debug      bool

	EntryTimeout time.Duration
	AttrTimeout  time.Duration

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Mount serves svc at the configured mountpoint. svc must already be
// mounted. The caller must call Unmount on the returned Server when done.
func Mount(svc service.FileSystemService, options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &node{
		fs:  &filesystem{svc: svc, logger: options.Logger},
		ino: models.RootIno,
	}

	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &options.EntryTimeout,
		AttrTimeout:     &options.AttrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "memfs",
			Name:       "memfs",
			AllowOther: options.AllowOther,
			Debug:      options.Debug,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("FUSE filesystem mounted", slog.String("mountpoint", options.Mountpoint))
	return server, nil
}
