package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/config"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/fusefs"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/handler"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/middleware"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/pkg/kerrors"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/repository"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/service"
	"github.com/S1riyS/os-course-lab-4/memfs/pkg/logging"
	"github.com/S1riyS/os-course-lab-4/memfs/pkg/logging/slogext"
	"github.com/S1riyS/os-course-lab-4/memfs/pkg/logging/slogpretty"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := pflag.String("config", "configs/config.yaml", "path to the YAML config file")
	mountpoint := pflag.String("mountpoint", "", "mount over FUSE at this directory (overrides the config)")
	port := pflag.Int("port", 0, "HTTP port (overrides the config)")
	pflag.Parse()

	cfg := config.MustLoad(*configPath)
	if *mountpoint != "" {
		cfg.Fuse.Enabled = true
		cfg.Fuse.Mountpoint = *mountpoint
	}
	if *port != 0 {
		cfg.App.Port = *port
	}

	logger := setupLogger(cfg.Logging)

	// Root context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.MakeContextWithLogger(ctx, logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", slogext.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	rootMode, err := cfg.Filesystem.Mode()
	if err != nil {
		return err
	}

	// Dependencies
	store := repository.NewStore(repository.Limits{
		MaxInodes:   cfg.Filesystem.MaxInodes,
		MaxFileSize: cfg.Filesystem.MaxFileSize,
	})
	svc := service.NewFileSystemService(
		repository.NewFilesystemRepository(store),
		repository.NewInodeRepository(store),
		repository.NewDirectoryRepository(store),
		repository.NewContentRepository(store),
		repository.NewHandleRepository(),
		service.RootOptions{
			Mode: rootMode,
			Uid:  cfg.Filesystem.RootUid,
			Gid:  cfg.Filesystem.RootGid,
		},
	)

	if err := svc.Mount(ctx); err != nil {
		return fmt.Errorf("mounting filesystem: %w", err)
	}

	// HTTP transport
	mux := http.NewServeMux()
	defaultCaller := models.Caller{Uid: cfg.App.DefaultUid, Gid: cfg.App.DefaultGid}
	handler.NewHandler(svc, defaultCaller).RegisterRoutes(mux)

	var h http.Handler = mux
	h = middleware.TimeoutMiddleware(cfg.App.DefaultTimeout)(h)
	h = middleware.AccessLogMiddleware(h)
	h = middleware.RequestIDMiddleware(h)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return logging.MakeContextWithLogger(context.Background(), logger)
		},
	}

	// FUSE transport
	var fuseServer *fuse.Server
	if cfg.Fuse.Enabled {
		fuseServer, err = fusefs.Mount(svc, fusefs.Options{
			Mountpoint:   cfg.Fuse.Mountpoint,
			AllowOther:   cfg.Fuse.AllowOther,
			Debug:        cfg.Fuse.Debug,
			EntryTimeout: cfg.Fuse.EntryTimeout,
			AttrTimeout:  cfg.Fuse.AttrTimeout,
			Logger:       logger,
		})
		if err != nil {
			_ = svc.Unmount(ctx)
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if fuseServer != nil {
		g.Go(func() error {
			fuseServer.Wait()
			if gctx.Err() == nil {
				return fmt.Errorf("FUSE filesystem at %s was unmounted externally", cfg.Fuse.Mountpoint)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		shutdownCtx = logging.MakeContextWithLogger(shutdownCtx, logger)

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if fuseServer != nil {
			if err := fuseServer.Unmount(); err != nil {
				errs = append(errs, fmt.Errorf("FUSE unmount: %w", err))
			}
		}
		// The engine may already have been unmounted over HTTP.
		if err := svc.Unmount(shutdownCtx); err != nil && !errors.Is(err, kerrors.ErrNotMounted) {
			errs = append(errs, fmt.Errorf("filesystem unmount: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := logging.ParseLevel(cfg.Level)

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return setupPrettySlog(level)
}

func setupPrettySlog(level slog.Level) *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: level,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
