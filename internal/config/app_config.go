package config

import (
	"time"
)

type AppConfig struct {
	Port            int           `yaml:"port" env:"MEMFS_PORT" env-default:"8080"`
	DefaultTimeout  time.Duration `yaml:"default_timeout" env-default:"5s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`

	// Identity assumed for HTTP requests that do not pass uid/gid.
	DefaultUid uint32 `yaml:"default_uid"`
	DefaultGid uint32 `yaml:"default_gid"`
}
