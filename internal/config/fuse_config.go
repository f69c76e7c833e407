package config

import (
	"time"
)

type FuseConfig struct {
	Enabled      bool          `yaml:"enabled" env:"MEMFS_FUSE_ENABLED"`
	Mountpoint   string        `yaml:"mountpoint" env:"MEMFS_MOUNTPOINT"`
	AllowOther   bool          `yaml:"allow_other"`
	Debug        bool          `yaml:"debug"`
	EntryTimeout time.Duration `yaml:"entry_timeout" env-default:"1s"`
	AttrTimeout  time.Duration `yaml:"attr_timeout" env-default:"1s"`
}
