package config

import (
	"fmt"
	"strconv"
)

type FilesystemConfig struct {
	// RootMode is an octal permission string such as "0755".
	RootMode string `yaml:"root_mode" env:"MEMFS_ROOT_MODE" env-default:"0777"`
	RootUid  uint32 `yaml:"root_uid"`
	RootGid  uint32 `yaml:"root_gid"`

	// Zero disables the limit.
	MaxInodes int `yaml:"max_inodes" env:"MEMFS_MAX_INODES"`
	// Zero selects the 1 GiB ceiling, which also caps larger values.
	MaxFileSize int64 `yaml:"max_file_size" env:"MEMFS_MAX_FILE_SIZE"`
}

func (c FilesystemConfig) Mode() (uint32, error) {
	mode, err := strconv.ParseUint(c.RootMode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid root_mode %q: %w", c.RootMode, err)
	}
	if mode > 0o7777 {
		return 0, fmt.Errorf("invalid root_mode %q: out of range", c.RootMode)
	}
	return uint32(mode), nil
}
