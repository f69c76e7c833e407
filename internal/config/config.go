package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Filesystem FilesystemConfig `yaml:"filesystem"`
	Fuse       FuseConfig       `yaml:"fuse"`
	Logging    LoggingConfig    `yaml:"logging"`
}

func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from config file: %s", configPath)
	}

	// Enrich with env variables
	data = expandEnvVars(data)

	// Serialize to struct
	var cfg Config
	if err := cleanenv.ParseYAML(bytes.NewReader(data), &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}

	// Explicit env variables win over the file, then defaults fill the gaps
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read env: %w", err)
	}

	if _, err := cfg.Filesystem.Mode(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
