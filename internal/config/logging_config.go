package config

type LoggingConfig struct {
	Level  string `yaml:"level" env:"MEMFS_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"MEMFS_LOG_FORMAT" env-default:"pretty"` // pretty | json
}
