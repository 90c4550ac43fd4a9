package internal

import (
	"fmt"
	"path/filepath"

	"github.com/hbomb79/Iris/internal/api"
	"github.com/hbomb79/Iris/internal/ffmpeg"
	"github.com/hbomb79/Iris/internal/media"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"
)

// IrisConfig is the struct used to contain the various user config
// supplied by file, or manually inside the code.
type IrisConfig struct {
	Format ffmpeg.Config  `yaml:"formatter"`
	Media  media.Config   `yaml:"media"`
	Rest   api.RestConfig `yaml:"api"`
}

// LoadFromFile loads a configuration file formatted in YAML in to an
// IrisConfig struct, overlaying any environment variables on top.
func (config *IrisConfig) LoadFromFile(configPath string) error {
	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration for IrisConfig - %v", err.Error())
	}

	return nil
}

// LoadFromEnv populates the config from environment variables alone, for
// deployments that carry no config file.
func (config *IrisConfig) LoadFromEnv() error {
	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("failed to load configuration for IrisConfig - %v", err.Error())
	}

	return nil
}

// getStagingDir will return the directory path used for staging uploads
// and toolkit artifacts. It will first look in the config for a value,
// but if none is found a default underneath the user's home directory is
// derived. If the default cannot be derived due to an error, a panic
// will occur.
func (config *IrisConfig) getStagingDir() string {
	if config.Media.StagingDirPath != "" {
		return config.Media.StagingDirPath
	}

	dir, err := homedir.Dir()
	if err != nil {
		panic(fmt.Sprintf("FAILURE to derive user home dir %s", err))
	}

	return filepath.Join(dir, IRIS_USER_DIR_SUFFIX, "staging")
}
