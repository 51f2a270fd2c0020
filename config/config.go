// Package config loads the framework configuration from a YAML file, from
// environment variables, or both, and builds the configured components.
package config

import (
	"errors"
	"io/fs"
	"os"
	"slices"

	"github.com/spf13/viper"
)

// Store backends selectable via StoreConfig.Backend.
const (
	BackendMemory     = "memory"
	BackendFilesystem = "filesystem"
	BackendDocument   = "document"
)

// FSConfig is the configuration for the filesystem store backend.
type FSConfig struct {
	RootDir string `mapstructure:"root_dir" yaml:"root_dir"` // The directory holding the result files
}

// DocConfig is the configuration for the document store backend.
//
// WARNING: The DSN may embed credentials and should not be logged.
type DocConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // The database/sql driver name, defaults to "postgres"
	DSN    string `mapstructure:"dsn" yaml:"dsn"`       // Secret: The database connection string
	Table  string `mapstructure:"table" yaml:"table"`   // The results table name
}

// StoreConfig selects and configures the result store backend.
type StoreConfig struct {
	Backend string    `mapstructure:"backend" yaml:"backend"` // One of memory, filesystem, document. Defaults to memory.
	FS      FSConfig  `mapstructure:"fs" yaml:"fs"`
	Doc     DocConfig `mapstructure:"doc" yaml:"doc"`
}

// RunnerConfig configures in-process execution.
type RunnerConfig struct {
	CacheCapacity int `mapstructure:"cache_capacity" yaml:"cache_capacity"` // Execution cache capacity. 0 disables memoization, -1 removes the bound.
}

// Config wraps the entire framework configuration.
type Config struct {
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	Runner RunnerConfig `mapstructure:"runner" yaml:"runner"`
}

// Load loads the config from the file path, falling back to env vars if the
// file does not exist. If the file exists, any env vars that are set will
// override the values loaded from the file.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filePath)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	// If the config file exists, we continue to read it, otherwise we
	// fallback to using environment variables
	if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

// LoadEnv loads the config from the environment variables.
func LoadEnv() (*Config, error) {
	v := viper.New()

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

// LoadFile loads the config from a file.
func LoadFile(filePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

// envBindings maps config keys to the environment variables that can provide
// their values. Viper checks each listed variable in order and uses the
// first one that is set.
var envBindings = map[string][]string{
	"store.backend":         {"MEMO_STORE_BACKEND"},
	"store.fs.root_dir":     {"MEMO_STORE_FS_ROOT_DIR"},
	"store.doc.driver":      {"MEMO_STORE_DOC_DRIVER"},
	"store.doc.dsn":         {"MEMO_STORE_DOC_DSN"},
	"store.doc.table":       {"MEMO_STORE_DOC_TABLE"},
	"runner.cache_capacity": {"MEMO_RUNNER_CACHE_CAPACITY"},
}

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		inputs := slices.Insert(envs, 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}
