package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/logger"
)

// Source names where a configuration layer came from
type Source string

const (
	SourceDefault     Source = "default"
	SourceUser        Source = "user"        // ~/.idxtools/config.yml
	SourceProject     Source = "project"     // indexfile.yml found from the working directory
	SourceEnvironment Source = "environment" // IDX_* env vars
)

// Location is one configuration source checked during loading.
type Location struct {
	Source Source `json:"source" yaml:"source"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Found  bool   `json:"found" yaml:"found"`
}

// ProjectFiles are searched, in this order, in the working directory and
// each of its parents.
var ProjectFiles = []string{"indexfile.yml", "indexfile.yaml", "indexfile.toml"}

// UserDir is the per-user configuration directory below the home directory.
const UserDir = ".idxtools"

var (
	mu            sync.Mutex
	globalConfig  *Config
	viperInstance *viper.Viper
	locations     []Location
)

// Load reads the configuration once and caches it.
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()
	if globalConfig != nil {
		return globalConfig, nil
	}

	v, err := initViper()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}
	globalConfig = cfg
	return globalConfig, nil
}

// GetViper returns the viper instance behind Load, so flags can be bound to it.
func GetViper() (*viper.Viper, error) {
	mu.Lock()
	defer mu.Unlock()
	return initViper()
}

// LoadWithViper loads configuration using a provided viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path on top of the
// defaults, ignoring the environment.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WrapIOf(err, "failed to read config file %s", path)
	}
	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "config file %s", path)
	}
	return cfg, nil
}

// Reset clears the cached configuration
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	viperInstance = nil
	locations = nil
}

// Where lists the configuration sources checked by the last load, lowest
// precedence first.
func Where() []Location {
	mu.Lock()
	defer mu.Unlock()
	if viperInstance == nil {
		if _, err := initViper(); err != nil {
			return nil
		}
	}
	out := make([]Location, len(locations))
	copy(out, locations)
	return out
}

func initViper() (*viper.Viper, error) {
	if viperInstance != nil {
		return viperInstance, nil
	}
	home, _ := os.UserHomeDir()
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.WrapIO(err, "get working directory")
	}
	v, locs := newViper(home, wd)
	viperInstance, locations = v, locs
	return v, nil
}

// newViper builds a viper instance with precedence
// defaults < user file < project file < environment.
func newViper(home, workDir string) (*viper.Viper, []Location) {
	v := viper.New()
	SetDefaults(v)

	locs := []Location{{Source: SourceDefault, Found: true}}

	if home != "" {
		userFile := filepath.Join(home, UserDir, "config.yml")
		locs = append(locs, Location{Source: SourceUser, Path: userFile, Found: mergeFile(v, userFile)})
	}

	if project := findProjectConfig(workDir); project != "" {
		locs = append(locs, Location{Source: SourceProject, Path: project, Found: mergeFile(v, project)})
	} else {
		locs = append(locs, Location{Source: SourceProject})
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindEnvVars(v)
	locs = append(locs, Location{Source: SourceEnvironment, Path: EnvPrefix + "_*", Found: hasEnv()})

	return v, locs
}

// mergeFile merges one config file into v below the environment layer.
func mergeFile(v *viper.Viper, path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	tmp := viper.New()
	tmp.SetConfigFile(path)
	if err := tmp.ReadInConfig(); err != nil {
		logger.Warnw("skipping unreadable config file", logger.FieldPath, path, logger.FieldError, err)
		return false
	}
	if err := v.MergeConfigMap(tmp.AllSettings()); err != nil {
		logger.Warnw("skipping config file", logger.FieldPath, path, logger.FieldError, err)
		return false
	}
	logger.Debugw("config file merged", logger.FieldPath, path)
	return true
}

// findProjectConfig walks up from dir looking for a project file.
// Returns the first match, or "" when the filesystem root is reached.
func findProjectConfig(dir string) string {
	if dir == "" {
		return ""
	}
	for {
		for _, name := range ProjectFiles {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func hasEnv() bool {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, EnvPrefix+"_") {
			return true
		}
	}
	return false
}
