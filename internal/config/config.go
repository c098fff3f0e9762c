// Package config loads the CLI configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/i2y/prototree/loader"
)

// Config is the content of prototree.yaml.
type Config struct {
	// Sources maps short aliases to source strings.
	Sources          map[string]string   `yaml:"sources" validate:"dive,keys,required,endkeys,required"`
	CacheSize        int                 `yaml:"cache_size" validate:"gte=0"`
	Timeout          time.Duration       `yaml:"timeout" validate:"gte=0"`
	IncludeWellKnown bool                `yaml:"include_well_known"`
	ImportPaths      []string            `yaml:"import_paths" validate:"dive,required"`
	Retry            *loader.RetryPolicy `yaml:"retry"`
	Log              LogConfig           `yaml:"log"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error disabled"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
}

var validate = validator.New()

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		CacheSize: loader.DefaultCacheSize,
		Timeout:   loader.DefaultTimeout,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the file at path. An empty path yields the defaults. Unset values are filled
// from Default before validation.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.CacheSize == 0 {
		c.CacheSize = def.CacheSize
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate checks field constraints.
func (c Config) Validate() error {
	return validate.Struct(c)
}

// Resolve expands a source alias. Anything that is not an alias is returned unchanged.
func (c Config) Resolve(source string) string {
	if target, ok := c.Sources[strings.TrimSpace(source)]; ok {
		return target
	}
	return source
}

// LoaderConfig converts the file settings into a loader configuration.
func (c Config) LoaderConfig() loader.Config {
	return loader.Config{
		CacheSize:        c.CacheSize,
		Timeout:          c.Timeout,
		IncludeWellKnown: c.IncludeWellKnown,
		ImportPaths:      c.ImportPaths,
		Retry:            c.Retry,
	}
}
