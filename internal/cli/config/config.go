// Package config loads apinni.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/apinni/apinni/internal/cache"
	"github.com/apinni/apinni/internal/generator"
	"github.com/apinni/apinni/internal/registry"
	"github.com/apinni/apinni/internal/watch"
)

// FileName is the name written by init.
const FileName = "apinni.yaml"

// EnvPrefix prefixes environment overrides: APINNI_CACHE_DRIVER sets
// cache.driver.
const EnvPrefix = "APINNI"

// Config represents the apinni configuration
type Config struct {
	Patterns      []string    `mapstructure:"patterns" yaml:"patterns"`
	Exclude       []string    `mapstructure:"exclude" yaml:"exclude,omitempty"`
	Output        string      `mapstructure:"output" yaml:"output"`
	SchemaFiles   bool        `mapstructure:"schema_files" yaml:"schema_files"`
	OpenAPI       bool        `mapstructure:"openapi" yaml:"openapi"`
	Filter        string      `mapstructure:"filter" yaml:"filter,omitempty"`
	DefaultDomain string      `mapstructure:"default_domain" yaml:"default_domain"`
	Cache         CacheConfig `mapstructure:"cache" yaml:"cache"`
	Watch         WatchConfig `mapstructure:"watch" yaml:"watch"`

	// Dir is the directory relative paths resolve against.
	Dir string `mapstructure:"-" yaml:"-"`
	// File is the configuration file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	Driver string        `mapstructure:"driver" yaml:"driver"`
	Dir    string        `mapstructure:"dir" yaml:"dir,omitempty"`
	URL    string        `mapstructure:"url" yaml:"url,omitempty"`
	TTL    time.Duration `mapstructure:"ttl" yaml:"ttl,omitempty"`
}

// WatchConfig represents watch configuration
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce,omitempty"`
	Port     int           `mapstructure:"port" yaml:"port,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Patterns:      []string{"./..."},
		Output:        ".",
		DefaultDomain: registry.DefaultDomain,
		Cache: CacheConfig{
			Driver: cache.DriverMemory,
			Dir:    cache.DefaultDir,
			TTL:    cache.DefaultCacheConfig().DefaultTTL,
		},
		Watch: WatchConfig{
			Debounce: watch.DefaultDebounce,
			Port:     watch.DefaultPort,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("patterns", d.Patterns)
	v.SetDefault("exclude", []string{})
	v.SetDefault("output", d.Output)
	v.SetDefault("schema_files", false)
	v.SetDefault("openapi", false)
	v.SetDefault("filter", "")
	v.SetDefault("default_domain", d.DefaultDomain)
	v.SetDefault("cache.driver", d.Cache.Driver)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.url", "")
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("watch.port", d.Watch.Port)
}

// Load reads apinni.yaml or apinni.yml from dir, or file when it is set,
// applies environment overrides and validates the result.
func Load(dir, file string) (*Config, error) {
	if dir == "" {
		dir = "."
	}
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("apinni")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Dir = dir
	config.File = v.ConfigFileUsed()

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if len(cfg.Patterns) == 0 {
		return fmt.Errorf("patterns must list at least one package pattern")
	}
	if cfg.Output == "" {
		return fmt.Errorf("output must not be empty")
	}
	if cfg.DefaultDomain == "" || strings.ContainsAny(cfg.DefaultDomain, `/\ `) {
		return fmt.Errorf("default_domain must be a non-empty name without slashes or spaces, got: %q", cfg.DefaultDomain)
	}
	if !slices.Contains(cache.Drivers, cfg.Cache.Driver) {
		return fmt.Errorf("cache.driver must be one of %s, got: %s", strings.Join(cache.Drivers, ", "), cfg.Cache.Driver)
	}
	if cfg.Cache.Driver == cache.DriverRedis && cfg.Cache.URL == "" {
		return fmt.Errorf("cache.url is required for the redis driver")
	}
	if (cfg.Cache.Driver == cache.DriverPostgres || cfg.Cache.Driver == cache.DriverPgx) && cfg.Cache.URL == "" {
		return fmt.Errorf("cache.url is required for the %s driver", cfg.Cache.Driver)
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.Port < 0 || cfg.Watch.Port > 65535 {
		return fmt.Errorf("watch.port must be between 0 and 65535, got: %d", cfg.Watch.Port)
	}
	if _, err := generator.CompileFilter(cfg.Filter); err != nil {
		return err
	}
	return nil
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Generator returns the generator settings of c.
func (c *Config) Generator() generator.Config {
	return generator.Config{
		Dir:           c.Dir,
		Patterns:      c.Patterns,
		Exclude:       c.Exclude,
		Output:        c.resolve(c.Output),
		SchemaFiles:   c.SchemaFiles,
		OpenAPI:       c.OpenAPI,
		Filter:        c.Filter,
		DefaultDomain: c.DefaultDomain,
		CacheTTL:      c.Cache.TTL,
	}
}

// CacheOptions returns the cache backend settings of c.
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Driver: c.Cache.Driver,
		Dir:    c.resolve(c.Cache.Dir),
		URL:    c.Cache.URL,
		TTL:    c.Cache.TTL,
	}
}

// Session returns the watch settings of c. Generated outputs under the
// source tree are ignored.
func (c *Config) Session(serve bool) watch.SessionConfig {
	ignored := append([]string(nil), c.Exclude...)
	ignored = append(ignored, "*.d.ts", "*-schema.json", "*-openapi.json")
	return watch.SessionConfig{
		Root:     c.Dir,
		Ignored:  ignored,
		Debounce: c.Watch.Debounce,
		Serve:    serve,
		Port:     c.Watch.Port,
	}
}

// Save writes c to path as YAML.
func Save(path string, c *Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
