package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/markbase/internal/wiki"
)

// EnvCacheDir overrides cache.dir when set.
const EnvCacheDir = "WIKI_CACHE_DIR"

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	Wiki  WikiConfig        `yaml:"wiki"`
	Cache CacheConfig       `yaml:"cache"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Wiki.Validate(); err != nil {
		return err
	}
	return c.Cache.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// WikiConfig holds the document and image roots and the URL prefix the
// wiki is served under.
type WikiConfig struct {
	DocRoot   string `yaml:"doc_root"`
	ImageRoot string `yaml:"image_root"`
	BasePath  string `yaml:"base_path"`
}

var errBasePath = errors.New("must be empty or start with / and not end with /")

// Validate validates the wiki configuration.
func (c *WikiConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DocRoot, validation.Required),
		validation.Field(&c.ImageRoot, validation.Required),
		validation.Field(&c.BasePath, validation.By(func(any) error {
			if c.BasePath == "" {
				return nil
			}
			if !strings.HasPrefix(c.BasePath, "/") || strings.HasSuffix(c.BasePath, "/") {
				return errBasePath
			}
			return nil
		})),
	)
}

// CacheConfig holds the cache directory and index backend settings.
//
// Driver selects where the search index is persisted:
//   - "json" (default): a single search_index.json file.
//   - "sqlite": a search_index.db SQLite database.
//
// Watch enables proactive reindexing on file system events.
type CacheConfig struct {
	Dir    string `yaml:"dir"`
	Driver string `yaml:"driver"`
	Watch  bool   `yaml:"watch"`
}

// Validate validates the cache configuration. WIKI_CACHE_DIR, when set,
// replaces Dir.
func (c *CacheConfig) Validate() error {
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		c.Dir = dir
	}
	if c.Driver == "" {
		c.Driver = wiki.DriverJSON
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.Driver, validation.Required, validation.In(wiki.DriverJSON, wiki.DriverSQLite)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Wiki: WikiConfig{
			DocRoot:   "./docs",
			ImageRoot: "./img",
		},
		Cache: CacheConfig{
			Dir:    "./cache",
			Driver: wiki.DriverJSON,
		},
	}
}
