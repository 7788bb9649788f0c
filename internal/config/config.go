package config

import (
	"os"
	"sync"

	"github.com/spf13/viper"

	"github.com/vjuliano/audiodrop/internal/model"
)

// Defaults applied when the config file is absent or missing keys
const (
	defaultPort        = 3000
	defaultMaxUploads  = 3
	defaultMaxFileSize = 5 // MB
)

// Config is the runtime configuration. It is loaded once at startup, merged
// over built-in defaults, and mutated only through the admin policy manager.
// Every mutation is written back to disk before the setter returns.
type Config struct {
	mu   sync.RWMutex
	v    *viper.Viper
	path string
}

// LoadConfig reads the JSON config file at path. A missing file is not an
// error; defaults are used and the file is created on the first mutation.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password", "")
	v.SetDefault("port", defaultPort)
	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.maxUploads", defaultMaxUploads)
	v.SetDefault("maxFileSize", defaultMaxFileSize)
	v.SetDefault("uploadPath", "./uploads")
	v.SetDefault("publicPath", "./public")
	v.SetDefault("sqlitePath", "./data/audiodrop.db")

	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return &Config{v: v, path: path}, nil
}

func (c *Config) Port() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.GetInt("port")
}

func (c *Config) AdminUsername() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.GetString("admin.username")
}

// AdminPasswordHash returns the bcrypt hash of the admin password. Empty
// until an operator configures one, which makes login impossible.
func (c *Config) AdminPasswordHash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.GetString("admin.password")
}

func (c *Config) UploadPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.GetString("uploadPath")
}

func (c *Config) PublicPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.GetString("publicPath")
}

func (c *Config) SQLitePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.GetString("sqlitePath")
}

// MaxFileSize returns the upload size cap in megabytes.
func (c *Config) MaxFileSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.GetInt("maxFileSize")
}

func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSize()) * 1024 * 1024
}

func (c *Config) RateLimit() model.RateLimitPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return model.RateLimitPolicy{
		Enabled:    c.v.GetBool("rateLimit.enabled"),
		MaxUploads: c.v.GetInt("rateLimit.maxUploads"),
	}
}

// SetRateLimit replaces the rate-limit policy and persists the config file.
// Range validation happens in the admin policy manager; this is a raw write.
func (c *Config) SetRateLimit(p model.RateLimitPolicy) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v.Set("rateLimit.enabled", p.Enabled)
	c.v.Set("rateLimit.maxUploads", p.MaxUploads)
	return c.save()
}

// SetMaxFileSize replaces the upload size cap and persists the config file.
func (c *Config) SetMaxFileSize(mb int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v.Set("maxFileSize", mb)
	return c.save()
}

// save must be called with mu held.
func (c *Config) save() error {
	return c.v.WriteConfigAs(c.path)
}
