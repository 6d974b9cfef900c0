package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config is the central typed configuration struct. Modules read keys of
// their own through String, Int, Bool and Duration.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Modules ModulesConfig `mapstructure:"modules"`
	Log     LogConfig     `mapstructure:"log"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Cache   CacheConfig   `mapstructure:"cache"`

	v *viper.Viper
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"` // local | production | testing
}

type ModulesConfig struct {
	Path        string        `mapstructure:"path"`
	Extension   string        `mapstructure:"extension"` // empty: platform default
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
	Concurrency int           `mapstructure:"concurrency"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CacheConfig struct {
	Driver string      `mapstructure:"driver"` // file | redis
	Dir    string      `mapstructure:"dir"`
	Redis  RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Options controls where Load looks for settings.
type Options struct {
	// ConfigFile is an optional YAML/TOML/JSON file. A missing file is an
	// error only when set explicitly.
	ConfigFile string
	// EnvFiles are dotenv files loaded before reading the environment.
	// Defaults to ".env"; missing files are ignored.
	EnvFiles []string
	// Overrides are applied last, e.g. from command-line flags.
	Overrides map[string]any
}

// Load reads .env (if present), the optional config file and environment
// variables, in increasing precedence. Env names are the upper-cased keys
// with dots turned into underscores: modules.path is MODULES_PATH.
//
//	cfg, err := config.Load(config.Options{ConfigFile: "modhost.yaml"})
func Load(opts Options) (*Config, error) {
	files := opts.EnvFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	for _, f := range files {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", opts.ConfigFile, err)
		}
	}
	for k, val := range opts.Overrides {
		v.Set(k, val)
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "modhost")
	v.SetDefault("app.env", "local")

	v.SetDefault("modules.path", "./modules")
	v.SetDefault("modules.extension", "")
	v.SetDefault("modules.load_timeout", "0s")
	v.SetDefault("modules.concurrency", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("cache.driver", "file")
	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "modhost:")
}

// defaultCacheDir is the per-user cache directory, or ./cache when the
// platform has none.
func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "modhost")
	}
	return "cache"
}

// Validate checks values Load cannot coerce.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	switch c.Cache.Driver {
	case "file", "redis":
	default:
		return fmt.Errorf("cache.driver must be file or redis, got %q", c.Cache.Driver)
	}
	if c.Modules.Concurrency < 1 {
		return errors.New("modules.concurrency must be at least 1")
	}
	if c.Modules.LoadTimeout < 0 {
		return errors.New("modules.load_timeout must not be negative")
	}
	if c.HTTP.ShutdownTimeout < 0 {
		return errors.New("http.shutdown_timeout must not be negative")
	}
	return nil
}

// ── Raw access ──────────────────────────────────────────────────────────────

// String returns any key as a string, falling back to defaultVal when the
// key is unset or empty.
func (c *Config) String(key, defaultVal string) string {
	raw, ok := c.lookup(key)
	if !ok {
		return defaultVal
	}
	if s := cast.ToString(raw); s != "" {
		return s
	}
	return defaultVal
}

// Int returns an int value, falling back to defaultVal when unset or invalid.
func (c *Config) Int(key string, defaultVal int) int {
	raw, ok := c.lookup(key)
	if !ok {
		return defaultVal
	}
	i, err := cast.ToIntE(raw)
	if err != nil {
		return defaultVal
	}
	return i
}

// Bool returns a bool value, falling back to defaultVal when unset or invalid.
func (c *Config) Bool(key string, defaultVal bool) bool {
	raw, ok := c.lookup(key)
	if !ok {
		return defaultVal
	}
	b, err := cast.ToBoolE(raw)
	if err != nil {
		return defaultVal
	}
	return b
}

// Duration returns a duration value, falling back to defaultVal when unset
// or invalid.
func (c *Config) Duration(key string, defaultVal time.Duration) time.Duration {
	raw, ok := c.lookup(key)
	if !ok {
		return defaultVal
	}
	d, err := cast.ToDurationE(raw)
	if err != nil {
		return defaultVal
	}
	return d
}

func (c *Config) lookup(key string) (any, bool) {
	if c.v == nil || !c.v.IsSet(key) {
		return nil, false
	}
	return c.v.Get(key), true
}

// Env reports whether the app runs in one of envs.
func (c *Config) Env(envs ...string) bool {
	for _, e := range envs {
		if strings.EqualFold(c.App.Env, e) {
			return true
		}
	}
	return false
}
