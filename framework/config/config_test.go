package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-modular/framework/config"
)

// ── helpers ──────────────────────────────────────────────────────────────────

var knownEnv = []string{
	"APP_NAME", "APP_ENV",
	"MODULES_PATH", "MODULES_EXTENSION", "MODULES_LOAD_TIMEOUT", "MODULES_CONCURRENCY",
	"LOG_LEVEL", "LOG_FORMAT", "HTTP_ADDR", "HTTP_SHUTDOWN_TIMEOUT",
	"CACHE_DRIVER", "CACHE_DIR", "CACHE_REDIS_ADDR", "CACHE_REDIS_DB", "CACHE_REDIS_PREFIX",
}

// clearEnv blanks every known variable; empty values are ignored by Load.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range knownEnv {
		t.Setenv(k, "")
	}
}

func load(t *testing.T, opts config.Options) *config.Config {
	t.Helper()
	if len(opts.EnvFiles) == 0 {
		opts.EnvFiles = []string{filepath.Join(t.TempDir(), "none.env")}
	}
	cfg, err := config.Load(opts)
	require.NoError(t, err)
	return cfg
}

// ── Load ─────────────────────────────────────────────────────────────────────

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := load(t, config.Options{})

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"App.Name", cfg.App.Name, "modhost"},
		{"App.Env", cfg.App.Env, "local"},
		{"Modules.Path", cfg.Modules.Path, "./modules"},
		{"Modules.Extension", cfg.Modules.Extension, ""},
		{"Modules.LoadTimeout", cfg.Modules.LoadTimeout, time.Duration(0)},
		{"Modules.Concurrency", cfg.Modules.Concurrency, 1},
		{"Log.Level", cfg.Log.Level, "info"},
		{"Log.Format", cfg.Log.Format, "text"},
		{"HTTP.Addr", cfg.HTTP.Addr, ":8000"},
		{"HTTP.ShutdownTimeout", cfg.HTTP.ShutdownTimeout, 10 * time.Second},
		{"Cache.Driver", cfg.Cache.Driver, "file"},
		{"Cache.Redis.Addr", cfg.Cache.Redis.Addr, "localhost:6379"},
		{"Cache.Redis.DB", cfg.Cache.Redis.DB, 0},
		{"Cache.Redis.Prefix", cfg.Cache.Redis.Prefix, "modhost:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
	assert.NotEmpty(t, cfg.Cache.Dir)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_NAME", "MyHost")
	t.Setenv("APP_ENV", "production")
	t.Setenv("MODULES_PATH", "/opt/plugins")
	t.Setenv("MODULES_LOAD_TIMEOUT", "2s")
	t.Setenv("MODULES_CONCURRENCY", "4")
	t.Setenv("CACHE_REDIS_DB", "3")

	cfg := load(t, config.Options{})

	assert.Equal(t, "MyHost", cfg.App.Name)
	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, "/opt/plugins", cfg.Modules.Path)
	assert.Equal(t, 2*time.Second, cfg.Modules.LoadTimeout)
	assert.Equal(t, 4, cfg.Modules.Concurrency)
	assert.Equal(t, 3, cfg.Cache.Redis.DB)
}

func TestLoad_DotenvFile(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that exists, even when empty.
	require.NoError(t, os.Unsetenv("APP_NAME"))

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("APP_NAME=FromDotenv\n"), 0o644))

	cfg := load(t, config.Options{EnvFiles: []string{envFile}})
	assert.Equal(t, "FromDotenv", cfg.App.Name)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	file := filepath.Join(t.TempDir(), "modhost.yaml")
	yaml := `
app:
  name: from-file
modules:
  path: ./ext
  extension: plug
cache:
  driver: redis
  redis:
    addr: redis:6379
`
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o644))

	cfg := load(t, config.Options{ConfigFile: file})
	assert.Equal(t, "from-file", cfg.App.Name)
	assert.Equal(t, "./ext", cfg.Modules.Path)
	assert.Equal(t, "plug", cfg.Modules.Extension)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvBeatsConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_NAME", "from-env")
	file := filepath.Join(t.TempDir(), "modhost.yaml")
	require.NoError(t, os.WriteFile(file, []byte("app:\n  name: from-file\n"), 0o644))

	cfg := load(t, config.Options{ConfigFile: file})
	assert.Equal(t, "from-env", cfg.App.Name)
}

func TestLoad_OverridesWin(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "warn")

	cfg := load(t, config.Options{Overrides: map[string]any{"log.level": "debug"}})
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	_, err := config.Load(config.Options{ConfigFile: filepath.Join(t.TempDir(), "absent.yaml")})
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"LOG_FORMAT":          "xml",
		"CACHE_DRIVER":        "memcached",
		"MODULES_CONCURRENCY": "0",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			_, err := config.Load(config.Options{EnvFiles: []string{filepath.Join(t.TempDir(), "none.env")}})
			assert.Error(t, err)
		})
	}
}

// ── String / Int / Bool / Duration ───────────────────────────────────────────

func TestString(t *testing.T) {
	clearEnv(t)
	t.Setenv("CUSTOM_KEY", "hello")
	cfg := load(t, config.Options{})

	assert.Equal(t, "hello", cfg.String("custom.key", "default"))
	assert.Equal(t, "fallback", cfg.String("missing.key", "fallback"))
}

func TestInt(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOME_INT", "42")
	t.Setenv("BAD_INT", "notanint")
	cfg := load(t, config.Options{})

	assert.Equal(t, 42, cfg.Int("some.int", 0))
	assert.Equal(t, 99, cfg.Int("bad.int", 99))
	assert.Equal(t, 7, cfg.Int("missing.int", 7))
}

func TestBool(t *testing.T) {
	for _, val := range []string{"true", "1", "True", "TRUE"} {
		t.Run(val, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("BOOL_KEY", val)
			cfg := load(t, config.Options{})
			assert.True(t, cfg.Bool("bool.key", false))
		})
	}

	clearEnv(t)
	t.Setenv("BOOL_KEY", "notabool")
	cfg := load(t, config.Options{})
	assert.True(t, cfg.Bool("bool.key", true))
}

func TestDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOME_WAIT", "1m30s")
	cfg := load(t, config.Options{})

	assert.Equal(t, 90*time.Second, cfg.Duration("some.wait", 0))
	assert.Equal(t, time.Second, cfg.Duration("missing.wait", time.Second))
}

func TestZeroConfigFallsBack(t *testing.T) {
	var cfg config.Config
	assert.Equal(t, "x", cfg.String("app.name", "x"))
	assert.Equal(t, 1, cfg.Int("modules.concurrency", 1))
}

func TestEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "Testing")
	cfg := load(t, config.Options{})

	assert.True(t, cfg.Env("local", "testing"))
	assert.False(t, cfg.Env("production"))
}
