// Package providers holds the host's core services as builtin modules. The
// host puts them first in the catalog so every later module can resolve
// them:
//
//	catalog.
//	    AddModuleFunc("config", providers.Config(cfg)).
//	    AddModuleFunc("logging", providers.Logging(log)).
//	    AddModuleFunc("routing", providers.Routing())
package providers

import (
	"github.com/sirupsen/logrus"

	"github.com/km-arc/go-modular/framework/config"
	"github.com/km-arc/go-modular/framework/container"
	"github.com/km-arc/go-modular/framework/logging"
	"github.com/km-arc/go-modular/framework/modularity"
	"github.com/km-arc/go-modular/framework/routing"
)

// ConfigKey is the registry key of *config.Config.
const ConfigKey = "config"

// ── ConfigProvider ───────────────────────────────────────────────────────────

// ConfigProvider binds the loaded configuration.
//
// Bound keys:
//   - "config"        → *config.Config
//   - "configuration" → alias of "config"
type ConfigProvider struct {
	modularity.BaseModule
	Config *config.Config
}

func (p *ConfigProvider) RegisterTypes(b *container.Builder) error {
	if err := b.Instance(ConfigKey, p.Config); err != nil {
		return err
	}
	return b.Alias(ConfigKey, "configuration")
}

// Config returns a catalog factory for a ConfigProvider of cfg.
func Config(cfg *config.Config) modularity.Factory {
	return func() (modularity.Module, error) {
		return &ConfigProvider{Config: cfg}, nil
	}
}

// ── LoggingProvider ──────────────────────────────────────────────────────────

// LoggingProvider binds the host logger under logging.Key as a
// logrus.FieldLogger.
type LoggingProvider struct {
	modularity.BaseModule
	Logger logrus.FieldLogger
}

func (p *LoggingProvider) RegisterTypes(b *container.Builder) error {
	return b.Instance(logging.Key, p.Logger)
}

// Logging returns a catalog factory for a LoggingProvider of log.
func Logging(log logrus.FieldLogger) modularity.Factory {
	return func() (modularity.Module, error) {
		return &LoggingProvider{Logger: log}, nil
	}
}

// ── RoutingProvider ──────────────────────────────────────────────────────────

// RoutingProvider registers the HTTP router as a singleton. It logs
// requests through the bound logger when there is one.
type RoutingProvider struct {
	modularity.BaseModule
}

func (p *RoutingProvider) RegisterTypes(b *container.Builder) error {
	return b.Singleton(routing.Key, func(r container.Resolver) (any, error) {
		var log logrus.FieldLogger = logging.Discard()
		if r.Bound(logging.Key) {
			l, err := container.Resolve[logrus.FieldLogger](r, logging.Key)
			if err != nil {
				return nil, err
			}
			log = l
		}
		return routing.New(log), nil
	})
}

// Routing returns a catalog factory for a RoutingProvider.
func Routing() modularity.Factory {
	return func() (modularity.Module, error) {
		return &RoutingProvider{}, nil
	}
}
