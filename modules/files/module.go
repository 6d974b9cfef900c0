// Package files is the built-in compare-and-copy module: it copies files
// from a reference tree into a destination when their names appear in a
// source tree, and remembers the last folder set in a cache.
package files

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/km-arc/go-modular/framework/config"
	"github.com/km-arc/go-modular/framework/container"
	"github.com/km-arc/go-modular/framework/logging"
	"github.com/km-arc/go-modular/framework/modularity"
	"github.com/km-arc/go-modular/framework/routing"
	"github.com/km-arc/go-modular/modules/files/cache"
)

// Registry keys.
const (
	ServiceKey = "files.service"
	StoreKey   = "files.store"
)

// Module registers the files service and its cache store.
type Module struct {
	modularity.BaseModule
}

func (m *Module) RegisterTypes(b *container.Builder) error {
	if err := b.Singleton(StoreKey, newStore); err != nil {
		return err
	}
	if err := b.Singleton(ServiceKey, func(r container.Resolver) (any, error) {
		store, err := container.Resolve[cache.Store](r, StoreKey)
		if err != nil {
			return nil, err
		}
		return NewService(store, loggerFrom(r)), nil
	}); err != nil {
		return err
	}
	return b.Alias(ServiceKey, container.TypeKey((*Service)(nil)))
}

// OnInitialized loads the cached folder set once, falling back to the
// files.* configuration keys, and mounts the HTTP routes when a router is
// registered.
func (m *Module) OnInitialized(ctx context.Context, r container.Resolver) error {
	svc, err := container.Resolve[*Service](r, ServiceKey)
	if err != nil {
		return err
	}
	log := loggerFrom(r)

	cached, err := svc.LoadFolders(ctx)
	if err != nil {
		log.WithError(err).Warn("cached folders unreadable")
	}
	switch {
	case cached.Status:
		svc.setFolders(cached.Data)
		log.WithField("source", cached.Data.Source).Debug("cached folders loaded")
	case r.Bound("config"):
		cfg, err := container.Resolve[*config.Config](r, "config")
		if err != nil {
			return err
		}
		svc.setFolders(FolderSet{
			Source:      cfg.String("files.source", ""),
			Reference:   cfg.String("files.reference", ""),
			Destination: cfg.String("files.destination", ""),
		})
	}

	if r.Bound(routing.Key) {
		router, err := container.Resolve[*routing.Router](r, routing.Key)
		if err != nil {
			return err
		}
		mountRoutes(router, svc, log)
	}
	return nil
}

// newStore opens the configured cache, or a file store next to the
// working directory when no configuration is registered.
func newStore(r container.Resolver) (any, error) {
	if !r.Bound("config") {
		return cache.NewFileStore(filepath.Join(".", "cache"))
	}
	cfg, err := container.Resolve[*config.Config](r, "config")
	if err != nil {
		return nil, err
	}
	return cache.New(context.Background(), cfg.Cache)
}

func loggerFrom(r container.Resolver) logrus.FieldLogger {
	if r.Bound(logging.Key) {
		if l, err := container.Resolve[logrus.FieldLogger](r, logging.Key); err == nil {
			return l.WithField("module", "files")
		}
	}
	return logging.Discard()
}
