// Package app wires the host: configuration, logging, the module catalog
// and the HTTP server that serves whatever the modules mounted.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/km-arc/go-modular/framework/config"
	"github.com/km-arc/go-modular/framework/container"
	"github.com/km-arc/go-modular/framework/logging"
	"github.com/km-arc/go-modular/framework/modularity"
	"github.com/km-arc/go-modular/framework/providers"
	"github.com/km-arc/go-modular/framework/routing"
	"github.com/km-arc/go-modular/modules/diagnostics"
	"github.com/km-arc/go-modular/modules/files"
	"github.com/km-arc/go-modular/modules/files/cache"
)

// Options configures New.
type Options struct {
	Config config.Options
	// LogOutput receives log lines; defaults to stderr.
	LogOutput io.Writer
	// Modules are extra builtin modules, added after the host's own and
	// before the artifacts found in modules.path.
	Modules []Builtin
}

// Builtin names a compiled-in module and the factory that builds it, so a
// module can carry constructor arguments.
//
//	app.Builtin{Name: "audit", New: func() (modularity.Module, error) {
//	    return &audit.Module{DSN: dsn}, nil
//	}}
type Builtin struct {
	Name string
	New  modularity.Factory
}

// Application is the host process. The catalog is fixed at New; Run
// executes it once.
type Application struct {
	Config  *config.Config
	Log     *logrus.Logger
	Catalog *modularity.Catalog
	Manager *modularity.Manager

	container *container.Container
	closeOnce sync.Once
	closeErr  error
}

// New loads the configuration and builds the catalog:
//
//	config, logging, routing, files, diagnostics, opts.Modules..., artifacts
//
// Nothing is loaded or registered until Run.
func New(opts Options) (*Application, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log, opts.LogOutput)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"app": cfg.App.Name,
		"env": cfg.App.Env,
	}).Debug("configuration loaded")

	catalog := modularity.NewCatalog(
		modularity.WithExtension(cfg.Modules.Extension),
		modularity.WithCatalogLogger(log),
	).
		AddModuleFunc("config", providers.Config(cfg)).
		AddModuleFunc("logging", providers.Logging(log)).
		AddModuleFunc("routing", providers.Routing()).
		AddModuleFunc("files", builtin(func() modularity.Module { return &files.Module{} })).
		AddModuleFunc("diagnostics", builtin(func() modularity.Module { return &diagnostics.Module{} }))
	for _, b := range opts.Modules {
		catalog.AddModuleFunc(b.Name, b.New)
	}
	catalog.AddScanRegisterFromPath(cfg.Modules.Path)

	builder := container.NewBuilder(container.WithLogger(log))
	mgr := modularity.NewManager(catalog,
		modularity.WithBuilder(builder),
		modularity.WithManagerLogger(log),
		modularity.WithDiscoveryConcurrency(cfg.Modules.Concurrency),
		modularity.WithLoader(modularity.NewLoader(
			modularity.WithLoadTimeout(cfg.Modules.LoadTimeout),
			modularity.WithLoaderLogger(log),
		)),
	)
	if err := builder.Instance(modularity.ManagerKey, mgr); err != nil {
		return nil, err
	}

	return &Application{Config: cfg, Log: log, Catalog: catalog, Manager: mgr}, nil
}

func builtin(newModule func() modularity.Module) modularity.Factory {
	return func() (modularity.Module, error) { return newModule(), nil }
}

// Run loads, registers and initializes every module. Module failures are
// in the report; only a failed run is an error.
func (a *Application) Run(ctx context.Context) error {
	c, err := a.Manager.Run(ctx)
	if err != nil {
		return err
	}
	a.container = c
	return nil
}

// Container returns the frozen registry, nil before a successful Run.
func (a *Application) Container() *container.Container { return a.container }

// Router resolves the HTTP router.
func (a *Application) Router() (*routing.Router, error) {
	if a.container == nil {
		return nil, errors.New("app: not running")
	}
	return container.Resolve[*routing.Router](a.container, routing.Key)
}

// Files resolves the compare-and-copy service.
func (a *Application) Files() (*files.Service, error) {
	if a.container == nil {
		return nil, errors.New("app: not running")
	}
	return container.Resolve[*files.Service](a.container, files.ServiceKey)
}

// Serve listens on http.addr and serves the router until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Config.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener serves the router on ln until ctx is done, then shuts the
// server down within http.shutdown_timeout. Run must have succeeded.
func (a *Application) ServeListener(ctx context.Context, ln net.Listener) error {
	router, err := a.Router()
	if err != nil {
		ln.Close()
		return err
	}
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.WithField("addr", ln.Addr().String()).Info("http server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Log.Info("shutting down http server")

		var (
			shutdownCtx context.Context
			cancel      context.CancelFunc
		)
		if d := a.Config.HTTP.ShutdownTimeout; d > 0 {
			shutdownCtx, cancel = context.WithTimeout(context.Background(), d)
		} else {
			shutdownCtx, cancel = context.WithCancel(context.Background())
		}
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Log.WithError(err).Error("http server shutdown failed")
			return err
		}
		a.Log.Info("http server stopped")
		return a.Close()
	})
	return g.Wait()
}

// Close releases what the modules opened: the files cache store (a Redis
// connection with the redis driver). It is safe to call more than once and
// before Run.
func (a *Application) Close() error {
	a.closeOnce.Do(func() {
		if a.container == nil || !a.container.Bound(files.StoreKey) {
			return
		}
		store, err := container.Resolve[cache.Store](a.container, files.StoreKey)
		if err != nil {
			a.closeErr = err
			return
		}
		if err := store.Close(); err != nil {
			a.Log.WithError(err).Warn("cache store not closed")
			a.closeErr = fmt.Errorf("app: close cache store: %w", err)
		}
	})
	return a.closeErr
}

// Environment returns app.env.
func (a *Application) Environment() string { return a.Config.App.Env }
func (a *Application) IsLocal() bool       { return a.Config.Env("local") }
func (a *Application) IsProduction() bool  { return a.Config.Env("production") }
