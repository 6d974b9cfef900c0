// Package diagnostics is the built-in module exposing the module run over
// HTTP: health, the run report, registry keys and mounted routes.
package diagnostics

import (
	"context"
	"net/http"

	"github.com/km-arc/go-modular/framework/container"
	gohttp "github.com/km-arc/go-modular/framework/http"
	"github.com/km-arc/go-modular/framework/modularity"
	"github.com/km-arc/go-modular/framework/routing"
)

// Module mounts the diagnostics routes on the host router.
type Module struct {
	modularity.BaseModule
}

// keyLister is implemented by *container.Container.
type keyLister interface {
	Keys() []string
}

// OnInitialized mounts the routes; without a router it does nothing.
func (m *Module) OnInitialized(_ context.Context, r container.Resolver) error {
	if !r.Bound(routing.Key) {
		return nil
	}
	router, err := container.Resolve[*routing.Router](r, routing.Key)
	if err != nil {
		return err
	}

	h := &handler{router: router}
	if r.Bound(modularity.ManagerKey) {
		if h.manager, err = container.Resolve[*modularity.Manager](r, modularity.ManagerKey); err != nil {
			return err
		}
	}
	if kl, ok := r.(keyLister); ok {
		h.keys = kl.Keys
	}

	router.Get("/health", h.health)
	router.Get("/modules", h.modules)
	router.Get("/services", h.services)
	router.Get("/routes", h.routes)
	return nil
}

type handler struct {
	router  *routing.Router
	manager *modularity.Manager
	keys    func() []string
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	res := gohttp.NewResponse(w)
	if h.manager != nil && h.manager.State() != modularity.StateReady {
		res.JSON(http.StatusServiceUnavailable, map[string]any{
			"data": map[string]string{"status": h.manager.State().String()},
		})
		return
	}
	res.Success(map[string]string{"status": "ok"})
}

// modules serves the run report; ?phase= narrows the failures.
func (h *handler) modules(w http.ResponseWriter, r *http.Request) {
	res := gohttp.NewResponse(w)
	if h.manager == nil {
		res.NotFound("No module manager registered.")
		return
	}
	report := h.manager.Report()
	if phase := gohttp.NewRequest(r).Query("phase"); phase != "" {
		report.Failures = report.FailuresIn(modularity.Phase(phase))
	}
	res.Success(report)
}

func (h *handler) services(w http.ResponseWriter, _ *http.Request) {
	res := gohttp.NewResponse(w)
	if h.keys == nil {
		res.NotFound("Registry keys unavailable.")
		return
	}
	res.Success(h.keys())
}

func (h *handler) routes(w http.ResponseWriter, _ *http.Request) {
	gohttp.NewResponse(w).Success(h.router.Routes())
}
