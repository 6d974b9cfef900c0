package modularity

import (
	"context"
	"fmt"
	"reflect"

	"github.com/km-arc/go-modular/framework/container"
)

// ── Module interface ──────────────────────────────────────────────────────────

// Module is a pluggable unit of the host.
//
// RegisterTypes runs first, for every module in catalog order, against the
// mutable registry. It must only add bindings: nothing can be resolved yet,
// and it must not do long-running work.
//
// OnInitialized runs after the registry is frozen, again in catalog order.
// It is the place to resolve dependencies and start background work.
//
//	type FilesModule struct{ modularity.BaseModule }
//
//	func (m *FilesModule) RegisterTypes(b *container.Builder) error {
//	    return b.Singleton("files", func(r container.Resolver) (any, error) {
//	        return files.NewService(), nil
//	    })
//	}
type Module interface {
	RegisterTypes(b *container.Builder) error
	OnInitialized(ctx context.Context, r container.Resolver) error
}

// Factory creates a fresh module instance.
type Factory func() (Module, error)

// ── BaseModule ────────────────────────────────────────────────────────────────

// BaseModule provides no-op implementations of both lifecycle methods.
// Embed it and override what you need.
type BaseModule struct{}

func (BaseModule) RegisterTypes(*container.Builder) error                { return nil }
func (BaseModule) OnInitialized(context.Context, container.Resolver) error { return nil }

// ── Helpers ───────────────────────────────────────────────────────────────────

// TypeName returns the bare type name of m, dereferencing pointers.
func TypeName(m any) string {
	t := reflect.TypeOf(m)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// prototypeFactory returns a Factory that builds zero values of proto's type,
// so every run gets its own instance.
func prototypeFactory(proto Module) Factory {
	t := reflect.TypeOf(proto)
	if t.Kind() == reflect.Ptr {
		elem := t.Elem()
		return func() (Module, error) {
			m, ok := reflect.New(elem).Interface().(Module)
			if !ok {
				return nil, fmt.Errorf("modularity: %s does not implement Module", t)
			}
			return m, nil
		}
	}
	return func() (Module, error) {
		m, ok := reflect.New(t).Elem().Interface().(Module)
		if !ok {
			return nil, fmt.Errorf("modularity: %s does not implement Module", t)
		}
		return m, nil
	}
}
