package container

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
)

// Resolver looks up bound services. *Container and *Scope implement it, and
// factories receive one that tracks the resolution chain.
type Resolver interface {
	Resolve(key string) (any, error)
	Bound(key string) bool
}

// ── Container ─────────────────────────────────────────────────────────────────

// Container is the frozen, read-only service registry produced by
// Builder.Build. It is safe for concurrent use.
//
// The Container is also the process-wide root scope: scoped bindings
// resolved directly on it live as long as it does.
type Container struct {
	bindings       map[string]*binding
	aliases        map[string]string
	extenders      map[string][]Extender
	tags           map[string][]string
	contextual     map[string]map[string]Factory
	afterResolving []func(string, any)

	// one cell per singleton key, created at Build
	singletons map[string]*cell

	root *Scope
	log  logrus.FieldLogger
}

// Resolve builds or returns the instance bound to key.
func (c *Container) Resolve(key string) (any, error) {
	return c.root.resolve(key, nil)
}

// Bound reports whether key (or an alias of it) has a binding.
func (c *Container) Bound(key string) bool {
	_, ok := c.bindings[c.canonical(key)]
	return ok
}

// Lifetime returns the lifetime of key's binding.
func (c *Container) Lifetime(key string) (Lifetime, bool) {
	b, ok := c.bindings[c.canonical(key)]
	if !ok {
		return 0, false
	}
	return b.lifetime, true
}

// Keys returns every bound key, sorted.
func (c *Container) Keys() []string {
	return sortedKeys(c.bindings)
}

// Tagged resolves every key grouped under tag, in tagging order.
func (c *Container) Tagged(tag string) ([]any, error) {
	keys := c.tags[tag]
	out := make([]any, 0, len(keys))
	for _, key := range keys {
		v, err := c.Resolve(key)
		if err != nil {
			return nil, fmt.Errorf("container: tag [%s]: %w", tag, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// NewScope opens a child scope. Scoped bindings resolved through it are
// cached for the scope's lifetime; singletons still come from the Container.
func (c *Container) NewScope() *Scope {
	return &Scope{c: c, cells: make(map[string]*cell)}
}

func (c *Container) canonical(key string) string {
	if target, ok := c.aliases[key]; ok {
		return target
	}
	return key
}

// ── Scope ─────────────────────────────────────────────────────────────────────

// Scope caches scoped instances for an explicit lifetime boundary.
type Scope struct {
	c     *Container
	mu    sync.Mutex
	cells map[string]*cell
}

// Resolve builds or returns the instance bound to key within this scope.
func (s *Scope) Resolve(key string) (any, error) {
	return s.resolve(key, nil)
}

// Bound reports whether key has a binding in the owning Container.
func (s *Scope) Bound(key string) bool {
	return s.c.Bound(key)
}

func (s *Scope) cell(key string) *cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	cl, ok := s.cells[key]
	if !ok {
		cl = &cell{}
		s.cells[key] = cl
	}
	return cl
}

// resolve is the internal resolver. chain holds the canonical keys being
// built above this call, outermost first.
func (s *Scope) resolve(key string, chain []string) (any, error) {
	c := s.c
	canonical := c.canonical(key)

	if slices.Contains(chain, canonical) {
		loop := append(append([]string(nil), chain...), canonical)
		return nil, &CircularDependencyError{Chain: loop}
	}

	var requester string
	if len(chain) > 0 {
		requester = chain[len(chain)-1]
		if f := c.contextual[requester][canonical]; f != nil {
			return s.build(canonical, f, chain)
		}
	}

	b, ok := c.bindings[canonical]
	if !ok {
		return nil, &UnregisteredServiceError{Key: key, Requester: requester}
	}

	switch b.lifetime {
	case Singleton:
		return c.singletons[canonical].get(func() (any, error) {
			return c.root.build(canonical, b.factory, chain)
		})
	case Scoped:
		return s.cell(canonical).get(func() (any, error) {
			return s.build(canonical, b.factory, chain)
		})
	default:
		return s.build(canonical, b.factory, chain)
	}
}

// build runs a factory, applies extenders and fires callbacks.
func (s *Scope) build(key string, f Factory, chain []string) (instance any, err error) {
	next := append(append([]string(nil), chain...), key)
	r := &resolution{scope: s, chain: next}

	defer func() {
		if p := recover(); p != nil {
			instance = nil
			if perr, ok := p.(error); ok {
				err = fmt.Errorf("container: factory for [%s] panicked: %w", key, perr)
				return
			}
			err = fmt.Errorf("container: factory for [%s] panicked: %v", key, p)
		}
	}()

	instance, err = f(r)
	if err != nil {
		return nil, fmt.Errorf("container: resolving [%s]: %w", key, err)
	}
	for _, ext := range s.c.extenders[key] {
		instance, err = ext(instance, r)
		if err != nil {
			return nil, fmt.Errorf("container: extending [%s]: %w", key, err)
		}
	}
	for _, cb := range s.c.afterResolving {
		cb(key, instance)
	}
	s.c.log.WithField("key", key).Trace("service built")
	return instance, nil
}

// resolution is the Resolver handed to factories; it carries the chain so
// nested lookups can detect cycles and pick contextual bindings.
type resolution struct {
	scope *Scope
	chain []string
}

func (r *resolution) Resolve(key string) (any, error) {
	return r.scope.resolve(key, r.chain)
}

func (r *resolution) Bound(key string) bool {
	return r.scope.c.Bound(key)
}

// cell holds one cached instance. Failed builds are not cached.
type cell struct {
	mu    sync.Mutex
	done  bool
	value any
}

func (cl *cell) get(build func() (any, error)) (any, error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.done {
		return cl.value, nil
	}
	v, err := build()
	if err != nil {
		return nil, err
	}
	cl.value, cl.done = v, true
	return v, nil
}

// ── Reflect helpers ───────────────────────────────────────────────────────────

// TypeKey returns the package-qualified type name of v, useful as a stable
// key when binding interfaces.
//
//	key := container.TypeKey((*files.Service)(nil))  // ".../modules/files.Service"
//	b.Singleton(key, factory)
func TypeKey(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.PkgPath() + "." + t.Name()
}

// ── Generics helper ───────────────────────────────────────────────────────────

// Resolve resolves key and type-asserts the result.
//
//	svc, err := container.Resolve[*files.Service](r, files.ServiceKey)
func Resolve[T any](r Resolver, key string) (T, error) {
	var zero T
	instance, err := r.Resolve(key)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		want := reflect.TypeOf((*T)(nil)).Elem()
		return zero, fmt.Errorf("container: [%s] resolved to %T, want %v", key, instance, want)
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](r Resolver, key string) T {
	v, err := Resolve[T](r, key)
	if err != nil {
		panic(err)
	}
	return v
}
