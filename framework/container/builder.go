package container

import (
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// ── Binding types ─────────────────────────────────────────────────────────────

// Lifetime controls how long a resolved instance is reused.
type Lifetime int

const (
	// Transient builds a new instance on every Resolve.
	Transient Lifetime = iota
	// Singleton builds once per Container.
	Singleton
	// Scoped builds once per Scope. The Container is the root scope.
	Scoped
)

func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "transient"
	case Singleton:
		return "singleton"
	case Scoped:
		return "scoped"
	default:
		return "unknown"
	}
}

// Factory builds a concrete value. Dependencies must be resolved through r,
// never through a captured *Container, so cycles are detected.
type Factory func(r Resolver) (any, error)

// Extender decorates a freshly built instance.
type Extender func(instance any, r Resolver) (any, error)

// binding holds a registered factory and its lifetime.
type binding struct {
	factory  Factory
	lifetime Lifetime
}

// ── Builder ───────────────────────────────────────────────────────────────────

// Builder is the mutable half of the service registry. Modules add bindings
// to it during registration; Build freezes it and returns the read-only
// Container. Every mutation after Build fails with *RegistryFrozenError.
//
// Registering a key twice replaces the earlier binding (last write wins).
type Builder struct {
	mu sync.Mutex

	// key → binding
	bindings map[string]*binding

	// alias → key (canonical)
	aliases map[string]string

	// key → extenders, applied in registration order
	extenders map[string][]Extender

	// tag → []key
	tags map[string][]string

	// contextual: consumer → key → factory
	contextual map[string]map[string]Factory

	afterResolving []func(key string, instance any)

	overwritten []string
	frozen      bool
	log         logrus.FieldLogger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for registration diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// NewBuilder creates an empty builder.
func NewBuilder(opts ...Option) *Builder {
	silent := logrus.New()
	silent.SetOutput(io.Discard)
	b := &Builder{
		bindings:   make(map[string]*binding),
		aliases:    make(map[string]string),
		extenders:  make(map[string][]Extender),
		tags:       make(map[string][]string),
		contextual: make(map[string]map[string]Factory),
		log:        silent,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ── Registration ──────────────────────────────────────────────────────────────

// Register binds key to factory with the given lifetime.
func (b *Builder) Register(key string, factory Factory, lifetime Lifetime) error {
	if key == "" {
		return ErrEmptyKey
	}
	if factory == nil {
		return ErrNilFactory
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return &RegistryFrozenError{Op: "register", Key: key}
	}

	key = b.canonical(key)
	if prev, ok := b.bindings[key]; ok {
		b.overwritten = append(b.overwritten, key)
		b.log.WithFields(logrus.Fields{
			"key":      key,
			"previous": prev.lifetime.String(),
			"lifetime": lifetime.String(),
		}).Debug("service binding replaced")
	}
	b.bindings[key] = &binding{factory: factory, lifetime: lifetime}
	return nil
}

// Transient registers a factory that runs on every Resolve.
//
//	b.Transient("report", func(r container.Resolver) (any, error) {
//	    return &Report{}, nil
//	})
func (b *Builder) Transient(key string, factory Factory) error {
	return b.Register(key, factory, Transient)
}

// Singleton registers a factory whose result is cached by the Container.
//
//	b.Singleton("cache", func(r container.Resolver) (any, error) {
//	    cfg, err := container.Resolve[*config.Config](r, "config")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return cache.NewFileStore(cfg.Cache.Dir)
//	})
func (b *Builder) Singleton(key string, factory Factory) error {
	return b.Register(key, factory, Singleton)
}

// Scoped registers a factory whose result is cached per Scope.
func (b *Builder) Scoped(key string, factory Factory) error {
	return b.Register(key, factory, Scoped)
}

// Instance registers a pre-built value as a singleton.
//
//	b.Instance("config", cfg)
func (b *Builder) Instance(key string, instance any) error {
	return b.Register(key, func(Resolver) (any, error) { return instance, nil }, Singleton)
}

// Alias registers an alternative name for key.
//
//	b.Alias("files.cache", "cache")
func (b *Builder) Alias(key, alias string) error {
	if key == "" || alias == "" {
		return ErrEmptyKey
	}
	if key == alias {
		return ErrSelfAlias
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return &RegistryFrozenError{Op: "alias", Key: alias}
	}
	b.aliases[alias] = b.canonical(key)
	return nil
}

// Tag groups keys under a name resolvable with Container.Tagged.
//
//	b.Tag("reports", "cpu.report", "mem.report")
func (b *Builder) Tag(tag string, keys ...string) error {
	if tag == "" {
		return ErrEmptyKey
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return &RegistryFrozenError{Op: "tag", Key: tag}
	}
	b.tags[tag] = append(b.tags[tag], keys...)
	return nil
}

// Extend decorates every instance built for key.
//
//	b.Extend("logger", func(instance any, r container.Resolver) (any, error) {
//	    return instance.(*logrus.Logger).WithField("module", "files"), nil
//	})
func (b *Builder) Extend(key string, fn Extender) error {
	if key == "" {
		return ErrEmptyKey
	}
	if fn == nil {
		return ErrNilExtender
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return &RegistryFrozenError{Op: "extend", Key: key}
	}
	key = b.canonical(key)
	b.extenders[key] = append(b.extenders[key], fn)
	return nil
}

// AfterResolving registers a callback fired after any key is built.
func (b *Builder) AfterResolving(cb func(key string, instance any)) error {
	if cb == nil {
		return ErrNilFactory
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return &RegistryFrozenError{Op: "add resolving callback"}
	}
	b.afterResolving = append(b.afterResolving, cb)
	return nil
}

// ── Checkpoints ───────────────────────────────────────────────────────────────

// Checkpoint is an opaque copy of the builder's registrations.
type Checkpoint struct {
	bindings       map[string]*binding
	aliases        map[string]string
	extenders      map[string][]Extender
	tags           map[string][]string
	contextual     map[string]map[string]Factory
	afterResolving []func(string, any)
	overwritten    int
}

// Checkpoint captures the current registrations so a failed registration
// step can be undone with Rollback.
func (b *Builder) Checkpoint() Checkpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Checkpoint{
		bindings:       cloneMap(b.bindings),
		aliases:        cloneMap(b.aliases),
		extenders:      cloneSlices(b.extenders),
		tags:           cloneSlices(b.tags),
		contextual:     cloneContextual(b.contextual),
		afterResolving: append(([]func(string, any))(nil), b.afterResolving...),
		overwritten:    len(b.overwritten),
	}
}

// Rollback restores the registrations captured by cp.
func (b *Builder) Rollback(cp Checkpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return &RegistryFrozenError{Op: "rollback"}
	}
	b.bindings = cloneMap(cp.bindings)
	b.aliases = cloneMap(cp.aliases)
	b.extenders = cloneSlices(cp.extenders)
	b.tags = cloneSlices(cp.tags)
	b.contextual = cloneContextual(cp.contextual)
	b.afterResolving = append(([]func(string, any))(nil), cp.afterResolving...)
	if cp.overwritten <= len(b.overwritten) {
		b.overwritten = b.overwritten[:cp.overwritten]
	}
	return nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// Bound reports whether key has a binding.
func (b *Builder) Bound(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.bindings[b.canonical(key)]
	return ok
}

// Keys returns the registered keys, sorted.
func (b *Builder) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedKeys(b.bindings)
}

// Overwritten returns keys whose binding was replaced, in replacement order.
func (b *Builder) Overwritten() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.overwritten...)
}

// Frozen reports whether Build has been called.
func (b *Builder) Frozen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frozen
}

// Build freezes the builder and returns the read-only Container.
// It succeeds once; later calls return *RegistryFrozenError.
func (b *Builder) Build() (*Container, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return nil, &RegistryFrozenError{Op: "build"}
	}
	b.frozen = true

	c := &Container{
		bindings:       b.bindings,
		aliases:        b.aliases,
		extenders:      b.extenders,
		tags:           b.tags,
		contextual:     b.contextual,
		afterResolving: b.afterResolving,
		singletons:     make(map[string]*cell),
		log:            b.log,
	}
	for key, bnd := range b.bindings {
		if bnd.lifetime == Singleton {
			c.singletons[key] = &cell{}
		}
	}
	c.root = c.NewScope()

	b.log.WithField("bindings", len(b.bindings)).Debug("service registry frozen")
	return c, nil
}

// canonical resolves an alias to its canonical key (must hold mu).
func (b *Builder) canonical(key string) string {
	if target, ok := b.aliases[key]; ok {
		return target
	}
	return key
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSlices[V any](m map[string][]V) map[string][]V {
	out := make(map[string][]V, len(m))
	for k, v := range m {
		out[k] = append([]V(nil), v...)
	}
	return out
}

func cloneContextual(m map[string]map[string]Factory) map[string]map[string]Factory {
	out := make(map[string]map[string]Factory, len(m))
	for k, v := range m {
		out[k] = cloneMap(v)
	}
	return out
}
