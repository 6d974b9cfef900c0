// Package container provides the two-phase service registry shared by every
// module of the host.
//
// # Lifecycle
//
//  1. Create: b := container.NewBuilder()
//  2. Register: modules add bindings to b (no resolution is possible yet)
//  3. Freeze: c, err := b.Build()   (b rejects all writes from now on)
//  4. Resolve: c.Resolve("key") / container.Resolve[T](c, "key")
//
// # Bindings
//
//	// Transient: new instance on every Resolve
//	b.Transient("report", func(r container.Resolver) (any, error) { return &Report{}, nil })
//
//	// Singleton: created once per Container
//	b.Singleton("cache", func(r container.Resolver) (any, error) {
//	    cfg, err := container.Resolve[*config.Config](r, "config")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return cache.NewFileStore(cfg.Cache.Dir)
//	})
//
//	// Scoped: created once per Scope; the Container is the root scope
//	b.Scoped("session", newSession)
//
//	// Pre-built value
//	b.Instance("config", cfg)
//
//	// Alias
//	b.Alias("files.cache", "cache")
//
// Registering the same key twice replaces the earlier binding; the builder
// records the key in Overwritten.
//
// # Resolving
//
// Factories receive a Resolver and must resolve their dependencies through
// it. That keeps the resolution chain, which is how circular dependencies
// are reported as *CircularDependencyError instead of deadlocking.
//
// Resolving a key without a binding fails with *UnregisteredServiceError;
// writing to a built registry fails with *RegistryFrozenError. Both are
// programmer errors (see IsProtocolError).
//
// # Contextual Binding
//
//	b.When("files.service").
//	    Needs("cache").
//	    Give(func(r container.Resolver) (any, error) { return memStore, nil })
//
// # Tags
//
//	b.Tag("reports", "cpu.report", "mem.report")
//	reports, err := c.Tagged("reports")
//
// # Extend / Decorate
//
//	b.Extend("logger", func(instance any, r container.Resolver) (any, error) {
//	    return instance.(*logrus.Logger).WithField("component", "host"), nil
//	})
package container
