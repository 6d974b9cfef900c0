package container

// ContextualBuilder implements the fluent contextual binding API: when the
// factory for consumer resolves key, use a different factory.
//
//	b.When("files.service").Needs("cache").Give(func(r container.Resolver) (any, error) {
//	    return cache.NewFileStore("/tmp/files-cache")
//	})
type ContextualBuilder struct {
	builder  *Builder
	consumer string
	needs    string
}

// When starts a contextual binding chain for consumer.
func (b *Builder) When(consumer string) *ContextualBuilder {
	return &ContextualBuilder{builder: b, consumer: consumer}
}

// Needs specifies which key the consumer depends on.
func (cb *ContextualBuilder) Needs(key string) *ContextualBuilder {
	cb.needs = key
	return cb
}

// Give provides the factory used when the consumer resolves the needed key.
// The result is never cached.
func (cb *ContextualBuilder) Give(factory Factory) error {
	if cb.consumer == "" || cb.needs == "" {
		return ErrEmptyKey
	}
	if factory == nil {
		return ErrNilFactory
	}
	b := cb.builder
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return &RegistryFrozenError{Op: "give contextual binding", Key: cb.consumer + "->" + cb.needs}
	}

	consumer := b.canonical(cb.consumer)
	if _, ok := b.contextual[consumer]; !ok {
		b.contextual[consumer] = make(map[string]Factory)
	}
	b.contextual[consumer][b.canonical(cb.needs)] = factory
	return nil
}

// GiveValue is a shorthand for Give with a pre-built value.
//
//	b.When("files.service").Needs("cache.dir").GiveValue("/tmp/files-cache")
func (cb *ContextualBuilder) GiveValue(value any) error {
	return cb.Give(func(Resolver) (any, error) { return value, nil })
}
