package modularity

import (
	"context"
	"fmt"
	"plugin"
	"time"

	"github.com/sirupsen/logrus"
)

// EntryPoint is the symbol every module artifact must export:
//
//	// package main, built with -buildmode=plugin
//	func NewModule() modularity.Module { return &Module{} }
//
// func() (modularity.Module, error) is accepted as well.
const EntryPoint = "NewModule"

// Artifact is an opened module file.
type Artifact interface {
	Lookup(symbol string) (any, error)
}

// Opener opens artifact files.
type Opener interface {
	Open(path string) (Artifact, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (Artifact, error)

func (f OpenerFunc) Open(path string) (Artifact, error) { return f(path) }

// PluginOpener opens Go plugins built with -buildmode=plugin.
type PluginOpener struct{}

func (PluginOpener) Open(path string) (Artifact, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return pluginArtifact{p: p}, nil
}

type pluginArtifact struct{ p *plugin.Plugin }

func (a pluginArtifact) Lookup(symbol string) (any, error) {
	return a.p.Lookup(symbol)
}

// ── Loader ────────────────────────────────────────────────────────────────────

// Loader turns path-only descriptors into resolved ones.
type Loader struct {
	opener  Opener
	timeout time.Duration
	log     logrus.FieldLogger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOpener replaces the artifact opener (PluginOpener by default).
func WithOpener(o Opener) LoaderOption {
	return func(l *Loader) {
		if o != nil {
			l.opener = o
		}
	}
}

// WithLoadTimeout bounds how long one artifact may take to open. The
// plugin runtime cannot cancel an open, so a timed-out open keeps running
// in the background and its result is dropped.
func WithLoadTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) { l.timeout = d }
}

// WithLoaderLogger sets the loader logger.
func WithLoaderLogger(lg logrus.FieldLogger) LoaderOption {
	return func(l *Loader) {
		if lg != nil {
			l.log = lg
		}
	}
}

// NewLoader creates a loader backed by the Go plugin runtime.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{opener: PluginOpener{}, log: discardLogger()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolve loads d's artifact and completes d in place. It is a no-op for
// resolved descriptors. On failure d stays unresolved, d.Err is set and a
// *LoadError is returned; callers are expected to carry on with the other
// descriptors.
func (l *Loader) Resolve(ctx context.Context, d *Descriptor) error {
	if d.Resolved {
		return nil
	}
	log := l.log.WithField("path", d.ArtifactPath)

	factory, name, err := l.load(ctx, d.ArtifactPath)
	if err != nil {
		lerr := &LoadError{Path: d.ArtifactPath, Err: err}
		d.Err = lerr
		log.WithError(err).Warn("module artifact not loaded")
		return lerr
	}

	d.factory = factory
	d.Name = name
	d.Resolved = true
	d.Err = nil
	log.WithField("module", name).Info("module discovered in artifact")
	return nil
}

func (l *Loader) load(ctx context.Context, path string) (Factory, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if path == "" {
		return nil, "", fmt.Errorf("empty artifact path")
	}

	art, err := l.open(ctx, path)
	if err != nil {
		return nil, "", err
	}
	sym, err := art.Lookup(EntryPoint)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNoEntryPoint, err)
	}
	factory, err := entryFactory(sym)
	if err != nil {
		return nil, "", err
	}

	// One probe instance gives the module its name and proves the entry
	// point works before registration starts.
	var probe Module
	if err := guard(func() error {
		var perr error
		probe, perr = factory()
		return perr
	}); err != nil {
		return nil, "", fmt.Errorf("%s: %w", EntryPoint, err)
	}
	if probe == nil {
		return nil, "", ErrNilModule
	}
	return factory, TypeName(probe), nil
}

func (l *Loader) open(ctx context.Context, path string) (Artifact, error) {
	if l.timeout <= 0 {
		return l.opener.Open(path)
	}

	type result struct {
		art Artifact
		err error
	}
	ch := make(chan result, 1)
	go func() {
		art, err := l.opener.Open(path)
		ch <- result{art: art, err: err}
	}()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.art, r.err
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrLoadTimeout, l.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// entryFactory converts the exported symbol into a Factory. Plugins export
// functions by value and variables by pointer.
func entryFactory(sym any) (Factory, error) {
	switch f := sym.(type) {
	case func() Module:
		return func() (Module, error) { return f(), nil }, nil
	case func() (Module, error):
		return f, nil
	case *func() Module:
		if f == nil || *f == nil {
			return nil, ErrBadEntryPoint
		}
		fn := *f
		return func() (Module, error) { return fn(), nil }, nil
	case *func() (Module, error):
		if f == nil || *f == nil {
			return nil, ErrBadEntryPoint
		}
		return *f, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrBadEntryPoint, sym)
	}
}
