package modularity_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-modular/framework/container"
	"github.com/km-arc/go-modular/framework/modularity"
)

// ── Fake artifacts ───────────────────────────────────────────────────────────

// fakeArtifact is an opened plugin with a fixed symbol table.
type fakeArtifact map[string]any

func (a fakeArtifact) Lookup(symbol string) (any, error) {
	v, ok := a[symbol]
	if !ok {
		return nil, fmt.Errorf("plugin: symbol %s not found", symbol)
	}
	return v, nil
}

// fakeOpener serves artifacts by path and counts opens.
type fakeOpener struct {
	mu        sync.Mutex
	artifacts map[string]modularity.Artifact
	opened    []string
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{artifacts: map[string]modularity.Artifact{}}
}

func (o *fakeOpener) add(path string, art modularity.Artifact) {
	o.artifacts[path] = art
}

func (o *fakeOpener) Open(path string) (modularity.Artifact, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, path)
	art, ok := o.artifacts[path]
	if !ok {
		return nil, fmt.Errorf("plugin.Open(%q): realpath failed: %w", path, os.ErrNotExist)
	}
	return art, nil
}

func (o *fakeOpener) opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened)
}

// entry builds an artifact exporting NewModule.
func entry(f func() modularity.Module) fakeArtifact {
	return fakeArtifact{modularity.EntryPoint: f}
}

// ── Test modules ─────────────────────────────────────────────────────────────

// svcModule registers "svc" as a singleton.
type svcModule struct{ modularity.BaseModule }

type svc struct{ id int }

func (svcModule) RegisterTypes(b *container.Builder) error {
	return b.Singleton("svc", func(container.Resolver) (any, error) {
		return &svc{id: 1}, nil
	})
}

// statefulModule has state so instances are distinguishable.
type statefulModule struct {
	modularity.BaseModule
	calls int
}

// alphaPlugin and betaPlugin stand in for modules living in plugin files.
type alphaPlugin struct{ modularity.BaseModule }

func (alphaPlugin) RegisterTypes(b *container.Builder) error {
	return b.Instance("alpha", "from alpha")
}

type betaPlugin struct{ modularity.BaseModule }

func (betaPlugin) RegisterTypes(b *container.Builder) error {
	return b.Instance("beta", "from beta")
}

// hookModule delegates both lifecycle steps to closures and records them.
type hookModule struct {
	name     string
	journal  *journal
	register func(b *container.Builder) error
	init     func(ctx context.Context, r container.Resolver) error
}

func (m *hookModule) RegisterTypes(b *container.Builder) error {
	m.journal.add("register " + m.name)
	if m.register == nil {
		return nil
	}
	return m.register(b)
}

func (m *hookModule) OnInitialized(ctx context.Context, r container.Resolver) error {
	m.journal.add("init " + m.name)
	if m.init == nil {
		return nil
	}
	return m.init(ctx, r)
}

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// hook returns a factory for a hookModule sharing j.
func hook(name string, j *journal, register func(*container.Builder) error, init func(context.Context, container.Resolver) error) modularity.Factory {
	return func() (modularity.Module, error) {
		return &hookModule{name: name, journal: j, register: register, init: init}, nil
	}
}

var errBoom = errors.New("boom")

// touch creates empty files under dir and returns their paths.
func touch(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, nil, 0o644))
		paths = append(paths, p)
	}
	return paths
}
