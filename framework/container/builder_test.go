package container_test

import (
	"errors"
	"testing"

	"github.com/km-arc/go-modular/framework/container"
)

func constant(v any) container.Factory {
	return func(container.Resolver) (any, error) { return v, nil }
}

// ── Freeze barrier ────────────────────────────────────────────────────────────

func TestBuilder_WritesAfterBuild_AreRejected(t *testing.T) {
	b := container.NewBuilder()
	if err := b.Singleton("svc", constant("v")); err != nil {
		t.Fatalf("Singleton: %v", err)
	}
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	writes := map[string]func() error{
		"Register":  func() error { return b.Register("x", constant(1), container.Transient) },
		"Singleton": func() error { return b.Singleton("x", constant(1)) },
		"Scoped":    func() error { return b.Scoped("x", constant(1)) },
		"Transient": func() error { return b.Transient("x", constant(1)) },
		"Instance":  func() error { return b.Instance("x", 1) },
		"Alias":     func() error { return b.Alias("svc", "alias") },
		"Tag":       func() error { return b.Tag("group", "svc") },
		"Extend": func() error {
			return b.Extend("svc", func(i any, _ container.Resolver) (any, error) { return i, nil })
		},
		"AfterResolving": func() error { return b.AfterResolving(func(string, any) {}) },
		"Give":           func() error { return b.When("svc").Needs("x").GiveValue(1) },
		"Rollback":       func() error { return b.Rollback(container.Checkpoint{}) },
	}

	for name, write := range writes {
		t.Run(name, func(t *testing.T) {
			var frozen *container.RegistryFrozenError
			if err := write(); !errors.As(err, &frozen) {
				t.Fatalf("expected *RegistryFrozenError, got %v", err)
			}
			if !container.IsProtocolError(write()) {
				t.Error("frozen write should be a protocol error")
			}
		})
	}

	if b.Bound("x") {
		t.Error("rejected write must not create a binding")
	}
}

func TestBuilder_BuildTwice_Fails(t *testing.T) {
	b := container.NewBuilder()
	c, err := b.Build()
	if err != nil || c == nil {
		t.Fatalf("first Build: c=%v err=%v", c, err)
	}
	var frozen *container.RegistryFrozenError
	if _, err := b.Build(); !errors.As(err, &frozen) {
		t.Fatalf("second Build: expected *RegistryFrozenError, got %v", err)
	}
	if !b.Frozen() {
		t.Error("Frozen() should be true after Build")
	}
}

// ── Registration ──────────────────────────────────────────────────────────────

func TestBuilder_DuplicateKey_LastWriteWins(t *testing.T) {
	b := container.NewBuilder()
	_ = b.Singleton("svc", constant("first"))
	_ = b.Singleton("svc", constant("second"))

	if got := b.Overwritten(); len(got) != 1 || got[0] != "svc" {
		t.Errorf("Overwritten: got %v, want [svc]", got)
	}

	c, _ := b.Build()
	got, err := c.Resolve("svc")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "second" {
		t.Errorf("got %v, want 'second'", got)
	}
}

func TestBuilder_InvalidArguments(t *testing.T) {
	b := container.NewBuilder()
	if err := b.Singleton("", constant(1)); !errors.Is(err, container.ErrEmptyKey) {
		t.Errorf("empty key: got %v", err)
	}
	if err := b.Singleton("k", nil); !errors.Is(err, container.ErrNilFactory) {
		t.Errorf("nil factory: got %v", err)
	}
	if err := b.Alias("k", "k"); !errors.Is(err, container.ErrSelfAlias) {
		t.Errorf("self alias: got %v", err)
	}
	if err := b.Extend("k", nil); !errors.Is(err, container.ErrNilExtender) {
		t.Errorf("nil extender: got %v", err)
	}
}

func TestBuilder_Keys_Sorted(t *testing.T) {
	b := container.NewBuilder()
	_ = b.Instance("zeta", 1)
	_ = b.Instance("alpha", 2)
	_ = b.Instance("mid", 3)

	got := b.Keys()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("Keys: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys: got %v, want %v", got, want)
		}
	}
}

// ── Checkpoints ───────────────────────────────────────────────────────────────

func TestBuilder_Rollback_RestoresPreviousBindings(t *testing.T) {
	b := container.NewBuilder()
	_ = b.Instance("shared", "original")

	cp := b.Checkpoint()
	_ = b.Instance("shared", "replaced")
	_ = b.Instance("extra", 1)
	_ = b.Tag("group", "extra")

	if err := b.Rollback(cp); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if b.Bound("extra") {
		t.Error("binding added after checkpoint should be gone")
	}
	if len(b.Overwritten()) != 0 {
		t.Errorf("Overwritten should be restored, got %v", b.Overwritten())
	}

	c, _ := b.Build()
	if got, _ := c.Resolve("shared"); got != "original" {
		t.Errorf("shared: got %v, want 'original'", got)
	}
	tagged, err := c.Tagged("group")
	if err != nil || len(tagged) != 0 {
		t.Errorf("Tagged(group): got %v, %v; want empty", tagged, err)
	}
}
