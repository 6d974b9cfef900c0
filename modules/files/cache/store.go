// Package cache stores small JSON documents by name, on disk or in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/km-arc/go-modular/framework/config"
)

// ErrNotFound is returned by Read when nothing is stored under a name.
var ErrNotFound = errors.New("cache: entry not found")

// Store is a JSON document store.
type Store interface {
	// Write stores v, JSON-encoded, under name, replacing any previous value.
	Write(ctx context.Context, name string, v any) error
	// Read decodes the document stored under name into v. It returns an
	// error wrapping ErrNotFound when there is none.
	Read(ctx context.Context, name string, v any) error
	// Delete removes name. Deleting a missing entry is not an error.
	Delete(ctx context.Context, name string) error
	Close() error
}

// New opens the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	switch cfg.Driver {
	case "", "file":
		return NewFileStore(cfg.Dir)
	case "redis":
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}

// checkName rejects names that could escape the store's namespace.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("cache: invalid entry name %q", name)
	}
	return nil
}
