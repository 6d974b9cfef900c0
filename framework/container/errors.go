package container

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyKey    = errors.New("container: empty service key")
	ErrNilFactory  = errors.New("container: nil factory")
	ErrSelfAlias   = errors.New("container: key aliased to itself")
	ErrNilExtender = errors.New("container: nil extender")
)

// RegistryFrozenError is returned for any mutation attempted after Build.
type RegistryFrozenError struct {
	Op  string
	Key string
}

func (e *RegistryFrozenError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("container: registry is frozen: cannot %s", e.Op)
	}
	return fmt.Sprintf("container: registry is frozen: cannot %s [%s]", e.Op, e.Key)
}

// UnregisteredServiceError is returned when a key has no binding.
// Requester is the key whose factory asked for it, empty for top-level calls.
type UnregisteredServiceError struct {
	Key       string
	Requester string
}

func (e *UnregisteredServiceError) Error() string {
	if e.Requester != "" {
		return fmt.Sprintf("container: no binding registered for [%s] (required by [%s])", e.Key, e.Requester)
	}
	return fmt.Sprintf("container: no binding registered for [%s]", e.Key)
}

// CircularDependencyError reports a resolution chain that loops back on itself.
type CircularDependencyError struct {
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return "container: circular dependency: " + strings.Join(e.Chain, " -> ")
}

// IsProtocolError reports whether err is a registry protocol violation:
// a write after Build or a resolve of an unbound key.
func IsProtocolError(err error) bool {
	var frozen *RegistryFrozenError
	var unbound *UnregisteredServiceError
	return errors.As(err, &frozen) || errors.As(err, &unbound)
}
