package modularity

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyRun     = errors.New("modularity: manager has already run")
	ErrNoEntryPoint   = errors.New("modularity: artifact does not export " + EntryPoint)
	ErrBadEntryPoint  = errors.New("modularity: " + EntryPoint + " has an unsupported signature")
	ErrNilModule      = errors.New("modularity: factory returned a nil module")
	ErrLoadTimeout    = errors.New("modularity: artifact load timed out")
	ErrRegistryFrozen = errors.New("modularity: module froze the registry during registration")
)

// LoadError isolates a failure to load one artifact.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("modularity: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ModuleError isolates a failure of one module in one phase.
type ModuleError struct {
	Module string
	Phase  Phase
	Err    error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("modularity: module %s: %s: %v", e.Module, e.Phase, e.Err)
}

func (e *ModuleError) Unwrap() error { return e.Err }
