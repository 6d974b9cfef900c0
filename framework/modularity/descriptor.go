package modularity

// Source tells where a module came from.
type Source int

const (
	// SourceBuiltin modules are compiled into the host.
	SourceBuiltin Source = iota
	// SourceArtifact modules are loaded from an external plugin file.
	SourceArtifact
)

func (s Source) String() string {
	switch s {
	case SourceBuiltin:
		return "builtin"
	case SourceArtifact:
		return "artifact"
	default:
		return "unknown"
	}
}

// Descriptor identifies one pluggable unit of the catalog.
//
// A builtin descriptor is created resolved. An artifact descriptor starts
// with only ArtifactPath and becomes resolved only through Loader.Resolve.
type Descriptor struct {
	Name         string
	ArtifactPath string
	Source       Source
	Resolved     bool

	// Err is the last load error; nil once resolved.
	Err error

	factory Factory
}

// Instantiate builds a fresh module instance. Panics in the factory are
// returned as errors.
func (d *Descriptor) Instantiate() (m Module, err error) {
	if !d.Resolved || d.factory == nil {
		return nil, &ModuleError{Module: d.label(), Phase: PhaseInstantiate, Err: ErrNilModule}
	}
	err = guard(func() error {
		var ferr error
		m, ferr = d.factory()
		return ferr
	})
	if err == nil && m == nil {
		err = ErrNilModule
	}
	if err != nil {
		return nil, &ModuleError{Module: d.label(), Phase: PhaseInstantiate, Err: err}
	}
	return m, nil
}

// label is the best available identifier for logs.
func (d *Descriptor) label() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ArtifactPath
}
