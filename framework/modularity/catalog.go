package modularity

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// LibraryExtension returns the dynamic-library extension of the host
// platform, including the dot.
func LibraryExtension() string {
	switch runtime.GOOS {
	case "windows":
		return ".dll"
	case "darwin", "ios":
		return ".dylib"
	default:
		return ".so"
	}
}

// Catalog is the ordered list of modules the Manager will run. Build it
// once at startup and hand it to NewManager; order is registration order.
type Catalog struct {
	modules []*Descriptor
	ext     string
	log     logrus.FieldLogger
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithExtension overrides the library extension used by directory scans.
func WithExtension(ext string) CatalogOption {
	return func(c *Catalog) {
		if ext == "" {
			return
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.ext = ext
	}
}

// WithCatalogLogger sets the catalog logger.
func WithCatalogLogger(l logrus.FieldLogger) CatalogOption {
	return func(c *Catalog) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCatalog creates an empty catalog.
func NewCatalog(opts ...CatalogOption) *Catalog {
	c := &Catalog{ext: LibraryExtension(), log: discardLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddModule appends a builtin module. The prototype is only used for its
// type: every run instantiates a fresh zero value of it.
//
//	catalog.AddModule(&files.Module{}).AddModule(&diagnostics.Module{})
func (c *Catalog) AddModule(prototype Module) *Catalog {
	if prototype == nil {
		c.log.Warn("ignoring nil builtin module")
		return c
	}
	return c.add(&Descriptor{
		Name:     TypeName(prototype),
		Source:   SourceBuiltin,
		Resolved: true,
		factory:  prototypeFactory(prototype),
	})
}

// AddModuleFunc appends a builtin module built by f, for modules that need
// constructor arguments.
func (c *Catalog) AddModuleFunc(name string, f Factory) *Catalog {
	if f == nil {
		c.log.WithField("module", name).Warn("ignoring builtin module with nil factory")
		return c
	}
	return c.add(&Descriptor{
		Name:     name,
		Source:   SourceBuiltin,
		Resolved: true,
		factory:  f,
	})
}

// AddModuleFromPath appends an unresolved artifact module. The path is not
// checked here; the Loader reports problems later so one bad path cannot
// abort catalog construction.
func (c *Catalog) AddModuleFromPath(path string) *Catalog {
	return c.add(&Descriptor{
		ArtifactPath: path,
		Source:       SourceArtifact,
	})
}

// AddScanRegisterFromPath adds every file directly inside dir whose
// extension is the library extension, in directory order (by name).
// A missing directory means no plugins are installed and is not an error.
func (c *Catalog) AddScanRegisterFromPath(dir string) *Catalog {
	log := c.log.WithFields(logrus.Fields{"dir": dir, "ext": c.ext})

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug("module directory not found, nothing to scan")
		} else {
			log.WithError(err).Warn("module directory unreadable, skipping scan")
		}
		return c
	}

	found := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), c.ext) {
			continue
		}
		c.AddModuleFromPath(filepath.Join(dir, e.Name()))
		found++
	}
	log.WithField("found", found).Debug("module directory scanned")
	return c
}

// Modules returns a snapshot of the descriptors in insertion order.
func (c *Catalog) Modules() []Descriptor {
	out := make([]Descriptor, len(c.modules))
	for i, d := range c.modules {
		out[i] = *d
	}
	return out
}

// Len returns the number of descriptors.
func (c *Catalog) Len() int { return len(c.modules) }

// Extension returns the library extension used by directory scans.
func (c *Catalog) Extension() string { return c.ext }

func (c *Catalog) add(d *Descriptor) *Catalog {
	c.modules = append(c.modules, d)
	c.log.WithFields(logrus.Fields{
		"module": d.Name,
		"path":   d.ArtifactPath,
		"source": d.Source.String(),
	}).Debug("module added to catalog")
	return c
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
