package modularity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/km-arc/go-modular/framework/container"
)

// ManagerKey is the registry key a host binds its Manager under, so modules
// can read the run report. The Manager never binds itself: a run over an
// empty catalog leaves the registry empty.
const ManagerKey = "modularity.manager"

// ── States & phases ───────────────────────────────────────────────────────────

// State is the Manager's position in the run pipeline.
type State int

const (
	StateIdle State = iota
	StateDiscovering
	StateRegistering
	StateFrozen
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateRegistering:
		return "registering"
	case StateFrozen:
		return "frozen"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON reports.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateFailed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("modularity: unknown state %q", text)
}

// Phase names the step a module failed in.
type Phase string

const (
	PhaseDiscover    Phase = "discover"
	PhaseInstantiate Phase = "instantiate"
	PhaseRegister    Phase = "register"
	PhaseInitialize  Phase = "initialize"
)

// ── Report ────────────────────────────────────────────────────────────────────

// ModuleStatus is the outcome of one catalog entry.
type ModuleStatus struct {
	Name        string `json:"name"`
	Path        string `json:"path,omitempty"`
	Source      string `json:"source"`
	Resolved    bool   `json:"resolved"`
	Registered  bool   `json:"registered"`
	Initialized bool   `json:"initialized"`
}

// Failure is one isolated module failure.
type Failure struct {
	Module  string `json:"module,omitempty"`
	Path    string `json:"path,omitempty"`
	Phase   Phase  `json:"phase"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

// Report summarises a run.
type Report struct {
	RunID    string         `json:"run_id"`
	State    State          `json:"state"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Modules  []ModuleStatus `json:"modules"`
	Failures []Failure      `json:"failures"`
	Error    string         `json:"error,omitempty"`
}

// FailuresIn returns the failures recorded for phase.
func (r Report) FailuresIn(phase Phase) []Failure {
	var out []Failure
	for _, f := range r.Failures {
		if f.Phase == phase {
			out = append(out, f)
		}
	}
	return out
}

// ── Manager ───────────────────────────────────────────────────────────────────

// Manager drives the module pipeline: discover, register, freeze,
// initialize. It owns the catalog and the registry builder for one run.
//
// Failures local to one module are logged, reported and skipped. Registry
// protocol violations (writing after the freeze, resolving an unbound key)
// are fatal: the run ends in StateFailed and Run returns the error.
type Manager struct {
	catalog     *Catalog
	loader      *Loader
	builder     *container.Builder
	concurrency int
	log         logrus.FieldLogger

	mu        sync.RWMutex
	ran       bool
	state     State
	report    Report
	container *container.Container
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLoader replaces the default loader.
func WithLoader(l *Loader) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.loader = l
		}
	}
}

// WithBuilder supplies the registry builder, e.g. one pre-seeded with host
// services such as configuration and the logger.
func WithBuilder(b *container.Builder) ManagerOption {
	return func(m *Manager) {
		if b != nil {
			m.builder = b
		}
	}
}

// WithManagerLogger sets the manager logger.
func WithManagerLogger(l logrus.FieldLogger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithDiscoveryConcurrency loads up to n artifacts in parallel. Registration
// and initialization always run one module at a time in catalog order.
func WithDiscoveryConcurrency(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// NewManager creates a manager for catalog.
func NewManager(catalog *Catalog, opts ...ManagerOption) *Manager {
	m := &Manager{
		catalog:     catalog,
		concurrency: 1,
		log:         discardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.loader == nil {
		m.loader = NewLoader(WithLoaderLogger(m.log))
	}
	if m.builder == nil {
		m.builder = container.NewBuilder(container.WithLogger(m.log))
	}
	if m.catalog == nil {
		m.catalog = NewCatalog()
	}
	return m
}

// active pairs a descriptor with its live module instance.
type active struct {
	index  int
	desc   *Descriptor
	module Module
}

// Run executes every phase synchronously and returns the frozen registry.
// A Manager runs once; later calls return ErrAlreadyRun.
func (m *Manager) Run(ctx context.Context) (*container.Container, error) {
	m.mu.Lock()
	if m.ran {
		m.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	m.ran = true
	m.report = Report{
		RunID:    uuid.NewString(),
		State:    StateIdle,
		Started:  time.Now(),
		Modules:  make([]ModuleStatus, len(m.catalog.modules)),
		Failures: []Failure{},
	}
	m.mu.Unlock()

	log := m.log.WithField("run", m.report.RunID)
	log.WithField("modules", len(m.catalog.modules)).Info("module run started")

	// Discovering
	m.setState(StateDiscovering)
	m.discover(ctx, log)
	if err := ctx.Err(); err != nil {
		return nil, m.fail(log, fmt.Errorf("modularity: run canceled: %w", err))
	}

	// Registering
	m.setState(StateRegistering)
	if m.builder.Frozen() {
		return nil, m.fail(log, &container.RegistryFrozenError{Op: "register"})
	}
	modules, err := m.register(log)
	if err != nil {
		return nil, m.fail(log, err)
	}

	// Frozen
	m.setState(StateFrozen)
	c, err := m.builder.Build()
	if err != nil {
		return nil, m.fail(log, err)
	}
	m.mu.Lock()
	m.container = c
	m.mu.Unlock()

	// Initializing
	m.setState(StateInitializing)
	if err := m.initialize(ctx, log, c, modules); err != nil {
		return nil, m.fail(log, err)
	}

	m.setState(StateReady)
	m.mu.Lock()
	m.report.Finished = time.Now()
	failures := len(m.report.Failures)
	m.mu.Unlock()
	log.WithFields(logrus.Fields{
		"initialized": len(modules),
		"failures":    failures,
	}).Info("module run complete")
	return c, nil
}

// discover resolves every descriptor. Load failures stay on the descriptor.
func (m *Manager) discover(ctx context.Context, log logrus.FieldLogger) {
	log.Info("discovering modules")

	if m.concurrency <= 1 {
		for _, d := range m.catalog.modules {
			_ = m.loader.Resolve(ctx, d)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(m.concurrency)
		for _, d := range m.catalog.modules {
			d := d
			g.Go(func() error {
				_ = m.loader.Resolve(ctx, d)
				return nil
			})
		}
		_ = g.Wait()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.catalog.modules {
		m.report.Modules[i] = ModuleStatus{
			Name:     d.Name,
			Path:     d.ArtifactPath,
			Source:   d.Source.String(),
			Resolved: d.Resolved,
		}
		if !d.Resolved {
			m.recordLocked(d, PhaseDiscover, d.Err)
		}
	}
}

// register instantiates resolved modules and lets each add its bindings.
// A failing module is rolled back out of the builder and skipped.
func (m *Manager) register(log logrus.FieldLogger) ([]active, error) {
	log.Info("registering module services")

	var modules []active
	for i, d := range m.catalog.modules {
		if !d.Resolved {
			continue
		}
		mlog := log.WithField("module", d.Name)

		mod, err := d.Instantiate()
		if err != nil {
			if container.IsProtocolError(err) {
				return nil, err
			}
			m.record(d, PhaseInstantiate, err)
			mlog.WithError(err).Warn("module not instantiated")
			continue
		}

		cp := m.builder.Checkpoint()
		err = guard(func() error { return mod.RegisterTypes(m.builder) })
		if m.builder.Frozen() {
			return nil, &ModuleError{Module: d.Name, Phase: PhaseRegister, Err: ErrRegistryFrozen}
		}
		if err != nil {
			if container.IsProtocolError(err) {
				return nil, &ModuleError{Module: d.Name, Phase: PhaseRegister, Err: err}
			}
			if rerr := m.builder.Rollback(cp); rerr != nil {
				return nil, rerr
			}
			m.record(d, PhaseRegister, err)
			mlog.WithError(err).Warn("module registration failed, bindings rolled back")
			continue
		}

		m.mu.Lock()
		m.report.Modules[i].Registered = true
		m.mu.Unlock()
		modules = append(modules, active{index: i, desc: d, module: mod})
		mlog.Info("module services registered")
	}
	return modules, nil
}

// initialize runs OnInitialized for every registered module in order.
func (m *Manager) initialize(ctx context.Context, log logrus.FieldLogger, c *container.Container, modules []active) error {
	log.Info("initializing modules")

	for _, a := range modules {
		mlog := log.WithField("module", a.desc.Name)
		err := guard(func() error { return a.module.OnInitialized(ctx, c) })
		if err != nil {
			if container.IsProtocolError(err) {
				return &ModuleError{Module: a.desc.Name, Phase: PhaseInitialize, Err: err}
			}
			m.record(a.desc, PhaseInitialize, err)
			mlog.WithError(err).Warn("module initialization failed")
			continue
		}
		m.mu.Lock()
		m.report.Modules[a.index].Initialized = true
		m.mu.Unlock()
		mlog.Debug("module initialized")
	}
	return nil
}

func (m *Manager) fail(log logrus.FieldLogger, err error) error {
	m.mu.Lock()
	m.state = StateFailed
	m.report.State = StateFailed
	m.report.Error = err.Error()
	m.report.Finished = time.Now()
	m.mu.Unlock()
	log.WithError(err).Error("module run failed")
	return err
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	m.report.State = s
}

func (m *Manager) record(d *Descriptor, phase Phase, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLocked(d, phase, err)
}

func (m *Manager) recordLocked(d *Descriptor, phase Phase, err error) {
	if err == nil {
		err = errors.New("unresolved")
	}
	m.report.Failures = append(m.report.Failures, Failure{
		Module:  d.Name,
		Path:    d.ArtifactPath,
		Phase:   phase,
		Message: err.Error(),
		Err:     err,
	})
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Report returns a copy of the run report.
func (m *Manager) Report() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.report
	r.Modules = append([]ModuleStatus(nil), m.report.Modules...)
	r.Failures = append([]Failure(nil), m.report.Failures...)
	return r
}

// Container returns the frozen registry, nil before the Frozen state.
func (m *Manager) Container() *container.Container {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.container
}

// Catalog returns the catalog the manager runs.
func (m *Manager) Catalog() *Catalog { return m.catalog }

// guard runs fn and turns a panic into an error. Error panics keep their
// type so protocol violations raised with panic are still recognised.
func guard(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if perr, ok := p.(error); ok {
				err = fmt.Errorf("panic: %w", perr)
				return
			}
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}
