package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/GriffinCanCode/Shelf/backend/internal/bridge"
	"github.com/GriffinCanCode/Shelf/backend/internal/capability"
	"github.com/GriffinCanCode/Shelf/backend/internal/domain/manifest"
	"github.com/GriffinCanCode/Shelf/backend/internal/domain/source"
	"github.com/GriffinCanCode/Shelf/backend/internal/domain/tracker"
	"github.com/GriffinCanCode/Shelf/backend/internal/events"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Shelf/backend/internal/providers/filesystem"
	"github.com/GriffinCanCode/Shelf/backend/internal/providers/http/client"
	"github.com/GriffinCanCode/Shelf/backend/internal/providers/storage"
	"github.com/GriffinCanCode/Shelf/backend/internal/sandbox"
	"github.com/GriffinCanCode/Shelf/backend/internal/shared/paths"
	"go.uber.org/zap"
)

// DefaultConcurrency bounds parallel installs in a batch
const DefaultConcurrency = 4

var (
	ErrMissingDependency = errors.New("registry dependency missing")
	ErrClosed            = errors.New("registry is closed")
	ErrWrongRoot         = errors.New("package kind does not match its root")
	ErrIDMismatch        = errors.New("package directory does not match its id")
	ErrNotInstalled      = errors.New("package not installed")
)

var categories = []manifest.Category{manifest.CategorySources, manifest.CategoryTrackers}

// HTTPClient downloads archives and fetches batch listings
type HTTPClient interface {
	Downloader
	Get(ctx context.Context, rawURL string) (*client.Response, error)
}

// Deps are the collaborators a Registry is built from
type Deps struct {
	Layout    paths.Layout
	HTTP      HTTPClient
	Injector  *capability.Injector
	Bridge    *bridge.Bridge
	Extractor *filesystem.Extractor // defaults to NewExtractor(MaxArchiveBytes)
	Pool      *sandbox.Pool         // optional warm contexts
	Sandbox   sandbox.Config        // used when Pool is nil
	Bus       events.Publisher

	// Stores purged on Remove when PurgeOnRemove is set
	Preferences   storage.Store
	Keychain      storage.Store
	PurgeOnRemove bool

	Concurrency     int
	MaxArchiveBytes int64
	Metrics         *monitoring.Metrics
	Logger          *logging.Logger
}

// Info describes one installed package
type Info struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Author   string            `json:"author,omitempty"`
	Icon     string            `json:"icon,omitempty"`
	Version  string            `json:"version"`
	Kind     manifest.Kind     `json:"type"`
	Category manifest.Category `json:"category"`
	Dir      string            `json:"dir"`
}

// instance is a built façade: a source.Source or a *tracker.Tracker
type instance interface {
	Manifest() manifest.Manifest
	Close() error
}

// Registry holds one instance per installed package
type Registry struct {
	deps   Deps
	logger *logging.Logger
	locks  *keyedMutex

	mu       sync.RWMutex
	sources  map[string]source.Source
	trackers map[string]*tracker.Tracker
	closed   bool
}

// New creates an empty registry. Call Startup to discover installed packages.
func New(deps Deps) (*Registry, error) {
	switch {
	case deps.Injector == nil:
		return nil, fmt.Errorf("%w: injector", ErrMissingDependency)
	case deps.Layout.Root == "":
		return nil, fmt.Errorf("%w: data directory", ErrMissingDependency)
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Bridge == nil {
		deps.Bridge = bridge.New(bridge.DefaultTimeout, deps.Metrics, deps.Logger)
	}
	if deps.Extractor == nil {
		deps.Extractor = filesystem.NewExtractor(deps.MaxArchiveBytes)
	}
	if deps.Sandbox == (sandbox.Config{}) {
		deps.Sandbox = sandbox.DefaultConfig()
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = DefaultConcurrency
	}

	return &Registry{
		deps:     deps,
		logger:   deps.Logger.Named("registry"),
		locks:    newKeyedMutex(),
		sources:  make(map[string]source.Source),
		trackers: make(map[string]*tracker.Tracker),
	}, nil
}

// Startup creates the data layout, clears leftovers from interrupted
// installs and loads every package found under Sources and Trackers.
// Packages that fail to load are logged and skipped.
func (r *Registry) Startup(ctx context.Context) error {
	for _, dir := range r.deps.Layout.StandardDirectories() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	r.sweep(r.deps.Layout.Staging())
	r.sweep(r.deps.Layout.Downloads())

	var loaded, failed int
	for _, cat := range categories {
		root := r.root(cat)
		entries, err := os.ReadDir(root)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", root, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			dir := filepath.Join(root, entry.Name())
			if err := r.discover(ctx, cat, dir); err != nil {
				r.logger.Warn("Skipping package",
					zap.String("dir", dir),
					zap.Error(err))
				failed++
				continue
			}
			loaded++
		}
	}

	r.updateGauges()
	r.logger.Info("Startup complete",
		zap.Int("loaded", loaded),
		zap.Int("failed", failed))
	return nil
}

func (r *Registry) discover(ctx context.Context, cat manifest.Category, dir string) error {
	pkg, err := manifest.Load(dir)
	if err != nil {
		return err
	}
	if pkg.Kind().Category() != cat {
		return fmt.Errorf("%w: %s package under %s", ErrWrongRoot, pkg.Kind(), cat)
	}
	if filepath.Base(dir) != pkg.ID() {
		return fmt.Errorf("%w: %s holds %s", ErrIDMismatch, filepath.Base(dir), pkg.ID())
	}

	unlock := r.locks.Lock(pkg.ID())
	defer unlock()

	inst, err := r.build(ctx, pkg)
	if err != nil {
		return err
	}
	if old := r.swap(inst); old != nil {
		old.Close()
	}
	return nil
}

// build creates a context, injects capabilities, evaluates the entry script
// and wraps the result in the façade for the package kind
func (r *Registry) build(ctx context.Context, pkg *manifest.Package) (instance, error) {
	sc, err := r.newContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("create context: %w", err)
	}
	fail := func(err error) (instance, error) {
		sc.Close()
		return nil, err
	}

	if err := r.deps.Injector.Inject(ctx, sc, pkg.Manifest); err != nil {
		return fail(fmt.Errorf("inject capabilities: %w", err))
	}
	if err := sc.Load(ctx, pkg.Manifest.Script, pkg.Source); err != nil {
		return fail(fmt.Errorf("load %s: %w", pkg.Manifest.Script, err))
	}

	if pkg.Kind().IsSource() {
		src, err := source.New(pkg.Manifest, sc, r.deps.Bridge)
		if err != nil {
			return fail(err)
		}
		return src, nil
	}
	t, err := tracker.New(pkg.Manifest, sc, r.deps.Bridge)
	if err != nil {
		return fail(err)
	}
	return t, nil
}

func (r *Registry) newContext(ctx context.Context) (*sandbox.Context, error) {
	if r.deps.Pool != nil {
		return r.deps.Pool.Acquire(ctx)
	}
	return sandbox.New(r.deps.Sandbox, r.deps.Logger, r.deps.Metrics)
}

// swap registers inst and returns the instance it replaced
func (r *Registry) swap(inst instance) instance {
	id := inst.Manifest().ID

	r.mu.Lock()
	defer r.mu.Unlock()

	switch v := inst.(type) {
	case source.Source:
		old, ok := r.sources[id]
		r.sources[id] = v
		if ok {
			return old
		}
	case *tracker.Tracker:
		old, ok := r.trackers[id]
		r.trackers[id] = v
		if ok {
			return old
		}
	}
	return nil
}

// drop unregisters the instance for id in cat
func (r *Registry) drop(cat manifest.Category, id string) instance {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cat == manifest.CategoryTrackers {
		if t, ok := r.trackers[id]; ok {
			delete(r.trackers, id)
			return t
		}
		return nil
	}
	if s, ok := r.sources[id]; ok {
		delete(r.sources, id)
		return s
	}
	return nil
}

// Source returns the loaded source with id
func (r *Registry) Source(id string) (source.Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[id]
	return s, ok
}

// Tracker returns the loaded tracker with id
func (r *Registry) Tracker(id string) (*tracker.Tracker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trackers[id]
	return t, ok
}

// Sources returns loaded sources ordered by id
func (r *Registry) Sources() []source.Source {
	r.mu.RLock()
	out := make([]source.Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Trackers returns loaded trackers ordered by id
func (r *Registry) Trackers() []*tracker.Tracker {
	r.mu.RLock()
	out := make([]*tracker.Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// List describes every loaded package, sources first
func (r *Registry) List() []Info {
	var out []Info
	for _, s := range r.Sources() {
		out = append(out, r.info(s.Manifest()))
	}
	for _, t := range r.Trackers() {
		out = append(out, r.info(t.Manifest()))
	}
	return out
}

// Lookup describes the package with id, preferring sources
func (r *Registry) Lookup(id string) (Info, bool) {
	if s, ok := r.Source(id); ok {
		return r.info(s.Manifest()), true
	}
	if t, ok := r.Tracker(id); ok {
		return r.info(t.Manifest()), true
	}
	return Info{}, false
}

// Files lists the on-disk contents of an installed package
func (r *Registry) Files(ctx context.Context, id string) (*filesystem.Inventory, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	info, ok := r.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, id)
	}
	return filesystem.Inspect(ctx, info.Dir)
}

// Count returns the number of loaded packages
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources) + len(r.trackers)
}

// Close closes every instance. The registry cannot be used afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	insts := make([]instance, 0, len(r.sources)+len(r.trackers))
	for _, s := range r.sources {
		insts = append(insts, s)
	}
	for _, t := range r.trackers {
		insts = append(insts, t)
	}
	r.sources = make(map[string]source.Source)
	r.trackers = make(map[string]*tracker.Tracker)
	r.mu.Unlock()

	var errs []error
	for _, inst := range insts {
		if err := inst.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.updateGauges()
	return errors.Join(errs...)
}

func (r *Registry) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *Registry) info(m manifest.Manifest) Info {
	cat := m.Kind.Category()
	return Info{
		ID:       m.ID,
		Name:     m.Name,
		Author:   m.Author,
		Icon:     m.Icon,
		Version:  m.Version,
		Kind:     m.Kind,
		Category: cat,
		Dir:      r.deps.Layout.Package(r.root(cat), m.ID),
	}
}

func (r *Registry) root(cat manifest.Category) string {
	if cat == manifest.CategoryTrackers {
		return r.deps.Layout.Trackers()
	}
	return r.deps.Layout.Sources()
}

// publish posts the change notification for cat
func (r *Registry) publish(cat manifest.Category) {
	if r.deps.Bus == nil {
		return
	}
	if cat == manifest.CategoryTrackers {
		r.deps.Bus.Publish(events.TopicTrackersChanged, nil)
		return
	}
	r.deps.Bus.Publish(events.TopicSourcesChanged, nil)
}

func (r *Registry) updateGauges() {
	r.mu.RLock()
	sources, trackers := len(r.sources), len(r.trackers)
	r.mu.RUnlock()

	r.deps.Metrics.SetPackages(string(manifest.CategorySources), sources)
	r.deps.Metrics.SetPackages(string(manifest.CategoryTrackers), trackers)
	r.deps.Metrics.SetTotalPackages(sources + trackers)
}

// sweep empties a temporary directory
func (r *Registry) sweep(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		p := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(p); err != nil {
			r.logger.Warn("Failed to remove leftover", zap.String("path", p), zap.Error(err))
		}
	}
}
