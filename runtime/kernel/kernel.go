// Package kernel wires the runtime registries into one explicit context.
//
// A Kernel owns the symbol table, the code loader registry with its four
// category loaders, the lifecycle dispatcher, the lookup service, the bean
// container and the entity manager. Independent kernels share nothing, so
// tests build a fresh one per case.
//
// # Bootstrap
//
// The category phase handlers and code loaders are methods of an internal
// type tagged with tags.PhaseHandler and tags.CodeLoader. New extracts that
// type with a symbols.Extractor and binds every tagged method, the same way
// business classes are discovered.
//
// # Tick
//
// Update drains pending reload requests, flushes Start, runs the host
// simulation and flushes Destroy. Start is therefore deferred to the next
// tick while Destroy completes within the tick that scheduled it.
package kernel

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/nucleus/runtime/beans"
	"github.com/conduit-lang/nucleus/runtime/entity"
	"github.com/conduit-lang/nucleus/runtime/lifecycle"
	"github.com/conduit-lang/nucleus/runtime/loader"
	"github.com/conduit-lang/nucleus/runtime/lookup"
	"github.com/conduit-lang/nucleus/runtime/symbols"
)

var (
	// ErrBootstrap is returned when a built-in handler cannot be bound
	ErrBootstrap = errors.New("kernel bootstrap failed")
	// ErrClassRejected is returned when a category loader refuses a class
	ErrClassRejected = errors.New("class rejected by loader")
	// ErrNoBinding is returned when a message reaches an instance with no matching binding
	ErrNoBinding = errors.New("no matching binding")
)

// EntityManager finishes the lifecycle transitions the category handlers
// delegate to it, and reports instance state for the component guards.
// entity.World is the reference implementation.
type EntityManager interface {
	BeginScene(scene any) error
	BeginObject(object any) error
	BeginView(view any) error
	BeginComponent(component any) error
	RemoveScene(scene any) error
	RemoveObject(object any) error
	RemoveView(view any) error
	RemoveComponent(component any) error
	IsStarted(instance any) bool
	IsDestroying(instance any) bool
	// Providers returns the lookup providers of the scene, object and view
	// categories keyed by category base type.
	Providers() map[reflect.Type]lookup.Provider
}

// Options configure a Kernel
type Options struct {
	Logger *zap.Logger
	// Manager replaces the built-in entity.World. Its scheduling calls must
	// go through the kernel.
	Manager EntityManager
	// StrictBindings rejects classes with malformed bindings
	StrictBindings bool
}

type manifestSource struct {
	path     string
	manifest *beans.Manifest
}

// Kernel is the runtime context. Except for RequestReload it must only be
// used from the goroutine driving Update.
type Kernel struct {
	extractor  *symbols.Extractor
	loaders    *loader.Registry
	scenes     *loader.CategoryLoader[*loader.SceneInfo]
	objects    *loader.CategoryLoader[*loader.ObjectInfo]
	views      *loader.CategoryLoader[*loader.ViewInfo]
	components *loader.CategoryLoader[*loader.ComponentInfo]
	dispatcher *lifecycle.Dispatcher
	lookup     *lookup.Service
	manager    EntityManager
	world      *entity.World
	beans      *beans.Container
	manifests  []manifestSource
	logger     *zap.Logger

	mu        sync.Mutex
	reloadAll bool
	reloads   []reflect.Type

	ticks uint64
}

// New creates a kernel and binds its built-in handlers
func New(opts Options) (*Kernel, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loaderOpts := loader.Options{StrictBindings: opts.StrictBindings}

	k := &Kernel{
		extractor:  symbols.NewExtractor(nil, logger.Named("symbols")),
		loaders:    loader.NewRegistry(logger.Named("loader")),
		scenes:     loader.NewSceneLoader(logger.Named("loader"), loaderOpts),
		objects:    loader.NewObjectLoader(logger.Named("loader"), loaderOpts),
		views:      loader.NewViewLoader(logger.Named("loader"), loaderOpts),
		components: loader.NewComponentLoader(logger.Named("loader"), loaderOpts),
		dispatcher: lifecycle.NewDispatcher(logger.Named("lifecycle")),
		lookup:     lookup.NewService(logger.Named("lookup")),
		manager:    opts.Manager,
		logger:     logger,
	}
	if k.manager == nil {
		k.world = entity.NewWorld(k, logger.Named("world"))
		k.manager = k.world
	}
	k.dispatcher.OnUnregister(lifecycle.Start, func(instance any) {
		k.logger.Debug("pending start withdrawn", zap.Stringer("type", symbols.TypeOf(instance)))
	})

	if err := k.bootstrap(&builtins{k: k}); err != nil {
		return nil, err
	}

	providers := k.manager.Providers()
	for _, category := range []reflect.Type{entity.SceneType, entity.ObjectType, entity.ViewType} {
		if p, ok := providers[category]; ok {
			k.lookup.RegisterProvider(category, p)
			k.lookup.RegisterEntityCategory(category)
		}
	}
	k.lookup.RegisterProvider(entity.ComponentType, k.findComponents)

	var spawner beans.Spawner
	if s, ok := k.manager.(beans.Spawner); ok {
		spawner = s
	}
	k.beans = beans.NewContainer(k.extractor.Table(), spawner, logger.Named("beans"))
	return k, nil
}

// Table returns the symbol table of every loaded class
func (k *Kernel) Table() *symbols.Table { return k.extractor.Table() }

// Loaders returns the code loader registry
func (k *Kernel) Loaders() *loader.Registry { return k.loaders }

// Dispatcher returns the lifecycle dispatcher
func (k *Kernel) Dispatcher() *lifecycle.Dispatcher { return k.dispatcher }

// Lookup returns the lookup service
func (k *Kernel) Lookup() *lookup.Service { return k.lookup }

// Beans returns the bean container
func (k *Kernel) Beans() *beans.Container { return k.beans }

// Manager returns the entity manager
func (k *Kernel) Manager() EntityManager { return k.manager }

// World returns the built-in entity manager, or nil when Options.Manager was set
func (k *Kernel) World() *entity.World { return k.world }

// Ticks returns the number of completed Update calls
func (k *Kernel) Ticks() uint64 { return k.ticks }

// Scenes returns the scene code info records ordered by name
func (k *Kernel) Scenes() []*loader.SceneInfo { return k.scenes.All() }

// Objects returns the object code info records ordered by name
func (k *Kernel) Objects() []*loader.ObjectInfo { return k.objects.All() }

// Views returns the view code info records ordered by name
func (k *Kernel) Views() []*loader.ViewInfo { return k.views.All() }

// Components returns the component code info records ordered by name
func (k *Kernel) Components() []*loader.ComponentInfo { return k.components.All() }

// LoadClass extracts t and hands it to its category loader. Classes outside
// every category are extracted only.
func (k *Kernel) LoadClass(t reflect.Type) (*symbols.SymClass, error) {
	class, err := k.extractor.Extract(t)
	if err != nil {
		return nil, fmt.Errorf("load class: %w", err)
	}
	if err := k.applyManifests(class); err != nil {
		k.logger.Warn("manifest beans not applied", zap.String("class", class.FullName), zap.Error(err))
	}
	if _, ok := k.loaders.CategoryOf(class); !ok {
		return class, nil
	}
	if !k.loaders.Load(class, false) {
		return class, fmt.Errorf("%w: %s", ErrClassRejected, class.FullName)
	}
	return class, nil
}

// LoadClasses loads every type; one failing class does not stop the others.
func (k *Kernel) LoadClasses(types ...reflect.Type) error {
	var errs []error
	for _, t := range types {
		if _, err := k.LoadClass(t); err != nil {
			k.logger.Error("class not loaded", zap.Stringer("type", t), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Info returns the code info of instance's class, or nil
func (k *Kernel) Info(instance any) loader.Info {
	class, ok := k.Table().Of(instance)
	if !ok {
		return nil
	}
	return k.loaders.Lookup(class)
}

// ApplyManifest attaches m's beans to the loaded classes and keeps m so that
// reloads can attach them again.
func (k *Kernel) ApplyManifest(m *beans.Manifest) error {
	k.manifests = append(k.manifests, manifestSource{manifest: m})
	return m.Apply(k.Table())
}

// LoadManifest reads the bean manifest at path and applies it. The file is
// read again on every reload.
func (k *Kernel) LoadManifest(path string) error {
	m, err := beans.LoadManifest(path)
	if err != nil {
		return err
	}
	k.manifests = append(k.manifests, manifestSource{path: path, manifest: m})
	return m.Apply(k.Table())
}

func (k *Kernel) applyManifests(class *symbols.SymClass) error {
	var errs []error
	for _, src := range k.manifests {
		if err := src.manifest.ApplyTo(class); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RegisterPhaseNotification schedules instance for phase
func (k *Kernel) RegisterPhaseNotification(phase lifecycle.Phase, instance any) bool {
	return k.dispatcher.Enqueue(phase, instance)
}

// CancelPhaseNotification removes a pending notification
func (k *Kernel) CancelPhaseNotification(phase lifecycle.Phase, instance any) bool {
	return k.dispatcher.Cancel(phase, instance)
}

// Unregister removes instance from every phase
func (k *Kernel) Unregister(instance any) {
	k.dispatcher.Unregister(instance)
}

// Update runs one tick: pending reloads, the Start flush, simulate (may be
// nil), then the Destroy flush. A phase handler or simulate error ends the
// tick and is returned; a failed reload is logged and the tick goes on.
func (k *Kernel) Update(simulate func() error) error {
	if err := k.drainReloads(); err != nil {
		k.logger.Error("reload failed", zap.Error(err))
	}
	if err := k.dispatcher.Flush(lifecycle.Start); err != nil {
		return fmt.Errorf("tick %d: %w", k.ticks, err)
	}
	if simulate != nil {
		if err := simulate(); err != nil {
			return fmt.Errorf("tick %d: %w", k.ticks, err)
		}
	}
	if err := k.dispatcher.Flush(lifecycle.Destroy); err != nil {
		return fmt.Errorf("tick %d: %w", k.ticks, err)
	}
	k.ticks++
	return nil
}

// FindAll returns every live instance of t
func (k *Kernel) FindAll(t reflect.Type) []any {
	return k.lookup.FindAll(t)
}

// findComponents is the component lookup provider: every component of class
// t attached to a live entity, nested ones included, without duplicates.
func (k *Kernel) findComponents(t reflect.Type) []any {
	var result []any
	seen := make(map[any]struct{})
	for _, e := range k.lookup.FindAllEntities() {
		for _, c := range entity.ComponentsOf(e, t) {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			result = append(result, c)
		}
	}
	return result
}
