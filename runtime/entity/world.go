package entity

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/nucleus/runtime/lifecycle"
	"github.com/conduit-lang/nucleus/runtime/lookup"
	"github.com/conduit-lang/nucleus/runtime/symbols"
)

var (
	// ErrNilInstance is returned when a nil instance is passed to the world
	ErrNilInstance = errors.New("nil instance")
	// ErrNotEntity is returned for instances that embed no category base type
	ErrNotEntity = errors.New("not an entity")
	// ErrUnknownInstance is returned for instances the world does not track
	ErrUnknownInstance = errors.New("unknown instance")
	// ErrAlreadyTracked is returned when an instance is created twice
	ErrAlreadyTracked = errors.New("instance already tracked")
)

// Scheduler queues lifecycle notifications; implemented by the kernel
type Scheduler interface {
	RegisterPhaseNotification(phase lifecycle.Phase, instance any) bool
	CancelPhaseNotification(phase lifecycle.Phase, instance any) bool
	Unregister(instance any)
}

type registry struct {
	items []any
	index map[any]struct{}
}

func newRegistry() *registry {
	return &registry{index: make(map[any]struct{})}
}

func (r *registry) add(item any) bool {
	if _, ok := r.index[item]; ok {
		return false
	}
	r.index[item] = struct{}{}
	r.items = append(r.items, item)
	return true
}

func (r *registry) remove(item any) bool {
	if _, ok := r.index[item]; !ok {
		return false
	}
	delete(r.index, item)
	removeFrom(&r.items, item)
	return true
}

func (r *registry) has(item any) bool {
	_, ok := r.index[item]
	return ok
}

// World is the reference entity manager. It tracks every live scene, object,
// view and component, schedules Start on creation and Destroy on removal, and
// completes both transitions when the kernel's phase handlers call back.
//
// World is not safe for concurrent use.
type World struct {
	scheduler  Scheduler
	scenes     *registry
	objects    *registry
	views      *registry
	components *registry
	started    map[any]struct{}
	destroying map[any]struct{}
	logger     *zap.Logger
}

// NewWorld creates an empty world scheduling through s
func NewWorld(s Scheduler, logger *zap.Logger) *World {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &World{
		scheduler:  s,
		scenes:     newRegistry(),
		objects:    newRegistry(),
		views:      newRegistry(),
		components: newRegistry(),
		started:    make(map[any]struct{}),
		destroying: make(map[any]struct{}),
		logger:     logger,
	}
}

func (w *World) registryOf(instance any) (*registry, error) {
	switch instance.(type) {
	case nil:
		return nil, ErrNilInstance
	case SceneNode:
		return w.scenes, nil
	case ObjectNode:
		return w.objects, nil
	case ViewNode:
		return w.views, nil
	case ComponentNode:
		return w.components, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrNotEntity, instance)
}

// Create tracks a new scene, object or view and schedules its Start.
// label is kept for diagnostics.
func (w *World) Create(instance any, label string) error {
	if _, ok := instance.(ComponentNode); ok {
		return fmt.Errorf("create %T: %w: components are attached, not created", instance, ErrNotEntity)
	}
	reg, err := w.registryOf(instance)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if !reg.add(instance) {
		return fmt.Errorf("create %T: %w", instance, ErrAlreadyTracked)
	}

	base := instance.(Node).EntityBase()
	if base.id == uuid.Nil {
		base.id = uuid.New()
	}
	base.label = label

	w.logger.Debug("entity created",
		zap.Stringer("type", symbols.TypeOf(instance)),
		zap.Stringer("id", base.id),
		zap.String("label", label),
	)
	w.scheduler.RegisterPhaseNotification(lifecycle.Start, instance)
	return nil
}

// Attach adds component to owner, an entity or another component, and
// schedules its Start.
func (w *World) Attach(owner any, component ComponentNode) error {
	if err := w.attach(owner, component); err != nil {
		return err
	}
	w.scheduler.RegisterPhaseNotification(lifecycle.Start, component)
	return nil
}

// Adopt adds component to owner without scheduling a Start of its own. The
// component begins with its owner, or at once when the owner has already
// started.
func (w *World) Adopt(owner any, component ComponentNode) error {
	if err := w.attach(owner, component); err != nil {
		return err
	}
	if w.IsStarted(owner) {
		return w.BeginComponent(component)
	}
	return nil
}

func (w *World) attach(owner any, component ComponentNode) error {
	if owner == nil || component == nil {
		return fmt.Errorf("attach: %w", ErrNilInstance)
	}
	if !w.Tracked(owner) {
		return fmt.Errorf("attach to %T: %w", owner, ErrUnknownInstance)
	}
	if w.IsDestroying(owner) {
		return fmt.Errorf("attach to %T: owner is being destroyed", owner)
	}
	list := containerSlice(owner)
	if list == nil {
		return fmt.Errorf("attach to %T: %w", owner, ErrNotEntity)
	}
	if !w.components.add(component) {
		return fmt.Errorf("attach %T: %w", component, ErrAlreadyTracked)
	}

	base := component.ComponentBase()
	if base.id == uuid.Nil {
		base.id = uuid.New()
	}
	base.owner = owner
	*list = append(*list, component)

	w.logger.Debug("component attached",
		zap.Stringer("type", symbols.TypeOf(component)),
		zap.Stringer("owner", symbols.TypeOf(owner)),
	)
	return nil
}

// Destroy marks instance and every component it holds as destroying and
// schedules their Destroy, instance first.
//
// A component that never started is detached at once.
func (w *World) Destroy(instance any) error {
	if instance == nil {
		return fmt.Errorf("destroy: %w", ErrNilInstance)
	}
	if !w.Tracked(instance) {
		return fmt.Errorf("destroy %T: %w", instance, ErrUnknownInstance)
	}
	if w.IsDestroying(instance) {
		return nil
	}

	if _, ok := instance.(ComponentNode); ok && !w.IsStarted(instance) {
		return w.detach(instance)
	}

	w.destroying[instance] = struct{}{}
	w.scheduler.RegisterPhaseNotification(lifecycle.Destroy, instance)
	for _, c := range ComponentsOf(instance, nil) {
		w.destroying[c] = struct{}{}
		w.scheduler.RegisterPhaseNotification(lifecycle.Destroy, c)
	}
	return nil
}

// BeginScene finishes a scene's Start
func (w *World) BeginScene(scene any) error {
	return w.begin(w.scenes, scene)
}

// BeginObject finishes an object's Start
func (w *World) BeginObject(object any) error {
	return w.begin(w.objects, object)
}

// BeginView finishes a view's Start
func (w *World) BeginView(view any) error {
	return w.begin(w.views, view)
}

// begin marks an entity started, then starts the components attached during
// its pre-start window and cancels their own pending Start.
func (w *World) begin(reg *registry, instance any) error {
	if !reg.has(instance) {
		return fmt.Errorf("begin %T: %w", instance, ErrUnknownInstance)
	}
	w.started[instance] = struct{}{}
	w.logger.Debug("entity started", zap.Stringer("type", symbols.TypeOf(instance)))

	for _, c := range ComponentsOf(instance, nil) {
		if w.IsStarted(c) {
			continue
		}
		w.scheduler.CancelPhaseNotification(lifecycle.Start, c)
		if err := w.BeginComponent(c); err != nil {
			return err
		}
	}
	return nil
}

// BeginComponent finishes a component's Start. Starting a component twice is
// a no-op.
func (w *World) BeginComponent(component any) error {
	if !w.components.has(component) {
		return fmt.Errorf("begin %T: %w", component, ErrUnknownInstance)
	}
	if w.IsStarted(component) {
		return nil
	}
	w.started[component] = struct{}{}
	w.logger.Debug("component started", zap.Stringer("type", symbols.TypeOf(component)))
	return nil
}

// RemoveScene drops a scene and its components
func (w *World) RemoveScene(scene any) error {
	return w.remove(w.scenes, scene)
}

// RemoveObject drops an object and its components
func (w *World) RemoveObject(object any) error {
	return w.remove(w.objects, object)
}

// RemoveView drops a view and its components
func (w *World) RemoveView(view any) error {
	return w.remove(w.views, view)
}

// RemoveComponent detaches a component from its owner and drops it with its
// nested components.
func (w *World) RemoveComponent(component any) error {
	if !w.components.has(component) {
		return fmt.Errorf("remove %T: %w", component, ErrUnknownInstance)
	}
	return w.detach(component)
}

func (w *World) remove(reg *registry, instance any) error {
	if !reg.remove(instance) {
		return fmt.Errorf("remove %T: %w", instance, ErrUnknownInstance)
	}
	for _, c := range ComponentsOf(instance, nil) {
		w.drop(c)
	}
	instance.(Node).EntityBase().components = nil
	w.drop(instance)
	w.logger.Debug("entity removed", zap.Stringer("type", symbols.TypeOf(instance)))
	return nil
}

func (w *World) detach(component any) error {
	for _, c := range ComponentsOf(component, nil) {
		w.drop(c)
	}
	base := component.(ComponentNode).ComponentBase()
	if list := containerSlice(base.owner); list != nil {
		removeFrom(list, component)
	}
	base.owner = nil
	base.components = nil
	w.drop(component)
	w.logger.Debug("component removed", zap.Stringer("type", symbols.TypeOf(component)))
	return nil
}

// drop forgets instance and cancels whatever it still has scheduled
func (w *World) drop(instance any) {
	w.scheduler.Unregister(instance)
	w.components.remove(instance)
	delete(w.started, instance)
	delete(w.destroying, instance)
}

// IsStarted reports whether instance finished its Start
func (w *World) IsStarted(instance any) bool {
	_, ok := w.started[instance]
	return ok
}

// IsDestroying reports whether instance has a Destroy scheduled
func (w *World) IsDestroying(instance any) bool {
	_, ok := w.destroying[instance]
	return ok
}

// Tracked reports whether the world knows instance
func (w *World) Tracked(instance any) bool {
	if instance == nil {
		return false
	}
	return w.scenes.has(instance) || w.objects.has(instance) || w.views.has(instance) || w.components.has(instance)
}

// Scenes returns the live scenes in creation order
func (w *World) Scenes() []any { return append([]any(nil), w.scenes.items...) }

// Objects returns the live objects in creation order
func (w *World) Objects() []any { return append([]any(nil), w.objects.items...) }

// Views returns the live views in creation order
func (w *World) Views() []any { return append([]any(nil), w.views.items...) }

// Components returns the live components in attach order
func (w *World) Components() []any { return append([]any(nil), w.components.items...) }

// Providers returns the lookup providers for the three entity categories,
// keyed by category base type.
func (w *World) Providers() map[reflect.Type]lookup.Provider {
	return map[reflect.Type]lookup.Provider{
		SceneType:  func(t reflect.Type) []any { return lookup.Filter(w.scenes.items, t) },
		ObjectType: func(t reflect.Type) []any { return lookup.Filter(w.objects.items, t) },
		ViewType:   func(t reflect.Type) []any { return lookup.Filter(w.views.items, t) },
	}
}
