package kernel

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/conduit-lang/nucleus/runtime/entity"
	"github.com/conduit-lang/nucleus/runtime/lifecycle"
	"github.com/conduit-lang/nucleus/runtime/loader"
	"github.com/conduit-lang/nucleus/runtime/symbols"
	"github.com/conduit-lang/nucleus/runtime/tags"
)

// builtins holds the category phase handlers and code loaders. Its methods
// are bound by tag in bootstrap.
type builtins struct {
	k *Kernel
}

func phaseTag(phase lifecycle.Phase, target reflect.Type) symbols.Tags {
	return symbols.Tags{tags.PhaseHandler{Phase: phase, Target: target}}
}

func loaderTag(base reflect.Type, role tags.LoaderRole) symbols.Tags {
	return symbols.Tags{tags.CodeLoader{Base: base, Role: role}}
}

func (*builtins) Annotations() symbols.Annotations {
	return symbols.Annotations{Methods: map[string]symbols.Tags{
		"StartScene":       phaseTag(lifecycle.Start, entity.SceneType),
		"StartObject":      phaseTag(lifecycle.Start, entity.ObjectType),
		"StartView":        phaseTag(lifecycle.Start, entity.ViewType),
		"StartComponent":   phaseTag(lifecycle.Start, entity.ComponentType),
		"DestroyScene":     phaseTag(lifecycle.Destroy, entity.SceneType),
		"DestroyObject":    phaseTag(lifecycle.Destroy, entity.ObjectType),
		"DestroyView":      phaseTag(lifecycle.Destroy, entity.ViewType),
		"DestroyComponent": phaseTag(lifecycle.Destroy, entity.ComponentType),

		"LoadScene":        loaderTag(entity.SceneType, tags.RoleLoad),
		"CleanupScene":     loaderTag(entity.SceneType, tags.RoleCleanup),
		"LookupScene":      loaderTag(entity.SceneType, tags.RoleLookup),
		"LoadObject":       loaderTag(entity.ObjectType, tags.RoleLoad),
		"CleanupObject":    loaderTag(entity.ObjectType, tags.RoleCleanup),
		"LookupObject":     loaderTag(entity.ObjectType, tags.RoleLookup),
		"LoadView":         loaderTag(entity.ViewType, tags.RoleLoad),
		"CleanupView":      loaderTag(entity.ViewType, tags.RoleCleanup),
		"LookupView":       loaderTag(entity.ViewType, tags.RoleLookup),
		"LoadComponent":    loaderTag(entity.ComponentType, tags.RoleLoad),
		"CleanupComponent": loaderTag(entity.ComponentType, tags.RoleCleanup),
		"LookupComponent":  loaderTag(entity.ComponentType, tags.RoleLookup),
	}}
}

func (b *builtins) StartScene(instance any) error  { return b.k.manager.BeginScene(instance) }
func (b *builtins) StartObject(instance any) error { return b.k.manager.BeginObject(instance) }
func (b *builtins) StartView(instance any) error   { return b.k.manager.BeginView(instance) }

// StartComponent begins a component only once its owning entity has started
// and while it is not being destroyed. A component attached before its owner
// started is begun by the owner's own start.
func (b *builtins) StartComponent(instance any) error {
	owner := entity.RootOf(instance)
	switch {
	case owner == nil:
		b.k.logger.Warn("skipping start of detached component", zap.Stringer("type", symbols.TypeOf(instance)))
		return nil
	case !b.k.manager.IsStarted(owner):
		b.k.logger.Warn("skipping component start: owner not started",
			zap.Stringer("type", symbols.TypeOf(instance)),
			zap.Stringer("owner", symbols.TypeOf(owner)),
		)
		return nil
	case b.k.manager.IsDestroying(owner):
		b.k.logger.Warn("skipping component start: owner is being destroyed",
			zap.Stringer("type", symbols.TypeOf(instance)),
			zap.Stringer("owner", symbols.TypeOf(owner)),
		)
		return nil
	}
	return b.k.manager.BeginComponent(instance)
}

func (b *builtins) DestroyScene(instance any) error { return b.k.manager.RemoveScene(instance) }
func (b *builtins) DestroyView(instance any) error  { return b.k.manager.RemoveView(instance) }

// DestroyObject cancels the pending destroy of every component the object
// still owns, nested ones included, then removes the object with them.
func (b *builtins) DestroyObject(instance any) error {
	for _, c := range entity.ComponentsOf(instance, nil) {
		b.k.dispatcher.Cancel(lifecycle.Destroy, c)
	}
	return b.k.manager.RemoveObject(instance)
}

// DestroyComponent mirrors the start guard: removal is left to the owner when
// the owner never started or is itself being destroyed.
func (b *builtins) DestroyComponent(instance any) error {
	owner := entity.RootOf(instance)
	if owner != nil && (!b.k.manager.IsStarted(owner) || b.k.manager.IsDestroying(owner)) {
		b.k.logger.Warn("skipping component destroy: owner teardown removes it",
			zap.Stringer("type", symbols.TypeOf(instance)),
			zap.Stringer("owner", symbols.TypeOf(owner)),
		)
		return nil
	}
	return b.k.manager.RemoveComponent(instance)
}

func (b *builtins) LoadScene(class *symbols.SymClass, reload bool) bool {
	return b.k.scenes.Load(class, reload)
}

func (b *builtins) CleanupScene() { b.k.scenes.Cleanup() }

func (b *builtins) LookupScene(class *symbols.SymClass) loader.Info {
	return b.k.scenes.Lookup(class)
}

func (b *builtins) LoadObject(class *symbols.SymClass, reload bool) bool {
	return b.k.objects.Load(class, reload)
}

func (b *builtins) CleanupObject() { b.k.objects.Cleanup() }

func (b *builtins) LookupObject(class *symbols.SymClass) loader.Info {
	return b.k.objects.Lookup(class)
}

func (b *builtins) LoadView(class *symbols.SymClass, reload bool) bool {
	return b.k.views.Load(class, reload)
}

func (b *builtins) CleanupView() { b.k.views.Cleanup() }

func (b *builtins) LookupView(class *symbols.SymClass) loader.Info {
	return b.k.views.Lookup(class)
}

func (b *builtins) LoadComponent(class *symbols.SymClass, reload bool) bool {
	return b.k.components.Load(class, reload)
}

func (b *builtins) CleanupComponent() { b.k.components.Cleanup() }

func (b *builtins) LookupComponent(class *symbols.SymClass) loader.Info {
	return b.k.components.Lookup(class)
}

// bootstrap extracts b's class and binds every method tagged as a phase
// handler or code loader.
func (k *Kernel) bootstrap(b *builtins) error {
	class, err := symbols.NewExtractor(nil, k.logger.Named("bootstrap")).ExtractValue(b)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBootstrap, err)
	}

	bound := 0
	for _, method := range class.MethodList() {
		fn := method.Bind(b)
		for _, tag := range symbols.FindAll[tags.PhaseHandler](method.Tags) {
			handler, ok := fn.Interface().(func(any) error)
			if !ok {
				return fmt.Errorf("%w: %s is not a phase handler", ErrBootstrap, method.Signature())
			}
			if err := k.dispatcher.RegisterPhaseHandler(tag.Phase, tag.Target, handler); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrBootstrap, method.Name, err)
			}
			bound++
		}
		for _, tag := range symbols.FindAll[tags.CodeLoader](method.Tags) {
			if err := k.bindLoader(tag, method, fn); err != nil {
				return err
			}
			bound++
		}
	}
	k.logger.Debug("kernel bootstrapped", zap.Int("bindings", bound))
	return nil
}

func (k *Kernel) bindLoader(tag tags.CodeLoader, method *symbols.SymMethod, fn reflect.Value) error {
	switch tag.Role {
	case tags.RoleLoad:
		load, ok := fn.Interface().(func(*symbols.SymClass, bool) bool)
		if !ok {
			break
		}
		k.loaders.RegisterLoad(tag.Base, load)
		return nil
	case tags.RoleCleanup:
		cleanup, ok := fn.Interface().(func())
		if !ok {
			break
		}
		k.loaders.RegisterCleanup(tag.Base, cleanup)
		return nil
	case tags.RoleLookup:
		lookup, ok := fn.Interface().(func(*symbols.SymClass) loader.Info)
		if !ok {
			break
		}
		k.loaders.RegisterLookup(tag.Base, lookup)
		return nil
	}
	return fmt.Errorf("%w: %s cannot serve as %s callback", ErrBootstrap, method.Signature(), tag.Role)
}
