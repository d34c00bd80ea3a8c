// Package loader turns extracted classes into per-category code info.
//
// A Registry holds three independent callback tables (load, cleanup,
// lookup) keyed by category base type. Loading a class runs the callback of
// the deepest base type the class strictly derives from; a category base
// type never loads itself.
package loader

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/conduit-lang/nucleus/runtime/resolve"
	"github.com/conduit-lang/nucleus/runtime/symbols"
)

// LoadFunc registers code info for class; it reports whether the class was accepted
type LoadFunc func(class *symbols.SymClass, reload bool) bool

// CleanupFunc drops everything a category loaded
type CleanupFunc func()

// LookupFunc returns the code info of class, or nil
type LookupFunc func(class *symbols.SymClass) Info

// Registry dispatches load, cleanup and lookup calls to category callbacks
type Registry struct {
	loads    resolve.Resolver[LoadFunc]
	cleanups resolve.Resolver[CleanupFunc]
	lookups  resolve.Resolver[LookupFunc]
	logger   *zap.Logger
}

// NewRegistry creates an empty loader registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{logger: logger}
}

// RegisterLoad sets the load callback for base, replacing any previous one
func (r *Registry) RegisterLoad(base reflect.Type, fn LoadFunc) {
	if base == nil || fn == nil {
		r.logger.Error("invalid load callback registration")
		return
	}
	if r.loads.Set(base, fn) {
		r.logger.Warn("replaced load callback", zap.Stringer("base", base))
	}
}

// RegisterCleanup sets the cleanup callback for base, replacing any previous one
func (r *Registry) RegisterCleanup(base reflect.Type, fn CleanupFunc) {
	if base == nil || fn == nil {
		r.logger.Error("invalid cleanup callback registration")
		return
	}
	if r.cleanups.Set(base, fn) {
		r.logger.Warn("replaced cleanup callback", zap.Stringer("base", base))
	}
}

// RegisterLookup sets the lookup callback for base, replacing any previous one
func (r *Registry) RegisterLookup(base reflect.Type, fn LookupFunc) {
	if base == nil || fn == nil {
		r.logger.Error("invalid lookup callback registration")
		return
	}
	if r.lookups.Set(base, fn) {
		r.logger.Warn("replaced lookup callback", zap.Stringer("base", base))
	}
}

// Register sets all three callbacks of a category loader for base
func (r *Registry) Register(base reflect.Type, l interface {
	Load(*symbols.SymClass, bool) bool
	Cleanup()
	Lookup(*symbols.SymClass) Info
}) {
	r.RegisterLoad(base, l.Load)
	r.RegisterCleanup(base, l.Cleanup)
	r.RegisterLookup(base, l.Lookup)
}

// Load runs the load callback of the deepest category class strictly derives from.
// Returns false when no category matches or the category rejected the class.
func (r *Registry) Load(class *symbols.SymClass, reload bool) bool {
	if class == nil {
		r.logger.Error("load called with nil class")
		return false
	}
	base, fn, ok := r.loads.Resolve(class.Type, resolve.Strict)
	if !ok {
		r.logger.Debug("no loader for class", zap.String("class", class.FullName))
		return false
	}
	r.logger.Debug("loading class", zap.String("class", class.FullName), zap.Stringer("base", base))
	return fn(class, reload)
}

// Lookup returns the code info of class from its category, or nil
func (r *Registry) Lookup(class *symbols.SymClass) Info {
	if class == nil {
		return nil
	}
	_, fn, ok := r.lookups.Resolve(class.Type, resolve.Strict)
	if !ok {
		return nil
	}
	return fn(class)
}

// Cleanup runs every cleanup callback, most specific category first
func (r *Registry) Cleanup() {
	r.cleanups.Each(func(_ reflect.Type, fn CleanupFunc) {
		fn()
	})
}

// Categories returns the base types with a load callback
func (r *Registry) Categories() []reflect.Type {
	return r.loads.Keys()
}

// CategoryOf returns the base type whose loader would handle class
func (r *Registry) CategoryOf(class *symbols.SymClass) (reflect.Type, bool) {
	if class == nil {
		return nil, false
	}
	base, _, ok := r.loads.Resolve(class.Type, resolve.Strict)
	return base, ok
}
