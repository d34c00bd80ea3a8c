// Package resolve maps a concrete class to the most specific registered type.
//
// Registries for loaders, phase handlers and lookup providers are all keyed by
// category types. A Resolver keeps its keys ordered by inheritance depth,
// deepest first, with registration order breaking ties, so resolution never
// depends on map iteration order.
package resolve

import (
	"reflect"
	"sort"

	"github.com/conduit-lang/nucleus/runtime/symbols"
)

// Mode selects whether an exact key match may satisfy a resolution
type Mode int

const (
	// Inclusive accepts t itself as a key
	Inclusive Mode = iota
	// Strict accepts only keys t strictly derives from
	Strict
)

type entry[V any] struct {
	key   reflect.Type
	value V
	depth int
	seq   uint64
}

// Resolver is an ordered type-keyed table. The zero value is ready to use.
type Resolver[V any] struct {
	entries []entry[V]
	nextSeq uint64
}

// Set stores v under key, replacing any existing value.
// Returns true when an existing entry was replaced.
func (r *Resolver[V]) Set(key reflect.Type, v V) bool {
	key = normalize(key)
	for i := range r.entries {
		if r.entries[i].key == key {
			r.entries[i].value = v
			return true
		}
	}

	r.entries = append(r.entries, entry[V]{
		key:   key,
		value: v,
		depth: symbols.Depth(key),
		seq:   r.nextSeq,
	})
	r.nextSeq++
	sort.SliceStable(r.entries, func(i, j int) bool {
		if r.entries[i].depth != r.entries[j].depth {
			return r.entries[i].depth > r.entries[j].depth
		}
		return r.entries[i].seq < r.entries[j].seq
	})
	return false
}

// Get returns the value stored under exactly key
func (r *Resolver[V]) Get(key reflect.Type) (V, bool) {
	key = normalize(key)
	for _, e := range r.entries {
		if e.key == key {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

// Remove deletes the entry for key
func (r *Resolver[V]) Remove(key reflect.Type) bool {
	key = normalize(key)
	for i, e := range r.entries {
		if e.key == key {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Resolve returns the deepest registered key t is assignable to.
// In Strict mode a key equal to t is skipped.
func (r *Resolver[V]) Resolve(t reflect.Type, mode Mode) (reflect.Type, V, bool) {
	t = symbols.Indirect(t)
	if t != nil {
		for _, e := range r.entries {
			if mode == Strict && e.key == t {
				continue
			}
			if symbols.AssignableTo(t, e.key) {
				return e.key, e.value, true
			}
		}
	}
	var zero V
	return nil, zero, false
}

// Keys returns the registered keys in resolution order
func (r *Resolver[V]) Keys() []reflect.Type {
	keys := make([]reflect.Type, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.key
	}
	return keys
}

// Each calls fn for every entry in resolution order
func (r *Resolver[V]) Each(fn func(key reflect.Type, v V)) {
	for _, e := range r.entries {
		fn(e.key, e.value)
	}
}

// Len returns the number of entries
func (r *Resolver[V]) Len() int {
	return len(r.entries)
}

// Clear removes every entry
func (r *Resolver[V]) Clear() {
	r.entries = nil
}

func normalize(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Interface {
		return t
	}
	return symbols.Indirect(t)
}
