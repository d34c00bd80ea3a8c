package symbols

import "reflect"

// Indirect strips every pointer level from t
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// TypeOf returns the class type of v: its dynamic type with pointers removed.
// Returns nil for a nil interface.
func TypeOf(v any) reflect.Type {
	if v == nil {
		return nil
	}
	return Indirect(reflect.TypeOf(v))
}

// BaseOf returns the base class of t: the type of its first embedded struct
// field. Returns nil for root classes and non-struct types.
func BaseOf(t reflect.Type) reflect.Type {
	t = Indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		if base := Indirect(f.Type); base.Kind() == reflect.Struct {
			return base
		}
	}
	return nil
}

// Ancestors returns t followed by its base chain, most derived first
func Ancestors(t reflect.Type) []reflect.Type {
	t = Indirect(t)
	if t == nil {
		return nil
	}
	chain := []reflect.Type{t}
	seen := map[reflect.Type]bool{t: true}
	for base := BaseOf(t); base != nil && !seen[base]; base = BaseOf(base) {
		seen[base] = true
		chain = append(chain, base)
	}
	return chain
}

// Depth is the length of t's ancestor chain. Interfaces have depth 0 so
// that any concrete class is more specific than any interface.
func Depth(t reflect.Type) int {
	t = Indirect(t)
	if t == nil {
		return -1
	}
	if t.Kind() == reflect.Interface {
		return 0
	}
	return len(Ancestors(t))
}

// AssignableTo reports whether class t is base or derives from it.
// An interface base matches when t or *t implements it.
func AssignableTo(t, base reflect.Type) bool {
	t = Indirect(t)
	if t == nil || base == nil {
		return false
	}
	if base.Kind() == reflect.Interface {
		return t.Implements(base) || reflect.PointerTo(t).Implements(base)
	}
	base = Indirect(base)
	for _, ancestor := range Ancestors(t) {
		if ancestor == base {
			return true
		}
	}
	return false
}
