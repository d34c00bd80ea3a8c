package symbols

import (
	"reflect"
	"sort"
)

// Table holds every extracted class, indexed by type and by name.
// It is not safe for concurrent use; the load pass and the tick share one thread.
type Table struct {
	byType     map[reflect.Type]*SymClass
	byFullName map[string]*SymClass
	byName     map[string][]*SymClass
}

// NewTable creates an empty symbol table
func NewTable() *Table {
	return &Table{
		byType:     make(map[reflect.Type]*SymClass),
		byFullName: make(map[string]*SymClass),
		byName:     make(map[string][]*SymClass),
	}
}

// Get returns the class extracted for t
func (t *Table) Get(typ reflect.Type) (*SymClass, bool) {
	c, ok := t.byType[Indirect(typ)]
	return c, ok
}

// Of returns the class of v's dynamic type
func (t *Table) Of(v any) (*SymClass, bool) {
	typ := TypeOf(v)
	if typ == nil {
		return nil, false
	}
	return t.Get(typ)
}

// Lookup finds a class by full name, falling back to the short name when it
// is unambiguous.
func (t *Table) Lookup(name string) (*SymClass, bool) {
	if c, ok := t.byFullName[name]; ok {
		return c, true
	}
	if matches := t.byName[name]; len(matches) == 1 {
		return matches[0], true
	}
	return nil, false
}

// Remove drops the class extracted for typ
func (t *Table) Remove(typ reflect.Type) bool {
	typ = Indirect(typ)
	c, ok := t.byType[typ]
	if !ok {
		return false
	}
	delete(t.byType, typ)
	delete(t.byFullName, c.FullName)

	matches := t.byName[c.Name]
	for i, m := range matches {
		if m == c {
			matches = append(matches[:i], matches[i+1:]...)
			break
		}
	}
	if len(matches) == 0 {
		delete(t.byName, c.Name)
	} else {
		t.byName[c.Name] = matches
	}
	return true
}

// Len returns the number of classes
func (t *Table) Len() int {
	return len(t.byType)
}

// All returns every class ordered by full name
func (t *Table) All() []*SymClass {
	classes := make([]*SymClass, 0, len(t.byType))
	for _, c := range t.byType {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].FullName < classes[j].FullName })
	return classes
}

// Types returns the type of every class ordered by full name
func (t *Table) Types() []reflect.Type {
	classes := t.All()
	types := make([]reflect.Type, len(classes))
	for i, c := range classes {
		types[i] = c.Type
	}
	return types
}

// Reset clears the table (used on full reload and in tests)
func (t *Table) Reset() {
	t.byType = make(map[reflect.Type]*SymClass)
	t.byFullName = make(map[string]*SymClass)
	t.byName = make(map[string][]*SymClass)
}

// put indexes c; an existing record for the same type is the same pointer.
func (t *Table) put(c *SymClass) {
	if _, exists := t.byType[c.Type]; exists {
		return
	}
	t.byType[c.Type] = c
	t.byFullName[c.FullName] = c
	t.byName[c.Name] = append(t.byName[c.Name], c)
}
