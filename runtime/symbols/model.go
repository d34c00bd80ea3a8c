package symbols

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ClassFlags classifies a SymClass
type ClassFlags uint8

const (
	FlagInterface ClassFlags = 1 << iota
	FlagAbstract
	FlagStatic
	FlagInstantiable
)

// Has reports whether every bit of flag is set
func (f ClassFlags) Has(flag ClassFlags) bool {
	return f&flag == flag
}

// String returns a "|" separated list of set flags
func (f ClassFlags) String() string {
	var parts []string
	if f.Has(FlagInterface) {
		parts = append(parts, "interface")
	}
	if f.Has(FlagAbstract) {
		parts = append(parts, "abstract")
	}
	if f.Has(FlagStatic) {
		parts = append(parts, "static")
	}
	if f.Has(FlagInstantiable) {
		parts = append(parts, "instantiable")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// SymClass is the extracted metadata of one class.
// It is created once per class and mutated only by the Extractor.
type SymClass struct {
	Name     string       // Type name, e.g. "PlayerObject"
	FullName string       // Package path qualified name
	Type     reflect.Type // Underlying (non-pointer) type
	Base     reflect.Type // First embedded struct, nil for root classes
	Flags    ClassFlags
	Tags     Tags

	Fields     map[string]*SymField
	Methods    map[string]*SymMethod
	Properties map[string]*SymProperty
	Beans      map[string]*Bean
}

func newSymClass(t reflect.Type) *SymClass {
	return &SymClass{
		Name:       t.Name(),
		FullName:   fullName(t),
		Type:       t,
		Fields:     make(map[string]*SymField),
		Methods:    make(map[string]*SymMethod),
		Properties: make(map[string]*SymProperty),
		Beans:      make(map[string]*Bean),
	}
}

// replace takes over every member of fresh, rebinding its beans to c
func (c *SymClass) replace(fresh *SymClass) {
	*c = *fresh
	for _, b := range c.Beans {
		b.Class = c
	}
}

// IsInterface reports whether the class is an interface type
func (c *SymClass) IsInterface() bool { return c.Flags.Has(FlagInterface) }

// IsAbstract reports whether the class is tagged Abstract
func (c *SymClass) IsAbstract() bool { return c.Flags.Has(FlagAbstract) }

// IsStatic reports whether the class is tagged Static
func (c *SymClass) IsStatic() bool { return c.Flags.Has(FlagStatic) }

// IsInstantiable reports whether instances of the class may be constructed
func (c *SymClass) IsInstantiable() bool { return c.Flags.Has(FlagInstantiable) }

// Field returns the named field
func (c *SymClass) Field(name string) (*SymField, bool) {
	f, ok := c.Fields[name]
	return f, ok
}

// Method returns the named method
func (c *SymClass) Method(name string) (*SymMethod, bool) {
	m, ok := c.Methods[name]
	return m, ok
}

// Property returns the named property
func (c *SymClass) Property(name string) (*SymProperty, bool) {
	p, ok := c.Properties[name]
	return p, ok
}

// MethodList returns the methods ordered by name.
// Binding scans iterate this list so their output is deterministic.
func (c *SymClass) MethodList() []*SymMethod {
	methods := make([]*SymMethod, 0, len(c.Methods))
	for _, m := range c.Methods {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].Name < methods[j].Name })
	return methods
}

// FieldList returns the fields in declaration order
func (c *SymClass) FieldList() []*SymField {
	fields := make([]*SymField, 0, len(c.Fields))
	for _, f := range c.Fields {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Index[0] < fields[j].Index[0] })
	return fields
}

// AddBean attaches a bean descriptor, rejecting duplicate names
func (c *SymClass) AddBean(b Bean) error {
	if b.Name == "" {
		return fmt.Errorf("class %s: %w", c.Name, ErrUnnamedBean)
	}
	if _, exists := c.Beans[b.Name]; exists {
		return fmt.Errorf("class %s bean %q: %w", c.Name, b.Name, ErrDuplicateBean)
	}
	bean := b
	bean.Class = c
	c.Beans[b.Name] = &bean
	return nil
}

// Bean returns the named bean declared directly on this class
func (c *SymClass) Bean(name string) (*Bean, bool) {
	b, ok := c.Beans[name]
	return b, ok
}

// String returns the class name
func (c *SymClass) String() string {
	return c.FullName
}

// SymField describes one exported field
type SymField struct {
	Name  string
	Type  reflect.Type
	Index []int
	Tags  Tags
}

// SymParam describes one method parameter, receiver excluded
type SymParam struct {
	Index int
	Type  reflect.Type
}

// SymMethod describes one exported method of the class's pointer method set
type SymMethod struct {
	Name     string
	Params   []SymParam
	Returns  []reflect.Type
	Variadic bool
	Tags     Tags
}

// Bind returns the method bound to receiver, or an invalid Value when the
// receiver has no such method.
func (m *SymMethod) Bind(receiver any) reflect.Value {
	if receiver == nil {
		return reflect.Value{}
	}
	return reflect.ValueOf(receiver).MethodByName(m.Name)
}

// Signature renders the method shape for diagnostics, e.g. "OnHit(int32, *Hit) error"
func (m *SymMethod) Signature() string {
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.Type.String()
	}
	returns := make([]string, len(m.Returns))
	for i, r := range m.Returns {
		returns[i] = r.String()
	}

	sig := m.Name + "(" + strings.Join(params, ", ") + ")"
	switch len(returns) {
	case 0:
		return sig
	case 1:
		return sig + " " + returns[0]
	default:
		return sig + " (" + strings.Join(returns, ", ") + ")"
	}
}

// SymProperty is a getter/setter method pair X() V / SetX(V)
type SymProperty struct {
	Name   string
	Type   reflect.Type
	Getter *SymMethod
	Setter *SymMethod
	Tags   Tags
}

func fullName(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}
