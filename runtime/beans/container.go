package beans

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"github.com/conduit-lang/nucleus/runtime/entity"
	"github.com/conduit-lang/nucleus/runtime/lifecycle"
	"github.com/conduit-lang/nucleus/runtime/symbols"
)

var (
	// ErrNoBean is returned when a reference matches no bean
	ErrNoBean = errors.New("no matching bean")
	// ErrAmbiguousBean is returned when a name-only reference matches beans of several classes
	ErrAmbiguousBean = errors.New("ambiguous bean reference")
	// ErrCycle is returned when a bean depends on itself while being built
	ErrCycle = errors.New("bean dependency cycle")
	// ErrNotInstantiable is returned for abstract, static and interface classes
	ErrNotInstantiable = errors.New("class is not instantiable")
	// ErrUnknownField is returned when a bean wires a field the class does not expose
	ErrUnknownField = errors.New("unknown bean field")
	// ErrUnresolved is returned when a required injected field has no bean
	ErrUnresolved = errors.New("unresolved injection")
	// ErrNotComponent is returned when a component wiring names a non-component bean
	ErrNotComponent = errors.New("bean is not a component")
	// ErrUnsupportedPhase is returned for component activation phases other than start
	ErrUnsupportedPhase = errors.New("unsupported activation phase")
)

// DefaultBean is the bean used when a reference names a class but no bean
const DefaultBean = "default"

// Spawner tracks built entities and attaches components to them;
// implemented by entity.World. Attach schedules the component's own Start,
// Adopt leaves it to begin with its owner.
type Spawner interface {
	Create(instance any, label string) error
	Attach(owner any, component entity.ComponentNode) error
	Adopt(owner any, component entity.ComponentNode) error
}

type beanKey struct {
	class *symbols.SymClass
	bean  string
}

// Container builds instances from the beans attached to a symbol table.
// It is not safe for concurrent use.
type Container struct {
	table      *symbols.Table
	spawner    Spawner
	singletons map[beanKey]any
	building   map[beanKey]bool
	logger     *zap.Logger
}

// NewContainer creates a container over table. spawner may be nil when only
// Get is used.
func NewContainer(table *symbols.Table, spawner Spawner, logger *zap.Logger) *Container {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Container{
		table:      table,
		spawner:    spawner,
		singletons: make(map[beanKey]any),
		building:   make(map[beanKey]bool),
		logger:     logger,
	}
}

// Resolve returns the class to instantiate and the bean describing it.
//
// With refType set, refName selects one of that class's beans, falling back
// to an inheritable bean of the same name on a base class; an empty refName
// selects the "default" bean, the only bean, or an empty descriptor. With
// refType empty, refName must name a bean declared by exactly one class.
func (c *Container) Resolve(refType, refName string) (*symbols.SymClass, *symbols.Bean, error) {
	if refType != "" {
		class, ok := c.table.Lookup(refType)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownClass, refType)
		}
		bean, err := c.beanOf(class, refName)
		return class, bean, err
	}
	if refName == "" {
		return nil, nil, fmt.Errorf("%w: empty reference", ErrNoBean)
	}

	var found *symbols.Bean
	for _, class := range c.table.All() {
		bean, ok := class.Bean(refName)
		if !ok {
			continue
		}
		if found != nil {
			return nil, nil, fmt.Errorf("%w: %q declared by %s and %s", ErrAmbiguousBean, refName, found.Class, class)
		}
		found = bean
	}
	if found == nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrNoBean, refName)
	}
	return found.Class, found, nil
}

func (c *Container) beanOf(class *symbols.SymClass, name string) (*symbols.Bean, error) {
	if name == "" {
		if bean, err := c.beanOf(class, DefaultBean); err == nil {
			return bean, nil
		}
		if len(class.Beans) == 1 {
			for _, bean := range class.Beans {
				return bean, nil
			}
		}
		return &symbols.Bean{Class: class}, nil
	}

	if bean, ok := class.Bean(name); ok {
		return bean, nil
	}
	for _, base := range symbols.Ancestors(class.Type)[1:] {
		baseClass, ok := c.table.Get(base)
		if !ok {
			continue
		}
		if bean, ok := baseClass.Bean(name); ok && bean.Inherit {
			return bean, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no bean %q", ErrNoBean, class.Name, name)
}

// Get builds, or returns the cached singleton of, the referenced bean
func (c *Container) Get(refType, refName string) (any, error) {
	class, bean, err := c.Resolve(refType, refName)
	if err != nil {
		return nil, err
	}
	return c.build(class, bean)
}

func (c *Container) build(class *symbols.SymClass, bean *symbols.Bean) (any, error) {
	if !class.IsInstantiable() {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNotInstantiable, class.Name, class.Flags)
	}
	key := beanKey{class: class, bean: bean.Name}
	if bean.Singleton {
		if instance, ok := c.singletons[key]; ok {
			return instance, nil
		}
	}
	if c.building[key] {
		return nil, fmt.Errorf("%w: %s/%s", ErrCycle, class.Name, bean.Name)
	}
	c.building[key] = true
	defer delete(c.building, key)

	ptr := reflect.New(class.Type)
	wired := make(map[string]bool, len(bean.Fields))
	for _, f := range bean.Fields {
		if _, ok := c.field(class, f.Field); !ok {
			return nil, fmt.Errorf("%s/%s: %w: %s", class.Name, bean.Name, ErrUnknownField, f.Field)
		}
		target := ptr.Elem().FieldByName(f.Field)
		if f.IsReference() {
			dep, err := c.Get(f.RefType, f.RefName)
			if err != nil {
				return nil, fmt.Errorf("%s/%s field %s: %w", class.Name, bean.Name, f.Field, err)
			}
			if err := assign(target, dep); err != nil {
				return nil, fmt.Errorf("%s/%s field %s: %w", class.Name, bean.Name, f.Field, err)
			}
		} else if err := decode(f.Value, target); err != nil {
			return nil, fmt.Errorf("%s/%s field %s: %w", class.Name, bean.Name, f.Field, err)
		}
		wired[f.Field] = true
	}

	for _, field := range c.fields(class) {
		inject, ok := symbols.Find[symbols.Inject](field.Tags)
		if !ok || wired[field.Name] {
			continue
		}
		dep, err := c.inject(field, inject)
		if err != nil {
			return nil, fmt.Errorf("%s/%s field %s: %w", class.Name, bean.Name, field.Name, err)
		}
		if dep == nil {
			continue
		}
		if err := assign(ptr.Elem().FieldByName(field.Name), dep); err != nil {
			return nil, fmt.Errorf("%s/%s field %s: %w", class.Name, bean.Name, field.Name, err)
		}
	}

	instance := ptr.Interface()
	if bean.Singleton {
		c.singletons[key] = instance
	}
	c.logger.Debug("bean built", zap.String("class", class.FullName), zap.String("bean", bean.Name), zap.Bool("singleton", bean.Singleton))
	return instance, nil
}

// field finds name on class or, for promoted fields, on its nearest base class
func (c *Container) field(class *symbols.SymClass, name string) (*symbols.SymField, bool) {
	for _, t := range symbols.Ancestors(class.Type) {
		owner, ok := c.table.Get(t)
		if !ok {
			continue
		}
		if f, ok := owner.Field(name); ok {
			return f, true
		}
	}
	return nil, false
}

// fields returns the fields of class and its extracted base classes; a field
// shadows base fields of the same name.
func (c *Container) fields(class *symbols.SymClass) []*symbols.SymField {
	var result []*symbols.SymField
	seen := make(map[string]bool)
	for _, t := range symbols.Ancestors(class.Type) {
		owner, ok := c.table.Get(t)
		if !ok {
			continue
		}
		for _, f := range owner.FieldList() {
			if !seen[f.Name] {
				seen[f.Name] = true
				result = append(result, f)
			}
		}
	}
	return result
}

// inject builds the bean an inject-tagged field resolves to. Returns nil
// without error for an unresolvable optional field.
func (c *Container) inject(field *symbols.SymField, tag symbols.Inject) (any, error) {
	class, bean, err := c.injectTarget(field, tag)
	switch {
	case err == nil:
		return c.build(class, bean)
	case !errors.Is(err, ErrNoBean):
		return nil, err
	case tag.Optional:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnresolved, tag.Name)
}

// injectTarget resolves an inject tag by bean name, then by the default or
// only bean of the field's class
func (c *Container) injectTarget(field *symbols.SymField, tag symbols.Inject) (*symbols.SymClass, *symbols.Bean, error) {
	class, bean, err := c.Resolve("", tag.Name)
	if err == nil || !errors.Is(err, ErrNoBean) {
		return class, bean, err
	}
	if fieldClass, ok := c.table.Get(symbols.Indirect(field.Type)); ok {
		if b, berr := c.beanOf(fieldClass, ""); berr == nil && b.Name != "" {
			return fieldClass, b, nil
		}
	}
	return nil, nil, err
}

// Spawn builds the referenced bean, creates it in the spawner under label,
// and attaches its component beans in ascending priority, recursively.
func (c *Container) Spawn(refType, refName, label string) (any, error) {
	if c.spawner == nil {
		return nil, errors.New("spawn: container has no spawner")
	}
	class, bean, err := c.Resolve(refType, refName)
	if err != nil {
		return nil, err
	}
	instance, err := c.build(class, bean)
	if err != nil {
		return nil, err
	}
	if err := c.spawner.Create(instance, label); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", class.Name, err)
	}
	if err := c.attachComponents(instance, bean); err != nil {
		return instance, fmt.Errorf("spawn %s: %w", class.Name, err)
	}
	return instance, nil
}

func (c *Container) attachComponents(owner any, bean *symbols.Bean) error {
	wirings := append([]symbols.BeanComponent(nil), bean.Components...)
	sort.SliceStable(wirings, func(i, j int) bool { return wirings[i].Priority < wirings[j].Priority })

	for _, w := range wirings {
		scheduled, err := Activation(w)
		if err != nil {
			return err
		}

		class, cbean, err := c.Resolve(w.RefType, w.RefName)
		if err != nil {
			return err
		}
		instance, err := c.build(class, cbean)
		if err != nil {
			return err
		}
		component, ok := instance.(entity.ComponentNode)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotComponent, class.Name)
		}
		attach := c.spawner.Adopt
		if scheduled {
			attach = c.spawner.Attach
		}
		if err := attach(owner, component); err != nil {
			return err
		}
		if err := c.attachComponents(component, cbean); err != nil {
			return err
		}
	}
	return nil
}

// Activation reports whether a wiring schedules its component's own Start.
// Only "start" does; "" means none.
func Activation(w symbols.BeanComponent) (bool, error) {
	if w.Phase == "" {
		return false, nil
	}
	phase, err := lifecycle.ParsePhase(w.Phase)
	if err != nil {
		return false, err
	}
	if phase != lifecycle.Start {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedPhase, phase)
	}
	return true, nil
}

// Reset drops every cached singleton
func (c *Container) Reset() {
	c.singletons = make(map[beanKey]any)
}

func assign(target reflect.Value, dep any) error {
	v := reflect.ValueOf(dep)
	switch {
	case v.Type().AssignableTo(target.Type()):
		target.Set(v)
	case v.Kind() == reflect.Pointer && v.Elem().Type().AssignableTo(target.Type()):
		target.Set(v.Elem())
	default:
		return fmt.Errorf("cannot assign %s to %s", v.Type(), target.Type())
	}
	return nil
}

func decode(value any, target reflect.Value) error {
	if value == nil {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           target.Addr().Interface(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(value)
}
