package symbols

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"
)

// Extractor builds SymClass records from Go types into a Table
type Extractor struct {
	table  *Table
	logger *zap.Logger
}

// NewExtractor creates an extractor writing into table
func NewExtractor(table *Table, logger *zap.Logger) *Extractor {
	if table == nil {
		table = NewTable()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		table:  table,
		logger: logger,
	}
}

// Table returns the table the extractor writes into
func (e *Extractor) Table() *Table {
	return e.table
}

// ExtractValue extracts the class of v's dynamic type
func (e *Extractor) ExtractValue(v any) (*SymClass, error) {
	return e.Extract(TypeOf(v))
}

// Extract produces or refreshes the SymClass for typ.
//
// Re-extracting a type updates the existing record in place, so references
// held by loaders stay valid and members are never duplicated. A failed
// re-extraction leaves the existing record untouched. Member shapes the model
// cannot describe are omitted without error.
func (e *Extractor) Extract(typ reflect.Type) (*SymClass, error) {
	typ = Indirect(typ)
	if typ == nil {
		return nil, ErrNilType
	}
	if typ.Name() == "" {
		return nil, fmt.Errorf("extract %s: %w", typ.String(), ErrUnnamedType)
	}

	class := newSymClass(typ)
	if typ.Kind() == reflect.Interface {
		class.Flags |= FlagInterface
	} else {
		class.Base = BaseOf(typ)
		e.extractFields(class)
	}
	e.extractMethods(class)
	e.extractProperties(class)

	if err := e.applyAnnotations(class); err != nil {
		return nil, err
	}

	if typ.Kind() == reflect.Struct && !class.IsAbstract() && !class.IsStatic() {
		class.Flags |= FlagInstantiable
	}

	if existing, ok := e.table.Get(typ); ok {
		existing.replace(class)
		class = existing
	}
	e.table.put(class)
	e.logger.Debug("extracted class",
		zap.String("class", class.FullName),
		zap.Int("fields", len(class.Fields)),
		zap.Int("methods", len(class.Methods)),
		zap.Int("properties", len(class.Properties)),
		zap.Stringer("flags", class.Flags),
	)
	return class, nil
}

// ExtractAll extracts every type, continuing past failures.
// Returns the classes that succeeded and every error, joined.
func (e *Extractor) ExtractAll(types ...reflect.Type) ([]*SymClass, error) {
	classes := make([]*SymClass, 0, len(types))
	var errs []error
	for _, typ := range types {
		class, err := e.Extract(typ)
		if err != nil {
			e.logger.Error("class extraction failed", zap.Error(err))
			errs = append(errs, err)
			continue
		}
		classes = append(classes, class)
	}
	return classes, errors.Join(errs...)
}

func (e *Extractor) extractFields(class *SymClass) {
	typ := class.Type
	if typ.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if f.Anonymous || !f.IsExported() || f.Name == "_" {
			continue
		}
		switch f.Type.Kind() {
		case reflect.Chan, reflect.Func, reflect.UnsafePointer:
			continue
		}
		class.Fields[f.Name] = &SymField{
			Name:  f.Name,
			Type:  f.Type,
			Index: f.Index,
			Tags:  parseStructTag(f.Name, f.Tag),
		}
	}
}

func (e *Extractor) extractMethods(class *SymClass) {
	methodSet := class.Type
	hasReceiver := false
	if methodSet.Kind() != reflect.Interface {
		methodSet = reflect.PointerTo(methodSet)
		hasReceiver = true
	}

	for i := 0; i < methodSet.NumMethod(); i++ {
		m := methodSet.Method(i)
		if m.Name == annotationsMethod {
			continue
		}
		class.Methods[m.Name] = newSymMethod(m, hasReceiver)
	}
}

func newSymMethod(m reflect.Method, hasReceiver bool) *SymMethod {
	ft := m.Type
	first := 0
	if hasReceiver {
		first = 1
	}

	sm := &SymMethod{
		Name:     m.Name,
		Variadic: ft.IsVariadic(),
	}
	for i := first; i < ft.NumIn(); i++ {
		sm.Params = append(sm.Params, SymParam{Index: i - first, Type: ft.In(i)})
	}
	for i := 0; i < ft.NumOut(); i++ {
		sm.Returns = append(sm.Returns, ft.Out(i))
	}
	return sm
}

// extractProperties pairs getters X() V with setters SetX(V).
func (e *Extractor) extractProperties(class *SymClass) {
	for name, getter := range class.Methods {
		if strings.HasPrefix(name, "Set") || len(getter.Params) != 0 || len(getter.Returns) != 1 {
			continue
		}
		setter, ok := class.Methods["Set"+name]
		if !ok || len(setter.Params) != 1 || len(setter.Returns) != 0 || setter.Variadic {
			continue
		}
		if setter.Params[0].Type != getter.Returns[0] {
			continue
		}
		class.Properties[name] = &SymProperty{
			Name:   name,
			Type:   getter.Returns[0],
			Getter: getter,
			Setter: setter,
		}
	}
}

func (e *Extractor) applyAnnotations(class *SymClass) error {
	if class.IsInterface() {
		return nil
	}
	annotated, ok := reflect.New(class.Type).Interface().(Annotated)
	if !ok {
		return nil
	}
	ann := annotated.Annotations()

	class.Tags = append(class.Tags, ann.Class...)
	if Has[Abstract](class.Tags) {
		class.Flags |= FlagAbstract
	}
	if Has[Static](class.Tags) {
		class.Flags |= FlagStatic
	}

	for name, tags := range ann.Fields {
		if f, ok := class.Fields[name]; ok {
			f.Tags = append(f.Tags, tags...)
			continue
		}
		e.logger.Debug("annotation names unknown field", zap.String("class", class.Name), zap.String("field", name))
	}
	for name, tags := range ann.Methods {
		if m, ok := class.Methods[name]; ok {
			m.Tags = append(m.Tags, tags...)
			continue
		}
		e.logger.Debug("annotation names unknown method", zap.String("class", class.Name), zap.String("method", name))
	}
	for name, tags := range ann.Properties {
		if p, ok := class.Properties[name]; ok {
			p.Tags = append(p.Tags, tags...)
			continue
		}
		e.logger.Debug("annotation names unknown property", zap.String("class", class.Name), zap.String("property", name))
	}

	for _, bean := range ann.Beans {
		if err := class.AddBean(bean); err != nil {
			return fmt.Errorf("extract %s: %w", class.FullName, err)
		}
	}
	return nil
}
