package commands

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/conduit-lang/nucleus/runtime/kernel"
	"github.com/conduit-lang/nucleus/runtime/lifecycle"
	"github.com/conduit-lang/nucleus/runtime/loader"
	"github.com/conduit-lang/nucleus/runtime/symbols"
)

// plainCategory labels extracted classes outside every category
const plainCategory = "class"

// ClassSummary is one row of 'introspect classes'
type ClassSummary struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Class    string `json:"class"`
	Base     string `json:"base,omitempty"`
	Events   int    `json:"events"`
	Messages int    `json:"messages"`
	Beans    int    `json:"beans"`
}

// ClassDetail is the output of 'introspect class'
type ClassDetail struct {
	ClassSummary
	Flags      string            `json:"flags"`
	Tags       []string          `json:"tags,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Fields     []FieldDetail     `json:"fields,omitempty"`
	Bindings   []BindingDetail   `json:"bindings,omitempty"`
	BeanList   []BeanDetail      `json:"bean_list,omitempty"`
}

// FieldDetail describes one extracted field
type FieldDetail struct {
	Name string   `json:"name"`
	Type string   `json:"type"`
	Tags []string `json:"tags,omitempty"`
}

// BindingDetail describes one event or message binding
type BindingDetail struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Payload string `json:"payload,omitempty"`
	Phase   string `json:"phase"`
	Method  string `json:"method"`
}

// BeanDetail describes one bean descriptor
type BeanDetail struct {
	Class      string   `json:"class,omitempty"`
	Name       string   `json:"name"`
	Singleton  bool     `json:"singleton"`
	Inherit    bool     `json:"inherit"`
	Fields     []string `json:"fields,omitempty"`
	Components []string `json:"components,omitempty"`
}

// HandlerSummary is one registered phase handler
type HandlerSummary struct {
	Phase   string `json:"phase"`
	Target  string `json:"target"`
	Pending int    `json:"pending"`
}

// RouteSummary names the handler each phase of a loaded class resolves to
type RouteSummary struct {
	Class   string `json:"class"`
	Start   string `json:"start"`
	Destroy string `json:"destroy"`
}

// categoryOrder sorts summaries scene, object, view, component, then plain
func categoryOrder(category string) int {
	for i, c := range []loader.Category{loader.CategoryScene, loader.CategoryObject, loader.CategoryView, loader.CategoryComponent} {
		if c.String() == category {
			return i
		}
	}
	return 4
}

func summarize(k *kernel.Kernel, class *symbols.SymClass) ClassSummary {
	s := ClassSummary{
		Name:     class.Name,
		Category: plainCategory,
		Class:    class.FullName,
		Beans:    len(class.Beans),
	}
	if class.Base != nil {
		s.Base = class.Base.String()
	}
	if info := k.Loaders().Lookup(class); info != nil {
		base := info.Base()
		s.Name = base.Name
		s.Category = base.Category.String()
		s.Events = len(base.Events)
		s.Messages = len(base.Messages)
	}
	return s
}

// collectClasses summarizes every extracted class, grouped by category and
// ordered by name within a group
func collectClasses(k *kernel.Kernel) []ClassSummary {
	var result []ClassSummary
	for _, class := range k.Table().All() {
		result = append(result, summarize(k, class))
	}
	sort.SliceStable(result, func(i, j int) bool {
		ci, cj := categoryOrder(result[i].Category), categoryOrder(result[j].Category)
		if ci != cj {
			return ci < cj
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// findClass matches name against display names, then short and full class
// names. It returns every known name when nothing matches.
func findClass(k *kernel.Kernel, name string) (*symbols.SymClass, []string) {
	var names []string
	for _, class := range k.Table().All() {
		s := summarize(k, class)
		if s.Name == name || class.Name == name || class.FullName == name {
			return class, nil
		}
		names = append(names, s.Name)
		if class.Name != s.Name {
			names = append(names, class.Name)
		}
	}
	return nil, names
}

func describeClass(k *kernel.Kernel, class *symbols.SymClass) ClassDetail {
	d := ClassDetail{
		ClassSummary: summarize(k, class),
		Flags:        class.Flags.String(),
		Tags:         class.Tags.Names(),
		Attributes:   attributes(k.Loaders().Lookup(class)),
	}

	for _, f := range class.FieldList() {
		d.Fields = append(d.Fields, FieldDetail{Name: f.Name, Type: f.Type.String(), Tags: f.Tags.Names()})
	}

	if info := k.Loaders().Lookup(class); info != nil {
		for _, b := range info.Base().Events {
			d.Bindings = append(d.Bindings, BindingDetail{
				Kind:    "event",
				ID:      bindingID(b.Event, b.Any),
				Payload: typeName(b.Payload),
				Phase:   b.Phase.String(),
				Method:  b.Method.Signature(),
			})
		}
		for _, b := range info.Base().Messages {
			d.Bindings = append(d.Bindings, BindingDetail{
				Kind:    "message",
				ID:      bindingID(b.Opcode, b.Any),
				Payload: typeName(b.Payload),
				Phase:   b.Phase.String(),
				Method:  b.Method.Signature(),
			})
		}
	}

	names := make([]string, 0, len(class.Beans))
	for name := range class.Beans {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d.BeanList = append(d.BeanList, describeBean("", class.Beans[name]))
	}
	return d
}

// attributes flattens the category specific code info fields
func attributes(info loader.Info) map[string]string {
	switch v := info.(type) {
	case *loader.SceneInfo:
		return map[string]string{"auto_display": strings.Join(v.AutoDisplay, ", ")}
	case *loader.ViewInfo:
		return map[string]string{
			"groups": strings.Join(v.Groups, ", "),
			"cached": fmt.Sprint(v.Cached),
			"masked": fmt.Sprint(v.Masked),
		}
	case *loader.ObjectInfo:
		return map[string]string{"functional_category": fmt.Sprint(v.FunctionalCategory)}
	}
	return nil
}

func describeBean(class string, b *symbols.Bean) BeanDetail {
	d := BeanDetail{Class: class, Name: b.Name, Singleton: b.Singleton, Inherit: b.Inherit}
	for _, f := range b.Fields {
		switch {
		case f.IsReference():
			d.Fields = append(d.Fields, fmt.Sprintf("%s=&%s", f.Field, beanRef(f.RefType, f.RefName)))
		default:
			d.Fields = append(d.Fields, fmt.Sprintf("%s=%v", f.Field, f.Value))
		}
	}
	for _, c := range b.Components {
		ref := beanRef(c.RefType, c.RefName)
		if c.Phase != "" {
			ref += "@" + c.Phase
		}
		d.Components = append(d.Components, ref)
	}
	return d
}

// collectHandlers lists the phase handlers in dispatch order. Pending counts
// the queued instances each handler would serve.
func collectHandlers(k *kernel.Kernel) []HandlerSummary {
	var result []HandlerSummary
	d := k.Dispatcher()
	for _, phase := range lifecycle.Phases() {
		pending := make(map[reflect.Type]int)
		for _, instance := range d.PendingInstances(phase) {
			if t, ok := d.ResolveHandler(phase, symbols.TypeOf(instance)); ok {
				pending[t]++
			}
		}
		for _, t := range d.HandlerTypes(phase) {
			result = append(result, HandlerSummary{Phase: phase.String(), Target: t.String(), Pending: pending[t]})
		}
	}
	return result
}

// collectRoutes resolves the phase handlers of every categorized class
func collectRoutes(k *kernel.Kernel) []RouteSummary {
	var result []RouteSummary
	for _, class := range k.Table().All() {
		if _, ok := k.Loaders().CategoryOf(class); !ok {
			continue
		}
		route := RouteSummary{Class: class.Name}
		if t, ok := k.Dispatcher().ResolveHandler(lifecycle.Start, class.Type); ok {
			route.Start = t.String()
		}
		if t, ok := k.Dispatcher().ResolveHandler(lifecycle.Destroy, class.Type); ok {
			route.Destroy = t.String()
		}
		result = append(result, route)
	}
	return result
}

func beanRef(refType, refName string) string {
	switch {
	case refName == "":
		return refType
	case refType == "":
		return refName
	default:
		return refType + "/" + refName
	}
}

func bindingID(id int32, catchAll bool) string {
	if catchAll {
		return "*"
	}
	return fmt.Sprint(id)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}
