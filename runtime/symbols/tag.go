package symbols

import (
	"reflect"
	"strings"

	"github.com/fatih/structtag"
)

// Tag is a declarative marker attached to a class or one of its members.
// Tags are plain values and must not be mutated once attached.
type Tag interface {
	TagName() string
}

// Tags is the ordered list of tags decorating a single symbol.
type Tags []Tag

// Find returns the first tag of type T.
func Find[T Tag](tags Tags) (T, bool) {
	for _, tag := range tags {
		if v, ok := tag.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// FindAll returns every tag of type T in declaration order.
func FindAll[T Tag](tags Tags) []T {
	var result []T
	for _, tag := range tags {
		if v, ok := tag.(T); ok {
			result = append(result, v)
		}
	}
	return result
}

// Has reports whether a tag of type T is present.
func Has[T Tag](tags Tags) bool {
	_, ok := Find[T](tags)
	return ok
}

// Names returns the tag names in declaration order
func (t Tags) Names() []string {
	names := make([]string, 0, len(t))
	for _, tag := range t {
		names = append(names, tag.TagName())
	}
	return names
}

// Inject marks a field as a named reference to be wired by the bean container.
// Produced from the `inject:"name[,optional]"` struct tag.
type Inject struct {
	Name     string
	Optional bool
}

func (Inject) TagName() string { return "inject" }

// StructTag carries any struct tag key the extractor has no dedicated type for.
type StructTag struct {
	Key   string
	Value string
}

func (t StructTag) TagName() string { return "struct:" + t.Key }

// Abstract marks a class that must never be instantiated directly.
type Abstract struct{}

func (Abstract) TagName() string { return "abstract" }

// Static marks a class that only groups behavior and carries no instance state.
type Static struct{}

func (Static) TagName() string { return "static" }

// Annotations declares the tags of a class and its members.
// Member maps are keyed by member name; entries naming members the extractor
// does not surface are ignored.
type Annotations struct {
	Class      Tags
	Fields     map[string]Tags
	Methods    map[string]Tags
	Properties map[string]Tags
	Beans      []Bean
}

// Annotated is implemented by classes that declare their own tags.
// Annotations is invoked on a zero value of the class during extraction, so it
// must not depend on instance state. Derived classes inherit their base's
// annotations through method promotion unless they declare their own.
type Annotated interface {
	Annotations() Annotations
}

const annotationsMethod = "Annotations"

// parseStructTag converts a raw struct tag into extractor tags.
// Malformed struct tags produce no tags.
func parseStructTag(fieldName string, raw reflect.StructTag) Tags {
	if raw == "" {
		return nil
	}
	parsed, err := structtag.Parse(string(raw))
	if err != nil {
		return nil
	}

	var tags Tags
	for _, st := range parsed.Tags() {
		if st.Key == "inject" {
			inject := Inject{Name: st.Name}
			if inject.Name == "" {
				inject.Name = fieldName
			}
			for _, opt := range st.Options {
				if strings.TrimSpace(opt) == "optional" {
					inject.Optional = true
				}
			}
			tags = append(tags, inject)
			continue
		}
		tags = append(tags, StructTag{Key: st.Key, Value: st.Value()})
	}
	return tags
}
