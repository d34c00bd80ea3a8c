package symbols

import "errors"

var (
	// ErrNilType is returned when extraction is asked for a nil type
	ErrNilType = errors.New("nil type")
	// ErrUnnamedType is returned for anonymous types, which cannot be classes
	ErrUnnamedType = errors.New("unnamed type")
	// ErrUnnamedBean is returned when a bean has no name
	ErrUnnamedBean = errors.New("bean has no name")
	// ErrDuplicateBean is returned when a class declares a bean name twice
	ErrDuplicateBean = errors.New("duplicate bean name")
)

// Bean is a dependency-injection descriptor bound to a SymClass
type Bean struct {
	Name       string          `yaml:"name"`
	Singleton  bool            `yaml:"singleton"`
	Inherit    bool            `yaml:"inherit"` // visible from derived classes
	Fields     []BeanField     `yaml:"fields"`
	Components []BeanComponent `yaml:"components"`

	Class *SymClass `yaml:"-"` // Owning class, set by AddBean
}

// BeanField wires one field, either to another bean or to a literal value.
// RefType/RefName select a bean; Value is used when both are empty.
type BeanField struct {
	Field   string `yaml:"field"`
	RefType string `yaml:"ref_type,omitempty"`
	RefName string `yaml:"ref_name,omitempty"`
	Value   any    `yaml:"value,omitempty"`
}

// IsReference reports whether the field is wired to another bean
func (f BeanField) IsReference() bool {
	return f.RefType != "" || f.RefName != ""
}

// BeanComponent attaches a component bean to the constructed entity.
// Components are attached in ascending Priority. Phase "start" schedules the
// component's own Start once attached; "" attaches it without one, so it
// begins together with its owner.
type BeanComponent struct {
	RefType  string `yaml:"ref_type"`
	RefName  string `yaml:"ref_name,omitempty"`
	Priority int    `yaml:"priority,omitempty"`
	Phase    string `yaml:"phase,omitempty"`
}
