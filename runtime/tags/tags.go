// Package tags defines the declarative tags recognized by the runtime.
//
// Business classes attach these through symbols.Annotated. The loader reads
// category, event, message and view tags; the kernel reads the bootstrap tags
// on its own handler types.
package tags

import (
	"reflect"

	"github.com/conduit-lang/nucleus/runtime/lifecycle"
)

// Named is implemented by category tags that can carry an explicit display name
type Named interface {
	TagName() string
	DeclaredName() string
}

// Scene marks a scene class
type Scene struct {
	Name string
}

func (Scene) TagName() string        { return "scene" }
func (t Scene) DeclaredName() string { return t.Name }

// Object marks a domain object class. Category is the functional category
// number used by game logic to group objects.
type Object struct {
	Name     string
	Category int
}

func (Object) TagName() string        { return "object" }
func (t Object) DeclaredName() string { return t.Name }

// View marks a view class
type View struct {
	Name string
}

func (View) TagName() string        { return "view" }
func (t View) DeclaredName() string { return t.Name }

// Component marks a component class
type Component struct {
	Name string
}

func (Component) TagName() string        { return "component" }
func (t Component) DeclaredName() string { return t.Name }

// Subscribe binds a method to an event.
//
// With a Payload the method must have the shape func(id int32, payload P)
// where Payload is assignable to P; without one, func(id int32). The method
// may return a single error.
type Subscribe struct {
	Event   int32
	Any     bool // catch-all: receives every event
	Payload reflect.Type
	Phase   lifecycle.Phase // the binding is active once the instance reached Phase
}

func (Subscribe) TagName() string { return "subscribe" }

// Handle binds a method to an inbound message opcode. Shape rules match Subscribe.
type Handle struct {
	Opcode  int32
	Any     bool
	Payload reflect.Type
	Phase   lifecycle.Phase
}

func (Handle) TagName() string { return "handle" }

// Symbiosis adds a view to a symbiosis group: views of one group are shown
// and hidden together. A view may belong to several groups.
type Symbiosis struct {
	Group string
}

func (Symbiosis) TagName() string { return "symbiosis" }

// ViewOptions carries view lifecycle flags
type ViewOptions struct {
	Cached bool // keep the view alive after it is hidden
	Masked bool // block input to views beneath it
}

func (ViewOptions) TagName() string { return "view_options" }

// AutoDisplay lists the views a scene shows as soon as it starts
type AutoDisplay struct {
	Views []string
}

func (AutoDisplay) TagName() string { return "auto_display" }

// PhaseHandler marks a method func(instance any) error as the handler for
// Target instances in Phase. Read by the kernel bootstrap.
type PhaseHandler struct {
	Phase  lifecycle.Phase
	Target reflect.Type
}

func (PhaseHandler) TagName() string { return "phase_handler" }

// LoaderRole says which callback table a CodeLoader method fills
type LoaderRole int

const (
	RoleLoad LoaderRole = iota
	RoleCleanup
	RoleLookup
)

// String returns the string representation of the role
func (r LoaderRole) String() string {
	switch r {
	case RoleLoad:
		return "load"
	case RoleCleanup:
		return "cleanup"
	case RoleLookup:
		return "lookup"
	default:
		return "unknown"
	}
}

// CodeLoader marks a method as a load, cleanup or lookup callback for the
// category rooted at Base. Read by the kernel bootstrap.
type CodeLoader struct {
	Base reflect.Type
	Role LoaderRole
}

func (CodeLoader) TagName() string { return "code_loader" }
