// Package entity defines the category base types and a reference entity
// manager.
//
// Business classes embed Scene, Object, View or Component; the embedded type
// is the category key every registry resolves against. World tracks live
// instances, schedules their lifecycle phases, and finishes the start and
// teardown work the kernel's phase handlers delegate back to it.
package entity

import (
	"reflect"

	"github.com/google/uuid"

	"github.com/conduit-lang/nucleus/runtime/symbols"
)

// Container is implemented by everything components can be attached to
type Container interface {
	AttachedComponents() []any
}

// Node is implemented by scenes, objects and views
type Node interface {
	Container
	EntityBase() *Base
}

// SceneNode is implemented by every class embedding Scene
type SceneNode interface {
	Node
	SceneBase() *Scene
}

// ObjectNode is implemented by every class embedding Object
type ObjectNode interface {
	Node
	ObjectBase() *Object
}

// ViewNode is implemented by every class embedding View
type ViewNode interface {
	Node
	ViewBase() *View
}

// ComponentNode is implemented by every class embedding Component
type ComponentNode interface {
	Container
	ComponentBase() *Component
}

// Base holds what scenes, objects and views share
type Base struct {
	id         uuid.UUID
	label      string
	components []any
}

// ID returns the entity id, assigned when the entity is created in a World
func (b *Base) ID() uuid.UUID { return b.id }

// Label returns the diagnostic label
func (b *Base) Label() string { return b.label }

// EntityBase returns the shared entity state
func (b *Base) EntityBase() *Base { return b }

// AttachedComponents returns the directly attached components in attach order
func (b *Base) AttachedComponents() []any {
	return append([]any(nil), b.components...)
}

// Scene is the base of every scene class
type Scene struct{ Base }

// SceneBase returns the embedded scene state
func (s *Scene) SceneBase() *Scene { return s }

// Object is the base of every domain object class
type Object struct{ Base }

// ObjectBase returns the embedded object state
func (o *Object) ObjectBase() *Object { return o }

// View is the base of every view class
type View struct{ Base }

// ViewBase returns the embedded view state
func (v *View) ViewBase() *View { return v }

// Component is the base of every component class. Components attach to an
// entity or to another component.
type Component struct {
	id         uuid.UUID
	owner      any
	components []any
}

// ID returns the component id
func (c *Component) ID() uuid.UUID { return c.id }

// ComponentBase returns the embedded component state
func (c *Component) ComponentBase() *Component { return c }

// Owner returns the instance the component is attached to, or nil
func (c *Component) Owner() any { return c.owner }

// AttachedComponents returns the nested components in attach order
func (c *Component) AttachedComponents() []any {
	return append([]any(nil), c.components...)
}

// Category base types
var (
	SceneType     = reflect.TypeOf(Scene{})
	ObjectType    = reflect.TypeOf(Object{})
	ViewType      = reflect.TypeOf(View{})
	ComponentType = reflect.TypeOf(Component{})
)

// RootOf walks a component's owner chain up to the entity owning it.
// Returns nil for a detached component.
func RootOf(component any) any {
	current := component
	for {
		node, ok := current.(ComponentNode)
		if !ok {
			return current
		}
		current = node.ComponentBase().owner
		if current == nil {
			return nil
		}
	}
}

// ComponentsOf returns every component attached to owner, nested ones
// included, depth first. A nil t returns all of them; otherwise only
// components whose class is assignable to t.
func ComponentsOf(owner any, t reflect.Type) []any {
	container, ok := owner.(Container)
	if !ok {
		return nil
	}
	var result []any
	for _, c := range container.AttachedComponents() {
		if t == nil || symbols.AssignableTo(symbols.TypeOf(c), t) {
			result = append(result, c)
		}
		result = append(result, ComponentsOf(c, t)...)
	}
	return result
}

func containerSlice(owner any) *[]any {
	switch node := owner.(type) {
	case ComponentNode:
		return &node.ComponentBase().components
	case Node:
		return &node.EntityBase().components
	}
	return nil
}

func removeFrom(list *[]any, item any) bool {
	for i, existing := range *list {
		if existing == item {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}
