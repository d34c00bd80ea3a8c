package loader

import (
	"fmt"
	"reflect"

	"github.com/conduit-lang/nucleus/runtime/lifecycle"
	"github.com/conduit-lang/nucleus/runtime/symbols"
)

// Category identifies one of the four managed object kinds
type Category int

const (
	CategoryScene Category = iota
	CategoryObject
	CategoryView
	CategoryComponent
)

// String returns the category name; it matches the category tag's name
func (c Category) String() string {
	switch c {
	case CategoryScene:
		return "scene"
	case CategoryObject:
		return "object"
	case CategoryView:
		return "view"
	case CategoryComponent:
		return "component"
	default:
		return "unknown"
	}
}

// Suffix is the class-name suffix stripped to derive a default display name
func (c Category) Suffix() string {
	switch c {
	case CategoryScene:
		return "Scene"
	case CategoryObject:
		return "Object"
	case CategoryView:
		return "View"
	case CategoryComponent:
		return "Component"
	default:
		return ""
	}
}

// Info is implemented by every category-specific code info record
type Info interface {
	Base() *CodeInfo
}

// CodeInfo is the metadata every category derives from a class.
// Records are read-only once registered; reload swaps in a new record.
type CodeInfo struct {
	Name     string
	Category Category
	Class    *symbols.SymClass
	Events   []EventBinding
	Messages []MessageBinding
}

// Base returns the shared record
func (c *CodeInfo) Base() *CodeInfo { return c }

// EventsFor returns the bindings receiving event id, catch-all bindings included
func (c *CodeInfo) EventsFor(id int32) []EventBinding {
	var result []EventBinding
	for _, b := range c.Events {
		if b.Any || b.Event == id {
			result = append(result, b)
		}
	}
	return result
}

// MessagesFor returns the bindings receiving opcode, catch-all bindings included
func (c *CodeInfo) MessagesFor(opcode int32) []MessageBinding {
	var result []MessageBinding
	for _, b := range c.Messages {
		if b.Any || b.Opcode == opcode {
			result = append(result, b)
		}
	}
	return result
}

// SceneInfo adds the views a scene displays on start
type SceneInfo struct {
	CodeInfo
	AutoDisplay []string
}

// ViewInfo adds symbiosis groups and view lifecycle flags
type ViewInfo struct {
	CodeInfo
	Groups []string
	Cached bool
	Masked bool
}

// ObjectInfo adds the functional category number
type ObjectInfo struct {
	CodeInfo
	FunctionalCategory int
}

// ComponentInfo carries no data beyond the shared record
type ComponentInfo struct {
	CodeInfo
}

// EventBinding routes an event to a method
type EventBinding struct {
	Event   int32
	Any     bool
	Payload reflect.Type
	Phase   lifecycle.Phase
	Method  *symbols.SymMethod
}

// Invoke calls the bound method on receiver
func (b EventBinding) Invoke(receiver any, id int32, payload any) error {
	return invoke(b.Method, b.Payload, receiver, id, payload)
}

// MessageBinding routes an inbound message to a method
type MessageBinding struct {
	Opcode  int32
	Any     bool
	Payload reflect.Type
	Phase   lifecycle.Phase
	Method  *symbols.SymMethod
}

// Invoke calls the bound method on receiver
func (b MessageBinding) Invoke(receiver any, opcode int32, payload any) error {
	return invoke(b.Method, b.Payload, receiver, opcode, payload)
}

func invoke(method *symbols.SymMethod, payloadType reflect.Type, receiver any, id int32, payload any) error {
	fn := method.Bind(receiver)
	if !fn.IsValid() {
		return fmt.Errorf("%w: %T has no method %s", ErrInvoke, receiver, method.Name)
	}

	args := []reflect.Value{reflect.ValueOf(id)}
	if payloadType != nil {
		paramType := method.Params[1].Type
		if payload == nil {
			args = append(args, reflect.Zero(paramType))
		} else {
			v := reflect.ValueOf(payload)
			if !v.Type().AssignableTo(paramType) {
				return fmt.Errorf("%w: %s payload %s is not assignable to %s", ErrInvoke, method.Name, v.Type(), paramType)
			}
			args = append(args, v)
		}
	}

	out := fn.Call(args)
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}
