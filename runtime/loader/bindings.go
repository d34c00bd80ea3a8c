package loader

import (
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/conduit-lang/nucleus/runtime/symbols"
	"github.com/conduit-lang/nucleus/runtime/tags"
)

var (
	// ErrMalformedBinding is reported when a tagged method's shape does not
	// match what its tag requires
	ErrMalformedBinding = errors.New("malformed binding")
	// ErrInvoke is returned when a binding cannot be called on a receiver
	ErrInvoke = errors.New("cannot invoke binding")
)

var (
	idType    = reflect.TypeOf(int32(0))
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// validateShape checks a bound method against its tag's expected shape:
// (int32, P) when a payload type is declared, (int32) otherwise, returning
// nothing or a single error.
func validateShape(method *symbols.SymMethod, payload reflect.Type) error {
	if method.Variadic {
		return fmt.Errorf("%w: %s is variadic", ErrMalformedBinding, method.Signature())
	}
	switch len(method.Returns) {
	case 0:
	case 1:
		if method.Returns[0] != errorType {
			return fmt.Errorf("%w: %s must return nothing or error", ErrMalformedBinding, method.Signature())
		}
	default:
		return fmt.Errorf("%w: %s returns more than one value", ErrMalformedBinding, method.Signature())
	}

	want := 1
	if payload != nil {
		want = 2
	}
	if len(method.Params) != want {
		return fmt.Errorf("%w: %s takes %d parameters, want %d", ErrMalformedBinding, method.Signature(), len(method.Params), want)
	}
	if method.Params[0].Type != idType {
		return fmt.Errorf("%w: %s first parameter must be int32", ErrMalformedBinding, method.Signature())
	}
	if payload != nil && !payload.AssignableTo(method.Params[1].Type) {
		return fmt.Errorf("%w: %s cannot accept payload %s", ErrMalformedBinding, method.Signature(), payload)
	}
	return nil
}

// scanBindings collects event and message bindings from every method of class.
// Malformed bindings are logged and skipped; in strict mode the first one is
// returned as an error instead.
func scanBindings(class *symbols.SymClass, logger *zap.Logger, strict bool) ([]EventBinding, []MessageBinding, error) {
	var events []EventBinding
	var messages []MessageBinding

	for _, method := range class.MethodList() {
		for _, sub := range symbols.FindAll[tags.Subscribe](method.Tags) {
			if err := validateShape(method, sub.Payload); err != nil {
				logger.Error("skipping event binding",
					zap.String("class", class.Name),
					zap.String("method", method.Name),
					zap.Error(err),
				)
				if strict {
					return nil, nil, fmt.Errorf("class %s: %w", class.Name, err)
				}
				continue
			}
			events = append(events, EventBinding{
				Event:   sub.Event,
				Any:     sub.Any,
				Payload: sub.Payload,
				Phase:   sub.Phase,
				Method:  method,
			})
		}

		for _, h := range symbols.FindAll[tags.Handle](method.Tags) {
			if err := validateShape(method, h.Payload); err != nil {
				logger.Error("skipping message binding",
					zap.String("class", class.Name),
					zap.String("method", method.Name),
					zap.Error(err),
				)
				if strict {
					return nil, nil, fmt.Errorf("class %s: %w", class.Name, err)
				}
				continue
			}
			messages = append(messages, MessageBinding{
				Opcode:  h.Opcode,
				Any:     h.Any,
				Payload: h.Payload,
				Phase:   h.Phase,
				Method:  method,
			})
		}
	}
	return events, messages, nil
}
