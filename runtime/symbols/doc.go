// Package symbols describes classes for the lifecycle and dispatch core.
//
// # Overview
//
// A class is a named Go type. Its "base class" is the first struct it embeds,
// so the ancestor chain of
//
//	type PlayerObject struct {
//		entity.Object
//		HP int
//	}
//
// is PlayerObject → entity.Object → entity.Base. Registries elsewhere in the
// runtime use this chain to pick the most specific handler for an instance.
//
// # Extraction
//
// The Extractor walks a type once with reflection and records:
//
//   - SymField: exported fields, with struct tags converted to Tag values
//   - SymMethod: the exported method set of the pointer type
//   - SymProperty: getter/setter pairs X() V and SetX(V)
//   - Bean: dependency-injection descriptors declared by the class
//
// Tags on methods cannot be expressed in Go syntax, so classes declare them by
// implementing Annotated:
//
//	func (*PlayerObject) Annotations() symbols.Annotations {
//		return symbols.Annotations{
//			Class: symbols.Tags{tags.Object{Name: "Player", Category: 2}},
//			Methods: map[string]symbols.Tags{
//				"OnDamage": {tags.Subscribe{Event: EventDamage, Payload: reflect.TypeOf(&Damage{})}},
//			},
//		}
//	}
//
// Extraction is idempotent: extracting the same type again refreshes the
// existing record rather than creating a second one.
package symbols
