package kernel

import (
	"fmt"

	"github.com/conduit-lang/nucleus/runtime/lifecycle"
)

// active reports whether a binding targeting phase may run for instance.
// Start bindings need a started instance that is not being destroyed;
// Destroy bindings keep running while the instance is torn down.
func (k *Kernel) active(phase lifecycle.Phase, instance any) bool {
	if !k.manager.IsStarted(instance) {
		return false
	}
	return phase == lifecycle.Destroy || !k.manager.IsDestroying(instance)
}

// Emit delivers event id to every live entity and component subscribed to
// it, entities first. The first binding error stops delivery and is returned.
func (k *Kernel) Emit(id int32, payload any) (int, error) {
	entities := k.lookup.FindAllEntities()
	targets := append(entities, k.findComponents(nil)...)

	delivered := 0
	for _, instance := range targets {
		info := k.Info(instance)
		if info == nil {
			continue
		}
		for _, b := range info.Base().EventsFor(id) {
			if !k.active(b.Phase, instance) {
				continue
			}
			if err := b.Invoke(instance, id, payload); err != nil {
				return delivered, fmt.Errorf("event %d to %s.%s: %w", id, info.Base().Name, b.Method.Name, err)
			}
			delivered++
		}
	}
	return delivered, nil
}

// Deliver routes an inbound message to instance's bindings for opcode
func (k *Kernel) Deliver(instance any, opcode int32, payload any) error {
	info := k.Info(instance)
	if info == nil {
		return fmt.Errorf("%w: %T is not loaded", ErrNoBinding, instance)
	}
	delivered := 0
	for _, b := range info.Base().MessagesFor(opcode) {
		if !k.active(b.Phase, instance) {
			continue
		}
		if err := b.Invoke(instance, opcode, payload); err != nil {
			return fmt.Errorf("message %d to %s.%s: %w", opcode, info.Base().Name, b.Method.Name, err)
		}
		delivered++
	}
	if delivered == 0 {
		return fmt.Errorf("%w: %s has no active handler for opcode %d", ErrNoBinding, info.Base().Name, opcode)
	}
	return nil
}
