// Package lifecycle queues live instances for phase transitions and runs the
// most specific handler registered for each instance's class.
package lifecycle

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/conduit-lang/nucleus/runtime/resolve"
	"github.com/conduit-lang/nucleus/runtime/symbols"
)

// Handler finishes a phase transition for one instance.
// A returned error aborts the current flush.
type Handler func(instance any) error

// UnregisterFunc is called when an instance leaves a phase without being dispatched
type UnregisterFunc func(instance any)

type queued struct {
	instance any
	seq      uint64
}

type phaseQueue struct {
	phase    Phase
	handlers resolve.Resolver[Handler]
	queue    []queued
	state    map[any]State
	nextSeq  uint64
	hooks    []UnregisterFunc
}

// Dispatcher owns one pending queue and one handler table per phase.
// It is not safe for concurrent use.
type Dispatcher struct {
	phases []*phaseQueue
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher with an empty queue for every phase
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		phases: make([]*phaseQueue, phaseCount),
		logger: logger,
	}
	for _, p := range Phases() {
		d.phases[p] = &phaseQueue{
			phase: p,
			state: make(map[any]State),
		}
	}
	return d
}

// RegisterPhaseHandler binds handler to instances of typ (or any subclass)
// for phase. A second registration for the same pair is rejected; remove the
// existing handler first to replace it.
func (d *Dispatcher) RegisterPhaseHandler(phase Phase, typ reflect.Type, handler Handler) error {
	if !phase.Valid() {
		return fmt.Errorf("register handler: %w: %d", ErrUnknownPhase, phase)
	}
	if typ == nil {
		return fmt.Errorf("register %s handler: %w", phase, ErrNilType)
	}
	if handler == nil {
		return fmt.Errorf("register %s handler for %s: %w", phase, typ, ErrNilHandler)
	}

	q := d.phases[phase]
	if _, exists := q.handlers.Get(typ); exists {
		d.logger.Warn("phase handler already registered",
			zap.Stringer("phase", phase),
			zap.Stringer("type", typ),
		)
		return fmt.Errorf("register %s handler for %s: %w", phase, typ, ErrHandlerExists)
	}
	q.handlers.Set(typ, handler)
	return nil
}

// RemovePhaseHandler drops the handler registered for exactly (phase, typ)
func (d *Dispatcher) RemovePhaseHandler(phase Phase, typ reflect.Type) bool {
	if !phase.Valid() {
		return false
	}
	return d.phases[phase].handlers.Remove(typ)
}

// ResolveHandler returns the handler key that would serve an instance of typ
func (d *Dispatcher) ResolveHandler(phase Phase, typ reflect.Type) (reflect.Type, bool) {
	if !phase.Valid() {
		return nil, false
	}
	key, _, ok := d.phases[phase].handlers.Resolve(typ, resolve.Inclusive)
	return key, ok
}

// HandlerTypes returns the types with a handler for phase, most specific first
func (d *Dispatcher) HandlerTypes(phase Phase) []reflect.Type {
	if !phase.Valid() {
		return nil
	}
	return d.phases[phase].handlers.Keys()
}

// OnUnregister adds a callback run whenever an instance leaves phase's
// pending queue without being dispatched.
func (d *Dispatcher) OnUnregister(phase Phase, fn UnregisterFunc) {
	if !phase.Valid() || fn == nil {
		return
	}
	q := d.phases[phase]
	q.hooks = append(q.hooks, fn)
}

// Enqueue schedules instance for phase. An instance already pending for the
// phase is rejected. Enqueuing Destroy first unregisters the instance from
// every other phase, so a pending Start never fires after Destroy is scheduled.
func (d *Dispatcher) Enqueue(phase Phase, instance any) bool {
	if !d.validInstance(instance) {
		return false
	}
	if !phase.Valid() {
		d.logger.Error("enqueue for unknown phase", zap.Int("phase", int(phase)))
		return false
	}

	q := d.phases[phase]
	if q.state[instance] == Pending {
		d.logger.Warn("instance already pending",
			zap.Stringer("phase", phase),
			zap.Stringer("type", symbols.TypeOf(instance)),
		)
		return false
	}

	if phase == Destroy {
		for _, other := range d.phases {
			if other.phase != Destroy {
				d.unregisterFrom(other, instance)
			}
		}
	}

	q.queue = append(q.queue, queued{instance: instance, seq: q.nextSeq})
	q.nextSeq++
	q.state[instance] = Pending
	return true
}

// Cancel removes instance from phase's pending queue.
// Returns false when it was not pending.
func (d *Dispatcher) Cancel(phase Phase, instance any) bool {
	if !phase.Valid() || !d.validInstance(instance) {
		return false
	}
	return d.unregisterFrom(d.phases[phase], instance)
}

// Unregister removes instance from every phase
func (d *Dispatcher) Unregister(instance any) {
	if !d.validInstance(instance) {
		return
	}
	for _, q := range d.phases {
		d.unregisterFrom(q, instance)
	}
}

// Flush dispatches every instance that was pending when the flush began, in
// FIFO order. Each instance leaves the queue before its handler runs, so a
// handler that enqueues it again schedules it for the next flush.
//
// A handler error stops the flush and is returned; instances not yet reached
// stay pending.
func (d *Dispatcher) Flush(phase Phase) error {
	if !phase.Valid() {
		return fmt.Errorf("flush: %w: %d", ErrUnknownPhase, phase)
	}

	q := d.phases[phase]
	limit := q.nextSeq
	for len(q.queue) > 0 && q.queue[0].seq < limit {
		item := q.queue[0]
		q.queue = q.queue[1:]
		instance := item.instance
		typ := symbols.TypeOf(instance)
		delete(q.state, instance)

		key, handler, ok := q.handlers.Resolve(typ, resolve.Inclusive)
		if !ok {
			if phase == Destroy {
				d.logger.Error("no phase handler for instance", zap.Stringer("phase", phase), zap.Stringer("type", typ))
			} else {
				d.logger.Warn("no phase handler for instance", zap.Stringer("phase", phase), zap.Stringer("type", typ))
			}
			continue
		}

		if phase == Destroy {
			d.forget(instance)
		} else {
			q.state[instance] = Dispatched
		}
		if err := handler(instance); err != nil {
			return fmt.Errorf("%s handler %s for %s: %w", phase, key, typ, err)
		}
	}

	if len(q.queue) == 0 {
		q.queue = nil
	}
	return nil
}

// State returns instance's scheduling state for phase
func (d *Dispatcher) State(phase Phase, instance any) State {
	if !phase.Valid() || instance == nil {
		return NotScheduled
	}
	return d.phases[phase].state[instance]
}

// Pending returns the number of instances pending for phase
func (d *Dispatcher) Pending(phase Phase) int {
	if !phase.Valid() {
		return 0
	}
	return len(d.phases[phase].queue)
}

// PendingInstances returns the pending instances for phase in FIFO order
func (d *Dispatcher) PendingInstances(phase Phase) []any {
	if !phase.Valid() {
		return nil
	}
	q := d.phases[phase]
	result := make([]any, len(q.queue))
	for i, item := range q.queue {
		result[i] = item.instance
	}
	return result
}

// Reset drops every pending instance and all state; handlers are kept
func (d *Dispatcher) Reset() {
	for _, q := range d.phases {
		q.queue = nil
		q.state = make(map[any]State)
	}
}

func (d *Dispatcher) unregisterFrom(q *phaseQueue, instance any) bool {
	wasPending := q.state[instance] == Pending
	delete(q.state, instance)
	if !wasPending {
		return false
	}

	for i, item := range q.queue {
		if item.instance == instance {
			q.queue = append(q.queue[:i], q.queue[i+1:]...)
			break
		}
	}
	for _, hook := range q.hooks {
		hook(instance)
	}
	return true
}

// forget drops a destroyed instance from every phase's bookkeeping, except
// where it is pending again.
func (d *Dispatcher) forget(instance any) {
	for _, q := range d.phases {
		if q.state[instance] != Pending {
			delete(q.state, instance)
		}
	}
}

func (d *Dispatcher) validInstance(instance any) bool {
	if instance == nil {
		d.logger.Error("nil instance passed to dispatcher")
		return false
	}
	if !reflect.TypeOf(instance).Comparable() {
		d.logger.Error("instance is not comparable", zap.Stringer("type", reflect.TypeOf(instance)))
		return false
	}
	return true
}
