// Package events is the C6 component: an explicit per-event observer
// list, replacing an ambient event-emitter object with listeners that
// are owned by callers and deregistered via the handle returned from
// subscribing.
package events

import "github.com/sharedmap/kernel/pkg/valueenc"

// ValueChangedEvent describes an effective set or delete.
type ValueChangedEvent struct {
	Key           string
	PreviousValue *valueenc.LocalValue
	Local         bool
}

// ClearEvent describes an effective clear.
type ClearEvent struct {
	Local bool
}

// ValueChangedHandler observes ValueChanged events. Handlers may read
// the store but must not mutate it; the kernel does not guard against
// re-entrant mutation.
type ValueChangedHandler func(ValueChangedEvent)

// ClearHandler observes Clear events.
type ClearHandler func(ClearEvent)

// Unsubscribe removes a previously registered handler.
type Unsubscribe func()

// Emitter is the kernel's event surface: two independent observer
// lists, one per event name.
type Emitter struct {
	valueChanged []ValueChangedHandler
	clear        []ClearHandler
}

// NewEmitter returns an emitter with no registered listeners.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// OnValueChanged registers h and returns a func to deregister it.
func (e *Emitter) OnValueChanged(h ValueChangedHandler) Unsubscribe {
	e.valueChanged = append(e.valueChanged, h)
	idx := len(e.valueChanged) - 1
	return func() {
		e.valueChanged[idx] = nil
	}
}

// OnClear registers h and returns a func to deregister it.
func (e *Emitter) OnClear(h ClearHandler) Unsubscribe {
	e.clear = append(e.clear, h)
	idx := len(e.clear) - 1
	return func() {
		e.clear[idx] = nil
	}
}

// EmitValueChanged notifies every registered ValueChanged listener, in
// registration order.
func (e *Emitter) EmitValueChanged(ev ValueChangedEvent) {
	for _, h := range e.valueChanged {
		if h != nil {
			h(ev)
		}
	}
}

// EmitClear notifies every registered Clear listener, in registration order.
func (e *Emitter) EmitClear(ev ClearEvent) {
	for _, h := range e.clear {
		if h != nil {
			h(ev)
		}
	}
}
