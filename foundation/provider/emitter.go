package provider

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Emitter maintains the set of listeners registered per event. It is
// embedded by provider implementations to satisfy the On method. The zero
// value is ready for use.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[Event][]Listener
}

// On registers a listener for the specified event.
func (em *Emitter) On(event Event, fn Listener) {
	em.mu.Lock()
	defer em.mu.Unlock()

	if em.listeners == nil {
		em.listeners = make(map[Event][]Listener)
	}

	em.listeners[event] = append(em.listeners[event], fn)
}

// Emit marshals the payload and calls every listener registered for the
// event in registration order. Listeners run on the caller's goroutine.
func (em *Emitter) Emit(event Event, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}

	em.mu.RLock()
	fns := make([]Listener, len(em.listeners[event]))
	copy(fns, em.listeners[event])
	em.mu.RUnlock()

	for _, fn := range fns {
		fn(data)
	}

	return nil
}

// Listeners returns the number of listeners registered for the event.
func (em *Emitter) Listeners(event Event) int {
	em.mu.RLock()
	defer em.mu.RUnlock()

	return len(em.listeners[event])
}
