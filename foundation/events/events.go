// Package events allows for the registering and receiving of frames that
// are pushed to connected clients.
package events

import (
	"fmt"
	"sync"
)

// messageBuffer is how many frames can queue for a slow receiver before
// new frames are dropped for it.
const messageBuffer = 100

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive frames.
type Events struct {
	m  map[string]chan []byte
	mu sync.RWMutex
}

// New constructs an events for registering and receiving frames.
func New() *Events {
	return &Events{
		m: make(map[string]chan []byte),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		delete(evt.m, id)
		close(ch)
	}
}

// Acquire takes a unique id and returns a channel that can be used
// to receive frames.
func (evt *Events) Acquire(id string) <-chan []byte {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if exists {
		return ch
	}

	evt.m[id] = make(chan []byte, messageBuffer)
	return evt.m[id]
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(ch)
	return nil
}

// Send signals a frame to every registered channel. Send will not block
// waiting for a receiver on any given channel and returns the number of
// receivers that got the frame.
func (evt *Events) Send(frame []byte) int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	var sent int
	for _, ch := range evt.m {
		select {
		case ch <- frame:
			sent++
		default:
		}
	}

	return sent
}

// Count returns the number of registered receivers.
func (evt *Events) Count() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.m)
}
