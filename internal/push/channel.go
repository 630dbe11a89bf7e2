package push

import (
	"encoding/json"
	"errors"
	"sync"
)

// ErrAdapterClosed is returned by writes against a torn-down connection.
var ErrAdapterClosed = errors.New("push adapter closed")

// channel is the adapter's per-channel handler registry. Dispatch happens
// on the adapter's read loop goroutine.
type channel struct {
	name     string
	mu       sync.RWMutex
	handlers map[string]Handler
}

func newChannel(name string) *channel {
	return &channel{
		name:     name,
		handlers: make(map[string]Handler),
	}
}

func (c *channel) Name() string {
	return c.name
}

// Bind registers the handler for a named event, replacing any previous one.
func (c *channel) Bind(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = h
}

// Unbind removes the handler for a named event.
func (c *channel) Unbind(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, event)
}

// clear drops every binding; called when the channel is unsubscribed so a
// late frame cannot reach a handler.
func (c *channel) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = make(map[string]Handler)
}

func (c *channel) dispatch(event string, data json.RawMessage) {
	c.mu.RLock()
	h := c.handlers[event]
	c.mu.RUnlock()

	if h != nil {
		h(data)
	}
}
