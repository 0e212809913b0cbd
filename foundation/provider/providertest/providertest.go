// Package providertest provides a scripted provider for tests.
package providertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ardanlabs/ethview/foundation/provider"
)

// Func answers a request. The returned value is sent through JSON to the
// caller's result the same way a transport would.
type Func func(ctx context.Context, args []any) (any, error)

// Provider is a provider whose answers are scripted per method.
type Provider struct {
	provider.Emitter
	MetaMask bool

	mu       sync.Mutex
	handlers map[string]Func
	calls    map[string]int
}

// New constructs a scripted provider with no answers.
func New() *Provider {
	return &Provider{
		handlers: make(map[string]Func),
		calls:    make(map[string]int),
	}
}

// Handle scripts the answer for a method.
func (p *Provider) Handle(method string, fn Func) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handlers[method] = fn
}

// Respond scripts a fixed result for a method.
func (p *Provider) Respond(method string, v any) {
	p.Handle(method, func(context.Context, []any) (any, error) {
		return v, nil
	})
}

// Fail scripts a fixed error for a method.
func (p *Provider) Fail(method string, err error) {
	p.Handle(method, func(context.Context, []any) (any, error) {
		return nil, err
	})
}

// Calls returns the number of times a method was requested.
func (p *Provider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls[method]
}

// CallContext implements the provider.Provider interface.
func (p *Provider) CallContext(ctx context.Context, result any, method string, args ...any) error {
	p.mu.Lock()
	fn, exists := p.handlers[method]
	p.calls[method]++
	p.mu.Unlock()

	if !exists {
		return provider.NewError(provider.CodeUnsupported, "method %s not supported", method)
	}

	v, err := fn(ctx, args)
	if err != nil {
		return err
	}

	if result == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s result: %w", method, err)
	}

	return json.Unmarshal(data, result)
}

// IsMetaMask implements the provider.Provider interface.
func (p *Provider) IsMetaMask() bool {
	return p.MetaMask
}
