// Package provider defines the wallet provider capability the session is
// built against. A provider answers EIP-1193 style requests and emits
// lifecycle events. The request signature matches a go-ethereum rpc.Client
// so a node connection can serve requests directly.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// Set of events a provider emits.
const (
	EventConnect         Event = "connect"
	EventDisconnect      Event = "disconnect"
	EventChainChanged    Event = "chainChanged"
	EventAccountsChanged Event = "accountsChanged"
	EventMessage         Event = "message"
)

// Set of EIP-1193 provider error codes.
const (
	CodeUserRejected    = 4001
	CodeUnauthorized    = 4100
	CodeUnsupported     = 4200
	CodeDisconnected    = 4900
	CodeChainDisconnect = 4901
)

// Event names a provider lifecycle event.
type Event string

// Listener is called with the JSON payload of an event. The payload shape
// is defined by the event.
type Listener func(payload json.RawMessage)

// Provider represents the behavior required of a wallet provider.
type Provider interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
	On(event Event, fn Listener)
	IsMetaMask() bool
}

// =============================================================================

// ConnectInfo is the payload of the connect event.
type ConnectInfo struct {
	ChainID string `json:"chainId"`
}

// Message is the payload of the message event.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// =============================================================================

// Error is a provider error carrying an EIP-1193 code. It implements the
// go-ethereum rpc.Error interface so codes survive the rpc transport.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewError constructs a provider error with the specified code.
func NewError(code int, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// ErrorCode implements the rpc.Error interface.
func (e *Error) ErrorCode() int {
	return e.Code
}

// ErrorCode returns the EIP-1193 or JSON-RPC code carried by the error. It
// returns false when the error carries no code.
func ErrorCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return 0, false
	}

	return rpcErr.ErrorCode(), true
}

// IsUserRejected reports whether the user rejected the request.
func IsUserRejected(err error) bool {
	code, ok := ErrorCode(err)
	return ok && code == CodeUserRejected
}
