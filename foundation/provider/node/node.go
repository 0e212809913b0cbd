// Package node implements a provider backed by an Ethereum JSON-RPC node.
// Nodes have no push channel for wallet lifecycle events, so the provider
// polls the node and emits connect, disconnect, chainChanged,
// accountsChanged and message events when what it observes changes.
package node

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ardanlabs/ethview/foundation/provider"
	"github.com/ethereum/go-ethereum/rpc"
)

// EventHandler defines a function that is called when events
// occur while polling the node.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to start the provider.
type Config struct {
	PollInterval time.Duration
	EvHandler    EventHandler
}

// Node is a provider that forwards requests to a JSON-RPC node.
type Node struct {
	provider.Emitter

	client    *rpc.Client
	interval  time.Duration
	evHandler EventHandler
	wg        sync.WaitGroup
	shut      chan struct{}
	shutOnce  sync.Once

	// Only touched by the polling goroutine.
	connected bool
	observed  bool
	chainID   string
	accounts  []string
	block     string
}

// Dial connects to the node at the url. Polling begins with Start.
func Dial(ctx context.Context, url string, cfg Config) (*Node, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	return New(client, cfg), nil
}

// New constructs a provider over the client. The provider owns the client
// and closes it on Shutdown.
func New(client *rpc.Client, cfg Config) *Node {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	n := Node{
		client:    client,
		interval:  interval,
		evHandler: ev,
		shut:      make(chan struct{}),
	}

	return &n
}

// Start begins polling the node. Listeners registered before Start will
// observe the connect event.
func (n *Node) Start() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.pollOperations()
	}()
}

// Shutdown stops polling and closes the connection to the node.
func (n *Node) Shutdown() {
	n.evHandler("node: shutdown: started")
	defer n.evHandler("node: shutdown: completed")

	n.shutOnce.Do(func() {
		close(n.shut)
		n.wg.Wait()
		n.client.Close()
	})
}

// CallContext implements the provider.Provider interface. A node has no
// authorization step, so eth_requestAccounts is answered by eth_accounts.
func (n *Node) CallContext(ctx context.Context, result any, method string, args ...any) error {
	if method == "eth_requestAccounts" {
		method = "eth_accounts"
	}

	return n.client.CallContext(ctx, result, method, args...)
}

// IsMetaMask implements the provider.Provider interface.
func (n *Node) IsMetaMask() bool {
	return false
}

// =============================================================================

// pollOperations polls the node on every tick until shutdown.
func (n *Node) pollOperations() {
	n.evHandler("node: pollOperations: G started")
	defer n.evHandler("node: pollOperations: G completed")

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	n.poll()

	for {
		select {
		case <-ticker.C:
			n.poll()
		case <-n.shut:
			return
		}
	}
}

// poll captures the node's chain, accounts and head and emits an event for
// everything that differs from the previous poll.
func (n *Node) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), n.interval)
	defer cancel()

	var chainID string
	var accounts []string
	var block string

	batch := []rpc.BatchElem{
		{Method: "eth_chainId", Result: &chainID},
		{Method: "eth_accounts", Result: &accounts},
		{Method: "eth_blockNumber", Result: &block},
	}

	err := n.client.BatchCallContext(ctx, batch)
	if err == nil {
		for _, elem := range batch {
			if elem.Error != nil {
				err = elem.Error
				break
			}
		}
	}

	if err != nil {
		if n.connected {
			n.connected = false
			n.emit(provider.EventDisconnect, provider.NewError(provider.CodeDisconnected, "%s", err))
		}
		n.evHandler("node: poll: ERROR: %s", err)
		return
	}

	if accounts == nil {
		accounts = []string{}
	}

	if !n.connected {
		n.connected = true
		n.emit(provider.EventConnect, provider.ConnectInfo{ChainID: chainID})

		// On the first connect there is nothing to compare against. After a
		// reconnect, changes made while the node was away are reported below.
		if !n.observed {
			n.observed = true
			n.chainID = chainID
			n.accounts = accounts
			n.block = block
			return
		}
	}

	if chainID != n.chainID {
		n.chainID = chainID
		n.emit(provider.EventChainChanged, chainID)
	}

	if !slices.Equal(accounts, n.accounts) {
		n.accounts = accounts
		n.emit(provider.EventAccountsChanged, accounts)
	}

	if block != n.block {
		n.block = block
		n.emit(provider.EventMessage, blockMessage(block))
	}
}

func (n *Node) emit(event provider.Event, payload any) {
	n.evHandler("node: emit: %s", event)

	if err := n.Emit(event, payload); err != nil {
		n.evHandler("node: emit: %s: ERROR: %s", event, err)
	}
}

// blockMessage constructs the message payload announcing a new head.
func blockMessage(block string) provider.Message {
	return provider.Message{
		Type: "newHeads",
		Data: []byte(fmt.Sprintf("%q", block)),
	}
}
