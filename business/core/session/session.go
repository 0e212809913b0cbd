// Package session reconciles wallet provider events and user actions into
// the session state shown to the user. All state changes execute on a
// single goroutine in the order they were posted; provider requests run on
// their own goroutines and post their results back.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ardanlabs/ethview/business/sys/metrics"
	"github.com/ardanlabs/ethview/foundation/client"
	"github.com/ardanlabs/ethview/foundation/ether"
	"github.com/ardanlabs/ethview/foundation/provider"
)

// Set of errors returned by the session actions.
var (
	ErrNoProvider   = errors.New("no wallet provider installed")
	ErrNotConnected = errors.New("connect first")
	ErrShutdown     = errors.New("session is shut down")
)

// actionBuffer is how many posted state changes can wait for the loop.
const actionBuffer = 64

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of the session.
type EventHandler func(v string, args ...any)

// StateHandler is called with a copy of the session after every change.
type StateHandler func(s Session)

// UI represents the behavior required from the user facing side of the
// session. Confirm blocks until the user answers.
type UI interface {
	Alert(msg string)
	Confirm(ctx context.Context, msg string) bool
	Reload()
}

// Transfer is the fixed value transfer submitted by SendTransaction.
type Transfer struct {
	From   string
	To     string
	Amount uint64
}

// Session is the client visible state derived from the wallet.
type Session struct {
	Accounts  []string `json:"accounts"`
	ChainID   string   `json:"chainId"`
	GasPrice  string   `json:"gasPrice"`
	Balance   string   `json:"balance"`
	Connected bool     `json:"connected"`
}

// empty returns the session as it is at page load.
func empty() Session {
	return Session{
		Accounts: []string{},
		GasPrice: "0",
		Balance:  "0",
	}
}

// Ether returns the balance in whole ether units. Fractional ether is
// truncated.
func (s Session) Ether() string {
	eth, err := ether.WeiToEther(s.Balance)
	if err != nil {
		return "0"
	}
	return eth
}

// clone returns a copy that shares no memory with s.
func (s Session) clone() Session {
	s.Accounts = append([]string{}, s.Accounts...)
	return s
}

// =============================================================================

// Config represents the configuration required to start a session.
type Config struct {
	Provider     provider.Provider
	UI           UI
	Transfer     Transfer
	Metrics      *metrics.Metrics
	EvHandler    EventHandler
	StateHandler StateHandler
}

// Reconciler owns the session state and the client handle.
type Reconciler struct {
	prov      provider.Provider
	ui        UI
	transfer  Transfer
	metrics   *metrics.Metrics
	evHandler EventHandler
	stHandler StateHandler

	ctx      context.Context
	cancel   context.CancelFunc
	actions  chan func()
	shut     chan struct{}
	shutOnce sync.Once
	wg       sync.WaitGroup

	mu        sync.RWMutex
	published Session

	// Only touched by the loop goroutine.
	session Session
	client  *client.Client
	gen     generations
	pending int
	idle    chan struct{}
}

// New constructs a reconciler, registers its listeners with the provider
// and starts the loop. A nil provider represents a user without a wallet.
func New(cfg Config) (*Reconciler, error) {
	if cfg.UI == nil {
		return nil, errors.New("ui is required")
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	idle := make(chan struct{})
	close(idle)

	r := Reconciler{
		prov:      cfg.Provider,
		ui:        cfg.UI,
		transfer:  cfg.Transfer,
		metrics:   cfg.Metrics,
		evHandler: ev,
		stHandler: cfg.StateHandler,
		ctx:       ctx,
		cancel:    cancel,
		actions:   make(chan func(), actionBuffer),
		shut:      make(chan struct{}),
		published: empty(),
		session:   empty(),
		idle:      idle,
	}

	if r.prov != nil {
		r.subscribe()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop()
	}()

	return &r, nil
}

// Shutdown stops the loop and cancels every in-flight provider request.
func (r *Reconciler) Shutdown() {
	r.evHandler("session: shutdown: started")
	defer r.evHandler("session: shutdown: completed")

	r.shutOnce.Do(func() {
		r.cancel()
		close(r.shut)
	})
	r.wg.Wait()
}

// Snapshot returns a copy of the current session. It never waits on the
// loop.
func (r *Reconciler) Snapshot() Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.published.clone()
}

// IsMetaMask reports whether the provider identifies itself as MetaMask.
func (r *Reconciler) IsMetaMask() bool {
	if r.prov == nil {
		return false
	}
	return r.prov.IsMetaMask()
}

// Settle waits until every provider request issued so far has been applied
// to the session.
func (r *Reconciler) Settle(ctx context.Context) error {
	var idle chan struct{}
	if err := r.do(ctx, func() error {
		idle = r.idle
		return nil
	}); err != nil {
		return err
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.shut:
		return ErrShutdown
	}
}

// =============================================================================
// User actions.

// Connect creates a new client handle and requests access to the user's
// accounts. Without a provider the user is alerted and ErrNoProvider is
// returned. The account request completes asynchronously.
func (r *Reconciler) Connect(ctx context.Context) error {
	return r.do(ctx, func() error {
		if r.prov == nil {
			r.evHandler("session: connect: no provider")
			r.ui.Alert("You have to install MetaMask !")
			return ErrNoProvider
		}

		r.setClient(client.New(r.prov))

		clt := r.client
		gen := r.gen.next(kindAccounts)

		r.async(func(ctx context.Context) func() {
			accounts, err := clt.RequestAccounts(ctx)
			r.metrics.Fetch("eth_requestAccounts", err)

			return func() {
				switch {
				case provider.IsUserRejected(err):
					r.evHandler("session: connect: Please connect to MetaMask.")
					return

				case err != nil:
					r.evHandler("session: connect: ERROR: %s", err)
					return
				}

				if !r.gen.current(kindAccounts, gen) {
					r.stale("eth_requestAccounts")
					return
				}

				r.evHandler("session: connect: accounts[%v]", accounts)
				r.setAccounts(accounts)
			}
		})

		return nil
	})
}

// RefreshAccounts reads the accounts the provider has authorized and
// replaces the session accounts. It is a no-op before Connect.
func (r *Reconciler) RefreshAccounts(ctx context.Context) error {
	return r.do(ctx, func() error {
		if r.client == nil {
			r.evHandler("session: refresh accounts: Connect first")
			return ErrNotConnected
		}

		clt := r.client
		gen := r.gen.next(kindAccounts)

		r.async(func(ctx context.Context) func() {
			accounts, err := clt.Accounts(ctx)
			r.metrics.Fetch("eth_accounts", err)

			return func() {
				if err != nil {
					r.evHandler("session: refresh accounts: ERROR: %s", err)
					return
				}

				if !r.gen.current(kindAccounts, gen) {
					r.stale("eth_accounts")
					return
				}

				r.evHandler("session: refresh accounts: accounts[%v]", accounts)
				r.setAccounts(accounts)
			}
		})

		return nil
	})
}

// Disconnect is a placeholder. Disconnecting is a wallet concern; the
// session keeps its state.
func (r *Reconciler) Disconnect(ctx context.Context) error {
	return r.do(ctx, func() error {
		r.evHandler("session: disconnect: nothing to do")
		return nil
	})
}

// SendTransaction submits the configured transfer through the wallet and
// waits for the receipt. It is a no-op before Connect. The loop is not
// blocked while the transaction is pending.
func (r *Reconciler) SendTransaction(ctx context.Context) (client.Receipt, error) {
	var clt *client.Client
	if err := r.do(ctx, func() error {
		if r.client == nil {
			r.evHandler("session: send: Connect first.")
			return ErrNotConnected
		}
		clt = r.client
		return nil
	}); err != nil {
		return client.Receipt{}, err
	}

	wei := ether.ToWei(new(big.Int).SetUint64(r.transfer.Amount))
	tx, err := client.NewTx(r.transfer.From, r.transfer.To, wei)
	if err != nil {
		return client.Receipt{}, fmt.Errorf("building transfer: %w", err)
	}

	r.evHandler("session: send: from[%s] to[%s] value[%s]", tx.From, tx.To, wei)

	hash, err := clt.SendTransaction(ctx, tx)
	r.metrics.Fetch("eth_sendTransaction", err)
	if err != nil {
		r.evHandler("session: send: ERROR: %s", err)
		return client.Receipt{}, fmt.Errorf("sending transaction: %w", err)
	}

	receipt, err := clt.WaitReceipt(ctx, hash)
	r.metrics.Fetch("eth_getTransactionReceipt", err)
	if err != nil {
		r.evHandler("session: send: tx[%s]: ERROR: %s", hash, err)
		return client.Receipt{}, fmt.Errorf("waiting for receipt: %w", err)
	}

	r.evHandler("session: send: Transaction tx[%s] block[%s] status[%d]", receipt.TxHash, receipt.BlockNumber, receipt.Status)

	return receipt, nil
}

// =============================================================================
// Provider events.

// subscribe registers a listener for every provider event. Listeners run on
// the provider's goroutine and post to the loop.
func (r *Reconciler) subscribe() {
	r.prov.On(provider.EventConnect, r.listen(provider.EventConnect, r.onConnect))
	r.prov.On(provider.EventDisconnect, r.listen(provider.EventDisconnect, r.onDisconnect))
	r.prov.On(provider.EventChainChanged, r.listen(provider.EventChainChanged, r.onChainChanged))
	r.prov.On(provider.EventAccountsChanged, r.listen(provider.EventAccountsChanged, r.onAccountsChanged))
	r.prov.On(provider.EventMessage, r.listen(provider.EventMessage, r.onMessage))
}

func (r *Reconciler) listen(event provider.Event, fn func(payload json.RawMessage)) provider.Listener {
	return func(payload json.RawMessage) {
		r.metrics.Event(string(event))
		r.post(func() {
			fn(payload)
		})
	}
}

func (r *Reconciler) onConnect(payload json.RawMessage) {
	var info provider.ConnectInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		r.evHandler("session: connect event: ERROR: %s", err)
		return
	}

	r.evHandler("session: connect event: Connected to chain %s", info.ChainID)
}

func (r *Reconciler) onDisconnect(payload json.RawMessage) {
	var perr provider.Error
	if err := json.Unmarshal(payload, &perr); err != nil {
		r.evHandler("session: disconnect event: ERROR: %s", err)
		return
	}

	r.evHandler("session: disconnect event: code[%d] %s", perr.Code, perr.Message)
}

// onChainChanged asks the user to reload. Chain scoped values can't be
// repaired in place, so a confirmed reload discards the whole session.
func (r *Reconciler) onChainChanged(payload json.RawMessage) {
	var chainID string
	if err := json.Unmarshal(payload, &chainID); err != nil {
		r.evHandler("session: chainChanged event: ERROR: %s", err)
		return
	}

	r.evHandler("session: chainChanged event: chain[%s]", chainID)

	msg := fmt.Sprintf("Chain Changed (%s) Do you want to reload the page?", chainID)
	if !r.ui.Confirm(r.ctx, msg) {
		r.evHandler("session: chainChanged event: reload declined")
		return
	}

	r.evHandler("session: chainChanged event: reloading")

	r.client = nil
	r.gen.reset()
	r.session = empty()
	r.publish()

	r.ui.Reload()
}

func (r *Reconciler) onAccountsChanged(payload json.RawMessage) {
	var accounts []string
	if err := json.Unmarshal(payload, &accounts); err != nil {
		r.evHandler("session: accountsChanged event: ERROR: %s", err)
		return
	}

	r.evHandler("session: accountsChanged event: accounts[%v]", accounts)

	r.gen.next(kindAccounts)
	r.setAccounts(accounts)
}

func (r *Reconciler) onMessage(payload json.RawMessage) {
	var msg provider.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		r.evHandler("session: message event: ERROR: %s", err)
		return
	}

	r.evHandler("session: message event: type[%s] data[%s]", msg.Type, msg.Data)
}

// =============================================================================
// State changes. Everything below runs on the loop goroutine.

// setClient installs a new client handle and refreshes the values derived
// from it.
func (r *Reconciler) setClient(clt *client.Client) {
	r.client = clt
	r.session.Connected = true
	r.publish()

	r.refreshGasPrice()
	r.refreshChainID()

	// A new handle makes a pending balance fetch stale, so fetch again
	// for accounts that are already known.
	if len(r.session.Accounts) > 0 {
		r.refreshBalance()
	}
}

// setAccounts replaces the accounts and fetches the balance of the first
// account when there is one.
func (r *Reconciler) setAccounts(accounts []string) {
	r.session.Accounts = append([]string{}, accounts...)
	r.publish()

	// A balance fetched for the previous accounts no longer applies.
	r.gen.next(kindBalance)

	if len(accounts) == 0 {
		return
	}

	if r.client == nil {
		r.evHandler("session: balance: Connect first")
		return
	}

	r.refreshBalance()
}

func (r *Reconciler) refreshGasPrice() {
	clt := r.client
	gen := r.gen.next(kindGasPrice)

	r.async(func(ctx context.Context) func() {
		price, err := clt.GasPrice(ctx)
		r.metrics.Fetch("eth_gasPrice", err)

		return func() {
			if err != nil {
				r.evHandler("session: gas price: ERROR: %s", err)
				return
			}

			if !r.gen.current(kindGasPrice, gen) {
				r.stale("eth_gasPrice")
				return
			}

			r.session.GasPrice = price
			r.publish()
		}
	})
}

func (r *Reconciler) refreshChainID() {
	clt := r.client
	gen := r.gen.next(kindChainID)

	r.async(func(ctx context.Context) func() {
		chainID, err := clt.ChainID(ctx)
		r.metrics.Fetch("eth_chainId", err)

		return func() {
			if err != nil {
				r.evHandler("session: chain id: ERROR: %s", err)
				return
			}

			if !r.gen.current(kindChainID, gen) {
				r.stale("eth_chainId")
				return
			}

			r.session.ChainID = chainID
			r.publish()
		}
	})
}

func (r *Reconciler) refreshBalance() {
	clt := r.client
	account := r.session.Accounts[0]
	gen := r.gen.next(kindBalance)

	r.async(func(ctx context.Context) func() {
		balance, err := clt.Balance(ctx, account)
		r.metrics.Fetch("eth_getBalance", err)

		return func() {
			if err != nil {
				r.evHandler("session: balance: account[%s]: ERROR: %s", account, err)
				return
			}

			if !r.gen.current(kindBalance, gen) {
				r.stale("eth_getBalance")
				return
			}

			r.session.Balance = balance
			r.publish()
		}
	})
}

func (r *Reconciler) stale(method string) {
	r.metrics.Stale(method)
	r.evHandler("session: %s: discarding stale result", method)
}

// publish makes the current session visible to readers.
func (r *Reconciler) publish() {
	s := r.session.clone()

	r.mu.Lock()
	r.published = s
	r.mu.Unlock()

	if r.stHandler != nil {
		r.stHandler(s.clone())
	}
}
