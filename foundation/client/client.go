// Package client provides the higher level calls issued through a wallet
// provider: accounts, chain id, gas price, balances and transfers.
package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"runtime/debug"
	"time"

	"github.com/ardanlabs/ethview/foundation/provider"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrInvalidAddress is returned when an address is not a hex address.
var ErrInvalidAddress = errors.New("invalid address")

// receiptInterval is how often a pending receipt is polled.
const receiptInterval = 500 * time.Millisecond

// Client wraps a provider to issue wallet and chain calls.
type Client struct {
	prov provider.Provider
}

// New constructs a client bound to the provider.
func New(prov provider.Provider) *Client {
	return &Client{
		prov: prov,
	}
}

// RequestAccounts asks the provider for access to the user's accounts. The
// user may reject the request.
func (c *Client) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := c.prov.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, err
	}

	return accounts, nil
}

// Accounts returns the accounts the provider has already authorized.
func (c *Client) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := c.prov.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}

	return accounts, nil
}

// ChainID returns the chain id as reported by the provider.
func (c *Client) ChainID(ctx context.Context) (string, error) {
	var chainID string
	if err := c.prov.CallContext(ctx, &chainID, "eth_chainId"); err != nil {
		return "", err
	}

	return chainID, nil
}

// GasPrice returns the current gas price in wei as a decimal string.
func (c *Client) GasPrice(ctx context.Context) (string, error) {
	var price hexutil.Big
	if err := c.prov.CallContext(ctx, &price, "eth_gasPrice"); err != nil {
		return "", err
	}

	return price.ToInt().String(), nil
}

// Balance returns the latest balance of the address in wei as a decimal
// string.
func (c *Client) Balance(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	var balance hexutil.Big
	if err := c.prov.CallContext(ctx, &balance, "eth_getBalance", common.HexToAddress(address), "latest"); err != nil {
		return "", err
	}

	return balance.ToInt().String(), nil
}

// =============================================================================

// Tx represents a value transfer to be signed and submitted by the wallet.
type Tx struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value *hexutil.Big   `json:"value"`
}

// NewTx constructs a transfer of wei between the two addresses.
func NewTx(from string, to string, wei *big.Int) (Tx, error) {
	if !common.IsHexAddress(from) {
		return Tx{}, fmt.Errorf("from: %w: %q", ErrInvalidAddress, from)
	}
	if !common.IsHexAddress(to) {
		return Tx{}, fmt.Errorf("to: %w: %q", ErrInvalidAddress, to)
	}

	tx := Tx{
		From:  common.HexToAddress(from),
		To:    common.HexToAddress(to),
		Value: (*hexutil.Big)(new(big.Int).Set(wei)),
	}

	return tx, nil
}

// Receipt is the subset of a transaction receipt the session reports.
type Receipt struct {
	TxHash      common.Hash    `json:"transactionHash"`
	BlockNumber *hexutil.Big   `json:"blockNumber"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
	Status      hexutil.Uint64 `json:"status"`
}

// Successful reports whether the transaction executed without reverting.
func (r Receipt) Successful() bool {
	return r.Status == 1
}

// SendTransaction asks the wallet to sign and submit the transaction and
// returns the transaction hash.
func (c *Client) SendTransaction(ctx context.Context, tx Tx) (common.Hash, error) {
	var hash common.Hash
	if err := c.prov.CallContext(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		return common.Hash{}, err
	}

	return hash, nil
}

// WaitReceipt polls for the receipt of the transaction until it is mined
// or the context is done.
func (c *Client) WaitReceipt(ctx context.Context, hash common.Hash) (Receipt, error) {
	ticker := time.NewTicker(receiptInterval)
	defer ticker.Stop()

	for {
		var receipt *Receipt
		if err := c.prov.CallContext(ctx, &receipt, "eth_getTransactionReceipt", hash); err != nil {
			return Receipt{}, err
		}

		if receipt != nil {
			return *receipt, nil
		}

		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// =============================================================================

// LibVersion returns the version of the go-ethereum module this binary was
// built with.
func LibVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	for _, dep := range info.Deps {
		if dep.Path == "github.com/ethereum/go-ethereum" {
			return dep.Version
		}
	}

	return "unknown"
}
