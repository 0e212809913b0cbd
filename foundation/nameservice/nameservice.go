// Package nameservice reads a folder of account key files and creates a name
// service lookup for wallet addresses.
package nameservice

import (
	"fmt"
	"io/fs"
	"maps"
	"path"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// NameService maintains a map of addresses for name lookup.
type NameService struct {
	accounts map[common.Address]string
}

// New constructs a name service with the accounts found in the root folder.
// Each file named <name>.ecdsa holds the private key of the account called
// name. An empty root produces a name service with no accounts.
func New(root string) (*NameService, error) {
	ns := NameService{
		accounts: make(map[common.Address]string),
	}

	if root == "" {
		return &ns, nil
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != ".ecdsa" {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return fmt.Errorf("loading key %s: %w", fileName, err)
		}

		address := crypto.PubkeyToAddress(privateKey.PublicKey)
		ns.accounts[address] = strings.TrimSuffix(path.Base(fileName), ".ecdsa")

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified address. Addresses without a
// name, or values that are not addresses, are returned as given.
func (ns *NameService) Lookup(address string) string {
	if ns == nil || !common.IsHexAddress(address) {
		return address
	}

	name, exists := ns.accounts[common.HexToAddress(address)]
	if !exists {
		return address
	}
	return name
}

// Names returns the name of every named address in the list, keyed by the
// address as given.
func (ns *NameService) Names(addresses []string) map[string]string {
	names := make(map[string]string)
	for _, address := range addresses {
		if name := ns.Lookup(address); name != address {
			names[address] = name
		}
	}
	return names
}

// Copy returns a copy of the map of names and addresses.
func (ns *NameService) Copy() map[common.Address]string {
	return maps.Clone(ns.accounts)
}
