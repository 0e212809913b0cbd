// Package ether provides conversions between wei and whole ether units.
package ether

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// Decimals is the number of decimal places between wei and ether.
const Decimals = 18

// unit is 10^18, the number of wei in one ether.
var unit = big.NewInt(params.Ether)

// ToWei converts a whole ether amount into wei.
func ToWei(amount *big.Int) *big.Int {
	return new(big.Int).Mul(amount, unit)
}

// FromWei converts wei into whole ether units. Any fractional wei is
// truncated; 1999999999999999999 wei is 1 ether.
func FromWei(wei *big.Int) *big.Int {
	return new(big.Int).Quo(wei, unit)
}

// ParseWei parses a decimal string encoded integer in wei. An empty string
// is treated as zero.
func ParseWei(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}

	wei, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}

	return wei, nil
}

// WeiToEther takes a decimal string in wei and returns the whole ether
// amount as a decimal string.
func WeiToEther(s string) (string, error) {
	wei, err := ParseWei(s)
	if err != nil {
		return "", err
	}

	return FromWei(wei).String(), nil
}
