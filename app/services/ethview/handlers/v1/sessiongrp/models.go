package sessiongrp

import (
	"github.com/ardanlabs/ethview/business/sys/validate"
	"github.com/ardanlabs/ethview/foundation/client"
)

type status struct {
	Status string `json:"status"`
}

type answer struct {
	Confirmed *bool `json:"confirmed" validate:"required"`
}

// Validate checks the answer is complete.
func (a answer) Validate() error {
	return validate.Check(a)
}

type receipt struct {
	TxHash      string `json:"txHash"`
	BlockNumber string `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
	Successful  bool   `json:"successful"`
}

func toReceipt(r client.Receipt) receipt {
	var block string
	if r.BlockNumber != nil {
		block = r.BlockNumber.ToInt().String()
	}

	return receipt{
		TxHash:      r.TxHash.Hex(),
		BlockNumber: block,
		GasUsed:     uint64(r.GasUsed),
		Successful:  r.Successful(),
	}
}
