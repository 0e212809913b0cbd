package cmd

import (
	"context"
	"fmt"

	"github.com/ardanlabs/ethview/business/core/session"
	"github.com/ardanlabs/ethview/business/sys/validate"
	"github.com/spf13/cobra"
)

var (
	from   string
	to     string
	amount uint64
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a transfer through the wallet and wait for the receipt",
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&from, "from", "f", "0x940a4589E77e5e23002410773f6dE65C5a4E2a66", "Address sending the ether.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "0x52dD916B89acb5d1E1a9062ec649d31A9c47CF22", "Address receiving the ether.")
	sendCmd.Flags().Uint64VarP(&amount, "amount", "n", 1, "Whole ether to send.")
}

func sendRun(cmd *cobra.Command, args []string) error {
	transfer := struct {
		From   string `validate:"required,eth_addr"`
		To     string `validate:"required,eth_addr"`
		Amount uint64 `validate:"gte=1"`
	}{
		From:   from,
		To:     to,
		Amount: amount,
	}
	if err := validate.Check(transfer); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	term := newTerminal(cmd.InOrStdin(), cmd.OutOrStdout())
	defer term.close()

	w, err := openWallet(ctx, term, session.Transfer(transfer), nil)
	if err != nil {
		return err
	}
	defer w.close()

	if _, err := w.connect(ctx); err != nil {
		return err
	}

	receipt, err := w.session.SendTransaction(ctx)
	if err != nil {
		return err
	}

	status := "failed"
	if receipt.Successful() {
		status = "successful"
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Transaction %s %s in block %s, gas used %d\n", receipt.TxHash.Hex(), status, receipt.BlockNumber, uint64(receipt.GasUsed))

	return nil
}
