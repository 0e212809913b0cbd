package cmd

import (
	"context"
	"fmt"

	"github.com/ardanlabs/ethview/business/core/session"
	"github.com/ardanlabs/ethview/foundation/client"
	"github.com/ardanlabs/ethview/foundation/ether"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Print the balance of an address or of the first wallet account.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	term := newTerminal(cmd.InOrStdin(), cmd.OutOrStdout())
	defer term.close()

	w, err := openWallet(ctx, term, session.Transfer{}, nil)
	if err != nil {
		return err
	}
	defer w.close()

	// An explicit address is read straight from the node.
	if len(args) == 1 {
		wei, err := client.New(w.node).Balance(ctx, args[0])
		if err != nil {
			return err
		}

		eth, err := ether.WeiToEther(wei)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "For Account: %s\n", label(w.names, args[0]))
		fmt.Fprintf(cmd.OutOrStdout(), "%s wei (%s ETH)\n", wei, eth)
		return nil
	}

	s, err := w.connect(ctx)
	if err != nil {
		return err
	}

	if len(s.Accounts) == 0 {
		return fmt.Errorf("no accounts authorized")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "For Account: %s\n", label(w.names, s.Accounts[0]))
	fmt.Fprintf(cmd.OutOrStdout(), "%s wei (%s ETH)\n", s.Balance, s.Ether())

	return nil
}
