package cmd

import (
	"context"
	"fmt"

	"github.com/ardanlabs/ethview/business/core/session"
	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Connect to the wallet and print its accounts",
	RunE:  accountsRun,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
}

func accountsRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	term := newTerminal(cmd.InOrStdin(), cmd.OutOrStdout())
	defer term.close()

	w, err := openWallet(ctx, term, session.Transfer{}, nil)
	if err != nil {
		return err
	}
	defer w.close()

	s, err := w.connect(ctx)
	if err != nil {
		return err
	}

	if len(s.Accounts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no accounts authorized")
		return nil
	}

	for i, account := range s.Accounts {
		fmt.Fprintf(cmd.OutOrStdout(), "#%d: %s\n", i, label(w.names, account))
	}

	return nil
}
